package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalysis_WriteOnce(t *testing.T) {
	a := NewAnalysis("https://github.com/o/r/issues/1")

	require.NoError(t, a.SetContext("ctx"))
	require.NoError(t, a.SetPlan("plan"))
	assert.False(t, a.Complete())
	require.NoError(t, a.SetGeneratedPrompt("prompt"))
	assert.True(t, a.Complete())

	assert.ErrorIs(t, a.SetContext("other"), ErrFieldAlreadySet)
	assert.ErrorIs(t, a.SetPlan("other"), ErrFieldAlreadySet)
	assert.ErrorIs(t, a.SetGeneratedPrompt("other"), ErrFieldAlreadySet)

	assert.Equal(t, "ctx", a.Context)
	assert.Equal(t, "plan", a.Plan)
	assert.Equal(t, "prompt", a.GeneratedPrompt)
}

func TestCacheEntry_Live(t *testing.T) {
	exp := mustTime(t, "2024-01-02T00:00:00Z")
	e := CacheEntry{ExpiresAt: exp}

	assert.True(t, e.Live(exp.Add(-1)))
	assert.False(t, e.Live(exp), "entry expires at exactly its expiry instant")
	assert.False(t, e.Live(exp.Add(1)))
}
