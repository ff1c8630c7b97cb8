package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUpstream = errors.New("upstream 503")

func testPolicy() Policy {
	return Policy{
		Name:       "llm-test",
		Probes:     2,
		Window:     10 * time.Second,
		Cooldown:   100 * time.Millisecond,
		TripRatio:  0.6,
		MinSamples: 5,
	}
}

func fail(b *Breaker, n int, err error) {
	for i := 0; i < n; i++ {
		_ = b.Do(func() error { return err })
	}
}

func TestNew(t *testing.T) {
	b := New(testPolicy())
	assert.Equal(t, "llm-test", b.Name())
	assert.Equal(t, gobreaker.StateClosed, b.State())
	assert.False(t, b.Open())
}

func TestCall(t *testing.T) {
	b := New(testPolicy())

	text, err := Call(b, func() (string, error) { return "plan text", nil })
	require.NoError(t, err)
	assert.Equal(t, "plan text", text)

	text, err = Call(b, func() (string, error) { return "", errUpstream })
	assert.ErrorIs(t, err, errUpstream)
	assert.Empty(t, text)
}

func TestBreaker_TripsOpenAndRecovers(t *testing.T) {
	b := New(testPolicy())
	fail(b, 5, errUpstream)
	require.True(t, b.Open(), "state %v", b.State())

	err := b.Do(func() error {
		t.Error("fn must not run while open")
		return nil
	})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)

	time.Sleep(150 * time.Millisecond)

	require.NoError(t, b.Do(func() error { return nil }))
	assert.False(t, b.Open())
}

func TestBreaker_MinSamples(t *testing.T) {
	p := testPolicy()
	p.MinSamples = 10
	b := New(p)

	fail(b, 4, errUpstream)
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestBreaker_IgnoredErrorsReachCallerButDoNotTrip(t *testing.T) {
	errBadRequest := errors.New("400 bad request")
	p := testPolicy()
	p.Ignore = func(err error) bool { return errors.Is(err, errBadRequest) }
	b := New(p)

	for i := 0; i < 10; i++ {
		assert.ErrorIs(t, b.Do(func() error { return errBadRequest }), errBadRequest)
	}
	assert.Equal(t, gobreaker.StateClosed, b.State())

	// Ignored errors count as successes: 10 failures over 20 requests
	// stays under the 0.6 trip ratio.
	fail(b, 10, errUpstream)
	assert.Equal(t, gobreaker.StateClosed, b.State())

	// 16 of 26 passes it.
	fail(b, 6, errUpstream)
	assert.True(t, b.Open(), "state %v", b.State())
}

func TestPresetPolicies(t *testing.T) {
	p := Provider("cerebras", nil)
	assert.Equal(t, "llm-cerebras", p.Name)
	assert.Equal(t, uint32(5), p.MinSamples)

	g := GitHub(nil)
	assert.Equal(t, "github-api", g.Name)
	assert.Greater(t, g.Cooldown, p.Cooldown)
}
