package entity

// Analysis is the per-issue record accumulated by the pipeline stages.
// Context, Plan and GeneratedPrompt are each written at most once per run.
type Analysis struct {
	IssueURL        string `json:"issue_url"`
	Context         string `json:"context"`
	Plan            string `json:"solution_plan"`
	GeneratedPrompt string `json:"generated_prompt"`
}

// NewAnalysis starts an empty record for the given issue URL.
func NewAnalysis(issueURL string) *Analysis {
	return &Analysis{IssueURL: issueURL}
}

// SetContext stores the compiled context.
func (a *Analysis) SetContext(s string) error {
	return setOnce(&a.Context, "context", s)
}

// SetPlan stores the solution plan.
func (a *Analysis) SetPlan(s string) error {
	return setOnce(&a.Plan, "solution_plan", s)
}

// SetGeneratedPrompt stores the coding-assistant prompt.
func (a *Analysis) SetGeneratedPrompt(s string) error {
	return setOnce(&a.GeneratedPrompt, "generated_prompt", s)
}

// Complete reports whether every field has been filled.
func (a *Analysis) Complete() bool {
	return a.Context != "" && a.Plan != "" && a.GeneratedPrompt != ""
}

func setOnce(dst *string, field, v string) error {
	if *dst != "" {
		return &FieldError{Field: field, Err: ErrFieldAlreadySet}
	}
	*dst = v
	return nil
}
