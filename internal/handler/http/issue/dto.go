// Package issue provides the HTTP handlers for issue search, analysis,
// proposal downloads and the progress WebSocket.
package issue

import (
	"fmt"

	"sourcesage/internal/domain/entity"
	"sourcesage/internal/usecase/analyze"
	"sourcesage/internal/usecase/discover"
)

// SearchRequest is the body of POST /api/search-issues.
type SearchRequest struct {
	Skills []string `json:"skills" example:"python,fastapi"`
	// MaxResults defaults to 15 when omitted.
	MaxResults *int `json:"max_results,omitempty" example:"15"`
}

// IssueDTO is one discovered issue.
type IssueDTO struct {
	URL    string   `json:"url" example:"https://github.com/owner/repo/issues/123"`
	Title  string   `json:"title"`
	Repo   string   `json:"repo" example:"repo"`
	Labels []string `json:"labels"`
}

// SearchResponse lists at most max_results issues out of total_found.
type SearchResponse struct {
	Success    bool       `json:"success"`
	Issues     []IssueDTO `json:"issues"`
	TotalFound int        `json:"total_found"`
	FromCache  bool       `json:"from_cache"`
	Message    string     `json:"message,omitempty"`
}

// AnalyzeRequest is the body of POST /api/analyze.
type AnalyzeRequest struct {
	IssueURLs       []string `json:"issue_urls"`
	GenerateReports bool     `json:"generate_reports"`
}

// AnalysisDTO is one per-issue analysis.
type AnalysisDTO struct {
	IssueURL        string `json:"issue_url"`
	Context         string `json:"context"`
	SolutionPlan    string `json:"solution_plan"`
	GeneratedPrompt string `json:"generated_prompt"`
}

// ReportDTO points at a downloadable proposal.
type ReportDTO struct {
	IssueTitle  string `json:"issue_title"`
	DownloadURL string `json:"download_url"`
}

// AnalyzeResponse carries cached analyses first, then fresh ones.
type AnalyzeResponse struct {
	Success         bool          `json:"success"`
	Analyses        []AnalysisDTO `json:"analyses"`
	ReportDownloads []ReportDTO   `json:"report_downloads"`
	Cached          int           `json:"cached"`
	Message         string        `json:"message,omitempty"`
}

func (r SearchRequest) input() discover.Input {
	in := discover.Input{Skills: r.Skills}
	if r.MaxResults != nil {
		in.MaxResults = *r.MaxResults
	}
	return in
}

// validate catches an explicit max_results of zero, which the use case
// would otherwise treat as "use the default".
func (r SearchRequest) validate() error {
	if r.MaxResults != nil {
		return entity.ValidateLimit(*r.MaxResults)
	}
	return nil
}

func toSearchResponse(res *discover.Result) SearchResponse {
	out := SearchResponse{
		Success:    true,
		Issues:     make([]IssueDTO, 0, len(res.Issues)),
		TotalFound: res.TotalFound,
		FromCache:  res.FromCache,
	}
	for _, it := range res.Issues {
		labels := it.Labels
		if labels == nil {
			labels = []string{}
		}
		out.Issues = append(out.Issues, IssueDTO{URL: it.URL, Title: it.Title, Repo: it.Repo, Labels: labels})
	}
	switch {
	case res.TotalFound == 0:
		out.Message = "No issues found for the given skills"
	case res.FromCache:
		out.Message = "Retrieved from cache"
	default:
		out.Message = "Search successful"
	}
	return out
}

func toAnalyzeResponse(res *analyze.Result) AnalyzeResponse {
	out := AnalyzeResponse{
		Success:         true,
		Analyses:        make([]AnalysisDTO, 0, len(res.Records)),
		ReportDownloads: make([]ReportDTO, 0, len(res.Reports)),
		Cached:          res.Cached,
	}
	for _, rec := range res.Records {
		out.Analyses = append(out.Analyses, AnalysisDTO{
			IssueURL:        rec.IssueURL,
			Context:         rec.Context,
			SolutionPlan:    rec.Plan,
			GeneratedPrompt: rec.GeneratedPrompt,
		})
	}
	for _, ref := range res.Reports {
		out.ReportDownloads = append(out.ReportDownloads, ReportDTO(ref))
	}
	out.Message = analyzedMessage(len(out.Analyses))
	return out
}

func analyzedMessage(n int) string {
	if n == 1 {
		return "Analyzed 1 issue"
	}
	return fmt.Sprintf("Analyzed %d issues", n)
}
