// Package entity defines the domain objects that flow through the issue
// pipeline: discovered issues, their fetched details, per-issue analysis
// records, and the references to drafted reports.
package entity

// Issue is a discovered open issue labeled as a good first issue.
type Issue struct {
	URL    string   `json:"url"`
	APIURL string   `json:"api_url"`
	Title  string   `json:"title"`
	Repo   string   `json:"repo"`
	Labels []string `json:"labels"`
}

// IssueDetail is the fetched body of an issue together with the most
// recent comment texts, oldest first.
type IssueDetail struct {
	Title    string   `json:"title"`
	Body     string   `json:"body"`
	Comments []string `json:"comments"`
}

// ReportRef points at a drafted proposal document.
type ReportRef struct {
	IssueTitle  string `json:"issue_title"`
	DownloadURL string `json:"download_url"`
}
