package entity

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Request bounds accepted by the HTTP and CLI entry points.
const (
	MaxSkills       = 10
	MaxIssueURLs    = 5
	MaxSearchLimit  = 50
	DefaultLimit    = 15
	maxURLLength    = 2048
	maxSkillLength  = 64
	githubIssueHost = "github.com"
)

var issuePathPattern = regexp.MustCompile(`^/([^/]+)/([^/]+)/issues/(\d+)/?$`)

// ValidateSkills checks that at least one and at most MaxSkills non-blank
// skills were supplied.
func ValidateSkills(skills []string) error {
	if len(skills) == 0 {
		return &ValidationError{Field: "skills", Message: "at least one skill is required"}
	}
	if len(skills) > MaxSkills {
		return &ValidationError{
			Field:   "skills",
			Message: fmt.Sprintf("at most %d skills are allowed", MaxSkills),
		}
	}
	for _, s := range skills {
		s = strings.TrimSpace(s)
		if s == "" {
			return &ValidationError{Field: "skills", Message: "skills must not be blank"}
		}
		if len(s) > maxSkillLength {
			return &ValidationError{
				Field:   "skills",
				Message: fmt.Sprintf("skill must not exceed %d characters", maxSkillLength),
			}
		}
	}
	return nil
}

// ValidateLimit checks the requested number of discovered issues.
func ValidateLimit(limit int) error {
	if limit < 1 || limit > MaxSearchLimit {
		return &ValidationError{
			Field:   "max_results",
			Message: fmt.Sprintf("max_results must be between 1 and %d", MaxSearchLimit),
		}
	}
	return nil
}

// ValidateIssueURLs checks the batch size and that every entry is a
// github.com issue page URL.
func ValidateIssueURLs(urls []string) error {
	if len(urls) == 0 {
		return &ValidationError{Field: "issue_urls", Message: "at least one issue URL is required"}
	}
	if len(urls) > MaxIssueURLs {
		return &ValidationError{
			Field:   "issue_urls",
			Message: fmt.Sprintf("at most %d issue URLs are allowed", MaxIssueURLs),
		}
	}
	for _, u := range urls {
		if err := ValidateIssueURL(u); err != nil {
			return err
		}
	}
	return nil
}

// ValidateIssueURL validates a single issue page URL of the form
// https://github.com/{owner}/{repo}/issues/{number}.
func ValidateIssueURL(rawURL string) error {
	if rawURL == "" {
		return &ValidationError{Field: "issue_urls", Message: "URL is required"}
	}
	if len(rawURL) > maxURLLength {
		return &ValidationError{
			Field:   "issue_urls",
			Message: fmt.Sprintf("url must not exceed %d characters", maxURLLength),
		}
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return &ValidationError{Field: "issue_urls", Message: fmt.Sprintf("malformed URL %q", rawURL)}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &ValidationError{Field: "issue_urls", Message: "URL must use http or https scheme"}
	}
	if !strings.EqualFold(u.Hostname(), githubIssueHost) {
		return &ValidationError{Field: "issue_urls", Message: "URL must point to github.com"}
	}
	if !issuePathPattern.MatchString(u.Path) {
		return &ValidationError{Field: "issue_urls", Message: fmt.Sprintf("%q is not an issue URL", rawURL)}
	}
	return nil
}

// ParseIssueURL splits an issue page URL into owner, repository and number.
func ParseIssueURL(rawURL string) (owner, repo, number string, err error) {
	if err := ValidateIssueURL(rawURL); err != nil {
		return "", "", "", err
	}
	u, _ := url.Parse(rawURL)
	m := issuePathPattern.FindStringSubmatch(u.Path)
	return m[1], m[2], m[3], nil
}
