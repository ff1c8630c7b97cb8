package github

import (
	"fmt"
	"log/slog"
	"strings"

	"sourcesage/internal/domain/entity"
)

// ResolveIssueURL turns an issue page URL into an Issue whose APIURL points
// at this client's API endpoint. Used for issues that did not come from a
// discovery batch.
func (c *Client) ResolveIssueURL(htmlURL string) (entity.Issue, error) {
	owner, repo, number, err := entity.ParseIssueURL(htmlURL)
	if err != nil {
		return entity.Issue{}, err
	}
	base := strings.TrimSuffix(c.gh.BaseURL.String(), "/")
	return entity.Issue{
		URL:    htmlURL,
		APIURL: fmt.Sprintf("%s/repos/%s/%s/issues/%s", base, owner, repo, number),
		Repo:   repo,
		Labels: []string{},
	}, nil
}

// Resolve maps each URL through ResolveIssueURL, skipping those that are
// not GitHub issue pages.
func (c *Client) Resolve(urls []string) []entity.Issue {
	out := make([]entity.Issue, 0, len(urls))
	for _, u := range urls {
		is, err := c.ResolveIssueURL(u)
		if err != nil {
			c.logger.Warn("skipping unresolvable issue url",
				slog.String("url", u),
				slog.Any("error", err))
			continue
		}
		out = append(out, is)
	}
	return out
}
