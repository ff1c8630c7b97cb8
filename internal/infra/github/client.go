// Package github finds "good first issue" issues and fetches their details
// through the GitHub REST API.
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gh "github.com/google/go-github/v69/github"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"sourcesage/internal/domain/entity"
	"sourcesage/internal/resilience/circuitbreaker"
	"sourcesage/internal/resilience/retry"
)

// MaxComments is how many recent comments FetchDetail returns.
const MaxComments = 5

// Config holds client settings.
type Config struct {
	// Token is a personal access token. Empty uses unauthenticated access
	// with GitHub's lower rate limits.
	Token string

	// Timeout bounds every request.
	Timeout time.Duration

	// RequestsPerSecond and Burst pace outgoing requests.
	RequestsPerSecond float64
	Burst             int

	// BaseURL overrides the API endpoint (GitHub Enterprise, tests).
	BaseURL string
}

// DefaultConfig paces requests under the authenticated search limit.
func DefaultConfig() Config {
	return Config{
		Timeout:           10 * time.Second,
		RequestsPerSecond: 0.5,
		Burst:             5,
	}
}

// Client implements issue search and detail fetch.
type Client struct {
	gh      *gh.Client
	limiter *rate.Limiter
	breaker *circuitbreaker.Breaker
	retry   retry.Config
	logger  *slog.Logger
}

// NewClient builds a client from cfg.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultConfig().RequestsPerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultConfig().Burst
	}

	hc := &http.Client{Timeout: cfg.Timeout}
	if cfg.Token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
		hc = oauth2.NewClient(context.Background(), ts)
		hc.Timeout = cfg.Timeout
	}

	client := gh.NewClient(hc)
	if cfg.BaseURL != "" {
		base := cfg.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("parse github base url: %w", err)
		}
		client.BaseURL = u
	}

	return &Client{
		gh:      client,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		breaker: circuitbreaker.New(circuitbreaker.GitHub(clientError)),
		retry:   retry.GitHubConfig(),
		logger:  slog.Default(),
	}, nil
}

// Search returns up to limit open good-first-issues matching skills,
// newest first.
func (c *Client) Search(ctx context.Context, skills []string, limit int) ([]entity.Issue, error) {
	if limit <= 0 {
		limit = entity.DefaultLimit
	}
	query := BuildSearchQuery(skills)
	opts := &gh.SearchOptions{
		Sort:        "created",
		Order:       "desc",
		ListOptions: gh.ListOptions{PerPage: limit},
	}

	var result *gh.IssuesSearchResult
	err := c.do(ctx, func() error {
		res, _, err := c.gh.Search.Issues(ctx, query, opts)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("search issues %q: %w", query, err)
	}

	issues := make([]entity.Issue, 0, len(result.Issues))
	for _, it := range result.Issues {
		if len(issues) == limit {
			break
		}
		issues = append(issues, toIssue(it))
	}

	c.logger.InfoContext(ctx, "github search completed",
		slog.String("query", query),
		slog.Int("total", result.GetTotal()),
		slog.Int("returned", len(issues)))
	return issues, nil
}

// FetchDetail returns the issue's title, body and most recent comments.
// It never fails: any error yields an empty detail so context compilation
// can proceed.
func (c *Client) FetchDetail(ctx context.Context, apiURL string) entity.IssueDetail {
	owner, repo, number, err := parseAPIURL(apiURL)
	if err != nil {
		c.logger.WarnContext(ctx, "cannot parse issue api url",
			slog.String("api_url", apiURL),
			slog.Any("error", err))
		return entity.IssueDetail{}
	}

	var issue *gh.Issue
	err = c.do(ctx, func() error {
		is, _, err := c.gh.Issues.Get(ctx, owner, repo, number)
		if err != nil {
			return err
		}
		issue = is
		return nil
	})
	if err != nil {
		c.logger.WarnContext(ctx, "fetch issue failed",
			slog.String("api_url", apiURL),
			slog.Any("error", err))
		return entity.IssueDetail{}
	}

	detail := entity.IssueDetail{Title: issue.GetTitle(), Body: issue.GetBody(), Comments: []string{}}

	comments, err := c.recentComments(ctx, owner, repo, number, issue.GetComments())
	if err != nil {
		c.logger.WarnContext(ctx, "fetch issue comments failed",
			slog.String("api_url", apiURL),
			slog.Any("error", err))
		return detail
	}

	if len(comments) > MaxComments {
		comments = comments[len(comments)-MaxComments:]
	}
	for _, cm := range comments {
		detail.Comments = append(detail.Comments, cm.GetBody())
	}
	return detail
}

const commentsPerPage = 100

// recentComments returns the tail of an issue's comment thread, oldest
// first. Comments are listed in creation order, so the newest live on the
// last page; the page before it is read too when the last one is short.
// total is the issue's comment count, zero when unknown.
func (c *Client) recentComments(ctx context.Context, owner, repo string, number, total int) ([]*gh.IssueComment, error) {
	last := 1
	if total > 0 {
		last = (total-1)/commentsPerPage + 1
	}
	comments, err := c.commentPage(ctx, owner, repo, number, last)
	if err != nil {
		return nil, err
	}
	if len(comments) < MaxComments && last > 1 {
		prev, err := c.commentPage(ctx, owner, repo, number, last-1)
		if err != nil {
			return nil, err
		}
		comments = append(prev, comments...)
	}
	return comments, nil
}

func (c *Client) commentPage(ctx context.Context, owner, repo string, number, page int) ([]*gh.IssueComment, error) {
	var out []*gh.IssueComment
	err := c.do(ctx, func() error {
		list, _, err := c.gh.Issues.ListComments(ctx, owner, repo, number, &gh.IssueListCommentsOptions{
			ListOptions: gh.ListOptions{Page: page, PerPage: commentsPerPage},
		})
		out = list
		return err
	})
	return out, err
}

// do paces, retries and circuit-breaks one API call.
func (c *Client) do(ctx context.Context, fn func() error) error {
	return retry.WithBackoff(ctx, c.retry, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		return c.breaker.Do(func() error {
			return toHTTPError(fn())
		})
	})
}

// toHTTPError exposes the response status so retry.IsRetryable can see it.
func toHTTPError(err error) error {
	if err == nil {
		return nil
	}
	var rle *gh.RateLimitError
	if errors.As(err, &rle) {
		return &retry.HTTPError{
			StatusCode: http.StatusTooManyRequests,
			Message:    rle.Message,
			RetryAfter: time.Until(rle.Rate.Reset.Time),
		}
	}
	var are *gh.AbuseRateLimitError
	if errors.As(err, &are) {
		he := &retry.HTTPError{StatusCode: http.StatusTooManyRequests, Message: are.Message}
		if are.RetryAfter != nil {
			he.RetryAfter = *are.RetryAfter
		}
		return he
	}
	var er *gh.ErrorResponse
	if errors.As(err, &er) && er.Response != nil {
		return &retry.HTTPError{StatusCode: er.Response.StatusCode, Message: er.Message}
	}
	return err
}

// clientError reports a 4xx other than 429. A bad query or a missing issue
// says nothing about GitHub's health.
func clientError(err error) bool {
	var he *retry.HTTPError
	if !errors.As(err, &he) {
		return errors.Is(err, context.Canceled)
	}
	return he.StatusCode >= 400 && he.StatusCode < 500 && he.StatusCode != http.StatusTooManyRequests
}

func toIssue(it *gh.Issue) entity.Issue {
	labels := make([]string, 0, len(it.Labels))
	for _, l := range it.Labels {
		labels = append(labels, l.GetName())
	}
	repo := it.GetRepositoryURL()
	if i := strings.LastIndex(repo, "/"); i >= 0 {
		repo = repo[i+1:]
	}
	return entity.Issue{
		URL:    it.GetHTMLURL(),
		APIURL: it.GetURL(),
		Title:  it.GetTitle(),
		Repo:   repo,
		Labels: labels,
	}
}

// parseAPIURL extracts owner, repo and number from
// https://api.github.com/repos/{owner}/{repo}/issues/{number}.
func parseAPIURL(apiURL string) (string, string, int, error) {
	u, err := url.Parse(apiURL)
	if err != nil {
		return "", "", 0, err
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+4 < len(parts); i++ {
		if parts[i] != "repos" || parts[i+3] != "issues" {
			continue
		}
		n, err := strconv.Atoi(parts[i+4])
		if err != nil {
			return "", "", 0, fmt.Errorf("issue number %q: %w", parts[i+4], err)
		}
		return parts[i+1], parts[i+2], n, nil
	}
	return "", "", 0, fmt.Errorf("not an issue api url: %s", apiURL)
}
