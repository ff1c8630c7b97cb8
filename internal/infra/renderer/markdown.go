// Package renderer writes drafted proposals to the downloads directory as
// Markdown files and hands back their public download URLs.
package renderer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const (
	// DownloadPath is the route prefix that serves rendered files.
	DownloadPath = "/api/download/"

	defaultHeading = "# Google Summer of Code Project Proposal"
)

// ErrInvalidFilename is returned for names the renderer could not have produced.
var ErrInvalidFilename = errors.New("invalid proposal filename")

var filenamePattern = regexp.MustCompile(`^proposal_[0-9a-f]{8}\.md$`)

// Markdown renders proposals into Dir.
type Markdown struct {
	Dir     string
	BaseURL string
}

// NewMarkdown creates dir if needed.
func NewMarkdown(dir, baseURL string) (*Markdown, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create downloads dir: %w", err)
	}
	return &Markdown{Dir: dir, BaseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Render writes text to a new proposal_<8 hex>.md file and returns its
// download URL.
func (m *Markdown) Render(ctx context.Context, title, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := newFilename()
	if err := os.WriteFile(filepath.Join(m.Dir, name), []byte(document(title, text)), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}

	slog.InfoContext(ctx, "proposal rendered",
		slog.String("file", name),
		slog.String("issue_title", title))
	return m.BaseURL + DownloadPath + name, nil
}

// Path returns the on-disk path of a rendered file. Names that do not match
// the generated pattern are rejected, which also rules out path traversal.
func (m *Markdown) Path(name string) (string, error) {
	if !filenamePattern.MatchString(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidFilename, name)
	}
	return filepath.Join(m.Dir, name), nil
}

func newFilename() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "proposal_" + id[:8] + ".md"
}

// document makes sure the file opens with a level-one heading and records
// the issue it was written for.
func document(title, text string) string {
	var b strings.Builder
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "# ") {
		b.WriteString(defaultHeading)
		b.WriteString("\n\n")
	}
	b.WriteString(text)
	b.WriteString("\n")
	if title != "" {
		b.WriteString("\n---\n_Issue: ")
		b.WriteString(title)
		b.WriteString("_\n")
	}
	return b.String()
}
