package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"sourcesage/internal/domain/entity"
	"sourcesage/internal/pipeline"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printIssues(w io.Writer, issues []entity.Issue) {
	for i, it := range issues {
		fmt.Fprintf(w, "%2d. %s\n    %s", i+1, it.Title, it.URL)
		if len(it.Labels) > 0 {
			fmt.Fprintf(w, "  [%s]", strings.Join(it.Labels, ", "))
		}
		fmt.Fprintln(w)
	}
}

func printAnalyses(w io.Writer, records []entity.Analysis, reports []entity.ReportRef) {
	for _, rec := range records {
		fmt.Fprintf(w, "== %s\n\n", rec.IssueURL)
		fmt.Fprintf(w, "%s\n\n-- Plan\n\n%s\n\n-- Prompt\n\n%s\n\n", rec.Context, rec.Plan, rec.GeneratedPrompt)
	}
	for _, ref := range reports {
		fmt.Fprintf(w, "report: %s  %s\n", ref.IssueTitle, ref.DownloadURL)
	}
}

// progressPrinter writes pipeline progress lines to w.
func progressPrinter(w io.Writer) pipeline.Observer {
	return func(e pipeline.Event) {
		fmt.Fprintf(w, "[%3d%%] %-10s %s\n", e.Percent, e.Step, e.Message)
	}
}
