package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"sourcesage/internal/pipeline"
	"sourcesage/internal/usecase/analyze"
)

func newAnalyzeCmd(load Loader, logger func() *slog.Logger) *cobra.Command {
	var (
		reports bool
		asJSON  bool
		quiet   bool
	)
	cmd := &cobra.Command{
		Use:   "analyze ISSUE_URL...",
		Short: "Analyze up to five GitHub issues",
		Long: `Analyze compiles each issue's context and generates a solution plan and a
coding-assistant prompt. Results are cached; cached issues are not recomputed.`,
		Example: `  sourcesage analyze https://github.com/owner/repo/issues/123 --reports`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, load, logger, func(svc *Services) error {
				var observer pipeline.Observer
				if !quiet {
					observer = progressPrinter(cmd.ErrOrStderr())
				}
				res, err := svc.Analyze(observer).Analyze(cmd.Context(), analyze.Request{
					IssueURLs:       args,
					GenerateReports: reports,
				})
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), res)
				}
				printAnalyses(cmd.OutOrStdout(), res.Records, res.Reports)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&reports, "reports", "r", false, "draft a proposal document per issue")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not print progress")
	return cmd
}
