package cli

import (
	"bufio"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"sourcesage/internal/domain/entity"
	"sourcesage/internal/pipeline"
)

func newRunCmd(load Loader, logger func() *slog.Logger) *cobra.Command {
	var (
		skills  []string
		pick    []int
		report  bool
		more    int
		noRoute bool
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the whole pipeline: find, select, analyze, then route",
		Long: `Run discovers issues for your skills, lets you pick which ones to analyze,
generates a plan and prompt for each, then either drafts proposals, looks
for more issues, or ends.

Decisions not given as flags are asked for on standard input.`,
		Example: `  sourcesage run --skills go
  sourcesage run -s python --pick 1,2 --report
  sourcesage run -s rust --pick 1 --more 1 --end`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := entity.ValidateSkills(skills); err != nil {
				return err
			}
			return withServices(cmd, load, logger, func(svc *Services) error {
				fb := &feedback{
					in:     bufio.NewReader(cmd.InOrStdin()),
					out:    cmd.ErrOrStderr(),
					pick:   pick,
					report: report,
					more:   more,
					routed: noRoute,
				}
				m := svc.Machine(
					pipeline.WithFeedback(fb),
					pipeline.WithObserver(progressPrinter(cmd.ErrOrStderr())),
				)
				st, err := m.Run(cmd.Context(), pipeline.NewState(skills), pipeline.StepDiscover)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), struct {
						Analyses []entity.Analysis  `json:"analyses"`
						Reports  []entity.ReportRef `json:"report_downloads"`
					}{st.Records, st.Reports})
				}
				if len(st.Records) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No issues analyzed")
					return nil
				}
				printAnalyses(cmd.OutOrStdout(), st.Records, st.Reports)
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&skills, "skills", "s", nil, "skills to match, comma separated")
	cmd.Flags().IntSliceVarP(&pick, "pick", "p", nil, "issues to analyze by list position, e.g. 1,3")
	cmd.Flags().BoolVar(&report, "report", false, "draft proposals after prompt generation")
	cmd.Flags().IntVar(&more, "more", 0, "look for more issues this many times before finishing")
	cmd.Flags().BoolVar(&noRoute, "end", false, "finish after prompt generation without asking")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	cmd.MarkFlagsMutuallyExclusive("report", "end")
	_ = cmd.MarkFlagRequired("skills")
	return cmd
}
