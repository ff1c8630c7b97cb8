package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"sourcesage/internal/domain/entity"
	"sourcesage/internal/usecase/discover"
)

func newSearchCmd(load Loader, logger func() *slog.Logger) *cobra.Command {
	var (
		skills []string
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search good first issues matching your skills",
		Example: `  sourcesage search --skills python,fastapi
  sourcesage search -s go -n 5 --json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServices(cmd, load, logger, func(svc *Services) error {
				res, err := svc.Search.Search(cmd.Context(), discover.Input{Skills: skills, MaxResults: limit})
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if asJSON {
					return writeJSON(out, res)
				}
				if res.TotalFound == 0 {
					fmt.Fprintln(out, "No issues found for the given skills")
					return nil
				}
				source := "search"
				if res.FromCache {
					source = "cache"
				}
				fmt.Fprintf(out, "%d of %d issues (from %s)\n\n", len(res.Issues), res.TotalFound, source)
				printIssues(out, res.Issues)
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&skills, "skills", "s", nil, "skills to match, comma separated")
	cmd.Flags().IntVarP(&limit, "limit", "n", entity.DefaultLimit, fmt.Sprintf("issues to show (1-%d)", entity.MaxSearchLimit))
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	_ = cmd.MarkFlagRequired("skills")
	return cmd
}
