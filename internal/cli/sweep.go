package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

func newSweepCmd(load Loader, logger func() *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired cache entries once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServices(cmd, load, logger, func(svc *Services) error {
				n, err := svc.Sweep(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %d expired entries\n", n)
				return nil
			})
		},
	}
}
