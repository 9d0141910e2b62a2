package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// SweepResult is the sweep command payload.
type SweepResult struct {
	Advanced int `json:"advanced"`
}

// NewSweepCommand creates the sweep command.
func NewSweepCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Advance every overdue sequential offer once",
		Long: `Walks open sequential postings and persists any offer index that has
fallen behind the clock. Safe to run repeatedly or alongside the API.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(rootOpts, cmd)
		},
	}
}

func runSweep(opts *RootOptions, cmd *cobra.Command) error {
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	return withServices(cmd, opts, func(ctx context.Context, svc *Services) error {
		advanced, err := svc.Sweeper.Sweep(ctx)
		if err != nil {
			return WrapExitError(ExitFailure, "sweep", err)
		}
		return out.Success(SweepResult{Advanced: advanced}, fmt.Sprintf("advanced %d sequential postings", advanced))
	})
}
