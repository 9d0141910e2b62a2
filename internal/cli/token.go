package cli

import (
	"context"

	"github.com/spf13/cobra"
)

// NewTokenCommand creates the token command.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "token <user-id>",
		Short: "Mint an access token for an active user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToken(rootOpts, args[0], cmd)
		},
	}
}

func runToken(opts *RootOptions, userID string, cmd *cobra.Command) error {
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	return withServices(cmd, opts, func(ctx context.Context, svc *Services) error {
		res, err := svc.Accounts.IssueToken(ctx, userID)
		if err != nil {
			return WrapExitError(ExitFailure, "issue token", err)
		}
		return out.Success(res, res.AccessToken)
	})
}
