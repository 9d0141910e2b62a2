package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/noah-isme/procedure-staffing-api/internal/models"
)

const passwordEnv = "STAFFINGCTL_PASSWORD"

// UserAddOptions holds user add flags.
type UserAddOptions struct {
	*RootOptions
	Email    string
	FullName string
	Role     string
	Password string
}

// NewUserCommand groups account subcommands.
func NewUserCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}
	cmd.AddCommand(newUserAddCommand(rootOpts))
	return cmd
}

func newUserAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UserAddOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create an account",
		Long:  "Creates an ADMIN, CLINIC or ANAESTHETIST account. The password may be supplied via " + passwordEnv + ".",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserAdd(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Email, "email", "", "login email")
	cmd.Flags().StringVar(&opts.FullName, "name", "", "display name")
	cmd.Flags().StringVar(&opts.Role, "role", string(models.RoleAnaesthetist), "ADMIN, CLINIC or ANAESTHETIST")
	cmd.Flags().StringVar(&opts.Password, "password", "", "initial password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func runUserAdd(opts *UserAddOptions, cmd *cobra.Command) error {
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	password := opts.Password
	if password == "" {
		password = os.Getenv(passwordEnv)
	}
	if password == "" {
		return NewExitError(ExitCommandError, "--password or "+passwordEnv+" is required")
	}
	role := models.UserRole(strings.ToUpper(strings.TrimSpace(opts.Role)))

	return withServices(cmd, opts.RootOptions, func(ctx context.Context, svc *Services) error {
		user, err := svc.Accounts.RegisterUser(ctx, opts.Email, opts.FullName, password, role)
		if err != nil {
			return WrapExitError(ExitFailure, "create user", err)
		}
		info := models.UserInfo{ID: user.ID, Email: user.Email, FullName: user.FullName, Role: user.Role}
		return out.Success(info, fmt.Sprintf("created %s %s (%s)", user.Role, user.Email, user.ID))
	})
}
