// Package cli implements staffingctl, the operator command line for the
// procedure staffing service.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/noah-isme/procedure-staffing-api/internal/app"
	"github.com/noah-isme/procedure-staffing-api/internal/dto"
	"github.com/noah-isme/procedure-staffing-api/internal/models"
	"github.com/noah-isme/procedure-staffing-api/pkg/config"
	"github.com/noah-isme/procedure-staffing-api/pkg/logger"
)

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

type offerSweeper interface {
	Sweep(ctx context.Context) (int, error)
}

type postingCreator interface {
	CreatePosting(ctx context.Context, req dto.CreatePostingRequest, posterID string) (*models.Posting, error)
}

type accountService interface {
	IssueToken(ctx context.Context, userID string) (*models.LoginResponse, error)
	RegisterUser(ctx context.Context, email, fullName, password string, role models.UserRole) (*models.User, error)
}

// Services are the backends commands act on.
type Services struct {
	Sweeper  offerSweeper
	Postings postingCreator
	Accounts accountService
	Close    func() error
}

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// Connect builds the services from configuration. Tests swap it out.
	Connect func(ctx context.Context, opts *RootOptions) (*Services, error)
}

// NewRootCommand creates the staffingctl root command.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{Connect: connectServices})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "staffingctl",
		Short: "Operate the procedure staffing service",
		Long:  "Operator tooling for procedure postings: sweep sequential offers, seed fixtures and manage accounts.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewSweepCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))
	cmd.AddCommand(NewUserCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func connectServices(ctx context.Context, opts *RootOptions) (*Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if opts.Verbose {
		cfg.Log.Level = "debug"
	} else if cfg.Log.Level == "" || cfg.Log.Level == "info" {
		cfg.Log.Level = "warn"
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a, err := app.New(cfg, logr)
	if err != nil {
		_ = logr.Sync()
		return nil, err
	}
	return &Services{
		Sweeper:  a.Sweeper,
		Postings: a.Postings,
		Accounts: a.Auth,
		Close: func() error {
			_ = logr.Sync()
			return a.Close()
		},
	}, nil
}

// withServices connects, runs fn, and always releases connections.
func withServices(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, svc *Services) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	svc, err := opts.Connect(ctx, opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "connect", err)
	}
	if svc.Close != nil {
		defer svc.Close() //nolint:errcheck
	}
	return fn(ctx, svc)
}

// Execute runs staffingctl with the process arguments and returns the exit
// code.
func Execute(ctx context.Context) int {
	return run(ctx, &RootOptions{Connect: connectServices}, os.Args[1:], os.Stdout, os.Stderr)
}

func run(ctx context.Context, opts *RootOptions, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCommand(opts)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	if err := cmd.ExecuteContext(ctx); err != nil {
		format := opts.Format
		if !isValidFormat(format) {
			format = "text"
		}
		(&OutputFormatter{Format: format, Writer: stderr}).Failure(err)
		return GetExitCode(err)
	}
	return ExitSuccess
}
