package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/procedure-staffing-api/internal/dto"
)

// SeedOptions holds seed command flags.
type SeedOptions struct {
	*RootOptions
	PostedBy string
	DryRun   bool
}

// SeedResult is the seed command payload.
type SeedResult struct {
	Created []string `json:"created"`
	DryRun  bool     `json:"dryRun,omitempty"`
}

type seedFile struct {
	Postings []dto.SeedPosting `yaml:"postings"`
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SeedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "seed <file.yaml>",
		Short: "Create postings from a YAML fixture",
		Long: `Reads a YAML document with a top-level "postings" list and creates each
entry through the same validation the API applies.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.PostedBy, "posted-by", "", "poster ID for entries without postedBy")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "parse and check the file without writing")

	return cmd
}

func runSeed(opts *SeedOptions, path string, cmd *cobra.Command) error {
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	entries, err := loadSeedFile(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "read seed file", err)
	}
	for i := range entries {
		if strings.TrimSpace(entries[i].PostedBy) == "" {
			entries[i].PostedBy = opts.PostedBy
		}
		if strings.TrimSpace(entries[i].PostedBy) == "" {
			return NewExitError(ExitCommandError, fmt.Sprintf("posting %d has no postedBy and --posted-by is empty", i+1))
		}
	}

	if opts.DryRun {
		return out.Success(SeedResult{Created: []string{}, DryRun: true}, fmt.Sprintf("%d postings parsed, nothing written", len(entries)))
	}

	return withServices(cmd, opts.RootOptions, func(ctx context.Context, svc *Services) error {
		created := make([]string, 0, len(entries))
		for i, entry := range entries {
			posting, err := svc.Postings.CreatePosting(ctx, entry.Request(), entry.PostedBy)
			if err != nil {
				return WrapExitError(ExitFailure, fmt.Sprintf("posting %d (%s)", i+1, entry.SurgeryName), err)
			}
			created = append(created, posting.ID)
		}
		return out.Success(SeedResult{Created: created}, fmt.Sprintf("created %d postings: %s", len(created), strings.Join(created, ", ")))
	})
}

func loadSeedFile(path string) ([]dto.SeedPosting, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var doc seedFile
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if len(doc.Postings) == 0 {
		return nil, fmt.Errorf("%s has no postings", path)
	}
	return doc.Postings, nil
}
