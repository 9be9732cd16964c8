package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/ledgerimport/internal/core"
	"github.com/JonMunkholm/ledgerimport/internal/ingest"
)

type runOptions struct {
	mappingFlags
	Endpoint     string
	Token        string
	TenantID     string
	BatchSize    int
	BatchTimeout time.Duration
	Quiet        bool
}

func newRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run <file> --kind <kind> --endpoint <url> [--map Column=field ...]",
		Short: "Import a file into the ingestion endpoint in batches",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(opts.Endpoint) == "" {
				return errors.New("--endpoint is required (or set INGEST_BASE_URL)")
			}

			mf, err := opts.load(args[0])
			if err != nil {
				return err
			}
			if err := core.ValidateMapping(mf.Mappings, mf.Kind); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sub := ingest.NewHTTPSubmitter(opts.Endpoint, opts.Token, opts.BatchTimeout)
			importer := core.NewImporter(sub, opts.BatchSize, opts.BatchTimeout)

			var onProgress core.ProgressCallback
			if !opts.Quiet {
				errOut := cmd.ErrOrStderr()
				onProgress = func(p core.ImportProgress) {
					fmt.Fprintf(errOut, "batch %d/%d  %3d%%  (%d/%d rows)\n",
						p.Batch, p.BatchCount, p.Percent, p.ProcessedRows, p.TotalRows)
				}
			}

			result := importer.Run(ctx, core.RunRequest{
				RunID:    uuid.NewString(),
				TenantID: opts.TenantID,
				Kind:     mf.Kind,
				Records:  core.ProjectRows(mf.Table, mf.Mappings),
				Mappings: mf.Mappings,
			}, onProgress)

			return reportResult(cmd, result)
		},
	}

	cmd.Flags().StringVarP(&opts.Kind, "kind", "k", "", "import kind (see importctl kinds)")
	cmd.Flags().StringArrayVarP(&opts.Overrides, "map", "m", nil, "override a mapping as Column=field (repeatable)")
	cmd.Flags().Int64Var(&opts.MaxFileSize, "max-size", DefaultMaxFileSize, "maximum file size in bytes")
	cmd.Flags().StringVar(&opts.Endpoint, "endpoint", os.Getenv("INGEST_BASE_URL"), "ingestion base URL")
	cmd.Flags().StringVar(&opts.Token, "token", os.Getenv("INGEST_TOKEN"), "bearer token for the ingestion endpoint")
	cmd.Flags().StringVar(&opts.TenantID, "tenant", "", "tenant sent as X-Tenant-ID")
	cmd.Flags().IntVar(&opts.BatchSize, "batch-size", core.DefaultBatchSize, "rows per batch")
	cmd.Flags().DurationVar(&opts.BatchTimeout, "batch-timeout", core.DefaultBatchTimeout, "timeout for a single batch")
	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "do not print per-batch progress")

	return cmd
}

// reportResult prints the summary and returns an error when any row was not
// imported, so scripts can check the exit status.
func reportResult(cmd *cobra.Command, result core.ImportResult) error {
	out := cmd.OutOrStdout()
	sum := result.Summarize()

	fmt.Fprintf(out, "imported %d, failed %d in %s\n", sum.SuccessCount, sum.FailedCount, result.Duration.Round(time.Millisecond))
	for _, e := range sum.Errors {
		fmt.Fprintf(out, "  %s\n", e)
	}
	if more := sum.TotalErrors - len(sum.Errors); more > 0 {
		fmt.Fprintf(out, "  ... and %d more\n", more)
	}

	switch {
	case result.Cancelled:
		return core.ErrImportCancelled
	case result.FailedCount > 0:
		return fmt.Errorf("%d rows failed", result.FailedCount)
	}
	return nil
}
