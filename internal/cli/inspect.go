package cli

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/ledgerimport/internal/core"
)

func newInspectCmd() *cobra.Command {
	var (
		flags     mappingFlags
		batchSize int
	)

	cmd := &cobra.Command{
		Use:   "inspect <file> --kind <kind> [--map Column=field ...]",
		Short: "Show the proposed column mapping and a preview of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mf, err := flags.load(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d rows, %d columns\n\n", args[0], mf.Table.TotalRows, len(mf.Table.Headers))

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "COLUMN\tFIELD")
			for _, m := range mf.Mappings {
				fmt.Fprintf(tw, "%s\t%s\n", m.SourceColumn, fieldLabel(mf.Kind, m.TargetField))
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			// Unmatched columns get the nearest labels as hints.
			for _, m := range mf.Mappings {
				if !m.Skipped() {
					continue
				}
				if hints := suggestionHints(m.SourceColumn, mf.Kind); len(hints) > 0 {
					fmt.Fprintf(out, "  %q might be: %s\n", m.SourceColumn, strings.Join(hints, ", "))
				}
			}

			var missing *core.MissingRequiredFieldsError
			if err := core.ValidateMapping(mf.Mappings, mf.Kind); errors.As(err, &missing) {
				fmt.Fprintf(out, "\nmissing required fields: %s\n", strings.Join(missing.Labels, ", "))
			}

			preview := core.BuildPreview(mf.Table, mf.Mappings, mf.Kind, batchSize)
			s := preview.Summary
			fmt.Fprintf(out, "\nrows: %d clean, %d with warnings, %d empty; %d batches of %d\n",
				s.CleanRows, s.WarningRows, s.EmptyRows, preview.BatchCount, preview.BatchSize)
			if len(preview.DuplicateTargets) > 0 {
				fmt.Fprintf(out, "fields mapped more than once (last column wins): %s\n", strings.Join(preview.DuplicateTargets, ", "))
			}
			for _, w := range preview.WarningSamples {
				for _, v := range w.Warnings {
					fmt.Fprintf(out, "  %s\n", v.Error())
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&flags.Kind, "kind", "k", "", "import kind (see importctl kinds)")
	cmd.Flags().StringArrayVarP(&flags.Overrides, "map", "m", nil, "override a mapping as Column=field (repeatable)")
	cmd.Flags().Int64Var(&flags.MaxFileSize, "max-size", DefaultMaxFileSize, "maximum file size in bytes")
	cmd.Flags().IntVar(&batchSize, "batch-size", core.DefaultBatchSize, "rows per batch")

	return cmd
}

const maxHints = 3

func suggestionHints(header string, kind core.ImportKind) []string {
	var out []string
	for _, s := range core.Suggest(header, kind) {
		if len(out) == maxHints {
			break
		}
		out = append(out, s.Field)
	}
	return out
}
