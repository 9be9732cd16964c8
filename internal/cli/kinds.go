package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/ledgerimport/internal/core"
)

func newKindsCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "kinds",
		Short: "List import kinds and their target fields",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)

			if !verbose {
				fmt.Fprintln(tw, "KIND\tLABEL\tFIELDS\tREQUIRED")
				for _, def := range core.All() {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", def.Kind, def.Label, len(def.Fields), strings.Join(requiredLabels(def), ", "))
				}
				return tw.Flush()
			}

			for _, def := range core.All() {
				fmt.Fprintf(tw, "%s (%s)\n", def.Kind, def.Label)
				for _, f := range def.Fields {
					req := ""
					if f.Required {
						req = "required"
					}
					fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", f.Field, f.Label, f.Type, req)
				}
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "list every field of every kind")

	return cmd
}

func requiredLabels(def core.KindDefinition) []string {
	var out []string
	for _, f := range def.Fields {
		if f.Required {
			out = append(out, f.Label)
		}
	}
	return out
}
