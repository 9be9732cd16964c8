// Package cli implements importctl, the command-line front end for mapped
// imports. It uses the same parser, auto-mapper and batch importer as the
// HTTP server, without sessions.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/ledgerimport/internal/core"
)

// NewRootCmd builds the importctl command tree.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "importctl",
		Short:         "Map spreadsheet columns to ledger records and load them in batches",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newKindsCmd())
	cmd.AddCommand(newTemplateCmd())
	cmd.AddCommand(newInspectCmd())
	cmd.AddCommand(newRunCmd())
	return cmd
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorText(err))
		os.Exit(1)
	}
}

// errorText shows known errors with their support code, followed by the
// technical detail. Flag and usage errors are printed as they are.
func errorText(err error) string {
	if !core.IsUserFacing(err) {
		return err.Error()
	}
	return fmt.Sprintf("%s\n  %v", core.FormatUserError(err), err)
}
