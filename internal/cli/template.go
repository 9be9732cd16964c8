package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/ledgerimport/internal/core"
)

type templateOptions struct {
	Product string
	OutPath string
}

func newTemplateCmd() *cobra.Command {
	var opts templateOptions

	cmd := &cobra.Command{
		Use:   "template <kind> [--out <path>|--out -]",
		Short: "Write a CSV template for an import kind",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := core.ParseKind(args[0])
			if err != nil {
				return err
			}

			tmpl := core.GenerateTemplate(kind, opts.Product)

			if opts.OutPath == "-" {
				_, err := cmd.OutOrStdout().Write(tmpl.Content)
				return err
			}

			path := opts.OutPath
			if path == "" {
				path = tmpl.FileName
			} else if info, err := os.Stat(path); err == nil && info.IsDir() {
				path = filepath.Join(path, tmpl.FileName)
			}

			if err := os.WriteFile(path, tmpl.Content, 0o644); err != nil {
				return fmt.Errorf("write template: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Product, "product", os.Getenv("IMPORT_PRODUCT_NAME"), "product name used in the file name")
	cmd.Flags().StringVarP(&opts.OutPath, "out", "o", "", "output file or directory (\"-\" for stdout)")

	return cmd
}
