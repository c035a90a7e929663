package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/entity"
	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/ingest"
)

func newTemplateCmd() *cobra.Command {
	var (
		module string
		outDir string
	)

	cmd := &cobra.Command{
		Use:   "template",
		Short: "Write import templates as .xlsx files",
		RunE: func(cmd *cobra.Command, args []string) error {
			templates := ingest.Templates()
			if module != "" {
				t, err := entity.Parse(module)
				if err != nil {
					return fmt.Errorf("invalid --module: %w", err)
				}
				tpl, ok := ingest.TemplateFor(t)
				if !ok {
					return fmt.Errorf("no template for %s", t)
				}
				templates = []ingest.Template{tpl}
			}

			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return err
			}
			for _, tpl := range templates {
				content, err := tpl.Build()
				if err != nil {
					return fmt.Errorf("build %s template: %w", tpl.Entity, err)
				}
				path := filepath.Join(outDir, tpl.FileName)
				if err := os.WriteFile(path, content, 0o644); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&module, "module", "", "Only this doctype (default all)")
	cmd.Flags().StringVar(&outDir, "out", ".", "Output directory")
	return cmd
}
