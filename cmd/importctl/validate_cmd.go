package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/entity"
	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/importer"
	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/ingest"
)

type validateOutput struct {
	File     string         `json:"file"`
	Module   entity.Type    `json:"module"`
	RowCount int            `json:"rowCount"`
	Columns  []string       `json:"columns"`
	Checksum string         `json:"checksum"`
	IsValid  bool           `json:"isValid"`
	Errors   []ingest.Issue `json:"errors"`
	Warnings []ingest.Issue `json:"warnings"`
}

func newValidateCmd() *cobra.Command {
	var (
		module    string
		encoding  string
		delimiter string
		noMap     bool
	)

	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Parse, map and validate a spreadsheet without importing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := entity.Parse(module)
			if err != nil {
				return fmt.Errorf("invalid --module: %w", err)
			}
			content, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			svc := importer.NewService(nil, nil, nil, importer.ServiceOptions{})
			parsed, _, result, err := svc.ValidateOnly(importer.UploadRequest{
				Filename:    filepath.Base(args[0]),
				EntityType:  t,
				Content:     content,
				Encoding:    encoding,
				Delimiter:   delimiter,
				SkipMapping: noMap,
			})
			if err != nil {
				return err
			}

			out := validateOutput{
				File:     args[0],
				Module:   t,
				RowCount: parsed.RowCount,
				Columns:  parsed.Columns,
				Checksum: importer.Checksum(content),
				IsValid:  result.IsValid,
				Errors:   result.Errors,
				Warnings: result.Warnings,
			}
			if err := writeJSON(cmd.OutOrStdout(), out); err != nil {
				return err
			}
			if !result.IsValid {
				return fmt.Errorf("validation failed with %d error(s)", len(result.Errors))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&module, "module", "", "ERPNext doctype, e.g. Item or sales-order (required)")
	cmd.Flags().StringVar(&encoding, "encoding", "", "CSV encoding (utf-8, windows-1251)")
	cmd.Flags().StringVar(&delimiter, "delimiter", "", "CSV delimiter (default ,)")
	cmd.Flags().BoolVar(&noMap, "no-map", false, "Treat headers as canonical field names")
	_ = cmd.MarkFlagRequired("module")
	return cmd
}
