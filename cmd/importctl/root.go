package main

import (
	"github.com/spf13/cobra"

	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/version"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "importctl",
		Short:        "Offline tools for the ERPNext importer",
		Version:      version.String(),
		SilenceUsage: true,
	}
	cmd.AddCommand(newValidateCmd(), newTemplateCmd(), newMigrateCmd(), newHealthCmd())
	return cmd
}
