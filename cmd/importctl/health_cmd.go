package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/client"
	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/config"
	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/database"
	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/settings"
)

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check connectivity to ERPNext with the configured credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			fallback := client.Credentials{
				BaseURL:   cfg.ERPNext.BaseURL,
				APIKey:    cfg.ERPNext.APIKey,
				APISecret: cfg.ERPNext.APISecret,
			}

			var source client.CredentialSource = client.StaticCredentials(fallback)
			if cfg.UsesDatabase() {
				pool, err := database.Connect(cmd.Context(), cfg.DatabaseURL)
				if err != nil {
					return err
				}
				defer pool.Close()
				source = settings.NewResolver(settings.NewPostgresStore(pool), fallback)
			}

			res := client.New(source, client.Options{Timeout: cfg.ERPNext.Timeout}).CheckHealth(cmd.Context())
			if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if !res.Success {
				return errors.New("ERPNext is unreachable")
			}
			return nil
		},
	}
}
