package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/darren-owldoor/owldoor-geocoder/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "owldoor-geocoder",
	Short: "Bulk CSV geocoder",
	Long:  "Geocodes CSV files of any size across interchangeable providers (Nominatim, Google, Mapbox), with per-provider rate limiting and chunked checkpoint/resume.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
