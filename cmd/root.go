package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/contact-sync/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "contact-sync",
	Short: "Contact enrichment and partner delivery pipeline",
	Long:  "Validates contact phone numbers, resolves addresses by reverse phone lookup, writes them back to the CRM and delivers complete contacts to the partner.",
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
