package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/contact-sync/internal/config"
	"github.com/sells-group/contact-sync/internal/monitoring"
	"github.com/sells-group/contact-sync/internal/pipeline"
)

var batchLimit int

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Enrich and deliver recently modified contacts not yet in the ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if batchLimit > 0 {
			cfg.Batch.Limit = batchLimit
		}

		env, err := initPipeline(ctx, "batch")
		if err != nil {
			return err
		}
		defer env.Close()

		summary, err := env.Pipeline.RunBatch(ctx, cfg.Batch.Limit)
		if summary != nil {
			zap.L().Info("batch finished",
				zap.Int("fetched", summary.Fetched),
				zap.Int("delivered", summary.Delivered),
				zap.Int("failed", summary.Failed),
			)
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			_ = enc.Encode(summary)
		}
		alertBatch(context.WithoutCancel(ctx), cfg.Monitoring, summary, env.Audit.Failures())
		return err
	},
}

// alertBatch sends alerts for a finished batch and returns how many were
// triggered.
func alertBatch(ctx context.Context, mc config.MonitoringConfig, summary *pipeline.BatchSummary, auditFailures int64) int {
	if !mc.Enabled() {
		return 0
	}
	alerter := monitoring.NewAlerter(mc)
	alerts := alerter.Evaluate(monitoring.FromBatch(summary, auditFailures))
	alerter.SendAlerts(ctx, alerts)
	return len(alerts)
}

func init() {
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max number of contacts to fetch (default from config)")
	rootCmd.AddCommand(batchCmd)
}
