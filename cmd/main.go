package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"mail2mem/internal/app"
	"mail2mem/internal/config"
	"mail2mem/internal/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configFile string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "mail2mem",
	Short: "Bulk-upload processed mail records into a memory service",
	Long:  `A concurrent bulk uploader that pushes processed mail records into a memory service or S3-compatible store, with batching, retries, deduplication and a journal for retrying failed records.`,
	RunE:  runUpload,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is ./config.yaml)")

	// Store flags
	rootCmd.Flags().String("store", "memory", "Store backend (memory/s3)")
	rootCmd.Flags().String("endpoint", "", "Store endpoint")
	rootCmd.Flags().String("api-key", "", "API key for the memory service")
	rootCmd.Flags().String("access-key", "", "Access key for the s3 backend")
	rootCmd.Flags().String("secret-key", "", "Secret key for the s3 backend")
	rootCmd.Flags().Bool("secure", true, "Use HTTPS for the s3 backend")
	rootCmd.Flags().String("bucket", "", "Bucket name for the s3 backend")
	rootCmd.Flags().String("prefix", "", "Object key prefix for the s3 backend")

	// Upload flags
	rootCmd.Flags().String("input", "", "Input JSONL file (.gz supported)")
	rootCmd.Flags().Int("max-workers", 5, "Concurrent uploads per batch")
	rootCmd.Flags().Int("batch-size", 100, "Records per batch")
	rootCmd.Flags().Int("max-concurrent-batches", 4, "Batches processed at the same time")
	rootCmd.Flags().Int("retry-attempts", 3, "Store calls per record including the first")
	rootCmd.Flags().Int("retry-delay-ms", 500, "Initial retry backoff in milliseconds")
	rootCmd.Flags().Int("max-retry-delay-ms", 30000, "Retry backoff cap in milliseconds")
	rootCmd.Flags().Int("timeout-per-item-ms", 30000, "Timeout per store call in milliseconds")
	rootCmd.Flags().Bool("dedup", true, "Skip records already seen in this run")
	rootCmd.Flags().Int("progress-interval-ms", 30000, "Progress log interval in milliseconds")
	rootCmd.Flags().Bool("retry-unknown", false, "Retry unclassified store errors")
	rootCmd.Flags().Bool("drain-on-cancel", true, "Let claimed batches finish after cancellation")
	rootCmd.Flags().Bool("dry-run", false, "Load and list records without uploading")
	rootCmd.Flags().String("journal", "", "Journal database file for run history and failed records")
	rootCmd.Flags().String("retry-failed", "", "Re-upload failed records of a journaled run id (or 'last')")
	rootCmd.Flags().String("report", "", "Write the run report as JSON to this file")
	rootCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :8080)")
	rootCmd.Flags().String("log-level", "info", "Log level (debug/info/warn/error)")
}

func runUpload(cmd *cobra.Command, args []string) error {
	// Load configuration
	var err error
	cfg, err = config.Load(configFile, cmd.Flags())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	// Create application
	application, err := app.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create app: %w", err)
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info("Received shutdown signal, gracefully stopping...")
		cancel()
	}()

	// Run upload
	err = application.Run(ctx)

	// Close app resources after the run completes or is cancelled
	if closeErr := application.Close(); closeErr != nil {
		log.Error("Error closing app", zap.Error(closeErr))
	}

	return err
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
