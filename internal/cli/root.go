package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"softarchitect/apps/ingest/internal/config"
	"softarchitect/apps/ingest/internal/logger"
)

var (
	cfg        *config.Config
	logLevel   string
	loadConfig = config.Load
)

var rootCmd = &cobra.Command{
	Use:   "kbingest",
	Short: "Ingest a markdown knowledge base into a vector store",
	Long: `Loads markdown files from a knowledge base directory, validates and
sanitizes them, splits them into header-aware chunks and stores the chunks
for hybrid search.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); overrides LOG_LEVEL")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func setup(cmd *cobra.Command, _ []string) error {
	c, err := loadConfig()
	if err != nil {
		return err
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
	slog.SetDefault(logger.New(os.Stderr, c.LogLevel))
	cfg = c
	return nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
