package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"parcelscraper/internal/components/telemetry"
	"parcelscraper/lib/serviceutil"
	libtelemetry "parcelscraper/lib/telemetry"

	"github.com/spf13/cobra"
)

var (
	configPath *string
	verbose    *bool
	logFile    *string
)

// state shared by the subcommands once the root command has set up logging
var (
	config    Config
	tel       telemetry.API = telemetry.SlogAPI{}
	logCloser io.Closer
	providers libtelemetry.Telemetry
)

func init() {
	configPath = rootCmd.PersistentFlags().String("config", "parcelscraper.json5", "The config file, a <name>.local.json5 next to it overrides it.")
	verbose = rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log debug output.")
	logFile = rootCmd.PersistentFlags().String("log-file", "", "Append JSON logs to this file (defaults to log_file of the config).")
}

var rootCmd = &cobra.Command{
	Use:           "parcelscraper",
	Short:         "parcelscraper scrapes residential sales from a county auditor site into CSV extracts.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		config, err = loadConfig(*configPath)
		if err != nil {
			return err
		}

		path := config.LogFile
		if *logFile != "" {
			path = *logFile
		}
		logCloser, err = libtelemetry.InitSlog(*verbose, path)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}

		providers, err = libtelemetry.SetupFromEnv(cmd.Context(), "parcelscraper")
		if err != nil && !os.IsNotExist(err) {
			slog.Warn("failed to setup telemetry", "err", err)
		}
		libtelemetry.InstrumentPerfStats(cmd.Context())
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(ctx); err != nil {
			slog.Warn("failed to flush telemetry", "err", err)
		}
		if logCloser != nil {
			logCloser.Close()
		}
	},
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		serviceutil.Fatal("parcelscraper failed", err, logCloser)
	}
}
