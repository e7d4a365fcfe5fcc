// Command ruststack runs the local AWS emulator: one HTTP endpoint serving
// the S3, DynamoDB and Lambda wire protocols.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"ruststack/internal/config"
	"ruststack/internal/logging"
	"ruststack/internal/server"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:           "ruststack",
		Short:         "Local AWS emulator: S3, DynamoDB and Lambda behind one endpoint",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			applyFlags(cfg, cmd.Flags())
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configFile, "config", os.Getenv(config.EnvPrefix+"CONFIG"), "path to a YAML config file")
	flags.String("host", "", "listen address")
	flags.Uint16("port", 0, "listen port")
	flags.String("log-level", "", "log level (trace|debug|info|warn|error)")
	flags.Bool("s3", true, "enable the S3 service")
	flags.Bool("dynamodb", true, "enable the DynamoDB service")
	flags.Bool("lambda", true, "enable the Lambda service")
	flags.String("data-dir", "", "persistence root (unused by the ephemeral backend)")
	flags.Bool("strict-query-limit", false, "apply Query/Scan limits before filter expressions")
	return cmd
}

// applyFlags overlays explicitly-set flags on the loaded configuration.
// Flags outrank the environment and the file.
func applyFlags(cfg *config.Config, flags *pflag.FlagSet) {
	if flags.Changed("host") {
		cfg.Host, _ = flags.GetString("host")
	}
	if flags.Changed("port") {
		port, _ := flags.GetUint16("port")
		cfg.Port = int(port)
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("s3") {
		cfg.S3, _ = flags.GetBool("s3")
	}
	if flags.Changed("dynamodb") {
		cfg.DynamoDB, _ = flags.GetBool("dynamodb")
	}
	if flags.Changed("lambda") {
		cfg.Lambda, _ = flags.GetBool("lambda")
	}
	if flags.Changed("data-dir") {
		cfg.DataDir, _ = flags.GetString("data-dir")
	}
	if flags.Changed("strict-query-limit") {
		cfg.StrictQueryLimit, _ = flags.GetBool("strict-query-limit")
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logger, level, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if cfg.DataDir != "" {
		logger.Warn("data-dir is set but this build is ephemeral; nothing will be persisted",
			zap.String("data_dir", cfg.DataDir),
		)
	}
	if cfg.ConfigFile != "" {
		watcher, err := config.NewWatcher(cfg.ConfigFile, level, logger)
		if err != nil {
			logger.Warn("config hot reload unavailable", zap.Error(err))
		} else {
			defer watcher.Close()
		}
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.New(cfg, logger).Run(ctx)
}
