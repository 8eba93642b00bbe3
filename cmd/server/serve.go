package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nortonjulian/chatforia-signal/internal/app"
	"github.com/nortonjulian/chatforia-signal/internal/config"
	chatlog "github.com/nortonjulian/chatforia-signal/internal/log"
)

var (
	serveAddr string
	jsonLogs  bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the signaling server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		logger := chatlog.New(cfg.LogLevel)
		if jsonLogs {
			logger = chatlog.NewJSON(cfg.LogLevel)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		application, err := app.New(&cfg, logger)
		if err != nil {
			logger.Error().Err(err).Msg("failed to initialize application")
			return err
		}

		logger.Info().Str("addr", cfg.Addr).Msg("starting chatforia signaling server")
		if err := application.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("server exited with error")
			return err
		}
		logger.Info().Msg("server stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "HTTP listen address (overrides config)")
	serveCmd.Flags().BoolVar(&jsonLogs, "json-logs", false, "emit JSON logs instead of console output")
}

// loadConfig resolves defaults < file < env < flags.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	bootLogger := chatlog.New("info")
	cfg, path, err := config.Load(bootLogger, cfgFile)
	if err != nil {
		return cfg, err
	}
	bootLogger.Debug().Str("path", path).Msg("config loaded")

	overrides := config.Config{}
	if cmd.Flags().Changed("addr") {
		overrides.Addr = serveAddr
	}
	if cmd.Flags().Changed("log-level") {
		overrides.LogLevel = logLevel
	}
	cfg.UpdateFrom(overrides)
	return cfg, nil
}
