package main

import (
	"context"
	"os"

	"github.com/spf13/viper"

	"github.com/wledfleet/wledd/cmd/wledctl/commands"
	"github.com/wledfleet/wledd/internal/config"
	"github.com/wledfleet/wledd/internal/utils"
	"github.com/wledfleet/wledd/pkg/client"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	// Load configuration first
	cfg, err := config.Load(config.ClientConfigFilename, "")
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			logger := utils.SetupErrorLogger()
			logger.Error("failed to load configuration", "error", err)
			os.Exit(1)
		}
		// If file not found, use defaults
		cfg = &config.Config{
			API: config.APIConfig{ListenAddress: config.DefaultAPIListenAddress},
			Logging: config.LoggingConfig{
				Level:  config.LogLevelInfo,
				Format: config.LogFormatText,
			},
		}
	}

	rootCmd := commands.NewRootCommand(nil, version, commit, buildDate)

	// Parse global flags early so they can override the config before the
	// client and logger are built. Subcommand flags are unknown at this
	// point and get skipped.
	rootCmd.PersistentFlags().ParseErrorsWhitelist.UnknownFlags = true
	_ = rootCmd.PersistentFlags().Parse(os.Args[1:])

	if logLevel, _ := rootCmd.PersistentFlags().GetString("log-level"); logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat, _ := rootCmd.PersistentFlags().GetString("log-format"); logFormat != "" {
		cfg.Logging.Format = logFormat
	}

	// Set up logging with the configured level and format
	logger := utils.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)
	utils.SetAsDefaultLogger(logger)

	server := cfg.API.ListenAddress
	if serverFlag, _ := rootCmd.PersistentFlags().GetString("server"); serverFlag != "" {
		server = serverFlag
	}

	apiClient := client.NewHTTP(logger, server)

	// Rebuild the command tree with the real logger and attach the client
	// to the context every command reads it from.
	rootCmd = commands.NewRootCommand(logger, version, commit, buildDate)
	ctx := rootCmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, commands.ClientContextKey, apiClient)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
