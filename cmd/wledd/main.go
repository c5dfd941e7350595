package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/wledfleet/wledd/internal/config"
	"github.com/wledfleet/wledd/internal/server"
	"github.com/wledfleet/wledd/internal/utils"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	v := viper.New()
	v.SetEnvPrefix("WLEDD")
	v.AutomaticEnv()

	pflag.String("log-level", "info", "Log level (debug, info, warn, error)")
	pflag.String("log-format", "text", "Log format (text, json)")
	pflag.String("config", "", "Path to config file")
	pflag.String("listen", "", "HTTP API listen address (overrides config)")
	pflag.Int("discovery-interval", 0, "Discovery interval in seconds (overrides config)")
	pflag.Parse()

	// Bind flags to Viper so flags take precedence over file and env.
	v.BindPFlag("logging.level", pflag.Lookup("log-level"))
	v.BindPFlag("logging.format", pflag.Lookup("log-format"))
	v.BindPFlag("api.listen_address", pflag.Lookup("listen"))
	v.BindPFlag("discovery.interval", pflag.Lookup("discovery-interval"))

	cfg, err := config.Load(config.DaemonConfigFilename, v.GetString("config"))
	if err != nil {
		logger := utils.SetupErrorLogger()
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	if lvl := v.GetString("logging.level"); lvl != "" {
		cfg.Logging.Level = lvl
	}
	if format := v.GetString("logging.format"); format != "" {
		cfg.Logging.Format = format
	}
	if listen := v.GetString("api.listen_address"); listen != "" {
		cfg.API.ListenAddress = listen
	}
	if interval := v.GetInt("discovery.interval"); interval > 0 {
		cfg.Discovery.IntervalSeconds = interval
	}

	logger := utils.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)
	utils.SetAsDefaultLogger(logger)

	logger.Info("Starting wledd",
		"version", version,
		"commit", commit,
		"buildDate", buildDate,
	)

	srv, err := server.New(logger, cfg, server.BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildDate: buildDate,
	})
	if err != nil {
		logger.Error("Failed to initialize server", "error", err)
		os.Exit(1)
	}

	if err := srv.Start(); err != nil {
		logger.Error("Failed to start server", "error", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("Shutting down...")

	srv.Stop()
}
