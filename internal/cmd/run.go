package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/viper-hass/viper-hass/internal/api"
	"github.com/viper-hass/viper-hass/internal/app"
	"github.com/viper-hass/viper-hass/internal/coordinator"
	"github.com/viper-hass/viper-hass/internal/mqtt"
	"github.com/viper-hass/viper-hass/internal/server"
	"github.com/viper-hass/viper-hass/internal/transmission"
)

func runRoot(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Verbose)

	logger.WithFields(logrus.Fields{
		"version":  version,
		"accounts": len(cfg.Accounts),
		"mqtt":     cfg.HasMQTT(),
		"http":     cfg.HasHTTP(),
	}).Info("Starting viper-hass")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		logger.Info("Shutdown signal received")
		cancel()
	}()

	// Coordinators ---------------------------------------------------------------
	baseURL := cfg.APIBaseURL
	if baseURL == "" {
		baseURL = api.DefaultBaseURL
	}

	registry := coordinator.NewRegistry()
	accounts := make([]app.AccountRuntime, 0, len(cfg.Accounts))
	for _, account := range cfg.Accounts {
		client := api.NewClient(baseURL, account.Username, account.Password, logger)
		client.SetTimeout(cfg.GetAPITimeout())

		coord := coordinator.New(account.ID, client, account.Vehicles, account.GetRefreshInterval(), clock.New(), logger)
		registry.Add(coord)

		accounts = append(accounts, app.AccountRuntime{Coordinator: coord, Client: client})
	}

	// Transmitter ----------------------------------------------------------------
	var tx transmission.Transmitter
	var listener *transmission.CommandListener
	if cfg.HasMQTT() {
		suffix, err := os.Hostname()
		if err != nil || suffix == "" {
			suffix = "daemon"
		}
		mqttClient, err := mqtt.NewClient(cfg.MQTTUrl, suffix, cfg.MQTTInsecureTLS, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create MQTT client")
		}
		tx = transmission.NewMQTTTransmitter(mqttClient, cfg.DiscoveryPrefix, registry, logger)
		listener = transmission.NewCommandListener(mqttClient, logger)
		logger.Info("MQTT transmitter ready")
	} else {
		logger.Warn("No MQTT broker configured; data will only be served over HTTP")
	}

	// HTTP control surface -------------------------------------------------------
	var httpd *server.HTTPd
	if cfg.HasHTTP() {
		httpd = server.NewHTTPd(cfg.HTTPAddr, registry, logger)
	}

	// Run application ------------------------------------------------------------
	app.Run(ctx, registry, accounts, tx, listener, httpd, logger)

	logger.Info("viper-hass stopped")
	return nil
}

func setupLogger(verbose bool) *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	if verbose {
		l.SetLevel(logrus.DebugLevel)
	} else {
		l.SetLevel(logrus.InfoLevel)
	}
	return l
}
