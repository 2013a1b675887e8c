package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/buzzfeed/authdispatch/internal/auth"
	"github.com/buzzfeed/authdispatch/internal/pkg/collector"
	"github.com/buzzfeed/authdispatch/internal/pkg/httpserver"
	log "github.com/buzzfeed/authdispatch/internal/pkg/logging"
)

func init() {
	log.SetServiceName("authdispatch")
}

func main() {
	logger := log.NewLogEntry()

	config, err := auth.LoadConfig()
	if err != nil {
		logger.Error(err, "error loading in config from env vars")
		os.Exit(1)
	}

	err = config.Validate()
	if err != nil {
		logger.Error(err, "error validating config")
		os.Exit(1)
	}

	err = log.SetLevel(config.LoggingConfig.Level)
	if err != nil {
		logger.Error(err, "error setting log level")
		os.Exit(1)
	}

	sc := config.MetricsConfig.StatsdConfig
	statsdClient, err := auth.NewStatsdClient(sc.Host, sc.Port)
	if err != nil {
		logger.WithStatsdHost(sc.Host).WithStatsdPort(sc.Port).Error(err, "error creating statsd client")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// we setup a runtime collector to emit stats
	go collector.New(statsdClient, 30*time.Second).Run(ctx)

	authMux, err := auth.NewAuthenticatorMux(config, statsdClient)
	if err != nil {
		logger.Error(err, "error creating new AuthenticatorMux")
		os.Exit(1)
	}

	tc := config.ServerConfig.TimeoutConfig
	srv := httpserver.New(
		fmt.Sprintf(":%d", config.ServerConfig.Port),
		auth.NewLoggingHandler(os.Stdout, authMux, config.LoggingConfig.Enable, statsdClient),
		httpserver.Timeouts{Read: tc.Read, Write: tc.Write, Shutdown: tc.Shutdown},
	)

	if err := httpserver.Run(ctx, srv, tc.Shutdown, logger); err != nil {
		logger.WithError(err).Fatal("server stopped")
	}
}
