// Command verifier runs the central verification service.
//
// The verifier holds the service registry and the replay cache, and
// exposes registration and message verification over HTTP.
//
// # Configuration File
//
// Create a YAML file with verifier settings:
//
//	http_addr: ":8080"
//	metrics_addr: ":9090"
//	protocol:
//	  freshness_window: 5m
//	  replay_horizon: 1h
//	  sweep_interval: 1m
//	postgres:
//	  host: "localhost"
//	  port: 5432
//	  user: "verifier"
//	  password: "secret"
//	  database: "identities"
//
// # Endpoints
//
//   - POST /register - Declare a service's public key
//   - POST /verify - Verify a signed message
//   - GET /health - Health check
//   - GET /livez, /readyz, /drain, /undrain - Probes and drain control
//
// # Usage
//
//	go run ./cmd/verifier --config=verifier.yaml
//	go run ./cmd/verifier --addr=:8080
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anirbankanungoe/IoT-Blockchain/api/httpserver"
	"github.com/anirbankanungoe/IoT-Blockchain/cmd/common"
	"github.com/anirbankanungoe/IoT-Blockchain/services"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to YAML config file")
		addr        = flag.String("addr", "", "HTTP listen address")
		metricsAddr = flag.String("metrics-addr", "", "Metrics listen address")
		debug       = flag.Bool("debug", false, "Enable debug logging")
	)
	flag.Parse()

	cfg, err := loadConfiguration(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.HTTPAddr = *addr
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}
	if *debug {
		cfg.LogDebug = true
	}

	if err := run(cfg); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfiguration(configPath string) (*common.Config, error) {
	if configPath != "" {
		return common.LoadConfig(configPath)
	}
	return common.DefaultConfig(), nil
}

func run(cfg *common.Config) error {
	log := cfg.Logger()

	var store services.RegistryStore
	if cfg.Postgres != nil {
		pg, err := services.NewPostgresStore(cfg.Postgres)
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		defer pg.Close()
		store = pg
		log.Info("identity persistence enabled", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	} else {
		log.Warn("no postgres configured, identities are held in memory only")
	}

	registry, err := services.NewRegistry(store, log)
	if err != nil {
		return err
	}

	cache := services.NewReplayCache()
	verifier := services.NewVerifier(registry, cache, cfg.Protocol, log)
	handler := services.NewHandler(registry, verifier, log)

	srv, err := httpserver.New(&httpserver.HTTPServerConfig{
		ListenAddr:               cfg.HTTPAddr,
		MetricsAddr:              cfg.MetricsAddr,
		Log:                      log,
		DrainDuration:            5 * time.Second,
		GracefulShutdownDuration: 10 * time.Second,
		ReadTimeout:              15 * time.Second,
		WriteTimeout:             15 * time.Second,
	}, handler)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go cache.RunSweeper(ctx, cfg.Protocol.SweepInterval, cfg.Protocol.ReplayHorizon, log)

	srv.RunInBackground()
	log.Info("verifier running", "addr", cfg.HTTPAddr)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info("shutting down verifier")
	srv.Shutdown()
	return nil
}
