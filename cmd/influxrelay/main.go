package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	flag "github.com/spf13/pflag"

	"influxrelay/internal/config"
	"influxrelay/internal/httpapi"
	"influxrelay/internal/influx"
	"influxrelay/internal/logger"
	"influxrelay/internal/metrics"
	"influxrelay/internal/source"
	"influxrelay/internal/uploader"
)

// Build information. These will be set by the build script
var (
	version   = "dev"
	gitCommit = "none"
	buildTime = "unknown"
)

func main() {
	// Parse command line flags
	configPath := flag.StringP("config", "c", "config/config.json", "Path to configuration file (.json or .yaml)")
	showVersion := flag.BoolP("version", "v", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("influxrelay %s (commit %s, built %s)\n", version, gitCommit, buildTime)
		return
	}

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "data will not be uploaded: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewLogger(&cfg.Log)
	if err != nil {
		panic(fmt.Errorf("failed to create logger: %w", err))
	}
	defer log.Sync()

	// Initialize metrics
	reg := prometheus.NewRegistry()
	m, err := metrics.NewMetrics(reg)
	if err != nil {
		log.Fatal("failed to create metrics", "error", err)
	}
	m.SetBuildInfo(version, gitCommit, buildTime)

	workerCfg, err := uploader.NewWorkerConfig(cfg)
	if err != nil {
		log.Fatal("invalid upload configuration", "error", err)
	}

	_, _, _, timeout := cfg.Upload.Durations()
	client, err := influx.New(cfg.Influx, timeout, "influxrelay/"+version)
	if err != nil {
		log.Fatal("failed to create influx client", "error", err)
	}
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Influx.CreateDatabase {
		if err := influx.CreateDatabase(ctx, client, timeout); err != nil {
			log.Error("create database failed", "database", cfg.Influx.Database, "error", err)
		}
	}

	var opts []uploader.Option
	if cfg.CircuitBreaker.Enabled {
		cb := uploader.NewCircuitBreaker(uploader.NewBreakerConfig("influx", cfg.CircuitBreaker), log, m)
		opts = append(opts, uploader.WithBreaker(cb))
	}

	svc := uploader.NewService(workerCfg, uploader.Binding(cfg.Influx.Binding), client, m, log, opts...)
	svc.Start(ctx)

	checks := map[string]httpapi.HealthCheck{}

	var mqttSource *source.MQTTSource
	if cfg.Source.MQTT.Enabled {
		mqttSource, err = source.NewMQTTSource(cfg.Source.MQTT, svc, log)
		if err != nil {
			log.Fatal("failed to create mqtt source", "error", err)
		}
		if err := mqttSource.Start(); err != nil {
			log.Fatal("failed to start mqtt source", "error", err)
		}
		checks["mqtt"] = mqttSource.IsConnected
	}

	var httpServer *httpapi.Server
	if cfg.HTTP.Enabled {
		httpServer = httpapi.NewServer(cfg.HTTP, httpapi.Deps{
			Gatherer: reg,
			Metrics:  m,
			Sink:     svc,
			Checks:   checks,
			Build:    httpapi.BuildInfo{Version: version, Commit: gitCommit, BuildTime: buildTime},
			Logger:   log,
		})
		httpServer.Start()
	}

	log.Info("data will be uploaded",
		"server", cfg.Influx.ServerURL,
		"database", cfg.Influx.Database,
		"binding", cfg.Influx.Binding,
		"version", version)

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if mqttSource != nil {
		mqttSource.Stop()
	}
	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("http server shutdown error", "error", err)
		}
	}
	if err := svc.Stop(shutdownCtx); err != nil {
		log.Error("uploader shutdown error", "error", err)
	}
	log.Info("shutdown complete")
}
