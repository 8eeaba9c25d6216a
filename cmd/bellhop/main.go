// Bellhop - distributed room reservation gateway.
//
// The gateway brokers client TCP sessions against a set of UDP
// inventory nodes, each owning one partition of the room inventory.
// It also exposes an admin REST API, an operator CLI, MQTT telemetry,
// and an append-only audit log of protocol activity.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bellhop-project/bellhop/internal/api"
	"github.com/bellhop-project/bellhop/internal/audit"
	"github.com/bellhop-project/bellhop/internal/cli"
	"github.com/bellhop-project/bellhop/internal/config"
	"github.com/bellhop-project/bellhop/internal/events"
	"github.com/bellhop-project/bellhop/internal/gateway"
	"github.com/bellhop-project/bellhop/internal/scheduler"
	"github.com/bellhop-project/bellhop/internal/telemetry"
	"github.com/bellhop-project/bellhop/internal/util"
)

const (
	AppName    = "Bellhop"
	AppVersion = "1.0.0"
)

func main() {
	// Initialize logger with defaults first (reconfigured after config load)
	if err := util.InitLogger("bellhop", util.DefaultLogConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.Info().
		Str("version", AppVersion).
		Str("platform", runtime.GOOS).
		Str("arch", runtime.GOARCH).
		Int("cpus", runtime.NumCPU()).
		Msg("starting Bellhop gateway")

	cfg, err := config.Load(config.DefaultConfigDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Re-initialize logger with config-based settings
	logging := cfg.GetApplicationData().Logging
	logCfg := util.LogConfig{
		Level:      logging.Level,
		Directory:  logging.Directory,
		MaxBackups: logging.MaxBackups,
		Console:    true,
	}
	if err := util.InitLogger("bellhop", logCfg); err != nil {
		log.Warn().Err(err).Msg("failed to reconfigure logger, using defaults")
	}

	validation := config.Validate(cfg)
	for _, w := range validation.Warnings {
		log.Warn().Str("field", w.Field).Msg(w.Message)
	}
	if !validation.IsValid() {
		for _, e := range validation.Errors {
			log.Error().Str("field", e.Field).Msg(e.Message)
		}
		log.Fatal().Msg("configuration validation failed, please fix the errors above")
	}

	sysInfo := util.GetSystemInfo()
	log.Info().
		Str("hostname", sysInfo.Hostname).
		Str("os", sysInfo.OS).
		Str("cpu", sysInfo.CPUModel).
		Int("cores", sysInfo.CPUCores).
		Uint64("memory_mb", sysInfo.TotalMemory).
		Msg("system information")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eventBus := events.NewEventBus()

	gw, err := gateway.New(cfg, eventBus)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create gateway")
	}

	// Audit log (optional)
	var store *audit.Store
	auditCfg := cfg.GetApplicationData().Audit
	if auditCfg.Enabled {
		store, err = audit.NewStore(auditCfg.Path)
		if err != nil {
			log.Warn().Err(err).Msg("failed to open audit log, auditing disabled")
		} else {
			store.Subscribe(eventBus)
			defer store.Close()
		}
	}

	apiServer := api.NewServer(cfg, gw, store)

	// MQTT telemetry (optional)
	var mqttHandler *telemetry.MQTTHandler
	if cfg.GetApplicationData().MQTT.Enabled {
		mqttHandler, err = telemetry.NewMQTTHandler(cfg, eventBus)
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize MQTT, telemetry disabled")
		}
	}

	sched := scheduler.NewScheduler(cfg, gw, store)
	cliHandler := cli.NewCLI(cfg, eventBus, gw, store)

	var wg sync.WaitGroup
	errCh := make(chan error, 4)

	// Gateway core: client TCP listener + backend UDP listener.
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info().
			Int("client_port", cfg.GetGateway().ClientPort).
			Int("backend_port", cfg.GetGateway().BackendPort).
			Msg("starting gateway")
		if err := startWithRetry(ctx, "gateway", gw.Start, 15); err != nil {
			log.Error().Err(err).Msg("gateway failed after retries")
			errCh <- fmt.Errorf("gateway: %w", err)
		}
	}()

	// Admin REST API (non-fatal).
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info().Int("port", cfg.GetGateway().APIPort).Msg("starting admin API server")
		if err := startWithRetry(ctx, "API server", apiServer.Start, 15); err != nil {
			log.Warn().Err(err).Msg("API server failed after retries (non-fatal)")
		}
	}()

	// MQTT telemetry (non-fatal).
	if mqttHandler != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info().Msg("starting MQTT telemetry")
			if err := mqttHandler.Start(ctx); err != nil {
				log.Warn().Err(err).Msg("MQTT telemetry failed")
			}
		}()
	}

	// Scheduler (audit pruning, stats).
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info().Msg("starting task scheduler")
		sched.Start(ctx)
	}()

	// Interactive CLI.
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info().Msg("starting interactive CLI")
		cliHandler.Start(ctx)
	}()

	// The CLI's quit command emits a shutdown event.
	shutdownCh := make(chan struct{}, 1)
	eventBus.Subscribe(events.EventShutdown, "main", func(ctx context.Context, event events.Event) error {
		select {
		case shutdownCh <- struct{}{}:
		default:
		}
		return nil
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case <-shutdownCh:
		log.Info().Msg("shutdown requested")
	case err := <-errCh:
		log.Error().Err(err).Msg("critical error, initiating shutdown")
	}

	log.Info().Msg("initiating graceful shutdown...")

	cancel()
	gw.Stop()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("all tasks stopped gracefully")
	case <-time.After(30 * time.Second):
		log.Warn().Msg("shutdown timed out after 30 seconds, forcing exit")
	}

	eventBus.Stop()

	if mqttHandler != nil {
		mqttHandler.PublishShutdown()
	}

	log.Info().Msg("Bellhop stopped")
}

// startWithRetry retries a bind-and-serve function when the port is still
// held by a previous instance.
func startWithRetry(ctx context.Context, name string, startFn func(context.Context) error, maxRetries int) error {
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = startFn(ctx)
		if lastErr == nil {
			return nil
		}
		if i < maxRetries {
			log.Warn().Err(lastErr).Str("component", name).Int("retry", i+1).Int("max", maxRetries).Msg("bind failed, retrying in 3s...")
			time.Sleep(3 * time.Second)
		}
	}
	return lastErr
}
