package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"netsentry/internal/clock"
	"netsentry/internal/config"
	"netsentry/internal/coordinator"
	"netsentry/internal/discovery"
	"netsentry/internal/handler"
	"netsentry/internal/hub"
	"netsentry/internal/loader"
	"netsentry/internal/logger"
	"netsentry/internal/monitor"
	"netsentry/internal/mqtt"
	"netsentry/internal/policy"
	"netsentry/internal/repository"
	"netsentry/internal/repository/sqlite"
	"netsentry/internal/service"
	"netsentry/internal/watcher"
)

func main() {
	// Command line flags override the config file
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	mode := flag.String("mode", "", "Operating mode: passive, monitor or discovery (overrides config)")
	flag.Parse()

	cfg, configPath, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	if *mode != "" {
		cfg.Mode = config.ParseMode(*mode)
	}

	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Debug: cfg.Log.Debug})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	if configPath != "" {
		log.Info().Str("path", configPath).Msg("Config loaded")
	} else {
		log.Info().Msg("No config file found, using defaults")
	}
	log.Info().Msg(cfg.Summary())

	creds, err := cfg.ProbeCredentials()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load probe credentials")
	}

	repo, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Database.Path).Msg("Failed to open database")
	}
	defer repo.Close()
	log.Info().Str("path", cfg.Database.Path).Msg("Database opened")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clk := clock.Real{}

	if cfg.Inventory != "" {
		seedInventory(ctx, repo, clk, cfg.Inventory, log)
	}

	coord := coordinator.New(repo, clk, log, coordinator.WithLeaseTTL(cfg.Discovery.MaxScanDuration.Duration()))
	eventBus := service.NewEventBus()

	engine := newEngine(cfg, log)
	deviceSvc := service.NewDeviceService(repo, engine, eventBus, clk, log)

	pol := policy.New(policy.Config{
		DedupWindow:  cfg.Alerts.DedupWindow.Duration(),
		AutoAckAfter: cfg.Alerts.AutoAckAfter.Duration(),
	})

	health := monitor.NewHealthMonitor(repo, engine, pol, eventBus, clk, monitor.HealthConfig{
		FailureThreshold: cfg.Monitor.FailureThreshold,
		HighResponseMs:   cfg.Monitor.HighResponseMs,
	}, log)

	var system *monitor.SystemChecker
	if cfg.System.Enabled {
		system = monitor.NewSystemChecker(repo, monitor.NewHostStats(cfg.System.CPUSample.Duration()), pol, eventBus, clk, monitor.SystemConfig{
			MemoryPercent: cfg.System.MemoryPercent,
			CPUPercent:    cfg.System.CPUPercent,
			MinUptime:     cfg.System.MinUptime.Duration(),
		}, log)
	}

	scheduler := monitor.NewScheduler(monitor.SchedulerConfig{
		Health:           health,
		System:           system,
		Coordinator:      coord,
		Clock:            clk,
		SweepConcurrency: cfg.Monitor.SweepConcurrency,
		Logger:           log,
	})

	bulk := discovery.NewBulkScanner(discovery.BulkScannerConfig{
		Engine:      engine,
		Lister:      discovery.NewNmapHostLister(cfg.Discovery.NmapTimeout.Duration(), log),
		Coordinator: coord,
		Sink:        deviceSvc,
		Publisher:   eventBus,
		Clock:       clk,
		Concurrency: cfg.Discovery.BulkConcurrency,
		Logger:      log,
	})

	// Live updates over SSE and WebSocket
	eventHub := hub.New(log)
	go eventHub.Run(ctx)

	hubEvents := make(chan service.Event, 100)
	eventBus.Subscribe(hubEvents)
	go eventHub.Consume(ctx, hubEvents)

	if cfg.MQTT.Broker != "" {
		client, err := mqtt.NewClient(mqtt.ClientConfig{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
		}, log)
		if err != nil {
			log.Warn().Err(err).Str("broker", cfg.MQTT.Broker).Msg("MQTT disabled")
		} else {
			defer client.Close()

			publisher := mqtt.NewPublisher(client.Native(), mqtt.PublisherConfig{
				TopicPrefix: cfg.MQTT.TopicPrefix,
				QoS:         byte(cfg.MQTT.QoS),
			}, log)

			mqttEvents := make(chan service.Event, 100)
			eventBus.Subscribe(mqttEvents)
			go publisher.Start(ctx, mqttEvents)
		}
	}

	if cfg.Mode.Allows(config.ModeMonitor) && cfg.Monitor.Autostart {
		scheduler.Start(ctx, cfg.Monitor.IntervalMinutes)
	} else {
		log.Info().Str("mode", string(cfg.Mode)).Msg("Monitoring not started")
	}

	// Hot reload of the monitoring interval and the inventory file
	reloadPaths := []string{configPath, cfg.Inventory}
	w := watcher.New(reloadPaths, func(path string) {
		switch {
		case samePath(path, configPath):
			reloadConfig(configPath, scheduler, log)
		case samePath(path, cfg.Inventory):
			seedInventory(ctx, repo, clk, cfg.Inventory, log)
		}
	}, log)
	go func() {
		if err := w.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Warn().Err(err).Msg("File watcher stopped")
		}
	}()

	api := handler.New(handler.Config{
		Devices:         deviceSvc,
		Scheduler:       scheduler,
		Scanner:         bulk,
		ScanState:       coord,
		Mode:            cfg.Mode,
		Credentials:     creds,
		IntervalMinutes: cfg.Monitor.IntervalMinutes,
		Logger:          log,
	})

	mux := http.NewServeMux()
	api.Register(mux)
	mux.Handle("GET /events", eventHub)
	mux.HandleFunc("GET /ws", eventHub.ServeWS)

	server := &http.Server{
		Addr:        cfg.Server.Addr,
		Handler:     handler.Chain(mux, handler.Recover(log), handler.LogRequests(log)),
		ReadTimeout: 10 * time.Second,
		// Monitor trigger runs a full tick inline
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Str("mode", string(cfg.Mode)).Msg("Server listening")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	scheduler.Stop()
	// Closes SSE and WebSocket streams so Shutdown does not wait on them
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	scheduler.Wait()
	bulk.Wait()

	log.Info().Msg("Server stopped")
}

// newEngine builds the discovery engine from config
func newEngine(cfg *config.Config, log logger.Logger) *discovery.Engine {
	d := cfg.Discovery

	oui := discovery.NewOUIDatabase()
	if d.OUIPath != "" {
		n, err := oui.LoadFile(d.OUIPath)
		if err != nil {
			log.Warn().Err(err).Str("path", d.OUIPath).Msg("Failed to load OUI database, using built-in prefixes")
		} else {
			log.Info().Int("entries", n).Str("path", d.OUIPath).Msg("OUI database loaded")
		}
	}

	return discovery.NewEngine(discovery.Config{
		PingTimeout: d.PingTimeout.Duration(),
		PingRetries: d.PingRetries,
		PortTimeout: d.PortTimeout.Duration(),
		SNMPTimeout: d.SNMPTimeout.Duration(),
		SSHTimeout:  d.SSHTimeout.Duration(),
		Ports:       d.Ports,
		ARPPath:     d.ARPPath,
		OUIPath:     d.OUIPath,
		DNSServer:   d.DNSServer,
	}, discovery.WithOUIDatabase(oui), discovery.WithLogger(log))
}

func seedInventory(ctx context.Context, store repository.Store, clk clock.Clock, path string, log logger.Logger) {
	devices, err := loader.LoadInventory(path)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("Failed to load inventory")
		return
	}

	created, err := loader.Seed(ctx, store, clk, devices)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("Failed to seed inventory")
		return
	}

	log.Info().Str("path", path).Int("devices", len(devices)).Int("created", created).Msg("Inventory seeded")
}

// reloadConfig applies settings that can change without a restart
func reloadConfig(path string, scheduler *monitor.Scheduler, log logger.Logger) {
	cfg, _, err := config.LoadFromPath(path)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("Config reload failed")
		return
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Str("path", path).Msg("Reloaded config is invalid, keeping current settings")
		return
	}

	scheduler.SetInterval(cfg.Monitor.IntervalMinutes)
	log.Info().Str("path", path).Msg("Config reloaded")
}

func samePath(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}
