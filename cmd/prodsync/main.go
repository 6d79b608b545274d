// Package main provides the prodsync binary entry point.
// Prodsync keeps a content team's project board in sync with chat:
// free-text updates become board mutations, and watch rules turn board
// state transitions into one-time chat notifications.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/c360studio/semstreams/component"
	"github.com/c360studio/semstreams/componentregistry"
	streamsconfig "github.com/c360studio/semstreams/config"
	"github.com/c360studio/semstreams/metric"
	"github.com/c360studio/semstreams/natsclient"
	"github.com/c360studio/semstreams/service"
	"github.com/c360studio/semstreams/types"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/mediaops/prodsync/board"
	"github.com/mediaops/prodsync/commands"
	appconfig "github.com/mediaops/prodsync/config"
	"github.com/mediaops/prodsync/extract"
	changewatcher "github.com/mediaops/prodsync/processor/change-watcher"
	"github.com/mediaops/prodsync/reconcile"
	"github.com/mediaops/prodsync/watch"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "prodsync"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "prodsync",
		Short: "Project board sync for content production teams",
		Long: `Prodsync keeps a project board in sync with team chat.

It provides:
- Free-text project updates reconciled against the board schema
- Watch rules that announce board state transitions exactly once
- Chat commands (/update, /watch) over the agentic dispatcher

All components communicate via NATS using the semstreams framework.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, logLevel)
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "watch",
		Short: "Run the change watcher standalone, without the service stack",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStandaloneWatcher(configPath, logLevel)
		},
	})

	return cmd
}

func run(configPath, logLevel string) error {
	logger := setupLogging(logLevel)

	cfg, err := loadConfig(configPath, logger)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()
	natsClient, err := connectToNATS(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer natsClient.Close(ctx)

	streamsCfg := buildStreamsConfig(cfg)
	if err := ensureStreams(ctx, streamsCfg, natsClient, logger); err != nil {
		return err
	}

	if err := wireCommandServices(ctx, cfg, logger); err != nil {
		return fmt.Errorf("wire chat commands: %w", err)
	}

	slog.Info("Prodsync ready",
		"version", Version,
		"collection_id", cfg.Board.CollectionID)

	metricsRegistry := metric.NewMetricsRegistry()
	platform := types.PlatformMeta{Org: "mediaops", Platform: "prodsync-local"}

	configManager, err := streamsconfig.NewConfigManager(streamsCfg, natsClient, logger)
	if err != nil {
		return fmt.Errorf("create config manager: %w", err)
	}
	if err := configManager.Start(ctx); err != nil {
		return fmt.Errorf("start config manager: %w", err)
	}
	defer configManager.Stop(5 * time.Second)

	componentRegistry := component.NewRegistry()
	if err := componentregistry.Register(componentRegistry); err != nil {
		return fmt.Errorf("register semstreams components: %w", err)
	}
	if err := changewatcher.Register(componentRegistry); err != nil {
		return fmt.Errorf("register change-watcher: %w", err)
	}

	factories := componentRegistry.ListFactories()
	slog.Info("Component factories registered", "count", len(factories))

	serviceRegistry := service.NewServiceRegistry()
	if err := service.RegisterAll(serviceRegistry); err != nil {
		return fmt.Errorf("register services: %w", err)
	}

	manager := service.NewServiceManager(serviceRegistry)
	ensureServiceManagerConfig(streamsCfg)

	svcDeps := &service.Dependencies{
		NATSClient:        natsClient,
		MetricsRegistry:   metricsRegistry,
		Logger:            logger,
		Platform:          platform,
		Manager:           configManager,
		ComponentRegistry: componentRegistry,
	}

	if err := configureAndCreateServices(streamsCfg, manager, svcDeps); err != nil {
		return err
	}

	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	slog.Info("Starting all services")
	if err := manager.StartAll(signalCtx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}
	slog.Info("All services started successfully")

	<-signalCtx.Done()
	slog.Info("Received shutdown signal")

	shutdownTimeout := 30 * time.Second
	if err := manager.StopAll(shutdownTimeout); err != nil {
		slog.Error("Error stopping services", "error", err)
	}

	slog.Info("Prodsync shutdown complete")
	return nil
}

// runStandaloneWatcher polls watch rules without the service stack:
// one poller, file-backed rules, notifications straight to NATS.
func runStandaloneWatcher(configPath, logLevel string) error {
	logger := setupLogging(logLevel)

	cfg, err := loadConfig(configPath, logger)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	boardClient := board.NewHTTPClient(cfg.Board.BaseURL, cfg.Board.Token, board.WithLogger(logger))

	store := watch.NewFileRuleStore(cfg.Watcher.RulesPath, logger)
	defaultRule := watch.BuiltinRule(
		cfg.Watcher.DefaultRule.Name,
		cfg.Watcher.DefaultRule.Property,
		cfg.Watcher.DefaultRule.Value,
		cfg.Watcher.DefaultRule.Target,
	)
	registry, err := watch.NewRegistry(ctx, store, defaultRule, logger)
	if err != nil {
		return fmt.Errorf("load watch rules: %w", err)
	}
	if err := store.Watch(ctx, func() {
		if err := registry.Reload(ctx); err != nil {
			logger.Warn("Failed to reload watch rules", "error", err)
		}
	}); err != nil {
		logger.Warn("Rules file watch unavailable", "error", err)
	}

	var sink watch.Sink
	nc, err := natsConnect(cfg)
	if err != nil {
		logger.Warn("NATS unavailable, notifications go to the log", "error", err)
		sink = &watch.LogSink{Logger: logger}
	} else {
		defer nc.Close()
		sink = watch.NewNATSSink(nc, cfg.NATS.NotifySubjectPrefix)
	}

	poller := watch.NewPoller(boardClient, cfg.Board.CollectionID, registry, sink,
		watch.WithInterval(cfg.Watcher.Interval),
		watch.WithPageSize(cfg.Watcher.PageSize),
		watch.WithDedupTTL(cfg.Watcher.DedupTTL),
		watch.WithBoardToken(cfg.Board.Token),
		watch.WithPollerLogger(logger),
		watch.WithMetrics(watch.NewMetrics(prometheus.DefaultRegisterer)),
	)

	poller.Run(ctx)
	return nil
}

// natsConnect opens a plain NATS connection for the standalone watcher.
func natsConnect(cfg *appconfig.Config) (*nats.Conn, error) {
	url := cfg.NATS.URL
	if envURL := os.Getenv("NATS_URL"); envURL != "" {
		url = envURL
	}
	return nats.Connect(url,
		nats.Name(appName),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
}

func setupLogging(logLevel string) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

func loadConfig(configPath string, logger *slog.Logger) (*appconfig.Config, error) {
	loader := appconfig.NewLoader(logger)
	if configPath != "" {
		return loader.LoadFile(configPath)
	}
	return loader.Load()
}

// wireCommandServices builds the reconciliation pipeline and rule
// registry the chat commands execute against.
func wireCommandServices(ctx context.Context, cfg *appconfig.Config, logger *slog.Logger) error {
	boardClient := board.NewHTTPClient(cfg.Board.BaseURL, cfg.Board.Token, board.WithLogger(logger))
	schemas := board.NewSchemaCache(boardClient, logger)

	store := watch.NewFileRuleStore(cfg.Watcher.RulesPath, logger)
	defaultRule := watch.BuiltinRule(
		cfg.Watcher.DefaultRule.Name,
		cfg.Watcher.DefaultRule.Property,
		cfg.Watcher.DefaultRule.Value,
		cfg.Watcher.DefaultRule.Target,
	)
	registry, err := watch.NewRegistry(ctx, store, defaultRule, logger)
	if err != nil {
		return fmt.Errorf("load watch rules: %w", err)
	}

	commands.SetServices(&commands.Services{
		Rules: registry,
		Extractor: extract.NewLLMExtractor(cfg.Extraction.Endpoint, cfg.Extraction.Model,
			extract.WithAPIKey(cfg.Extraction.APIKey),
			extract.WithExtractorLogger(logger)),
		Mapper:       reconcile.NewMapper(schemas, logger),
		Mutator:      reconcile.NewMutator(boardClient, schemas, cfg.Board.CollectionID, cfg.Board.KeyProperty, logger),
		CollectionID: cfg.Board.CollectionID,
	})
	return nil
}

// buildStreamsConfig maps the prodsync config onto the semstreams
// service configuration, with the change-watcher as the one component.
func buildStreamsConfig(cfg *appconfig.Config) *streamsconfig.Config {
	watcherConfig := map[string]any{
		"poll_interval": cfg.Watcher.Interval,
		"page_size":     cfg.Watcher.PageSize,
		"dedup_ttl":     cfg.Watcher.DedupTTL,
		"board_url":     cfg.Board.BaseURL,
		"board_token":   cfg.Board.Token,
		"collection_id": cfg.Board.CollectionID,
		"rules_path":    cfg.Watcher.RulesPath,
		"default_rule": map[string]string{
			"name":     cfg.Watcher.DefaultRule.Name,
			"property": cfg.Watcher.DefaultRule.Property,
			"value":    cfg.Watcher.DefaultRule.Value,
			"target":   cfg.Watcher.DefaultRule.Target,
		},
	}
	watcherJSON, _ := json.Marshal(watcherConfig)

	return &streamsconfig.Config{
		Version: "1.0.0",
		Platform: streamsconfig.PlatformConfig{
			Org:         "mediaops",
			ID:          "prodsync-local",
			Environment: "dev",
		},
		NATS: streamsconfig.NATSConfig{
			URLs:          []string{cfg.NATS.URL},
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
			JetStream: streamsconfig.JetStreamConfig{
				Enabled: true,
			},
		},
		Services: types.ServiceConfigs{},
		Components: streamsconfig.ComponentConfigs{
			"change-watcher": types.ComponentConfig{
				Name:    "change-watcher",
				Type:    types.ComponentTypeProcessor,
				Enabled: true,
				Config:  watcherJSON,
			},
		},
		Streams: streamsconfig.StreamConfigs{
			"WATCH": streamsconfig.StreamConfig{
				Subjects: []string{
					"watch.notify.>",
				},
				MaxAge:   "24h",
				Storage:  "file",
				Replicas: 1,
			},
		},
	}
}

func connectToNATS(ctx context.Context, cfg *appconfig.Config, logger *slog.Logger) (*natsclient.Client, error) {
	natsURL := cfg.NATS.URL
	if envURL := os.Getenv("NATS_URL"); envURL != "" {
		natsURL = envURL
	}

	logger.Info("Connecting to NATS", "url", natsURL)

	client, err := natsclient.NewClient(natsURL,
		natsclient.WithName(appName),
		natsclient.WithMaxReconnects(-1),
		natsclient.WithReconnectWait(time.Second),
		natsclient.WithCircuitBreakerThreshold(20),
		natsclient.WithHealthInterval(30*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("create NATS client: %w", err)
	}

	if err := client.Connect(ctx); err != nil {
		return nil, wrapNATSError(err, natsURL)
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := client.WaitForConnection(connCtx); err != nil {
		return nil, wrapNATSError(err, natsURL)
	}

	logger.Info("Connected to NATS", "url", natsURL)
	return client, nil
}

// wrapNATSError provides helpful guidance when NATS connection fails.
func wrapNATSError(err error, url string) error {
	errStr := err.Error()

	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no servers available") ||
		strings.Contains(errStr, "timeout") {
		return fmt.Errorf(`NATS connection failed: %w

NATS is not running at %s.

To start NATS:
  docker compose up -d nats

Or set NATS_URL environment variable to point to your NATS server.`, err, url)
	}

	return fmt.Errorf("NATS connection failed: %w", err)
}

func ensureStreams(ctx context.Context, cfg *streamsconfig.Config, natsClient *natsclient.Client, logger *slog.Logger) error {
	logger.Debug("Creating JetStream streams")
	streamsManager := streamsconfig.NewStreamsManager(natsClient, logger)

	if err := streamsManager.EnsureStreams(ctx, cfg); err != nil {
		return fmt.Errorf("ensure streams: %w", err)
	}

	logger.Debug("JetStream streams ready")
	return nil
}

// ensureServiceManagerConfig ensures service-manager config exists with defaults
func ensureServiceManagerConfig(cfg *streamsconfig.Config) {
	if cfg.Services == nil {
		cfg.Services = make(types.ServiceConfigs)
	}

	if _, exists := cfg.Services["service-manager"]; !exists {
		defaultConfig := map[string]any{
			"http_port":  8080,
			"swagger_ui": false,
			"server_info": map[string]string{
				"title":       "Prodsync API",
				"description": "project board sync - reconciliation and watch notifications",
				"version":     Version,
			},
		}
		defaultConfigJSON, _ := json.Marshal(defaultConfig)
		cfg.Services["service-manager"] = types.ServiceConfig{
			Name:    "service-manager",
			Enabled: true,
			Config:  defaultConfigJSON,
		}
	}
}

// configureAndCreateServices configures the manager and creates all services
func configureAndCreateServices(
	cfg *streamsconfig.Config,
	manager *service.Manager,
	svcDeps *service.Dependencies,
) error {
	if err := manager.ConfigureFromServices(cfg.Services, svcDeps); err != nil {
		return fmt.Errorf("configure service manager: %w", err)
	}

	for name, svcConfig := range cfg.Services {
		if name == "service-manager" {
			continue
		}

		if !svcConfig.Enabled {
			slog.Info("Service disabled in config", "name", name)
			continue
		}

		if !manager.HasConstructor(name) {
			slog.Warn("Service configured but not registered", "key", name)
			continue
		}

		if _, err := manager.CreateService(name, svcConfig.Config, svcDeps); err != nil {
			return fmt.Errorf("create service %s: %w", name, err)
		}

		slog.Info("Created service", "name", name)
	}

	return nil
}
