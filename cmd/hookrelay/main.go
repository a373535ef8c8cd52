package main

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	glog "github.com/goliatone/go-logger/glog"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/goliatone/go-hookrelay/adapters/gocommand"
	"github.com/goliatone/go-hookrelay/adapters/prommetrics"
	"github.com/goliatone/go-hookrelay/broadcast"
	"github.com/goliatone/go-hookrelay/core"
	"github.com/goliatone/go-hookrelay/dispatch"
	hookmigrations "github.com/goliatone/go-hookrelay/migrations"
	"github.com/goliatone/go-hookrelay/providers"
	"github.com/goliatone/go-hookrelay/providers/github"
	"github.com/goliatone/go-hookrelay/providers/gitlab"
	"github.com/goliatone/go-hookrelay/providers/sentry"
	"github.com/goliatone/go-hookrelay/providers/stripe"
	"github.com/goliatone/go-hookrelay/providers/zoom"
	sqlstore "github.com/goliatone/go-hookrelay/store/sql"
	"github.com/goliatone/go-hookrelay/transport"
)

type persistenceConfig struct {
	debug  bool
	driver string
	server string
}

func (c persistenceConfig) GetDebug() bool { return c.debug }

func (c persistenceConfig) GetDriver() string { return c.driver }

func (c persistenceConfig) GetServer() string { return c.server }

func (c persistenceConfig) GetPingTimeout() time.Duration { return 5 * time.Second }

func (c persistenceConfig) GetOtelIdentifier() string { return "go-hookrelay" }

// envConfigLoader feeds the cfgx layer from process environment.
type envConfigLoader struct{}

func (envConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	raw := map[string]any{}
	if v := strings.TrimSpace(os.Getenv("SERVICE_NAME")); v != "" {
		raw["service_name"] = v
	}
	if v := strings.TrimSpace(os.Getenv("PLATFORMS")); v != "" {
		raw["platforms"] = splitCSV(v)
	}
	if v := strings.TrimSpace(os.Getenv("LOOKUP_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("main: invalid LOOKUP_TIMEOUT %q: %w", v, err)
		}
		raw["lookup_timeout"] = d
	}
	return raw, nil
}

func main() {
	logger := glog.Ensure(nil)
	if err := run(logger); err != nil {
		logger.Error("gateway exited with error", "error", err)
		os.Exit(1)
	}
}

func run(logger core.Logger) error {
	ctx := context.Background()

	defaults := core.DefaultConfig()
	loaded, err := core.NewCfgxConfigProvider(envConfigLoader{}).Load(ctx, defaults)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg, err := core.GoOptionsResolver{}.Resolve(defaults, loaded, core.Config{})
	if err != nil {
		return fmt.Errorf("resolve config: %w", err)
	}

	client, err := openPersistence(ctx, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	baseStore, err := sqlstore.NewProxyStore(client)
	if err != nil {
		return fmt.Errorf("build proxy store: %w", err)
	}
	store, err := buildCachedStore(baseStore)
	if err != nil {
		return fmt.Errorf("build cached store: %w", err)
	}

	metrics := prommetrics.New()
	recorder := core.NewOutcomeRecorder(logger, metrics)

	registry := providers.NewRegistry()
	registry.Register("github", github.New)
	registry.Register("gitlab", gitlab.New)
	registry.Register("stripe", stripe.New)
	registry.Register("sentry", sentry.New)
	registry.Register("zoom", zoom.New)

	hub := broadcast.NewHub()
	target, closeTarget, err := buildTarget(hub)
	if err != nil {
		return err
	}
	defer closeTarget()

	broadcaster := broadcast.New(broadcast.Config{
		Store:         store,
		Registry:      registry,
		Target:        target,
		Recorder:      recorder,
		Logger:        logger,
		CounterRetry:  cfg.CounterRetry.Policy(),
		DeliveryRetry: cfg.BroadcastRetry.Policy(),
	})
	defer broadcaster.Wait()

	pipeline, err := dispatch.NewPipeline(dispatch.PipelineConfig{
		Store:         store,
		Registry:      registry,
		Recorder:      recorder,
		Logger:        logger,
		Platforms:     cfg.Platforms,
		LookupTimeout: cfg.LookupTimeout,
	})
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	commandAdapter := gocommand.NewRegistryAdapter(nil)
	subscriptions, err := gocommand.WireGateway(commandAdapter, gocommand.GatewayDeps{
		Dispatch:  pipeline,
		Scheduler: broadcaster,
		Writer:    store,
	})
	if err != nil {
		return fmt.Errorf("wire commands: %w", err)
	}
	defer func() {
		for _, sub := range subscriptions {
			sub.Unsubscribe()
		}
	}()
	if err := commandAdapter.Initialize(); err != nil {
		return fmt.Errorf("initialize command registry: %w", err)
	}

	var bridge transport.ConnectionBridge
	if upstream := strings.TrimSpace(os.Getenv("SOCKET_UPSTREAM_URL")); upstream != "" {
		bridge, err = transport.NewUpstreamBridge(upstream)
		if err != nil {
			return fmt.Errorf("socket bridge: %w", err)
		}
	}

	handler, err := transport.NewHandler(transport.HandlerConfig{
		Dispatcher: pipeline,
		Store:      store,
		Scheduler:  broadcaster,
		Hub:        hub,
		Bridge:     bridge,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("build handler: %w", err)
	}

	router := chi.NewRouter()
	router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	router.Handle("/metrics", metrics.Handler())
	handler.Routes(router)

	server := &http.Server{
		Addr:         ":" + getEnv("PORT", "8080"),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // streaming connections stay open
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("gateway listening",
			"addr", server.Addr,
			"service", cfg.ServiceName,
			"platforms", strings.Join(pipelinePlatforms(cfg, registry), ","),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	broadcaster.Wait()
	logger.Info("shutdown complete")
	return nil
}

func openPersistence(ctx context.Context, logger core.Logger) (*persistence.Client, error) {
	databaseURL := getEnv("DATABASE_URL", "file:hookrelay.db?cache=shared&_foreign_keys=on")
	usePostgres := strings.HasPrefix(databaseURL, "postgres://") ||
		strings.HasPrefix(databaseURL, "postgresql://")

	driver := "sqlite3"
	migrationDialect := hookmigrations.DialectSQLite
	if usePostgres {
		driver = "postgres"
		migrationDialect = hookmigrations.DialectPostgres
	}

	sqlDB, err := sql.Open(driver, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if !usePostgres {
		sqlDB.SetMaxOpenConns(1)
	}

	cfg := persistenceConfig{
		debug:  os.Getenv("DB_DEBUG") == "true",
		driver: driver,
		server: databaseURL,
	}
	var client *persistence.Client
	if usePostgres {
		client, err = persistence.New(cfg, sqlDB, pgdialect.New())
	} else {
		client, err = persistence.New(cfg, sqlDB, sqlitedialect.New())
	}
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("persistence client: %w", err)
	}

	_, err = hookmigrations.Register(ctx, func(_ context.Context, dialect string, _ string, fsys fs.FS) error {
		if dialect != migrationDialect {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, hookmigrations.WithValidationTargets(migrationDialect))
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("register migrations: %w", err)
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database ready", "driver", driver)
	return client, nil
}

func buildCachedStore(base *sqlstore.ProxyStore) (*sqlstore.CachedProxyStore, error) {
	config := repositorycache.DefaultConfig()
	if v := strings.TrimSpace(os.Getenv("CACHE_TTL")); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid CACHE_TTL %q: %w", v, err)
		}
		config.TTL = ttl
	}
	cacheService, err := repositorycache.NewCacheService(config)
	if err != nil {
		return nil, err
	}
	return sqlstore.NewCachedProxyStore(base, cacheService)
}

// buildTarget wires the delivery side: the in-process hub always receives
// events so live connections work, and an AMQP exchange joins in when
// AMQP_URL is configured.
func buildTarget(hub *broadcast.Hub) (core.BroadcastTarget, func(), error) {
	amqpURL := strings.TrimSpace(os.Getenv("AMQP_URL"))
	if amqpURL == "" {
		return hub, func() {}, nil
	}
	amqpTarget, err := broadcast.NewAMQPTarget(amqpURL, os.Getenv("AMQP_EXCHANGE"))
	if err != nil {
		return nil, nil, fmt.Errorf("amqp target: %w", err)
	}
	closeTarget := func() {
		_ = amqpTarget.Close()
	}
	return broadcast.NewFanoutTarget(hub, amqpTarget), closeTarget, nil
}

func pipelinePlatforms(cfg core.Config, registry *providers.Registry) []string {
	if len(cfg.Platforms) > 0 {
		return cfg.Platforms
	}
	return registry.Implemented()
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
