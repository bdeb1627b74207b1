package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/queuehall/queuehall/internal/authz"
	"github.com/queuehall/queuehall/internal/logger"
	"github.com/queuehall/queuehall/internal/queue"
	"github.com/queuehall/queuehall/internal/report"
	"github.com/queuehall/queuehall/internal/resolve"
	"github.com/queuehall/queuehall/internal/scheduler"
	"github.com/queuehall/queuehall/internal/server"
	"github.com/queuehall/queuehall/internal/service"
	"github.com/queuehall/queuehall/internal/store"
	memorystore "github.com/queuehall/queuehall/internal/store/memory"
	postgresstore "github.com/queuehall/queuehall/internal/store/postgres"
	"github.com/queuehall/queuehall/internal/telemetry"
)

// ServerCmd starts the queue tracking server.
type ServerCmd struct {
	Listen string `help:"HTTP server listen address" default:"localhost:8080" env:"QUEUEHALL_LISTEN"`

	// Store configuration
	StoreType     string             `help:"store type (memory or postgres)" default:"memory" env:"QUEUEHALL_STORE_TYPE" enum:"memory,postgres"`
	PostgresStore PostgresStoreFlags `embed:"" prefix:"postgres-"`

	// Domain configuration
	DailyResetTime    string `help:"local wall-clock time (HH:MM) of the daily count reset" default:"04:00" env:"QUEUEHALL_DAILY_RESET_TIME"`
	ResetUpdaterName  string `help:"updater name recorded by the daily reset" default:"daily reset" env:"QUEUEHALL_RESET_UPDATER_NAME"`
	SystemUpdaterName string `help:"updater name recorded on service-initiated writes" default:"system" env:"QUEUEHALL_SYSTEM_UPDATER_NAME"`
	MaxAliases        int    `help:"maximum aliases per arcade" default:"10" env:"QUEUEHALL_MAX_ALIASES"`
	ResetConfirmation string `help:"confirmation text required to wipe a tenant" default:"confirm reset" env:"QUEUEHALL_RESET_CONFIRMATION"`

	// Authorization configuration
	Owners                []string `help:"platform-qualified user ids treated as owners everywhere" env:"QUEUEHALL_OWNERS"`
	AdminRoles            []string `help:"extra role identifiers that count as admin" env:"QUEUEHALL_ADMIN_ROLES"`
	AuthzFile             string   `help:"path to a YAML file with owners and admin roles" env:"QUEUEHALL_AUTHZ_FILE"`
	AllowListEnabled      bool     `help:"gate privileged operations on allow-list membership instead of admin detection" env:"QUEUEHALL_ALLOW_LIST_ENABLED"`
	AllowListRequireAdmin bool     `help:"require admin rights to manage the allow-list" default:"true" env:"QUEUEHALL_ALLOW_LIST_REQUIRE_ADMIN"`
}

// PostgresStoreFlags configures the PostgreSQL store.
type PostgresStoreFlags struct {
	ConnString string `help:"PostgreSQL connection string" env:"POSTGRES_CONNECTION_STRING"`

	MaxConns        int32 `help:"maximum number of connections in pool" default:"20"`
	MinConns        int32 `help:"minimum number of connections in pool" default:"5"`
	MaxConnLifetime int32 `help:"maximum connection lifetime in seconds" default:"3600"`
	MaxConnIdleTime int32 `help:"maximum connection idle time in seconds" default:"1800"`

	AutoMigrate bool `help:"run database migrations on startup" default:"false" env:"QUEUEHALL_POSTGRES_AUTO_MIGRATE"`
}

func (c *ServerCmd) Run(globals *Globals) error {
	log := logger.Setup(globals.Debug)
	ctx := context.Background()

	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Msg("Starting server")

	authzCfg, err := c.authzConfig()
	if err != nil {
		return err
	}

	stores, cleanup, err := c.buildStores(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	clk := clock.New()
	resolver := resolve.NewResolver(stores.Arcades, stores.Bindings)
	engine := queue.NewEngine(stores, resolver, clk)

	sched, err := scheduler.New(engine, clk, c.DailyResetTime, c.ResetUpdaterName)
	if err != nil {
		return err
	}
	defer sched.Stop()

	svc := service.New(service.Params{
		Config: service.Config{
			MaxAliasesPerArcade: c.MaxAliases,
			ResetConfirmation:   c.ResetConfirmation,
			SystemUpdaterName:   c.SystemUpdaterName,
		},
		Stores:     stores,
		Resolver:   resolver,
		Engine:     engine,
		Authorizer: authz.NewResolver(authzCfg, stores.AllowList),
		Reports:    report.NewAggregator(stores, resolver, clk),
		Scheduler:  sched,
		Clock:      clk,
	})

	if err := svc.RegisterSchedulers(ctx); err != nil {
		return fmt.Errorf("failed to register daily reset schedules: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	httpServer := configureHTTPServer(c.Listen, server.New(svc, telemetry.NewMetrics(registry), registry).Router(log))

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("listen", c.Listen).Msg("Listening for HTTP connections")
		errCh <- httpServer.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down http server: %w", err)
		}
	}

	return nil
}

func (c *ServerCmd) buildStores(ctx context.Context) (store.Stores, func(), error) {
	switch c.StoreType {
	case "postgres":
		if c.PostgresStore.ConnString == "" {
			return store.Stores{}, nil, errors.New("PostgreSQL connection string is required (--postgres-conn-string or POSTGRES_CONNECTION_STRING)")
		}

		poolCfg := &postgresstore.PoolConfig{
			ConnString:      c.PostgresStore.ConnString,
			MaxConns:        c.PostgresStore.MaxConns,
			MinConns:        c.PostgresStore.MinConns,
			MaxConnLifetime: c.PostgresStore.MaxConnLifetime,
			MaxConnIdleTime: c.PostgresStore.MaxConnIdleTime,
		}

		pool, err := postgresstore.NewPool(ctx, poolCfg)
		if err != nil {
			return store.Stores{}, nil, fmt.Errorf("failed to create connection pool: %w", err)
		}

		if c.PostgresStore.AutoMigrate {
			if err := postgresstore.RunMigrations(ctx, pool); err != nil {
				pool.Close()
				return store.Stores{}, nil, fmt.Errorf("failed to run migrations: %w", err)
			}
		}

		return postgresstore.NewStores(pool), pool.Close, nil
	default:
		return memorystore.NewStores(), func() {}, nil
	}
}

func (c *ServerCmd) authzConfig() (authz.Config, error) {
	cfg := authz.Config{
		OwnerIDs:                         c.Owners,
		AdminRoleIdentifiers:             c.AdminRoles,
		AllowListEnabled:                 c.AllowListEnabled,
		AllowListManagementRequiresAdmin: c.AllowListRequireAdmin,
	}

	if c.AuthzFile != "" {
		fileCfg, err := loadAuthzFile(c.AuthzFile)
		if err != nil {
			return authz.Config{}, err
		}
		cfg.OwnerIDs = append(cfg.OwnerIDs, fileCfg.Owners...)
		cfg.AdminRoleIdentifiers = append(cfg.AdminRoleIdentifiers, fileCfg.AdminRoles...)
	}

	return cfg, nil
}
