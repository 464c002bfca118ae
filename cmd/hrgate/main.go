package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"github.com/valinor-ai/hrgate/internal/access"
	"github.com/valinor-ai/hrgate/internal/audit"
	"github.com/valinor-ai/hrgate/internal/auth"
	"github.com/valinor-ai/hrgate/internal/hr"
	"github.com/valinor-ai/hrgate/internal/platform/config"
	"github.com/valinor-ai/hrgate/internal/platform/database"
	"github.com/valinor-ai/hrgate/internal/platform/server"
	"github.com/valinor-ai/hrgate/internal/platform/telemetry"
	"github.com/valinor-ai/hrgate/internal/rbac"
	"golang.org/x/sync/errgroup"
)

type options struct {
	configPath  string
	seedRules   string
	migrateOnly bool
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := pflag.NewFlagSet("hrgate", pflag.ContinueOnError)
	fs.StringVarP(&opts.configPath, "config", "c", "config.yaml", "path to the YAML config file")
	fs.StringVar(&opts.seedRules, "seed-rules", "", "replace all rule policies with the ones in this YAML file")
	fs.BoolVar(&opts.migrateOnly, "migrate", false, "run database migrations (and seeding) then exit")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() > 0 {
		return options{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return opts, nil
}

func run(args []string) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := telemetry.NewLogger(cfg.Log.Level, cfg.Log.Format)
	telemetry.SetDefault(logger)

	if cfg.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if cfg.Auth.JWT.SigningKey == "" && !cfg.Auth.DevMode {
		return errors.New("auth.jwt.signingkey is required outside dev mode")
	}
	loc, err := cfg.Access.Location()
	if err != nil {
		return fmt.Errorf("access.timezone: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	slog.Info("hrgate starting", "port", cfg.Server.Port)

	pool, err := database.Connect(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	if err := database.RunMigrations(cfg.Database.URL, cfg.Database.MigrationsPath); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	slog.Info("migrations complete")

	if opts.seedRules != "" {
		n, err := hr.NewRuleStore().SeedFromFile(ctx, pool, opts.seedRules)
		if err != nil {
			return fmt.Errorf("seeding rules: %w", err)
		}
		slog.Info("rule policies seeded", "count", n, "file", opts.seedRules)
	}
	if opts.migrateOnly {
		return nil
	}

	var metrics *telemetry.Metrics
	if cfg.Metrics.Enabled {
		metrics = telemetry.NewMetrics()
	}

	// Roles
	registry := rbac.NewRegistry(rbac.WithRoleLoader(hr.NewRoleLoader(pool)))
	if err := registry.ReloadRoles(ctx); err != nil {
		return fmt.Errorf("loading roles: %w", err)
	}

	// Audit
	hub := audit.NewHub()
	loggerCfg := audit.LoggerConfig{
		BufferSize:    cfg.Audit.BufferSize,
		BatchSize:     cfg.Audit.BatchSize,
		FlushInterval: cfg.Audit.FlushInterval(),
		Hub:           hub,
	}
	if metrics != nil {
		loggerCfg.OnDrop = metrics.IncAuditDropped
	}
	auditLogger := audit.NewAsyncLogger(pool, audit.NewStore(), loggerCfg)
	defer func() { _ = auditLogger.Close() }()

	// Decision engine
	engine := hr.NewAccessStore(pool)
	composerOpts := []access.Option{
		access.WithAuditSink(audit.NewRecorder(auditLogger)),
		access.WithCapabilities(registry),
		access.WithLocation(loc),
		access.WithTimeout(cfg.Access.Timeout()),
		access.WithRulesFailOpen(cfg.Access.RulesFailOpen),
		access.WithLogger(logger),
	}
	if metrics != nil {
		composerOpts = append(composerOpts, access.WithObserver(metrics))
	}
	composer := access.NewComposer(engine, engine, engine, composerOpts...)
	if cfg.Access.RulesFailOpen {
		slog.Warn("rule gate fails open: actions without a policy are allowed")
	}

	// Auth
	tokenSvc := auth.NewTokenService(
		cfg.Auth.JWT.SigningKey,
		cfg.Auth.JWT.Issuer,
		cfg.Auth.JWT.ExpiryHours,
		cfg.Auth.JWT.RefreshExpiryHours,
	)

	var devIdentity *auth.Identity
	if cfg.Auth.DevMode {
		slog.Warn("running in dev mode: 'Bearer dev' authenticates as an admin")
		devIdentity = &auth.Identity{
			UserID:      1,
			Email:       "dev@localhost",
			DisplayName: "Dev Admin",
			Roles:       []string{access.RoleAdmin},
			Clearance:   access.LevelConfidential.String(),
		}
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := server.New(addr, server.Dependencies{
		Pool:               pool,
		Auth:               tokenSvc,
		AuthHandler:        auth.NewHandler(tokenSvc),
		Composer:           composer,
		HR:                 hr.NewHandlers(pool, auditLogger, registry),
		AuditHandler:       audit.NewHandler(pool, hub, cfg.CORS.Origins...),
		Metrics:            metrics,
		DevMode:            cfg.Auth.DevMode,
		DevIdentity:        devIdentity,
		TrustProxy:         cfg.Access.TrustProxy,
		Logger:             logger,
		CORSAllowedOrigins: cfg.CORS.Origins,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(gctx)
	})
	if cfg.RBAC.ReloadSecs > 0 {
		g.Go(func() error {
			reloadRoles(gctx, registry, time.Duration(cfg.RBAC.ReloadSecs)*time.Second)
			return nil
		})
	}

	slog.Info("server ready", "addr", addr, "dev_mode", cfg.Auth.DevMode)
	return g.Wait()
}

// reloadRoles refreshes the registry until ctx ends. A failed reload keeps
// the previous role set.
func reloadRoles(ctx context.Context, registry *rbac.Registry, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := registry.ReloadRoles(ctx); err != nil && ctx.Err() == nil {
				slog.Warn("role reload failed", "error", err)
			}
		}
	}
}
