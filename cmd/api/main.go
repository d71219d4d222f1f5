// Package main is the entrypoint for the vaultq API server.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vaultq/vaultq/internal/auth"
	"github.com/vaultq/vaultq/internal/cache"
	"github.com/vaultq/vaultq/internal/config"
	"github.com/vaultq/vaultq/internal/db"
	"github.com/vaultq/vaultq/internal/handler"
	"github.com/vaultq/vaultq/internal/metrics"
	"github.com/vaultq/vaultq/internal/middleware"
	"github.com/vaultq/vaultq/internal/repository"
	"github.com/vaultq/vaultq/internal/server"
	"github.com/vaultq/vaultq/internal/service"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	// Apply schema migrations before opening the pool.
	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Error(
			"failed to run migrations",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	logger.Info("migrations applied")

	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("connected to database")

	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		os.Exit(1)
	}
	defer cacheClient.Close()
	logger.Info("connected to Redis")

	// Metrics registry with runtime collectors plus the vault recorder.
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewPrometheus(registry)

	tokens := auth.NewTokenIssuer(cfg.TokenSecret, cfg.TokenTTL)

	accountService := service.NewAccountService(repo, recorder, cfg.ClaimMaxCount)
	emailService := service.NewEmailService(repo, recorder, cfg.ClaimMaxCount)
	userService := service.NewUserService(repo, cacheClient, tokens)

	h := handler.New()
	healthHandler := handler.NewHealthHandler(repo, cacheClient)
	accountHandler := handler.NewAccountHandler(accountService, logger, cfg.AdminListMaxLimit)
	emailHandler := handler.NewEmailHandler(emailService, logger, cfg.AdminListMaxLimit)
	userHandler := handler.NewUserHandler(userService, logger, cfg.AdminListMaxLimit)

	r := setupRouter(routerDeps{
		base:     h,
		health:   healthHandler,
		accounts: accountHandler,
		emails:   emailHandler,
		users:    userHandler,
		repo:     repo,
		cache:    cacheClient,
		tokens:   tokens,
		registry: registry,
		cfg:      cfg,
		logger:   logger,
	})

	srv := server.New(
		r,
		cfg.AppPort,
		cfg.ReadTimeout,
		cfg.WriteTimeout,
		cfg.ShutdownTimeout,
		logger,
	)

	srv.OnShutdown("redis", func(ctx context.Context) error {
		return cacheClient.Close()
	})
	srv.OnShutdown("postgres", func(ctx context.Context) error {
		repo.Close()
		return nil
	})

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"claim_max_count", cfg.ClaimMaxCount,
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	level := parseLogLevel(cfg.LogLevel)

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type routerDeps struct {
	base     *handler.Handler
	health   *handler.HealthHandler
	accounts *handler.AccountHandler
	emails   *handler.EmailHandler
	users    *handler.UserHandler
	repo     *repository.Repository
	cache    *cache.Cache
	tokens   *auth.TokenIssuer
	registry *prometheus.Registry
	cfg      *config.Config
	logger   *slog.Logger
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(d routerDeps) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(d.logger))
	r.Use(middleware.Recoverer(d.logger))
	r.Use(middleware.MaxBody(d.cfg.MaxRequestBodySize))

	// Health and metrics endpoints (no auth required)
	r.Get("/healthz", d.health.Healthz)
	r.Get("/readyz", d.health.Readyz)
	r.Method("GET", "/metrics", promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{}))

	authCfg := middleware.AuthConfig{
		Logger:     d.logger,
		Repository: d.repo,
		Cache:      d.cache,
		Tokens:     d.tokens,
	}

	rateLimitCfg := middleware.RateLimitConfig{
		Logger:       d.logger,
		Cache:        d.cache,
		APIEnabled:   d.cfg.RateLimitAPIEnabled,
		APIRPM:       d.cfg.RateLimitAPIRPM,
		APIBurst:     d.cfg.RateLimitAPIBurst,
		LoginEnabled: d.cfg.RateLimitLoginEnabled,
		LoginRPS:     d.cfg.RateLimitLoginRPS,
		LoginBurst:   d.cfg.RateLimitLoginBurst,
	}

	adminOnly := middleware.AdminOnly(d.logger, d.cfg.AdminKey)

	// queueRoutes wires the shared route shape of both queue kinds:
	// an admin listing at the root and owner-scoped operations below it.
	queueRoutes := func(r chi.Router, admin http.HandlerFunc, byUser, save, next, count http.HandlerFunc) {
		r.With(adminOnly).Get("/", admin)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(authCfg))
			r.Use(middleware.RequireOwner(d.logger))
			r.Use(middleware.RateLimitAPI(rateLimitCfg))

			r.Post("/user/{userID}", byUser)
			r.Post("/save/{userID}", save)
			r.Post("/next/{userID}", next)
			r.Post("/count/{userID}", count)
		})
	}

	r.Route("/api/accounts", func(r chi.Router) {
		queueRoutes(r,
			d.accounts.ListAll,
			d.accounts.ListByUser,
			d.accounts.Save,
			d.accounts.Next,
			d.accounts.Count,
		)
	})

	r.Route("/api/emails", func(r chi.Router) {
		queueRoutes(r,
			d.emails.ListAll,
			d.emails.ListByUser,
			d.emails.Save,
			d.emails.Next,
			d.emails.Count,
		)
	})

	r.Route("/api/auth", func(r chi.Router) {
		r.With(adminOnly).Post("/register", d.users.Register)
		r.With(middleware.RateLimitIP(rateLimitCfg)).Post("/login", d.users.Login)
		r.Post("/logout", d.users.Logout)
		r.Post("/verify-token", d.users.VerifyToken)

		r.With(adminOnly).Get("/users", d.users.List)
		r.With(adminOnly).Get("/user/{userID}", d.users.Get)
		r.With(adminOnly).Put("/user/{userID}", d.users.Update)
		r.With(adminOnly).Delete("/user/{userID}", d.users.Delete)
	})

	// 404 and 405 handlers
	r.NotFound(d.base.NotFound)
	r.MethodNotAllowed(d.base.MethodNotAllowed)

	return r
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
