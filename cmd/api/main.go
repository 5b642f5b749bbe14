// Package main is the entrypoint for the SmartLink server.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/smartlink/smartlink/internal/audit"
	"github.com/smartlink/smartlink/internal/cache"
	"github.com/smartlink/smartlink/internal/challenge"
	"github.com/smartlink/smartlink/internal/config"
	"github.com/smartlink/smartlink/internal/detection"
	"github.com/smartlink/smartlink/internal/handler"
	"github.com/smartlink/smartlink/internal/metrics"
	"github.com/smartlink/smartlink/internal/middleware"
	"github.com/smartlink/smartlink/internal/repository"
	"github.com/smartlink/smartlink/internal/routing"
	"github.com/smartlink/smartlink/internal/server"
	"github.com/smartlink/smartlink/internal/service"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

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

	issuer, err := challenge.NewIssuer(cfg.ChallengeSecret, cfg.ChallengeTTL)
	if err != nil {
		logger.Error("failed to create challenge issuer", "error", err)
		os.Exit(1)
	}

	recorder := metrics.NewInMemory()
	clickRepo := repository.NewClickRepository(repo)
	resolver := routing.NewResolver(cfg.BaseURL)
	engine := detection.NewEngine(detection.WithLogger(logger))
	publisher := audit.NewPublisher(cacheClient.Client(), logger, recorder)

	linkService := service.NewLinkService(repo, cacheClient, cfg.BaseURL, recorder, logger)
	visitService := service.NewVisitService(linkService, engine, resolver, publisher, recorder, logger)
	challengeService := service.NewChallengeService(linkService, issuer, resolver, cacheClient, recorder, logger)
	analyticsService := service.NewAnalyticsService(linkService, clickRepo)

	handlers := routes{
		root:      handler.New(version),
		health:    handler.NewHealthHandler(repo, cacheClient),
		links:     handler.NewLinkHandler(linkService, logger),
		analytics: handler.NewAnalyticsHandler(analyticsService, logger),
		classify:  handler.NewClassifyHandler(visitService),
		redirect:  handler.NewRedirectHandler(visitService, logger),
		safe:      handler.NewSafeHandler(linkService, logger),
		challenge: handler.NewChallengeHandler(challengeService, logger),
		metrics:   handler.NewMetricsHandler(recorder),
	}

	r := setupRouter(handlers, cacheClient, cfg, logger)

	srv := server.New(r, server.Config{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	if cfg.AuditWorkerEnabled {
		worker := audit.NewWorker(cacheClient.Client(), clickRepo, logger, audit.NewConsumerID(), recorder)
		worker.SetBatchSize(cfg.AuditBatchSize)
		srv.Background("audit-worker", worker.Run)
		srv.OnShutdown("audit-worker", worker.Shutdown)
	} else {
		logger.Warn("audit worker disabled; records stay queued in Redis")
	}

	if !cfg.AdminAPIEnabled() {
		logger.Warn("ADMIN_TOKEN_HASH not set; management API is disabled")
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"base_url", cfg.BaseURL,
		"env", cfg.AppEnv,
		"version", version,
	)

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)}

	var h slog.Handler
	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h).With("service", "smartlink")
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type routes struct {
	root      *handler.Handler
	health    *handler.HealthHandler
	links     *handler.LinkHandler
	analytics *handler.AnalyticsHandler
	classify  *handler.ClassifyHandler
	redirect  *handler.RedirectHandler
	safe      *handler.SafeHandler
	challenge *handler.ChallengeHandler
	metrics   *handler.MetricsHandler
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(h routes, cacheClient *cache.Cache, cfg *config.Config, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	securityCfg := middleware.DefaultSecurityConfig()
	securityCfg.IsDevelopment = cfg.IsDevelopment()
	securityCfg.MaxRequestBodySize = cfg.MaxRequestBodySize

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Security(securityCfg))
	r.Use(middleware.MaxBodySize(securityCfg.MaxRequestBodySize))

	r.Get("/healthz", h.health.Healthz)
	r.Get("/readyz", h.health.Readyz)
	r.Get("/metrics", h.metrics.Metrics)
	r.Get("/", h.root.Hello)

	if cfg.AdminAPIEnabled() {
		r.Route("/api/v1", func(r chi.Router) {
			r.Use(middleware.AdminAuth(middleware.AdminAuthConfig{
				Logger:    logger,
				TokenHash: cfg.AdminTokenHash,
				Cache:     cacheClient,
			}))

			r.Route("/links", func(r chi.Router) {
				r.Get("/", h.links.List)
				r.Post("/", h.links.Create)
				r.Get("/{id}", h.links.Get)
				r.Patch("/{id}", h.links.Update)
				r.Delete("/{id}", h.links.Delete)
				r.Get("/{id}/analytics", h.analytics.GetLinkAnalytics)
			})
			r.Get("/stats", h.analytics.GetDashboard)
			r.Post("/classify", h.classify.Classify)
		})
	}

	// Public visitor routes share the per-IP limiter.
	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimitIP(middleware.RateLimitConfig{
			Logger:  logger,
			Limiter: cacheClient,
			Enabled: cfg.RateLimitRedirectEnabled,
			RPS:     cfg.RateLimitRedirectRPS,
			Burst:   cfg.RateLimitRedirectBurst,
		}))

		r.Get("/safe/{shortCode}", h.safe.Safe)
		r.Get("/safe/{shortCode}/{platform}", h.safe.Safe)
		r.Get("/challenge/{shortCode}", h.challenge.Page)
		r.Get("/challenge/{shortCode}/verify", h.challenge.Verify)
		r.Get("/{shortCode}", h.redirect.Redirect)
	})

	r.NotFound(h.root.NotFound)
	r.MethodNotAllowed(h.root.MethodNotAllowed)

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
