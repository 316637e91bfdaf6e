// Package main is the entrypoint for the Inkpost API server.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/inkpost/inkpost/internal/cache"
	"github.com/inkpost/inkpost/internal/config"
	"github.com/inkpost/inkpost/internal/handler"
	"github.com/inkpost/inkpost/internal/metrics"
	"github.com/inkpost/inkpost/internal/middleware"
	"github.com/inkpost/inkpost/internal/notify"
	"github.com/inkpost/inkpost/internal/repository"
	"github.com/inkpost/inkpost/internal/server"
	"github.com/inkpost/inkpost/internal/service"
)

const sessionSweepInterval = time.Hour

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	// Database
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

	if cfg.MigrateOnStart {
		if err := repo.Migrate(ctx); err != nil {
			logger.Error("failed to apply migrations", slog.String("error", sanitizeError(err, cfg.DatabaseURL)))
			os.Exit(1)
		}
		logger.Info("migrations applied")
	}

	// Cache
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

	recorder := metrics.NewInMemory()

	mail := newMailer(cfg, cacheClient, logger, recorder)

	// Services
	authService := service.NewAuthService(service.AuthConfig{
		Users:           repo,
		Sessions:        repo,
		Cache:           cacheClient,
		Pending:         cacheClient,
		Sender:          mail.sender,
		Logger:          logger,
		Metrics:         recorder,
		RegistrationTTL: cfg.RegistrationTokenTTL,
		SessionTTL:      cfg.SessionTTL,
	})
	articleService := service.NewArticleService(repo, repo, logger, recorder)
	commentService := service.NewCommentService(repo, repo, repo, logger, recorder)

	r := setupRouter(routes{
		index:    handler.New(),
		health:   handler.NewHealthHandler(repo, cacheClient, logger),
		metrics:  handler.NewMetricsHandler(recorder),
		auth:     handler.NewAuthHandler(authService, logger),
		articles: handler.NewArticleHandler(articleService, logger),
		comments: handler.NewCommentHandler(commentService, logger),
	}, repo, cacheClient, cfg, logger)

	srv := server.New(r, server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	background, stopBackground := context.WithCancel(ctx)
	defer stopBackground()

	if mail.worker != nil {
		go func() {
			if err := mail.worker.Run(background); err != nil {
				logger.Error("mail worker stopped", "error", err)
			}
		}()
		srv.OnShutdown("mail worker", mail.worker.Shutdown)
	}
	if mail.close != nil {
		srv.OnShutdown("mail publisher", mail.close)
	}

	sweeper := newSessionSweeper(repo, sessionSweepInterval, logger)
	go sweeper.run(background)
	srv.OnShutdown("session sweeper", sweeper.stop)

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"notify_driver", cfg.NotifyDriver,
	)

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
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
	index    *handler.Handler
	health   *handler.HealthHandler
	metrics  *handler.MetricsHandler
	auth     *handler.AuthHandler
	articles *handler.ArticleHandler
	comments *handler.CommentHandler
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(
	h routes,
	repo *repository.Repository,
	cacheClient *cache.Cache,
	cfg *config.Config,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Security(middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment()}))
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.AllowedOrigins())))
	r.Use(middleware.MaxBodySize(cfg.MaxRequestBodySize))

	r.Get("/", h.index.Index)
	r.Get("/healthz", h.health.Healthz)
	r.Get("/readyz", h.health.Readyz)
	r.Get("/metrics", h.metrics.Metrics)

	rateLimitCfg := middleware.RateLimitConfig{
		Logger:  logger,
		Limiter: cacheClient,
		Enabled: cfg.RateLimitAuthEnabled,
		RPS:     cfg.RateLimitAuthRPS,
		Burst:   cfg.RateLimitAuthBurst,
	}

	requireAuth := middleware.Auth(middleware.AuthConfig{
		Logger:   logger,
		Sessions: repo,
		Cache:    cacheClient,
	})

	// Registration and login
	r.Route("/register", func(r chi.Router) {
		r.Use(middleware.RateLimitIP(rateLimitCfg, "register"))
		r.Post("/preregister", h.auth.PreRegister)
		r.Post("/verify", h.auth.Verify)
	})
	r.With(middleware.RateLimitIP(rateLimitCfg, "login")).Post("/login", h.auth.Login)

	// Public reads
	r.Get("/articles", h.articles.List)
	r.Get("/articles/{id}", h.articles.Get)
	r.Get("/articles/{id}/comments", h.comments.List)

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(requireAuth)

		r.Post("/logout", h.auth.Logout)

		r.Get("/user", h.auth.Profile)
		r.Put("/user", h.auth.UpdateProfile)
		r.Delete("/user", h.auth.DeleteAccount)

		r.Post("/articles", h.articles.Create)
		r.Put("/articles/{id}", h.articles.Update)
		r.Delete("/articles/{id}", h.articles.Delete)

		r.Post("/articles/{id}/comments", h.comments.Create)
		r.Put("/comments/{id}", h.comments.Update)
		r.Delete("/comments/{id}", h.comments.Delete)
	})

	r.NotFound(h.index.NotFound)
	r.MethodNotAllowed(h.index.MethodNotAllowed)

	return r
}

// mailer is the configured notification driver. worker is set for the
// stream driver, close for drivers holding a connection.
type mailer struct {
	sender notify.Sender
	worker *notify.Worker
	close  server.ShutdownFunc
}

func newMailer(cfg *config.Config, cacheClient *cache.Cache, logger *slog.Logger, recorder metrics.Recorder) *mailer {
	smtpSender := notify.NewSMTPSender(notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
	})

	switch cfg.NotifyDriver {
	case config.NotifyDriverSMTP:
		return &mailer{sender: smtpSender}
	case config.NotifyDriverStream:
		// Development keeps mail in the log even when queued through Redis.
		var delivery notify.Sender = smtpSender
		if cfg.IsDevelopment() {
			delivery = notify.NewLogSender(logger)
		}
		worker := notify.NewWorker(cacheClient.Client(), delivery, logger, notify.NewConsumerID(), recorder)
		return &mailer{sender: notify.NewStreamSender(cacheClient.Client()), worker: worker}
	case config.NotifyDriverAMQP:
		sender := notify.NewAMQPSender(cfg.AMQPURL, cfg.MailQueue, logger)
		return &mailer{sender: sender, close: sender.Close}
	default:
		return &mailer{sender: notify.NewLogSender(logger)}
	}
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
