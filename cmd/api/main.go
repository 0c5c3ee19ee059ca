package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"casedocs/docs"
	"casedocs/internal/auth"
	"casedocs/internal/config"
	"casedocs/internal/database"
	"casedocs/internal/database/migration"
	handlers "casedocs/internal/http/handler"
	"casedocs/internal/http/middleware"
	"casedocs/internal/logging"
	"casedocs/internal/metrics"
	tracing "casedocs/internal/otel"
	"casedocs/internal/ratelimit"
	"casedocs/internal/repository/postgres"
	"casedocs/internal/service"
	"casedocs/internal/storage"
)

// multipartOverhead covers form fields and part headers on top of the largest file.
const multipartOverhead = 1 << 20

// @title Case Documents API
// @version 1.0
// @description Client document storage with retention, approval and access tracking.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()
	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.Location())
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server_exit", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg *config.AppConfig, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, logger)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("tracing_shutdown_failed", slog.String("error", err.Error()))
		}
	}()

	// Initialize PostgreSQL connection (with pooling via database/sql)
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := migration.EnsureMigrated(ctx, db, logger, cfg.Database.Host); err != nil {
			return err
		}
	}

	objStore, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("initialize object storage: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	docMetrics, err := metrics.New(reg)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	httpMetrics, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		return fmt.Errorf("register http metrics: %w", err)
	}

	docRepo := postgres.NewDocumentPostgres(db)
	docSvc := service.NewDocumentService(objStore, docRepo,
		service.WithLogger(logger),
		service.WithMetrics(docMetrics),
		service.WithTimeout(cfg.RequestTimeout),
		service.WithLinkTTL(cfg.SignedURLTTL),
		service.WithMaxBytes(cfg.Upload.MaxDocumentBytes),
	)

	authenticate, approver, err := authHandlers(cfg.Auth)
	if err != nil {
		return fmt.Errorf("configure auth: %w", err)
	}

	// Immutable: strings from Ctx reach metrics, spans and logs after the handler returns.
	app := fiber.New(fiber.Config{
		ErrorHandler:          handlers.ErrorHandler(),
		BodyLimit:             int(cfg.Upload.Largest() + multipartOverhead),
		DisableStartupMessage: true,
		Immutable:             true,
	})

	app.Use(fiberrecover.New())
	app.Use(otelfiber.Middleware())
	app.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.CORSOrigins,
		ExposeHeaders: "X-Request-ID,X-Total-Count,Content-Disposition,Retry-After",
	}))
	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger(logger))
	app.Use(httpMetrics.Handler())

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	if cfg.RateLimit.RedisAddr != "" {
		limiter, err := ratelimit.New(cfg.RateLimit)
		if err != nil {
			return fmt.Errorf("connect rate limiter: %w", err)
		}
		defer limiter.Close()
		app.Use(middleware.RateLimit(limiter, logger))
	}

	handlers.RegisterRoutes(app, db, docSvc, handlers.RouteOptions{
		Authenticate:       authenticate,
		Approver:           approver,
		Upload:             cfg.Upload,
		ExposeErrorDetails: cfg.IsDevelopment(),
	})

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	addr := ":" + cfg.Port
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server_starting", slog.String("addr", addr), slog.String("env", cfg.AppEnv))
		if err := app.Listen(addr); err != nil {
			return fmt.Errorf("start server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("server_stopping")
		if err := app.ShutdownWithTimeout(15 * time.Second); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("server_stopped")
	return nil
}

// authHandlers returns the document and approval guards. With auth disabled
// both pass every request through.
func authHandlers(cfg config.AuthConfig) (fiber.Handler, fiber.Handler, error) {
	if !cfg.Enabled {
		return middleware.Noop(), middleware.Noop(), nil
	}
	v, err := auth.NewVerifier(cfg)
	if err != nil {
		return nil, nil, err
	}
	return middleware.Authenticate(v), middleware.RequireRole(cfg.ApproverRoles...), nil
}
