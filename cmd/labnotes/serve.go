package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/csrf"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"
	"github.com/terraincognita07/labnotes/internal/api"
	"github.com/terraincognita07/labnotes/internal/config"
	"github.com/terraincognita07/labnotes/internal/db"
	"github.com/terraincognita07/labnotes/internal/logging"
	"github.com/terraincognita07/labnotes/internal/markdown"
	"github.com/terraincognita07/labnotes/internal/services"
	"github.com/terraincognita07/labnotes/internal/uploads"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *configFlag)
		},
	}
}

func runServe(ctx context.Context, configPath string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(logging.Options{
		Level:       cfg.LogLevel,
		FilePath:    cfg.LogFile,
		Development: !cfg.IsProduction(),
	})
	if err != nil {
		return fmt.Errorf("logger init failed: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	app, cleanup, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	sigCtx, stopSignals := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	go func() {
		<-sigCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("labnotes listening",
		zap.String("addr", cfg.ListenAddress()),
		zap.String("db", cfg.DatabasePath),
		zap.String("uploads", cfg.UploadDir),
		zap.String("tz", cfg.Location().String()),
	)
	if err := app.Listen(cfg.ListenAddress()); err != nil {
		return fmt.Errorf("server exited: %w", err)
	}
	logger.Info("labnotes stopped")
	return nil
}

// newApp wires storage, services and routes. The returned cleanup closes
// the database.
func newApp(cfg *config.Config, logger *zap.Logger) (*fiber.App, func(), error) {
	database, err := db.OpenSQLite(cfg.DatabasePath, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("database init failed: %w", err)
	}
	sqlDB, err := database.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("database handle: %w", err)
	}
	cleanup := func() {
		_ = sqlDB.Close()
	}

	store, err := uploads.NewStore(cfg.UploadDir)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("upload store init failed: %w", err)
	}

	repositories := db.NewRepositories(database)
	timeline := services.NewTimelineService(repositories.Entries, markdown.NewRenderer())
	publisher := services.NewPublishingService(services.NewEntryTransactor(repositories.Entries), store, cfg.MaxUploadBytes(), logger)

	handler, err := api.NewHandler(timeline, publisher, api.Options{
		TemplateDir:       cfg.TemplateDir,
		SecretKey:         cfg.SecretKey,
		AdminPassword:     cfg.AdminPassword,
		AdminPasswordHash: cfg.AdminPasswordHash,
		CookieSecure:      cfg.SessionSecure,
		Location:          cfg.Location(),
		MaxUploadBytes:    cfg.MaxUploadBytes(),
		Logger:            logger,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("handler init failed: %w", err)
	}

	app := fiber.New(fiber.Config{
		AppName:               "Lab Notes",
		DisableStartupMessage: true,
		BodyLimit:             api.RequestBodyLimit(cfg.MaxUploadBytes()),
		ErrorHandler:          newErrorHandler(logger),
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Output: zap.NewStdLog(logger.Named("access")).Writer(),
		Format: "${status} ${method} ${path} ${latency}\n",
	}))
	app.Use(compress.New())
	api.RegisterStaticRoutes(app, cfg.StaticDir, store.Root())
	app.Use(csrf.New(api.CSRFConfig(cfg.SessionSecure)))
	api.RegisterRoutes(app, handler)
	api.RegisterNotFound(app, handler)

	return app, cleanup, nil
}

func newErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "Internal Server Error"
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			code = fiberErr.Code
			message = fiberErr.Message
		}
		if code >= fiber.StatusInternalServerError {
			logger.Error("request failed", zap.String("method", c.Method()), zap.String("path", c.Path()), zap.Error(err))
		}
		return c.Status(code).SendString(message)
	}
}
