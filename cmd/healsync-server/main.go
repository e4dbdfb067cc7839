package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/healsync/healsync/internal/config"
	"github.com/healsync/healsync/internal/domain/audit"
	"github.com/healsync/healsync/internal/domain/export"
	"github.com/healsync/healsync/internal/domain/legacy"
	"github.com/healsync/healsync/internal/domain/migration"
	"github.com/healsync/healsync/internal/domain/patient"
	"github.com/healsync/healsync/internal/domain/registry"
	"github.com/healsync/healsync/internal/domain/visit"
	"github.com/healsync/healsync/internal/platform/auth"
	"github.com/healsync/healsync/internal/platform/db"
	"github.com/healsync/healsync/internal/platform/docstore"
	"github.com/healsync/healsync/internal/platform/fhir"
	"github.com/healsync/healsync/internal/platform/middleware"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "healsync-server",
		Short: "HealSync health record API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateFHIRCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateFHIRCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate-fhir",
		Short: "Backfill FHIR twins for legacy documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			store := docstore.NewPGStore(pool)
			if err := store.EnsureSchema(ctx); err != nil {
				return err
			}

			convert := legacy.NewConverter(fhir.DefaultCodeMaps())
			driver := migration.NewDriver(store, convert, cfg.MigrateBatch, logger)

			report := driver.MigrateAll(ctx)
			found, converted := report.Total()
			fmt.Printf("Migration complete: %d legacy records found, %d FHIR resources written.\n", found, converted)
			fmt.Printf("  patients:      found=%d converted=%d failed=%d\n", report.Patients.Found, report.Patients.Converted, report.Patients.Failed)
			fmt.Printf("  encounters:    found=%d converted=%d failed=%d\n", report.Encounters.Found, report.Encounters.Converted, report.Encounters.Failed)
			fmt.Printf("  practitioners: found=%d converted=%d failed=%d\n", report.Practitioners.Found, report.Practitioners.Converted, report.Practitioners.Failed)
			fmt.Printf("  organizations: found=%d converted=%d failed=%d\n", report.Organizations.Found, report.Organizations.Converted, report.Organizations.Failed)
			return nil
		},
	}
}

func newLogger() zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return logger
}

func runServer() error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	store := docstore.NewPGStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to ensure document schema")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	if cfg.IsDev() {
		e.Use(auth.DevMiddleware())
	} else {
		e.Use(auth.Middleware([]byte(cfg.JWTSigningKey)))
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})

	// Shared collaborators
	convert := legacy.NewConverter(fhir.DefaultCodeMaps())
	events := fhir.NewAuditBuilder(cfg.SiteName)

	recorder := audit.NewRecorder(store, events, logger)
	queries := audit.NewQueries(store, cfg.AuditCap)
	auditSvc := audit.NewService(recorder, queries)

	patientSvc := patient.NewService(store, convert, recorder, logger)
	visitSvc := visit.NewService(store, convert, recorder, logger)
	registrySvc := registry.NewService(store, convert, logger)
	exportSvc := export.NewService(store, registrySvc, recorder)

	api := e.Group("/api/v1")
	audit.NewHandler(auditSvc).RegisterRoutes(api)
	patient.NewHandler(patientSvc).RegisterRoutes(api)
	visit.NewHandler(visitSvc).RegisterRoutes(api)
	registry.NewHandler(registrySvc).RegisterRoutes(api)
	export.NewHandler(exportSvc).RegisterRoutes(api)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("server listening")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
		return err
	}
	logger.Info().Msg("server stopped cleanly")
	return nil
}
