package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/preciseoptics/eyecare/internal/config"
	"github.com/preciseoptics/eyecare/internal/domain/audit"
	"github.com/preciseoptics/eyecare/internal/domain/eyetest"
	"github.com/preciseoptics/eyecare/internal/domain/medication"
	"github.com/preciseoptics/eyecare/internal/domain/patient"
	"github.com/preciseoptics/eyecare/internal/domain/specialization"
	"github.com/preciseoptics/eyecare/internal/platform/auth"
	"github.com/preciseoptics/eyecare/internal/platform/db"
	"github.com/preciseoptics/eyecare/internal/platform/middleware"
	"github.com/preciseoptics/eyecare/internal/reports"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "eyecare-server",
		Short: "Eye Hospital Management API Server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

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

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

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

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

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

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

// accessEventEntry maps a middleware access event onto an audit ledger entry.
// The adapter keeps the middleware package decoupled from the audit domain.
func accessEventEntry(event middleware.AccessEvent) *audit.Entry {
	e := &audit.Entry{
		ActorName:     event.UserName,
		SessionID:     event.SessionID,
		Action:        event.Action,
		ResourceType:  event.ResourceType,
		ResourceID:    event.ResourceID,
		IPAddress:     event.IPAddress,
		UserAgent:     event.UserAgent,
		RequestMethod: event.Method,
		RequestPath:   event.Path,
		Success:       event.StatusCode < http.StatusBadRequest,
		HIPAARelevant: true,
	}
	if id, err := uuid.Parse(event.UserID); err == nil {
		e.ActorID = &id
	}
	if event.StatusCode == http.StatusForbidden || event.StatusCode == http.StatusUnauthorized {
		e.Action = audit.ActionAccessDenied
		e.Severity = audit.SeverityMedium
	}
	return e
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Audit ledger — constructed before the HTTP stack so the access
	// middleware can write through it.
	auditSvc := audit.NewService(
		audit.NewEntryRepoPG(pool),
		audit.NewPatientAccessRepoPG(pool),
		audit.NewMedicationActionRepoPG(pool),
	)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Auth middleware
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.JWTIssuer,
			SigningKey: []byte(cfg.JWTSecret),
		}))
	}

	// Access audit middleware, writing through the ledger
	recorder := middleware.AccessRecorderFunc(func(ctx context.Context, event middleware.AccessEvent) error {
		return auditSvc.Record(ctx, accessEventEntry(event))
	})
	e.Use(middleware.Audit(logger, recorder))

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})

	apiV1 := e.Group("/api/v1")

	// Audit domain
	auditHandler := audit.NewHandler(auditSvc)
	auditHandler.RegisterRoutes(apiV1)

	// Patient domain
	patientRepo := patient.NewRepoPG(pool)
	patientSvc := patient.NewService(patientRepo, auditSvc, logger)
	patientHandler := patient.NewHandler(patientSvc)
	patientHandler.RegisterRoutes(apiV1)

	// Medication domain. Prescription inserts and their safety ledger
	// records share one transaction.
	medRepo := medication.NewMedicationRepoPG(pool)
	rxRepo := medication.NewPrescriptionRepoPG(pool)
	medTx := func(ctx context.Context, fn func(ctx context.Context) error) error {
		return db.InTx(ctx, pool, fn)
	}
	medSvc := medication.NewService(medRepo, rxRepo, auditSvc, medTx, logger)
	medHandler := medication.NewHandler(medSvc)
	medHandler.RegisterRoutes(apiV1)

	// Eye test domain
	assessRepo := eyetest.NewAssessmentRepoPG(pool)
	acuityRepo := eyetest.NewAcuityRepoPG(pool)
	eyeSvc := eyetest.NewService(assessRepo, acuityRepo, auditSvc, logger)
	eyeHandler := eyetest.NewHandler(eyeSvc)
	eyeHandler.RegisterRoutes(apiV1)

	// Specialization registry
	specSvc := specialization.NewService(specialization.NewRepoPG(pool))
	specHandler := specialization.NewHandler(specSvc)
	specHandler.RegisterRoutes(apiV1)

	// Clinical effectiveness reports
	reportSvc := reports.NewService(reports.NewRepoPG(pool), reports.Defaults{
		LookbackDays: cfg.ReportLookbackDays,
		MinLagDays:   cfg.ReportMinLagDays,
		MaxLagDays:   cfg.ReportMaxLagDays,
		BucketDays:   cfg.ReportBucketDays,
		BaselineIOP:  cfg.ReportBaselineIOP,
	}, logger)
	reportHandler := reports.NewHandler(reportSvc, logger)
	reportHandler.RegisterRoutes(apiV1)

	// Start server
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
		return err
	}

	logger.Info().Msg("server stopped")
	return nil
}
