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
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Jackshan-Venujan/Hospital-Management-System-sub002/internal/config"
	"github.com/Jackshan-Venujan/Hospital-Management-System-sub002/internal/domain/clinical"
	"github.com/Jackshan-Venujan/Hospital-Management-System-sub002/internal/domain/identity"
	"github.com/Jackshan-Venujan/Hospital-Management-System-sub002/internal/domain/medication"
	"github.com/Jackshan-Venujan/Hospital-Management-System-sub002/internal/domain/scheduling"
	"github.com/Jackshan-Venujan/Hospital-Management-System-sub002/internal/domain/timeline"
	"github.com/Jackshan-Venujan/Hospital-Management-System-sub002/internal/platform/auth"
	"github.com/Jackshan-Venujan/Hospital-Management-System-sub002/internal/platform/db"
	"github.com/Jackshan-Venujan/Hospital-Management-System-sub002/internal/platform/metrics"
	"github.com/Jackshan-Venujan/Hospital-Management-System-sub002/internal/platform/middleware"
	"github.com/Jackshan-Venujan/Hospital-Management-System-sub002/internal/platform/openapi"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "portal-server",
		Short: "Hospital portal API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(userCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the portal API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg != nil && cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// openPool loads config and connects; callers must close the pool.
func openPool(ctx context.Context) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return cfg, pool, nil
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

			ctx := context.Background()
			cfg, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()
			if dir == "" {
				dir = cfg.MigrationsDir
			}

			count, err := db.NewMigrator(pool, dir).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Path to migrations directory (defaults to MIGRATIONS_DIR)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			ctx := context.Background()
			cfg, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()
			if dir == "" {
				dir = cfg.MigrationsDir
			}

			statuses, err := db.NewMigrator(pool, dir).Status(ctx)
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
	statusCmd.Flags().String("dir", "", "Path to migrations directory (defaults to MIGRATIONS_DIR)")
	cmd.AddCommand(statusCmd)

	return cmd
}

// userCmd bootstraps accounts, most importantly the first admin.
func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage portal users",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user account",
		RunE: func(cmd *cobra.Command, args []string) error {
			username, _ := cmd.Flags().GetString("username")
			password, _ := cmd.Flags().GetString("password")
			role, _ := cmd.Flags().GetString("role")
			displayName, _ := cmd.Flags().GetString("display-name")
			doctorID, _ := cmd.Flags().GetString("doctor-id")
			patientID, _ := cmd.Flags().GetString("patient-id")

			u, err := newUserFromFlags(username, role, displayName, doctorID, patientID)
			if err != nil {
				return err
			}
			if password == "" {
				password = os.Getenv("PORTAL_USER_PASSWORD")
			}

			ctx := context.Background()
			cfg, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := identity.NewService(
				identity.NewUserRepoPG(pool),
				identity.NewDoctorRepoPG(pool),
				identity.NewPatientRepoPG(pool),
				nil,
				identity.WithLogger(newLogger(cfg)),
			)
			if err := svc.CreateUser(ctx, u, password); err != nil {
				return err
			}
			fmt.Printf("Created %s user %s (%s)\n", u.Role, u.Username, u.ID)
			return nil
		},
	}
	createCmd.Flags().String("username", "", "Login name")
	createCmd.Flags().String("password", "", "Password (or set PORTAL_USER_PASSWORD)")
	createCmd.Flags().String("role", string(auth.RoleAdmin), "admin, doctor, nurse, receptionist or patient")
	createCmd.Flags().String("display-name", "", "Name shown in the portal")
	createCmd.Flags().String("doctor-id", "", "Doctor profile for doctor accounts")
	createCmd.Flags().String("patient-id", "", "Patient profile for patient accounts")

	cmd.AddCommand(createCmd)
	return cmd
}

func newUserFromFlags(username, role, displayName, doctorID, patientID string) (*identity.User, error) {
	if username == "" {
		return nil, fmt.Errorf("--username is required")
	}
	r, err := auth.ParseRole(role)
	if err != nil {
		return nil, err
	}
	u := &identity.User{Username: username, Role: r, DisplayName: displayName}
	if doctorID != "" {
		id, err := uuid.Parse(doctorID)
		if err != nil {
			return nil, fmt.Errorf("--doctor-id: %w", err)
		}
		u.DoctorID = &id
	}
	if patientID != "" {
		id, err := uuid.Parse(patientID)
		if err != nil {
			return nil, fmt.Errorf("--patient-id: %w", err)
		}
		u.PatientID = &id
	}
	return u, nil
}

func runServer() error {
	cfg, err := config.Load()
	logger := newLogger(cfg)
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

	e, err := newServer(cfg, pool, logger, prometheus.NewRegistry())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build server")
	}

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// newServer wires middleware, services and routes. It performs no I/O, so
// tests can build it around a pool that was never connected.
func newServer(cfg *config.Config, pool *pgxpool.Pool, logger zerolog.Logger, reg *prometheus.Registry) (*echo.Echo, error) {
	key, err := cfg.SigningKey()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	m := metrics.New(reg)
	tokens := auth.NewTokenIssuer(key, cfg.JWTIssuer, cfg.TokenTTL)
	revocations := auth.NewTokenRevocationStore()
	tokens.UseRevocations(revocations)
	tx := db.NewTxRunner(pool)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.RegisterOnShutdown(revocations.Close)

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders("/api/v1/docs"))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.Metrics(m))

	// Auth middleware
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware(tokens))
	} else {
		e.Use(auth.JWTMiddleware(tokens, auth.PublicSkipper))
	}

	e.Use(middleware.Audit(logger, phiAccessRecorder{m}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))
	e.GET("/metrics", echo.WrapHandler(m.Handler()))

	apiV1 := e.Group("/api/v1")
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))
	apiV1.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	apiV1.Use(middleware.BodyLimit(cfg.BodyLimit))

	// Identity domain
	identitySvc := identity.NewService(
		identity.NewUserRepoPG(pool),
		identity.NewDoctorRepoPG(pool),
		identity.NewPatientRepoPG(pool),
		tokens,
		identity.WithLogger(logger),
		identity.WithLoginObserver(m),
	)
	identity.NewHandler(identitySvc).RegisterRoutes(apiV1)
	auth.RegisterRevocationRoutes(apiV1, revocations)

	// Scheduling domain
	schedulingSvc := scheduling.NewService(
		scheduling.NewWeeklyRuleRepoPG(pool),
		scheduling.NewTimeBlockRepoPG(pool),
		scheduling.NewAppointmentRepoPG(pool),
		tx,
		scheduling.WithClock(time.Now, loc),
		scheduling.WithBookingObserver(m),
		scheduling.WithLogger(logger),
	)
	scheduling.NewHandler(schedulingSvc).RegisterRoutes(apiV1)

	// Clinical domain
	clinicalSvc := clinical.NewService(
		clinical.NewMedicalRecordRepoPG(pool),
		clinical.WithClock(time.Now, loc),
		clinical.WithLogger(logger),
	)
	clinical.NewHandler(clinicalSvc).RegisterRoutes(apiV1)

	// Medication domain
	medicationSvc := medication.NewService(
		medication.NewPrescriptionRepoPG(pool),
		clinicalSvc,
		tx,
		medication.WithClock(time.Now, loc),
		medication.WithLogger(logger),
	)
	medication.NewHandler(medicationSvc).RegisterRoutes(apiV1)

	// Patient history
	timelineSvc := timeline.NewService(clinicalSvc, medicationSvc, schedulingSvc, identitySvc,
		timeline.WithClock(time.Now, loc),
		timeline.WithLogger(logger),
	)
	timeline.NewHandler(timelineSvc).RegisterRoutes(apiV1)

	openapi.NewGenerator(e, "/api/v1", version, auth.IsPublicPath).RegisterRoutes(apiV1)

	return e, nil
}

// phiAccessRecorder counts audited patient-data access by role.
type phiAccessRecorder struct {
	m *metrics.Metrics
}

func (r phiAccessRecorder) RecordAccess(entry middleware.AuditEntry) error {
	r.m.ObservePHIAccess(entry.Role, entry.Resource, entry.Action)
	return nil
}
