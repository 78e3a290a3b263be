// Command hms-server runs the hospital management HTTP API.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hms/hms/internal/config"
	"github.com/hms/hms/internal/domain/admission"
	"github.com/hms/hms/internal/domain/identity"
	"github.com/hms/hms/internal/domain/rooms"
	"github.com/hms/hms/internal/domain/scheduling"
	"github.com/hms/hms/internal/platform/audit"
	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/internal/platform/db"
	"github.com/hms/hms/internal/platform/events"
	"github.com/hms/hms/internal/platform/middleware"
	"github.com/hms/hms/internal/platform/notification"
	"github.com/hms/hms/internal/platform/sequence"
)

func main() {
	root := &cobra.Command{
		Use:   "hms-server",
		Short: "Hospital management API server",
	}
	root.AddCommand(serveCmd(), migrateCmd(), seedCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
}

func runServer(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	svcs := buildServices(pool, cfg, logger)
	if err := svcs.rooms.Provision(ctx, cfg.RoomPoolSize); err != nil {
		return fmt.Errorf("provision room pool: %w", err)
	}

	// Stand-in for UI refresh listeners: every clinical mutation is
	// visible in the log stream.
	svcs.bus.Subscribe("*", func(ev events.Event) {
		logger.Debug().
			Str("event_type", ev.Type).
			Str("resource", ev.Resource).
			Str("resource_id", ev.ResourceID).
			Msg("domain event")
	})

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Recovery(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{AllowOrigins: cfg.CORSOrigins}))

	e.GET("/health", db.HealthHandler(pool))

	api := e.Group("/api/v1")
	if cfg.IsDev() && cfg.JWTSecret == "" {
		logger.Warn().Msg("no JWT secret configured, using dev auth")
		api.Use(auth.DevAuthMiddleware())
	} else {
		api.Use(auth.JWTMiddleware(auth.Config{Secret: []byte(cfg.JWTSecret), Issuer: cfg.JWTIssuer}))
	}

	identity.NewHandler(svcs.identity).RegisterRoutes(api)
	scheduling.NewHandler(svcs.scheduling).RegisterRoutes(api)
	admission.NewHandler(svcs.admission).RegisterRoutes(api)
	rooms.NewHandler(svcs.rooms).RegisterRoutes(api)

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("server listening")
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// services holds the wired domain layer. The status machine and the room
// guard reference each other, so wiring happens here through setters and
// a small adapter rather than in the constructors.
type services struct {
	identity   *identity.Service
	scheduling *scheduling.Service
	admission  *admission.Service
	rooms      *rooms.Service
	bus        *events.Bus
}

func buildServices(pool *pgxpool.Pool, cfg *config.Config, logger zerolog.Logger) *services {
	bus := events.NewBus(logger)
	seq := sequence.NewPGGenerator(pool)
	auditor := audit.NewPGRecorder(pool)

	logSender := &notification.LogSender{Logger: logger}
	notifier := notification.NewService(logSender, logSender, logger)

	patientRepo := identity.NewPatientRepoPG(pool)
	staffRepo := identity.NewStaffRepoPG(pool)

	identitySvc := identity.NewService(patientRepo, staffRepo, seq, logger)
	schedulingSvc := scheduling.NewService(
		scheduling.NewAppointmentRepoPG(pool), patientRepo, staffRepo,
		seq, notifier, bus, logger)
	admissionSvc := admission.NewService(
		admission.NewStatusRepoPG(pool), patientRepo, auditor, bus, logger)
	roomsSvc := rooms.NewService(
		rooms.NewRoomRepoPG(pool), patientRepo, &statusReaderAdapter{svc: admissionSvc},
		seq, auditor, bus, logger)

	identitySvc.SetAdmissionRecorder(admissionSvc)
	admissionSvc.SetRoomVacator(roomsSvc)

	return &services{
		identity:   identitySvc,
		scheduling: schedulingSvc,
		admission:  admissionSvc,
		rooms:      roomsSvc,
		bus:        bus,
	}
}

// statusReaderAdapter exposes the status machine to the room guard
// without a package cycle.
type statusReaderAdapter struct {
	svc *admission.Service
}

func (a *statusReaderAdapter) CurrentStatus(ctx context.Context, patientID string) (string, error) {
	status, err := a.svc.GetStatus(ctx, patientID)
	if err != nil {
		return "", err
	}
	return string(status), nil
}

func migrateCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database schema migrations",
	}
	cmd.PersistentFlags().StringVar(&dir, "dir", "migrations", "migrations directory")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPool(cmd.Context(), func(ctx context.Context, pool *pgxpool.Pool, logger zerolog.Logger) error {
				n, err := db.NewMigrator(pool, dir).Up(ctx)
				if err != nil {
					return err
				}
				logger.Info().Int("applied", n).Msg("migrations complete")
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPool(cmd.Context(), func(ctx context.Context, pool *pgxpool.Pool, logger zerolog.Logger) error {
				statuses, err := db.NewMigrator(pool, dir).Status(ctx)
				if err != nil {
					return err
				}
				for _, st := range statuses {
					state := "pending"
					if st.Applied {
						state = "applied"
					}
					fmt.Printf("%03d  %-40s %s\n", st.Version, st.Name, state)
				}
				return nil
			})
		},
	})

	return cmd
}

func seedCmd() *cobra.Command {
	var patients, doctors int

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill the database with generated demo data",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPool(cmd.Context(), func(ctx context.Context, pool *pgxpool.Pool, logger zerolog.Logger) error {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				svcs := buildServices(pool, cfg, logger)

				if err := svcs.rooms.Provision(ctx, cfg.RoomPoolSize); err != nil {
					return fmt.Errorf("provision rooms: %w", err)
				}

				for i := 0; i < doctors; i++ {
					dept := gofakeit.RandomString([]string{
						"cardiology", "neurology", "orthopedics", "pediatrics",
						"oncology", "radiology", "general-medicine", "emergency",
					})
					_, err := svcs.identity.RegisterStaff(ctx, identity.RegisterStaffInput{
						Name:       "Dr. " + gofakeit.LastName(),
						Role:       identity.RoleDoctor,
						Department: &dept,
					})
					if err != nil {
						return fmt.Errorf("seed staff: %w", err)
					}
				}

				for i := 0; i < patients; i++ {
					email := gofakeit.Email()
					phone := gofakeit.Phone()
					initial := ""
					if gofakeit.Bool() {
						initial = "admitted"
					}
					_, err := svcs.identity.RegisterPatient(ctx, identity.RegisterPatientInput{
						Name:        gofakeit.Name(),
						Email:       &email,
						Phone:       &phone,
						InitialType: initial,
					})
					if err != nil {
						return fmt.Errorf("seed patient: %w", err)
					}
				}

				logger.Info().
					Int("patients", patients).
					Int("doctors", doctors).
					Int("rooms", cfg.RoomPoolSize).
					Msg("seed complete")
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&patients, "patients", 50, "number of patients to create")
	cmd.Flags().IntVar(&doctors, "doctors", 10, "number of doctors to create")
	return cmd
}

func withPool(ctx context.Context, fn func(context.Context, *pgxpool.Pool, zerolog.Logger) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	return fn(ctx, pool, logger)
}
