package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/clinicdesk/frontdesk/internal/config"
	"github.com/clinicdesk/frontdesk/internal/domain/acting"
	"github.com/clinicdesk/frontdesk/internal/domain/billing"
	"github.com/clinicdesk/frontdesk/internal/domain/catalog"
	"github.com/clinicdesk/frontdesk/internal/domain/patient"
	"github.com/clinicdesk/frontdesk/internal/domain/reservation"
	"github.com/clinicdesk/frontdesk/internal/domain/staff"
	"github.com/clinicdesk/frontdesk/internal/domain/treatment"
	"github.com/clinicdesk/frontdesk/internal/domain/waitlist"
	"github.com/clinicdesk/frontdesk/internal/platform/db"
	"github.com/clinicdesk/frontdesk/internal/platform/metrics"
	"github.com/clinicdesk/frontdesk/internal/platform/middleware"
	"github.com/clinicdesk/frontdesk/internal/platform/notification"
	"github.com/clinicdesk/frontdesk/internal/platform/realtime"
	"github.com/clinicdesk/frontdesk/migrations"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "frontdesk",
		Short:        "Clinic front-desk treatment board",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(roomsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the board for this terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			migrate, _ := cmd.Flags().GetBool("migrate")
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, migrate)
		},
	}
	cmd.Flags().Bool("migrate", false, "Apply pending migrations before serving")
	return cmd
}

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("terminal", cfg.TerminalID).Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Str("terminal", cfg.TerminalID).Logger()
	}
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return logger.Level(level)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runServer(ctx context.Context, migrate bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg)

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	if migrate {
		n, err := db.NewMigrator(pool, migrationSource(cfg)).Up(ctx)
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		logger.Info().Int("applied", n).Msg("migrations applied")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	boardMetrics := metrics.NewBoardMetrics(reg)
	httpMetrics := metrics.NewHTTPMetrics(reg)

	hub := realtime.NewHub(logger, cfg.TerminalID)
	var noticePublisher notification.Publisher = hub
	var relay *realtime.Relay
	if cfg.RedisURL != "" {
		rc, err := realtime.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, notices stay on this terminal")
		} else {
			defer rc.Close()
			relay = realtime.NewRelay(rc, hub, cfg.TerminalID, logger)
			noticePublisher = relay
		}
	}
	notices := notification.NewManager(logger, noticePublisher, cfg.TerminalID, 0)

	store := treatment.NewRepo(pool, db.NewListener(pool, logger))
	patients := patient.NewService(patient.NewRepo(pool), logger)
	treatments := catalog.NewService(catalog.NewRepo(pool), logger)
	payments := billing.NewService(billing.NewRepo(pool), logger)
	waiting := waitlist.NewService(waitlist.NewRepo(pool), logger)
	actings := acting.NewService(acting.NewRepo(pool), logger)
	reservations := reservation.NewService(reservation.NewRepo(pool), logger)
	personnel := staff.NewService(staff.NewMedicalRepo(pool), staff.NewStaffRepo(pool), logger)

	board := treatment.NewBoard(treatment.Options{
		Gateway:      store,
		Patients:     patient.NewDirectory(patients),
		Basic:        treatments,
		Billing:      payments,
		Waiting:      waiting,
		Notifier:     notices,
		Publisher:    hub,
		Metrics:      boardMetrics,
		Logger:       logger,
		DoctorName:   cfg.DoctorName,
		TickInterval: cfg.TickInterval,
		QueueWarn:    cfg.QueueWarn,
	})
	if err := board.Load(ctx); err != nil {
		return err
	}

	e := newRouter(routerDeps{
		cfg:      cfg,
		logger:   logger,
		pinger:   pool,
		stats:    func() *db.PoolStats { return db.GetPoolStats(pool) },
		gatherer: reg,
		panics:   httpMetrics,
		hub:      hub,
		routes: []routeRegistrar{
			treatment.NewHandler(board, store),
			patient.NewHandler(patients),
			catalog.NewHandler(treatments),
			billing.NewHandler(payments),
			waitlist.NewHandler(waiting),
			acting.NewHandler(actings),
			reservation.NewHandler(reservations),
			staff.NewHandler(personnel),
			notification.NewHandler(notices),
		},
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return board.Run(gctx)
	})
	if relay != nil {
		g.Go(func() error {
			if err := relay.Run(gctx, notices.Record); err != nil {
				logger.Error().Err(err).Msg("notice relay stopped")
			}
			return nil
		})
	}
	g.Go(func() error {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		hub.Shutdown(shutdownCtx)
		return e.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	logger.Info().Int("pending_writes", board.PendingWrites()).Msg("server stopped")
	return err
}

type routeRegistrar interface {
	RegisterRoutes(api *echo.Group)
}

type routerDeps struct {
	cfg      *config.Config
	logger   zerolog.Logger
	pinger   db.Pinger
	stats    func() *db.PoolStats
	gatherer prometheus.Gatherer
	panics   middleware.PanicObserver
	hub      *realtime.Hub
	routes   []routeRegistrar
}

func newRouter(d routerDeps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(d.logger, d.panics))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(d.logger))
	e.Use(middleware.SecurityHeaders(d.cfg.TerminalID))
	e.Use(middleware.BodyLimit(d.cfg.BodyLimit))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: d.cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Content-Type", middleware.RequestIDHeader},
	}))

	e.GET("/health", db.HealthHandler(d.pinger, d.stats))
	if d.gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(d.gatherer, promhttp.HandlerOpts{})))
	}
	if d.hub != nil {
		realtime.NewHandler(d.hub, d.cfg.CORSOrigins).RegisterRoutes(e)
	}

	rl := middleware.DefaultRateLimitConfig()
	rl.RequestsPerSecond = d.cfg.RateLimitRPS
	rl.BurstSize = d.cfg.RateLimitBurst

	api := e.Group("/api/v1")
	api.Use(middleware.RateLimit(rl))
	api.Use(middleware.RequestTimeout(d.cfg.RequestTimeout))
	for _, r := range d.routes {
		r.RegisterRoutes(api)
	}
	return e
}

func migrationSource(cfg *config.Config) fs.FS {
	if cfg.MigrationsDir != "" {
		return os.DirFS(cfg.MigrationsDir)
	}
	return migrations.FS
}

func withMigrator(fn func(ctx context.Context, m *db.Migrator) error) error {
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
	return fn(ctx, db.NewMigrator(pool, migrationSource(cfg)))
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(ctx context.Context, m *db.Migrator) error {
				count, err := m.Up(ctx)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(ctx context.Context, m *db.Migrator) error {
				statuses, err := m.Status(ctx)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				printMigrationStatus(cmd, statuses)
				return nil
			})
		},
	})

	return cmd
}

func printMigrationStatus(cmd *cobra.Command, statuses []db.MigrationStatus) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(out, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(out, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func withStore(fn func(ctx context.Context, store treatment.Store) error) error {
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
	return fn(ctx, treatment.NewRepo(pool, nil))
}

func roomsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rooms",
		Short: "Inspect and manage treatment rooms",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List rooms as stored",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(ctx context.Context, store treatment.Store) error {
				rooms, err := store.FetchRooms(ctx)
				if err != nil {
					return err
				}
				printRooms(cmd, rooms)
				return nil
			})
		},
	})

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Add a treatment room",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			if strings.TrimSpace(name) == "" {
				return fmt.Errorf("--name is required")
			}
			return withStore(func(ctx context.Context, store treatment.Store) error {
				room, err := store.CreateRoom(ctx, name)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created room %d (%s)\n", room.ID, room.Name)
				return nil
			})
		},
	}
	createCmd.Flags().String("name", "", "Room name")
	cmd.AddCommand(createCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Remove an available treatment room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid room id %q", args[0])
			}
			return withStore(func(ctx context.Context, store treatment.Store) error {
				if err := store.DeleteRoom(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted room %d\n", id)
				return nil
			})
		},
	})

	return cmd
}

func printRooms(cmd *cobra.Command, rooms []treatment.RoomSnapshot) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-6s %-20s %-12s %-20s %s\n", "ID", "NAME", "STATUS", "PATIENT", "ITEMS")
	for _, r := range rooms {
		patientName := "-"
		if r.Occupancy != nil {
			patientName = r.Occupancy.PatientName
		}
		done := 0
		for _, it := range r.Items {
			if it.Status == treatment.ItemCompleted {
				done++
			}
		}
		fmt.Fprintf(out, "%-6d %-20s %-12s %-20s %d/%d\n", r.ID, r.Name, r.Status, patientName, done, len(r.Items))
	}
}
