package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/httplog/v3"
	"github.com/jonboulle/clockwork"

	"github.com/kayuraya/presensi-backend/internal/config"
	"github.com/kayuraya/presensi-backend/internal/domain/attendance"
	"github.com/kayuraya/presensi-backend/internal/domain/schedule"
	appHTTP "github.com/kayuraya/presensi-backend/internal/handler/http"
	"github.com/kayuraya/presensi-backend/internal/pkg/cron"
	"github.com/kayuraya/presensi-backend/internal/pkg/database"
	"github.com/kayuraya/presensi-backend/internal/pkg/jwt"
	redisClient "github.com/kayuraya/presensi-backend/internal/pkg/redis"
	"github.com/kayuraya/presensi-backend/internal/repository/postgresql"
	redisRepo "github.com/kayuraya/presensi-backend/internal/repository/redis"
	attendanceService "github.com/kayuraya/presensi-backend/internal/service/attendance"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logFormat := httplog.SchemaECS.Concise(cfg.App.Env == "development")
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:       cfg.SlogLevel(),
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", "presensi-backend"),
		slog.String("env", cfg.App.Env),
	)
	slog.SetDefault(logger)

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dsn := cfg.DatabaseURL()
	if cfg.Database.AutoMigrate {
		if err := database.RunMigrations(dsn); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	db, err := database.NewPostgreSQLDB(ctx, dsn, database.PoolOptions{
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	attendanceRepo := postgresql.NewAttendanceRepository(db)
	var shiftRepo schedule.ShiftRepository = postgresql.NewShiftAssignmentRepository(db)

	if cfg.Redis.Addr != "" {
		rdb, err := redisClient.NewClient(ctx, redisClient.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer rdb.Close()
		shiftRepo = redisRepo.NewShiftCache(shiftRepo, rdb, cfg.Redis.ShiftTTL, cfg.Redis.ShiftMissTTL)
	}

	machine := attendance.NewMachine(
		attendance.WindowPolicy{
			EarlyTolerance:  cfg.Attendance.EarlyTolerance,
			LateCeiling:     cfg.Attendance.LateCeiling,
			MinimumDuration: cfg.Attendance.MinCheckOut,
		},
		attendance.RequestGate{MinReasonLength: cfg.Attendance.MinReasonLength},
		attendance.GraceClassifier{Grace: cfg.Attendance.GracePeriod},
	)

	attendanceSvc := attendanceService.NewAttendanceService(
		attendanceRepo,
		shiftRepo,
		machine,
		clockwork.NewRealClock(),
		attendanceService.Options{
			Location:    loc,
			HistoryDays: cfg.Attendance.HistoryDays,
		},
	)

	scheduler := cron.NewScheduler(loc)
	if err := cron.NewAttendanceJobs(attendanceSvc).RegisterJobs(scheduler, cfg.Cron.MarkAbsent); err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()

	JWTService, err := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiration)
	if err != nil {
		return err
	}

	attendanceHandler := appHTTP.NewAttendanceHandler(attendanceSvc)
	router := appHTTP.NewRouter(appHTTP.RouterOptions{
		Logger:         logger,
		AllowedOrigins: cfg.App.AllowedOrigins,
	}, JWTService, attendanceHandler)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server running", "addr", srv.Addr, "timezone", loc.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
