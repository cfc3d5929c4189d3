package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/diewo77/go-expenses/auth"
	"github.com/diewo77/go-expenses/internal/config"
	"github.com/diewo77/go-expenses/internal/db"
	"github.com/diewo77/go-expenses/internal/services"
	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

var (
	migrateOnlyFlag  = flag.Bool("migrate-only", false, "Run DB migrations and exit")
	seedOnlyFlag     = flag.Bool("seed-only", false, "Re-seed system categories for every user and exit")
	sweepInvitesFlag = flag.Bool("sweep-invites", false, "Delete expired invitations and exit")
	tokenForFlag     = flag.Uint("token-for", 0, "Print a bearer token for this user id and exit (dev only)")
)

func main() {
	flag.Parse()

	// Load environment variables from .env file
	_ = godotenv.Load()
	cfg := config.Load()
	log := newLogger(cfg.App)

	if *tokenForFlag != 0 {
		if !cfg.App.Dev {
			log.Error("token-for is only available with DEV=true")
			os.Exit(2)
		}
		tok, exp, err := auth.GenerateToken(cfg.Auth.Secret, cfg.Auth.Issuer, uint(*tokenForFlag), cfg.Auth.TokenTTL)
		if err != nil {
			fatal(log, "token generation failed", err)
		}
		log.Info("token issued", "user_id", *tokenForFlag, "expires_at", exp)
		os.Stdout.WriteString(tok + "\n")
		return
	}

	dbConn, err := db.Open(cfg.Database, log)
	if err != nil {
		fatal(log, "failed to connect to database", err)
	}

	if *migrateOnlyFlag {
		if err := migrateDB(cfg, dbConn); err != nil {
			fatal(log, "migration failed", err)
		}
		log.Info("migrations completed")
		return
	}

	// AutoMigrate always runs for sqlite and mysql; postgres uses the
	// versioned SQL files when MIGRATIONS is set.
	if cfg.App.Migrations || cfg.Database.Driver != "postgres" {
		if err := migrateDB(cfg, dbConn); err != nil {
			fatal(log, "migration failed", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *seedOnlyFlag {
		if err := db.Seed(ctx, dbConn); err != nil {
			fatal(log, "seeding failed", err)
		}
		log.Info("seeding completed")
		return
	}

	svc := services.New(dbConn, log, services.WithInviteTTL(cfg.App.InviteTTL))

	if *sweepInvitesFlag {
		n, err := svc.Invitations.SweepExpired(ctx, time.Now().UTC())
		if err != nil {
			fatal(log, "sweep failed", err)
		}
		log.Info("expired invitations removed", "count", n)
		return
	}

	// First authenticated contact registers the user and seeds their
	// system categories.
	auth.SetUserVerifier(func(ctx context.Context, uid uint) bool {
		_, err := svc.Members.EnsureUser(ctx, uid)
		return err == nil
	})

	go sweepInvitations(ctx, svc.Invitations, cfg.App.SweepInterval, log)

	app := NewApp(svc, cfg.Auth)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      withLogging(log, app),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.Server.Port, "dev", cfg.App.Dev, "driver", cfg.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal(log, "server error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("error during shutdown", "error", err)
	}
	log.Info("server stopped gracefully")
}

func migrateDB(cfg *config.Config, conn *gorm.DB) error {
	if cfg.Database.Driver == "postgres" && cfg.App.Migrations {
		return db.RunSQLMigrations(cfg.App.MigrationsDir, cfg.Database.URL())
	}
	return db.Migrate(conn)
}

// sweepInvitations removes expired invitations until ctx is cancelled.
func sweepInvitations(ctx context.Context, inv *services.InvitationService, every time.Duration, log *slog.Logger) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := inv.SweepExpired(ctx, now.UTC())
			if err != nil {
				log.Warn("invitation sweep failed", "error", err)
				continue
			}
			if n > 0 {
				log.Info("expired invitations removed", "count", n)
			}
		}
	}
}

func newLogger(app config.AppConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(app.LogLevel))); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler = slog.NewJSONHandler(os.Stdout, opts)
	if app.Dev {
		h = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(h).With("service", "expenses")
}

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(msg, "error", err)
	os.Exit(1)
}

// withLogging adds request logging middleware.
func withLogging(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Info("request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
