package db

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/diewo77/go-expenses/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects with the configured driver, retrying networked databases
// while they start, and applies pool settings.
func Open(cfg config.DatabaseConfig, log *slog.Logger) (*gorm.DB, error) {
	dsn := cfg.DSN()
	if cfg.Driver == "postgres" || cfg.Driver == "" {
		dsn = NormalizeDSN(dsn)
	}
	dialector, err := dialectorFor(cfg.Driver, dsn)
	if err != nil {
		return nil, err
	}
	gormCfg := &gorm.Config{
		Logger:         newGormLogger(cfg, log),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	}

	attempts := 5
	if cfg.Driver == "sqlite" {
		attempts = 1
	}
	var conn *gorm.DB
	for i := 0; i < attempts; i++ {
		conn, err = gorm.Open(dialector, gormCfg)
		if err == nil {
			break
		}
		log.Warn("database connection failed", "attempt", i+1, "of", attempts, "error", err)
		if i+1 < attempts {
			time.Sleep(2 * time.Second)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Driver, err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("pool: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	log.Info("database connected", "driver", cfg.Driver, "dsn", MaskDSN(dsn))
	return conn, nil
}

func dialectorFor(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "", "postgres":
		return postgres.Open(dsn), nil
	case "mysql":
		return mysql.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(dsn), nil
	}
	return nil, fmt.Errorf("unsupported DB_DRIVER %q", driver)
}

// newGormLogger routes GORM's slow query and error reports through slog.
func newGormLogger(cfg config.DatabaseConfig, log *slog.Logger) logger.Interface {
	level := logger.Warn
	if cfg.Debug {
		level = logger.Info
	}
	return logger.New(
		slog.NewLogLogger(log.Handler(), slog.LevelWarn),
		logger.Config{
			SlowThreshold:             cfg.SlowQuery,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}
