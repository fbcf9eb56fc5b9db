package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Pool struct {
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
	// SlowQuery is the threshold for slow-query warnings.
	SlowQuery time.Duration
}

func DefaultPool() Pool {
	return Pool{
		MaxOpen:     30,
		MaxIdle:     10,
		MaxLifetime: 30 * time.Minute,
		MaxIdleTime: 10 * time.Minute,
		SlowQuery:   200 * time.Millisecond,
	}
}

func OpenGorm(dsn string, pool Pool) (*gorm.DB, error) {
	return openGorm(mysql.Open(dsn), pool)
}

// OpenGormWithDialector opens with the default pool; tests hand in a
// dialector over sqlmock.
func OpenGormWithDialector(dial gorm.Dialector) (*gorm.DB, error) {
	return openGorm(dial, DefaultPool())
}

func openGorm(dial gorm.Dialector, pool Pool) (*gorm.DB, error) {
	cfg := &gorm.Config{
		Logger: logger.New(slogWriter{}, logger.Config{
			SlowThreshold:             pool.SlowQuery,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	}
	db, err := gorm.Open(dial, cfg)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(pool.MaxOpen)
	sqlDB.SetMaxIdleConns(pool.MaxIdle)
	sqlDB.SetConnMaxLifetime(pool.MaxLifetime)
	sqlDB.SetConnMaxIdleTime(pool.MaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	slog.Info("gorm: connected", "max_open", pool.MaxOpen)
	return db, nil
}

// Ping checks the pool behind db for health checks.
func Ping(db *gorm.DB) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}

// slogWriter routes gorm's printf-style logger into slog.
type slogWriter struct{}

func (slogWriter) Printf(format string, args ...any) {
	slog.Warn(fmt.Sprintf(format, args...), "component", "gorm")
}
