package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"boxoffice/internal/shared/config"
	"boxoffice/pkg/logger"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const pingTimeout = 5 * time.Second

// DB holds the ledger store and the optional Redis client
type DB struct {
	PostgreSQL *gorm.DB
	Redis      *redis.Client
}

// InitDB connects to Postgres, applies migrations and then tries Redis.
// Postgres is required. Redis only backs the availability cache and the rate
// limiter, so a failed Redis dial leaves DB.Redis nil instead of failing.
func InitDB(cfg *config.Config, log *logger.Logger) (*DB, error) {
	log = log.WithComponent("database")

	pg, err := openPostgres(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	if err := Migrate(pg); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("Ledger schema migrated")

	db := &DB{PostgreSQL: pg}

	rdb, err := openRedis(cfg)
	if err != nil {
		log.Warn("Redis unavailable, availability cache and rate limiting disabled",
			slog.String("addr", cfg.Redis.Addr),
			slog.Any("error", err),
		)
		return db, nil
	}
	log.Info("Redis connected", slog.String("addr", cfg.Redis.Addr))
	db.Redis = rdb

	return db, nil
}

func openPostgres(cfg *config.Config, log *logger.Logger) (*gorm.DB, error) {
	level := gormlogger.Warn
	if cfg.IsDevelopment() {
		level = gormlogger.Info
	}

	gormConfig := &gorm.Config{
		Logger: newGormLogger(log, level, cfg.Database.SlowQueryThreshold),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		PrepareStmt:                              true,
		DisableForeignKeyConstraintWhenMigrating: true,
	}

	db, err := gorm.Open(postgres.Open(cfg.Database.DSN), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("PostgreSQL connected",
		slog.String("host", cfg.Database.Host),
		slog.String("database", cfg.Database.Name),
		slog.Int("max_open_conns", cfg.Database.MaxOpenConns),
	)
	return db, nil
}

func openRedis(cfg *config.Config) (*redis.Client, error) {
	poolSize := cfg.Redis.PoolSize
	if poolSize <= 0 {
		poolSize = 10
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     poolSize,
		MinIdleConns: poolSize / 2,
		DialTimeout:  pingTimeout,
		// Cache calls sit on the reservation path; keep them short
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return rdb, nil
}

// Close closes every open connection and joins the errors
func (db *DB) Close() error {
	var errs []error

	if db.PostgreSQL != nil {
		if sqlDB, err := db.PostgreSQL.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close PostgreSQL: %w", err))
			}
		}
	}
	if db.Redis != nil {
		if err := db.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close Redis: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Component states reported by Health
const (
	StatusUp       = "up"
	StatusDown     = "down"
	StatusDisabled = "disabled"
)

// Health is the per-component result of a health check
type Health struct {
	Postgres string `json:"postgres"`
	Redis    string `json:"redis"`
	Error    string `json:"error,omitempty"`
}

// Healthy reports whether the ledger store is reachable. A Redis outage
// degrades caching but does not make the service unhealthy.
func (h Health) Healthy() bool {
	return h.Postgres == StatusUp
}

// Degraded reports a healthy service running without its Redis dependency
func (h Health) Degraded() bool {
	return h.Healthy() && h.Redis == StatusDown
}

// Health pings every configured connection
func (db *DB) Health(ctx context.Context) Health {
	h := Health{Postgres: StatusDown, Redis: StatusDisabled}

	if err := db.pingPostgres(ctx); err != nil {
		h.Error = err.Error()
	} else {
		h.Postgres = StatusUp
	}

	if db.Redis != nil {
		h.Redis = StatusUp
		if err := db.Redis.Ping(ctx).Err(); err != nil {
			h.Redis = StatusDown
			if h.Error == "" {
				h.Error = fmt.Sprintf("redis ping failed: %v", err)
			}
		}
	}

	return h
}

func (db *DB) pingPostgres(ctx context.Context) error {
	if db.PostgreSQL == nil {
		return errors.New("PostgreSQL not initialized")
	}
	sqlDB, err := db.PostgreSQL.DB()
	if err != nil {
		return fmt.Errorf("PostgreSQL health check failed: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("PostgreSQL ping failed: %w", err)
	}
	return nil
}

// GetRedis returns the Redis client, nil when Redis is unavailable
func (db *DB) GetRedis() *redis.Client {
	return db.Redis
}

// GetPostgreSQL returns the PostgreSQL GORM instance
func (db *DB) GetPostgreSQL() *gorm.DB {
	return db.PostgreSQL
}
