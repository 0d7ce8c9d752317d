package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/bimakw/stage-rebalancer/internal/config"
)

// PostgresDB wraps the sqlx database connection
type PostgresDB struct {
	db     *sqlx.DB
	name   string
	logger *zap.Logger
}

// NewPostgresDB opens a PostgreSQL pool and waits for it to answer a ping,
// retrying up to cfg.ConnectRetries times
func NewPostgresDB(cfg config.DatabaseConfig, logger *zap.Logger) (*PostgresDB, error) {
	db, err := sqlx.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	for attempt := 0; ; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = db.PingContext(ctx)
		cancel()
		if err == nil {
			break
		}
		if attempt >= cfg.ConnectRetries {
			db.Close()
			return nil, fmt.Errorf("failed to ping database after %d attempts: %w", attempt+1, err)
		}
		logger.Warn("Database not ready, retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", cfg.ConnectRetryDelay),
			zap.Error(err),
		)
		time.Sleep(cfg.ConnectRetryDelay)
	}

	logger.Info("Connected to PostgreSQL",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Name),
	)

	return &PostgresDB{
		db:     db,
		name:   cfg.Name,
		logger: logger,
	}, nil
}

// RegisterMetrics exports connection pool statistics
func (p *PostgresDB) RegisterMetrics(reg prometheus.Registerer) error {
	if err := reg.Register(collectors.NewDBStatsCollector(p.db.DB, p.name)); err != nil {
		return fmt.Errorf("failed to register database metrics: %w", err)
	}
	return nil
}

// Close closes the database connection
func (p *PostgresDB) Close() error {
	return p.db.Close()
}

// DB returns the underlying sqlx.DB
func (p *PostgresDB) DB() *sqlx.DB {
	return p.db
}

// HealthCheck performs a health check on the database
func (p *PostgresDB) HealthCheck(ctx context.Context) error {
	return p.db.PingContext(ctx)
}
