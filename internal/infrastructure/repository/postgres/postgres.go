package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/VladKovDev/raffle-bot/internal/config"
	"github.com/VladKovDev/raffle-bot/pkg/logger"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const (
	applicationName = "raffle-bot"
	connectTimeout  = 5 * time.Second
	pingTimeout     = 3 * time.Second
)

// Pool is the connection pool behind the postgres state repository.
type Pool struct {
	*pgxpool.Pool
	logger logger.Logger
}

// poolConfig turns the database section into pgx settings. The state
// table is a single row written by one serializer, so a small pool is
// enough.
func poolConfig(cfg *config.DatabaseConfig) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig("postgres://" + cfg.GetDatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("unable to parse db config: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		pc.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		pc.MinConns = int32(cfg.MaxIdleConns)
	}
	if pc.MinConns > pc.MaxConns {
		pc.MinConns = pc.MaxConns
	}
	if cfg.ConnMaxLifetime > 0 {
		pc.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	if cfg.ConnMaxIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.ConnMaxIdleTime
	}
	if cfg.HealthCheckPeriod > 0 {
		pc.HealthCheckPeriod = cfg.HealthCheckPeriod
	}

	pc.ConnConfig.ConnectTimeout = connectTimeout
	pc.ConnConfig.RuntimeParams["application_name"] = applicationName
	return pc, nil
}

// NewPool connects to the state database and fails unless it answers a
// health check.
func NewPool(ctx context.Context, cfg *config.DatabaseConfig, log logger.Logger) (*Pool, error) {
	pc, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}

	log.Info("connecting to state database",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Name),
		zap.Int32("max_conns", pc.MaxConns),
		zap.Duration("health_check_period", pc.HealthCheckPeriod),
	)

	pgPool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("unable to create pool: %w", err)
	}

	p := &Pool{Pool: pgPool, logger: log}
	if err := p.HealthCheck(ctx); err != nil {
		pgPool.Close()
		return nil, fmt.Errorf("unable to reach state database: %w", err)
	}

	log.Info("connected to state database")
	return p, nil
}

// HealthCheck pings the database within pingTimeout.
func (p *Pool) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := p.Ping(ctx); err != nil {
		p.logger.Error("state database health check failed", zap.Error(err))
		return err
	}
	return nil
}

func (p *Pool) Close() {
	p.Pool.Close()
	p.logger.Info("state database pool closed")
}
