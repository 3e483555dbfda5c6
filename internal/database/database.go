// Package database opens the pooled PostgreSQL handle behind the repositories.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/XSAM/otelsql"
	_ "github.com/jackc/pgx/v5/stdlib"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"tablerepo/internal/credentials"
	"tablerepo/internal/dbexec"
	"tablerepo/internal/logging"
)

// DriverName is the database/sql driver registered by pgx.
const DriverName = "pgx"

// ErrUnavailable is returned when no connection could be established.
var ErrUnavailable = errors.New("database unavailable")

// PoolConfig controls the database/sql pool. Zero fields keep the
// database/sql defaults.
type PoolConfig struct {
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
}

// Config controls how the provider connects.
type Config struct {
	Pool PoolConfig
	// Role and SearchPath are applied per statement on a checked-out connection.
	// A context role from dbexec.WithRole must be Role or in AllowedRoles.
	Role         string
	AllowedRoles []string
	SearchPath   []string

	TracingEnabled      bool
	MetricsEnabled      bool
	SQLCommenterEnabled bool

	// ConnectTimeout bounds the initial ping retries. Zero pings once.
	ConnectTimeout time.Duration
	RetryInterval  time.Duration
}

// Opener opens a handle for dsn.
type Opener func(dsn string) (*sql.DB, error)

// Provider fetches credentials once, owns a single *sql.DB and hands out
// executors over it.
type Provider struct {
	creds  credentials.Provider
	cfg    Config
	logger *logging.Logger
	open   Opener

	mu       sync.Mutex
	db       *sql.DB
	exec     dbexec.QueryExecutor
	statsReg interface{ Unregister() error }
}

// Option customizes a Provider.
type Option func(*Provider)

// WithOpener replaces the driver opener.
func WithOpener(open Opener) Option {
	return func(p *Provider) { p.open = open }
}

// NewProvider creates a provider. Nothing is fetched or opened until the
// first call that needs a connection.
func NewProvider(creds credentials.Provider, cfg Config, logger *logging.Logger, opts ...Option) *Provider {
	if logger == nil {
		logger = logging.Nop()
	}
	if _, cached := creds.(*credentials.Cached); !cached {
		creds = credentials.NewCached(creds)
	}
	p := &Provider{creds: creds, cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(p)
	}
	if p.open == nil {
		p.open = p.defaultOpener
	}
	return p
}

// FetchCredentials returns the cached credentials.
func (p *Provider) FetchCredentials(ctx context.Context) (credentials.Credentials, error) {
	return p.creds.FetchCredentials(ctx)
}

// Executor returns the executor used by repositories, connecting on first use.
func (p *Provider) Executor(ctx context.Context) (dbexec.QueryExecutor, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.connectLocked(ctx); err != nil {
		return nil, err
	}
	return p.exec, nil
}

// DB returns the underlying handle, connecting on first use.
func (p *Provider) DB(ctx context.Context) (*sql.DB, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.connectLocked(ctx); err != nil {
		return nil, err
	}
	return p.db, nil
}

// Close releases the pool. It is safe to call on an unopened provider.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db == nil {
		return nil
	}
	if p.statsReg != nil {
		if err := p.statsReg.Unregister(); err != nil {
			p.logger.Warn("failed to unregister DB stats metrics", slog.String("error", err.Error()))
		}
		p.statsReg = nil
	}
	err := p.db.Close()
	p.db = nil
	p.exec = nil
	return err
}

func (p *Provider) connectLocked(ctx context.Context) error {
	if p.db != nil {
		return nil
	}
	creds, err := p.creds.FetchCredentials(ctx)
	if err != nil {
		p.logger.Error("failed to fetch database credentials", slog.String("error", err.Error()))
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	db, err := p.open(creds.DSN())
	if err != nil {
		p.logger.Error("failed to open database", slog.String("target", creds.Redacted()), slog.String("error", err.Error()))
		return fmt.Errorf("%w: open failed", ErrUnavailable)
	}
	applyPool(db, p.cfg.Pool)

	if err := p.waitForDatabase(ctx, db); err != nil {
		_ = db.Close()
		p.logger.Error("database not reachable", slog.String("target", creds.Redacted()), slog.String("error", err.Error()))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %w", ErrUnavailable, ctxErr)
		}
		return fmt.Errorf("%w: ping failed", ErrUnavailable)
	}

	if p.cfg.MetricsEnabled {
		reg, err := otelsql.RegisterDBStatsMetrics(db, otelsql.WithAttributes(semconv.DBSystemPostgreSQL))
		if err != nil {
			p.logger.Warn("failed to register DB stats metrics", slog.String("error", err.Error()))
		} else {
			p.statsReg = reg
		}
	}

	p.db = db
	p.exec = p.newExecutor(db)
	p.logger.Info("connected to database",
		slog.String("target", creds.Redacted()),
		slog.Int("pool_max_open", p.cfg.Pool.MaxOpen),
		slog.Int("pool_max_idle", p.cfg.Pool.MaxIdle),
		slog.Duration("pool_max_lifetime", p.cfg.Pool.MaxLifetime),
		slog.Bool("scoped", p.scoped()),
	)
	return nil
}

func (p *Provider) scoped() bool {
	return p.cfg.Role != "" || len(p.cfg.AllowedRoles) > 0 || len(p.cfg.SearchPath) > 0
}

func (p *Provider) newExecutor(db *sql.DB) dbexec.QueryExecutor {
	if !p.scoped() {
		return dbexec.NewStandardExecutor(db)
	}
	return dbexec.NewScopedExecutor(dbexec.ScopedExecutorConfig{
		DB:           db,
		Role:         p.cfg.Role,
		SearchPath:   p.cfg.SearchPath,
		AllowedRoles: p.cfg.AllowedRoles,
		ValidateRole: true,
	})
}

func (p *Provider) waitForDatabase(ctx context.Context, db *sql.DB) error {
	if p.cfg.ConnectTimeout == 0 {
		return db.PingContext(ctx)
	}
	interval := p.cfg.RetryInterval
	if interval <= 0 {
		interval = time.Second
	}
	deadline := time.Now().Add(p.cfg.ConnectTimeout)
	attempt := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		attempt++
		err := db.PingContext(ctx)
		if err == nil {
			if attempt > 1 {
				p.logger.Info("database connection established", slog.Int("attempts", attempt))
			}
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("database not available after %v: %w", p.cfg.ConnectTimeout, err)
		}
		p.logger.Warn("database not ready, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("retry_in", interval),
			slog.String("error", err.Error()),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

func (p *Provider) defaultOpener(dsn string) (*sql.DB, error) {
	if !p.cfg.MetricsEnabled && !p.cfg.TracingEnabled {
		return sql.Open(DriverName, dsn)
	}

	opts := []otelsql.Option{
		otelsql.WithAttributes(semconv.DBSystemPostgreSQL),
	}
	if p.cfg.TracingEnabled {
		opts = append(opts, otelsql.WithSpanOptions(otelsql.SpanOptions{
			DisableErrSkip: true,
		}))
	}
	if p.cfg.SQLCommenterEnabled {
		if p.cfg.TracingEnabled {
			opts = append(opts, otelsql.WithSQLCommenter(true))
		} else {
			p.logger.Warn("SQLCommenter requires tracing to be enabled - skipping SQLCommenter")
		}
	}
	p.logger.Debug("database instrumentation enabled",
		slog.Bool("metrics", p.cfg.MetricsEnabled),
		slog.Bool("tracing", p.cfg.TracingEnabled),
	)
	return otelsql.Open(DriverName, dsn, opts...)
}

func applyPool(db *sql.DB, pool PoolConfig) {
	if pool.MaxOpen > 0 {
		db.SetMaxOpenConns(pool.MaxOpen)
	}
	if pool.MaxIdle > 0 {
		db.SetMaxIdleConns(pool.MaxIdle)
	}
	if pool.MaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.MaxLifetime)
	}
}
