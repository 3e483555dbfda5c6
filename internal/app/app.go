// Package app wires configuration into a connected, observable set of
// table repositories and owns their lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"tablerepo/internal/config"
	"tablerepo/internal/database"
	"tablerepo/internal/dbexec"
	"tablerepo/internal/logging"
	"tablerepo/internal/notify"
	"tablerepo/internal/observability"
	"tablerepo/internal/repository"
)

// ErrUnknownTable is returned for a table with no configured descriptor.
var ErrUnknownTable = errors.New("unknown table")

// App owns the runtime resources behind the repositories.
type App struct {
	cfg    *config.Config
	logger *logging.Logger

	loggerProvider *observability.LoggerProvider
	meterProvider  *observability.MeterProvider
	tracerProvider *observability.TracerProvider
	metrics        *observability.RepositoryMetrics

	provider     *database.Provider
	providerOpts []database.Option
	exec         dbexec.QueryExecutor
	notifier     notify.Notifier

	cleanup cleanupStack

	stateMu     sync.Mutex
	initialized bool

	shutdownOnce sync.Once
}

// New creates an App lifecycle wrapper.
func New(cfg *config.Config, logger *logging.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &App{cfg: cfg, logger: logger}, nil
}

// AttachLoggerProvider registers an optional logger provider for shutdown cleanup.
func (a *App) AttachLoggerProvider(provider *observability.LoggerProvider) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	a.loggerProvider = provider
}

// Reader returns a repository for table. Tables marked read_only get the
// ReadOnly variant.
func (a *App) Reader(table string) (repository.Reader, error) {
	desc, opts, err := a.repositoryFor(table)
	if err != nil {
		return nil, err
	}
	if desc.ReadOnly {
		return repository.NewReadOnly(desc, a.exec, opts...)
	}
	return repository.New(desc, a.exec, opts...)
}

// Writer returns a read-write repository for table. Tables marked
// read_only fail with repository.ErrPermission.
func (a *App) Writer(table string) (repository.Writer, error) {
	desc, opts, err := a.repositoryFor(table)
	if err != nil {
		return nil, err
	}
	if desc.ReadOnly {
		return nil, fmt.Errorf("%w: %s is read-only", repository.ErrPermission, desc.Table)
	}
	return repository.New(desc, a.exec, opts...)
}

func (a *App) repositoryFor(table string) (repository.TableDescriptor, []repository.Option, error) {
	a.stateMu.Lock()
	initialized := a.initialized
	a.stateMu.Unlock()
	if !initialized {
		return repository.TableDescriptor{}, nil, fmt.Errorf("%w: app is not initialized", repository.ErrConfiguration)
	}

	desc, ok := a.cfg.Table(table)
	if !ok {
		return repository.TableDescriptor{}, nil, fmt.Errorf("%w: %w %q", repository.ErrConfiguration, ErrUnknownTable, table)
	}
	opts := []repository.Option{
		repository.WithLogger(a.logger),
		repository.WithMetrics(a.metrics),
	}
	if a.notifier != nil {
		opts = append(opts, repository.WithNotifier(a.notifier))
	}
	return desc, opts, nil
}

// LogMetrics writes the collected repository metrics at debug level.
func (a *App) LogMetrics(ctx context.Context) {
	if a.meterProvider != nil {
		a.meterProvider.LogSummary(ctx, a.logger.Logger)
	}
}
