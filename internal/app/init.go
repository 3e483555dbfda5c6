package app

import (
	"context"
	"fmt"
	"log/slog"
)

// Init initializes telemetry, connects to the database and prepares the
// change notifier. It is idempotent.
func (a *App) Init(ctx context.Context) error {
	a.stateMu.Lock()
	if a.initialized {
		a.stateMu.Unlock()
		return nil
	}
	a.stateMu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}

	cleanup := cleanupStack{}
	success := false
	defer func() {
		if !success {
			cleanup.run(context.Background(), a.logger)
		}
	}()

	if a.loggerProvider != nil {
		cleanup.push("logger provider", func(shutdownCtx context.Context) error {
			return a.loggerProvider.Shutdown(shutdownCtx, a.logger.Logger)
		})
	}

	meterProvider, metrics, err := initMetrics(a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry metrics: %w", err)
	}
	if meterProvider != nil {
		cleanup.push("meter provider", func(shutdownCtx context.Context) error {
			return meterProvider.Shutdown(shutdownCtx, a.logger.Logger)
		})
	}

	tracerProvider, err := initTracing(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry tracing: %w", err)
	}
	if tracerProvider != nil {
		cleanup.push("tracer provider", func(shutdownCtx context.Context) error {
			return tracerProvider.Shutdown(shutdownCtx, a.logger.Logger)
		})
	}

	creds, err := buildCredentialsProvider(ctx, a.cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize credentials: %w", err)
	}

	a.logger.Debug("connecting to database",
		slog.String("credentials_source", a.cfg.Database.Credentials.Source),
		slog.String("role", a.cfg.Database.Role),
		slog.Any("search_path", a.cfg.Database.SearchPath),
	)
	provider := buildProvider(a.cfg, creds, a.logger, a.providerOpts...)
	cleanup.push("database", func(_ context.Context) error {
		return provider.Close()
	})
	exec, err := provider.Executor(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	notifier, err := buildNotifier(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize change notifier: %w", err)
	}

	a.stateMu.Lock()
	a.meterProvider = meterProvider
	a.metrics = metrics
	a.tracerProvider = tracerProvider
	a.provider = provider
	a.exec = exec
	a.notifier = notifier
	a.cleanup = cleanup
	a.initialized = true
	a.stateMu.Unlock()

	success = true
	return nil
}
