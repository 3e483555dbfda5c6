package app

import (
	"context"
	"fmt"
	"log/slog"

	"tablerepo/internal/awsconf"
	"tablerepo/internal/config"
	"tablerepo/internal/credentials"
	"tablerepo/internal/database"
	"tablerepo/internal/logging"
	"tablerepo/internal/notify"
	"tablerepo/internal/observability"
)

// InitLogger builds the process logger, bridging to OTLP when log exports
// are enabled.
func InitLogger(ctx context.Context, cfg *config.Config) (*logging.Logger, *observability.LoggerProvider, error) {
	loggerCfg := logging.Config{
		Level:       cfg.Observability.Logging.Level,
		Format:      cfg.Observability.Logging.Format,
		ServiceName: cfg.Observability.ServiceName,
	}
	logger := logging.NewLogger(loggerCfg)
	slog.SetDefault(logger.Logger)

	if !cfg.Observability.Logging.ExportsEnabled {
		return logger, nil, nil
	}

	logsConfig := cfg.Observability.GetLogsConfig()
	logger.Debug("initializing OpenTelemetry logging",
		slog.String("service_name", cfg.Observability.ServiceName),
		slog.String("service_version", cfg.Observability.ServiceVersion),
		slog.String("environment", cfg.Observability.Environment),
		slog.String("otlp_endpoint", logsConfig.Endpoint),
		slog.String("otlp_protocol", logsConfig.Protocol),
		slog.Bool("insecure", logsConfig.Insecure),
	)

	loggerProvider, err := observability.InitLoggerProvider(ctx, observabilityConfig(cfg, logsConfig))
	if err != nil {
		return nil, nil, err
	}

	loggerCfg.LoggerProvider = loggerProvider.Provider()
	logger = logging.NewLogger(loggerCfg)
	slog.SetDefault(logger.Logger)

	return logger, loggerProvider, nil
}

func initMetrics(cfg *config.Config, logger *logging.Logger) (*observability.MeterProvider, *observability.RepositoryMetrics, error) {
	if !cfg.Observability.MetricsEnabled {
		return nil, nil, nil
	}

	meterProvider, err := observability.InitMeterProvider(observabilityConfig(cfg, config.OTLPConfig{}))
	if err != nil {
		return nil, nil, err
	}

	metrics, err := observability.InitRepositoryMetrics()
	if err != nil {
		_ = meterProvider.Shutdown(context.Background(), logger.Logger)
		return nil, nil, err
	}
	logger.Debug("repository metrics initialized")

	return meterProvider, metrics, nil
}

func initTracing(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*observability.TracerProvider, error) {
	if !cfg.Observability.TracingEnabled {
		return nil, nil
	}

	tracesConfig := cfg.Observability.GetTracesConfig()
	logger.Debug("initializing OpenTelemetry tracing",
		slog.String("service_name", cfg.Observability.ServiceName),
		slog.String("otlp_endpoint", tracesConfig.Endpoint),
		slog.String("otlp_protocol", tracesConfig.Protocol),
		slog.Bool("insecure", tracesConfig.Insecure),
		slog.Float64("sample_ratio", cfg.Observability.TraceSampleRatio),
	)

	return observability.InitTracerProvider(ctx, observabilityConfig(cfg, tracesConfig))
}

func observabilityConfig(cfg *config.Config, otlp config.OTLPConfig) observability.Config {
	return observability.Config{
		ServiceName:      cfg.Observability.ServiceName,
		ServiceVersion:   cfg.Observability.ServiceVersion,
		Environment:      cfg.Observability.Environment,
		TraceSampleRatio: cfg.Observability.TraceSampleRatio,
		OTLPConfig: observability.OTLPExporterConfig{
			Endpoint:          otlp.Endpoint,
			Protocol:          otlp.Protocol,
			Insecure:          otlp.Insecure,
			TLSCertFile:       otlp.TLSCertFile,
			TLSClientCertFile: otlp.TLSClientCertFile,
			TLSClientKeyFile:  otlp.TLSClientKeyFile,
			Headers:           otlp.Headers,
			Timeout:           otlp.Timeout,
			Compression:       otlp.Compression,
		},
	}
}

// buildCredentialsProvider selects the credential source. The result is
// cached so credentials are fetched at most once per process.
func buildCredentialsProvider(ctx context.Context, cfg *config.Config) (credentials.Provider, error) {
	static := cfg.Database.StaticCredentials()

	var provider credentials.Provider
	switch cfg.Database.Credentials.Source {
	case config.SourceConfig, "":
		provider = credentials.Static{Credentials: static}
	case config.SourceEnv:
		provider = credentials.Env{Base: static}
	case config.SourceSecretsManager:
		awsCfg, err := awsconf.Load(ctx, cfg.Database.Credentials.AWS)
		if err != nil {
			return nil, err
		}
		provider = credentials.NewSecretsManagerFromConfig(
			awsCfg,
			cfg.Database.Credentials.AWS.BaseEndpoint(),
			cfg.Database.Credentials.SecretID,
			cfg.Database.SSLMode,
		)
	default:
		return nil, fmt.Errorf("unknown credential source %q", cfg.Database.Credentials.Source)
	}
	return credentials.NewCached(provider), nil
}

func buildProvider(cfg *config.Config, creds credentials.Provider, logger *logging.Logger, opts ...database.Option) *database.Provider {
	return database.NewProvider(creds, cfg.ProviderConfig(), logger, opts...)
}

// buildNotifier returns nil when notifications are disabled.
func buildNotifier(ctx context.Context, cfg *config.Config, logger *logging.Logger) (notify.Notifier, error) {
	if !cfg.Notify.Enabled {
		return nil, nil
	}
	awsCfg, err := awsconf.Load(ctx, cfg.Notify.AWS)
	if err != nil {
		return nil, err
	}
	logger.Debug("change notifications enabled", slog.String("topic_arn", cfg.Notify.TopicARN))
	return notify.NewSNSNotifierFromConfig(awsCfg, cfg.Notify.AWS.BaseEndpoint(), cfg.Notify.TopicARN), nil
}
