// Package config loads configuration from files, env vars, and flags, and validates it.
package config

import (
	"strings"
	"time"

	"tablerepo/internal/awsconf"
	"tablerepo/internal/repository"
)

// Config holds the application configuration.
type Config struct {
	Database      DatabaseConfig               `mapstructure:"database"`
	Tables        []repository.TableDescriptor `mapstructure:"tables"`
	Notify        NotifyConfig                 `mapstructure:"notify"`
	Observability ObservabilityConfig          `mapstructure:"observability"`
}

// Table returns the descriptor registered under name. A bare name also
// matches a schema-qualified entry with the same table part.
func (c *Config) Table(name string) (repository.TableDescriptor, bool) {
	for _, t := range c.Tables {
		if t.Table == name {
			return t, true
		}
	}
	if strings.Contains(name, ".") {
		return repository.TableDescriptor{}, false
	}
	for _, t := range c.Tables {
		if i := strings.LastIndexByte(t.Table, '.'); i >= 0 && t.Table[i+1:] == name {
			return t, true
		}
	}
	return repository.TableDescriptor{}, false
}

// DatabaseConfig holds database connection parameters.
type DatabaseConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	PasswordFile   string `mapstructure:"password_file"`
	PasswordPrompt bool   `mapstructure:"password_prompt"`
	Database       string `mapstructure:"database"`
	SSLMode        string `mapstructure:"sslmode"`

	// Role and SearchPath are applied on each checked-out connection.
	// AllowedRoles lists the roles a single invocation may switch to.
	Role         string   `mapstructure:"role"`
	AllowedRoles []string `mapstructure:"allowed_roles"`
	SearchPath   []string `mapstructure:"search_path"`

	Credentials             CredentialsConfig `mapstructure:"credentials"`
	Pool                    PoolConfig        `mapstructure:"pool"`
	ConnectionTimeout       time.Duration     `mapstructure:"connection_timeout"`
	ConnectionRetryInterval time.Duration     `mapstructure:"connection_retry_interval"`
}

// CredentialsConfig selects where database credentials come from.
type CredentialsConfig struct {
	Source   string         `mapstructure:"source"` // config, env, secretsmanager
	SecretID string         `mapstructure:"secret_id"`
	AWS      awsconf.Config `mapstructure:"aws"`
}

// Credential sources.
const (
	SourceConfig         = "config"
	SourceEnv            = "env"
	SourceSecretsManager = "secretsmanager"
)

// PoolConfig holds database/sql pool limits.
type PoolConfig struct {
	MaxOpen     int           `mapstructure:"max_open"`
	MaxIdle     int           `mapstructure:"max_idle"`
	MaxLifetime time.Duration `mapstructure:"max_lifetime"`
}

// NotifyConfig controls change notifications.
type NotifyConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	TopicARN string         `mapstructure:"topic_arn"`
	AWS      awsconf.Config `mapstructure:"aws"`
}

// LoggingConfig holds logging parameters.
type LoggingConfig struct {
	Level          string `mapstructure:"level"`           // debug, info, warn, error
	Format         string `mapstructure:"format"`          // json, text
	ExportsEnabled bool   `mapstructure:"exports_enabled"` // Enable OTLP log export
}

// ObservabilityConfig holds observability parameters.
type ObservabilityConfig struct {
	ServiceName         string        `mapstructure:"service_name"`
	ServiceVersion      string        `mapstructure:"service_version"`
	Environment         string        `mapstructure:"environment"`
	MetricsEnabled      bool          `mapstructure:"metrics_enabled"`
	TracingEnabled      bool          `mapstructure:"tracing_enabled"`
	TraceSampleRatio    float64       `mapstructure:"trace_sample_ratio"`
	SQLCommenterEnabled bool          `mapstructure:"sqlcommenter_enabled"` // Inject trace context into SQL queries
	Logging             LoggingConfig `mapstructure:"logging"`

	// Global OTLP settings (defaults for all signals)
	OTLP OTLPConfig `mapstructure:"otlp"`

	// Signal-specific overrides (optional)
	Traces *OTLPConfig `mapstructure:"traces,omitempty"`
	Logs   *OTLPConfig `mapstructure:"logs,omitempty"`
}

// OTLPConfig holds OTLP exporter configuration
type OTLPConfig struct {
	Endpoint          string            `mapstructure:"endpoint"`
	Protocol          string            `mapstructure:"protocol"` // "grpc", "http/protobuf"
	Insecure          bool              `mapstructure:"insecure"`
	TLSCertFile       string            `mapstructure:"tls_cert_file"`
	TLSClientCertFile string            `mapstructure:"tls_client_cert_file"`
	TLSClientKeyFile  string            `mapstructure:"tls_client_key_file"`
	Headers           map[string]string `mapstructure:"headers"`
	Timeout           time.Duration     `mapstructure:"timeout"`
	Compression       string            `mapstructure:"compression"` // "none", "gzip"
}

// GetTracesConfig returns the effective OTLP config for traces
func (c *ObservabilityConfig) GetTracesConfig() OTLPConfig {
	if c.Traces != nil {
		return mergeOTLPConfigs(c.OTLP, *c.Traces)
	}
	return c.OTLP
}

// GetLogsConfig returns the effective OTLP config for logs
func (c *ObservabilityConfig) GetLogsConfig() OTLPConfig {
	if c.Logs != nil {
		return mergeOTLPConfigs(c.OTLP, *c.Logs)
	}
	return c.OTLP
}

// mergeOTLPConfigs merges signal-specific config over global defaults
func mergeOTLPConfigs(base OTLPConfig, override OTLPConfig) OTLPConfig {
	result := base

	if override.Endpoint != "" {
		result.Endpoint = override.Endpoint
	}
	if override.Protocol != "" {
		result.Protocol = override.Protocol
	}
	// Insecure cannot be detected as unset; an override block always wins.
	result.Insecure = override.Insecure

	if override.TLSCertFile != "" {
		result.TLSCertFile = override.TLSCertFile
	}
	if override.TLSClientCertFile != "" {
		result.TLSClientCertFile = override.TLSClientCertFile
	}
	if override.TLSClientKeyFile != "" {
		result.TLSClientKeyFile = override.TLSClientKeyFile
	}

	if override.Headers != nil {
		result.Headers = make(map[string]string, len(base.Headers)+len(override.Headers))
		for k, v := range base.Headers {
			result.Headers[k] = v
		}
		for k, v := range override.Headers {
			result.Headers[k] = v
		}
	}

	if override.Timeout != 0 {
		result.Timeout = override.Timeout
	}
	if override.Compression != "" {
		result.Compression = override.Compression
	}
	return result
}
