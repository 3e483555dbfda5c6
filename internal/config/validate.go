package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"tablerepo/internal/repository"
	"tablerepo/internal/sqlutil"
)

// ValidationError represents a configuration validation error with context.
type ValidationError struct {
	Field   string
	Message string
	Hint    string
}

func (e ValidationError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s (hint: %s)", e.Field, e.Message, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Field   string
	Message string
	Hint    string
}

// ValidationResult contains the results of configuration validation.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// Error returns a combined error message if there are validation errors.
func (r *ValidationResult) Error() string {
	if !r.HasErrors() {
		return ""
	}
	var msgs []string
	for _, e := range r.Errors {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

func (r *ValidationResult) fail(field, message, hint string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message, Hint: hint})
}

func (r *ValidationResult) warn(field, message, hint string) {
	r.Warnings = append(r.Warnings, ValidationWarning{Field: field, Message: message, Hint: hint})
}

// Validate checks the configuration for errors and returns validation results.
// It returns both errors (fatal) and warnings (non-fatal issues).
func (c *Config) Validate() *ValidationResult {
	result := &ValidationResult{}

	c.Database.validate(result)
	validateTables(result, c.Tables)
	c.Notify.validate(result)
	c.Observability.validate(result)

	return result
}

var validSSLModes = map[string]bool{
	"disable": true, "allow": true, "prefer": true,
	"require": true, "verify-ca": true, "verify-full": true,
}

func (d *DatabaseConfig) validate(result *ValidationResult) {
	switch d.Credentials.Source {
	case SourceConfig:
		if strings.TrimSpace(d.Host) == "" {
			result.fail("database.host", "host is required", "set database.host or use credentials.source env|secretsmanager")
		}
		if strings.TrimSpace(d.User) == "" {
			result.warn("database.user", "no user configured", "the driver falls back to the OS user")
		}
	case SourceEnv:
	case SourceSecretsManager:
		if strings.TrimSpace(d.Credentials.SecretID) == "" {
			result.fail("database.credentials.secret_id", "secret_id is required for secretsmanager", "")
		}
		if d.Password != "" {
			result.warn("database.password", "password is ignored when credentials come from secretsmanager", "")
		}
	default:
		result.fail("database.credentials.source", fmt.Sprintf("invalid credential source %q", d.Credentials.Source),
			"valid values are: config, env, secretsmanager")
	}

	if d.Port < 0 || d.Port > 65535 {
		result.fail("database.port", fmt.Sprintf("port %d out of range", d.Port), "valid range is 1-65535")
	}
	if d.SSLMode != "" && !validSSLModes[d.SSLMode] {
		result.fail("database.sslmode", fmt.Sprintf("invalid sslmode %q", d.SSLMode),
			"valid values are: disable, allow, prefer, require, verify-ca, verify-full")
	}
	if d.Password != "" && d.PasswordFile != "" {
		result.warn("database.password_file", "password_file is ignored when password is set", "")
	}

	if d.Role != "" && !sqlutil.IsIdentifier(d.Role) {
		result.fail("database.role", fmt.Sprintf("invalid role name %q", d.Role), "")
	}
	for _, role := range d.AllowedRoles {
		if !sqlutil.IsIdentifier(role) {
			result.fail("database.allowed_roles", fmt.Sprintf("invalid role name %q", role), "")
		}
	}
	for _, schema := range d.SearchPath {
		if !sqlutil.IsIdentifier(schema) {
			result.fail("database.search_path", fmt.Sprintf("invalid schema name %q", schema), "")
		}
	}

	if d.Pool.MaxOpen < 0 {
		result.fail("database.pool.max_open", "max_open cannot be negative", "")
	}
	if d.Pool.MaxIdle < 0 {
		result.fail("database.pool.max_idle", "max_idle cannot be negative", "")
	}
	if d.Pool.MaxOpen > 0 && d.Pool.MaxIdle > d.Pool.MaxOpen {
		result.warn("database.pool.max_idle", "max_idle exceeds max_open", "database/sql lowers max_idle to max_open")
	}
	if d.Pool.MaxLifetime < 0 {
		result.fail("database.pool.max_lifetime", "max_lifetime cannot be negative", "")
	}
	if d.ConnectionTimeout < 0 {
		result.fail("database.connection_timeout", "connection_timeout cannot be negative", "")
	}
	if d.ConnectionTimeout > 0 && d.ConnectionRetryInterval <= 0 {
		result.fail("database.connection_retry_interval", "connection_retry_interval must be positive when connection_timeout is set", "")
	}
}

func validateTables(result *ValidationResult, tables []repository.TableDescriptor) {
	if len(tables) == 0 {
		result.warn("tables", "no tables configured", "add entries under tables: to run operations")
		return
	}
	seen := make(map[string]bool, len(tables))
	for i, t := range tables {
		field := fmt.Sprintf("tables[%d]", i)
		if strings.TrimSpace(t.Table) == "" {
			result.fail(field+".table", "table name is required", "")
			continue
		}
		if !sqlutil.IsQualifiedName(t.Table) {
			result.fail(field+".table", fmt.Sprintf("invalid table name %q", t.Table), "use name or schema.name")
		}
		if seen[t.Table] {
			result.fail(field+".table", fmt.Sprintf("table %q is configured twice", t.Table), "")
		}
		seen[t.Table] = true

		if t.PrimaryKey != "" && !sqlutil.IsIdentifier(t.PrimaryKey) {
			result.fail(field+".primary_key", fmt.Sprintf("invalid column name %q", t.PrimaryKey), "")
		}
		validateColumns(result, field+".fillable", t.Fillable)
		validateColumns(result, field+".selectable", t.Selectable)
		if t.ReadOnly && len(t.Fillable) > 0 {
			result.warn(field+".fillable", "fillable has no effect on a read_only table", "")
		}
	}
}

func validateColumns(result *ValidationResult, field string, columns []string) {
	for _, col := range columns {
		if !sqlutil.IsIdentifier(col) {
			result.fail(field, fmt.Sprintf("invalid column name %q", col), "")
		}
	}
}

func (n *NotifyConfig) validate(result *ValidationResult) {
	if !n.Enabled {
		return
	}
	if strings.TrimSpace(n.TopicARN) == "" {
		result.fail("notify.topic_arn", "topic_arn is required when notify is enabled", "")
	} else if !strings.HasPrefix(n.TopicARN, "arn:") {
		result.warn("notify.topic_arn", fmt.Sprintf("topic_arn %q does not look like an ARN", n.TopicARN), "")
	}
}

func (o *ObservabilityConfig) validate(result *ValidationResult) {
	// Log level validation
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[o.Logging.Level] {
		result.fail("observability.logging.level", fmt.Sprintf("invalid log level %q", o.Logging.Level),
			"valid values are: debug, info, warn, error")
	}

	// Log format validation
	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[o.Logging.Format] {
		result.fail("observability.logging.format", fmt.Sprintf("invalid log format %q", o.Logging.Format),
			"valid values are: json, text")
	}

	if o.TraceSampleRatio < 0 || o.TraceSampleRatio > 1 {
		result.fail("observability.trace_sample_ratio", fmt.Sprintf("sample ratio %v out of range", o.TraceSampleRatio),
			"valid range is 0.0-1.0")
	}
	if o.SQLCommenterEnabled && !o.TracingEnabled {
		result.warn("observability.sqlcommenter_enabled", "sqlcommenter requires tracing_enabled", "")
	}

	// OTLP protocol validation
	o.OTLP.validate("observability.otlp", result)

	// Signal-specific OTLP validation
	if o.Traces != nil {
		o.Traces.validate("observability.traces", result)
	}
	if o.Logs != nil {
		o.Logs.validate("observability.logs", result)
	}
}

func (o *OTLPConfig) validate(prefix string, result *ValidationResult) {
	validProtocols := map[string]bool{"": true, "grpc": true, "http/protobuf": true}
	if !validProtocols[o.Protocol] {
		result.fail(prefix+".protocol", fmt.Sprintf("invalid OTLP protocol %q", o.Protocol),
			"valid values are: grpc, http/protobuf")
	}

	if o.Protocol == "http/protobuf" && !validOTLPEndpoint(o.Endpoint) {
		result.fail(prefix+".endpoint", fmt.Sprintf("invalid OTLP endpoint %q for http/protobuf", o.Endpoint),
			"use host:port or a full URL")
	}

	validCompressions := map[string]bool{"": true, "none": true, "gzip": true}
	if !validCompressions[o.Compression] {
		result.fail(prefix+".compression", fmt.Sprintf("invalid OTLP compression %q", o.Compression),
			"valid values are: none, gzip")
	}
}

func validOTLPEndpoint(endpoint string) bool {
	if endpoint == "" {
		return false
	}
	if strings.Contains(endpoint, "://") {
		parsed, err := url.Parse(endpoint)
		if err != nil {
			return false
		}
		return parsed.Host != ""
	}
	_, _, err := net.SplitHostPort(endpoint)
	return err == nil
}
