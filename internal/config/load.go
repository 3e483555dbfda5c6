package config

import (
	"fmt"
	"io"
	"os"
	"reflect"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"tablerepo/internal/credentials"
)

// EnvPrefix prefixes every environment override, e.g. TABLEREPO_DATABASE_HOST.
const EnvPrefix = "TABLEREPO"

// StdinSource is the file path that reads from standard input.
const StdinSource = "@-"

// Load loads configuration from multiple sources with the following precedence:
// 1. Explicit overrides (v.Set) – used only for password file and prompt
// 2. Command line flags registered by DefineFlags
// 3. Environment variables
// 4. Config file
// 5. Default values
//
// flags must already be parsed. A nil flags loads without flag overrides.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// Defaults (lowest priority)
	setDefaults(v)

	// --- Config file ---
	cfgPath := ""
	if flags != nil {
		cfgPath, _ = flags.GetString("config")
	}
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.SetConfigName("tablerepo")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/tablerepo/")
		v.AddConfigPath("$HOME/.tablerepo")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if cfgPath != "" {
			return nil, fmt.Errorf("failed to read config file %q: %w", cfgPath, err)
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// --- Environment variables ---
	// Canonical keys: dot + snake_case
	// Env vars: TABLEREPO_DATABASE_POOL_MAX_OPEN
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// --- Flags binding (highest normal priority) ---
	if flags != nil {
		bindChangedFlagsToViper(v, flags)
	}

	// --- Secure password input (explicit override) ---
	if v.GetString("database.password") == "" && v.GetString("database.password_file") != "" {
		if pwd, err := ReadSource(v.GetString("database.password_file")); err != nil {
			return nil, fmt.Errorf("failed to read database password file: %w", err)
		} else {
			v.Set("database.password", strings.TrimSpace(pwd))
		}
	}
	if v.GetString("database.password") == "" && v.GetBool("database.password_prompt") {
		pwd, err := promptPassword()
		if err != nil {
			return nil, fmt.Errorf("failed to read password: %w", err)
		}
		v.Set("database.password", pwd)
	}

	// --- Unmarshal (strict) ---
	var cfg Config
	if err := v.UnmarshalExact(
		&cfg,
		viper.DecodeHook(
			mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				stringToStringSliceHookFunc(","),
			),
		),
	); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// bindChangedFlagsToViper copies only explicitly-set configuration flags
// into Viper, preserving precedence: flags > env > file > defaults.
// Flags without a dotted key belong to the caller and are skipped.
func bindChangedFlagsToViper(v *viper.Viper, flags *pflag.FlagSet) {
	flags.Visit(func(f *pflag.Flag) {
		if !strings.Contains(f.Name, ".") {
			return
		}

		switch f.Value.Type() {
		case "string":
			val, _ := flags.GetString(f.Name)
			v.Set(f.Name, val)
		case "int":
			val, _ := flags.GetInt(f.Name)
			v.Set(f.Name, val)
		case "bool":
			val, _ := flags.GetBool(f.Name)
			v.Set(f.Name, val)
		case "float64":
			val, _ := flags.GetFloat64(f.Name)
			v.Set(f.Name, val)
		case "duration":
			val, _ := flags.GetDuration(f.Name)
			v.Set(f.Name, val)
		case "stringSlice":
			val, _ := flags.GetStringSlice(f.Name)
			v.Set(f.Name, val)
		default:
			v.Set(f.Name, f.Value.String())
		}
	})
}

// DefineFlags registers the configuration flags on flags using canonical
// snake_case keys.
func DefineFlags(flags *pflag.FlagSet) {
	// Database connection flags
	flags.String("database.host", "", "Database host")
	flags.Int("database.port", 0, "Database port")
	flags.String("database.user", "", "Database user")
	flags.String("database.password", "", "Database password")
	flags.String("database.password_file", "", "Path to file containing database password (use @- for stdin)")
	flags.Bool("database.password_prompt", false, "Prompt for database password securely")
	flags.String("database.database", "", "Database name")
	flags.String("database.sslmode", "", "SSL mode (disable, allow, prefer, require, verify-ca, verify-full)")
	flags.String("database.role", "", "Role set on each connection before running a statement")
	flags.StringSlice("database.allowed_roles", nil, "Roles an operation may switch to with --as-role")
	flags.StringSlice("database.search_path", nil, "Schemas set as search_path on each connection")

	// Credential source flags
	flags.String("database.credentials.source", "", "Credential source (config, env, secretsmanager)")
	flags.String("database.credentials.secret_id", "", "Secrets Manager secret id")
	flags.String("database.credentials.aws.region", "", "AWS region for Secrets Manager")
	flags.String("database.credentials.aws.profile", "", "AWS shared config profile for Secrets Manager")
	flags.String("database.credentials.aws.endpoint", "", "Secrets Manager endpoint override")

	// Database pool flags
	flags.Int("database.pool.max_open", 0, "Maximum open connections")
	flags.Int("database.pool.max_idle", 0, "Maximum idle connections")
	flags.Duration("database.pool.max_lifetime", 0, "Maximum connection lifetime")
	flags.Duration("database.connection_timeout", 0, "How long to retry the initial connection")
	flags.Duration("database.connection_retry_interval", 0, "Interval between connection attempts")

	// Change notification flags
	flags.Bool("notify.enabled", false, "Publish change events")
	flags.String("notify.topic_arn", "", "SNS topic ARN for change events")
	flags.String("notify.aws.region", "", "AWS region for SNS")
	flags.String("notify.aws.endpoint", "", "SNS endpoint override")

	// Observability flags
	flags.String("observability.service_name", "", "Service name for telemetry")
	flags.String("observability.environment", "", "Deployment environment")
	flags.Bool("observability.metrics_enabled", false, "Collect repository and connection pool metrics")
	flags.Bool("observability.tracing_enabled", false, "Enable OpenTelemetry tracing")
	flags.Float64("observability.trace_sample_ratio", 0, "Trace sampling ratio (0.0-1.0)")
	flags.Bool("observability.sqlcommenter_enabled", false, "Inject trace context into SQL queries")
	flags.String("observability.logging.level", "", "Log level (debug, info, warn, error)")
	flags.String("observability.logging.format", "", "Log format (json, text)")
	flags.Bool("observability.logging.exports_enabled", false, "Export logs over OTLP")
	flags.String("observability.otlp.endpoint", "", "OTLP endpoint for all signals")
	flags.String("observability.otlp.protocol", "", "OTLP protocol (grpc, http/protobuf)")
	flags.Bool("observability.otlp.insecure", false, "Use insecure OTLP connection")

	// Config file flag
	flags.StringP("config", "c", "", "Config file path")
}

// setDefaults sets default values (lowest precedence).
func setDefaults(v *viper.Viper) {
	// Database connection defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.password_file", "")
	v.SetDefault("database.password_prompt", false)
	v.SetDefault("database.database", "")
	v.SetDefault("database.sslmode", "")
	v.SetDefault("database.role", "")
	v.SetDefault("database.allowed_roles", []string{})
	v.SetDefault("database.search_path", []string{})

	// Credential source defaults
	v.SetDefault("database.credentials.source", SourceConfig)
	v.SetDefault("database.credentials.secret_id", credentials.DefaultSecretID)
	setAWSDefaults(v, "database.credentials.aws")

	// Database pool defaults
	v.SetDefault("database.pool.max_open", 10)
	v.SetDefault("database.pool.max_idle", 5)
	v.SetDefault("database.pool.max_lifetime", 5*time.Minute)
	v.SetDefault("database.connection_timeout", 0)
	v.SetDefault("database.connection_retry_interval", 2*time.Second)

	// Tables
	v.SetDefault("tables", []map[string]any{})

	// Notification defaults
	v.SetDefault("notify.enabled", false)
	v.SetDefault("notify.topic_arn", "")
	setAWSDefaults(v, "notify.aws")

	// Observability defaults
	v.SetDefault("observability.service_name", "tablerepo")
	v.SetDefault("observability.service_version", "")
	v.SetDefault("observability.environment", "development")
	v.SetDefault("observability.metrics_enabled", false)
	v.SetDefault("observability.tracing_enabled", false)
	v.SetDefault("observability.trace_sample_ratio", 1.0)
	v.SetDefault("observability.sqlcommenter_enabled", false)
	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "json")
	v.SetDefault("observability.logging.exports_enabled", false)

	// Global OTLP defaults
	v.SetDefault("observability.otlp.endpoint", "localhost:4317")
	v.SetDefault("observability.otlp.protocol", "grpc")
	v.SetDefault("observability.otlp.insecure", false)
	v.SetDefault("observability.otlp.tls_cert_file", "")
	v.SetDefault("observability.otlp.tls_client_cert_file", "")
	v.SetDefault("observability.otlp.tls_client_key_file", "")
	v.SetDefault("observability.otlp.headers", map[string]string{})
	v.SetDefault("observability.otlp.timeout", 10*time.Second)
	v.SetDefault("observability.otlp.compression", "gzip")
}

func setAWSDefaults(v *viper.Viper, prefix string) {
	v.SetDefault(prefix+".region", "")
	v.SetDefault(prefix+".profile", "")
	v.SetDefault(prefix+".endpoint", "")
	v.SetDefault(prefix+".access_key_id", "")
	v.SetDefault(prefix+".secret_access_key", "")
}

// promptPassword prompts on stderr so stdout stays machine-readable.
func promptPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Enter database password: ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(bytePassword), nil
}

// ReadSource returns the contents of path, or of stdin for "@-".
func ReadSource(path string) (string, error) {
	var data []byte
	var err error

	if path == StdinSource {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// CheckSingleStdinSource fails when more than one setting reads from stdin.
// sources maps a setting name to its configured path.
func CheckSingleStdinSource(sources map[string]string) error {
	var configured []string
	for key, path := range sources {
		if strings.TrimSpace(path) == StdinSource {
			configured = append(configured, key)
		}
	}

	if len(configured) > 1 {
		sort.Strings(configured)
		return fmt.Errorf(
			"multiple settings use @- (%s); only one @- source is allowed",
			strings.Join(configured, ", "),
		)
	}

	return nil
}

func stringToStringSliceHookFunc(sep string) mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if from.Kind() != reflect.String || to != reflect.TypeOf([]string{}) {
			return data, nil
		}

		raw := strings.TrimSpace(data.(string))
		if raw == "" {
			return []string{}, nil
		}

		parts := strings.Split(raw, sep)
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts, nil
	}
}
