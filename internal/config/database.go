package config

import (
	"tablerepo/internal/credentials"
	"tablerepo/internal/database"
)

// StaticCredentials returns the credentials written in the config itself.
// They also seed the env source for unset PG* variables.
func (d *DatabaseConfig) StaticCredentials() credentials.Credentials {
	return credentials.Credentials{
		Host:     d.Host,
		Port:     d.Port,
		User:     d.User,
		Password: d.Password,
		Database: d.Database,
		SSLMode:  d.SSLMode,
	}
}

// AllowsRole reports whether an operation may run as role: the configured
// role itself or one listed in allowed_roles.
func (d *DatabaseConfig) AllowsRole(role string) bool {
	if role == d.Role {
		return true
	}
	for _, allowed := range d.AllowedRoles {
		if allowed == role {
			return true
		}
	}
	return false
}

// ProviderConfig maps the database and observability settings onto the
// connection provider.
func (c *Config) ProviderConfig() database.Config {
	return database.Config{
		Pool: database.PoolConfig{
			MaxOpen:     c.Database.Pool.MaxOpen,
			MaxIdle:     c.Database.Pool.MaxIdle,
			MaxLifetime: c.Database.Pool.MaxLifetime,
		},
		Role:                c.Database.Role,
		AllowedRoles:        c.Database.AllowedRoles,
		SearchPath:          c.Database.SearchPath,
		TracingEnabled:      c.Observability.TracingEnabled,
		MetricsEnabled:      c.Observability.MetricsEnabled,
		SQLCommenterEnabled: c.Observability.SQLCommenterEnabled,
		ConnectTimeout:      c.Database.ConnectionTimeout,
		RetryInterval:       c.Database.ConnectionRetryInterval,
	}
}
