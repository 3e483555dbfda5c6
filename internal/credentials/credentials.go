// Package credentials resolves PostgreSQL connection credentials from
// configuration, PG* environment variables, or AWS Secrets Manager.
package credentials

import (
	"context"
	"errors"
	"net"
	"net/url"
	"os"
	"strconv"
	"sync"
)

// DefaultSecretID is the Secrets Manager secret read when none is configured.
const DefaultSecretID = "core/database/credentials"

// ErrUnavailable indicates credentials could not be resolved.
var ErrUnavailable = errors.New("database credentials unavailable")

// Credentials identifies a PostgreSQL endpoint and login.
type Credentials struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// DSN renders a postgres:// connection URL. Port defaults to 5432.
func (c Credentials) DSN() string {
	port := c.Port
	if port == 0 {
		port = 5432
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(port)),
		Path:   "/" + c.Database,
	}
	if c.User != "" {
		if c.Password != "" {
			u.User = url.UserPassword(c.User, c.Password)
		} else {
			u.User = url.User(c.User)
		}
	}
	if c.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": []string{c.SSLMode}}.Encode()
	}
	return u.String()
}

// Redacted is DSN with the password masked, for logs.
func (c Credentials) Redacted() string {
	if c.Password != "" {
		c.Password = "xxxxx"
	}
	return c.DSN()
}

// Provider fetches credentials.
type Provider interface {
	FetchCredentials(ctx context.Context) (Credentials, error)
}

// Static returns fixed credentials.
type Static struct {
	Credentials Credentials
}

func (s Static) FetchCredentials(context.Context) (Credentials, error) {
	return s.Credentials, nil
}

// Env reads PGHOST, PGPORT, PGUSER, PGPASSWORD, PGDATABASE and PGSSLMODE,
// falling back to Base for unset variables.
type Env struct {
	Base   Credentials
	Lookup func(string) (string, bool)
}

func (e Env) FetchCredentials(context.Context) (Credentials, error) {
	lookup := e.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	creds := e.Base
	if v, ok := lookup("PGHOST"); ok {
		creds.Host = v
	}
	if v, ok := lookup("PGPORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return Credentials{}, errors.Join(ErrUnavailable, errors.New("PGPORT is not a number"))
		}
		creds.Port = port
	}
	if v, ok := lookup("PGUSER"); ok {
		creds.User = v
	}
	if v, ok := lookup("PGPASSWORD"); ok {
		creds.Password = v
	}
	if v, ok := lookup("PGDATABASE"); ok {
		creds.Database = v
	}
	if v, ok := lookup("PGSSLMODE"); ok {
		creds.SSLMode = v
	}
	if creds.SSLMode == "" {
		creds.SSLMode = "disable"
	}
	return creds, nil
}

// Cached fetches from the wrapped provider once and reuses the result.
// Failed fetches are not cached.
type Cached struct {
	next Provider

	mu    sync.Mutex
	creds *Credentials
}

// NewCached wraps next.
func NewCached(next Provider) *Cached {
	return &Cached{next: next}
}

func (c *Cached) FetchCredentials(ctx context.Context) (Credentials, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.creds != nil {
		return *c.creds, nil
	}
	creds, err := c.next.FetchCredentials(ctx)
	if err != nil {
		return Credentials{}, err
	}
	c.creds = &creds
	return creds, nil
}
