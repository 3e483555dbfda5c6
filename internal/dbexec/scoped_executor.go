package dbexec

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"tablerepo/internal/sqlutil"
)

type roleContextKey struct{}

// WithRole returns a context that asks the scoped executor to run as role.
func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, roleContextKey{}, role)
}

// RoleFromContext returns the role stored by WithRole.
func RoleFromContext(ctx context.Context) (string, bool) {
	role, ok := ctx.Value(roleContextKey{}).(string)
	return role, ok
}

// ScopedExecutor checks out a dedicated connection for every statement,
// applies the configured role and search_path, and resets both before the
// connection goes back to the pool.
type ScopedExecutor struct {
	db           *sql.DB
	defaultRole  string
	searchPath   []string
	allowedRoles map[string]struct{}
	validateRole bool
}

// ScopedExecutorConfig controls scoped execution behavior.
type ScopedExecutorConfig struct {
	DB *sql.DB
	// Role is used when the context carries none.
	Role       string
	SearchPath []string
	// AllowedRoles restricts context roles when ValidateRole is set.
	AllowedRoles []string
	ValidateRole bool
}

// NewScopedExecutor creates an executor that pins a connection per statement.
func NewScopedExecutor(cfg ScopedExecutorConfig) *ScopedExecutor {
	allowed := make(map[string]struct{}, len(cfg.AllowedRoles))
	for _, role := range cfg.AllowedRoles {
		allowed[role] = struct{}{}
	}
	if cfg.Role != "" {
		allowed[cfg.Role] = struct{}{}
	}
	return &ScopedExecutor{
		db:           cfg.DB,
		defaultRole:  cfg.Role,
		searchPath:   append([]string(nil), cfg.SearchPath...),
		allowedRoles: allowed,
		validateRole: cfg.ValidateRole,
	}
}

func (e *ScopedExecutor) QueryContext(ctx context.Context, query string, args ...any) (Rows, error) {
	conn, release, err := e.acquire(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		release()
		return nil, err
	}
	return &scopedRows{Rows: rows, release: release}, nil
}

func (e *ScopedExecutor) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	conn, release, err := e.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return conn.ExecContext(ctx, query, args...)
}

// acquire pins a connection and applies the session scope. On error the
// connection has already been released.
func (e *ScopedExecutor) acquire(ctx context.Context) (*sql.Conn, func(), error) {
	if e.db == nil {
		return nil, nil, sql.ErrConnDone
	}
	conn, err := e.db.Conn(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to acquire connection: %w", err)
	}

	role := e.defaultRole
	if ctxRole, ok := RoleFromContext(ctx); ok && ctxRole != "" {
		role = ctxRole
	}

	var roleSet, pathSet bool
	release := func() {
		if roleSet {
			_, _ = conn.ExecContext(context.Background(), "RESET ROLE")
		}
		if pathSet {
			_, _ = conn.ExecContext(context.Background(), "RESET search_path")
		}
		_ = conn.Close()
	}

	if role != "" {
		if e.validateRole {
			if _, allowed := e.allowedRoles[role]; !allowed {
				release()
				return nil, nil, fmt.Errorf("role not allowed: %s", role)
			}
		}
		// SET ROLE takes no bind parameters; the role is quoted as an identifier.
		roleSet = true
		if _, err := conn.ExecContext(ctx, "SET ROLE "+sqlutil.QuoteIdentifier(role)); err != nil {
			release()
			return nil, nil, fmt.Errorf("failed to set role %s: %w", role, err)
		}
	}
	if len(e.searchPath) > 0 {
		quoted := make([]string, len(e.searchPath))
		for i, schema := range e.searchPath {
			quoted[i] = sqlutil.QuoteIdentifier(schema)
		}
		pathSet = true
		if _, err := conn.ExecContext(ctx, "SET search_path TO "+strings.Join(quoted, ", ")); err != nil {
			release()
			return nil, nil, fmt.Errorf("failed to set search_path: %w", err)
		}
	}
	return conn, release, nil
}

type scopedRows struct {
	*sql.Rows
	release func()
	once    sync.Once
}

func (r *scopedRows) Close() error {
	defer r.once.Do(r.release)
	return r.Rows.Close()
}
