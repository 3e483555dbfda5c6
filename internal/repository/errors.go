package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgconn"
)

// Every error returned by a repository matches one of these with errors.Is.
var (
	// ErrConfiguration indicates a repository that cannot be built, such as
	// a descriptor without a table.
	ErrConfiguration = errors.New("repository misconfigured")
	// ErrValidation indicates caller input rejected before any I/O.
	ErrValidation = errors.New("invalid request")
	// ErrExecution indicates the database rejected or failed a statement.
	// Driver details are logged, never returned.
	ErrExecution = errors.New("statement execution failed")
	// ErrPermission indicates a write attempted through a read-only repository.
	ErrPermission = errors.New("operation not permitted")
)

var (
	errMissingID      = errors.New("missing primary key value")
	errEmptyStatement = errors.New("empty statement")
)

func invalid(err error) error {
	return fmt.Errorf("%w: %w", ErrValidation, err)
}

// executionError logs the driver error with full detail and returns an
// opaque ErrExecution. Cancellation is kept visible to callers.
func (b *base) executionError(ctx context.Context, op, sql string, err error) error {
	attrs := []any{
		slog.String("table", b.table.Name),
		slog.String("operation", op),
		slog.String("sql", sql),
		slog.String("error", err.Error()),
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		attrs = append(attrs,
			slog.String("sqlstate", pgErr.Code),
			slog.String("severity", pgErr.Severity),
		)
		if pgErr.ConstraintName != "" {
			attrs = append(attrs, slog.String("constraint", pgErr.ConstraintName))
		}
		if pgErr.Detail != "" {
			attrs = append(attrs, slog.String("detail", pgErr.Detail))
		}
	}
	b.log(ctx).Error("statement failed", attrs...)

	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %s on %s: %w", ErrExecution, op, b.table.Name, ctxErr)
	}
	return fmt.Errorf("%w: %s on %s", ErrExecution, op, b.table.Name)
}
