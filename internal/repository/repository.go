// Package repository implements a generic, table-agnostic data-access layer
// over PostgreSQL. A TableDescriptor configures the table, its writable and
// default-selected columns, primary key and soft-delete policy; queries are
// described with query.Parameters and planned into parameterized SQL.
package repository

import (
	"context"
	"log/slog"
	"time"

	"tablerepo/internal/dbexec"
	"tablerepo/internal/logging"
	"tablerepo/internal/notify"
	"tablerepo/internal/observability"
	"tablerepo/internal/planner"
	"tablerepo/internal/query"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "tablerepo/repository"

// Reader is the read surface shared by every repository.
type Reader interface {
	Table() string
	PrimaryKey() string
	Find(ctx context.Context, params query.Parameters, fields ...string) ([]Record, error)
	FindOne(ctx context.Context, id any, fields ...string) (Record, bool, error)
	Count(ctx context.Context, params query.Parameters) (int64, error)
	FindPage(ctx context.Context, params query.Parameters, fields ...string) (*Page, error)
	Query(ctx context.Context, sql string, args ...any) ([]Record, error)
}

// Writer adds the mutating operations.
type Writer interface {
	Reader
	Create(ctx context.Context, values map[string]any) (Record, error)
	Update(ctx context.Context, id any, values map[string]any) (Record, bool, error)
	Delete(ctx context.Context, keys map[string]any) (int64, error)
	AppendToField(ctx context.Context, id any, spec planner.AppendSpec) (Record, bool, error)
	Exec(ctx context.Context, sql string, args ...any) (int64, error)
}

var (
	_ Writer = (*Repository)(nil)
	_ Reader = (*ReadOnly)(nil)
)

// Option configures a repository.
type Option func(*base)

// WithLogger sets the logger. Without it the logger is taken from the context.
func WithLogger(logger *logging.Logger) Option {
	return func(b *base) { b.logger = logger }
}

// WithMetrics records repository metrics.
func WithMetrics(metrics *observability.RepositoryMetrics) Option {
	return func(b *base) { b.metrics = metrics }
}

// WithNotifier receives change events after successful writes. Read-only
// repositories ignore it.
func WithNotifier(n notify.Notifier) Option {
	return func(b *base) { b.notifier = n }
}

// base holds the read path shared by Repository and ReadOnly.
type base struct {
	table    planner.Table
	exec     dbexec.QueryExecutor
	logger   *logging.Logger
	metrics  *observability.RepositoryMetrics
	notifier notify.Notifier
	tracer   trace.Tracer
}

func newBase(desc TableDescriptor, exec dbexec.QueryExecutor, opts []Option) (base, error) {
	table, err := desc.plannerTable()
	if err != nil {
		return base{}, err
	}
	if exec == nil {
		return base{}, ErrConfiguration
	}
	b := base{
		table:    table,
		exec:     exec,
		notifier: notify.Nop{},
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(&b)
	}
	if b.notifier == nil {
		b.notifier = notify.Nop{}
	}
	return b, nil
}

// Table returns the configured table name.
func (b *base) Table() string {
	return b.table.Name
}

// PrimaryKey returns the primary key column.
func (b *base) PrimaryKey() string {
	return b.table.PrimaryKey
}

func (b *base) log(ctx context.Context) *logging.Logger {
	if b.logger != nil {
		return b.logger
	}
	return logging.FromContext(ctx)
}

// observe starts a span for op and returns a func that ends it and
// records metrics.
func (b *base) observe(ctx context.Context, op string) (context.Context, func(rows int64, err error)) {
	start := time.Now()
	ctx, span := b.tracer.Start(ctx, "repository."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.sql.table", b.table.Name),
		),
	)
	return ctx, func(rows int64, err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.Int64("db.rows", rows))
		}
		span.End()
		b.metrics.RecordOperation(ctx, b.table.Name, op, time.Since(start), rows, err)
	}
}

func (b *base) queryRecords(ctx context.Context, op string, q planner.SQLQuery) ([]Record, error) {
	b.log(ctx).Debug("executing statement",
		slog.String("table", b.table.Name),
		slog.String("operation", op),
		slog.String("sql", q.SQL),
		slog.Int("args", len(q.Args)),
	)
	rows, err := b.exec.QueryContext(ctx, q.SQL, q.Args...)
	if err != nil {
		return nil, b.executionError(ctx, op, q.SQL, err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, b.executionError(ctx, op, q.SQL, err)
	}
	return records, nil
}

func (b *base) execStatement(ctx context.Context, op string, q planner.SQLQuery) (int64, error) {
	b.log(ctx).Debug("executing statement",
		slog.String("table", b.table.Name),
		slog.String("operation", op),
		slog.String("sql", q.SQL),
		slog.Int("args", len(q.Args)),
	)
	res, err := b.exec.ExecContext(ctx, q.SQL, q.Args...)
	if err != nil {
		return 0, b.executionError(ctx, op, q.SQL, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, b.executionError(ctx, op, q.SQL, err)
	}
	return affected, nil
}

// Find returns the rows matching params.
func (b *base) Find(ctx context.Context, params query.Parameters, fields ...string) (records []Record, err error) {
	ctx, done := b.observe(ctx, "find")
	defer func() { done(int64(len(records)), err) }()
	return b.find(ctx, params, fields)
}

func (b *base) find(ctx context.Context, params query.Parameters, fields []string) ([]Record, error) {
	if err := params.Validate(); err != nil {
		return nil, invalid(err)
	}
	q, err := planner.PlanSelect(b.table, params, fields)
	if err != nil {
		return nil, invalid(err)
	}
	return b.queryRecords(ctx, "find", q)
}

// FindOne looks up a row by primary key. A missing row returns ok=false
// and no error.
func (b *base) FindOne(ctx context.Context, id any, fields ...string) (record Record, ok bool, err error) {
	ctx, done := b.observe(ctx, "find_one")
	defer func() {
		n := int64(0)
		if ok {
			n = 1
		}
		done(n, err)
	}()

	if id == nil {
		return nil, false, invalid(errMissingID)
	}
	q, err := planner.PlanFindOne(b.table, id, fields)
	if err != nil {
		return nil, false, invalid(err)
	}
	records, err := b.queryRecords(ctx, "find_one", q)
	if err != nil || len(records) == 0 {
		return nil, false, err
	}
	return records[0], true, nil
}

// Count returns how many rows match the filters of params. Ordering and
// paging are ignored.
func (b *base) Count(ctx context.Context, params query.Parameters) (n int64, err error) {
	ctx, done := b.observe(ctx, "count")
	defer func() { done(n, err) }()
	return b.count(ctx, params)
}

func (b *base) count(ctx context.Context, params query.Parameters) (int64, error) {
	if err := params.Validate(); err != nil {
		return 0, invalid(err)
	}
	q, err := planner.PlanCount(b.table, params)
	if err != nil {
		return 0, invalid(err)
	}
	rows, err := b.exec.QueryContext(ctx, q.SQL, q.Args...)
	if err != nil {
		return 0, b.executionError(ctx, "count", q.SQL, err)
	}
	defer rows.Close()

	n, err := scanCount(rows)
	if err != nil {
		return 0, b.executionError(ctx, "count", q.SQL, err)
	}
	return n, nil
}

func (b *base) rawQuery(ctx context.Context, sql string, args []any) (records []Record, err error) {
	ctx, done := b.observe(ctx, "query")
	defer func() { done(int64(len(records)), err) }()
	if sql == "" {
		return nil, invalid(errEmptyStatement)
	}
	return b.queryRecords(ctx, "query", planner.SQLQuery{SQL: sql, Args: args})
}

// Repository is the read-write repository.
type Repository struct {
	base
}

// New creates a read-write repository for desc.
func New(desc TableDescriptor, exec dbexec.QueryExecutor, opts ...Option) (*Repository, error) {
	b, err := newBase(desc, exec, opts)
	if err != nil {
		return nil, err
	}
	return &Repository{base: b}, nil
}

// Query runs an arbitrary statement and returns its rows.
func (r *Repository) Query(ctx context.Context, sql string, args ...any) ([]Record, error) {
	return r.rawQuery(ctx, sql, args)
}
