package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeterName is the instrumentation scope for repository metrics.
const MeterName = "tablerepo"

// RepositoryMetrics holds instruments for repository operations.
// A nil *RepositoryMetrics records nothing.
type RepositoryMetrics struct {
	operations metric.Int64Counter
	duration   metric.Float64Histogram
	rows       metric.Int64Histogram
}

// InitRepositoryMetrics creates the instruments on the global meter provider.
func InitRepositoryMetrics() (*RepositoryMetrics, error) {
	return NewRepositoryMetrics(otel.Meter(MeterName))
}

// NewRepositoryMetrics creates the instruments on the given meter.
func NewRepositoryMetrics(meter metric.Meter) (*RepositoryMetrics, error) {
	operations, err := meter.Int64Counter(
		"repository.operations.total",
		metric.WithDescription("Total number of repository operations"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create operations counter: %w", err)
	}

	duration, err := meter.Float64Histogram(
		"repository.operation.duration",
		metric.WithDescription("Duration of repository operations in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create operation duration histogram: %w", err)
	}

	rows, err := meter.Int64Histogram(
		"repository.rows.returned",
		metric.WithDescription("Number of rows returned or affected by repository operations"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rows histogram: %w", err)
	}

	return &RepositoryMetrics{
		operations: operations,
		duration:   duration,
		rows:       rows,
	}, nil
}

// RecordOperation records one repository call with its outcome.
func (m *RepositoryMetrics) RecordOperation(ctx context.Context, table, operation string, duration time.Duration, rows int64, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("table", table),
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	)

	m.operations.Add(ctx, 1, attrs)
	m.duration.Record(ctx, float64(duration.Microseconds())/1000, attrs)
	if err == nil {
		m.rows.Record(ctx, rows, attrs)
	}
}
