package repository

import (
	"context"
	"log/slog"

	"tablerepo/internal/logging"
	"tablerepo/internal/notify"
	"tablerepo/internal/planner"
)

// Create inserts the fillable subset of values and returns the stored row.
// Columns outside the fillable set are dropped.
func (r *Repository) Create(ctx context.Context, values map[string]any) (record Record, err error) {
	ctx, done := r.observe(ctx, "create")
	defer func() { done(rowCount(record != nil), err) }()

	plan, err := planner.PlanInsert(r.table, normalizeValues(values))
	if err != nil {
		return nil, invalid(err)
	}
	r.logDropped(ctx, "create", plan.Dropped)

	records, err := r.queryRecords(ctx, "create", plan.SQLQuery)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	r.publish(ctx, notify.ChangeEvent{Table: r.table.Name, Operation: notify.OpCreate, Record: records[0]})
	return records[0], nil
}

// Update sets the fillable subset of values on the row with primary key id.
// ok is false when no row matched.
func (r *Repository) Update(ctx context.Context, id any, values map[string]any) (record Record, ok bool, err error) {
	ctx, done := r.observe(ctx, "update")
	defer func() { done(rowCount(ok), err) }()

	if id == nil {
		return nil, false, invalid(errMissingID)
	}
	plan, err := planner.PlanUpdate(r.table, id, normalizeValues(values))
	if err != nil {
		return nil, false, invalid(err)
	}
	r.logDropped(ctx, "update", plan.Dropped)

	records, err := r.queryRecords(ctx, "update", plan.SQLQuery)
	if err != nil || len(records) == 0 {
		return nil, false, err
	}
	r.publish(ctx, notify.ChangeEvent{Table: r.table.Name, Operation: notify.OpUpdate, Record: records[0]})
	return records[0], true, nil
}

// Delete removes, or on soft-delete tables flags, every row matching all
// keys and returns the number of rows affected.
func (r *Repository) Delete(ctx context.Context, keys map[string]any) (affected int64, err error) {
	ctx, done := r.observe(ctx, "delete")
	defer func() { done(affected, err) }()

	q, err := planner.PlanDelete(r.table, normalizeValues(keys))
	if err != nil {
		return 0, invalid(err)
	}
	affected, err = r.execStatement(ctx, "delete", q)
	if err != nil {
		return 0, err
	}
	if affected > 0 {
		r.publish(ctx, notify.ChangeEvent{Table: r.table.Name, Operation: notify.OpDelete, Keys: keys})
	}
	return affected, nil
}

// AppendToField appends one element to an array column, or overwrites a
// scalar column when spec.Scalar is set.
func (r *Repository) AppendToField(ctx context.Context, id any, spec planner.AppendSpec) (record Record, ok bool, err error) {
	ctx, done := r.observe(ctx, "append")
	defer func() { done(rowCount(ok), err) }()

	if id == nil {
		return nil, false, invalid(errMissingID)
	}
	spec.Value = normalizeValue(spec.Value)
	q, err := planner.PlanAppend(r.table, id, spec)
	if err != nil {
		return nil, false, invalid(err)
	}
	records, err := r.queryRecords(ctx, "append", q)
	if err != nil || len(records) == 0 {
		return nil, false, err
	}
	r.publish(ctx, notify.ChangeEvent{Table: r.table.Name, Operation: notify.OpAppend, Record: records[0]})
	return records[0], true, nil
}

// Exec runs an arbitrary statement and returns the rows affected.
func (r *Repository) Exec(ctx context.Context, sql string, args ...any) (affected int64, err error) {
	ctx, done := r.observe(ctx, "exec")
	defer func() { done(affected, err) }()
	if sql == "" {
		return 0, invalid(errEmptyStatement)
	}
	return r.execStatement(ctx, "exec", planner.SQLQuery{SQL: sql, Args: args})
}

func (r *Repository) logDropped(ctx context.Context, op string, dropped []string) {
	if len(dropped) == 0 {
		return
	}
	r.log(ctx).Debug("dropping non-fillable columns",
		slog.String("table", r.table.Name),
		slog.String("operation", op),
		slog.Any("columns", dropped),
	)
}

// publish hands the event to the notifier, tagged with the caller's run id.
// Failures are logged only.
func (r *Repository) publish(ctx context.Context, event notify.ChangeEvent) {
	event.RunID = logging.GetRunID(ctx)
	if err := r.notifier.Notify(ctx, event); err != nil {
		r.log(ctx).Warn("change notification failed",
			slog.String("table", event.Table),
			slog.String("operation", string(event.Operation)),
			slog.String("error", err.Error()),
		)
	}
}

func rowCount(ok bool) int64 {
	if ok {
		return 1
	}
	return 0
}
