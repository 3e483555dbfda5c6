package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"tablerepo/internal/logging"
	"tablerepo/internal/notify"
	"tablerepo/internal/planner"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreate(t *testing.T) {
	notifier := &recordingNotifier{}
	repo, mock := newWidgetRepo(t, widget, WithNotifier(notifier))

	mock.ExpectQuery("INSERT INTO public.widget (name,status) VALUES ($1,$2) RETURNING *").
		WithArgs("bolt", "new").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "status"}).AddRow(int64(1), "bolt", "new"))

	ctx := logging.WithRunIDContext(context.Background(), "run-1")
	record, err := repo.Create(ctx, map[string]any{"status": "new", "name": "bolt", "id": 99})
	require.NoError(t, err)
	assert.Equal(t, Record{"id": int64(1), "name": "bolt", "status": "new"}, record)

	require.Len(t, notifier.events, 1)
	assert.Equal(t, notify.OpCreate, notifier.events[0].Operation)
	assert.Equal(t, "run-1", notifier.events[0].RunID)
	assert.Equal(t, "public.widget", notifier.events[0].Table)
	assert.Equal(t, map[string]any(record), notifier.events[0].Record)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_NotifierFailureIsIgnored(t *testing.T) {
	notifier := &recordingNotifier{err: errors.New("topic gone")}
	repo, mock := newWidgetRepo(t, widget, WithNotifier(notifier))

	mock.ExpectQuery("INSERT INTO public.widget DEFAULT VALUES RETURNING *").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(5)))

	record, err := repo.Create(context.Background(), map[string]any{"unknown": 1})
	require.NoError(t, err)
	assert.Equal(t, int64(5), record["id"])
	assert.Len(t, notifier.events, 1)
}

func TestCreate_NormalizesJSONNumbers(t *testing.T) {
	repo, mock := newWidgetRepo(t, TableDescriptor{Table: "public.widget", Fillable: []string{"qty", "ratio"}})

	mock.ExpectQuery("INSERT INTO public.widget (qty,ratio) VALUES ($1,$2) RETURNING *").
		WithArgs(int64(3), 0.5).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	_, err := repo.Create(context.Background(), map[string]any{"qty": json.Number("3"), "ratio": json.Number("0.5")})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate(t *testing.T) {
	notifier := &recordingNotifier{}
	repo, mock := newWidgetRepo(t, widget, WithNotifier(notifier))

	mock.ExpectQuery("UPDATE public.widget SET name = $2, status = $3 WHERE id = $1 RETURNING *").
		WithArgs(7, "nut", "done").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "status"}).AddRow(int64(7), "nut", "done"))
	mock.ExpectQuery("UPDATE public.widget SET name = $2 WHERE id = $1 RETURNING *").
		WithArgs(8, "x").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))

	record, ok, err := repo.Update(context.Background(), 7, map[string]any{"name": "nut", "status": "done", "id": 1})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "done", record["status"])

	_, ok, err = repo.Update(context.Background(), 8, map[string]any{"name": "x"})
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Len(t, notifier.events, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate_NothingToUpdate(t *testing.T) {
	repo, mock := newWidgetRepo(t, widget)

	_, _, err := repo.Update(context.Background(), 7, map[string]any{"id": 1})
	assert.ErrorIs(t, err, ErrValidation)

	_, _, err = repo.Update(context.Background(), nil, map[string]any{"name": "x"})
	assert.ErrorIs(t, err, ErrValidation)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete(t *testing.T) {
	notifier := &recordingNotifier{}
	repo, mock := newWidgetRepo(t, widget, WithNotifier(notifier))

	mock.ExpectExec("DELETE FROM public.widget WHERE id = $1 and tenant_id = $2").
		WithArgs(7, 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM public.widget WHERE id = $1").
		WithArgs(9).
		WillReturnResult(sqlmock.NewResult(0, 0))

	n, err := repo.Delete(context.Background(), map[string]any{"tenant_id": 3, "id": 7})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repo.Delete(context.Background(), map[string]any{"id": 9})
	require.NoError(t, err)
	assert.Zero(t, n)

	require.Len(t, notifier.events, 1)
	assert.Equal(t, notify.OpDelete, notifier.events[0].Operation)
	assert.Equal(t, map[string]any{"tenant_id": 3, "id": 7}, notifier.events[0].Keys)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete_Soft(t *testing.T) {
	repo, mock := newWidgetRepo(t, TableDescriptor{Table: "public.widget", SoftDelete: true})
	mock.ExpectExec("UPDATE public.widget SET deleted = true WHERE id = $1").
		WithArgs(7).
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := repo.Delete(context.Background(), map[string]any{"id": 7})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete_EmptyKeys(t *testing.T) {
	repo, mock := newWidgetRepo(t, widget)

	_, err := repo.Delete(context.Background(), map[string]any{})
	assert.ErrorIs(t, err, ErrValidation)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendToField(t *testing.T) {
	notifier := &recordingNotifier{}
	repo, mock := newWidgetRepo(t, widget, WithNotifier(notifier))

	mock.ExpectQuery("UPDATE public.widget SET tags = array_append(tags, $2::text) WHERE id = $1 RETURNING *").
		WithArgs(7, "red").
		WillReturnRows(sqlmock.NewRows([]string{"id", "tags"}).AddRow(int64(7), "{blue,red}"))
	mock.ExpectQuery("UPDATE public.widget SET status = $2 WHERE id = $1 RETURNING *").
		WithArgs(7, "done").
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).AddRow(int64(7), "done"))

	record, ok, err := repo.AppendToField(context.Background(), 7, planner.AppendSpec{Field: "tags", Value: "red", Type: "text"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "{blue,red}", record["tags"])

	_, ok, err = repo.AppendToField(context.Background(), 7, planner.AppendSpec{Field: "status", Value: "done", Scalar: true})
	require.NoError(t, err)
	assert.True(t, ok)

	_, _, err = repo.AppendToField(context.Background(), 7, planner.AppendSpec{Field: "owner", Value: 1, Type: "integer"})
	assert.ErrorIs(t, err, ErrValidation)

	assert.Len(t, notifier.events, 2)
	assert.Equal(t, notify.OpAppend, notifier.events[0].Operation)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExec(t *testing.T) {
	repo, mock := newWidgetRepo(t, widget)
	mock.ExpectExec("UPDATE public.widget SET status = $1").
		WithArgs("stale").
		WillReturnResult(sqlmock.NewResult(0, 12))

	n, err := repo.Exec(context.Background(), "UPDATE public.widget SET status = $1", "stale")
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNormalizeValue(t *testing.T) {
	assert.Equal(t, int64(3), normalizeValue(json.Number("3")))
	assert.Equal(t, 2.5, normalizeValue(json.Number("2.5")))
	assert.Equal(t, []string{"a", "b"}, normalizeValue([]any{"a", "b"}))
	assert.Equal(t, []int64{1, 2}, normalizeValue([]any{json.Number("1"), float64(2)}))
	assert.Equal(t, []float64{1, 2.5}, normalizeValue([]any{json.Number("1"), json.Number("2.5")}))
	assert.Equal(t, []bool{true, false}, normalizeValue([]any{true, false}))
	assert.Equal(t, []any{"a", 1}, normalizeValue([]any{"a", 1}))
	assert.Equal(t, "x", normalizeValue("x"))
}
