package repository

import (
	"context"
	"testing"

	"tablerepo/internal/dbexec"
	"tablerepo/internal/logging"
	"tablerepo/internal/query"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReadOnlyRepo(t *testing.T) (*ReadOnly, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newMockDB(t)
	repo, err := NewReadOnly(TableDescriptor{Table: "public.widget"}, dbexec.NewStandardExecutor(db), WithLogger(logging.Nop()))
	require.NoError(t, err)
	return repo, mock
}

func TestReadOnly_IsNotAWriter(t *testing.T) {
	repo, _ := newReadOnlyRepo(t)
	var reader Reader = repo
	_, isWriter := reader.(Writer)
	assert.False(t, isWriter)
}

func TestReadOnly_Reads(t *testing.T) {
	repo, mock := newReadOnlyRepo(t)
	mock.ExpectQuery("SELECT * FROM public.widget").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectQuery("WITH recent AS (SELECT id FROM public.widget) SELECT count(*) FROM recent").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(1)))

	records, err := repo.Find(context.Background(), query.Parameters{})
	require.NoError(t, err)
	assert.Len(t, records, 1)

	_, err = repo.Query(context.Background(), "WITH recent AS (SELECT id FROM public.widget) SELECT count(*) FROM recent")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReadOnly_QueryRejectsWrites(t *testing.T) {
	repo, mock := newReadOnlyRepo(t)

	statements := []string{
		"INSERT INTO public.widget (name) VALUES ('x')",
		"  update public.widget SET name = 'x'",
		"DELETE FROM public.widget",
		"-- cleanup\nTRUNCATE public.widget",
		"/* hi */ DROP TABLE public.widget",
		"WITH gone AS (DELETE FROM public.widget RETURNING id) SELECT * FROM gone",
		"SELECT 1; DELETE FROM public.widget",
		"merge into public.widget w using src s on w.id = s.id when matched then delete",
		"GRANT ALL ON public.widget TO someone",
		"EXPLAIN ANALYZE DELETE FROM public.widget",
		"explain (analyze, format json) select * from public.widget",
		"EXPLAIN DELETE FROM public.widget",
		"SELECT * INTO public.copy FROM public.widget",
		"SELECT * FROM public.widget FOR UPDATE",
		"CALL purge_widgets()",
		"COPY public.widget FROM '/tmp/x'",
		"DO $$BEGIN DELETE FROM public.widget; END$$",
		"VACUUM public.widget",
		"SET search_path TO other",
	}
	for _, stmt := range statements {
		t.Run(stmt, func(t *testing.T) {
			_, err := repo.Query(context.Background(), stmt)
			assert.ErrorIs(t, err, ErrPermission)
		})
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckReadOnly(t *testing.T) {
	allowed := []string{
		"SELECT * FROM public.widget",
		"select 'DELETE FROM x' as note",
		`SELECT "update" FROM public.widget`,
		"SELECT $$INSERT$$",
		"SELECT $tag$DROP TABLE x$tag$",
		"SELECT id FROM public.widget WHERE id = $1;",
		"SELECT 1 -- DROP TABLE x",
		"EXPLAIN SELECT 1",
		"EXPLAIN (VERBOSE, COSTS OFF) SELECT * FROM public.widget",
		"WITH recent AS (SELECT id FROM public.widget) SELECT * FROM recent",
		"VALUES (1), (2)",
		"TABLE public.widget",
		"SHOW search_path",
	}
	for _, stmt := range allowed {
		assert.NoError(t, checkReadOnly(stmt), stmt)
	}

	assert.ErrorIs(t, checkReadOnly("   "), ErrValidation)
	assert.ErrorIs(t, checkReadOnly("-- only a comment"), ErrValidation)
}
