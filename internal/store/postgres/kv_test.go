package postgres

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/brisketlabs/crawld/internal/store"
)

func TestGet(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	kv := NewWithQuerier(mock)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT value FROM crawld_kv`).
		WithArgs("jobs/j1/state.json").
		WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow([]byte("payload")))

	value, err := kv.Get(ctx, "jobs/j1/state.json")
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), value)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetNotFound(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	kv := NewWithQuerier(mock)

	mock.ExpectQuery(`SELECT value FROM crawld_kv`).
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows([]string{"value"}))

	_, err = kv.Get(context.Background(), "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPut(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	kv := NewWithQuerier(mock)

	mock.ExpectExec(`INSERT INTO crawld_kv`).
		WithArgs("jobs/j1/state.json", []byte("payload")).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, kv.Put(context.Background(), "jobs/j1/state.json", []byte("payload")))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestList(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	kv := NewWithQuerier(mock)

	mock.ExpectQuery(`SELECT key FROM crawld_kv`).
		WithArgs(`jobs/j1/events/%`).
		WillReturnRows(pgxmock.NewRows([]string{"key"}).
			AddRow("jobs/j1/events/000000000001").
			AddRow("jobs/j1/events/000000000002"))

	keys, err := kv.List(context.Background(), "jobs/j1/events/")
	require.NoError(t, err)
	require.Equal(t, []string{
		"jobs/j1/events/000000000001",
		"jobs/j1/events/000000000002",
	}, keys)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEscapeLike(t *testing.T) {
	t.Parallel()

	require.Equal(t, `a\%b\_c\\d`, escapeLike(`a%b_c\d`))
}
