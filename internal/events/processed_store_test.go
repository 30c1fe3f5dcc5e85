package events

import (
	"context"
	"testing"
	"time"

	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessedStore_ClaimAndSeen(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := newProcessedStoreWithExec(mock)
	ctx := context.Background()

	mock.ExpectExec("INSERT INTO processed_events").WithArgs("whatsapp", "wamid.1").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	first, err := store.Claim(ctx, "whatsapp", "wamid.1")
	require.NoError(t, err)
	assert.True(t, first)

	mock.ExpectExec("INSERT INTO processed_events").WithArgs("whatsapp", "wamid.1").WillReturnResult(pgxmock.NewResult("INSERT", 0))
	again, err := store.Claim(ctx, "whatsapp", "wamid.1")
	require.NoError(t, err)
	assert.False(t, again)

	mock.ExpectQuery("SELECT 1 FROM processed_events").WithArgs("whatsapp", "wamid.1").WillReturnRows(pgxmock.NewRows([]string{"one"}).AddRow(1))
	seen, err := store.Seen(ctx, "whatsapp", "wamid.1")
	require.NoError(t, err)
	assert.True(t, seen)

	mock.ExpectQuery("SELECT 1 FROM processed_events").WithArgs("whatsapp", "wamid.2").WillReturnError(pgx.ErrNoRows)
	seen, err = store.Seen(ctx, "whatsapp", "wamid.2")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessedStore_PurgeBefore(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cutoff := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec("DELETE FROM processed_events").WithArgs(cutoff).WillReturnResult(pgxmock.NewResult("DELETE", 7))

	n, err := newProcessedStoreWithExec(mock).PurgeBefore(context.Background(), cutoff)
	require.NoError(t, err)
	assert.EqualValues(t, 7, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryDedupe(t *testing.T) {
	d := NewMemoryDedupe()
	ctx := context.Background()

	ok, _ := d.Claim(ctx, "whatsapp", "a")
	assert.True(t, ok)
	ok, _ = d.Claim(ctx, "whatsapp", "a")
	assert.False(t, ok)
	ok, _ = d.Claim(ctx, "whatsapp_web", "a")
	assert.True(t, ok)

	require.NoError(t, d.Release(ctx, "whatsapp", "a"))
	ok, _ = d.Claim(ctx, "whatsapp", "a")
	assert.True(t, ok)
}

func TestProcessedStore_Release(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("DELETE FROM processed_events WHERE provider").WithArgs("whatsapp", "wamid.9").WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, newProcessedStoreWithExec(mock).Release(context.Background(), "whatsapp", "wamid.9"))
	require.NoError(t, mock.ExpectationsWereMet())
}
