package db

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"ms-guestlist/internal/doorprize"
	"ms-guestlist/internal/models"
)

func setupTestDB(t *testing.T) *DB {
	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:?cache=shared")
	require.NoError(t, err)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	require.NoError(t, bunDB.ResetModel(context.Background(), (*models.Prize)(nil)))
	t.Cleanup(func() { bunDB.Close() })

	return &DB{Bun: bunDB}
}

func seedPrize(t *testing.T, d *DB, id, accountID, status string) *models.Prize {
	prize := &models.Prize{
		ID:        id,
		AccountID: accountID,
		Name:      "Prize " + id,
		Status:    status,
		CreatedAt: time.Now(),
	}
	require.NoError(t, d.CreatePrize(context.Background(), prize))
	return prize
}

func TestGetPrizeByIDScopedToAccount(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()
	seedPrize(t, d, "prize-1", "acct-a", models.PrizeActive)

	got, err := d.GetPrizeByID(ctx, "prize-1", "acct-a")
	require.NoError(t, err)
	assert.Equal(t, "prize-1", got.ID)

	_, err = d.GetPrizeByID(ctx, "prize-1", "acct-b")
	assert.ErrorIs(t, err, doorprize.ErrPrizeNotFound)
}

func TestCompletePrizeCompareAndSet(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()
	seedPrize(t, d, "prize-1", "acct-a", models.PrizeActive)

	rows, err := d.CompletePrize(ctx, "prize-1", "acct-a", "guest-1", "Alice", time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	// The second commit hits a completed prize and must not win.
	rows, err = d.CompletePrize(ctx, "prize-1", "acct-a", "guest-2", "Bob", time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(0), rows)

	got, err := d.GetPrizeByID(ctx, "prize-1", "acct-a")
	require.NoError(t, err)
	assert.Equal(t, models.PrizeCompleted, got.Status)
	assert.Equal(t, "guest-1", got.WinnerGuestID)
	assert.Equal(t, "Alice", got.WinnerName)
	require.NotNil(t, got.DrawnAt)
}

func TestCompletePrizeScopedToAccount(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()
	seedPrize(t, d, "prize-1", "acct-a", models.PrizeActive)

	rows, err := d.CompletePrize(ctx, "prize-1", "acct-b", "guest-1", "Mallory", time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(0), rows)

	got, err := d.GetPrizeByID(ctx, "prize-1", "acct-a")
	require.NoError(t, err)
	assert.Equal(t, models.PrizeActive, got.Status)
}

func TestListPrizesPerAccount(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()
	seedPrize(t, d, "prize-1", "acct-a", models.PrizeActive)
	seedPrize(t, d, "prize-2", "acct-a", models.PrizeCompleted)
	seedPrize(t, d, "prize-3", "acct-b", models.PrizeActive)

	list, err := d.ListPrizes(ctx, "acct-a")
	require.NoError(t, err)
	assert.Len(t, list, 2)
	for _, p := range list {
		assert.Equal(t, "acct-a", p.AccountID)
	}
}

func TestDeleteByAccount(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()
	seedPrize(t, d, "prize-1", "acct-a", models.PrizeActive)
	seedPrize(t, d, "prize-2", "acct-b", models.PrizeActive)

	require.NoError(t, d.DeleteByAccount(ctx, "acct-a"))

	_, err := d.GetPrizeByID(ctx, "prize-1", "acct-a")
	assert.ErrorIs(t, err, doorprize.ErrPrizeNotFound)

	_, err = d.GetPrizeByID(ctx, "prize-2", "acct-b")
	assert.NoError(t, err)
}
