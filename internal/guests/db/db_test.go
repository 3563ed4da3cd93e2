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

	"ms-guestlist/internal/guests"
	"ms-guestlist/internal/models"
)

func setupTestDB(t *testing.T) *DB {
	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:?cache=shared")
	require.NoError(t, err)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	ctx := context.Background()
	require.NoError(t, bunDB.ResetModel(ctx, (*models.Account)(nil)))
	require.NoError(t, bunDB.ResetModel(ctx, (*models.Guest)(nil)))

	t.Cleanup(func() { bunDB.Close() })
	return &DB{Bun: bunDB}
}

func seedAccount(t *testing.T, d *DB, id string) {
	_, err := d.Bun.NewInsert().Model(&models.Account{
		ID:              id,
		Title:           "Wedding of " + id,
		GuestCategories: []string{"Regular", "VIP"},
		CreatedAt:       time.Now(),
	}).Exec(context.Background())
	require.NoError(t, err)
}

func seedGuest(t *testing.T, d *DB, g models.Guest) models.Guest {
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now()
	}
	require.NoError(t, d.InsertGuest(context.Background(), &g))
	return g
}

func TestGetGuestByIDVerifiesAccountScope(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()
	seedAccount(t, d, "acct-a")
	seedAccount(t, d, "acct-b")

	g := seedGuest(t, d, models.Guest{ID: "g1", AccountID: "acct-a", Name: "Alice", Code: "A-1"})

	found, err := d.GetGuestByID(ctx, g.ID, "acct-a")
	require.NoError(t, err)
	assert.Equal(t, "Alice", found.Name)

	// Same raw id queried from another account must not resolve.
	_, err = d.GetGuestByID(ctx, g.ID, "acct-b")
	assert.ErrorIs(t, err, guests.ErrCrossAccount)

	_, err = d.GetGuestByID(ctx, "missing", "acct-a")
	assert.ErrorIs(t, err, guests.ErrNotFound)
}

func TestFindGuestsNeverLeaksAcrossAccounts(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()
	seedAccount(t, d, "acct-a")
	seedAccount(t, d, "acct-b")

	seedGuest(t, d, models.Guest{ID: "g1", AccountID: "acct-a", Name: "Alice", Code: "A-1"})
	seedGuest(t, d, models.Guest{ID: "g2", AccountID: "acct-b", Name: "Alice", Code: "B-1"})

	list, err := d.FindGuests(ctx, "acct-a", "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "g1", list[0].ID)

	// A search term matching the other account's guest still stays scoped.
	list, err = d.FindGuests(ctx, "acct-a", "alice")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "acct-a", list[0].AccountID)
}

func TestSetCheckInCompareAndSet(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()
	seedAccount(t, d, "acct-a")
	g := seedGuest(t, d, models.Guest{ID: "g1", AccountID: "acct-a", Name: "Alice", Code: "A-1"})

	rows, err := d.SetCheckIn(ctx, g.ID, "acct-a", 3, time.Now(), true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	// The expect-clear precondition now fails: the guest is checked in.
	rows, err = d.SetCheckIn(ctx, g.ID, "acct-a", 2, time.Now(), true)
	require.NoError(t, err)
	assert.Equal(t, int64(0), rows)

	// A confirmed overwrite drops the precondition.
	rows, err = d.SetCheckIn(ctx, g.ID, "acct-a", 2, time.Now(), false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	updated, err := d.GetGuestByID(ctx, g.ID, "acct-a")
	require.NoError(t, err)
	assert.Equal(t, 2, updated.GuestCount)
	assert.NotNil(t, updated.CheckInDate)
}

func TestSetCheckInScopedToAccount(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()
	seedAccount(t, d, "acct-a")
	g := seedGuest(t, d, models.Guest{ID: "g1", AccountID: "acct-a", Name: "Alice", Code: "A-1"})

	rows, err := d.SetCheckIn(ctx, g.ID, "acct-b", 3, time.Now(), true)
	require.NoError(t, err)
	assert.Equal(t, int64(0), rows, "an update scoped to another account must hit nothing")
}

func TestClearCheckInKeepsGiftData(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()
	seedAccount(t, d, "acct-a")
	g := seedGuest(t, d, models.Guest{ID: "g1", AccountID: "acct-a", Name: "Alice", Code: "A-1"})

	_, err := d.SetCheckIn(ctx, g.ID, "acct-a", 2, time.Now(), true)
	require.NoError(t, err)
	now := time.Now()
	_, err = d.SetGift(ctx, g.ID, "acct-a", 1, 2, "congrats", &now)
	require.NoError(t, err)

	rows, err := d.ClearCheckIn(ctx, g.ID, "acct-a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	updated, err := d.GetGuestByID(ctx, g.ID, "acct-a")
	require.NoError(t, err)
	assert.Nil(t, updated.CheckInDate)
	assert.Equal(t, 0, updated.GuestCount)
	assert.Equal(t, 1, updated.KadoCount)
	assert.Equal(t, 2, updated.AngpaoCount)
	assert.Equal(t, "congrats", updated.GiftNote)
	assert.NotNil(t, updated.GiftRecordedAt)
}

func TestSouvenirDoesNotTouchGiftOrCheckIn(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()
	seedAccount(t, d, "acct-a")
	g := seedGuest(t, d, models.Guest{ID: "g1", AccountID: "acct-a", Name: "Alice", Code: "A-1"})

	checkInAt := time.Now()
	_, err := d.SetCheckIn(ctx, g.ID, "acct-a", 2, checkInAt, true)
	require.NoError(t, err)
	_, err = d.SetGift(ctx, g.ID, "acct-a", 1, 1, "note", &checkInAt)
	require.NoError(t, err)

	rows, err := d.SetSouvenir(ctx, g.ID, "acct-a", 5, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	updated, err := d.GetGuestByID(ctx, g.ID, "acct-a")
	require.NoError(t, err)
	assert.Equal(t, 5, updated.SouvenirCount)
	assert.Equal(t, 1, updated.KadoCount)
	assert.Equal(t, 1, updated.AngpaoCount)
	assert.NotNil(t, updated.CheckInDate)
}

func TestListCheckedInRoundTrip(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()
	seedAccount(t, d, "acct-a")
	alice := seedGuest(t, d, models.Guest{ID: "g1", AccountID: "acct-a", Name: "Alice", Code: "A-1"})
	seedGuest(t, d, models.Guest{ID: "g2", AccountID: "acct-a", Name: "Bob", Code: "A-2"})

	_, err := d.SetCheckIn(ctx, alice.ID, "acct-a", 4, time.Now(), true)
	require.NoError(t, err)

	list, err := d.ListCheckedIn(ctx, "acct-a", "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Alice", list[0].Name)
	assert.Equal(t, 4, list[0].GuestCount)

	_, err = d.ClearCheckIn(ctx, alice.ID, "acct-a")
	require.NoError(t, err)

	list, err = d.ListCheckedIn(ctx, "acct-a", "")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestDedupLookups(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()
	seedAccount(t, d, "acct-a")
	seedGuest(t, d, models.Guest{ID: "g1", AccountID: "acct-a", Name: "Siti", Phone: "+628123456789", Code: "A-1"})

	byPhone, err := d.FindByPhone(ctx, "acct-a", "+628123456789")
	require.NoError(t, err)
	assert.Equal(t, "g1", byPhone.ID)

	byName, err := d.FindByName(ctx, "acct-a", "siti")
	require.NoError(t, err)
	assert.Equal(t, "g1", byName.ID)

	_, err = d.FindByPhone(ctx, "acct-b", "+628123456789")
	assert.ErrorIs(t, err, guests.ErrNotFound)

	_, err = d.FindByName(ctx, "acct-a", "someone else")
	assert.ErrorIs(t, err, guests.ErrNotFound)
}

func TestCodeExistsIsPerAccount(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()
	seedAccount(t, d, "acct-a")
	seedGuest(t, d, models.Guest{ID: "g1", AccountID: "acct-a", Name: "Alice", Code: "SHARED"})

	exists, err := d.CodeExists(ctx, "acct-a", "SHARED")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = d.CodeExists(ctx, "acct-b", "SHARED")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDeleteByAccount(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()
	seedAccount(t, d, "acct-a")
	seedAccount(t, d, "acct-b")
	seedGuest(t, d, models.Guest{ID: "g1", AccountID: "acct-a", Name: "Alice", Code: "A-1"})
	seedGuest(t, d, models.Guest{ID: "g2", AccountID: "acct-b", Name: "Bob", Code: "B-1"})

	require.NoError(t, d.DeleteByAccount(ctx, "acct-a"))

	list, err := d.FindGuests(ctx, "acct-a", "")
	require.NoError(t, err)
	assert.Empty(t, list)

	list, err = d.FindGuests(ctx, "acct-b", "")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
