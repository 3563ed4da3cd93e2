package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"ms-guestlist/internal/guests"
	"ms-guestlist/internal/models"
)

// DB is the guest repository. Every query conjoins the account id
// server-side; no operation can be issued unscoped.
type DB struct {
	Bun *bun.DB
}

// GetAccount fetches the owning account, used to validate guest categories.
func (d *DB) GetAccount(ctx context.Context, accountID string) (*models.Account, error) {
	var account models.Account
	err := d.Bun.NewSelect().
		Model(&account).
		Where("id = ?", accountID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, guests.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// GetGuestByID fetches a guest and re-verifies the row's account against the
// caller's scope. A row that resolves to a different account is reported as
// ErrCrossAccount so the service can log it and return plain not-found.
func (d *DB) GetGuestByID(ctx context.Context, id, accountID string) (*models.Guest, error) {
	var guest models.Guest
	err := d.Bun.NewSelect().
		Model(&guest).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, guests.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if guest.AccountID != accountID {
		return nil, guests.ErrCrossAccount
	}
	return &guest, nil
}

// FindGuests lists the account's guests, optionally filtered by a search
// term over name, phone and invitation code.
func (d *DB) FindGuests(ctx context.Context, accountID, term string) ([]models.Guest, error) {
	q := d.Bun.NewSelect().
		Model((*models.Guest)(nil)).
		Where("account_id = ?", accountID).
		Order("name ASC")

	if term != "" {
		pattern := "%" + term + "%"
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("lower(name) LIKE lower(?)", pattern).
				WhereOr("phone LIKE ?", pattern).
				WhereOr("lower(code) LIKE lower(?)", pattern)
		})
	}

	var list []models.Guest
	if err := q.Scan(ctx, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// ListCheckedIn lists the account's currently checked-in guests, the
// doorprize eligible pool.
func (d *DB) ListCheckedIn(ctx context.Context, accountID, term string) ([]models.Guest, error) {
	q := d.Bun.NewSelect().
		Model((*models.Guest)(nil)).
		Where("account_id = ?", accountID).
		Where("check_in_date IS NOT NULL").
		Order("check_in_date DESC")

	if term != "" {
		pattern := "%" + term + "%"
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("lower(name) LIKE lower(?)", pattern).
				WhereOr("phone LIKE ?", pattern).
				WhereOr("lower(code) LIKE lower(?)", pattern)
		})
	}

	var list []models.Guest
	if err := q.Scan(ctx, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// FindByPhone looks up a guest by normalized phone within the account.
func (d *DB) FindByPhone(ctx context.Context, accountID, phone string) (*models.Guest, error) {
	var guest models.Guest
	err := d.Bun.NewSelect().
		Model(&guest).
		Where("account_id = ?", accountID).
		Where("phone = ?", phone).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, guests.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &guest, nil
}

// FindByName looks up a guest by case-insensitive trimmed name within the
// account.
func (d *DB) FindByName(ctx context.Context, accountID, normalizedName string) (*models.Guest, error) {
	var guest models.Guest
	err := d.Bun.NewSelect().
		Model(&guest).
		Where("account_id = ?", accountID).
		Where("lower(name) = ?", normalizedName).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, guests.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &guest, nil
}

// CodeExists reports whether an invitation code is already taken within the
// account.
func (d *DB) CodeExists(ctx context.Context, accountID, code string) (bool, error) {
	return d.Bun.NewSelect().
		Model((*models.Guest)(nil)).
		Where("account_id = ?", accountID).
		Where("code = ?", code).
		Exists(ctx)
}

// InsertGuest creates a guest row. The account id is set by the service from
// the resolved context before insert.
func (d *DB) InsertGuest(ctx context.Context, guest *models.Guest) error {
	_, err := d.Bun.NewInsert().Model(guest).Exec(ctx)
	return err
}

// SetCheckIn marks a guest present. When expectClear is true the update only
// applies if the guest is not already checked in (compare-and-set); a
// confirmed overwrite drops the precondition. Returns the number of rows
// updated.
func (d *DB) SetCheckIn(ctx context.Context, id, accountID string, guestCount int, at time.Time, expectClear bool) (int64, error) {
	q := d.Bun.NewUpdate().
		Model((*models.Guest)(nil)).
		Set("check_in_date = ?", at).
		Set("guest_count = ?", guestCount).
		Set("updated_at = ?", at).
		Where("id = ?", id).
		Where("account_id = ?", accountID)

	if expectClear {
		q = q.Where("check_in_date IS NULL")
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ClearCheckIn resets the check-in state. Gift and souvenir columns are
// untouched; those are independent sub-lifecycles.
func (d *DB) ClearCheckIn(ctx context.Context, id, accountID string) (int64, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Guest)(nil)).
		Set("check_in_date = NULL").
		Set("guest_count = 0").
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Where("account_id = ?", accountID).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SetGift writes the gift columns only. Passing a nil recordedAt clears the
// timestamp (the clear-gift operation).
func (d *DB) SetGift(ctx context.Context, id, accountID string, kado, angpao int, note string, recordedAt *time.Time) (int64, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Guest)(nil)).
		Set("kado_count = ?", kado).
		Set("angpao_count = ?", angpao).
		Set("gift_note = ?", note).
		Set("gift_recorded_at = ?", recordedAt).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Where("account_id = ?", accountID).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SetSouvenir writes the souvenir columns only.
func (d *DB) SetSouvenir(ctx context.Context, id, accountID string, count int, recordedAt time.Time) (int64, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Guest)(nil)).
		Set("souvenir_count = ?", count).
		Set("souvenir_recorded_at = ?", recordedAt).
		Set("updated_at = ?", recordedAt).
		Where("id = ?", id).
		Where("account_id = ?", accountID).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteGuest removes a single guest within the account scope.
func (d *DB) DeleteGuest(ctx context.Context, id, accountID string) (int64, error) {
	res, err := d.Bun.NewDelete().
		Model((*models.Guest)(nil)).
		Where("id = ?", id).
		Where("account_id = ?", accountID).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteByAccount removes every guest of an account. Used only by the
// account delete cascade.
func (d *DB) DeleteByAccount(ctx context.Context, accountID string) error {
	_, err := d.Bun.NewDelete().
		Model((*models.Guest)(nil)).
		Where("account_id = ?", accountID).
		Exec(ctx)
	return err
}
