package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"ms-guestlist/internal/accounts"
	"ms-guestlist/internal/models"
)

// DB is the tenant store.
type DB struct {
	Bun *bun.DB
}

func (d *DB) CreateAccount(ctx context.Context, account *models.Account) error {
	_, err := d.Bun.NewInsert().Model(account).Exec(ctx)
	return err
}

func (d *DB) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	var account models.Account
	err := d.Bun.NewSelect().
		Model(&account).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, accounts.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (d *DB) UpdateAccount(ctx context.Context, account *models.Account) (int64, error) {
	res, err := d.Bun.NewUpdate().
		Model(account).
		Column("title", "event_date_time", "location", "welcome_text", "youtube_url", "guest_categories", "updated_at").
		Where("id = ?", account.ID).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteCascade removes everything owned by the account in one transaction:
// guests, prizes, then the account row itself.
func (d *DB) DeleteCascade(ctx context.Context, accountID string) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*models.Guest)(nil)).
			Where("account_id = ?", accountID).
			Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewDelete().
			Model((*models.Prize)(nil)).
			Where("account_id = ?", accountID).
			Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewDelete().
			Model((*models.Account)(nil)).
			Where("id = ?", accountID).
			Exec(ctx); err != nil {
			return err
		}
		return nil
	})
}
