package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"ms-guestlist/internal/doorprize"
	"ms-guestlist/internal/models"
)

// DB is the prize store. Every query conjoins the account id server-side.
type DB struct {
	Bun *bun.DB
}

func (d *DB) CreatePrize(ctx context.Context, prize *models.Prize) error {
	_, err := d.Bun.NewInsert().Model(prize).Exec(ctx)
	return err
}

func (d *DB) GetPrizeByID(ctx context.Context, id, accountID string) (*models.Prize, error) {
	var prize models.Prize
	err := d.Bun.NewSelect().
		Model(&prize).
		Where("id = ?", id).
		Where("account_id = ?", accountID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, doorprize.ErrPrizeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &prize, nil
}

func (d *DB) ListPrizes(ctx context.Context, accountID string) ([]models.Prize, error) {
	var list []models.Prize
	err := d.Bun.NewSelect().
		Model((*models.Prize)(nil)).
		Where("account_id = ?", accountID).
		Order("created_at ASC").
		Scan(ctx, &list)
	if err != nil {
		return nil, err
	}
	return list, nil
}

// CompletePrize flips an active prize to completed with the winner recorded.
// The status predicate makes the transition a compare-and-set; zero rows
// means the prize was already completed (or is out of scope).
func (d *DB) CompletePrize(ctx context.Context, id, accountID, winnerGuestID, winnerName string, drawnAt time.Time) (int64, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Prize)(nil)).
		Set("status = ?", models.PrizeCompleted).
		Set("winner_guest_id = ?", winnerGuestID).
		Set("winner_name = ?", winnerName).
		Set("drawn_at = ?", drawnAt).
		Where("id = ?", id).
		Where("account_id = ?", accountID).
		Where("status = ?", models.PrizeActive).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteByAccount removes every prize of an account. Used only by the
// account delete cascade.
func (d *DB) DeleteByAccount(ctx context.Context, accountID string) error {
	_, err := d.Bun.NewDelete().
		Model((*models.Prize)(nil)).
		Where("account_id = ?", accountID).
		Exec(ctx)
	return err
}
