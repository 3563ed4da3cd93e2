package doorprize

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"ms-guestlist/internal/logger"
	"ms-guestlist/internal/models"
	"ms-guestlist/internal/utils"
)

var (
	// ErrEmptyPool means no guest is checked in; the selector refuses to
	// draw rather than return an undefined winner.
	ErrEmptyPool = errors.New("no checked-in guests to draw from")

	// ErrPrizeNotFound is returned when a prize does not exist within the
	// caller's scope.
	ErrPrizeNotFound = errors.New("prize not found")

	// ErrPrizeCompleted means a winner is already recorded; the
	// active -> completed transition is one-way.
	ErrPrizeCompleted = errors.New("prize already completed")

	// ErrWinnerNotEligible means the proposed winner is not a checked-in
	// guest of this account.
	ErrWinnerNotEligible = errors.New("winner must be a checked-in guest")
)

// GuestPool reads the eligible pool. The pool is always re-read fresh at the
// decision point, never cached across it.
type GuestPool interface {
	ListCheckedIn(ctx context.Context, accountID, term string) ([]models.Guest, error)
	GetGuest(ctx context.Context, accountID, guestID string) (*models.Guest, error)
}

// PrizeDBLayer is the account-scoped prize store.
type PrizeDBLayer interface {
	CreatePrize(ctx context.Context, prize *models.Prize) error
	GetPrizeByID(ctx context.Context, id, accountID string) (*models.Prize, error)
	ListPrizes(ctx context.Context, accountID string) ([]models.Prize, error)
	CompletePrize(ctx context.Context, id, accountID, winnerGuestID, winnerName string, drawnAt time.Time) (int64, error)
	DeleteByAccount(ctx context.Context, accountID string) error
}

// DrawPublisher streams recorded draws to the message broker.
type DrawPublisher interface {
	PublishPrizeDrawn(drawn models.PrizeDrawn) error
}

// DoorprizeService draws winners from the checked-in pool and records them
// on persisted prizes.
type DoorprizeService struct {
	Guests GuestPool
	DB     PrizeDBLayer
	Kafka  DrawPublisher
	Logger *logger.Logger
}

func NewDoorprizeService(guestPool GuestPool, db PrizeDBLayer, kafka DrawPublisher, log *logger.Logger) *DoorprizeService {
	return &DoorprizeService{Guests: guestPool, DB: db, Kafka: kafka, Logger: log}
}

// Draw selects a winner uniformly at random from the account's checked-in
// guests. The pool is read fresh here so a guest who un-checked-in mid-draw
// can no longer win.
func (s *DoorprizeService) Draw(ctx context.Context, accountID string) (*models.Guest, error) {
	pool, err := s.Guests.ListCheckedIn(ctx, accountID, "")
	if err != nil {
		return nil, fmt.Errorf("failed to load eligible pool: %w", err)
	}
	if len(pool) == 0 {
		return nil, ErrEmptyPool
	}

	idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(pool))))
	if err != nil {
		return nil, fmt.Errorf("failed to draw random index: %w", err)
	}

	winner := pool[idx.Int64()]
	if s.Logger != nil {
		s.Logger.LogDraw(accountID, fmt.Sprintf("drew %q from a pool of %d", winner.Name, len(pool)))
	}
	return &winner, nil
}

// CreatePrize registers a prize in the active state.
func (s *DoorprizeService) CreatePrize(ctx context.Context, accountID string, req models.PrizeRequest) (*models.Prize, error) {
	if req.Name == "" {
		return nil, errors.New("prize name is required")
	}

	prize := &models.Prize{
		ID:          utils.GenerateID(),
		AccountID:   accountID,
		Name:        req.Name,
		Description: req.Description,
		Status:      models.PrizeActive,
		CreatedAt:   time.Now(),
	}
	if err := s.DB.CreatePrize(ctx, prize); err != nil {
		return nil, fmt.Errorf("failed to create prize: %w", err)
	}
	return prize, nil
}

// GetPrize returns a prize in scope.
func (s *DoorprizeService) GetPrize(ctx context.Context, accountID, prizeID string) (*models.Prize, error) {
	return s.DB.GetPrizeByID(ctx, prizeID, accountID)
}

// ListPrizes returns the account's prizes.
func (s *DoorprizeService) ListPrizes(ctx context.Context, accountID string) ([]models.Prize, error) {
	return s.DB.ListPrizes(ctx, accountID)
}

// RecordPrizeWinner permanently records a winner on an active prize. The
// winner must be a checked-in guest of the same account, and a completed
// prize is never re-drawn. The status flip is a compare-and-set so two
// simultaneous commits cannot both win.
func (s *DoorprizeService) RecordPrizeWinner(ctx context.Context, accountID, prizeID, guestID string) (*models.Prize, error) {
	prize, err := s.DB.GetPrizeByID(ctx, prizeID, accountID)
	if err != nil {
		return nil, err
	}
	if prize.Status == models.PrizeCompleted {
		return nil, ErrPrizeCompleted
	}

	guest, err := s.Guests.GetGuest(ctx, accountID, guestID)
	if err != nil {
		return nil, err
	}
	if !guest.CheckedIn() {
		return nil, ErrWinnerNotEligible
	}

	drawnAt := time.Now()
	rows, err := s.DB.CompletePrize(ctx, prizeID, accountID, guest.ID, guest.Name, drawnAt)
	if err != nil {
		return nil, fmt.Errorf("failed to record prize winner: %w", err)
	}
	if rows == 0 {
		// Lost the race: someone else completed the prize first.
		return nil, ErrPrizeCompleted
	}

	updated, err := s.DB.GetPrizeByID(ctx, prizeID, accountID)
	if err != nil {
		return nil, err
	}

	if s.Logger != nil {
		s.Logger.LogDraw(accountID, fmt.Sprintf("prize %q won by %q", updated.Name, guest.Name))
	}
	if s.Kafka != nil {
		drawn := models.PrizeDrawn{
			AccountID:  accountID,
			PrizeID:    prizeID,
			GuestID:    guest.ID,
			WinnerName: guest.Name,
			At:         drawnAt,
		}
		if err := s.Kafka.PublishPrizeDrawn(drawn); err != nil && s.Logger != nil {
			s.Logger.Error("KAFKA", fmt.Sprintf("failed to publish prize drawn for %s: %v", prizeID, err))
		}
	}

	return updated, nil
}
