package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Prize statuses. The active -> completed transition is one-way.
const (
	PrizeActive    = "active"
	PrizeCompleted = "completed"
)

type Prize struct {
	bun.BaseModel `bun:"table:prizes"`

	ID            string     `bun:"id,pk" json:"id"`
	AccountID     string     `bun:"account_id,notnull" json:"account_id"`
	Name          string     `bun:"name,notnull" json:"name"`
	Description   string     `bun:"description" json:"description"`
	Status        string     `bun:"status,notnull" json:"status"`
	WinnerGuestID string     `bun:"winner_guest_id" json:"winner_guest_id"`
	WinnerName    string     `bun:"winner_name" json:"winner_name"`
	DrawnAt       *time.Time `bun:"drawn_at" json:"drawn_at"`
	CreatedAt     time.Time  `bun:"created_at,notnull" json:"created_at"`
}

type PrizeRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// PrizeDrawn is published after a winner is permanently recorded.
type PrizeDrawn struct {
	AccountID  string    `json:"account_id"`
	PrizeID    string    `json:"prize_id"`
	GuestID    string    `json:"guest_id"`
	WinnerName string    `json:"winner_name"`
	At         time.Time `json:"at"`
}
