package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Account struct {
	bun.BaseModel `bun:"table:accounts"`

	ID              string    `bun:"id,pk" json:"id"`
	Title           string    `bun:"title,notnull" json:"title"`
	EventDateTime   time.Time `bun:"event_date_time" json:"event_date_time"`
	Location        string    `bun:"location" json:"location"`
	WelcomeText     string    `bun:"welcome_text" json:"welcome_text"`
	YoutubeURL      string    `bun:"youtube_url" json:"youtube_url"`
	GuestCategories []string  `bun:"guest_categories,array" json:"guest_categories"`
	CreatedAt       time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt       time.Time `bun:"updated_at" json:"updated_at"`
}

// HasCategory reports whether the given label is one of the account's
// configured guest categories.
func (a *Account) HasCategory(category string) bool {
	for _, c := range a.GuestCategories {
		if c == category {
			return true
		}
	}
	return false
}

type AccountRequest struct {
	Title           string    `json:"title"`
	EventDateTime   time.Time `json:"event_date_time"`
	Location        string    `json:"location"`
	WelcomeText     string    `json:"welcome_text"`
	YoutubeURL      string    `json:"youtube_url"`
	GuestCategories []string  `json:"guest_categories"`
}
