package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Guest is the unified guest record. Pre-invited guests and walk-ins share
// one schema; IsInvited only records provenance.
type Guest struct {
	bun.BaseModel `bun:"table:guests"`

	ID        string `bun:"id,pk" json:"id"`
	AccountID string `bun:"account_id,notnull" json:"account_id"`
	Name      string `bun:"name,notnull" json:"name"`
	Phone     string `bun:"phone" json:"phone"`
	Category  string `bun:"category" json:"category"`
	Info      string `bun:"info" json:"info"`
	TableNo   string `bun:"table_no" json:"table_no"`
	Session   string `bun:"session" json:"session"`
	// PartyLimit is the maximum party size allowed at check-in. Zero means
	// no limit was set for this invitation.
	PartyLimit int    `bun:"party_limit" json:"party_limit"`
	Code       string `bun:"code,notnull" json:"code"`
	IsInvited  bool   `bun:"is_invited" json:"is_invited"`

	CheckInDate *time.Time `bun:"check_in_date" json:"check_in_date"`
	GuestCount  int        `bun:"guest_count" json:"guest_count"`

	SouvenirCount      int        `bun:"souvenir_count" json:"souvenir_count"`
	KadoCount          int        `bun:"kado_count" json:"kado_count"`
	AngpaoCount        int        `bun:"angpao_count" json:"angpao_count"`
	GiftNote           string     `bun:"gift_note" json:"gift_note"`
	GiftRecordedAt     *time.Time `bun:"gift_recorded_at" json:"gift_recorded_at"`
	SouvenirRecordedAt *time.Time `bun:"souvenir_recorded_at" json:"souvenir_recorded_at"`

	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at" json:"updated_at"`
}

// CheckedIn reports whether the guest is currently marked present.
func (g *Guest) CheckedIn() bool {
	return g.CheckInDate != nil
}

// WalkInSubmission is the front-desk payload for a non-invited guest. The
// account is always taken from the resolved request context, never from the
// payload.
type WalkInSubmission struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Category string `json:"category"`
	Info     string `json:"info"`
	Session  string `json:"session"`
	Code     string `json:"code"`
}

// WalkInCandidate is a staged walk-in guest awaiting explicit confirmation
// before a new row is created.
type WalkInCandidate struct {
	Name            string `json:"name"`
	NormalizedPhone string `json:"normalized_phone"`
	Category        string `json:"category"`
	Info            string `json:"info"`
	Session         string `json:"session"`
	Code            string `json:"code"`
}

// WalkInResult is the outcome of a walk-in submission: either an existing
// guest matched by the dedup rule, or a candidate that needs confirmation.
type WalkInResult struct {
	MatchedExisting   bool             `json:"matched_existing"`
	Guest             *Guest           `json:"guest,omitempty"`
	NeedsConfirmation bool             `json:"needs_confirmation"`
	Candidate         *WalkInCandidate `json:"candidate,omitempty"`
}

type CheckInRequest struct {
	GuestCount       int  `json:"guest_count"`
	ConfirmOverwrite bool `json:"confirm_overwrite"`
}

type GiftRequest struct {
	KadoCount   int    `json:"kado_count"`
	AngpaoCount int    `json:"angpao_count"`
	GiftNote    string `json:"gift_note"`
}

type SouvenirRequest struct {
	SouvenirCount int `json:"souvenir_count"`
}

type RegisterGuestRequest struct {
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Category   string `json:"category"`
	Info       string `json:"info"`
	TableNo    string `json:"table_no"`
	Session    string `json:"session"`
	PartyLimit int    `json:"party_limit"`
	Code       string `json:"code"`
}

// GuestChange is the payload of the change-notification hook fired after
// every successful guest mutation.
type GuestChange struct {
	AccountID string    `json:"account_id"`
	GuestID   string    `json:"guest_id"`
	Action    string    `json:"action"`
	Guest     *Guest    `json:"guest,omitempty"`
	At        time.Time `json:"at"`
}

// Guest change actions.
const (
	ActionRegistered      = "guest_registered"
	ActionCheckedIn       = "guest_checked_in"
	ActionCheckInCleared  = "guest_check_in_cleared"
	ActionGiftAssigned    = "guest_gift_assigned"
	ActionGiftCleared     = "guest_gift_cleared"
	ActionSouvenirUpdated = "guest_souvenir_updated"
	ActionWalkInCreated   = "guest_walk_in_created"
	ActionGuestDeleted    = "guest_deleted"
)
