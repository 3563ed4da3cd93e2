package guests

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ms-guestlist/internal/logger"
	"ms-guestlist/internal/models"
	"ms-guestlist/internal/utils"
)

// DBLayer is the account-scoped guest repository contract. Implementations
// must conjoin the account id on every query.
type DBLayer interface {
	GetAccount(ctx context.Context, accountID string) (*models.Account, error)
	GetGuestByID(ctx context.Context, id, accountID string) (*models.Guest, error)
	FindGuests(ctx context.Context, accountID, term string) ([]models.Guest, error)
	ListCheckedIn(ctx context.Context, accountID, term string) ([]models.Guest, error)
	FindByPhone(ctx context.Context, accountID, phone string) (*models.Guest, error)
	FindByName(ctx context.Context, accountID, normalizedName string) (*models.Guest, error)
	CodeExists(ctx context.Context, accountID, code string) (bool, error)
	InsertGuest(ctx context.Context, guest *models.Guest) error
	SetCheckIn(ctx context.Context, id, accountID string, guestCount int, at time.Time, expectClear bool) (int64, error)
	ClearCheckIn(ctx context.Context, id, accountID string) (int64, error)
	SetGift(ctx context.Context, id, accountID string, kado, angpao int, note string, recordedAt *time.Time) (int64, error)
	SetSouvenir(ctx context.Context, id, accountID string, count int, recordedAt time.Time) (int64, error)
	DeleteGuest(ctx context.Context, id, accountID string) (int64, error)
	DeleteByAccount(ctx context.Context, accountID string) error
}

// DedupLock serializes walk-in submissions for the same person.
type DedupLock interface {
	Acquire(ctx context.Context, accountID, dedupKey, token string) (bool, error)
	Release(ctx context.Context, accountID, dedupKey, token string) error
}

// ChangePublisher streams guest changes to the message broker.
type ChangePublisher interface {
	PublishGuestChange(change models.GuestChange) error
}

// ChangeEmitter fans guest changes out to in-process subscribers.
type ChangeEmitter interface {
	EmitGuestChange(change models.GuestChange)
}

// GuestService is the guest lifecycle engine. All operations take the
// account id from the resolved request context; payload-supplied account
// fields are ignored everywhere.
type GuestService struct {
	DB          DBLayer
	Lock        DedupLock
	Kafka       ChangePublisher
	Events      ChangeEmitter
	Logger      *logger.Logger
	PhoneRegion string
}

func NewGuestService(db DBLayer, lock DedupLock, kafka ChangePublisher, events ChangeEmitter, log *logger.Logger, phoneRegion string) *GuestService {
	if phoneRegion == "" {
		phoneRegion = "ID"
	}
	return &GuestService{
		DB:          db,
		Lock:        lock,
		Kafka:       kafka,
		Events:      events,
		Logger:      log,
		PhoneRegion: phoneRegion,
	}
}

// getGuest fetches a guest in scope. Cross-account hits are logged as
// security events and reported as plain not-found so the caller cannot
// distinguish them from absent records.
func (s *GuestService) getGuest(ctx context.Context, accountID, guestID string) (*models.Guest, error) {
	guest, err := s.DB.GetGuestByID(ctx, guestID, accountID)
	if errors.Is(err, ErrCrossAccount) {
		if s.Logger != nil {
			s.Logger.LogSecurity("CROSS_ACCOUNT", fmt.Sprintf("account %s attempted access to guest %s", accountID, guestID))
		}
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return guest, nil
}

func (s *GuestService) notify(action string, guest *models.Guest) {
	change := models.GuestChange{
		AccountID: guest.AccountID,
		GuestID:   guest.ID,
		Action:    action,
		Guest:     guest,
		At:        time.Now(),
	}
	if s.Kafka != nil {
		if err := s.Kafka.PublishGuestChange(change); err != nil && s.Logger != nil {
			s.Logger.Error("KAFKA", fmt.Sprintf("failed to publish %s for guest %s: %v", action, guest.ID, err))
		}
	}
	if s.Events != nil {
		s.Events.EmitGuestChange(change)
	}
}

// GetGuest returns a single guest in scope.
func (s *GuestService) GetGuest(ctx context.Context, accountID, guestID string) (*models.Guest, error) {
	return s.getGuest(ctx, accountID, guestID)
}

// ListGuests returns the account's guests, optionally filtered by a search
// term.
func (s *GuestService) ListGuests(ctx context.Context, accountID, term string) ([]models.Guest, error) {
	return s.DB.FindGuests(ctx, accountID, term)
}

// ListCheckedIn returns the account's checked-in guests, used by the
// reception view and as the doorprize eligible pool.
func (s *GuestService) ListCheckedIn(ctx context.Context, accountID, term string) ([]models.Guest, error) {
	return s.DB.ListCheckedIn(ctx, accountID, term)
}

// RegisterInvited creates a pre-invited guest, the entry point for the
// invitation import. The category must be one of the account's configured
// guest categories.
func (s *GuestService) RegisterInvited(ctx context.Context, accountID string, req models.RegisterGuestRequest) (*models.Guest, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if req.PartyLimit < 0 {
		return nil, fmt.Errorf("%w: party limit must not be negative", ErrValidation)
	}

	account, err := s.DB.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if req.Category != "" && !account.HasCategory(req.Category) {
		return nil, fmt.Errorf("%w: category %q is not configured for this account", ErrValidation, req.Category)
	}

	phone := ""
	if req.Phone != "" {
		phone, err = utils.NormalizePhoneNumber(req.Phone, s.PhoneRegion)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed phone number %q", ErrValidation, req.Phone)
		}
	}

	code, err := s.resolveCode(ctx, accountID, req.Code)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	guest := &models.Guest{
		ID:         utils.GenerateID(),
		AccountID:  accountID,
		Name:       name,
		Phone:      phone,
		Category:   req.Category,
		Info:       req.Info,
		TableNo:    req.TableNo,
		Session:    req.Session,
		PartyLimit: req.PartyLimit,
		Code:       code,
		IsInvited:  true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.DB.InsertGuest(ctx, guest); err != nil {
		return nil, fmt.Errorf("failed to register guest: %w", err)
	}

	if s.Logger != nil {
		s.Logger.LogGuest("REGISTER", guest.ID, fmt.Sprintf("invited guest %q registered with code %s", guest.Name, guest.Code))
	}
	s.notify(models.ActionRegistered, guest)
	return guest, nil
}

// resolveCode validates a supplied invitation code or generates a fresh one
// that is unique within the account.
func (s *GuestService) resolveCode(ctx context.Context, accountID, code string) (string, error) {
	if code != "" {
		exists, err := s.DB.CodeExists(ctx, accountID, code)
		if err != nil {
			return "", err
		}
		if exists {
			return "", fmt.Errorf("%w: %s", ErrDuplicateCode, code)
		}
		return code, nil
	}

	for attempt := 0; attempt < 5; attempt++ {
		candidate := utils.GenerateInvitationCode()
		exists, err := s.DB.CodeExists(ctx, accountID, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", errors.New("failed to generate a unique invitation code")
}

// CheckIn marks a guest present with an actual party size. A guest that is
// already checked in is never silently overwritten; callers must pass
// confirmOverwrite after the front desk confirms intent.
func (s *GuestService) CheckIn(ctx context.Context, accountID, guestID string, guestCount int, confirmOverwrite bool) (*models.Guest, error) {
	if guestCount < 1 {
		return nil, fmt.Errorf("%w: guest count must be at least 1", ErrValidation)
	}

	guest, err := s.getGuest(ctx, accountID, guestID)
	if err != nil {
		return nil, err
	}
	if guest.PartyLimit > 0 && guestCount > guest.PartyLimit {
		return nil, fmt.Errorf("%w: guest count %d exceeds invitation limit %d", ErrValidation, guestCount, guest.PartyLimit)
	}
	if guest.CheckedIn() && !confirmOverwrite {
		return nil, ErrAlreadyCheckedIn
	}

	now := time.Now()
	rows, err := s.DB.SetCheckIn(ctx, guestID, accountID, guestCount, now, !confirmOverwrite)
	if err != nil {
		return nil, fmt.Errorf("failed to check in guest: %w", err)
	}
	if rows == 0 {
		// The precondition failed: another terminal checked the guest in
		// between our read and write.
		current, ferr := s.getGuest(ctx, accountID, guestID)
		if ferr != nil {
			return nil, ferr
		}
		if current.CheckedIn() && !confirmOverwrite {
			return nil, ErrAlreadyCheckedIn
		}
		return nil, ErrConcurrentModification
	}

	updated, err := s.getGuest(ctx, accountID, guestID)
	if err != nil {
		return nil, err
	}

	if s.Logger != nil {
		s.Logger.LogGuest("CHECKIN", guestID, fmt.Sprintf("checked in with party of %d", guestCount))
	}
	s.notify(models.ActionCheckedIn, updated)
	return updated, nil
}

// ClearCheckIn resets the check-in state. Clearing an already-clear guest is
// a no-op, not an error. Gift and souvenir data survive.
func (s *GuestService) ClearCheckIn(ctx context.Context, accountID, guestID string) (*models.Guest, error) {
	guest, err := s.getGuest(ctx, accountID, guestID)
	if err != nil {
		return nil, err
	}
	if !guest.CheckedIn() {
		return guest, nil
	}

	if err := s.retryIdempotent(func() (int64, error) {
		return s.DB.ClearCheckIn(ctx, guestID, accountID)
	}); err != nil {
		return nil, err
	}

	updated, err := s.getGuest(ctx, accountID, guestID)
	if err != nil {
		return nil, err
	}

	if s.Logger != nil {
		s.Logger.LogGuest("CLEAR_CHECKIN", guestID, "check-in cleared")
	}
	s.notify(models.ActionCheckInCleared, updated)
	return updated, nil
}

// AssignGift records kado/angpao counts and a note. At least one count must
// be positive; setting both to zero is the clear-gift operation and must be
// requested through ClearGift.
func (s *GuestService) AssignGift(ctx context.Context, accountID, guestID string, kado, angpao int, note string) (*models.Guest, error) {
	if kado < 0 || angpao < 0 {
		return nil, fmt.Errorf("%w: gift counts must not be negative", ErrValidation)
	}
	if kado == 0 && angpao == 0 {
		return s.ClearGift(ctx, accountID, guestID)
	}

	if _, err := s.getGuest(ctx, accountID, guestID); err != nil {
		return nil, err
	}

	now := time.Now()
	if err := s.retryIdempotent(func() (int64, error) {
		return s.DB.SetGift(ctx, guestID, accountID, kado, angpao, note, &now)
	}); err != nil {
		return nil, err
	}

	updated, err := s.getGuest(ctx, accountID, guestID)
	if err != nil {
		return nil, err
	}

	if s.Logger != nil {
		s.Logger.LogGuest("GIFT", guestID, fmt.Sprintf("recorded kado=%d angpao=%d", kado, angpao))
	}
	s.notify(models.ActionGiftAssigned, updated)
	return updated, nil
}

// ClearGift resets the gift fields and timestamp.
func (s *GuestService) ClearGift(ctx context.Context, accountID, guestID string) (*models.Guest, error) {
	if _, err := s.getGuest(ctx, accountID, guestID); err != nil {
		return nil, err
	}

	if err := s.retryIdempotent(func() (int64, error) {
		return s.DB.SetGift(ctx, guestID, accountID, 0, 0, "", nil)
	}); err != nil {
		return nil, err
	}

	updated, err := s.getGuest(ctx, accountID, guestID)
	if err != nil {
		return nil, err
	}

	if s.Logger != nil {
		s.Logger.LogGuest("GIFT", guestID, "gift data cleared")
	}
	s.notify(models.ActionGiftCleared, updated)
	return updated, nil
}

// AssignSouvenir sets the souvenir count. Souvenirs are independent of the
// check-in state; walk-in flows hand them out without a check-in.
func (s *GuestService) AssignSouvenir(ctx context.Context, accountID, guestID string, count int) (*models.Guest, error) {
	if count < 0 {
		return nil, fmt.Errorf("%w: souvenir count must not be negative", ErrValidation)
	}

	if _, err := s.getGuest(ctx, accountID, guestID); err != nil {
		return nil, err
	}

	now := time.Now()
	if err := s.retryIdempotent(func() (int64, error) {
		return s.DB.SetSouvenir(ctx, guestID, accountID, count, now)
	}); err != nil {
		return nil, err
	}

	updated, err := s.getGuest(ctx, accountID, guestID)
	if err != nil {
		return nil, err
	}

	if s.Logger != nil {
		s.Logger.LogGuest("SOUVENIR", guestID, fmt.Sprintf("souvenir count set to %d", count))
	}
	s.notify(models.ActionSouvenirUpdated, updated)
	return updated, nil
}

// retryIdempotent runs a counter-set update and retries once when the row
// was not hit. These operations set absolute values, so a single retry is
// safe.
func (s *GuestService) retryIdempotent(update func() (int64, error)) error {
	for attempt := 0; attempt < 2; attempt++ {
		rows, err := update()
		if err != nil {
			return err
		}
		if rows > 0 {
			return nil
		}
	}
	return ErrConcurrentModification
}

// FindOrStageWalkIn applies the walk-in de-duplication protocol: normalize
// the phone, search the account pool by exact phone or case-insensitive
// name, and either return the matching guest or stage a candidate that
// requires explicit confirmation before creation.
func (s *GuestService) FindOrStageWalkIn(ctx context.Context, accountID string, sub models.WalkInSubmission) (*models.WalkInResult, error) {
	name := strings.TrimSpace(sub.Name)
	if name == "" && sub.Phone == "" {
		return nil, fmt.Errorf("%w: a name or phone number is required", ErrValidation)
	}

	account, err := s.DB.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if sub.Category != "" && !account.HasCategory(sub.Category) {
		return nil, fmt.Errorf("%w: category %q is not configured for this account", ErrValidation, sub.Category)
	}

	normalizedPhone := ""
	if sub.Phone != "" {
		normalizedPhone, err = utils.NormalizePhoneNumber(sub.Phone, s.PhoneRegion)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed phone number %q", ErrValidation, sub.Phone)
		}
	}

	existing, err := s.findDedupMatch(ctx, accountID, normalizedPhone, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &models.WalkInResult{MatchedExisting: true, Guest: existing}, nil
	}

	candidate := &models.WalkInCandidate{
		Name:            name,
		NormalizedPhone: normalizedPhone,
		Category:        sub.Category,
		Info:            sub.Info,
		Session:         sub.Session,
		Code:            sub.Code,
	}
	return &models.WalkInResult{NeedsConfirmation: true, Candidate: candidate}, nil
}

func (s *GuestService) findDedupMatch(ctx context.Context, accountID, normalizedPhone, name string) (*models.Guest, error) {
	if normalizedPhone != "" {
		guest, err := s.DB.FindByPhone(ctx, accountID, normalizedPhone)
		if err == nil {
			return guest, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	if name != "" {
		guest, err := s.DB.FindByName(ctx, accountID, utils.NormalizeName(name))
		if err == nil {
			return guest, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return nil, nil
}

// ConfirmCreateWalkIn creates the staged walk-in guest after the front desk
// confirmed it. The dedup search is re-run under an advisory lock so two
// simultaneous submissions for the same person cannot both insert.
func (s *GuestService) ConfirmCreateWalkIn(ctx context.Context, accountID string, candidate models.WalkInCandidate) (*models.Guest, error) {
	name := strings.TrimSpace(candidate.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}

	// The candidate arrives from the client, so the category is checked
	// again here; stage-time validation alone would let a crafted confirm
	// payload bypass the account's configured categories.
	account, err := s.DB.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if candidate.Category != "" && !account.HasCategory(candidate.Category) {
		return nil, fmt.Errorf("%w: category %q is not configured for this account", ErrValidation, candidate.Category)
	}

	dedupKey := "name:" + utils.NormalizeName(name)
	if candidate.NormalizedPhone != "" {
		dedupKey = "phone:" + candidate.NormalizedPhone
	}

	token := utils.GenerateID()
	if s.Lock != nil {
		acquired, err := s.Lock.Acquire(ctx, accountID, dedupKey, token)
		if err != nil {
			return nil, err
		}
		if !acquired {
			return nil, ErrLocked
		}
		defer func() {
			if err := s.Lock.Release(ctx, accountID, dedupKey, token); err != nil && s.Logger != nil {
				s.Logger.Error("LOCK", fmt.Sprintf("failed to release dedup lock %s: %v", dedupKey, err))
			}
		}()
	}

	// Re-run the dedup search under the lock: a racing submission may have
	// created the guest after the caller staged this candidate.
	existing, err := s.findDedupMatch(ctx, accountID, candidate.NormalizedPhone, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	code, err := s.resolveCode(ctx, accountID, candidate.Code)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	guest := &models.Guest{
		ID:        utils.GenerateID(),
		AccountID: accountID,
		Name:      name,
		Phone:     candidate.NormalizedPhone,
		Category:  candidate.Category,
		Info:      candidate.Info,
		Session:   candidate.Session,
		Code:      code,
		IsInvited: false,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.DB.InsertGuest(ctx, guest); err != nil {
		return nil, fmt.Errorf("failed to create walk-in guest: %w", err)
	}

	if s.Logger != nil {
		s.Logger.LogGuest("WALK_IN", guest.ID, fmt.Sprintf("walk-in guest %q created with code %s", guest.Name, guest.Code))
	}
	s.notify(models.ActionWalkInCreated, guest)
	return guest, nil
}

// SubmitWalkInGift handles a gift submission from the non-invited flow. A
// dedup match receives the gift immediately; a miss is staged for
// confirmation and nothing is written.
func (s *GuestService) SubmitWalkInGift(ctx context.Context, accountID string, sub models.WalkInSubmission, gift models.GiftRequest) (*models.WalkInResult, error) {
	result, err := s.FindOrStageWalkIn(ctx, accountID, sub)
	if err != nil {
		return nil, err
	}
	if !result.MatchedExisting {
		return result, nil
	}

	updated, err := s.AssignGift(ctx, accountID, result.Guest.ID, gift.KadoCount, gift.AngpaoCount, gift.GiftNote)
	if err != nil {
		return nil, err
	}
	result.Guest = updated
	return result, nil
}

// SubmitWalkInSouvenir handles a souvenir submission from the non-invited
// flow, with the same dedup-or-confirm semantics as gifts.
func (s *GuestService) SubmitWalkInSouvenir(ctx context.Context, accountID string, sub models.WalkInSubmission, count int) (*models.WalkInResult, error) {
	result, err := s.FindOrStageWalkIn(ctx, accountID, sub)
	if err != nil {
		return nil, err
	}
	if !result.MatchedExisting {
		return result, nil
	}

	updated, err := s.AssignSouvenir(ctx, accountID, result.Guest.ID, count)
	if err != nil {
		return nil, err
	}
	result.Guest = updated
	return result, nil
}

// DeleteGuest removes a guest within the account scope.
func (s *GuestService) DeleteGuest(ctx context.Context, accountID, guestID string) error {
	guest, err := s.getGuest(ctx, accountID, guestID)
	if err != nil {
		return err
	}

	rows, err := s.DB.DeleteGuest(ctx, guestID, accountID)
	if err != nil {
		return fmt.Errorf("failed to delete guest: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	if s.Logger != nil {
		s.Logger.LogGuest("DELETE", guestID, fmt.Sprintf("guest %q deleted", guest.Name))
	}
	s.notify(models.ActionGuestDeleted, guest)
	return nil
}
