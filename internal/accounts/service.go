package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ms-guestlist/internal/logger"
	"ms-guestlist/internal/models"
	"ms-guestlist/internal/utils"
)

// ErrNotFound is returned when no account exists for the given id.
var ErrNotFound = errors.New("account not found")

// defaultCategories seeds new accounts; admins reconfigure them per wedding.
var defaultCategories = []string{"Regular", "VIP"}

// DBLayer is the tenant store contract.
type DBLayer interface {
	CreateAccount(ctx context.Context, account *models.Account) error
	GetAccount(ctx context.Context, id string) (*models.Account, error)
	UpdateAccount(ctx context.Context, account *models.Account) (int64, error)
	DeleteCascade(ctx context.Context, accountID string) error
}

// AccountService manages account records, the root of all isolation.
type AccountService struct {
	DB     DBLayer
	Logger *logger.Logger
}

func NewAccountService(db DBLayer, log *logger.Logger) *AccountService {
	return &AccountService{DB: db, Logger: log}
}

// CreateAccount provisions a tenant for one wedding.
func (s *AccountService) CreateAccount(ctx context.Context, req models.AccountRequest) (*models.Account, error) {
	if req.Title == "" {
		return nil, errors.New("account title is required")
	}

	categories := req.GuestCategories
	if len(categories) == 0 {
		categories = append([]string{}, defaultCategories...)
	}

	now := time.Now()
	account := &models.Account{
		ID:              utils.GenerateID(),
		Title:           req.Title,
		EventDateTime:   req.EventDateTime,
		Location:        req.Location,
		WelcomeText:     req.WelcomeText,
		YoutubeURL:      req.YoutubeURL,
		GuestCategories: categories,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.DB.CreateAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	if s.Logger != nil {
		s.Logger.Info("ACCOUNT", fmt.Sprintf("account %s created for %q", account.ID, account.Title))
	}
	return account, nil
}

// GetAccount returns the account for the resolved scope.
func (s *AccountService) GetAccount(ctx context.Context, accountID string) (*models.Account, error) {
	return s.DB.GetAccount(ctx, accountID)
}

// UpdateAccount applies admin edits to the account profile and categories.
func (s *AccountService) UpdateAccount(ctx context.Context, accountID string, req models.AccountRequest) (*models.Account, error) {
	account, err := s.DB.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if req.Title != "" {
		account.Title = req.Title
	}
	if !req.EventDateTime.IsZero() {
		account.EventDateTime = req.EventDateTime
	}
	if req.Location != "" {
		account.Location = req.Location
	}
	if req.WelcomeText != "" {
		account.WelcomeText = req.WelcomeText
	}
	if req.YoutubeURL != "" {
		account.YoutubeURL = req.YoutubeURL
	}
	if len(req.GuestCategories) > 0 {
		account.GuestCategories = req.GuestCategories
	}
	account.UpdatedAt = time.Now()

	rows, err := s.DB.UpdateAccount(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("failed to update account: %w", err)
	}
	if rows == 0 {
		return nil, ErrNotFound
	}

	return account, nil
}

// DeleteAccount removes the account and cascades over its guests and
// prizes. Nothing scoped to the account survives.
func (s *AccountService) DeleteAccount(ctx context.Context, accountID string) error {
	if _, err := s.DB.GetAccount(ctx, accountID); err != nil {
		return err
	}

	if err := s.DB.DeleteCascade(ctx, accountID); err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}

	if s.Logger != nil {
		s.Logger.Warn("ACCOUNT", fmt.Sprintf("account %s deleted with all guests and prizes", accountID))
	}
	return nil
}
