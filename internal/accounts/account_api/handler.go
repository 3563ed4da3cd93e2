package account_api

import (
	"encoding/json"
	"errors"
	"net/http"

	"ms-guestlist/internal/accounts"
	"ms-guestlist/internal/auth"
	"ms-guestlist/internal/logger"
	"ms-guestlist/internal/models"
	"ms-guestlist/internal/utils"
)

type Handler struct {
	AccountService *accounts.AccountService
	TokenIssuer    *auth.TokenIssuer
	Logger         *logger.Logger
}

func NewHandler(service *accounts.AccountService, issuer *auth.TokenIssuer, log *logger.Logger) *Handler {
	return &Handler{AccountService: service, TokenIssuer: issuer, Logger: log}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, resp utils.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, accounts.ErrNotFound):
		h.writeJSON(w, http.StatusNotFound, utils.ErrorResponse("account not found", err.Error()))
	default:
		if h.Logger != nil {
			h.Logger.Error("API", "internal error: "+err.Error())
		}
		h.writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("internal error", "unexpected error"))
	}
}

type provisionResponse struct {
	Account *models.Account `json:"account"`
	Token   string          `json:"token"`
}

// ProvisionAccount creates a tenant and issues its first session token.
// This endpoint sits outside the auth middleware; the surrounding product's
// signup flow is expected to guard it.
// POST /api/v1/accounts
func (h *Handler) ProvisionAccount(w http.ResponseWriter, r *http.Request) {
	var req models.AccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}

	account, err := h.AccountService.CreateAccount(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	token, err := h.TokenIssuer.IssueToken(account.ID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, utils.SuccessResponse("account provisioned", provisionResponse{
		Account: account,
		Token:   token,
	}))
}

// GetAccount returns the caller's own account.
// GET /api/v1/account
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	accountID := auth.AccountID(r.Context())

	account, err := h.AccountService.GetAccount(r.Context(), accountID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("account found", account))
}

// UpdateAccount applies admin edits to the caller's own account.
// PUT /api/v1/account
func (h *Handler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	accountID := auth.AccountID(r.Context())

	var req models.AccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}

	account, err := h.AccountService.UpdateAccount(r.Context(), accountID, req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("account updated", account))
}

// DeleteAccount removes the caller's account and cascades over all its
// guests and prizes.
// DELETE /api/v1/account
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	accountID := auth.AccountID(r.Context())

	if err := h.AccountService.DeleteAccount(r.Context(), accountID); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("account deleted", nil))
}
