package prize_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-guestlist/internal/auth"
	"ms-guestlist/internal/doorprize"
	"ms-guestlist/internal/guests"
	"ms-guestlist/internal/logger"
	"ms-guestlist/internal/models"
	"ms-guestlist/internal/utils"
)

type Handler struct {
	DoorprizeService *doorprize.DoorprizeService
	Logger           *logger.Logger
}

func NewHandler(service *doorprize.DoorprizeService, log *logger.Logger) *Handler {
	return &Handler{DoorprizeService: service, Logger: log}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, resp utils.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, doorprize.ErrEmptyPool):
		h.writeJSON(w, http.StatusConflict, utils.ErrorResponse("no eligible guests", err.Error()))
	case errors.Is(err, doorprize.ErrPrizeNotFound), errors.Is(err, guests.ErrNotFound):
		h.writeJSON(w, http.StatusNotFound, utils.ErrorResponse("not found", err.Error()))
	case errors.Is(err, doorprize.ErrPrizeCompleted):
		h.writeJSON(w, http.StatusConflict, utils.ErrorResponse("prize already completed", err.Error()))
	case errors.Is(err, doorprize.ErrWinnerNotEligible):
		h.writeJSON(w, http.StatusUnprocessableEntity, utils.ErrorResponse("winner not eligible", err.Error()))
	default:
		if h.Logger != nil {
			h.Logger.Error("API", "internal error: "+err.Error())
		}
		h.writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("internal error", "unexpected error"))
	}
}

// Draw selects a random winner from the checked-in pool. Nothing is
// persisted until the caller records the winner on a prize.
// POST /api/v1/doorprize/draw
func (h *Handler) Draw(w http.ResponseWriter, r *http.Request) {
	accountID := auth.AccountID(r.Context())

	winner, err := h.DoorprizeService.Draw(r.Context(), accountID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("winner drawn", winner))
}

// CreatePrize registers a new active prize.
// POST /api/v1/prizes
func (h *Handler) CreatePrize(w http.ResponseWriter, r *http.Request) {
	accountID := auth.AccountID(r.Context())

	var req models.PrizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}

	prize, err := h.DoorprizeService.CreatePrize(r.Context(), accountID, req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, utils.SuccessResponse("prize created", prize))
}

// ListPrizes lists the account's prizes.
// GET /api/v1/prizes
func (h *Handler) ListPrizes(w http.ResponseWriter, r *http.Request) {
	accountID := auth.AccountID(r.Context())

	list, err := h.DoorprizeService.ListPrizes(r.Context(), accountID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse(fmt.Sprintf("%d prizes", len(list)), list))
}

// GetPrize fetches one prize.
// GET /api/v1/prizes/{prizeID}
func (h *Handler) GetPrize(w http.ResponseWriter, r *http.Request) {
	accountID := auth.AccountID(r.Context())
	prizeID := chi.URLParam(r, "prizeID")

	prize, err := h.DoorprizeService.GetPrize(r.Context(), accountID, prizeID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("prize found", prize))
}

type recordWinnerRequest struct {
	GuestID string `json:"guest_id"`
}

// RecordWinner permanently records a drawn winner on an active prize.
// POST /api/v1/prizes/{prizeID}/winner
func (h *Handler) RecordWinner(w http.ResponseWriter, r *http.Request) {
	accountID := auth.AccountID(r.Context())
	prizeID := chi.URLParam(r, "prizeID")

	var req recordWinnerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}

	prize, err := h.DoorprizeService.RecordPrizeWinner(r.Context(), accountID, prizeID, req.GuestID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("winner recorded", prize))
}
