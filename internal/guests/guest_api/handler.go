package guest_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-guestlist/internal/auth"
	"ms-guestlist/internal/guests"
	"ms-guestlist/internal/logger"
	"ms-guestlist/internal/models"
	"ms-guestlist/internal/sse"
	"ms-guestlist/internal/utils"
)

type Handler struct {
	GuestService *guests.GuestService
	Events       *sse.GuestEventEmitter
	Logger       *logger.Logger
}

func NewHandler(service *guests.GuestService, events *sse.GuestEventEmitter, log *logger.Logger) *Handler {
	return &Handler{GuestService: service, Events: events, Logger: log}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, resp utils.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// writeError maps engine errors to HTTP statuses. Cross-account violations
// were already flattened to not-found by the service.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, guests.ErrNotFound):
		h.writeJSON(w, http.StatusNotFound, utils.ErrorResponse("guest not found", err.Error()))
	case errors.Is(err, guests.ErrValidation):
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("validation failed", err.Error()))
	case errors.Is(err, guests.ErrAlreadyCheckedIn):
		h.writeJSON(w, http.StatusConflict, utils.ErrorResponse("guest already checked in", err.Error()))
	case errors.Is(err, guests.ErrDuplicateCode):
		h.writeJSON(w, http.StatusConflict, utils.ErrorResponse("invitation code already in use", err.Error()))
	case errors.Is(err, guests.ErrLocked):
		h.writeJSON(w, http.StatusConflict, utils.ErrorResponse("submission already in progress", err.Error()))
	case errors.Is(err, guests.ErrConcurrentModification):
		h.writeJSON(w, http.StatusConflict, utils.ErrorResponse("concurrent modification, please retry", err.Error()))
	default:
		if h.Logger != nil {
			h.Logger.Error("API", "internal error: "+err.Error())
		}
		h.writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("internal error", "unexpected error"))
	}
}

// RegisterGuest creates a pre-invited guest.
// POST /api/v1/guests
func (h *Handler) RegisterGuest(w http.ResponseWriter, r *http.Request) {
	accountID := auth.AccountID(r.Context())

	var req models.RegisterGuestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}

	guest, err := h.GuestService.RegisterInvited(r.Context(), accountID, req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, utils.SuccessResponse("guest registered", guest))
}

// ListGuests lists the account's guests, optionally filtered.
// GET /api/v1/guests?search=
func (h *Handler) ListGuests(w http.ResponseWriter, r *http.Request) {
	accountID := auth.AccountID(r.Context())

	list, err := h.GuestService.ListGuests(r.Context(), accountID, r.URL.Query().Get("search"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse(fmt.Sprintf("%d guests", len(list)), list))
}

// ListCheckedIn lists the checked-in guests, the reception and doorprize
// view.
// GET /api/v1/guests/checked-in?search=
func (h *Handler) ListCheckedIn(w http.ResponseWriter, r *http.Request) {
	accountID := auth.AccountID(r.Context())

	list, err := h.GuestService.ListCheckedIn(r.Context(), accountID, r.URL.Query().Get("search"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse(fmt.Sprintf("%d guests checked in", len(list)), list))
}

// GetGuest fetches one guest.
// GET /api/v1/guests/{guestID}
func (h *Handler) GetGuest(w http.ResponseWriter, r *http.Request) {
	accountID := auth.AccountID(r.Context())
	guestID := chi.URLParam(r, "guestID")

	guest, err := h.GuestService.GetGuest(r.Context(), accountID, guestID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("guest found", guest))
}

// DeleteGuest removes one guest.
// DELETE /api/v1/guests/{guestID}
func (h *Handler) DeleteGuest(w http.ResponseWriter, r *http.Request) {
	accountID := auth.AccountID(r.Context())
	guestID := chi.URLParam(r, "guestID")

	if err := h.GuestService.DeleteGuest(r.Context(), accountID, guestID); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("guest deleted", nil))
}

// CheckIn marks a guest present.
// POST /api/v1/guests/{guestID}/check-in
func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	accountID := auth.AccountID(r.Context())
	guestID := chi.URLParam(r, "guestID")

	var req models.CheckInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}

	guest, err := h.GuestService.CheckIn(r.Context(), accountID, guestID, req.GuestCount, req.ConfirmOverwrite)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("guest checked in", guest))
}

// ClearCheckIn resets a guest's check-in state.
// DELETE /api/v1/guests/{guestID}/check-in
func (h *Handler) ClearCheckIn(w http.ResponseWriter, r *http.Request) {
	accountID := auth.AccountID(r.Context())
	guestID := chi.URLParam(r, "guestID")

	guest, err := h.GuestService.ClearCheckIn(r.Context(), accountID, guestID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("check-in cleared", guest))
}

// AssignGift records gift counts for a guest.
// POST /api/v1/guests/{guestID}/gift
func (h *Handler) AssignGift(w http.ResponseWriter, r *http.Request) {
	accountID := auth.AccountID(r.Context())
	guestID := chi.URLParam(r, "guestID")

	var req models.GiftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}

	guest, err := h.GuestService.AssignGift(r.Context(), accountID, guestID, req.KadoCount, req.AngpaoCount, req.GiftNote)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("gift recorded", guest))
}

// ClearGift resets a guest's gift data.
// DELETE /api/v1/guests/{guestID}/gift
func (h *Handler) ClearGift(w http.ResponseWriter, r *http.Request) {
	accountID := auth.AccountID(r.Context())
	guestID := chi.URLParam(r, "guestID")

	guest, err := h.GuestService.ClearGift(r.Context(), accountID, guestID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("gift cleared", guest))
}

// AssignSouvenir sets a guest's souvenir count.
// POST /api/v1/guests/{guestID}/souvenir
func (h *Handler) AssignSouvenir(w http.ResponseWriter, r *http.Request) {
	accountID := auth.AccountID(r.Context())
	guestID := chi.URLParam(r, "guestID")

	var req models.SouvenirRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}

	guest, err := h.GuestService.AssignSouvenir(r.Context(), accountID, guestID, req.SouvenirCount)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("souvenir recorded", guest))
}

// FindOrStageWalkIn runs the walk-in dedup protocol without writing.
// POST /api/v1/walk-ins
func (h *Handler) FindOrStageWalkIn(w http.ResponseWriter, r *http.Request) {
	accountID := auth.AccountID(r.Context())

	var sub models.WalkInSubmission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}

	result, err := h.GuestService.FindOrStageWalkIn(r.Context(), accountID, sub)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if result.NeedsConfirmation {
		h.writeJSON(w, http.StatusConflict, utils.SuccessResponse("guest not found, confirmation required to create", result))
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("matched existing guest", result))
}

// ConfirmCreateWalkIn creates the staged walk-in after explicit
// confirmation.
// POST /api/v1/walk-ins/confirm
func (h *Handler) ConfirmCreateWalkIn(w http.ResponseWriter, r *http.Request) {
	accountID := auth.AccountID(r.Context())

	var candidate models.WalkInCandidate
	if err := json.NewDecoder(r.Body).Decode(&candidate); err != nil {
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}

	guest, err := h.GuestService.ConfirmCreateWalkIn(r.Context(), accountID, candidate)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, utils.SuccessResponse("walk-in guest created", guest))
}

type walkInGiftRequest struct {
	models.WalkInSubmission
	models.GiftRequest
}

// SubmitWalkInGift records a gift for a walk-in, deduplicating against the
// existing pool first.
// POST /api/v1/walk-ins/gift
func (h *Handler) SubmitWalkInGift(w http.ResponseWriter, r *http.Request) {
	accountID := auth.AccountID(r.Context())

	var req walkInGiftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}

	result, err := h.GuestService.SubmitWalkInGift(r.Context(), accountID, req.WalkInSubmission, req.GiftRequest)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if result.NeedsConfirmation {
		h.writeJSON(w, http.StatusConflict, utils.SuccessResponse("guest not found, confirmation required to create", result))
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("gift recorded for existing guest", result))
}

type walkInSouvenirRequest struct {
	models.WalkInSubmission
	SouvenirCount int `json:"souvenir_count"`
}

// SubmitWalkInSouvenir records a souvenir for a walk-in with the same dedup
// semantics as gifts.
// POST /api/v1/walk-ins/souvenir
func (h *Handler) SubmitWalkInSouvenir(w http.ResponseWriter, r *http.Request) {
	accountID := auth.AccountID(r.Context())

	var req walkInSouvenirRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}

	result, err := h.GuestService.SubmitWalkInSouvenir(r.Context(), accountID, req.WalkInSubmission, req.SouvenirCount)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if result.NeedsConfirmation {
		h.writeJSON(w, http.StatusConflict, utils.SuccessResponse("guest not found, confirmation required to create", result))
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("souvenir recorded for existing guest", result))
}

// StreamGuestEvents streams guest changes for the caller's account over SSE.
// GET /api/v1/events/guests
func (h *Handler) StreamGuestEvents(w http.ResponseWriter, r *http.Request) {
	if h.Events == nil {
		http.Error(w, "event streaming not enabled", http.StatusNotImplemented)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	accountID := auth.AccountID(r.Context())

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	events := h.Events.Subscribe(r.Context(), accountID)
	for {
		select {
		case <-r.Context().Done():
			return
		case change, open := <-events:
			if !open {
				return
			}
			payload, err := json.Marshal(change)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", change.Action, payload)
			flusher.Flush()
		}
	}
}
