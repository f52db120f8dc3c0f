package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/hookline/hookline/internal/domain"
	"github.com/hookline/hookline/internal/service"
	"github.com/hookline/hookline/pkg/logger"
)

// defaultAttemptsLimit bounds the attempts listing when no limit is given.
const defaultAttemptsLimit = 50

// SubscriptionHandler manages webhook subscriptions.
type SubscriptionHandler struct {
	service *service.SubscriptionService
	logger  logger.Logger
}

// NewSubscriptionHandler creates a new subscription handler.
func NewSubscriptionHandler(svc *service.SubscriptionService, logger logger.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		service: svc,
		logger:  logger,
	}
}

func (h *SubscriptionHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /subscriptions", h.handleCreate)
	mux.HandleFunc("GET /subscriptions", h.handleList)
	mux.HandleFunc("GET /subscriptions/{id}", h.handleGet)
	mux.HandleFunc("PATCH /subscriptions/{id}", h.handleUpdate)
	mux.HandleFunc("DELETE /subscriptions/{id}", h.handleDelete)
	mux.HandleFunc("GET /subscriptions/{id}/attempts", h.handleAttempts)
}

func (h *SubscriptionHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var input service.CreateSubscriptionInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		WriteJSONError(w, KindInvalidPayload, "invalid request body", http.StatusBadRequest)
		return
	}

	sub, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.writeServiceError(w, err, "Failed to create subscription")
		return
	}

	writeJSON(w, http.StatusCreated, sub)
}

func (h *SubscriptionHandler) handleList(w http.ResponseWriter, r *http.Request) {
	subs, err := h.service.List(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "Failed to list subscriptions")
		return
	}

	if subs == nil {
		subs = []*domain.Subscription{}
	}
	writeJSON(w, http.StatusOK, subs)
}

func (h *SubscriptionHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	sub, err := h.service.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, err, "Failed to get subscription")
		return
	}

	writeJSON(w, http.StatusOK, sub)
}

func (h *SubscriptionHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var input service.UpdateSubscriptionInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		WriteJSONError(w, KindInvalidPayload, "invalid request body", http.StatusBadRequest)
		return
	}

	sub, err := h.service.Update(r.Context(), r.PathValue("id"), input)
	if err != nil {
		h.writeServiceError(w, err, "Failed to update subscription")
		return
	}

	writeJSON(w, http.StatusOK, sub)
}

func (h *SubscriptionHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.writeServiceError(w, err, "Failed to delete subscription")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (h *SubscriptionHandler) handleAttempts(w http.ResponseWriter, r *http.Request) {
	limit := defaultAttemptsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			WriteJSONError(w, KindValidationFailed, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	attempts, err := h.service.Attempts(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		h.writeServiceError(w, err, "Failed to list attempts")
		return
	}

	if attempts == nil {
		attempts = []*domain.DeliveryLog{}
	}
	writeJSON(w, http.StatusOK, attempts)
}

func (h *SubscriptionHandler) writeServiceError(w http.ResponseWriter, err error, logMsg string) {
	switch {
	case domain.IsNotFound(err):
		WriteJSONError(w, KindSubscriptionNotFound, "subscription not found", http.StatusNotFound)
	case isValidationError(err):
		WriteJSONError(w, KindValidationFailed, err.Error(), http.StatusBadRequest)
	default:
		h.logger.WithField("error", err.Error()).Error(logMsg)
		WriteJSONError(w, KindInternal, logMsg, http.StatusInternalServerError)
	}
}
