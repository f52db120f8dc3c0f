package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/hookline/hookline/internal/domain"
	"github.com/hookline/hookline/internal/service"
	"github.com/hookline/hookline/pkg/logger"
)

// IngestHandler receives webhooks on behalf of subscriptions.
type IngestHandler struct {
	service         *service.IngestService
	maxPayloadBytes int64
	logger          logger.Logger
}

// NewIngestHandler creates a new ingest handler. maxPayloadBytes caps the
// accepted request body size.
func NewIngestHandler(svc *service.IngestService, maxPayloadBytes int64, logger logger.Logger) *IngestHandler {
	return &IngestHandler{
		service:         svc,
		maxPayloadBytes: maxPayloadBytes,
		logger:          logger,
	}
}

func (h *IngestHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /ingest/{subscription_id}", h.handleIngest)
}

type ingestResponse struct {
	WebhookID string `json:"webhook_id"`
}

func (h *IngestHandler) handleIngest(w http.ResponseWriter, r *http.Request) {
	subscriptionID := r.PathValue("subscription_id")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxPayloadBytes))
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			WriteJSONError(w, KindPayloadTooLarge,
				fmt.Sprintf("payload exceeds %d bytes", h.maxPayloadBytes),
				http.StatusRequestEntityTooLarge)
			return
		}
		WriteJSONError(w, KindInvalidPayload, "failed to read request body", http.StatusBadRequest)
		return
	}

	eventType := optionalHeader(r, "X-Event-Type")
	signature := optionalHeader(r, "X-Signature")

	webhookID, err := h.service.Ingest(r.Context(), subscriptionID, body, eventType, signature)
	if err != nil {
		switch {
		case domain.IsNotFound(err):
			WriteJSONError(w, KindSubscriptionNotFound, "subscription not found", http.StatusNotFound)
		case isValidationError(err):
			WriteJSONError(w, KindInvalidPayload, "payload must be valid JSON", http.StatusBadRequest)
		case errors.Is(err, service.ErrJobStoreUnavailable):
			h.logger.WithField("subscription_id", subscriptionID).Error(fmt.Sprintf("Failed to accept webhook: %v", err))
			WriteJSONError(w, KindJobStoreUnavailable, "failed to queue webhook", http.StatusServiceUnavailable)
		default:
			h.logger.WithField("subscription_id", subscriptionID).Error(fmt.Sprintf("Failed to accept webhook: %v", err))
			WriteJSONError(w, KindStoreUnavailable, "failed to resolve subscription", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusAccepted, ingestResponse{WebhookID: webhookID})
}

func optionalHeader(r *http.Request, name string) *string {
	if v := r.Header.Get(name); v != "" {
		return &v
	}
	return nil
}

func isValidationError(err error) bool {
	var validationErr domain.ValidationError
	return errors.As(err, &validationErr)
}
