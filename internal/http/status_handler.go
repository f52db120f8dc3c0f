package http

import (
	"net/http"

	"github.com/hookline/hookline/internal/domain"
	"github.com/hookline/hookline/internal/service"
	"github.com/hookline/hookline/pkg/logger"
)

// StatusHandler exposes delivery history for webhooks.
type StatusHandler struct {
	service *service.StatusService
	logger  logger.Logger
}

// NewStatusHandler creates a new status handler.
func NewStatusHandler(svc *service.StatusService, logger logger.Logger) *StatusHandler {
	return &StatusHandler{
		service: svc,
		logger:  logger,
	}
}

func (h *StatusHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /status/{webhook_id}", h.handleStatus)
}

func (h *StatusHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	webhookID := r.PathValue("webhook_id")

	status, err := h.service.Status(r.Context(), webhookID)
	if err != nil {
		if domain.IsNotFound(err) {
			WriteJSONError(w, KindWebhookNotFound, "no delivery history for webhook", http.StatusNotFound)
			return
		}
		h.logger.WithField("webhook_id", webhookID).Error("Failed to read webhook status: " + err.Error())
		WriteJSONError(w, KindInternal, "failed to read webhook status", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, status)
}
