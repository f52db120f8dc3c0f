package http

import (
	"encoding/json"
	"net/http"
)

// Machine-readable error kinds returned in error bodies.
const (
	KindSubscriptionNotFound = "SubscriptionNotFound"
	KindWebhookNotFound      = "WebhookNotFound"
	KindInvalidPayload       = "InvalidPayload"
	KindPayloadTooLarge      = "PayloadTooLarge"
	KindJobStoreUnavailable  = "JobStoreUnavailable"
	KindStoreUnavailable     = "StoreUnavailable"
	KindValidationFailed     = "ValidationFailed"
	KindInternal             = "Internal"
)

// WriteJSONError writes a JSON error response with the given kind, message
// and status code, formatted as {"kind": "...", "error": "message"}.
func WriteJSONError(w http.ResponseWriter, kind, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"kind":  kind,
		"error": message,
	})
}

// writeJSON writes a JSON response with the given status code and data.
// It sets the Content-Type header to application/json.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
