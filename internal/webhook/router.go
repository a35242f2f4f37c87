// internal/webhook/router.go
package webhook

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/go-github/v62/github"
)

// Result is the handler-specific outcome payload echoed back to the sender.
type Result map[string]any

// Processor applies a verified, parsed webhook event to the local store.
type Processor interface {
	Process(ctx context.Context, event any) (Result, error)
}

// handledEvents is the set of event types we parse and dispatch. Anything
// else is acknowledged as ignored so new remote event types never break the
// endpoint.
var handledEvents = map[string]bool{
	"installation":              true,
	"installation_repositories": true,
	"repository":                true,
	"push":                      true,
	"issues":                    true,
	"pull_request":              true,
	"ping":                      true,
}

// Router verifies inbound webhook requests, classifies them by event type,
// and dispatches them to the Processor. Signature mismatch is the only hard
// reject path; unknown event types degrade to an ignored acknowledgment.
type Router struct {
	secret    []byte
	processor Processor
	logger    *slog.Logger
}

// NewRouter creates a webhook Router with the shared HMAC secret.
func NewRouter(secret string, processor Processor, logger *slog.Logger) *Router {
	return &Router{
		secret:    []byte(secret),
		processor: processor,
		logger:    logger,
	}
}

func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	eventType := github.WebHookType(r)
	deliveryID := github.DeliveryID(r)

	// ValidatePayload recomputes the HMAC-SHA256 over the raw body and
	// compares it in constant time against the signature header.
	payload, err := github.ValidatePayload(r, rt.secret)
	if err != nil {
		rt.logger.Error("Invalid webhook signature", "delivery_id", deliveryID, "error", err)
		respondWithJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid signature"})
		return
	}

	logger := rt.logger.With("event", eventType, "delivery_id", deliveryID)

	if !handledEvents[eventType] {
		logger.Info("Ignoring unhandled event type")
		respondWithJSON(w, http.StatusOK, map[string]any{"status": "ignored", "event": eventType})
		return
	}

	event, err := github.ParseWebHook(eventType, payload)
	if err != nil {
		logger.Error("Malformed webhook payload", "error", err)
		respondWithJSON(w, http.StatusBadRequest, map[string]any{
			"status": "error", "event": eventType, "error": "malformed payload",
		})
		return
	}

	result, err := rt.processor.Process(r.Context(), event)
	if err != nil {
		logger.Error("Webhook processing failed", "error", err)
		respondWithJSON(w, http.StatusInternalServerError, map[string]any{
			"status": "error", "event": eventType, "error": err.Error(),
		})
		return
	}

	logger.Info("Webhook processed", "result", result["status"])
	respondWithJSON(w, http.StatusOK, map[string]any{
		"status": "success", "event": eventType, "result": result,
	})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
