package handlers

import (
	"errors"
	"io"
	"log"
	"net/http"

	"dukalink-payment-api/models"
	"dukalink-payment-api/queue"
	"dukalink-payment-api/services/session"
	"dukalink-payment-api/services/webhook"
	"dukalink-payment-api/types"
	"dukalink-payment-api/utils"
)

const maxWebhookBody = 1 << 20 // 1 MiB

// WebhookHandler receives Kwelipay event deliveries. Nothing is processed
// until the signature over the raw body verifies.
type WebhookHandler struct {
	verifier  *webhook.Verifier
	projector *session.Projector
	queue     *queue.Queue
}

func NewWebhookHandler(v *webhook.Verifier, p *session.Projector, q *queue.Queue) *WebhookHandler {
	return &WebhookHandler{
		verifier:  v,
		projector: p,
		queue:     q,
	}
}

// HandleEvent is the single inbound webhook endpoint.
func (h *WebhookHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	rawBody, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		log.Printf("Error reading webhook body: %v", err)
		utils.SendErrorResponse(w, http.StatusBadRequest, "Unable to read request body")
		return
	}

	signature := r.Header.Get(webhook.SignatureHeader)
	if err := h.verifier.Verify(rawBody, signature); err != nil {
		if errors.Is(err, types.ErrMissingSignature) {
			log.Printf("Webhook delivery without signature from %s", r.RemoteAddr)
			utils.SendErrorResponse(w, http.StatusBadRequest, "Missing signature header")
			return
		}
		log.Printf("Webhook signature mismatch from %s", r.RemoteAddr)
		utils.SendErrorResponse(w, http.StatusUnauthorized, "Invalid signature")
		return
	}

	event, err := h.verifier.ParseEvent(rawBody)
	if err != nil {
		log.Printf("Error parsing webhook event: %v", err)
		utils.SendErrorResponse(w, http.StatusBadRequest, "Malformed event payload")
		return
	}

	log.Printf("Received webhook event %s for charge %s (status %s)",
		event.Event, event.Data.ID, event.Data.Status)

	// Acknowledge before projecting so slow storage never causes Kwelipay to
	// redeliver; projection is idempotent anyway.
	utils.SendSuccessResponse(w, models.APIResponse{
		Status:  "success",
		Message: "Event received",
	})

	go h.projectEvent(event)
}

func (h *WebhookHandler) projectEvent(event *models.WebhookEvent) {
	ctx, cancel := contextWithTimeout()
	defer cancel()

	if _, err := h.projector.ApplyEvent(ctx, event); err != nil {
		if err == session.ErrSessionNotFound {
			// No local session yet: ask the worker to fetch the charge and
			// create one, so webhook-first deliveries are not lost.
			if err := h.queue.Enqueue(ctx, queue.JobTypeCreateSession, map[string]interface{}{
				"charge_id": event.Data.ID,
			}); err != nil {
				log.Printf("Error enqueueing session creation for charge %s: %v", event.Data.ID, err)
			}
			return
		}
		log.Printf("Error projecting webhook event for charge %s: %v", event.Data.ID, err)
	}
}
