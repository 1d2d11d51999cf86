package models

// WebhookEventData is the charge snapshot inside a Kwelipay event envelope.
type WebhookEventData struct {
    ID         string       `json:"id"`
    Status     ChargeStatus `json:"status"`
    NextAction *NextAction  `json:"next_action,omitempty"`
    Reference  string       `json:"reference,omitempty"`
    Amount     int64        `json:"amount,omitempty"`
    Currency   string       `json:"currency,omitempty"`
}

// WebhookEvent is the envelope Kwelipay posts to the webhook endpoint. The
// body must be signature-verified before any field here is trusted.
type WebhookEvent struct {
    Event string           `json:"event"`
    Data  WebhookEventData `json:"data"`
}
