package webhook

import (
    "crypto/hmac"
    "crypto/sha256"
    "encoding/hex"
    "encoding/json"
    "fmt"

    "dukalink-payment-api/models"
    "dukalink-payment-api/types"
)

// SignatureHeader is the header Kwelipay signs every event delivery with:
// hex(HMAC-SHA256(body, secret hash)).
const SignatureHeader = "X-Kwelipay-Signature"

// Verifier authenticates inbound event deliveries before any field of the
// payload is trusted.
type Verifier struct {
    secretHash []byte
}

func NewVerifier(secretHash string) *Verifier {
    return &Verifier{secretHash: []byte(secretHash)}
}

// Verify checks the signature over the raw body. A missing header and a
// mismatched signature are distinct failures so callers can tell an
// unconfigured sender from a tampered payload.
func (v *Verifier) Verify(rawBody []byte, signature string) error {
    if signature == "" {
        return &types.WebhookVerificationError{Reason: types.ErrMissingSignature}
    }

    mac := hmac.New(sha256.New, v.secretHash)
    mac.Write(rawBody)
    expected := hex.EncodeToString(mac.Sum(nil))

    if !hmac.Equal([]byte(expected), []byte(signature)) {
        return &types.WebhookVerificationError{Reason: types.ErrInvalidSignature}
    }

    return nil
}

// ParseEvent decodes a verified body into the event envelope, rejecting
// envelopes without an event type or a charge id.
func (v *Verifier) ParseEvent(rawBody []byte) (*models.WebhookEvent, error) {
    var event models.WebhookEvent
    if err := json.Unmarshal(rawBody, &event); err != nil {
        return nil, fmt.Errorf("error decoding webhook payload: %v", err)
    }

    if event.Event == "" {
        return nil, &types.WebhookVerificationError{Reason: fmt.Errorf("missing event type")}
    }
    if event.Data.ID == "" {
        return nil, &types.WebhookVerificationError{Reason: fmt.Errorf("missing charge id in event data")}
    }

    return &event, nil
}
