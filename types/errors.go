package types

import (
    "errors"
    "fmt"
    "net/http"
)

var (
    ErrInvalidKey        = errors.New("encryption key must be a base64-encoded 256-bit value")
    ErrMissingSignature  = errors.New("webhook signature header missing")
    ErrInvalidSignature  = errors.New("webhook signature mismatch")
    ErrNotImplemented    = errors.New("operation not supported by this integration")
)

// ValidationError reports malformed local input. It is raised before any
// network attempt and never crosses the wire.
type ValidationError struct {
    Field   string
    Message string
}

func (e *ValidationError) Error() string {
    return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func NewValidationError(field, message string) *ValidationError {
    return &ValidationError{Field: field, Message: message}
}

// EncryptionError wraps a local key, nonce or card-data problem. Cause is nil
// for validation-style failures and non-nil when the cipher itself failed.
type EncryptionError struct {
    Field   string
    Message string
    Cause   error
}

func (e *EncryptionError) Error() string {
    if e.Cause != nil {
        return fmt.Sprintf("encryption failed for %s: %v", e.Field, e.Cause)
    }
    return fmt.Sprintf("invalid card data: %s %s", e.Field, e.Message)
}

func (e *EncryptionError) Unwrap() error {
    return e.Cause
}

// RateLimitError is raised by the local rate gate before any request is sent.
type RateLimitError struct {
    Key    string
    Limit  int
    Window string
}

func (e *RateLimitError) Error() string {
    return fmt.Sprintf("rate limit of %d requests per %s exceeded for key %s", e.Limit, e.Window, e.Key)
}

// APIError carries the remote processor's rejection with enough structure for
// callers to tell retriable infrastructure failures from permanent
// business-rule rejections without parsing the raw message.
type APIError struct {
    StatusCode int
    Code       string
    Type       string
    Message    string
    RawBody    string
}

func (e *APIError) Error() string {
    if e.Code != "" {
        return fmt.Sprintf("kwelipay error %d (%s): %s", e.StatusCode, e.Code, e.Message)
    }
    return fmt.Sprintf("kwelipay error %d: %s", e.StatusCode, e.Message)
}

// Retriable reports whether the failure is transient. Only these statuses are
// retried by the retry policy; everything else surfaces immediately.
func (e *APIError) Retriable() bool {
    switch {
    case e.StatusCode >= 500:
        return true
    case e.StatusCode == http.StatusTooManyRequests:
        return true
    case e.StatusCode == http.StatusRequestTimeout:
        return true
    default:
        return false
    }
}

// ClientError reports a permanent rejection of the request itself (4xx other
// than the transient 408/429).
func (e *APIError) ClientError() bool {
    return e.StatusCode >= 400 && e.StatusCode < 500 && !e.Retriable()
}

// FriendlyMessage maps the structured error onto a message safe to show an end
// user, without string-parsing the provider's raw response.
func (e *APIError) FriendlyMessage() string {
    switch {
    case e.Retriable():
        return "The payment provider is temporarily unavailable. Please try again shortly."
    case e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden:
        return "The payment could not be authorized. Please contact support."
    case e.ClientError():
        return "The payment was declined. Please check your payment details and try again."
    default:
        return "Something went wrong while processing your payment. Please contact support."
    }
}

// IsRetriable reports whether err (anywhere in its chain) is a transient
// remote failure worth retrying.
func IsRetriable(err error) bool {
    var apiErr *APIError
    if errors.As(err, &apiErr) {
        return apiErr.Retriable()
    }
    return false
}

// WebhookVerificationError distinguishes missing-signature from
// invalid-signature failures so handlers and tests can assert on each.
type WebhookVerificationError struct {
    Reason error
}

func (e *WebhookVerificationError) Error() string {
    return fmt.Sprintf("webhook verification failed: %v", e.Reason)
}

func (e *WebhookVerificationError) Unwrap() error {
    return e.Reason
}
