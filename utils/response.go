package utils

import (
    "encoding/json"
    "errors"
    "log"
    "net/http"

    "dukalink-payment-api/models"
    "dukalink-payment-api/types"
)

func SendErrorResponse(w http.ResponseWriter, status int, message string) {
    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(status)
    json.NewEncoder(w).Encode(models.APIResponse{
        Status:  "error",
        Message: message,
    })
}

func SendSuccessResponse(w http.ResponseWriter, response models.APIResponse) {
    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(http.StatusOK)
    json.NewEncoder(w).Encode(response)
}

// SendServiceError maps the error taxonomy onto HTTP responses: fix your
// request (400), retry later (429/502), or contact support (500).
func SendServiceError(w http.ResponseWriter, err error) {
    var validationErr *types.ValidationError
    var encryptionErr *types.EncryptionError
    var rateErr *types.RateLimitError
    var apiErr *types.APIError

    switch {
    case errors.As(err, &validationErr):
        SendErrorResponse(w, http.StatusBadRequest, validationErr.Error())
    case errors.As(err, &encryptionErr):
        SendErrorResponse(w, http.StatusBadRequest, encryptionErr.Error())
    case errors.As(err, &rateErr):
        SendErrorResponse(w, http.StatusTooManyRequests, "Too many requests, please retry shortly")
    case errors.As(err, &apiErr):
        status := http.StatusBadGateway
        if apiErr.ClientError() {
            status = http.StatusBadRequest
        }
        SendErrorResponse(w, status, apiErr.FriendlyMessage())
    default:
        log.Printf("Unexpected service error: %v", err)
        SendErrorResponse(w, http.StatusInternalServerError, "Internal error")
    }
}
