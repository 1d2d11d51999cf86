package kwelipay

import "dukalink-payment-api/models"

// Envelope shared by every Kwelipay response: status is "success" or "error",
// data carries the resource on success.
type responseEnvelope struct {
    Status  string          `json:"status"`
    Message string          `json:"message"`
    Code    string          `json:"code,omitempty"`
    Type    string          `json:"type,omitempty"`
}

type chargeResponse struct {
    Status  string              `json:"status"`
    Message string              `json:"message"`
    Code    string              `json:"code,omitempty"`
    Type    string              `json:"type,omitempty"`
    Data    models.DirectCharge `json:"data"`
}

type authorizeRequest struct {
    Authorization models.AuthorizationSubmission `json:"authorization"`
}

type bankListResponse struct {
    Status  string        `json:"status"`
    Message string        `json:"message"`
    Data    []models.Bank `json:"data"`
}

type mobileNetworkListResponse struct {
    Status  string                 `json:"status"`
    Message string                 `json:"message"`
    Data    []models.MobileNetwork `json:"data"`
}
