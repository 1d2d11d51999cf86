package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"dukalink-payment-api/encryption"
	"dukalink-payment-api/models"
	"dukalink-payment-api/queue"
	"dukalink-payment-api/services/charge"
	"dukalink-payment-api/services/session"
	"dukalink-payment-api/utils"
)

// ChargeHandler exposes the direct-charge lifecycle: initiate, authorize,
// status. Raw card data arrives here over TLS, is encrypted inside the
// builder, and never touches storage or logs.
type ChargeHandler struct {
	codec        *encryption.Codec
	charges      *charge.Service
	projector    *session.Projector
	queue        *queue.Queue
	pollInterval time.Duration
}

func NewChargeHandler(codec *encryption.Codec, charges *charge.Service,
	projector *session.Projector, q *queue.Queue, pollInterval time.Duration) *ChargeHandler {
	return &ChargeHandler{
		codec:        codec,
		charges:      charges,
		projector:    projector,
		queue:        q,
		pollInterval: pollInterval,
	}
}

type cardRequest struct {
	Number      string `json:"number"`
	ExpiryMonth string `json:"expiry_month"`
	ExpiryYear  string `json:"expiry_year"`
	CVV         string `json:"cvv"`
}

type createChargeRequest struct {
	Reference   string                    `json:"reference,omitempty"`
	Amount      int64                     `json:"amount"`
	Currency    string                    `json:"currency"`
	Customer    models.Customer           `json:"customer"`
	Card        *cardRequest              `json:"card,omitempty"`
	MobileMoney *models.MobileMoneyMethod `json:"mobile_money,omitempty"`
	BankAccount *models.BankAccountMethod `json:"bank_account,omitempty"`
	Billing     *models.BillingAddress    `json:"billing_address,omitempty"`
	RedirectURL string                    `json:"redirect_url"`
	OrderID     string                    `json:"order_id,omitempty"`
	Meta        map[string]string         `json:"meta,omitempty"`
}

type authorizeChargeRequest struct {
	Type string            `json:"type"`
	Pin  string            `json:"pin,omitempty"`
	OTP  string            `json:"otp,omitempty"`
	AVS  *models.AVSFields `json:"avs,omitempty"`
}

type chargeResponse struct {
	Charge    *models.DirectCharge `json:"charge"`
	SessionID string               `json:"session_id,omitempty"`
}

// HandleCreateCharge initiates a direct charge and starts its session and
// poll schedule.
func (h *ChargeHandler) HandleCreateCharge(w http.ResponseWriter, r *http.Request) {
	var req createChargeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "Invalid request format")
		return
	}

	builder := charge.NewBuilder(h.codec).
		Reference(req.Reference).
		Amount(req.Amount).
		Currency(req.Currency).
		Customer(req.Customer.Email, req.Customer.FirstName, req.Customer.LastName, req.Customer.Phone).
		RedirectURL(req.RedirectURL).
		Meta(req.Meta).
		IdempotencyKey(req.OrderID)

	switch {
	case req.Card != nil:
		builder.Card(req.Card.Number, req.Card.ExpiryMonth, req.Card.ExpiryYear, req.Card.CVV, req.Billing)
	case req.MobileMoney != nil:
		builder.MobileMoney(req.MobileMoney.Network, req.MobileMoney.CountryCode, req.MobileMoney.PhoneNumber)
	case req.BankAccount != nil:
		builder.BankAccount(req.BankAccount.BankCode, req.BankAccount.AccountNumber)
	}

	chargeReq, err := builder.Build()
	if err != nil {
		utils.SendServiceError(w, err)
		return
	}

	dc, err := h.charges.Create(r.Context(), chargeReq)
	if err != nil {
		utils.SendServiceError(w, err)
		return
	}

	sess, err := h.projector.CreateFromCharge(r.Context(), dc)
	if err != nil {
		// The remote charge exists; surface it even if the local mirror
		// could not be written.
		log.Printf("Error creating session for charge %s: %v", dc.ID, err)
		utils.SendSuccessResponse(w, models.APIResponse{
			Status:  "success",
			Message: "Charge created",
			Data:    chargeResponse{Charge: dc},
		})
		return
	}

	if !sess.IsTerminal() {
		if err := h.queue.EnqueueDelayed(r.Context(), queue.JobTypePollChargeStatus,
			map[string]interface{}{"session_id": sess.ID}, h.pollInterval); err != nil {
			log.Printf("Error scheduling poll for session %s: %v", sess.ID, err)
		}
	}

	utils.SendSuccessResponse(w, models.APIResponse{
		Status:  "success",
		Message: "Charge created",
		Data:    chargeResponse{Charge: dc, SessionID: sess.ID},
	})
}

// HandleAuthorizeCharge submits the customer's PIN, OTP or AVS answer for a
// pending charge.
func (h *ChargeHandler) HandleAuthorizeCharge(w http.ResponseWriter, r *http.Request) {
	chargeID := mux.Vars(r)["id"]
	if chargeID == "" {
		utils.SendErrorResponse(w, http.StatusBadRequest, "Missing charge id")
		return
	}

	var req authorizeChargeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "Invalid request format")
		return
	}

	var sub models.AuthorizationSubmission
	switch models.AuthorizationType(req.Type) {
	case models.AuthorizationPin:
		encrypted, err := h.codec.EncryptPin(req.Pin)
		if err != nil {
			utils.SendServiceError(w, err)
			return
		}
		sub = models.AuthorizationSubmission{Type: models.AuthorizationPin, Pin: encrypted}
	case models.AuthorizationOTP:
		if req.OTP == "" {
			utils.SendErrorResponse(w, http.StatusBadRequest, "Missing otp code")
			return
		}
		sub = models.AuthorizationSubmission{Type: models.AuthorizationOTP, OTP: req.OTP}
	case models.AuthorizationAVS:
		if req.AVS == nil {
			utils.SendErrorResponse(w, http.StatusBadRequest, "Missing avs fields")
			return
		}
		sub = models.AuthorizationSubmission{Type: models.AuthorizationAVS, AVS: req.AVS}
	default:
		utils.SendErrorResponse(w, http.StatusBadRequest, "Unknown authorization type")
		return
	}

	dc, err := h.charges.Authorize(r.Context(), chargeID, sub)
	if err != nil {
		utils.SendServiceError(w, err)
		return
	}

	sess, err := h.projector.Apply(r.Context(), dc)
	if err != nil && err != session.ErrSessionNotFound {
		log.Printf("Error projecting authorization result for charge %s: %v", chargeID, err)
	}

	resp := chargeResponse{Charge: dc}
	if sess != nil {
		resp.SessionID = sess.ID
	}
	utils.SendSuccessResponse(w, models.APIResponse{
		Status:  "success",
		Message: "Authorization submitted",
		Data:    resp,
	})
}

// HandleChargeStatus is a read-only passthrough; it does not touch session
// state.
func (h *ChargeHandler) HandleChargeStatus(w http.ResponseWriter, r *http.Request) {
	chargeID := mux.Vars(r)["id"]
	if chargeID == "" {
		utils.SendErrorResponse(w, http.StatusBadRequest, "Missing charge id")
		return
	}

	dc, err := h.charges.Status(r.Context(), chargeID)
	if err != nil {
		utils.SendServiceError(w, err)
		return
	}

	utils.SendSuccessResponse(w, models.APIResponse{
		Status:  "success",
		Message: "Charge status",
		Data:    chargeResponse{Charge: dc},
	})
}

