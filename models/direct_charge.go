package models

import "time"

// NextActionType enumerates the authorization steps Kwelipay can request
// before a charge settles.
type NextActionType string

const (
    NextActionNone               NextActionType = "none"
    NextActionRequiresPin        NextActionType = "requires_pin"
    NextActionRequiresOTP        NextActionType = "requires_otp"
    NextActionRequiresFields     NextActionType = "requires_additional_fields"
    NextActionRedirectURL        NextActionType = "redirect_url"
    NextActionPaymentInstruction NextActionType = "payment_instruction"
)

// NextAction is a tagged union carrying the step-specific payload for the
// authorization Kwelipay is waiting on.
type NextAction struct {
    Type NextActionType `json:"type"`

    // Set for redirect_url actions.
    RedirectURL string `json:"redirect_url,omitempty"`

    // Set for requires_otp actions: where the OTP was delivered.
    OTPDeliveredTo string `json:"otp_delivered_to,omitempty"`

    // Set for requires_additional_fields actions.
    Fields []string `json:"fields,omitempty"`

    // Set for payment_instruction actions (e.g. mobile money USSD prompt).
    Instruction string `json:"instruction,omitempty"`
}

type IssuerResponse struct {
    Code    string `json:"code,omitempty"`
    Message string `json:"message,omitempty"`
}

type Fees struct {
    Amount   int64  `json:"amount"`
    Currency string `json:"currency"`
}

type PaymentMethodDetails struct {
    Type    PaymentMethodType `json:"type"`
    Last4   string            `json:"last4,omitempty"`
    Network string            `json:"network,omitempty"`
    Bank    string            `json:"bank,omitempty"`
}

// DirectCharge is the server-assigned view of a charge. It is created by
// Kwelipay; this system only reads and projects it.
type DirectCharge struct {
    ID                   string                `json:"id"`
    Amount               int64                 `json:"amount"`
    Currency             string                `json:"currency"`
    Reference            string                `json:"reference"`
    Status               ChargeStatus          `json:"status"`
    NextAction           NextAction            `json:"next_action"`
    CustomerID           string                `json:"customer_id,omitempty"`
    PaymentMethodDetails *PaymentMethodDetails `json:"payment_method_details,omitempty"`
    IssuerResponse       *IssuerResponse       `json:"issuer_response,omitempty"`
    Fees                 *Fees                 `json:"fees,omitempty"`
    CreatedAt            time.Time             `json:"created_at"`
    UpdatedAt            time.Time             `json:"updated_at"`
}

// RequiresAuthorization reports whether the caller still owes Kwelipay an
// authorization step for this charge.
func (dc *DirectCharge) RequiresAuthorization() bool {
    return dc.Status == ChargeStatusRequiresAction && dc.NextAction.Type != NextActionNone
}
