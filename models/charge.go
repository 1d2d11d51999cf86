package models

type PaymentMethodType string

const (
    PaymentMethodCard        PaymentMethodType = "card"
    PaymentMethodMobileMoney PaymentMethodType = "mobile_money"
    PaymentMethodBankAccount PaymentMethodType = "bank_account"
)

// Customer identifies the paying customer on a charge request.
type Customer struct {
    Email     string `json:"email"`
    FirstName string `json:"first_name"`
    LastName  string `json:"last_name"`
    Phone     string `json:"phone,omitempty"`
}

// EncryptedCardPayload is the only card representation that ever leaves this
// process. All fields are ciphered with the same nonce; raw digits exist only
// inside the encryption codec call.
type EncryptedCardPayload struct {
    Nonce                string `json:"nonce"`
    EncryptedCardNumber  string `json:"encrypted_card_number"`
    EncryptedExpiryMonth string `json:"encrypted_expiry_month"`
    EncryptedExpiryYear  string `json:"encrypted_expiry_year"`
    EncryptedCVV         string `json:"encrypted_cvv,omitempty"`
}

// EncryptedPin carries a PIN ciphered for an authorization submission.
type EncryptedPin struct {
    Nonce        string `json:"nonce"`
    EncryptedPin string `json:"encrypted_pin"`
}

type BillingAddress struct {
    Address string `json:"address,omitempty"`
    City    string `json:"city,omitempty"`
    State   string `json:"state,omitempty"`
    Zip     string `json:"zip,omitempty"`
    Country string `json:"country,omitempty"`
}

type CardMethod struct {
    Card           *EncryptedCardPayload `json:"card"`
    BillingAddress *BillingAddress       `json:"billing_address,omitempty"`
}

type MobileMoneyMethod struct {
    Network     string `json:"network"`
    CountryCode string `json:"country_code"`
    PhoneNumber string `json:"phone_number"`
}

type BankAccountMethod struct {
    BankCode      string `json:"bank_code"`
    AccountNumber string `json:"account_number"`
}

// PaymentMethod is a tagged union: exactly one of Card, MobileMoney or
// BankAccount is set, matching Type.
type PaymentMethod struct {
    Type        PaymentMethodType  `json:"type"`
    Card        *CardMethod        `json:"card,omitempty"`
    MobileMoney *MobileMoneyMethod `json:"mobile_money,omitempty"`
    BankAccount *BankAccountMethod `json:"bank_account,omitempty"`
}

type Customizations struct {
    Title       string `json:"title,omitempty"`
    Description string `json:"description,omitempty"`
    LogoURL     string `json:"logo_url,omitempty"`
}

// ChargeRequest is an immutable, validated direct-charge payload. Values are
// only produced by the charge request builder; the header fields travel as
// request headers, never in the JSON body.
type ChargeRequest struct {
    Reference      string            `json:"reference"`
    Amount         int64             `json:"amount"`
    Currency       string            `json:"currency"`
    Customer       Customer          `json:"customer"`
    PaymentMethod  PaymentMethod     `json:"payment_method"`
    RedirectURL    string            `json:"redirect_url"`
    Meta           map[string]string `json:"meta,omitempty"`
    Customizations *Customizations   `json:"customizations,omitempty"`

    IdempotencyKey string `json:"-"`
    TraceID        string `json:"-"`
    ScenarioKey    string `json:"-"`
}
