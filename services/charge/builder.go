package charge

import (
    "dukalink-payment-api/encryption"
    "dukalink-payment-api/models"
    "dukalink-payment-api/types"
    "dukalink-payment-api/utils"
)

const (
    referenceMinLength = 6
    referenceMaxLength = 42
)

// Builder assembles a direct-charge request fluently and validates it
// atomically at Build time. Raw card digits handed to Card are encrypted
// immediately and never stored on the builder.
type Builder struct {
    codec *encryption.Codec

    reference      string
    amount         int64
    currency       string
    customer       *models.Customer
    paymentMethod  *models.PaymentMethod
    redirectURL    string
    meta           map[string]string
    customizations *models.Customizations
    idempotencyKey string
    traceID        string
    scenarioKey    string

    encryptErr error
}

func NewBuilder(codec *encryption.Codec) *Builder {
    return &Builder{codec: codec}
}

func (b *Builder) Reference(reference string) *Builder {
    b.reference = reference
    return b
}

func (b *Builder) Amount(amount int64) *Builder {
    b.amount = amount
    return b
}

func (b *Builder) Currency(currency string) *Builder {
    b.currency = currency
    return b
}

func (b *Builder) Customer(email, firstName, lastName, phone string) *Builder {
    b.customer = &models.Customer{
        Email:     email,
        FirstName: firstName,
        LastName:  lastName,
        Phone:     phone,
    }
    return b
}

// Card encrypts the raw card data in place. The plaintext exists only in this
// call's stack frame; only the encrypted payload is retained. An encryption
// failure is held and re-raised by Build so the fluent chain stays intact.
func (b *Builder) Card(number, expiryMonth, expiryYear, cvv string, billing *models.BillingAddress) *Builder {
    payload, err := b.codec.EncryptCardData(encryption.CardInput{
        Number:      number,
        ExpiryMonth: expiryMonth,
        ExpiryYear:  expiryYear,
        CVV:         cvv,
    })
    if err != nil {
        b.encryptErr = err
        return b
    }

    b.paymentMethod = &models.PaymentMethod{
        Type: models.PaymentMethodCard,
        Card: &models.CardMethod{
            Card:           payload,
            BillingAddress: billing,
        },
    }
    return b
}

func (b *Builder) MobileMoney(network, countryCode, phoneNumber string) *Builder {
    b.paymentMethod = &models.PaymentMethod{
        Type: models.PaymentMethodMobileMoney,
        MobileMoney: &models.MobileMoneyMethod{
            Network:     network,
            CountryCode: countryCode,
            PhoneNumber: phoneNumber,
        },
    }
    return b
}

func (b *Builder) BankAccount(bankCode, accountNumber string) *Builder {
    b.paymentMethod = &models.PaymentMethod{
        Type: models.PaymentMethodBankAccount,
        BankAccount: &models.BankAccountMethod{
            BankCode:      bankCode,
            AccountNumber: accountNumber,
        },
    }
    return b
}

func (b *Builder) RedirectURL(url string) *Builder {
    b.redirectURL = url
    return b
}

func (b *Builder) Meta(meta map[string]string) *Builder {
    b.meta = meta
    return b
}

func (b *Builder) Customizations(c *models.Customizations) *Builder {
    b.customizations = c
    return b
}

// IdempotencyKey should be the caller's order id so that retried creation
// attempts do not double-charge.
func (b *Builder) IdempotencyKey(key string) *Builder {
    b.idempotencyKey = key
    return b
}

func (b *Builder) TraceID(traceID string) *Builder {
    b.traceID = traceID
    return b
}

func (b *Builder) ScenarioKey(key string) *Builder {
    b.scenarioKey = key
    return b
}

// Build validates everything at once and returns the immutable request. No
// network call happens until Build succeeds.
func (b *Builder) Build() (*models.ChargeRequest, error) {
    if b.encryptErr != nil {
        return nil, b.encryptErr
    }
    if b.amount <= 0 {
        return nil, types.NewValidationError("amount", "must be greater than zero")
    }
    if b.currency == "" {
        return nil, types.NewValidationError("currency", "is required")
    }
    if b.customer == nil {
        return nil, types.NewValidationError("customer", "is required")
    }
    if b.customer.Email == "" {
        return nil, types.NewValidationError("customer.email", "is required")
    }
    if b.customer.FirstName == "" {
        return nil, types.NewValidationError("customer.first_name", "is required")
    }
    if b.customer.LastName == "" {
        return nil, types.NewValidationError("customer.last_name", "is required")
    }
    if b.paymentMethod == nil {
        return nil, types.NewValidationError("payment_method", "exactly one payment method is required")
    }
    if b.redirectURL == "" {
        return nil, types.NewValidationError("redirect_url", "is required")
    }

    reference := b.reference
    if reference == "" {
        reference = "DLK-" + utils.GenerateRandomString(16)
    }
    if len(reference) < referenceMinLength || len(reference) > referenceMaxLength {
        return nil, types.NewValidationError("reference", "must be 6-42 characters")
    }

    return &models.ChargeRequest{
        Reference:      reference,
        Amount:         b.amount,
        Currency:       b.currency,
        Customer:       *b.customer,
        PaymentMethod:  *b.paymentMethod,
        RedirectURL:    b.redirectURL,
        Meta:           b.meta,
        Customizations: b.customizations,
        IdempotencyKey: b.idempotencyKey,
        TraceID:        b.traceID,
        ScenarioKey:    b.scenarioKey,
    }, nil
}
