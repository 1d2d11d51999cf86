package encryption

import (
    "crypto/aes"
    "crypto/cipher"
    "encoding/base64"
    "fmt"
    "regexp"

    "dukalink-payment-api/models"
    "dukalink-payment-api/types"
    "dukalink-payment-api/utils"
)

// NonceLength is fixed by Kwelipay: a 12-character alphanumeric value shared
// across every ciphered field of one encryption context (one card, one PIN).
const NonceLength = 12

var (
    cardNumberPattern = regexp.MustCompile(`^\d{13,19}$`)
    expiryMonthPattern = regexp.MustCompile(`^(0[1-9]|1[0-2])$`)
    expiryYearPattern  = regexp.MustCompile(`^(\d{2}|\d{4})$`)
    cvvPattern         = regexp.MustCompile(`^\d{3,4}$`)
    pinPattern         = regexp.MustCompile(`^\d{4,8}$`)
)

// CardInput holds raw card data on its way into the codec. Values never leave
// the calling stack frame unencrypted and are never logged.
type CardInput struct {
    Number      string
    ExpiryMonth string
    ExpiryYear  string
    CVV         string
}

// Codec performs AES-256-GCM field-level encryption of card data and PINs
// before they are transmitted to Kwelipay.
type Codec struct {
    key []byte
}

// NewCodec decodes the base64 key and rejects anything that is not exactly a
// 256-bit value.
func NewCodec(base64Key string) (*Codec, error) {
    if base64Key == "" {
        return nil, types.ErrInvalidKey
    }
    key, err := base64.StdEncoding.DecodeString(base64Key)
    if err != nil {
        return nil, fmt.Errorf("%w: %v", types.ErrInvalidKey, err)
    }
    if len(key) != 32 {
        return nil, fmt.Errorf("%w: got %d bytes", types.ErrInvalidKey, len(key))
    }
    return &Codec{key: key}, nil
}

// EncryptCardData validates and then ciphers every card field with one shared
// nonce. No partial payload is ever returned: the first validation or cipher
// failure aborts the whole operation.
func (c *Codec) EncryptCardData(card CardInput) (*models.EncryptedCardPayload, error) {
    if !cardNumberPattern.MatchString(card.Number) {
        return nil, &types.EncryptionError{Field: "card_number", Message: "must be 13-19 digits"}
    }
    if !expiryMonthPattern.MatchString(card.ExpiryMonth) {
        return nil, &types.EncryptionError{Field: "expiry_month", Message: "must be 01-12"}
    }
    if !expiryYearPattern.MatchString(card.ExpiryYear) {
        return nil, &types.EncryptionError{Field: "expiry_year", Message: "must be 2 or 4 digits"}
    }
    if card.CVV != "" && !cvvPattern.MatchString(card.CVV) {
        return nil, &types.EncryptionError{Field: "cvv", Message: "must be 3-4 digits"}
    }

    nonce := utils.GenerateRandomString(NonceLength)

    payload := &models.EncryptedCardPayload{Nonce: nonce}
    var err error
    if payload.EncryptedCardNumber, err = c.seal(nonce, "card_number", card.Number); err != nil {
        return nil, err
    }
    if payload.EncryptedExpiryMonth, err = c.seal(nonce, "expiry_month", card.ExpiryMonth); err != nil {
        return nil, err
    }
    if payload.EncryptedExpiryYear, err = c.seal(nonce, "expiry_year", card.ExpiryYear); err != nil {
        return nil, err
    }
    if card.CVV != "" {
        if payload.EncryptedCVV, err = c.seal(nonce, "cvv", card.CVV); err != nil {
            return nil, err
        }
    }

    return payload, nil
}

// EncryptPin ciphers a card PIN under its own fresh nonce for an
// authorization submission.
func (c *Codec) EncryptPin(pin string) (*models.EncryptedPin, error) {
    if !pinPattern.MatchString(pin) {
        return nil, &types.EncryptionError{Field: "pin", Message: "must be 4-8 digits"}
    }

    nonce := utils.GenerateRandomString(NonceLength)
    encrypted, err := c.seal(nonce, "pin", pin)
    if err != nil {
        return nil, err
    }

    return &models.EncryptedPin{Nonce: nonce, EncryptedPin: encrypted}, nil
}

// seal encrypts one field. The ciphertext is the sealed bytes (including the
// 16-byte GCM tag) base64-encoded as a single string.
func (c *Codec) seal(nonce, field, plaintext string) (string, error) {
    block, err := aes.NewCipher(c.key)
    if err != nil {
        return "", &types.EncryptionError{Field: field, Cause: err}
    }

    gcm, err := cipher.NewGCM(block)
    if err != nil {
        return "", &types.EncryptionError{Field: field, Cause: err}
    }

    sealed := gcm.Seal(nil, []byte(nonce), []byte(plaintext), nil)
    return base64.StdEncoding.EncodeToString(sealed), nil
}
