package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dukalink-payment-api/types"
)

func testKey(t *testing.T) (string, []byte) {
	t.Helper()
	raw := make([]byte, 32)
	_, err := rand.Read(raw)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(raw), raw
}

func decryptField(t *testing.T, key []byte, nonce, ciphertext string) string {
	t.Helper()
	sealed, err := base64.StdEncoding.DecodeString(ciphertext)
	require.NoError(t, err)

	block, err := aes.NewCipher(key)
	require.NoError(t, err)
	gcm, err := cipher.NewGCM(block)
	require.NoError(t, err)

	plaintext, err := gcm.Open(nil, []byte(nonce), sealed, nil)
	require.NoError(t, err)
	return string(plaintext)
}

func TestNewCodecRejectsInvalidKeys(t *testing.T) {
	cases := []struct {
		name string
		key  string
	}{
		{"empty", ""},
		{"not base64", "!!!not-base64!!!"},
		{"wrong length", base64.StdEncoding.EncodeToString([]byte("short key"))},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewCodec(tc.key)
			require.Error(t, err)
			assert.True(t, errors.Is(err, types.ErrInvalidKey))
		})
	}
}

func TestEncryptCardDataRoundTrip(t *testing.T) {
	keyB64, key := testKey(t)
	codec, err := NewCodec(keyB64)
	require.NoError(t, err)

	payload, err := codec.EncryptCardData(CardInput{
		Number:      "4242424242424242",
		ExpiryMonth: "09",
		ExpiryYear:  "2028",
		CVV:         "123",
	})
	require.NoError(t, err)

	require.Len(t, payload.Nonce, NonceLength)
	assert.Equal(t, "4242424242424242", decryptField(t, key, payload.Nonce, payload.EncryptedCardNumber))
	assert.Equal(t, "09", decryptField(t, key, payload.Nonce, payload.EncryptedExpiryMonth))
	assert.Equal(t, "2028", decryptField(t, key, payload.Nonce, payload.EncryptedExpiryYear))
	assert.Equal(t, "123", decryptField(t, key, payload.Nonce, payload.EncryptedCVV))
}

func TestEncryptCardDataOmitsCVVWhenAbsent(t *testing.T) {
	keyB64, _ := testKey(t)
	codec, err := NewCodec(keyB64)
	require.NoError(t, err)

	payload, err := codec.EncryptCardData(CardInput{
		Number:      "4242424242424242",
		ExpiryMonth: "01",
		ExpiryYear:  "30",
	})
	require.NoError(t, err)
	assert.Empty(t, payload.EncryptedCVV)
}

func TestEncryptCardDataUsesFreshNoncePerCall(t *testing.T) {
	keyB64, _ := testKey(t)
	codec, err := NewCodec(keyB64)
	require.NoError(t, err)

	input := CardInput{Number: "4242424242424242", ExpiryMonth: "09", ExpiryYear: "2028", CVV: "123"}

	first, err := codec.EncryptCardData(input)
	require.NoError(t, err)
	second, err := codec.EncryptCardData(input)
	require.NoError(t, err)

	assert.NotEqual(t, first.Nonce, second.Nonce)
	assert.NotEqual(t, first.EncryptedCardNumber, second.EncryptedCardNumber)
}

func TestEncryptCardDataValidation(t *testing.T) {
	keyB64, _ := testKey(t)
	codec, err := NewCodec(keyB64)
	require.NoError(t, err)

	cases := []struct {
		name  string
		input CardInput
		field string
	}{
		{"short number", CardInput{Number: "1234", ExpiryMonth: "09", ExpiryYear: "2028"}, "card_number"},
		{"letters in number", CardInput{Number: "4242abcd42424242", ExpiryMonth: "09", ExpiryYear: "2028"}, "card_number"},
		{"month 13", CardInput{Number: "4242424242424242", ExpiryMonth: "13", ExpiryYear: "2028"}, "expiry_month"},
		{"month 0", CardInput{Number: "4242424242424242", ExpiryMonth: "00", ExpiryYear: "2028"}, "expiry_month"},
		{"three digit year", CardInput{Number: "4242424242424242", ExpiryMonth: "09", ExpiryYear: "202"}, "expiry_year"},
		{"bad cvv", CardInput{Number: "4242424242424242", ExpiryMonth: "09", ExpiryYear: "2028", CVV: "12"}, "cvv"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := codec.EncryptCardData(tc.input)
			require.Error(t, err)

			var encErr *types.EncryptionError
			require.True(t, errors.As(err, &encErr))
			assert.Equal(t, tc.field, encErr.Field)
		})
	}
}

func TestEncryptPin(t *testing.T) {
	keyB64, key := testKey(t)
	codec, err := NewCodec(keyB64)
	require.NoError(t, err)

	encrypted, err := codec.EncryptPin("1234")
	require.NoError(t, err)
	require.Len(t, encrypted.Nonce, NonceLength)
	assert.Equal(t, "1234", decryptField(t, key, encrypted.Nonce, encrypted.EncryptedPin))

	_, err = codec.EncryptPin("12")
	require.Error(t, err)
	var encErr *types.EncryptionError
	require.True(t, errors.As(err, &encErr))
	assert.Equal(t, "pin", encErr.Field)
}
