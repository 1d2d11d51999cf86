package utils

import (
    "crypto/rand"
    "math/big"
)

// GenerateRandomString returns a cryptographically random alphanumeric string
// of the given length. Used for encryption nonces and charge references.
func GenerateRandomString(length int) string {
    const charset = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
    result := make([]byte, length)
    for i := range result {
        n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
        result[i] = charset[n.Int64()]
    }
    return string(result)
}
