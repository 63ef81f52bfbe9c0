package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// shareTokenLength gives just under 191 bits of entropy over the
// 62-character alphabet, comfortably past the 128-bit floor for
// unguessable capability tokens.
const shareTokenLength = 32

// generateToken produces a cryptographically secure, URL-safe random string.
func generateToken(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	result := make([]byte, length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", fmt.Errorf("crypto/rand failure: %w", err)
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
