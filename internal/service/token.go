package service

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// tokenBytes of entropy encode to a 43 character url-safe token.
const tokenBytes = 32

// TokenLength is the length of every booking token.
var TokenLength = base64.RawURLEncoding.EncodedLen(tokenBytes)

// NewBookingToken returns a fresh capability token from crypto/rand.
func NewBookingToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate booking token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
