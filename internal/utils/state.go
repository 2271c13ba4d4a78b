package utils

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

const stateBytes = 32

// GenerateState returns an unguessable URL-safe OAuth state value
func GenerateState() (string, error) {
	b := make([]byte, stateBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
