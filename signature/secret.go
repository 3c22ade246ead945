package signature

import (
	"crypto/rand"
	"encoding/hex"
)

// GenerateKey creates a cryptographically random secret key.
// Format: "bsk_" + 32 bytes hex = 68 characters total.
func GenerateKey() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic("botrelay: failed to generate random key: " + err.Error())
	}
	return "bsk_" + hex.EncodeToString(b)
}
