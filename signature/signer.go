// Package signature derives and checks the per-bot secret token the
// provider echoes back on every webhook call.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// HeaderName is the request header carrying the secret token.
const HeaderName = "X-Telegram-Bot-Api-Secret-Token"

// SecretToken derives the secret token for username as hex
// HMAC-SHA256(key, username). The result only uses characters the
// provider accepts. An empty key yields an empty token.
func SecretToken(key, username string) string {
	if key == "" {
		return ""
	}
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(username))
	return hex.EncodeToString(mac.Sum(nil))
}

// Tokens binds a key so it can be passed where a func(username) string
// is expected.
func Tokens(key string) func(username string) string {
	if key == "" {
		return nil
	}
	return func(username string) string { return SecretToken(key, username) }
}
