package signature

import "crypto/hmac"

// Verify checks got against the secret token for username in constant
// time. With an empty key every request passes.
func Verify(key, username, got string) bool {
	if key == "" {
		return true
	}
	expected := SecretToken(key, username)
	return hmac.Equal([]byte(expected), []byte(got))
}
