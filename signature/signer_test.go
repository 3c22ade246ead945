package signature_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/xraph/botrelay/signature"
)

func TestSecretTokenKnownVector(t *testing.T) {
	key := "bsk_testkey"

	got := signature.SecretToken(key, "alice_bot")

	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte("alice_bot"))
	expected := hex.EncodeToString(mac.Sum(nil))

	if got != expected {
		t.Errorf("SecretToken() = %q, want %q", got, expected)
	}
}

func TestSecretTokenPerUsername(t *testing.T) {
	if signature.SecretToken("k", "alice_bot") == signature.SecretToken("k", "bobby_bot") {
		t.Error("different usernames must get different tokens")
	}
}

func TestSecretTokenEmptyKey(t *testing.T) {
	if got := signature.SecretToken("", "alice_bot"); got != "" {
		t.Errorf("expected empty token, got %q", got)
	}
	if signature.Tokens("") != nil {
		t.Error("expected nil token func for empty key")
	}
}

func TestVerifyRoundTrip(t *testing.T) {
	tok := signature.Tokens("bsk_roundtrip")("alice_bot")
	if !signature.Verify("bsk_roundtrip", "alice_bot", tok) {
		t.Error("Verify() returned false for valid token")
	}
}

func TestVerifyWrongUsername(t *testing.T) {
	tok := signature.SecretToken("bsk_k", "alice_bot")
	if signature.Verify("bsk_k", "bobby_bot", tok) {
		t.Error("Verify() returned true for another bot's token")
	}
}

func TestVerifyWrongKey(t *testing.T) {
	tok := signature.SecretToken("bsk_correct", "alice_bot")
	if signature.Verify("bsk_wrong", "alice_bot", tok) {
		t.Error("Verify() returned true for wrong key")
	}
}

func TestVerifyEmptyKeyAcceptsAll(t *testing.T) {
	if !signature.Verify("", "alice_bot", "") {
		t.Error("Verify() with no key should accept")
	}
}
