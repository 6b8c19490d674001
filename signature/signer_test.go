package signature_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"testing"

	"github.com/revred/smartpay-notify/signature"
)

func TestSignKnownVector(t *testing.T) {
	signer := signature.NewSigner()
	payload := []byte(`{"event":"test"}`)
	secret := "whsec_testsecret123"
	timestamp := int64(1700000000)

	got := signer.Sign(payload, secret, timestamp)

	// Compute expected HMAC-SHA256 independently.
	content := fmt.Sprintf("t=%d.%s", timestamp, payload)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(content))
	expected := fmt.Sprintf("t=%d, v1=%s", timestamp, hex.EncodeToString(mac.Sum(nil)))

	if got != expected {
		t.Errorf("Sign() = %q, want %q", got, expected)
	}
}

func TestSignDeterministic(t *testing.T) {
	payload := []byte(`{"id":"pi_1"}`)
	secret := "whsec_determinism"
	timestamp := int64(1700000010)

	a := signature.Sign(payload, secret, timestamp)
	b := signature.Sign(payload, secret, timestamp)
	if a != b {
		t.Errorf("same inputs produced different signatures: %q vs %q", a, b)
	}

	if signature.Sign([]byte(`{"id":"pi_2"}`), secret, timestamp) == a {
		t.Error("different payload produced identical signature")
	}
	if signature.Sign(payload, "whsec_other", timestamp) == a {
		t.Error("different secret produced identical signature")
	}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	signer := signature.NewSigner()
	payload := []byte(`{"payment_intent":"pi_01h2x","amount":9900}`)
	secret := "whsec_roundtripsecret"
	timestamp := int64(1700000001)

	header := signer.Sign(payload, secret, timestamp)
	if !signer.Verify(payload, secret, header) {
		t.Error("Verify() returned false for valid signature")
	}
}

func TestVerifyTamperedPayload(t *testing.T) {
	payload := []byte(`{"original":true}`)
	secret := "whsec_tampersecret"

	header := signature.Sign(payload, secret, 1700000002)

	tampered := []byte(`{"original":false}`)
	if signature.Verify(tampered, secret, header) {
		t.Error("Verify() returned true for tampered payload")
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	payload := []byte(`{"data":"value"}`)

	header := signature.Sign(payload, "whsec_correct", 1700000003)

	if signature.Verify(payload, "whsec_wrong", header) {
		t.Error("Verify() returned true for wrong secret")
	}
}

func TestVerifyMalformedHeader(t *testing.T) {
	payload := []byte(`{"data":"value"}`)

	for _, header := range []string{"", "v1=abc", "t=123", "garbage", "t=abc, v1=def"} {
		if signature.Verify(payload, "whsec_x", header) {
			t.Errorf("Verify() accepted malformed header %q", header)
		}
	}
}

func TestSignatureFormat(t *testing.T) {
	header := signature.Sign([]byte("test"), "secret", 1700000123)

	if strings.Count(header, "t=") != 1 {
		t.Errorf("expected exactly one t= segment in %q", header)
	}
	if strings.Count(header, "v1=") != 1 {
		t.Errorf("expected exactly one v1= segment in %q", header)
	}

	parts := strings.SplitN(header, ",", 2)
	if len(parts) != 2 {
		t.Fatalf("expected comma-separated segments, got %q", header)
	}
	if !strings.HasPrefix(parts[0], "t=") {
		t.Errorf("first segment should be t=..., got %q", parts[0])
	}
	if !strings.HasPrefix(strings.TrimSpace(parts[1]), "v1=") {
		t.Errorf("second segment should be v1=..., got %q", parts[1])
	}

	// v1 value is hex SHA256 = 64 chars.
	_, v1, err := signature.ParseHeader(header)
	if err != nil {
		t.Fatal(err)
	}
	if len(v1) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(v1))
	}
}

func TestParseHeader(t *testing.T) {
	ts, v1, err := signature.ParseHeader("t=1700000000, v1=deadbeef")
	if err != nil {
		t.Fatal(err)
	}
	if ts != 1700000000 {
		t.Errorf("ts = %d, want 1700000000", ts)
	}
	if v1 != "deadbeef" {
		t.Errorf("v1 = %q, want deadbeef", v1)
	}
}

func TestGenerateSecret(t *testing.T) {
	s := signature.GenerateSecret()
	if !strings.HasPrefix(s, "whsec_") {
		t.Errorf("secret %q should start with whsec_", s)
	}
	if len(s) != 70 {
		t.Errorf("expected 70 chars, got %d", len(s))
	}
	if signature.GenerateSecret() == s {
		t.Error("two generated secrets should differ")
	}
}
