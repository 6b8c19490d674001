// Package signature provides HMAC-SHA256 webhook signing and verification.
//
// The signature header carried on every delivery is self-describing:
//
//	X-SmartPay-Signature: t=1700000000, v1=5257a869e7...
//
// The signed material is "t={unixTimestamp}.{rawBody}" keyed by the endpoint's
// shared secret, hex-encoded lowercase. Receivers recompute the HMAC over the
// raw request body using the timestamp from the header and compare with a
// constant-time check.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Signer computes HMAC-SHA256 signatures for webhook payloads.
type Signer struct{}

// NewSigner returns a new Signer.
func NewSigner() *Signer {
	return &Signer{}
}

// Sign generates the signature header value for the given payload.
// Returns "t={timestamp}, v1={hex}".
func (s *Signer) Sign(payload []byte, secret string, timestamp int64) string {
	return Sign(payload, secret, timestamp)
}

// Sign generates the signature header value for the given payload.
// The signed material is "t={timestamp}.{payload}".
// Returns "t={timestamp}, v1={hex}".
func Sign(payload []byte, secret string, timestamp int64) string {
	return fmt.Sprintf("t=%d, v1=%s", timestamp, digest(payload, secret, timestamp))
}

// digest computes the lowercase hex HMAC-SHA256 over "t={timestamp}.{payload}".
func digest(payload []byte, secret string, timestamp int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "t=%d.", timestamp)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
