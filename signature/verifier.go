package signature

import (
	"crypto/hmac"
	"fmt"
	"strconv"
	"strings"
)

// Verify checks a full signature header value ("t=..., v1=...") against the
// payload and secret. The comparison is constant-time.
func (s *Signer) Verify(payload []byte, secret, header string) bool {
	return Verify(payload, secret, header)
}

// Verify checks a full signature header value ("t=..., v1=...") against the
// payload and secret. The comparison is constant-time.
func Verify(payload []byte, secret, header string) bool {
	ts, v1, err := ParseHeader(header)
	if err != nil {
		return false
	}

	expected := digest(payload, secret, ts)
	return hmac.Equal([]byte(expected), []byte(v1))
}

// ParseHeader splits a signature header value into its timestamp and v1
// components. The expected format is "t={unixTimestamp}, v1={hex}".
func ParseHeader(header string) (timestamp int64, v1 string, err error) {
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		switch {
		case strings.HasPrefix(part, "t="):
			timestamp, err = strconv.ParseInt(part[2:], 10, 64)
			if err != nil {
				return 0, "", fmt.Errorf("signature: invalid timestamp %q: %w", part[2:], err)
			}
		case strings.HasPrefix(part, "v1="):
			v1 = part[3:]
		}
	}

	if timestamp == 0 || v1 == "" {
		return 0, "", fmt.Errorf("signature: malformed header %q", header)
	}
	return timestamp, v1, nil
}
