package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// CanonicalString renders payload as "k1=v1&k2=v2" with keys sorted
// ascending.  Values are used verbatim, without URL escaping.
func CanonicalString(payload map[string]string) string {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(payload[k])
	}
	return b.String()
}

// ComputeSignature returns the hex HMAC-SHA256 of the canonical payload.
func ComputeSignature(payload map[string]string, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(CanonicalString(payload)))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyWebhookSignature recomputes the signature and compares it in
// constant time.  An empty secret or signature never verifies.
func VerifyWebhookSignature(payload map[string]string, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}
	expected := ComputeSignature(payload, secret)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature))))
}
