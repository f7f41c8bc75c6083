package gateway

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// TxRefPrefix starts every transaction reference this service issues.
const TxRefPrefix = "TXN"

// GenerateTxRef returns TXN<YYYYmmddHHMMSS><8 hex>.  The random suffix keeps
// references issued within the same second distinct.
func GenerateTxRef(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return TxRefPrefix + now.UTC().Format("20060102150405") + strings.ToUpper(suffix)
}

// IsOwnTxRef reports whether ref carries the TXN prefix.
func IsOwnTxRef(ref string) bool { return strings.HasPrefix(ref, TxRefPrefix) }
