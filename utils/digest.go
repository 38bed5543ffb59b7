package utils

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// Digest returns the hex BLAKE3-256 digest of data. It names delivered
// objects and serves as the download ETag.
func Digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ShortDigest is the first 16 hex characters of Digest.
func ShortDigest(data []byte) string {
	return Digest(data)[:16]
}

// FormatKB renders a byte count as kilobytes with two decimals.
func FormatKB(n int64) string {
	return fmt.Sprintf("%.2f KB", float64(n)/1024)
}
