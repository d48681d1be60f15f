// Package contenthash computes a cheap, stable fingerprint for context
// content, used to key and invalidate the chunk, index, and query caches
// without hashing megabytes of text on every lookup.
package contenthash

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hash returns a fingerprint of s. It mixes the length with digests of
// the prefix, midpoint, and suffix rather than the whole string, so
// re-hashing a large context on every append stays cheap; append/prepend
// mutations always shift at least one of those three windows.
func Hash(s string) string {
	const window = 4096

	h := sha256.New()
	n := len(s)

	writeInt(h, n)

	if n <= 3*window {
		h.Write([]byte(s))
		return hex.EncodeToString(h.Sum(nil))
	}

	h.Write([]byte(s[:window]))

	mid := n / 2
	lo, hi := mid-window/2, mid+window/2
	h.Write([]byte(s[lo:hi]))

	h.Write([]byte(s[n-window:]))

	return hex.EncodeToString(h.Sum(nil))
}

func writeInt(h interface{ Write([]byte) (int, error) }, n int) {
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(n >> (8 * i))
	}
	h.Write(buf[:])
}
