package cryptoutil

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// HashEqual compares two hex digests in constant time.
func HashEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// SHA256Hex is the lowercase hex SHA-256 of data.
func SHA256Hex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Fingerprint identifies a bearer token without retaining it.
func Fingerprint(token string) string {
	return SHA256Hex([]byte(token))
}

// StrongETag quotes a digest as an HTTP entity tag.
func StrongETag(digest string) string {
	return `"` + digest + `"`
}

// ETagMatches reports whether an If-None-Match header value names etag.
// A weak validator (W/ prefix) matches too, as does "*".
func ETagMatches(ifNoneMatch, etag string) bool {
	for _, cand := range strings.Split(ifNoneMatch, ",") {
		cand = strings.TrimSpace(cand)
		if cand == "*" {
			return true
		}
		cand = strings.TrimPrefix(cand, "W/")
		if HashEqual(cand, etag) {
			return true
		}
	}
	return false
}
