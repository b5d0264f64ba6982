package utils

import (
	"crypto/sha256"
	"encoding/base64"
)

// HashToken computes the SHA-256 digest of a token value, Base64-URL-encoded.
// Refresh tokens are stored only in this form; access tokens are blacklisted
// under it. The plaintext never reaches a datastore.
func HashToken(raw string) string {
	hasher := sha256.New()
	hasher.Write([]byte(raw))
	return base64.URLEncoding.EncodeToString(hasher.Sum(nil))
}
