package cryptox

import (
	"crypto/sha256"
	"encoding/base64"
)

// FingerprintToken returns the deterministic SHA-256 fingerprint of token as
// unpadded base64url. Stores keep fingerprints instead of raw secrets so a
// leaked store dump cannot be replayed.
func FingerprintToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
