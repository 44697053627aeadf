package token

import (
	"crypto/sha256"
	"encoding/base64"
)

// Fingerprint returns a stable, non-reversible digest of a token for log
// and trace lines. Raw tokens never appear in logs; fingerprints do.
func Fingerprint(token string) string {
	hash := sha256.Sum256([]byte(token))
	return base64.StdEncoding.EncodeToString(hash[:])
}
