package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashAPIKey returns the hex encoded sha256 of arg. The operator token is
// configured and compared in this form only. No salt is used, tokens are
// expected to be long random strings.
func HashAPIKey(arg string) string {
	hasher := sha256.New()
	hasher.Write([]byte(arg))
	return hex.EncodeToString(hasher.Sum(nil))
}
