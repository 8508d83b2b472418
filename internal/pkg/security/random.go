package security

import (
	"crypto/rand"
	"encoding/base64"
)

// Session key sizes in random bytes. The refresh key is deliberately longer
// than the access key.
const (
	AccessKeyBytes  = 50
	RefreshKeyBytes = 100
)

// RandomKey returns a URL-safe, cryptographically random string of n bytes of
// entropy.
func RandomKey(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand never fails on supported platforms.
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

// EncodeID obfuscates an identifier for embedding in token claims.
func EncodeID(id string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(id))
}

// DecodeID reverses EncodeID.
func DecodeID(encoded string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
