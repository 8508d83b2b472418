package security

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const specialCharacters = "@#$%=:?.-!_"

var dniPattern = regexp.MustCompile(`^\d{8}[A-Z]$`)

// HashPassword returns a salted bcrypt digest of the secret. Hashing the same
// secret twice yields different digests; both verify.
func HashPassword(secret string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

// VerifyPassword reports whether the secret matches the digest. Malformed
// digests are treated as "not valid" rather than an error.
func VerifyPassword(secret, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(secret)) == nil
}

// IsPasswordStrong enforces the registration password policy: at least 8
// characters with upper, lower, digit and one of the allowed specials.
func IsPasswordStrong(password string) bool {
	if len(password) < 8 {
		return false
	}
	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(specialCharacters, r):
			special = true
		}
	}
	return upper && lower && digit && special
}

// IsValidDNI reports whether s looks like a Spanish DNI (8 digits + letter).
func IsValidDNI(s string) bool {
	return dniPattern.MatchString(s)
}
