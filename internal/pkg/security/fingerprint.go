package security

import "time"

// Purpose tags binding proof tokens to a single flow.
const (
	PurposeVerifyAccount  = "verify-account"
	PurposeForgotPassword = "forgot-password"
)

const (
	passwordSuffixLen    = 6
	suffixPlaceholder    = "000000"
	updatedAtFormat      = "01022006150405"
	updatedAtPlaceholder = "00000000000000"
)

// Fingerprint derives the reproducible context string a proof token is minted
// from: purpose tag + last 6 characters of the password digest + the user's
// last-update timestamp. It is never persisted; changing the password or
// UpdatedAt changes the fingerprint and thereby invalidates every
// previously-issued proof token for that purpose.
func Fingerprint(purpose, passwordDigest string, updatedAt time.Time) string {
	suffix := suffixPlaceholder
	if len(passwordDigest) >= passwordSuffixLen {
		suffix = passwordDigest[len(passwordDigest)-passwordSuffixLen:]
	}
	stamp := updatedAtPlaceholder
	if !updatedAt.IsZero() {
		stamp = updatedAt.Format(updatedAtFormat)
	}
	return purpose + suffix + stamp
}

// ProofToken mints a one-way proof token for an email link: the bcrypt hash
// of the fingerprint.
func ProofToken(purpose, passwordDigest string, updatedAt time.Time) (string, error) {
	return HashPassword(Fingerprint(purpose, passwordDigest, updatedAt))
}

// VerifyProofToken re-derives the fingerprint from the current user state and
// checks the submitted token against it.
func VerifyProofToken(purpose, passwordDigest string, updatedAt time.Time, token string) bool {
	return VerifyPassword(Fingerprint(purpose, passwordDigest, updatedAt), token)
}
