package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	digest, err := HashPassword("Sup3r-secret")
	require.NoError(t, err)
	require.NotEmpty(t, digest)
	assert.NotEqual(t, "Sup3r-secret", digest)

	assert.True(t, VerifyPassword("Sup3r-secret", digest))
	assert.False(t, VerifyPassword("wrong-secret", digest))
}

func TestHashPasswordSalted(t *testing.T) {
	a, err := HashPassword("Sup3r-secret")
	require.NoError(t, err)
	b, err := HashPassword("Sup3r-secret")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.True(t, VerifyPassword("Sup3r-secret", a))
	assert.True(t, VerifyPassword("Sup3r-secret", b))
}

func TestVerifyPasswordMalformedDigest(t *testing.T) {
	assert.False(t, VerifyPassword("anything", ""))
	assert.False(t, VerifyPassword("anything", "not-a-bcrypt-digest"))
}

func TestIsPasswordStrong(t *testing.T) {
	cases := []struct {
		password string
		want     bool
	}{
		{"Abcdef1!", true},
		{"Str0ng@pass", true},
		{"short1A!", true},
		{"Ab1!", false},      // too short
		{"abcdefg1!", false}, // no upper
		{"ABCDEFG1!", false}, // no lower
		{"Abcdefgh!", false}, // no digit
		{"Abcdefg12", false}, // no special
		{"Abcdef1*", false},  // * is not an allowed special
		{"", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, IsPasswordStrong(tc.password), "password %q", tc.password)
	}
}

func TestIsValidDNI(t *testing.T) {
	assert.True(t, IsValidDNI("12345678Z"))
	assert.False(t, IsValidDNI("12345678z"))
	assert.False(t, IsValidDNI("1234567Z"))
	assert.False(t, IsValidDNI("123456789"))
	assert.False(t, IsValidDNI("Z12345678"))
	assert.False(t, IsValidDNI(""))
}

func TestFingerprintDeterministic(t *testing.T) {
	at := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
	a := Fingerprint(PurposeVerifyAccount, "$2a$10$abcdefsuffix", at)
	b := Fingerprint(PurposeVerifyAccount, "$2a$10$abcdefsuffix", at)
	assert.Equal(t, a, b)
	assert.Equal(t, "verify-accountsuffix03142026150926", a)
}

func TestFingerprintPlaceholders(t *testing.T) {
	fp := Fingerprint(PurposeForgotPassword, "short", time.Time{})
	assert.Equal(t, "forgot-password"+"000000"+"00000000000000", fp)
}

func TestFingerprintChangesWithState(t *testing.T) {
	at := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
	base := Fingerprint(PurposeVerifyAccount, "$2a$10$abcdefsuffix", at)

	assert.NotEqual(t, base, Fingerprint(PurposeForgotPassword, "$2a$10$abcdefsuffix", at))
	assert.NotEqual(t, base, Fingerprint(PurposeVerifyAccount, "$2a$10$othersuffix", at))
	assert.NotEqual(t, base, Fingerprint(PurposeVerifyAccount, "$2a$10$abcdefsuffix", at.Add(time.Second)))
}

func TestProofTokenRoundTrip(t *testing.T) {
	at := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
	digest := "$2a$10$abcdefsuffix"

	token, err := ProofToken(PurposeVerifyAccount, digest, at)
	require.NoError(t, err)

	assert.True(t, VerifyProofToken(PurposeVerifyAccount, digest, at, token))
	// wrong purpose
	assert.False(t, VerifyProofToken(PurposeForgotPassword, digest, at, token))
	// password changed
	assert.False(t, VerifyProofToken(PurposeVerifyAccount, "$2a$10$newsuffix0", at, token))
	// updated_at bumped
	assert.False(t, VerifyProofToken(PurposeVerifyAccount, digest, at.Add(time.Minute), token))
}

func TestRandomKey(t *testing.T) {
	a := RandomKey(AccessKeyBytes)
	b := RandomKey(AccessKeyBytes)
	assert.NotEqual(t, a, b)
	assert.NotContains(t, a, "+")
	assert.NotContains(t, a, "/")
	assert.NotContains(t, a, "=")

	long := RandomKey(RefreshKeyBytes)
	assert.Greater(t, len(long), len(a))
}

func TestEncodeDecodeID(t *testing.T) {
	id := "0b0da23c-9cc1-4a54-9bc9-8b4d8e8e2b64"
	encoded := EncodeID(id)
	assert.NotEqual(t, id, encoded)

	decoded, err := DecodeID(encoded)
	require.NoError(t, err)
	assert.Equal(t, id, decoded)

	_, err = DecodeID("!!!not base64!!!")
	assert.Error(t, err)
}
