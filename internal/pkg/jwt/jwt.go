package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// Decode failure kinds. Callers match with errors.Is.
var (
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenMalformed = errors.New("token malformed")
	ErrMissingSubject = errors.New("token missing subject")
)

// Codec signs and verifies short-lived claim bundles with the server secret.
// Tokens signed with a different secret or algorithm are rejected.
type Codec struct {
	secret []byte
	method jwtlib.SigningMethod
}

// NewCodec builds a codec for the configured HMAC algorithm (HS256/384/512).
func NewCodec(secret, algorithm string) (*Codec, error) {
	if secret == "" {
		return nil, errors.New("jwt: secret is required")
	}
	if algorithm == "" {
		algorithm = "HS256"
	}
	method := jwtlib.GetSigningMethod(strings.ToUpper(algorithm))
	if method == nil {
		return nil, fmt.Errorf("jwt: unknown signing algorithm %q", algorithm)
	}
	if _, ok := method.(*jwtlib.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("jwt: unsupported signing algorithm %q", algorithm)
	}
	return &Codec{secret: []byte(secret), method: method}, nil
}

// Encode signs the claims with exp = now + ttl and returns the compact token.
func (c *Codec) Encode(claims jwtlib.MapClaims, ttl time.Duration) (string, error) {
	now := time.Now()
	payload := make(jwtlib.MapClaims, len(claims)+2)
	for k, v := range claims {
		payload[k] = v
	}
	payload["exp"] = jwtlib.NewNumericDate(now.Add(ttl))
	payload["iat"] = jwtlib.NewNumericDate(now)
	return jwtlib.NewWithClaims(c.method, payload).SignedString(c.secret)
}

// Decode verifies signature and expiry and returns the claims. It fails with
// ErrTokenExpired past exp, ErrMissingSubject when the subject claim is
// absent, and ErrTokenMalformed for every other defect (bad signature,
// foreign algorithm, garbage input).
func (c *Codec) Decode(token string) (jwtlib.MapClaims, error) {
	parsed, err := jwtlib.Parse(token, func(t *jwtlib.Token) (interface{}, error) {
		if t.Method.Alg() != c.method.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwtlib.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenMalformed
	}

	claims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenMalformed
	}
	if sub, _ := claims["sub"].(string); sub == "" {
		return nil, ErrMissingSubject
	}
	return claims, nil
}
