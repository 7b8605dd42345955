package gateway

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims is the minimal claim set the gateway trusts out of a bearer
// token: the external player id the rest of the system addresses a
// connection by.
type TokenClaims struct {
	PlayerID string `json:"playerId"`
	jwt.RegisteredClaims
}

// TokenVerifier checks an authenticate message's optional bearer token.
// Implemented by HMACVerifier when a secret is configured, or by
// NoopVerifier when the deployment has none (matching config.JWTSecret's
// documented "empty means tokens are not verified" behavior).
type TokenVerifier interface {
	Verify(token, claimedPlayerID string) error
}

// NoopVerifier accepts every claimed player id without inspecting token,
// used when no JWT_SECRET is configured.
type NoopVerifier struct{}

func (NoopVerifier) Verify(token, claimedPlayerID string) error { return nil }

// HMACVerifier checks an HS256 token signed with a shared secret and
// requires its playerId claim to match the client's claimed player id,
// preventing a stolen/guessed token from impersonating a different seat.
type HMACVerifier struct {
	secret []byte
}

// NewHMACVerifier builds a verifier bound to a shared secret.
func NewHMACVerifier(secret string) *HMACVerifier {
	return &HMACVerifier{secret: []byte(secret)}
}

func (v *HMACVerifier) Verify(token, claimedPlayerID string) error {
	if token == "" {
		return errors.New("token required")
	}

	claims := &TokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return v.secret, nil
	})
	if err != nil {
		return err
	}
	if !parsed.Valid {
		return errors.New("token is invalid")
	}
	if claims.PlayerID != claimedPlayerID {
		return errors.New("token does not match claimed player id")
	}
	return nil
}
