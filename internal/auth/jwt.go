package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the identity fields embedded in access tokens. Tokens
// are issued elsewhere; this package only verifies them.
type Claims struct {
	OrgID string `json:"org_id"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Validate is invoked by the JWT parser after signature and expiry
// checks. A correctly signed token is still rejected when it names no
// org or an unknown role.
func (c *Claims) Validate() error {
	if c.OrgID == "" {
		return errors.New("token missing org_id")
	}
	if _, ok := NormalizeRole(c.Role); !ok {
		return fmt.Errorf("unknown role %q", c.Role)
	}
	return nil
}

// ParseJWT verifies an HS256 token against the shared secret and
// returns its claims.
func ParseJWT(tokenString string, secret []byte) (*Claims, error) {
	if tokenString == "" {
		return nil, errors.New("auth: empty token")
	}
	if len(secret) == 0 {
		return nil, errors.New("auth: secret not configured")
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}
	return claims, nil
}
