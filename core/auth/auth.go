// Package auth issues and checks the producer tokens that guard write endpoints.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/zeebo/errs"
)

// ErrInvalidToken is returned for tokens that fail to parse, verify or are expired.
var ErrInvalidToken = errs.Class("invalid token")

const issuer = "minisite"

// Claims is the token payload. An empty ProjectID grants access to every project.
type Claims struct {
	ProjectID string `json:"pid,omitempty"`
	jwt.RegisteredClaims
}

// Allows reports whether the claims cover projectID.
func (c *Claims) Allows(projectID string) bool {
	return c.ProjectID == "" || c.ProjectID == projectID
}

// GenerateToken signs an HS256 token for subject, scoped to projectID when it is not empty.
func GenerateToken(secret []byte, subject, projectID string, expiry time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", ErrInvalidToken.New("empty signing secret")
	}
	now := time.Now()
	claims := &Claims{
		ProjectID: projectID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ParseToken verifies tokenStr and returns its claims. Only HS256 is accepted.
func ParseToken(secret []byte, tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		return nil, ErrInvalidToken.Wrap(err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken.New("invalid token")
	}
	return claims, nil
}
