package jwtutil

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// ErrInvalidToken wraps every rejected token
var ErrInvalidToken = errors.New("invalid access token")

// UserClaims represents the JWT claims issued by the inventory API login
type UserClaims struct {
	Email  string `json:"email,omitempty"`
	UserID uint   `json:"user_id,omitempty"`
	jwt.RegisteredClaims
}

// Expiry returns the exp claim, or nil when the token does not expire
func (c *UserClaims) Expiry() *time.Time {
	if c.ExpiresAt == nil {
		return nil
	}
	t := c.ExpiresAt.Time
	return &t
}

// ParseClaims parses the bearer token handed over by the login page.
// With a signing key the HMAC signature is verified; without one only the
// time-based claims are checked and the inventory API stays the authority.
func ParseClaims(tokenString, signingKey string) (*UserClaims, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	claims := &UserClaims{}
	if signingKey == "" {
		if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		if err := claims.Valid(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		return claims, nil
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(signingKey), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, jwt.ErrSignatureInvalid)
	}
	return claims, nil
}
