package auth

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"booklib/internal/models"
)

// Claims carried in a session token. The subject holds the customer id.
type Claims struct {
	Librarian bool `json:"librarian"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies HMAC-signed session tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenManager creates a token manager with the given signing
// secret and token lifetime.
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), ttl: ttl}
}

// Issue creates a signed token for the customer.
func (tm *TokenManager) Issue(customer models.Customer, now time.Time) (string, error) {
	claims := Claims{
		Librarian: customer.Librarian,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(customer.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tm.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies a token and returns the customer id and librarian
// flag it carries.
func (tm *TokenManager) Parse(tokenString string) (int64, bool, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return tm.secret, nil
	})
	if err != nil {
		return 0, false, fmt.Errorf("invalid token: %w", err)
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("invalid subject claim: %w", err)
	}

	return id, claims.Librarian, nil
}
