// Package auth verifies the HS256 bearer tokens that front the HTTP API.
// Login itself is external to this subsystem: tokens are minted by the
// surrounding application, and this package only validates them and
// extracts the account id.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mfuentesc/siidte/internal/common"
)

// Claims extends the registered claims with the account identifier.
type Claims struct {
	jwt.RegisteredClaims
	AccountID string
}

// GenerateToken mints an HS256 token for an account. Used by tests and by
// operator tooling; production tokens come from the surrounding application
// sharing the same secret.
func GenerateToken(accountID string, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
		AccountID: accountID,
	})

	return token.SignedString(secretKey)
}

// GetAccountIDFromToken validates the token signature and expiry and
// returns the embedded account id.
func GetAccountIDFromToken(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	})
	if err != nil {
		return "", err
	}

	if !token.Valid {
		return "", common.ErrInvalidToken
	}

	return claims.AccountID, nil
}
