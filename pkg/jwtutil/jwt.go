package jwtutil

import (
	"time"

	"trainhub/pkg/config"

	"github.com/golang-jwt/jwt/v4"
)

var (
	signingKey      []byte
	expirationHours int
)

// AccountClaims represents the JWT claims for an authenticated account
type AccountClaims struct {
	Email     string `json:"email"`
	AccountID uint   `json:"account_id"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// Initialize sets the signing key and token lifetime from configuration
func Initialize(cfg *config.JWTConfig) {
	signingKey = []byte(cfg.SigningKey)
	expirationHours = cfg.ExpirationHours
	if expirationHours <= 0 {
		expirationHours = 24
	}
}

// GenerateToken creates a JWT token with account identity and role
func GenerateToken(email string, accountID uint, role string) (string, error) {
	claims := AccountClaims{
		Email:     email,
		AccountID: accountID,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Duration(expirationHours) * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(signingKey)
}

// ValidateToken validates and parses the JWT token
func ValidateToken(tokenString string) (*AccountClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AccountClaims{}, func(token *jwt.Token) (interface{}, error) {
		return signingKey, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*AccountClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, jwt.ErrSignatureInvalid
}
