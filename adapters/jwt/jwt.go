package jwt

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the caller claims the gateway accepts and forwards.
type Claims struct {
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// NewClaims returns claims for subject valid for ttl.
func NewClaims(issuer, subject string, roles []string, ttl time.Duration) *Claims {
	now := time.Now()
	return &Claims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
}

// AsMap returns the claims in the shape forwarded to backends.
func (c *Claims) AsMap() map[string]any {
	out := map[string]any{"sub": c.Subject}
	if c.Issuer != "" {
		out["iss"] = c.Issuer
	}
	if len(c.Roles) > 0 {
		roles := make([]any, len(c.Roles))
		for i, r := range c.Roles {
			roles[i] = r
		}
		out["roles"] = roles
	}
	return out
}

// GenerateJWT signs claims with HMAC SHA256.
func GenerateJWT(claims *Claims, secret string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateJWT parses tokenString, checking signature, expiry and, when
// set, issuer. With validRoles non-empty every role must be one of them.
func ValidateJWT(tokenString, secret, issuer string, validRoles []string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("token is invalid")
	}
	if claims.Subject == "" {
		return nil, errors.New("subject claim is missing")
	}

	if len(validRoles) > 0 {
		for _, role := range claims.Roles {
			if !slices.Contains(validRoles, role) {
				return nil, fmt.Errorf("invalid role: %s", role)
			}
		}
	}
	return claims, nil
}
