package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Issuer is set on every token and required when parsing.
const Issuer = "relayfeed"

// MinSecretLength is the shortest HMAC secret accepted.
const MinSecretLength = 32

// Claims are the JWT claims of an admin API token.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// ValidateSecret rejects secrets too short for HS256.
func ValidateSecret(secret []byte) error {
	if len(secret) < MinSecretLength {
		return fmt.Errorf("JWT secret must be at least %d bytes", MinSecretLength)
	}
	return nil
}

// IssueToken signs an HS256 token for subject with role, valid for ttl from now.
func IssueToken(secret []byte, subject, role string, ttl time.Duration, now time.Time) (string, error) {
	if err := ValidateSecret(secret); err != nil {
		return "", err
	}
	if subject == "" {
		return "", errors.New("subject is required")
	}
	if _, ok := RolePermissions[role]; !ok {
		return "", fmt.Errorf("invalid role %q", role)
	}
	if ttl <= 0 {
		return "", errors.New("ttl must be positive")
	}

	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseToken verifies raw and returns its claims. Only HS256 tokens from Issuer with an
// expiry, a subject and a role are accepted.
func ParseToken(secret []byte, raw string, now func() time.Time) (*Claims, error) {
	claims := &Claims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(Issuer),
	}
	if now != nil {
		opts = append(opts, jwt.WithTimeFunc(now))
	}

	tok, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	}, opts...)
	if err != nil || !tok.Valid {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.New("token expired")
		}
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return nil, errors.New("invalid sub claim")
	}
	if claims.Role == "" {
		return nil, errors.New("invalid role claim")
	}
	return claims, nil
}
