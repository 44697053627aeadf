package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Issuer is the iss claim stamped into locally minted tokens.
const Issuer = "portcullis"

// Minted describes a freshly signed session token.
type Minted struct {
	Value     string    `json:"value"`
	TokenID   string    `json:"token_id"`
	Subject   string    `json:"subject"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Mint signs an HS256 session token for subject, valid for ttl. A
// negative ttl produces an already-expired token.
func Mint(secret []byte, subject string, ttl time.Duration) (*Minted, error) {
	if len(secret) == 0 {
		return nil, errors.New("token: empty signing secret")
	}
	if subject == "" {
		return nil, errors.New("token: empty subject")
	}

	now := time.Now()
	exp := now.Add(ttl)
	jti := uuid.NewString()

	claims := jwt.RegisteredClaims{
		Issuer:    Issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
		ID:        jti,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return nil, fmt.Errorf("signing session token: %w", err)
	}

	return &Minted{
		Value:     signed,
		TokenID:   jti,
		Subject:   subject,
		IssuedAt:  now,
		ExpiresAt: exp,
	}, nil
}
