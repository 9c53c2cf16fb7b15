package auth

import (
	"context"
	"time"
)

// JWTService defines operations for issuing and validating the access
// tokens clients obtain by presenting the API key.
type JWTService interface {
	// GenerateToken creates a signed access token for the given subject.
	GenerateToken(ctx context.Context, subject string) (string, error)

	// ValidateToken validates the provided token string and extracts the
	// claims, or fails with one of the package's sentinel errors.
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims is the validated content of an access token.
type Claims struct {
	Subject   string    `json:"sub,omitempty"`
	IssuedAt  time.Time `json:"iat,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
	ID        string    `json:"jti,omitempty"`
}
