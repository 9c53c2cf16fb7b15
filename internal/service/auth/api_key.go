package auth

import "golang.org/x/crypto/bcrypt"

// APIKeyVerifier defines the interface for checking a presented API key
// against the configured hash.
type APIKeyVerifier interface {
	// Verify compares the hashed key with a plaintext candidate.
	// Returns nil on match, ErrInvalidAPIKey otherwise.
	Verify(hashedKey, candidate string) error
}

// BcryptVerifier implements APIKeyVerifier using bcrypt.
type BcryptVerifier struct{}

// NewBcryptVerifier creates a new BcryptVerifier.
func NewBcryptVerifier() *BcryptVerifier {
	return &BcryptVerifier{}
}

// Verify implements APIKeyVerifier using bcrypt comparison.
func (v *BcryptVerifier) Verify(hashedKey, candidate string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hashedKey), []byte(candidate)); err != nil {
		return ErrInvalidAPIKey
	}
	return nil
}
