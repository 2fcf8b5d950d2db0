// Package auth validates API key/secret pairs against stored credentials.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/tsi-mlops/mldata/pkg/mldata"
)

const minSecretLength = 16

// ValidateSecret checks minimal secret requirements.
func ValidateSecret(secret string) error {
	if len(secret) < minSecretLength {
		return fmt.Errorf("secret must be at least %d characters", minSecretLength)
	}
	return nil
}

// HashSecret hashes one plaintext API secret for persistent storage.
func HashSecret(secret string) (string, error) {
	if err := ValidateSecret(secret); err != nil {
		return "", err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// VerifySecret verifies a plaintext secret against a bcrypt hash.
func VerifySecret(secretHash, candidate string) bool {
	if strings.TrimSpace(secretHash) == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(secretHash), []byte(candidate)) == nil
}

// GenerateToken returns a random hex token suitable for an API key or
// secret. n is the number of random bytes; the string is twice as long.
func GenerateToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// CredentialStore is the subset of the repository the authenticator needs.
type CredentialStore interface {
	GetCredentialByAPIKey(ctx context.Context, apiKey string) (*mldata.Credential, error)
}

// Authenticator checks key/secret pairs against the credential store.
type Authenticator struct {
	store CredentialStore
}

// New creates an Authenticator backed by the given store.
func New(store CredentialStore) *Authenticator {
	return &Authenticator{store: store}
}

// Authenticate looks up the API key and verifies the secret. Unknown
// keys and bad secrets both return ErrInvalidCredentials so callers
// cannot distinguish the two.
func (a *Authenticator) Authenticate(ctx context.Context, apiKey, apiSecret string) (*mldata.Credential, error) {
	cred, err := a.store.GetCredentialByAPIKey(ctx, apiKey)
	if err != nil {
		return nil, mldata.ErrInvalidCredentials
	}
	if !VerifySecret(cred.SecretHash, apiSecret) {
		return nil, mldata.ErrInvalidCredentials
	}
	return cred, nil
}
