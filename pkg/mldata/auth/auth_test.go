package auth

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsi-mlops/mldata/pkg/mldata"
	memoryrepo "github.com/tsi-mlops/mldata/pkg/mldata/repo/memory"
)

func TestHashAndVerifySecret(t *testing.T) {
	hash, err := HashSecret("a-long-enough-secret")
	require.NoError(t, err)
	assert.NotEqual(t, "a-long-enough-secret", hash)

	assert.True(t, VerifySecret(hash, "a-long-enough-secret"))
	assert.False(t, VerifySecret(hash, "a-different-secret!!"))
	assert.False(t, VerifySecret("", "a-long-enough-secret"))
}

func TestHashSecretRejectsShortSecret(t *testing.T) {
	_, err := HashSecret("short")
	assert.Error(t, err)
}

func TestGenerateToken(t *testing.T) {
	a, err := GenerateToken(16)
	require.NoError(t, err)
	b, err := GenerateToken(16)
	require.NoError(t, err)

	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	repo := memoryrepo.New()

	hash, err := HashSecret("correct-horse-battery")
	require.NoError(t, err)
	require.NoError(t, repo.CreateCredential(ctx, &mldata.Credential{
		ID:           uuid.New(),
		FriendlyName: "ci",
		APIKey:       "key-1",
		SecretHash:   hash,
	}))

	authn := New(repo)

	cred, err := authn.Authenticate(ctx, "key-1", "correct-horse-battery")
	require.NoError(t, err)
	assert.Equal(t, "ci", cred.FriendlyName)

	_, err = authn.Authenticate(ctx, "key-1", "wrong-secret-entirely")
	assert.ErrorIs(t, err, mldata.ErrInvalidCredentials)

	_, err = authn.Authenticate(ctx, "no-such-key", "correct-horse-battery")
	assert.ErrorIs(t, err, mldata.ErrInvalidCredentials)
}
