package app

import (
	"context"
	"testing"
	"time"

	"github.com/org/feedbackvault/internal/auth"
	"github.com/org/feedbackvault/internal/config"
	"github.com/org/feedbackvault/internal/crypto"
	"github.com/org/feedbackvault/internal/feedback"
	"github.com/org/feedbackvault/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConfig() config.Config {
	cfg := config.Default()
	cfg.Store.Backend = storage.BackendMemory
	cfg.Crypto.Passphrase = "app-test"
	return cfg
}

func TestNewMemoryApp(t *testing.T) {
	a, err := New(context.Background(), memoryConfig())
	require.NoError(t, err)
	defer a.Close()

	_, ok := a.Store.(*storage.MemoryBackend)
	assert.True(t, ok, "expected memory backend")
	assert.IsType(t, auth.AllowAll{}, a.Authorizer)

	resp := a.Service.Handle(context.Background(), &feedback.Request{
		Method: "POST",
		Body:   `{"id":"x","comment":"hi","rating":"good"}`,
	})
	assert.Equal(t, 200, resp.StatusCode)
}

func TestDerivedJWTSecretVerifiesIssuedTokens(t *testing.T) {
	cfg := memoryConfig()
	cfg.Auth.Mode = auth.ModeJWT
	key := crypto.DeriveKey(cfg.Crypto.Passphrase)

	authz, err := NewAuthorizer(cfg, key)
	require.NoError(t, err)

	secret, err := JWTSecret(cfg, key)
	require.NoError(t, err)
	tok, err := auth.IssueToken(secret, "bob", nil, time.Minute)
	require.NoError(t, err)

	ident, err := authz.Authorize(context.Background(), "Bearer "+tok, "GET/feedback")
	require.NoError(t, err)
	assert.Equal(t, "bob", ident.PrincipalID)
}

func TestJWTSecretPrefersConfigured(t *testing.T) {
	cfg := memoryConfig()
	cfg.Auth.JWTSecret = "explicit"
	secret, err := JWTSecret(cfg, crypto.DeriveKey("x"))
	require.NoError(t, err)
	assert.Equal(t, []byte("explicit"), secret)
}

func TestNewAuthorizerMissingKeyFile(t *testing.T) {
	cfg := memoryConfig()
	cfg.Auth.Mode = auth.ModeJWT
	cfg.Auth.JWTPublicKeyFile = "/nonexistent/key.pem"
	_, err := NewAuthorizer(cfg, crypto.DeriveKey("x"))
	assert.ErrorContains(t, err, "public key")
}

func TestOpenStoreUnknownBackend(t *testing.T) {
	cfg := memoryConfig()
	cfg.Store.Backend = "redis"
	_, err := OpenStore(context.Background(), cfg)
	assert.Error(t, err)
}
