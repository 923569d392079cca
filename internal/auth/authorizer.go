package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/org/feedbackvault/internal/policy"
	"github.com/org/feedbackvault/pkg/models"
	"github.com/rs/zerolog/log"
)

var (
	// ErrMissingCredential is returned when the call carries no bearer credential.
	ErrMissingCredential = errors.New("missing credential")
	// ErrUnauthorized is returned when a credential fails verification.
	ErrUnauthorized = errors.New("unauthorized")
)

// Mode names accepted by configuration.
const (
	ModeAllowAll = "allow_all"
	ModeJWT      = "jwt"
)

// Authorizer verifies an inbound credential for a target resource. On success it
// returns the caller's identity together with the policy document to enforce;
// a denied-but-authenticated caller gets a Deny document rather than an error.
type Authorizer interface {
	Authorize(ctx context.Context, credential, resource string) (*models.Identity, error)
}

// AllowAll admits every call with a fixed identity. It is a stand-in for real
// credential verification and must not be used for anything public.
type AllowAll struct{}

func (AllowAll) Authorize(_ context.Context, _ string, resource string) (*models.Identity, error) {
	log.Debug().Str("resource", resource).Msg("allow-all authorizer admitted call")
	return &models.Identity{
		PrincipalID: "user",
		Context:     map[string]string{"user": "test-user"},
		Policy:      policy.Allow(resource),
	}, nil
}

// BearerToken strips an optional "Bearer " prefix from an Authorization header value.
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return header
}

// Scope names carried in the "scope" claim, one per feedback operation.
const (
	ScopeRead   = "feedback:read"
	ScopeWrite  = "feedback:write"
	ScopeDelete = "feedback:delete"
)

// ScopeFor returns the scope a method needs, or "" when none applies.
func ScopeFor(method string) string {
	switch strings.ToUpper(method) {
	case "GET":
		return ScopeRead
	case "POST":
		return ScopeWrite
	case "DELETE":
		return ScopeDelete
	}
	return ""
}
