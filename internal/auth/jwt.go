package auth

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/org/feedbackvault/internal/policy"
	"github.com/org/feedbackvault/pkg/models"
)

// Claims are the token claims the JWT authorizer reads. Username fields cover both
// plain tokens and Cognito user-pool tokens.
type Claims struct {
	jwt.RegisteredClaims
	Scope           string `json:"scope,omitempty"`
	Username        string `json:"username,omitempty"`
	CognitoUsername string `json:"cognito:username,omitempty"`
	Email           string `json:"email,omitempty"`
}

func (c *Claims) username() string {
	for _, v := range []string{c.Username, c.CognitoUsername, c.Email} {
		if v != "" {
			return v
		}
	}
	return ""
}

func (c *Claims) hasScope(scope string) bool {
	return slices.Contains(strings.Fields(c.Scope), scope)
}

// JWTConfig configures token verification. Exactly one of HMACSecret and
// PublicKeyPEM must be set.
type JWTConfig struct {
	HMACSecret    []byte
	PublicKeyPEM  []byte
	Issuer        string
	Audience      string
	RequireScopes bool
	Leeway        time.Duration
}

// JWTAuthorizer verifies signed bearer tokens.
type JWTAuthorizer struct {
	parser        *jwt.Parser
	key           any
	requireScopes bool
}

// NewJWTAuthorizer validates cfg and returns a ready authorizer.
func NewJWTAuthorizer(cfg JWTConfig) (*JWTAuthorizer, error) {
	var (
		key    any
		method string
	)
	switch {
	case len(cfg.HMACSecret) > 0 && len(cfg.PublicKeyPEM) > 0:
		return nil, errors.New("jwt: configure either an HMAC secret or a public key, not both")
	case len(cfg.HMACSecret) > 0:
		key, method = cfg.HMACSecret, jwt.SigningMethodHS256.Alg()
	case len(cfg.PublicKeyPEM) > 0:
		pub, err := jwt.ParseRSAPublicKeyFromPEM(cfg.PublicKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("jwt: parsing public key: %w", err)
		}
		key, method = pub, jwt.SigningMethodRS256.Alg()
	default:
		return nil, errors.New("jwt: no verification key configured")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{method}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	return &JWTAuthorizer{
		parser:        jwt.NewParser(opts...),
		key:           key,
		requireScopes: cfg.RequireScopes,
	}, nil
}

func (a *JWTAuthorizer) Authorize(_ context.Context, credential, resource string) (*models.Identity, error) {
	raw := BearerToken(credential)
	if raw == "" {
		return nil, ErrMissingCredential
	}
	claims := &Claims{}
	token, err := a.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return a.key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", ErrUnauthorized)
	}

	ident := &models.Identity{
		PrincipalID: claims.Subject,
		Context:     map[string]string{"user": claims.username()},
		Policy:      policy.Allow(resource),
	}
	if a.requireScopes {
		if scope := ScopeFor(policy.MethodOf(resource)); scope != "" && !claims.hasScope(scope) {
			ident.Policy = policy.Deny(resource)
		}
	}
	return ident, nil
}

// IssueToken signs an HS256 token for subject. It backs local development and tests;
// production tokens come from the identity provider.
func IssueToken(secret []byte, subject string, scopes []string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Scope:    strings.Join(scopes, " "),
		Username: subject,
	})
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}
