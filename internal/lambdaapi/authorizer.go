package lambdaapi

import (
	"context"
	"errors"

	"github.com/aws/aws-lambda-go/events"
	"github.com/org/feedbackvault/internal/auth"
	"github.com/org/feedbackvault/pkg/models"
	"github.com/rs/zerolog/log"
)

// errUnauthorized is the exact error API Gateway maps to a 401 for TOKEN authorizers.
var errUnauthorized = errors.New("Unauthorized") //nolint:staticcheck

// AuthorizerHandler serves API Gateway TOKEN authorizer events.
type AuthorizerHandler struct {
	authz auth.Authorizer
}

// NewAuthorizerHandler wraps authz.
func NewAuthorizerHandler(authz auth.Authorizer) *AuthorizerHandler {
	return &AuthorizerHandler{authz: authz}
}

// Handle verifies the token against the method ARN and returns the policy to apply.
// Credential failures return errUnauthorized; denials return a Deny document.
func (h *AuthorizerHandler) Handle(ctx context.Context, ev events.APIGatewayCustomAuthorizerRequest) (events.APIGatewayCustomAuthorizerResponse, error) {
	ident, err := h.authz.Authorize(ctx, ev.AuthorizationToken, ev.MethodArn)
	if err != nil {
		if !errors.Is(err, auth.ErrMissingCredential) && !errors.Is(err, auth.ErrUnauthorized) {
			log.Error().Err(err).Str("method_arn", ev.MethodArn).Msg("authorizer failed")
		} else {
			log.Debug().Err(err).Str("method_arn", ev.MethodArn).Msg("credential rejected")
		}
		return events.APIGatewayCustomAuthorizerResponse{}, errUnauthorized
	}

	authCtx := make(map[string]any, len(ident.Context))
	for k, v := range ident.Context {
		authCtx[k] = v
	}
	return events.APIGatewayCustomAuthorizerResponse{
		PrincipalID:    ident.PrincipalID,
		PolicyDocument: toPolicy(ident.Policy),
		Context:        authCtx,
	}, nil
}

func toPolicy(doc models.PolicyDocument) events.APIGatewayCustomAuthorizerPolicy {
	out := events.APIGatewayCustomAuthorizerPolicy{Version: doc.Version}
	for _, st := range doc.Statement {
		out.Statement = append(out.Statement, events.IAMPolicyStatement{
			Action:   []string{st.Action},
			Effect:   st.Effect,
			Resource: []string{st.Resource},
		})
	}
	return out
}
