// Package lambdaapi adapts the feedback service and authorizers to API Gateway
// Lambda events.
package lambdaapi

import (
	"context"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/org/feedbackvault/internal/feedback"
	"github.com/org/feedbackvault/pkg/models"
)

// Handler serves API Gateway proxy events.
type Handler struct {
	svc *feedback.Service
}

// NewHandler returns a Handler backed by svc.
func NewHandler(svc *feedback.Service) *Handler {
	return &Handler{svc: svc}
}

// Handle is the lambda.Start entry point. It never returns an error: every failure
// is already a response.
func (h *Handler) Handle(ctx context.Context, ev events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return toResponse(h.svc.Handle(ctx, toRequest(ev))), nil
}

// toRequest passes base64 bodies through undecoded so a bad payload reaches the
// service's error boundary like any other malformed body.
func toRequest(ev events.APIGatewayProxyRequest) *feedback.Request {
	headers := ev.Headers
	if headers == nil {
		headers = map[string]string{}
	}
	query := ev.QueryStringParameters
	if query == nil {
		query = map[string]string{}
	}
	return &feedback.Request{
		RequestID:     ev.RequestContext.RequestID,
		Method:        ev.HTTPMethod,
		Path:          ev.Path,
		Headers:       headers,
		Query:         query,
		Body:          ev.Body,
		Base64Encoded: ev.IsBase64Encoded,
		Identity:      identityFromAuthorizer(ev.RequestContext.Authorizer),
	}
}

// identityFromAuthorizer rebuilds the caller identity from the context API Gateway
// forwards from the authorizer. Values arrive as strings, numbers or booleans.
func identityFromAuthorizer(authz map[string]any) *models.Identity {
	if len(authz) == 0 {
		return nil
	}
	ident := &models.Identity{Context: map[string]string{}}
	for k, v := range authz {
		if k == "principalId" {
			ident.PrincipalID = fmt.Sprint(v)
			continue
		}
		ident.Context[k] = fmt.Sprint(v)
	}
	return ident
}

func toResponse(resp *feedback.Response) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Headers,
		Body:       resp.Body,
	}
}
