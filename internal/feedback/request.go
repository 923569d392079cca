package feedback

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/org/feedbackvault/pkg/models"
)

// CORS headers attached to every response.
const (
	HeaderAllowOrigin  = "Access-Control-Allow-Origin"
	HeaderAllowHeaders = "Access-Control-Allow-Headers"
	HeaderAllowMethods = "Access-Control-Allow-Methods"

	allowOrigin  = "*"
	allowHeaders = "Content-Type,Authorization"
	allowMethods = "OPTIONS,GET,POST,DELETE"
)

// Request is a transport-neutral view of an inbound call.
type Request struct {
	RequestID string
	Method    string
	Path      string
	Headers   map[string]string
	Query     map[string]string
	Body      string
	// Base64Encoded marks Body as base64, as API Gateway sends binary payloads.
	Base64Encoded bool
	Identity      *models.Identity
}

// Header returns the value of the named header, matching the name case-insensitively.
func (r *Request) Header(name string) string {
	if v, ok := r.Headers[name]; ok {
		return v
	}
	for k, v := range r.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// Response is the normalized {statusCode, headers, body} triple.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       string
}

func newResponse(status int, body string) *Response {
	return &Response{
		StatusCode: status,
		Headers: map[string]string{
			HeaderAllowOrigin:  allowOrigin,
			HeaderAllowHeaders: allowHeaders,
			"Content-Type":     "application/json",
		},
		Body: body,
	}
}

func jsonResponse(status int, v any) (*Response, error) {
	body, err := encodeBody(v)
	if err != nil {
		return nil, err
	}
	return newResponse(status, body), nil
}

// messageResponse encodes a map of strings, which cannot fail.
func messageResponse(status int, msg string) *Response {
	body, _ := encodeBody(map[string]string{"message": msg})
	return newResponse(status, body)
}

// encodeBody marshals v without HTML escaping, matching JSON.stringify output.
func encodeBody(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("encoding response body: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// MessageResponse builds a {"message": msg} response carrying the CORS headers.
// Transports use it for rejections that never reach the Service.
func MessageResponse(status int, msg string) *Response {
	return messageResponse(status, msg)
}
