package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/org/feedbackvault/internal/feedback"
	"github.com/org/feedbackvault/pkg/models"
)

// maxBodyBytes caps inbound feedback bodies.
const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// writeResponse copies a normalized response onto w.
func writeResponse(w http.ResponseWriter, resp *feedback.Response) {
	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(resp.StatusCode)
	io.WriteString(w, resp.Body) //nolint:errcheck
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeResponse(w, feedback.MessageResponse(code, msg))
}

// toFeedbackRequest flattens an HTTP request the way API Gateway presents it:
// one value per header and per query parameter.
func toFeedbackRequest(r *http.Request, body string, ident *models.Identity) *feedback.Request {
	headers := make(map[string]string, len(r.Header))
	for k, v := range r.Header {
		headers[k] = strings.Join(v, ",")
	}
	query := make(map[string]string)
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			query[k] = v[0]
		}
	}
	return &feedback.Request{
		RequestID: requestIDFromCtx(r.Context()),
		Method:    r.Method,
		Path:      r.URL.Path,
		Headers:   headers,
		Query:     query,
		Body:      body,
		Identity:  ident,
	}
}
