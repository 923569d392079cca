package feedback

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/org/feedbackvault/internal/crypto"
	"github.com/org/feedbackvault/internal/storage"
	"github.com/org/feedbackvault/pkg/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// TimestampLayout is the ISO-8601 form written to Feedback.Timestamp (UTC, milliseconds).
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// UnknownUserAgent is recorded when the request carries no User-Agent header.
const UnknownUserAgent = "Unknown"

// FieldCipher protects the comment field at rest.
type FieldCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(envelope string) (string, error)
}

// Options tune error reporting and legacy data handling.
type Options struct {
	// RedactErrors drops the underlying error text from 500 responses.
	RedactErrors bool
	// LegacyPlaintextFallback returns stored comments that are not ciphertext
	// envelopes as-is instead of failing the read.
	LegacyPlaintextFallback bool
}

// Service validates feedback requests and runs them against the store.
type Service struct {
	store  storage.Store
	cipher FieldCipher
	opts   Options
	now    func() time.Time
}

// NewService creates a Service. store and cipher are shared across requests.
func NewService(store storage.Store, cipher FieldCipher, opts Options) *Service {
	return &Service{
		store:  store,
		cipher: cipher,
		opts:   opts,
		now:    time.Now,
	}
}

type internalErrorBody struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

type writeBody struct {
	ID      string        `json:"id"`
	Comment string        `json:"comment"`
	Rating  models.Rating `json:"rating"`
}

// Handle dispatches req by method and always returns a response. Expected failures
// map to 4xx; anything else, including panics, becomes a logged 500.
func (s *Service) Handle(ctx context.Context, req *Request) (resp *Response) {
	logger := log.With().
		Str("request_id", req.RequestID).
		Str("method", req.Method).
		Str("path", req.Path).
		Logger()
	if req.Identity != nil {
		logger = logger.With().Str("principal", req.Identity.PrincipalID).Logger()
	}
	logger.Debug().Msg("handling feedback request")

	op := operationName(req.Method)
	defer func() {
		if r := recover(); r != nil {
			resp = s.errorResponse(logger, req, op, fmt.Errorf("panic: %v", r))
		}
	}()

	var err error
	switch req.Method {
	case http.MethodPost:
		resp, err = s.write(ctx, req)
	case http.MethodGet:
		resp, err = s.read(ctx, req, logger)
	case http.MethodDelete:
		resp, err = s.delete(ctx, req)
	case http.MethodOptions:
		resp = s.preflight()
	default:
		err = methodNotAllowedError()
	}
	if err != nil {
		return s.errorResponse(logger, req, op, err)
	}
	operationsTotal.WithLabelValues(op, outcomeOK).Inc()
	return resp
}

func (s *Service) write(ctx context.Context, req *Request) (*Response, error) {
	raw := req.Body
	if req.Base64Encoded && raw != "" {
		decoded, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("decoding base64 request body: %w", err)
		}
		raw = string(decoded)
	}
	if strings.TrimSpace(raw) == "" {
		raw = "{}"
	}
	var body writeBody
	if err := json.Unmarshal([]byte(raw), &body); err != nil {
		return nil, fmt.Errorf("decoding request body: %w", err)
	}
	if body.ID == "" || body.Comment == "" || body.Rating.IsZero() {
		return nil, validationError("Missing required fields (id, comment, rating)")
	}

	envelope, err := s.cipher.Encrypt(body.Comment)
	if err != nil {
		return nil, fmt.Errorf("encrypting comment: %w", err)
	}
	userAgent := req.Header("User-Agent")
	if userAgent == "" {
		userAgent = UnknownUserAgent
	}
	rec := &models.Feedback{
		ID:        body.ID,
		Rating:    body.Rating,
		Comment:   envelope,
		Timestamp: s.now().UTC().Format(TimestampLayout),
		UserAgent: userAgent,
	}
	if err := s.store.Put(ctx, rec); err != nil {
		return nil, fmt.Errorf("storing feedback %q: %w", rec.ID, err)
	}
	return messageResponse(http.StatusOK, "Feedback submitted successfully."), nil
}

func (s *Service) read(ctx context.Context, req *Request, logger zerolog.Logger) (*Response, error) {
	id := req.Query["id"]
	if id == "" {
		return nil, validationError("Missing id parameter")
	}
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, notFoundError()
		}
		return nil, fmt.Errorf("reading feedback %q: %w", id, err)
	}

	comment, err := s.cipher.Decrypt(rec.Comment)
	if err != nil {
		cipherFailuresTotal.Inc()
		if !s.opts.LegacyPlaintextFallback || !errors.Is(err, crypto.ErrMalformedCiphertext) {
			return nil, fmt.Errorf("decrypting comment of %q: %w", id, err)
		}
		logger.Warn().Str("feedback_id", id).Msg("stored comment is not a ciphertext envelope, returning it as-is")
		comment = rec.Comment
	}
	rec.Comment = comment
	resp, err := jsonResponse(http.StatusOK, rec)
	if err != nil {
		return nil, fmt.Errorf("rendering feedback %q: %w", id, err)
	}
	return resp, nil
}

func (s *Service) delete(ctx context.Context, req *Request) (*Response, error) {
	id := req.Query["id"]
	if id == "" {
		return nil, validationError("Missing id parameter")
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return nil, fmt.Errorf("deleting feedback %q: %w", id, err)
	}
	return messageResponse(http.StatusOK, "Feedback deleted successfully."), nil
}

func (s *Service) preflight() *Response {
	resp := newResponse(http.StatusOK, "")
	resp.Headers[HeaderAllowMethods] = allowMethods
	return resp
}

func (s *Service) errorResponse(logger zerolog.Logger, req *Request, op string, err error) *Response {
	var fe *Error
	if errors.As(err, &fe) {
		outcome := outcomeInvalid
		switch {
		case errors.Is(fe, ErrNotFound):
			outcome = outcomeNotFound
		case errors.Is(fe, ErrMethodNotAllowed):
			outcome = outcomeRejected
		}
		operationsTotal.WithLabelValues(op, outcome).Inc()
		logger.Debug().Int("status", fe.Status).Msg(fe.Message)
		resp := messageResponse(fe.Status, fe.Message)
		if fe.Status == http.StatusMethodNotAllowed {
			resp.Headers["Allow"] = allowMethods
		}
		return resp
	}

	operationsTotal.WithLabelValues(op, outcomeError).Inc()
	logger.Error().Err(err).Str("feedback_id", req.Query["id"]).Msg("internal server error")
	body := internalErrorBody{Message: "Internal server error"}
	if !s.opts.RedactErrors {
		body.Error = err.Error()
	}
	resp, encErr := jsonResponse(http.StatusInternalServerError, body)
	if encErr != nil {
		return messageResponse(http.StatusInternalServerError, body.Message)
	}
	return resp
}

func operationName(method string) string {
	switch method {
	case http.MethodPost:
		return "write"
	case http.MethodGet:
		return "read"
	case http.MethodDelete:
		return "delete"
	case http.MethodOptions:
		return "preflight"
	}
	return "unsupported"
}
