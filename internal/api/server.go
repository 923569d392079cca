package api

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/org/feedbackvault/internal/auth"
	"github.com/org/feedbackvault/internal/feedback"
	"github.com/org/feedbackvault/pkg/models"
	"github.com/rs/zerolog/log"
)

// Config holds server configuration.
type Config struct {
	ListenAddr     string
	TLSCertFile    string
	TLSKeyFile     string
	RateLimitRPS   float64
	RateLimitBurst int

	// TrustProxyHeaders takes the client address from X-Forwarded-For.
	TrustProxyHeaders bool
}

// AuditLogger is the interface the server needs from an audit logger.
type AuditLogger interface {
	LogRequest(ctx context.Context, entry *models.AuditEntry)
}

// Server is the HTTP front of the feedback service.
type Server struct {
	svc     *feedback.Service
	authz   auth.Authorizer
	auditor AuditLogger
	cfg     Config
	httpSrv *http.Server
}

// NewServer creates a Server. auditor may be nil to disable audit records.
func NewServer(svc *feedback.Service, authz auth.Authorizer, auditor AuditLogger, cfg Config) *Server {
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 100
	}
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 200
	}
	return &Server{
		svc:     svc,
		authz:   authz,
		auditor: auditor,
		cfg:     cfg,
	}
}

// BuildRouter wires up all routes and returns a chi router.
func (s *Server) BuildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(metricsMiddleware)
	r.Use(newRateLimiter(s.cfg.RateLimitRPS, s.cfg.RateLimitBurst, s.cfg.TrustProxyHeaders).middleware)
	if s.auditor != nil {
		r.Use(auditMiddleware(s.auditor, s.cfg.TrustProxyHeaders))
	}

	// Unauthenticated
	r.Handle("/metrics", MetricsHandler())
	r.Get("/healthz", s.HealthHandler)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware(s.authz))
		r.HandleFunc("/feedback", s.FeedbackHandler)
	})

	return r
}

// HealthHandler handles GET /healthz
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// FeedbackHandler handles every method on /feedback; the service decides which are supported.
func (s *Server) FeedbackHandler(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Unable to read request body")
		return
	}
	req := toFeedbackRequest(r, string(data), identityFromCtx(r.Context()))
	writeResponse(w, s.svc.Handle(r.Context(), req))
}

// Start begins listening on the configured address.
func (s *Server) Start() error {
	handler := s.BuildRouter()

	s.httpSrv = &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if s.cfg.TLSCertFile != "" && s.cfg.TLSKeyFile != "" {
		s.httpSrv.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
			CurvePreferences: []tls.CurveID{
				tls.CurveP256,
				tls.X25519,
			},
		}
		log.Info().Str("addr", s.cfg.ListenAddr).Msg("starting HTTPS server")
		return s.httpSrv.ListenAndServeTLS(s.cfg.TLSCertFile, s.cfg.TLSKeyFile)
	}

	log.Info().Str("addr", s.cfg.ListenAddr).Msg("starting HTTP server")
	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}
