// Package api provides the HTTP server for Veridi.
// It exposes the credit operations and role-scoped views as a JSON API.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/veridichain/veridi/internal/app/credits"
	"github.com/veridichain/veridi/internal/domain"
	"github.com/veridichain/veridi/internal/infra/observability"
)

// RoleHeader carries the caller's role. Sessions are validated upstream.
const RoleHeader = "X-Veridi-Role"

// Server is the Veridi HTTP API server.
type Server struct {
	svc            *credits.Service
	log            *zap.Logger
	metricsEnabled bool
	timeout        time.Duration
}

// NewServer creates a new API server.
func NewServer(svc *credits.Service, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{svc: svc, log: log.Named("api"), timeout: time.Minute}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetTimeout bounds each request.
func (s *Server) SetTimeout(d time.Duration) {
	if d > 0 {
		s.timeout = d
	}
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.timeout))
	r.Use(traceMiddleware)
	r.Use(corsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/balances", s.handleBalances)
		r.Get("/transactions", s.handleTransactions)
		r.Get("/payments", s.handlePayments)
		r.Get("/certificates", s.handleCertificates)
		r.Get("/compliance-report", s.handleComplianceReport)

		r.Post("/producer/issue", s.handleIssue)
		r.Post("/market/buy", s.handlePurchase)
		r.Post("/factory/quota", s.handleSetQuota)

		r.Route("/gov", func(r chi.Router) {
			r.Post("/freeze", s.handleFreeze)
			r.Post("/certify", s.handleCertify)
			r.Post("/audit", s.handleAudit)
			r.Get("/notifications", s.handleNotifications)
			r.Get("/account-details", s.handleAccountDetails)
			r.Get("/system-health", s.handleSystemHealth)
			r.Get("/operations", s.handleOperations)
		})

		r.Route("/pollution", func(r chi.Router) {
			r.Post("/certificate", s.handleIssueCertificate)
			r.Get("/factory-progress", s.handleFactoryProgress)
		})
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// ─── Responses ──────────────────────────────────────────────────────────────

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// errorBody is the failure envelope.
type errorBody struct {
	Success   bool     `json:"success"`
	Message   string   `json:"message"`
	Kind      string   `json:"kind"`
	Retryable bool     `json:"retryable,omitempty"`
	Progress  *float64 `json:"progress,omitempty"`
}

// writeError writes a categorized failure.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	body := errorBody{Kind: domain.KindOf(err).String(), Retryable: domain.IsRetryable(err)}
	var de *domain.Error
	if errors.As(err, &de) {
		body.Message = de.Message()
		body.Progress = de.Progress
	} else {
		body.Message = err.Error()
	}
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, body)
}

// StatusFor maps an error kind to an HTTP status.
func StatusFor(err error) int {
	retryable := domain.IsRetryable(err)
	switch domain.KindOf(err) {
	case domain.KindAuthorization:
		return http.StatusForbidden
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindLedger:
		if retryable {
			return http.StatusGatewayTimeout
		}
		return http.StatusConflict
	case domain.KindPayment:
		if retryable {
			return http.StatusGatewayTimeout
		}
		return http.StatusPaymentRequired
	case domain.KindCompliance:
		return http.StatusUnprocessableEntity
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindInternal:
		if retryable {
			return http.StatusServiceUnavailable
		}
	}
	return http.StatusInternalServerError
}

// ─── Middleware ─────────────────────────────────────────────────────────────

// traceMiddleware propagates the request id as the trace id of every span.
func traceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			r = r.WithContext(observability.WithTraceID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware adds CORS headers for local development.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+RoleHeader)
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
