// Package api provides the HTTP surface of the settlement core.
// Collaborators (profile pages, listing pages, the Active Items dashboard,
// operational tooling) read and drive the core through it. Identity is
// external: the acting member arrives in the X-Member-ID header.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Yusufss4/swe573-practice-sub001/internal/app/commitment"
	"github.com/Yusufss4/swe573-practice-sub001/internal/app/feedback"
	"github.com/Yusufss4/swe573-practice-sub001/internal/app/ledger"
	"github.com/Yusufss4/swe573-practice-sub001/internal/domain"
	"github.com/Yusufss4/swe573-practice-sub001/internal/infra/observability"
)

// MemberHeader carries the authenticated member id set by the identity
// collaborator in front of this server.
const MemberHeader = "X-Member-ID"

// Version is reported by /api/version.
var Version = "0.1.0"

// Server is the settlement core HTTP API server.
type Server struct {
	ledger         *ledger.Ledger
	commitments    *commitment.Service
	feedback       *feedback.Gate
	alerts         *observability.AlertLog
	log            *slog.Logger
	metricsEnabled bool
}

// NewServer creates a new API server. alerts may be nil.
func NewServer(l *ledger.Ledger, c *commitment.Service, f *feedback.Gate, alerts *observability.AlertLog, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		ledger:      l,
		commitments: c,
		feedback:    f,
		alerts:      alerts,
		log:         logger.With("component", "api"),
	}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(corsMiddleware)
	r.Use(metricsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/api/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"version": Version})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/members", func(r chi.Router) {
			r.Post("/", s.handleRegister)
			r.Get("/{id}/balance", s.handleBalance)
			r.Get("/{id}/history", s.handleHistory)
			r.Get("/{id}/ratings", s.handlePublicRatings)
			r.Get("/{id}/ratings/summary", s.handleRatingSummary)
			r.Get("/{id}/active", s.handleActiveItems)
		})

		r.Route("/listings", func(r chi.Router) {
			r.Post("/", s.handleCreateListing)
			r.Get("/{id}", s.handleGetListing)
			r.Put("/{id}/capacity", s.handleSetCapacity)
			r.Post("/{id}/archive", s.handleArchive)
			r.Post("/{id}/expire", s.handleExpire)
			r.Get("/{id}/commitments", s.handleListCommitments)
			r.Post("/{id}/commitments", s.handlePropose)
		})

		r.Route("/commitments/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetCommitment)
			r.Post("/accept", s.transition(s.commitments.Accept))
			r.Post("/decline", s.transition(s.commitments.Decline))
			r.Post("/cancel", s.transition(s.commitments.Cancel))
			r.Post("/confirm", s.transition(s.commitments.Confirm))
			r.Post("/ratings", s.handleSubmitRating)
			r.Get("/ratings/status", s.handleRatingStatus)
		})

		// Operational tooling
		r.Route("/admin", func(r chi.Router) {
			r.Post("/ratings/sweep", s.handleSweep)
			r.Get("/members/{id}/integrity", s.handleIntegrity)
			r.Post("/audit", s.handleAudit)
			r.Get("/alerts", s.handleAlerts)
		})
	})

	// Prometheus metrics endpoint
	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errorType(status),
		},
	})
}

func errorType(status int) string {
	switch status {
	case http.StatusNotFound:
		return "not_found"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusUnauthorized:
		return "unauthenticated"
	case http.StatusConflict:
		return "conflict"
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return "invalid_request"
	}
	return "error"
}

// statusFor maps a core error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrMemberNotFound),
		errors.Is(err, domain.ErrListingNotFound),
		errors.Is(err, domain.ErrCommitmentNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrCapacityExceeded),
		errors.Is(err, domain.ErrDuplicateTransfer),
		errors.Is(err, domain.ErrDuplicateRating),
		errors.Is(err, domain.ErrDuplicateProposal),
		errors.Is(err, domain.ErrMemberExists),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrListingUnavailable),
		errors.Is(err, domain.ErrCapacityBelowAccepted):
		return http.StatusConflict
	case errors.Is(err, domain.ErrReciprocityViolation),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidCapacity),
		errors.Is(err, domain.ErrInvalidListing),
		errors.Is(err, domain.ErrInvalidScore),
		errors.Is(err, domain.ErrNotEligible),
		errors.Is(err, domain.ErrSelfExchange),
		errors.Is(err, domain.ErrSelfTransfer),
		errors.Is(err, domain.ErrInvalidCursor):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// fail writes err in business-rule wording. Unexpected errors are logged
// and never echoed to the caller.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "error", err, "method", r.Method, "path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()))
	}
	writeError(w, status, domain.UserMessage(err))
}

// actor returns the acting member or writes 401.
func actor(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.Header.Get(MemberHeader)
	if id == "" {
		writeError(w, http.StatusUnauthorized, "missing "+MemberHeader+" header")
		return "", false
	}
	return id, true
}

// decode reads a JSON body into v or writes 400.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

// corsMiddleware adds CORS headers for browser collaborators.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+MemberHeader)
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// metricsMiddleware records request counts and latency by route pattern.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		observability.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		observability.HTTPLatency.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
