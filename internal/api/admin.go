package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Yusufss4/swe573-practice-sub001/internal/domain"
	"github.com/Yusufss4/swe573-practice-sub001/internal/infra/observability"
)

// ─── Operational Endpoints ──────────────────────────────────────────────────
// These are the only place an integrity mismatch is reported. They are meant
// to sit behind the operator network, not the member-facing gateway.

// handleSweep runs the rating timeout sweep once.
func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	res, err := s.feedback.Sweep(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleIntegrity verifies one member's ledger. A mismatch is a 200 with
// ok=false: the check itself succeeded.
func (s *Server) handleIntegrity(w http.ResponseWriter, r *http.Request) {
	rep, err := s.ledger.VerifyIntegrity(r.Context(), chi.URLParam(r, "id"))
	if err != nil && !errors.Is(err, domain.ErrIntegrityMismatch) {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// handleAudit verifies every member.
func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	rep, err := s.ledger.AuditAll(r.Context())
	if err != nil && !errors.Is(err, domain.ErrIntegrityMismatch) {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"checked":    rep.Checked,
		"mismatches": len(rep.Mismatches),
		"reports":    rep.Mismatches,
		"ok":         len(rep.Mismatches) == 0,
	})
}

// handleAlerts lists recent operational alerts.
// GET /api/v1/admin/alerts?limit=50
func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if s.alerts == nil {
		writeJSON(w, http.StatusOK, map[string]any{"alerts": []observability.Alert{}})
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, "limit must be an integer")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": s.alerts.Recent(limit)})
}
