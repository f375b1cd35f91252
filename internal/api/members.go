package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/Yusufss4/swe573-practice-sub001/internal/app/ledger"
)

// ─── Members & Ledger ───────────────────────────────────────────────────────
//
// POST /api/v1/members                    - register, posts the opening balance
// GET  /api/v1/members/{id}/balance       - balance and headroom to the ceiling
// GET  /api/v1/members/{id}/history       - ledger entries, newest first
// GET  /api/v1/members/{id}/active        - Active Items dashboard (self only)

type registerRequest struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// handleRegister creates a member.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decode(w, r, &req) {
		return
	}
	m, err := s.ledger.Register(r.Context(), ledger.RegisterRequest{ID: req.ID, DisplayName: req.DisplayName})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

type balanceResponse struct {
	MemberID    string          `json:"member_id"`
	Balance     decimal.Decimal `json:"balance"`
	Headroom    decimal.Decimal `json:"headroom"`
	DebtCeiling decimal.Decimal `json:"debt_ceiling"`
}

// handleBalance returns a member's balance.
func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	bal, err := s.ledger.Balance(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{
		MemberID:    id,
		Balance:     bal,
		Headroom:    bal.Sub(s.ledger.DebtCeiling()),
		DebtCeiling: s.ledger.DebtCeiling(),
	})
}

// handleHistory returns one page of ledger entries.
// GET /api/v1/members/{id}/history?cursor=...&limit=20
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, "limit must be an integer")
		return
	}
	page, err := s.ledger.History(r.Context(), chi.URLParam(r, "id"), ledger.Page{
		Cursor: r.URL.Query().Get("cursor"),
		Limit:  limit,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// handleActiveItems returns the caller's open commitments.
func (s *Server) handleActiveItems(w http.ResponseWriter, r *http.Request) {
	who, ok := actor(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if who != id {
		writeError(w, http.StatusForbidden, "active items are only visible to their member")
		return
	}
	items, err := s.commitments.ActiveItems(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}
