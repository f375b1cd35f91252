package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/Yusufss4/swe573-practice-sub001/internal/app/commitment"
	"github.com/Yusufss4/swe573-practice-sub001/internal/domain"
)

// ─── Listings ───────────────────────────────────────────────────────────────
// Listing metadata is owned by the listing collaborator; the core tracks
// capacity and status.

type createListingRequest struct {
	ID       string             `json:"id"`
	Type     domain.ListingType `json:"type"`
	Title    string             `json:"title"`
	Hours    decimal.Decimal    `json:"hours"`
	Capacity int                `json:"capacity"`
}

// handleCreateListing registers a listing owned by the caller.
func (s *Server) handleCreateListing(w http.ResponseWriter, r *http.Request) {
	who, ok := actor(w, r)
	if !ok {
		return
	}
	var req createListingRequest
	if !decode(w, r, &req) {
		return
	}
	l, err := s.commitments.CreateListing(r.Context(), commitment.ListingRequest{
		ID:       req.ID,
		Type:     req.Type,
		OwnerID:  who,
		Title:    req.Title,
		Hours:    req.Hours,
		Capacity: req.Capacity,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, l)
}

func (s *Server) handleGetListing(w http.ResponseWriter, r *http.Request) {
	l, err := s.commitments.GetListing(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// handleSetCapacity changes a listing's capacity.
// PUT /api/v1/listings/{id}/capacity {"capacity": 3}
func (s *Server) handleSetCapacity(w http.ResponseWriter, r *http.Request) {
	who, ok := actor(w, r)
	if !ok {
		return
	}
	var req struct {
		Capacity int `json:"capacity"`
	}
	if !decode(w, r, &req) {
		return
	}
	l, err := s.commitments.SetCapacity(r.Context(), chi.URLParam(r, "id"), who, req.Capacity)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	who, ok := actor(w, r)
	if !ok {
		return
	}
	l, err := s.commitments.Archive(r.Context(), chi.URLParam(r, "id"), who)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// handleExpire is called by the listing collaborator when a listing's
// schedule has passed.
func (s *Server) handleExpire(w http.ResponseWriter, r *http.Request) {
	l, err := s.commitments.Expire(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (s *Server) handleListCommitments(w http.ResponseWriter, r *http.Request) {
	cs, err := s.commitments.ListForListing(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if cs == nil {
		cs = []domain.Commitment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"commitments": cs})
}

// ─── Commitments ────────────────────────────────────────────────────────────

// handlePropose creates a PENDING commitment from the caller.
func (s *Server) handlePropose(w http.ResponseWriter, r *http.Request) {
	who, ok := actor(w, r)
	if !ok {
		return
	}
	var req struct {
		Message string `json:"message"`
	}
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	c, err := s.commitments.Propose(r.Context(), chi.URLParam(r, "id"), who, req.Message)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleGetCommitment(w http.ResponseWriter, r *http.Request) {
	c, err := s.commitments.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"commitment":     c,
		"display_status": c.DisplayStatus(),
	})
}

type transitionFunc func(ctx context.Context, commitmentID, actorID string) (*domain.Commitment, error)

// transition adapts an actor-driven state transition to a handler.
func (s *Server) transition(fn transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		who, ok := actor(w, r)
		if !ok {
			return
		}
		c, err := fn(r.Context(), chi.URLParam(r, "id"), who)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"commitment":     c,
			"display_status": c.DisplayStatus(),
		})
	}
}
