package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Yusufss4/swe573-practice-sub001/internal/app/feedback"
	"github.com/Yusufss4/swe573-practice-sub001/internal/domain"
)

// ─── Ratings ────────────────────────────────────────────────────────────────
//
// POST /api/v1/commitments/{id}/ratings        - submit a blind rating
// GET  /api/v1/commitments/{id}/ratings/status - own/counterpart status and countdown
// GET  /api/v1/members/{id}/ratings            - visible ratings received
// GET  /api/v1/members/{id}/ratings/summary    - aggregate of visible ratings

type submitRatingRequest struct {
	Punctuality   int    `json:"punctuality"`
	Helpfulness   int    `json:"helpfulness"`
	Communication int    `json:"communication"`
	Comment       string `json:"comment"`
}

func (s *Server) handleSubmitRating(w http.ResponseWriter, r *http.Request) {
	who, ok := actor(w, r)
	if !ok {
		return
	}
	var req submitRatingRequest
	if !decode(w, r, &req) {
		return
	}
	rating, err := s.feedback.Submit(r.Context(), feedback.SubmitRequest{
		CommitmentID: chi.URLParam(r, "id"),
		RaterID:      who,
		Scores: domain.Scores{
			Punctuality:   req.Punctuality,
			Helpfulness:   req.Helpfulness,
			Communication: req.Communication,
		},
		Comment: req.Comment,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rating)
}

func (s *Server) handleRatingStatus(w http.ResponseWriter, r *http.Request) {
	who, ok := actor(w, r)
	if !ok {
		return
	}
	st, err := s.feedback.Status(r.Context(), chi.URLParam(r, "id"), who)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":            st,
		"remaining_seconds": int64(st.Remaining.Seconds()),
	})
}

func (s *Server) handlePublicRatings(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, "limit must be an integer")
		return
	}
	ratings, err := s.feedback.PublicRatings(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if ratings == nil {
		ratings = []domain.Rating{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ratings": ratings})
}

func (s *Server) handleRatingSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.feedback.Summary(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
