// Package feedback is the rating visibility gate of the settlement core.
//
// A rating submitted for a completed commitment stays hidden until both
// parties have rated or the reveal window since completion has elapsed,
// whichever comes first. Sweep applies the timeout path in bulk.
package feedback

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Yusufss4/swe573-practice-sub001/internal/domain"
	"github.com/Yusufss4/swe573-practice-sub001/internal/infra/observability"
)

// Config controls the gate.
type Config struct {
	RevealAfter time.Duration // Timeout reveal window after completion (default: 7 days)
}

// DefaultConfig returns the platform defaults.
func DefaultConfig() Config {
	return Config{RevealAfter: 7 * 24 * time.Hour}
}

// DefaultPublicLimit caps PublicRatings when no limit is given.
const DefaultPublicLimit = 50

// Option customises a Gate.
type Option func(*Gate)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// Gate accepts ratings and decides when they become public.
type Gate struct {
	config   Config
	store    domain.Store
	notifier domain.Notifier
	log      *slog.Logger
	now      func() time.Time
}

// New creates a Gate. A zero RevealAfter falls back to the default.
func New(cfg Config, store domain.Store, notifier domain.Notifier, logger *slog.Logger, opts ...Option) *Gate {
	if cfg.RevealAfter <= 0 {
		cfg.RevealAfter = DefaultConfig().RevealAfter
	}
	if notifier == nil {
		notifier = domain.NopNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gate{
		config:   cfg,
		store:    store,
		notifier: notifier,
		log:      logger.With("component", "feedback"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gate) clock() time.Time {
	return g.now().UTC()
}

// RevealAfter returns the configured timeout window.
func (g *Gate) RevealAfter() time.Duration {
	return g.config.RevealAfter
}

// revealAt is when the timeout path opens for a completed commitment.
func (g *Gate) revealAt(c *domain.Commitment) time.Time {
	return c.CompletedAt.Add(g.config.RevealAfter)
}

// eligible returns the party raterID plays on a completed commitment.
func eligible(c *domain.Commitment, raterID string) (domain.Party, error) {
	party := c.PartyOf(raterID)
	if party == domain.PartyNone {
		return party, fmt.Errorf("member %s on commitment %s: %w", raterID, c.ID, domain.ErrNotEligible)
	}
	if c.Status != domain.CommitmentCompleted || c.CompletedAt == nil {
		return party, fmt.Errorf("commitment %s is %s: %w", c.ID, c.Status, domain.ErrNotEligible)
	}
	return party, nil
}

// ─── Submission ─────────────────────────────────────────────────────────────

// SubmitRequest is one party's rating of the other.
type SubmitRequest struct {
	CommitmentID string
	RaterID      string
	Scores       domain.Scores
	Comment      string
}

// Submit stores a rating and recomputes visibility for the commitment in the
// same unit. The second rating reveals both; a rating submitted after the
// window has already passed is visible at once.
func (g *Gate) Submit(ctx context.Context, req SubmitRequest) (*domain.Rating, error) {
	if err := req.Scores.Validate(); err != nil {
		return nil, err
	}

	var (
		r        domain.Rating
		c        *domain.Commitment
		revealed int64
		mutual   bool
	)
	err := g.store.WithTx(ctx, func(tx domain.Repository) error {
		var err error
		// Locking the commitment serialises the two parties' submissions.
		c, err = tx.LockCommitment(ctx, req.CommitmentID)
		if err != nil {
			return err
		}
		if _, err := eligible(c, req.RaterID); err != nil {
			return err
		}

		existing, err := tx.ListRatingsByCommitment(ctx, c.ID)
		if err != nil {
			return err
		}
		for _, e := range existing {
			if e.RaterID == req.RaterID {
				return fmt.Errorf("commitment %s rater %s: %w", c.ID, req.RaterID, domain.ErrDuplicateRating)
			}
		}

		at := g.clock()
		r = domain.Rating{
			ID:           uuid.NewString(),
			CommitmentID: c.ID,
			RaterID:      req.RaterID,
			RateeID:      c.Counterpart(req.RaterID),
			Scores:       req.Scores,
			Overall:      req.Scores.Overall(),
			Comment:      req.Comment,
			CreatedAt:    at,
		}
		mutual = len(existing) > 0
		if !at.Before(g.revealAt(c)) {
			r.Visible = true
			r.RevealedAt = &at
		}
		if err := tx.InsertRating(ctx, r); err != nil {
			return err
		}
		if r.Visible {
			revealed = 1
		}
		if mutual || r.Visible {
			n, err := tx.RevealRatings(ctx, c.ID, at)
			if err != nil {
				return err
			}
			revealed += n
			r.Visible = true
			r.RevealedAt = &at
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	observability.RatingsSubmitted.Inc()
	path := observability.RevealTimeout
	if mutual {
		path = observability.RevealMutual
	}
	if revealed > 0 {
		observability.RatingsRevealed.WithLabelValues(path).Add(float64(revealed))
	}
	g.log.Info("rating submitted", "commitment_id", c.ID, "rater_id", r.RaterID, "visible", r.Visible, "revealed", revealed)

	g.notify(domain.NotifyRated, c, nil, r.RateeID)
	if revealed > 0 {
		g.notify(domain.NotifyRevealed, c, map[string]string{"path": path}, c.OwnerID, c.MemberID)
	}
	return &r, nil
}

func (g *Gate) notify(kind domain.NotificationKind, c *domain.Commitment, data map[string]string, recipients ...string) {
	g.notifier.Notify(domain.Notification{
		ID:           uuid.NewString(),
		Kind:         kind,
		CommitmentID: c.ID,
		ListingID:    c.ListingID,
		Recipients:   recipients,
		Data:         data,
		CreatedAt:    g.clock(),
	})
}

// ─── Status ─────────────────────────────────────────────────────────────────

// Status is what a party sees about the ratings of their commitment.
// Visible mirrors what profile queries show. RevealDue is set once the
// window has passed but the sweep has not yet revealed the ratings.
type Status struct {
	CommitmentID         string        `json:"commitment_id"`
	Submitted            bool          `json:"submitted"`
	CounterpartSubmitted bool          `json:"counterpart_submitted"`
	Visible              bool          `json:"visible"`
	RevealDue            bool          `json:"reveal_due"`
	RevealAt             time.Time     `json:"reveal_at"`
	Remaining            time.Duration `json:"remaining_ns"`
}

// Status reports the requester's view of a commitment's ratings. Remaining
// is zero once the ratings are visible or the window has passed.
func (g *Gate) Status(ctx context.Context, commitmentID, requesterID string) (Status, error) {
	var st Status
	c, err := g.store.GetCommitment(ctx, commitmentID)
	if err != nil {
		return st, err
	}
	if _, err := eligible(c, requesterID); err != nil {
		return st, err
	}
	ratings, err := g.store.ListRatingsByCommitment(ctx, c.ID)
	if err != nil {
		return st, err
	}

	now := g.clock()
	st.CommitmentID = c.ID
	st.RevealAt = g.revealAt(c)
	hidden := false
	for _, r := range ratings {
		if r.RaterID == requesterID {
			st.Submitted = true
		} else {
			st.CounterpartSubmitted = true
		}
		if r.Visible {
			st.Visible = true
		} else {
			hidden = true
		}
	}
	if !now.Before(st.RevealAt) {
		st.RevealDue = hidden
		return st, nil
	}
	if !st.Visible {
		st.Remaining = st.RevealAt.Sub(now)
	}
	return st, nil
}

// ─── Timeout Sweep ──────────────────────────────────────────────────────────

// SweepResult reports one sweep run.
type SweepResult struct {
	Revealed int64     `json:"revealed"`
	Cutoff   time.Time `json:"cutoff"`
}

// Sweep reveals every hidden rating whose commitment completed at or before
// now minus the window. It is one idempotent statement, so concurrent or
// interrupted runs are harmless.
func (g *Gate) Sweep(ctx context.Context) (SweepResult, error) {
	now := g.clock()
	res := SweepResult{Cutoff: now.Add(-g.config.RevealAfter)}
	n, err := g.store.RevealExpiredRatings(ctx, res.Cutoff, now)
	if err != nil {
		return res, fmt.Errorf("sweep ratings: %w", err)
	}
	res.Revealed = n

	observability.SweepRuns.Inc()
	if n > 0 {
		observability.RatingsRevealed.WithLabelValues(observability.RevealTimeout).Add(float64(n))
	}
	g.log.Info("rating sweep finished", "revealed", n, "cutoff", res.Cutoff)
	return res, nil
}

// ─── Public Queries ─────────────────────────────────────────────────────────

// PublicRatings returns the visible ratings a member has received, newest
// first.
func (g *Gate) PublicRatings(ctx context.Context, rateeID string, limit int) ([]domain.Rating, error) {
	if limit <= 0 {
		limit = DefaultPublicLimit
	}
	if _, err := g.store.GetMember(ctx, rateeID); err != nil {
		return nil, err
	}
	return g.store.ListVisibleRatings(ctx, rateeID, limit)
}

// Summary aggregates a member's visible ratings.
func (g *Gate) Summary(ctx context.Context, rateeID string) (domain.RatingSummary, error) {
	if _, err := g.store.GetMember(ctx, rateeID); err != nil {
		return domain.RatingSummary{MemberID: rateeID}, err
	}
	return g.store.SummarizeRatings(ctx, rateeID)
}
