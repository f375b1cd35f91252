// Package commitment is the commitment state machine of the settlement core.
//
// A commitment moves PENDING -> ACCEPTED -> COMPLETED, or ends DECLINED or
// CANCELLED. Each transition is one store transaction that locks the
// listing first and the commitment second, so:
//   - capacity is re-checked and incremented under the listing lock
//   - the second confirmation and its ledger transfer commit together, and
//     a ledger failure rolls the confirmation back
//
// Notifications go out after commit and never block the caller.
package commitment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Yusufss4/swe573-practice-sub001/internal/app/ledger"
	"github.com/Yusufss4/swe573-practice-sub001/internal/domain"
	"github.com/Yusufss4/swe573-practice-sub001/internal/infra/observability"
)

// Option customises a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service runs commitment and listing transitions.
type Service struct {
	store    domain.Store
	ledger   *ledger.Ledger
	notifier domain.Notifier
	log      *slog.Logger
	now      func() time.Time
}

// New creates the state machine. A nil notifier discards notifications.
func New(store domain.Store, l *ledger.Ledger, notifier domain.Notifier, logger *slog.Logger, opts ...Option) *Service {
	if notifier == nil {
		notifier = domain.NopNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		store:    store,
		ledger:   l,
		notifier: notifier,
		log:      logger.With("component", "commitment"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

// notify hands a notification to the sink.
func (s *Service) notify(kind domain.NotificationKind, c *domain.Commitment, data map[string]string, recipients ...string) {
	s.notifier.Notify(domain.Notification{
		ID:           uuid.NewString(),
		Kind:         kind,
		CommitmentID: c.ID,
		ListingID:    c.ListingID,
		Recipients:   recipients,
		Data:         data,
		CreatedAt:    s.clock(),
	})
}

// ─── Listings ───────────────────────────────────────────────────────────────

// ListingRequest describes a new listing. Capacity 0 means 1.
type ListingRequest struct {
	ID       string
	Type     domain.ListingType
	OwnerID  string
	Title    string
	Hours    decimal.Decimal
	Capacity int
}

// CreateListing registers listing metadata on behalf of the listing
// collaborator.
func (s *Service) CreateListing(ctx context.Context, req ListingRequest) (*domain.Listing, error) {
	if !req.Type.Valid() {
		return nil, fmt.Errorf("type %q: %w", req.Type, domain.ErrInvalidListing)
	}
	if units, err := domain.ToUnits(req.Hours); err != nil || units == 0 {
		return nil, fmt.Errorf("listing hours %s: %w", req.Hours.String(), domain.ErrInvalidAmount)
	}
	if req.Capacity == 0 {
		req.Capacity = 1
	}
	if req.Capacity < 0 {
		return nil, domain.ErrInvalidCapacity
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	at := s.clock()
	l := domain.Listing{
		ID:        req.ID,
		Type:      req.Type,
		OwnerID:   req.OwnerID,
		Title:     req.Title,
		Hours:     req.Hours,
		Capacity:  req.Capacity,
		Status:    domain.ListingActive,
		CreatedAt: at,
		UpdatedAt: at,
	}
	err := s.store.WithTx(ctx, func(tx domain.Repository) error {
		if _, err := tx.GetMember(ctx, req.OwnerID); err != nil {
			return err
		}
		return tx.InsertListing(ctx, l)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("listing created", "listing_id", l.ID, "type", l.Type, "capacity", l.Capacity)
	return &l, nil
}

// GetListing returns a listing.
func (s *Service) GetListing(ctx context.Context, id string) (*domain.Listing, error) {
	return s.store.GetListing(ctx, id)
}

// SetCapacity changes how many participants a listing can accept. It can be
// raised freely but never lowered below the accepted count; FULL and ACTIVE
// follow the new value.
func (s *Service) SetCapacity(ctx context.Context, listingID, actorID string, capacity int) (*domain.Listing, error) {
	var l *domain.Listing
	err := s.store.WithTx(ctx, func(tx domain.Repository) error {
		var err error
		l, err = tx.LockListing(ctx, listingID)
		if err != nil {
			return err
		}
		if l.OwnerID != actorID {
			return domain.ErrForbidden
		}
		if !l.Open() {
			return fmt.Errorf("listing %s is %s: %w", l.ID, l.Status, domain.ErrListingUnavailable)
		}
		if err := l.Resize(capacity); err != nil {
			return fmt.Errorf("capacity %d, accepted %d: %w", capacity, l.AcceptedCount, err)
		}
		l.UpdatedAt = s.clock()
		return tx.UpdateListing(ctx, l)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("listing capacity changed", "listing_id", l.ID, "capacity", l.Capacity, "status", l.Status)
	return l, nil
}

// Archive withdraws a listing. Live commitments stay as they are, but the
// listing takes no new proposals or acceptances.
func (s *Service) Archive(ctx context.Context, listingID, actorID string) (*domain.Listing, error) {
	return s.close(ctx, listingID, actorID, domain.ListingArchived)
}

// Expire marks a listing expired on behalf of the listing collaborator.
func (s *Service) Expire(ctx context.Context, listingID string) (*domain.Listing, error) {
	return s.close(ctx, listingID, "", domain.ListingExpired)
}

func (s *Service) close(ctx context.Context, listingID, actorID string, status domain.ListingStatus) (*domain.Listing, error) {
	var l *domain.Listing
	err := s.store.WithTx(ctx, func(tx domain.Repository) error {
		var err error
		l, err = tx.LockListing(ctx, listingID)
		if err != nil {
			return err
		}
		if actorID != "" && l.OwnerID != actorID {
			return domain.ErrForbidden
		}
		if !l.Open() {
			return nil
		}
		l.Status = status
		l.UpdatedAt = s.clock()
		return tx.UpdateListing(ctx, l)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("listing closed", "listing_id", l.ID, "status", l.Status)
	return l, nil
}

// ─── Queries ────────────────────────────────────────────────────────────────

// Get returns a commitment.
func (s *Service) Get(ctx context.Context, id string) (*domain.Commitment, error) {
	return s.store.GetCommitment(ctx, id)
}

// ListForListing returns every commitment on a listing, oldest first.
func (s *Service) ListForListing(ctx context.Context, listingID string) ([]domain.Commitment, error) {
	if _, err := s.store.GetListing(ctx, listingID); err != nil {
		return nil, err
	}
	return s.store.ListCommitmentsByListing(ctx, listingID)
}

// Role is the side a member plays in an active item.
type Role string

const (
	RoleOwner       Role = "owner"
	RoleParticipant Role = "participant"
)

// ActiveItem is one row of a member's Active Items dashboard.
type ActiveItem struct {
	Commitment    domain.Commitment `json:"commitment"`
	DisplayStatus string            `json:"display_status"`
	Role          Role              `json:"role"`
	AwaitingYou   bool              `json:"awaiting_you"`
}

// ActiveItems lists PENDING and ACCEPTED commitments where memberID is the
// owner or the counterparty. AwaitingYou marks items that need the member's
// action: a proposal to answer, or a confirmation the other side already gave.
func (s *Service) ActiveItems(ctx context.Context, memberID string) ([]ActiveItem, error) {
	if _, err := s.store.GetMember(ctx, memberID); err != nil {
		return nil, err
	}
	cs, err := s.store.ListActiveCommitments(ctx, memberID)
	if err != nil {
		return nil, err
	}
	items := make([]ActiveItem, 0, len(cs))
	for _, c := range cs {
		party := c.PartyOf(memberID)
		item := ActiveItem{Commitment: c, DisplayStatus: c.DisplayStatus(), Role: RoleParticipant}
		if party == domain.PartyOwner {
			item.Role = RoleOwner
		}
		switch c.Status {
		case domain.CommitmentPending:
			item.AwaitingYou = party == domain.PartyOwner
		case domain.CommitmentAccepted:
			item.AwaitingYou = c.Confirmation != domain.Unconfirmed && !c.Confirmation.Confirmed(party)
		}
		items = append(items, item)
	}
	return items, nil
}

// ─── Metrics ────────────────────────────────────────────────────────────────

func observeTransition(to domain.CommitmentStatus) {
	observability.CommitmentTransitions.WithLabelValues(string(to)).Inc()
}
