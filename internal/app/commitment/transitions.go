package commitment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Yusufss4/swe573-practice-sub001/internal/app/ledger"
	"github.com/Yusufss4/swe573-practice-sub001/internal/domain"
	"github.com/Yusufss4/swe573-practice-sub001/internal/infra/observability"
)

// ─── Proposal ───────────────────────────────────────────────────────────────

// Propose creates a PENDING commitment from memberID on a listing.
func (s *Service) Propose(ctx context.Context, listingID, memberID, message string) (*domain.Commitment, error) {
	var c domain.Commitment
	err := s.store.WithTx(ctx, func(tx domain.Repository) error {
		l, err := tx.LockListing(ctx, listingID)
		if err != nil {
			return err
		}
		if l.OwnerID == memberID {
			return domain.ErrSelfExchange
		}
		switch l.Status {
		case domain.ListingActive:
		case domain.ListingFull:
			return fmt.Errorf("listing %s: %w", l.ID, domain.ErrCapacityExceeded)
		default:
			return fmt.Errorf("listing %s is %s: %w", l.ID, l.Status, domain.ErrListingUnavailable)
		}
		if _, err := tx.GetMember(ctx, memberID); err != nil {
			return err
		}
		live, err := tx.CountLiveCommitments(ctx, listingID, memberID)
		if err != nil {
			return err
		}
		if live > 0 {
			return domain.ErrDuplicateProposal
		}

		c = domain.Commitment{
			ID:           uuid.NewString(),
			ListingID:    l.ID,
			OwnerID:      l.OwnerID,
			MemberID:     memberID,
			Message:      message,
			Status:       domain.CommitmentPending,
			Confirmation: domain.Unconfirmed,
			Hours:        decimal.Zero,
			CreatedAt:    s.clock(),
		}
		return tx.InsertCommitment(ctx, c)
	})
	if err != nil {
		if errors.Is(err, domain.ErrCapacityExceeded) {
			observability.CapacityRejections.Inc()
		}
		return nil, err
	}

	observeTransition(domain.CommitmentPending)
	s.log.Info("commitment proposed", "commitment_id", c.ID, "listing_id", c.ListingID, "member_id", c.MemberID)
	s.notify(domain.NotifyProposed, &c, nil, c.OwnerID)
	return &c, nil
}

// ─── Owner Decisions ────────────────────────────────────────────────────────

// withLocked runs fn with the listing and then the commitment locked.
func (s *Service) withLocked(ctx context.Context, commitmentID string,
	fn func(tx domain.Repository, l *domain.Listing, c *domain.Commitment) error) error {
	return s.store.WithTx(ctx, func(tx domain.Repository) error {
		peek, err := tx.GetCommitment(ctx, commitmentID)
		if err != nil {
			return err
		}
		l, err := tx.LockListing(ctx, peek.ListingID)
		if err != nil {
			return err
		}
		c, err := tx.LockCommitment(ctx, commitmentID)
		if err != nil {
			return err
		}
		return fn(tx, l, c)
	})
}

func invalid(c *domain.Commitment, op string) error {
	return fmt.Errorf("%s commitment %s in %s: %w", op, c.ID, c.Status, domain.ErrInvalidTransition)
}

// Accept moves a PENDING commitment to ACCEPTED. Only the listing owner may
// accept, and only while the listing has room; the capacity check and the
// increment happen under the same listing lock.
func (s *Service) Accept(ctx context.Context, commitmentID, actorID string) (*domain.Commitment, error) {
	var out *domain.Commitment
	var filled bool
	err := s.withLocked(ctx, commitmentID, func(tx domain.Repository, l *domain.Listing, c *domain.Commitment) error {
		if c.OwnerID != actorID {
			return domain.ErrForbidden
		}
		if c.Status != domain.CommitmentPending {
			return invalid(c, "accept")
		}
		if err := l.Reserve(); err != nil {
			return fmt.Errorf("listing %s (%d/%d): %w", l.ID, l.AcceptedCount, l.Capacity, err)
		}
		at := s.clock()
		l.UpdatedAt = at
		if err := tx.UpdateListing(ctx, l); err != nil {
			return err
		}

		c.Status = domain.CommitmentAccepted
		c.Hours = l.Hours
		c.AcceptedAt = &at
		if err := tx.UpdateCommitment(ctx, c); err != nil {
			return err
		}
		out, filled = c, l.Status == domain.ListingFull
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrCapacityExceeded) {
			observability.CapacityRejections.Inc()
		}
		return nil, err
	}

	observeTransition(domain.CommitmentAccepted)
	s.log.Info("commitment accepted", "commitment_id", out.ID, "listing_id", out.ListingID, "listing_full", filled)
	s.notify(domain.NotifyAccepted, out, map[string]string{"hours": out.Hours.String()}, out.MemberID)
	return out, nil
}

// Decline moves a PENDING commitment to DECLINED. Owner only.
func (s *Service) Decline(ctx context.Context, commitmentID, actorID string) (*domain.Commitment, error) {
	var out *domain.Commitment
	err := s.withLocked(ctx, commitmentID, func(tx domain.Repository, _ *domain.Listing, c *domain.Commitment) error {
		if c.OwnerID != actorID {
			return domain.ErrForbidden
		}
		if c.Status != domain.CommitmentPending {
			return invalid(c, "decline")
		}
		at := s.clock()
		c.Status = domain.CommitmentDeclined
		c.DeclinedAt = &at
		out = c
		return tx.UpdateCommitment(ctx, c)
	})
	if err != nil {
		return nil, err
	}

	observeTransition(domain.CommitmentDeclined)
	s.log.Info("commitment declined", "commitment_id", out.ID, "listing_id", out.ListingID)
	s.notify(domain.NotifyDeclined, out, nil, out.MemberID)
	return out, nil
}

// ─── Cancellation ───────────────────────────────────────────────────────────

// Cancel ends a commitment. A PENDING proposal can be withdrawn only by its
// proposer; an ACCEPTED commitment can be cancelled by either party and
// gives its capacity slot back. No ledger entry is written.
func (s *Service) Cancel(ctx context.Context, commitmentID, actorID string) (*domain.Commitment, error) {
	var (
		out     *domain.Commitment
		partial bool
	)
	err := s.withLocked(ctx, commitmentID, func(tx domain.Repository, l *domain.Listing, c *domain.Commitment) error {
		party := c.PartyOf(actorID)
		if party == domain.PartyNone {
			return domain.ErrForbidden
		}
		at := s.clock()
		switch c.Status {
		case domain.CommitmentPending:
			if party != domain.PartyCounterparty {
				return domain.ErrForbidden
			}
		case domain.CommitmentAccepted:
			partial = c.Confirmation != domain.Unconfirmed
			l.Release()
			l.UpdatedAt = at
			if err := tx.UpdateListing(ctx, l); err != nil {
				return err
			}
		default:
			return invalid(c, "cancel")
		}
		c.Status = domain.CommitmentCancelled
		c.CancelledBy = actorID
		c.CancelledAt = &at
		out = c
		return tx.UpdateCommitment(ctx, c)
	})
	if err != nil {
		return nil, err
	}

	observeTransition(domain.CommitmentCancelled)
	s.log.Info("commitment cancelled", "commitment_id", out.ID, "listing_id", out.ListingID,
		"cancelled_by", actorID, "partially_confirmed", partial)
	data := map[string]string{"cancelled_by": actorID}
	if partial {
		data["partially_confirmed"] = "true"
	}
	s.notify(domain.NotifyCancelled, out, data, out.Counterpart(actorID))
	return out, nil
}

// ─── Dual Confirmation ──────────────────────────────────────────────────────

// Confirm records that actorID's side considers the exchange done. The
// first confirmation only flags the commitment. The second completes it and
// posts the ledger transfer in the same transaction. Confirming again from
// a side that already confirmed, or after completion, returns the
// commitment unchanged.
//
// Direction: on an Offer the counterparty pays the owner; on a Need the
// owner pays the counterparty. Every completion on an Offer shares the
// listing's session, so the owner is credited once while every participant
// is debited, even if the capacity was raised after an earlier completion.
func (s *Service) Confirm(ctx context.Context, commitmentID, actorID string) (*domain.Commitment, error) {
	var (
		out       *domain.Commitment
		changed   bool
		posted    bool
		req       ledger.TransferRequest
		transfer  *domain.Transfer
		ledgerErr error
	)
	err := s.withLocked(ctx, commitmentID, func(tx domain.Repository, l *domain.Listing, c *domain.Commitment) error {
		party := c.PartyOf(actorID)
		if party == domain.PartyNone {
			return domain.ErrForbidden
		}
		out = c
		switch c.Status {
		case domain.CommitmentAccepted:
		case domain.CommitmentCompleted:
			return nil
		default:
			return invalid(c, "confirm")
		}

		next, ok := c.Confirmation.With(party)
		if !ok {
			return nil
		}
		changed = true
		c.Confirmation = next

		if next == domain.BothConfirmed {
			at := s.clock()
			c.Status = domain.CommitmentCompleted
			c.CompletedAt = &at

			req = ledger.TransferRequest{
				PayerID:      l.Requester(c.MemberID),
				PayeeID:      l.Provider(c.MemberID),
				Hours:        c.Hours,
				CommitmentID: c.ID,
				SessionID:    l.SessionKey(),
			}
			posted = true
			transfer, ledgerErr = s.ledger.PostTransferTx(ctx, tx, req)
			if ledgerErr != nil {
				return ledgerErr
			}
		}
		return tx.UpdateCommitment(ctx, c)
	})
	if posted {
		if err != nil && ledgerErr == nil {
			// The transfer was written but the unit rolled back.
			transfer, ledgerErr = nil, err
		}
		s.ledger.Observe(req, transfer, ledgerErr)
	}
	if err != nil {
		return nil, err
	}
	if !changed {
		return out, nil
	}

	if out.Status == domain.CommitmentCompleted {
		observeTransition(domain.CommitmentCompleted)
		s.log.Info("commitment completed", "commitment_id", out.ID, "listing_id", out.ListingID,
			"transfer_id", transfer.ID, "hours", out.Hours.String())
		s.notify(domain.NotifyCompleted, out, map[string]string{
			"transfer_id": transfer.ID,
			"hours":       out.Hours.String(),
		}, out.OwnerID, out.MemberID)
		return out, nil
	}

	s.log.Info("commitment confirmed by one side", "commitment_id", out.ID, "confirmation", out.Confirmation)
	s.notify(domain.NotifyConfirmed, out, map[string]string{"confirmed_by": actorID}, out.Counterpart(actorID))
	return out, nil
}
