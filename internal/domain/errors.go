package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Every error here is recoverable by the caller. Stores and services wrap
// them with %w; compare with errors.Is.

var (
	// Lookup errors
	ErrMemberNotFound     = errors.New("member not found")
	ErrListingNotFound    = errors.New("listing not found")
	ErrCommitmentNotFound = errors.New("commitment not found")
	ErrMemberExists       = errors.New("member already registered")

	// Ledger errors
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrSelfTransfer         = errors.New("payer and payee are the same member")
	ErrDuplicateTransfer    = errors.New("commitment already produced a transfer")
	ErrReciprocityViolation = errors.New("transfer would exceed the debt ceiling")
	ErrIntegrityMismatch    = errors.New("ledger integrity mismatch")
	ErrMissingCommitment    = errors.New("transfer requires a commitment reference")
	ErrInvalidCursor        = errors.New("invalid history cursor")

	// Commitment errors
	ErrCapacityExceeded      = errors.New("listing capacity exceeded")
	ErrCapacityBelowAccepted = errors.New("capacity below accepted count")
	ErrInvalidCapacity       = errors.New("capacity must be positive")
	ErrListingUnavailable    = errors.New("listing is not accepting commitments")
	ErrInvalidListing        = errors.New("invalid listing")
	ErrInvalidTransition     = errors.New("invalid commitment transition")
	ErrSelfExchange          = errors.New("cannot commit to own listing")
	ErrDuplicateProposal     = errors.New("member already has an open commitment on this listing")
	ErrForbidden             = errors.New("actor may not perform this action")

	// Feedback errors
	ErrNotEligible     = errors.New("not eligible to rate this commitment")
	ErrDuplicateRating = errors.New("rating already submitted")
	ErrInvalidScore    = errors.New("scores must be between 1 and 5")
)

// IntegrityError describes a ledger whose cached balance or entry snapshots
// disagree with the raw entries. It matches ErrIntegrityMismatch.
type IntegrityError struct {
	MemberID string
	Cached   decimal.Decimal
	Computed decimal.Decimal
	EntryID  string // first entry whose snapshot disagrees, if any
}

func (e *IntegrityError) Error() string {
	if e.EntryID != "" {
		return fmt.Sprintf("ledger integrity mismatch for member %s: entry %s snapshot disagrees with running sum", e.MemberID, e.EntryID)
	}
	return fmt.Sprintf("ledger integrity mismatch for member %s: cached %s, computed %s",
		e.MemberID, e.Cached.String(), e.Computed.String())
}

// Is lets errors.Is(err, ErrIntegrityMismatch) match.
func (e *IntegrityError) Is(target error) bool {
	return target == ErrIntegrityMismatch
}

// UserMessage translates a core error into wording about the business rule.
// Unknown errors and integrity failures get a generic message.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCapacityExceeded):
		return "this exchange is full"
	case errors.Is(err, ErrReciprocityViolation):
		return "this would exceed your available balance"
	case errors.Is(err, ErrInvalidAmount):
		return "hours must be a positive multiple of a quarter hour"
	case errors.Is(err, ErrDuplicateTransfer):
		return "this exchange has already been settled"
	case errors.Is(err, ErrNotEligible):
		return "ratings open once both sides have confirmed the exchange, and only for its two participants"
	case errors.Is(err, ErrDuplicateRating):
		return "you have already rated this exchange"
	case errors.Is(err, ErrInvalidScore):
		return "each score must be between 1 and 5"
	case errors.Is(err, ErrCapacityBelowAccepted):
		return "capacity cannot be lower than the number of accepted participants"
	case errors.Is(err, ErrInvalidCapacity):
		return "capacity must be at least 1"
	case errors.Is(err, ErrListingUnavailable):
		return "this listing is no longer available"
	case errors.Is(err, ErrInvalidListing):
		return "the listing details are incomplete"
	case errors.Is(err, ErrSelfExchange), errors.Is(err, ErrSelfTransfer):
		return "you cannot exchange with yourself"
	case errors.Is(err, ErrDuplicateProposal):
		return "you already have an open request on this listing"
	case errors.Is(err, ErrInvalidTransition):
		return "this exchange can no longer be changed that way"
	case errors.Is(err, ErrForbidden):
		return "only a participant of this exchange can do that"
	case errors.Is(err, ErrMemberExists):
		return "this member is already registered"
	case errors.Is(err, ErrInvalidCursor):
		return "the history page link is no longer valid"
	case errors.Is(err, ErrMemberNotFound):
		return "member not found"
	case errors.Is(err, ErrListingNotFound):
		return "listing not found"
	case errors.Is(err, ErrCommitmentNotFound):
		return "exchange not found"
	}
	return "something went wrong, please try again"
}
