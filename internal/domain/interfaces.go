package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ─── Service Interfaces ─────────────────────────────────────────────────────
// Infrastructure implements these; the app layer depends on them.

// Repository is the persistence surface of the settlement core. The same
// methods run either directly against the store or inside a transaction
// handed out by Store.WithTx.
//
// Lock* methods read a row and hold it for the rest of the enclosing
// transaction. Outside a transaction they behave like Get*.
type Repository interface {
	// Members
	InsertMember(ctx context.Context, m Member) error
	GetMember(ctx context.Context, id string) (*Member, error)
	LockMember(ctx context.Context, id string) (*Member, error)
	SetMemberBalance(ctx context.Context, id string, balance decimal.Decimal) error
	ListMemberIDs(ctx context.Context) ([]string, error)

	// Ledger
	InsertEntry(ctx context.Context, e *LedgerEntry) error
	ListEntries(ctx context.Context, memberID string, beforeSeq int64, limit int) ([]LedgerEntry, error)
	AllEntries(ctx context.Context, memberID string) ([]LedgerEntry, error)
	InsertTransfer(ctx context.Context, t Transfer) error
	GetTransferByCommitment(ctx context.Context, commitmentID string) (*Transfer, error)
	ClaimSessionCredit(ctx context.Context, sessionID, transferID string, at time.Time) (bool, error)

	// Listings
	InsertListing(ctx context.Context, l Listing) error
	GetListing(ctx context.Context, id string) (*Listing, error)
	LockListing(ctx context.Context, id string) (*Listing, error)
	UpdateListing(ctx context.Context, l *Listing) error

	// Commitments
	InsertCommitment(ctx context.Context, c Commitment) error
	GetCommitment(ctx context.Context, id string) (*Commitment, error)
	LockCommitment(ctx context.Context, id string) (*Commitment, error)
	UpdateCommitment(ctx context.Context, c *Commitment) error
	ListCommitmentsByListing(ctx context.Context, listingID string) ([]Commitment, error)
	CountLiveCommitments(ctx context.Context, listingID, memberID string) (int, error)
	ListActiveCommitments(ctx context.Context, memberID string) ([]Commitment, error)

	// Ratings
	InsertRating(ctx context.Context, r Rating) error
	ListRatingsByCommitment(ctx context.Context, commitmentID string) ([]Rating, error)
	RevealRatings(ctx context.Context, commitmentID string, at time.Time) (int64, error)
	RevealExpiredRatings(ctx context.Context, completedBefore, at time.Time) (int64, error)
	ListVisibleRatings(ctx context.Context, rateeID string, limit int) ([]Rating, error)
	SummarizeRatings(ctx context.Context, rateeID string) (RatingSummary, error)

	// Notification outbox
	InsertNotification(ctx context.Context, n Notification) error
	ListNotifications(ctx context.Context, recipientID string, limit int) ([]Notification, error)
}

// Store is a Repository that can run a function as one atomic unit. If fn
// returns an error every write it made is rolled back.
type Store interface {
	Repository
	WithTx(ctx context.Context, fn func(tx Repository) error) error
	Close() error
}

// Notifier is the fire-and-forget sink for state-transition notifications.
// Implementations must not block the caller.
type Notifier interface {
	Notify(n Notification)
}

// NopNotifier discards every notification.
type NopNotifier struct{}

// Notify implements Notifier.
func (NopNotifier) Notify(Notification) {}
