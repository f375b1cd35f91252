// Package domain contains the pure business types of the settlement core.
// It has no infrastructure imports: stores, transports and services depend
// on it, never the other way round.
package domain

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// ─── Member ─────────────────────────────────────────────────────────────────

// Member is a participant in the time bank. Balance is a cache of the sum
// of the member's ledger entries.
type Member struct {
	ID          string          `json:"id"`
	DisplayName string          `json:"display_name"`
	Balance     decimal.Decimal `json:"balance"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ─── Listing ────────────────────────────────────────────────────────────────

// ListingType distinguishes offers of help from requests for help.
type ListingType string

const (
	ListingOffer ListingType = "OFFER" // owner provides, participants pay
	ListingNeed  ListingType = "NEED"  // owner requests, owner pays
)

// Valid reports whether t is a known listing type.
func (t ListingType) Valid() bool {
	return t == ListingOffer || t == ListingNeed
}

// ListingStatus is the availability of a listing.
type ListingStatus string

const (
	ListingActive   ListingStatus = "ACTIVE"
	ListingFull     ListingStatus = "FULL"
	ListingExpired  ListingStatus = "EXPIRED"
	ListingArchived ListingStatus = "ARCHIVED"
)

// Listing is an offer or need that accrues commitments.
type Listing struct {
	ID            string          `json:"id"`
	Type          ListingType     `json:"type"`
	OwnerID       string          `json:"owner_id"`
	Title         string          `json:"title"`
	Hours         decimal.Decimal `json:"hours"`
	Capacity      int             `json:"capacity"`
	AcceptedCount int             `json:"accepted_count"`
	Status        ListingStatus   `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Open reports whether the listing still takes proposals or acceptances.
// A FULL listing is open in the sense that a cancellation can reactivate it.
func (l *Listing) Open() bool {
	return l.Status == ListingActive || l.Status == ListingFull
}

// HasRoom reports whether another commitment can be accepted.
func (l *Listing) HasRoom() bool {
	return l.AcceptedCount < l.Capacity
}

// Provider returns the member who delivers the service for a commitment
// between the listing owner and counterpartyID.
func (l *Listing) Provider(counterpartyID string) string {
	if l.Type == ListingOffer {
		return l.OwnerID
	}
	return counterpartyID
}

// Requester returns the member who receives the service.
func (l *Listing) Requester(counterpartyID string) string {
	if l.Type == ListingOffer {
		return counterpartyID
	}
	return l.OwnerID
}

// SessionKey is the ledger session shared by every completion on the
// listing. An offer runs as one provider-led session whatever its capacity,
// so raising the capacity later never credits the provider a second time.
// Needs have no session.
func (l *Listing) SessionKey() string {
	if l.Type == ListingOffer {
		return l.ID
	}
	return ""
}

// syncStatus recomputes ACTIVE/FULL from the counters. Closed listings keep
// their status.
func (l *Listing) syncStatus() {
	if !l.Open() {
		return
	}
	if l.AcceptedCount >= l.Capacity {
		l.Status = ListingFull
	} else {
		l.Status = ListingActive
	}
}

// Reserve takes one capacity slot. It fails with ErrCapacityExceeded when the
// listing has no room left.
func (l *Listing) Reserve() error {
	if !l.Open() {
		return ErrListingUnavailable
	}
	if !l.HasRoom() {
		return ErrCapacityExceeded
	}
	l.AcceptedCount++
	l.syncStatus()
	return nil
}

// Release returns one capacity slot.
func (l *Listing) Release() {
	if l.AcceptedCount > 0 {
		l.AcceptedCount--
	}
	l.syncStatus()
}

// Resize changes capacity. Capacity can never drop below the accepted count.
func (l *Listing) Resize(capacity int) error {
	if capacity < 1 {
		return ErrInvalidCapacity
	}
	if capacity < l.AcceptedCount {
		return ErrCapacityBelowAccepted
	}
	l.Capacity = capacity
	l.syncStatus()
	return nil
}

// ─── Commitment ─────────────────────────────────────────────────────────────

// CommitmentStatus is the lifecycle state of a commitment.
type CommitmentStatus string

const (
	CommitmentPending   CommitmentStatus = "PENDING"
	CommitmentAccepted  CommitmentStatus = "ACCEPTED"
	CommitmentCompleted CommitmentStatus = "COMPLETED"
	CommitmentDeclined  CommitmentStatus = "DECLINED"
	CommitmentCancelled CommitmentStatus = "CANCELLED"
)

// Terminal reports whether no transition can leave s.
func (s CommitmentStatus) Terminal() bool {
	switch s {
	case CommitmentCompleted, CommitmentDeclined, CommitmentCancelled:
		return true
	}
	return false
}

// Live reports whether the commitment still occupies a place on the listing
// as an open exchange.
func (s CommitmentStatus) Live() bool {
	return s == CommitmentPending || s == CommitmentAccepted
}

// DisplayAwaitingConfirmation is shown for ACCEPTED commitments where one
// side has confirmed completion.
const DisplayAwaitingConfirmation = "AWAITING_CONFIRMATION"

// Party identifies a side of a commitment.
type Party int

const (
	PartyNone Party = iota
	PartyOwner
	PartyCounterparty
)

// Confirmation is the dual-confirmation state of an accepted commitment.
type Confirmation string

const (
	Unconfirmed           Confirmation = "UNCONFIRMED"
	OwnerConfirmed        Confirmation = "OWNER_CONFIRMED"
	CounterpartyConfirmed Confirmation = "COUNTERPARTY_CONFIRMED"
	BothConfirmed         Confirmation = "BOTH_CONFIRMED"
)

// Confirmed reports whether party p has confirmed.
func (c Confirmation) Confirmed(p Party) bool {
	switch p {
	case PartyOwner:
		return c == OwnerConfirmed || c == BothConfirmed
	case PartyCounterparty:
		return c == CounterpartyConfirmed || c == BothConfirmed
	}
	return false
}

// With returns the state after party p confirms, and whether that changed
// anything. Confirming twice from the same side is a no-op.
func (c Confirmation) With(p Party) (Confirmation, bool) {
	if p == PartyNone || c.Confirmed(p) {
		return c, false
	}
	switch c {
	case Unconfirmed, "":
		if p == PartyOwner {
			return OwnerConfirmed, true
		}
		return CounterpartyConfirmed, true
	default:
		// The other side has already confirmed.
		return BothConfirmed, true
	}
}

// Commitment is the agreement between a listing owner and a counterparty
// for one exchange.
type Commitment struct {
	ID           string           `json:"id"`
	ListingID    string           `json:"listing_id"`
	OwnerID      string           `json:"owner_id"`
	MemberID     string           `json:"member_id"`
	Message      string           `json:"message,omitempty"`
	Status       CommitmentStatus `json:"status"`
	Confirmation Confirmation     `json:"confirmation"`
	Hours        decimal.Decimal  `json:"hours"`
	CancelledBy  string           `json:"cancelled_by,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	AcceptedAt   *time.Time       `json:"accepted_at,omitempty"`
	DeclinedAt   *time.Time       `json:"declined_at,omitempty"`
	CancelledAt  *time.Time       `json:"cancelled_at,omitempty"`
	CompletedAt  *time.Time       `json:"completed_at,omitempty"`
}

// PartyOf returns which side memberID is on.
func (c *Commitment) PartyOf(memberID string) Party {
	switch memberID {
	case c.OwnerID:
		return PartyOwner
	case c.MemberID:
		return PartyCounterparty
	}
	return PartyNone
}

// Counterpart returns the other party's member id.
func (c *Commitment) Counterpart(memberID string) string {
	if memberID == c.OwnerID {
		return c.MemberID
	}
	return c.OwnerID
}

// DisplayStatus is the status shown on dashboards.
func (c *Commitment) DisplayStatus() string {
	if c.Status == CommitmentAccepted && c.Confirmation != Unconfirmed && c.Confirmation != "" {
		return DisplayAwaitingConfirmation
	}
	return string(c.Status)
}

// ─── Rating ─────────────────────────────────────────────────────────────────

// Score bounds for every rating category.
const (
	MinScore = 1
	MaxScore = 5
)

// Scores are the three category scores of a rating.
type Scores struct {
	Punctuality   int `json:"punctuality"`
	Helpfulness   int `json:"helpfulness"`
	Communication int `json:"communication"`
}

// Validate checks every category is within [MinScore, MaxScore].
func (s Scores) Validate() error {
	for _, v := range []int{s.Punctuality, s.Helpfulness, s.Communication} {
		if v < MinScore || v > MaxScore {
			return ErrInvalidScore
		}
	}
	return nil
}

// Overall is the mean of the categories rounded to the nearest integer.
func (s Scores) Overall() int {
	sum := s.Punctuality + s.Helpfulness + s.Communication
	return int(math.Round(float64(sum) / 3))
}

// Rating is one party's evaluation of the other for a completed commitment.
type Rating struct {
	ID           string     `json:"id"`
	CommitmentID string     `json:"commitment_id"`
	RaterID      string     `json:"rater_id"`
	RateeID      string     `json:"ratee_id"`
	Scores       Scores     `json:"scores"`
	Overall      int        `json:"overall"`
	Comment      string     `json:"comment,omitempty"`
	Visible      bool       `json:"visible"`
	RevealedAt   *time.Time `json:"revealed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// RatingSummary aggregates the visible ratings of a member.
type RatingSummary struct {
	MemberID      string  `json:"member_id"`
	Count         int     `json:"count"`
	Overall       float64 `json:"overall"`
	Punctuality   float64 `json:"punctuality"`
	Helpfulness   float64 `json:"helpfulness"`
	Communication float64 `json:"communication"`
}

// ─── Notification ───────────────────────────────────────────────────────────

// NotificationKind names a state transition worth telling someone about.
type NotificationKind string

const (
	NotifyProposed  NotificationKind = "commitment.proposed"
	NotifyAccepted  NotificationKind = "commitment.accepted"
	NotifyDeclined  NotificationKind = "commitment.declined"
	NotifyCancelled NotificationKind = "commitment.cancelled"
	NotifyConfirmed NotificationKind = "commitment.confirmed"
	NotifyCompleted NotificationKind = "commitment.completed"
	NotifyRated     NotificationKind = "rating.submitted"
	NotifyRevealed  NotificationKind = "rating.revealed"
)

// Notification is handed to the external delivery collaborator.
type Notification struct {
	ID           string            `json:"id"`
	Kind         NotificationKind  `json:"kind"`
	CommitmentID string            `json:"commitment_id,omitempty"`
	ListingID    string            `json:"listing_id,omitempty"`
	Recipients   []string          `json:"recipients"`
	Data         map[string]string `json:"data,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}
