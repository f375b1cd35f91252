package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ─── Hours ──────────────────────────────────────────────────────────────────
// Time-credits move at quarter-hour granularity. The domain works in
// decimal hours; stores persist integer quarter-hour units so that sums
// stay exact in SQL.

// UnitsPerHour is the number of storage units in one hour.
const UnitsPerHour = 4

// MaxHours is the largest magnitude any amount, balance or ceiling may take.
// Sums of such values stay far inside int64 units.
const MaxHours = 1_000_000_000

var (
	unitsPerHour = decimal.NewFromInt(UnitsPerHour)
	maxUnits     = decimal.NewFromInt(MaxHours * UnitsPerHour)
)

// ToUnits converts hours to quarter-hour units. Negative values, values
// above MaxHours and values that are not a whole number of quarter hours
// are rejected.
func ToUnits(h decimal.Decimal) (int64, error) {
	if h.IsNegative() {
		return 0, ErrInvalidAmount
	}
	u := h.Mul(unitsPerHour)
	if !u.IsInteger() || u.GreaterThan(maxUnits) {
		return 0, ErrInvalidAmount
	}
	return u.IntPart(), nil
}

// SignedUnits is ToUnits for values that may be negative (balances, ceilings).
func SignedUnits(h decimal.Decimal) (int64, error) {
	if h.IsNegative() {
		u, err := ToUnits(h.Neg())
		return -u, err
	}
	return ToUnits(h)
}

// FromUnits converts quarter-hour units back to hours.
func FromUnits(u int64) decimal.Decimal {
	return decimal.New(u, 0).Div(unitsPerHour)
}

// HoursOf is a convenience constructor for tests and defaults.
func HoursOf(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// ─── Ledger Types ───────────────────────────────────────────────────────────

// EntryType represents the accounting side of a ledger entry.
type EntryType string

const (
	EntryDebit  EntryType = "DEBIT"
	EntryCredit EntryType = "CREDIT"
)

// EntryKind is the business reason for a ledger entry.
type EntryKind string

const (
	KindOpening  EntryKind = "OPENING"  // starting balance posted at registration
	KindTransfer EntryKind = "TRANSFER" // one leg of a completed exchange
)

// LedgerEntry is one immutable debit or credit record. Exactly one of
// Debit and Credit is non-zero; Balance is the running sum after this entry.
type LedgerEntry struct {
	ID           string          `json:"id"`
	Seq          int64           `json:"seq"`
	MemberID     string          `json:"member_id"`
	Kind         EntryKind       `json:"kind"`
	Debit        decimal.Decimal `json:"debit"`
	Credit       decimal.Decimal `json:"credit"`
	Balance      decimal.Decimal `json:"balance"`
	CommitmentID string          `json:"commitment_id,omitempty"`
	TransferID   string          `json:"transfer_id,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// NewDebit builds a debit entry. The resulting balance is computed from prev.
func NewDebit(id, memberID string, amount, prev decimal.Decimal, at time.Time) (LedgerEntry, error) {
	if !amount.IsPositive() {
		return LedgerEntry{}, ErrInvalidAmount
	}
	return LedgerEntry{
		ID:        id,
		MemberID:  memberID,
		Kind:      KindTransfer,
		Debit:     amount,
		Credit:    decimal.Zero,
		Balance:   prev.Sub(amount),
		CreatedAt: at,
	}, nil
}

// NewCredit builds a credit entry. The resulting balance is computed from prev.
func NewCredit(id, memberID string, amount, prev decimal.Decimal, at time.Time) (LedgerEntry, error) {
	if !amount.IsPositive() {
		return LedgerEntry{}, ErrInvalidAmount
	}
	return LedgerEntry{
		ID:        id,
		MemberID:  memberID,
		Kind:      KindTransfer,
		Debit:     decimal.Zero,
		Credit:    amount,
		Balance:   prev.Add(amount),
		CreatedAt: at,
	}, nil
}

// Type reports which side of the ledger the entry sits on.
func (e LedgerEntry) Type() EntryType {
	if e.Debit.IsPositive() {
		return EntryDebit
	}
	return EntryCredit
}

// Delta is the signed effect of the entry on the balance.
func (e LedgerEntry) Delta() decimal.Decimal {
	return e.Credit.Sub(e.Debit)
}

// Valid reports whether exactly one side of the entry is non-zero.
func (e LedgerEntry) Valid() bool {
	return e.Debit.IsPositive() != e.Credit.IsPositive() &&
		!e.Debit.IsNegative() && !e.Credit.IsNegative()
}

// Transfer is the record of one settled exchange. At most one exists per
// commitment.
type Transfer struct {
	ID            string          `json:"id"`
	CommitmentID  string          `json:"commitment_id"`
	PayerID       string          `json:"payer_id"`
	PayeeID       string          `json:"payee_id"`
	Hours         decimal.Decimal `json:"hours"`
	SessionID     string          `json:"session_id,omitempty"`
	PayeeCredited bool            `json:"payee_credited"`
	CreatedAt     time.Time       `json:"created_at"`
}
