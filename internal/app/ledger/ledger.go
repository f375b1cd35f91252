// Package ledger is the time-credit ledger of the settlement core.
//
// Every balance change is a pair of append-only entries posted in one store
// transaction:
//  1. Validate the amount (positive, quarter-hour granularity)
//  2. Refuse a second transfer for the same commitment
//  3. Lock both members in id order
//  4. Check the payer stays at or above the debt ceiling
//  5. Append the debit, then the credit (once per group session), and
//     update the cached balances
//
// The cached balance is an optimisation. VerifyIntegrity recomputes it from
// the raw entries and reports, never repairs, a disagreement.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Yusufss4/swe573-practice-sub001/internal/domain"
	"github.com/Yusufss4/swe573-practice-sub001/internal/infra/observability"
)

// Config controls ledger policy.
type Config struct {
	StartingBalance decimal.Decimal // Credited at registration (default: 3h)
	DebtCeiling     decimal.Decimal // Lowest balance a transfer may leave (default: -10h)
}

// DefaultConfig returns the platform defaults.
func DefaultConfig() Config {
	return Config{
		StartingBalance: decimal.NewFromInt(3),
		DebtCeiling:     decimal.NewFromInt(-10),
	}
}

// Option customises a Ledger.
type Option func(*Ledger)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithAlerts routes integrity mismatches to an operational alert log.
func WithAlerts(a *observability.AlertLog) Option {
	return func(l *Ledger) { l.alerts = a }
}

// Ledger posts transfers and answers balance and history queries.
type Ledger struct {
	config Config
	store  domain.Store
	log    *slog.Logger
	alerts *observability.AlertLog
	now    func() time.Time
}

// New creates a ledger over store.
func New(cfg Config, store domain.Store, logger *slog.Logger, opts ...Option) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Ledger{
		config: cfg,
		store:  store,
		log:    logger.With("component", "ledger"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// DebtCeiling returns the configured reciprocity limit.
func (l *Ledger) DebtCeiling() decimal.Decimal {
	return l.config.DebtCeiling
}

// ─── Registration ───────────────────────────────────────────────────────────

// RegisterRequest describes a new member. An empty ID is generated.
type RegisterRequest struct {
	ID          string
	DisplayName string
}

// Register creates a member and posts the starting balance in one unit.
func (l *Ledger) Register(ctx context.Context, req RegisterRequest) (*domain.Member, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	at := l.now().UTC()
	m := domain.Member{ID: req.ID, DisplayName: req.DisplayName, Balance: decimal.Zero, CreatedAt: at}

	err := l.store.WithTx(ctx, func(tx domain.Repository) error {
		if err := tx.InsertMember(ctx, m); err != nil {
			return err
		}
		bal, err := l.OpenAccount(ctx, tx, m.ID, at)
		if err != nil {
			return err
		}
		m.Balance = bal
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.log.Info("member registered", "member_id", m.ID, "balance", m.Balance.String())
	return &m, nil
}

// OpenAccount posts the OPENING credit for a freshly inserted member inside
// the caller's transaction and returns the resulting balance. A zero
// starting balance posts nothing.
func (l *Ledger) OpenAccount(ctx context.Context, tx domain.Repository, memberID string, at time.Time) (decimal.Decimal, error) {
	amount := l.config.StartingBalance
	if !amount.IsPositive() {
		return decimal.Zero, nil
	}
	e, err := domain.NewCredit(uuid.NewString(), memberID, amount, decimal.Zero, at)
	if err != nil {
		return decimal.Zero, err
	}
	e.Kind = domain.KindOpening
	if err := tx.InsertEntry(ctx, &e); err != nil {
		return decimal.Zero, fmt.Errorf("opening entry: %w", err)
	}
	if err := tx.SetMemberBalance(ctx, memberID, e.Balance); err != nil {
		return decimal.Zero, err
	}
	return e.Balance, nil
}

// ─── Transfers ──────────────────────────────────────────────────────────────

// TransferRequest moves Hours from PayerID to PayeeID for one commitment.
// Transfers sharing a SessionID credit the payee only once.
type TransferRequest struct {
	PayerID      string
	PayeeID      string
	Hours        decimal.Decimal
	CommitmentID string
	SessionID    string
}

// PostTransfer posts a transfer in its own transaction.
func (l *Ledger) PostTransfer(ctx context.Context, req TransferRequest) (*domain.Transfer, error) {
	var t *domain.Transfer
	err := l.store.WithTx(ctx, func(tx domain.Repository) error {
		var err error
		t, err = l.PostTransferTx(ctx, tx, req)
		return err
	})
	l.Observe(req, t, err)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// PostTransferTx posts a transfer inside the caller's transaction, so that a
// failure here rolls back whatever else the caller wrote. The caller reports
// the outcome with Observe once the transaction has finished.
func (l *Ledger) PostTransferTx(ctx context.Context, tx domain.Repository, req TransferRequest) (*domain.Transfer, error) {
	units, err := domain.ToUnits(req.Hours)
	if err != nil || units == 0 {
		return nil, fmt.Errorf("transfer of %s hours: %w", req.Hours.String(), domain.ErrInvalidAmount)
	}
	if req.PayerID == req.PayeeID {
		return nil, fmt.Errorf("member %s: %w", req.PayerID, domain.ErrSelfTransfer)
	}
	if req.CommitmentID == "" {
		return nil, domain.ErrMissingCommitment
	}

	existing, err := tx.GetTransferByCommitment(ctx, req.CommitmentID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("commitment %s has transfer %s: %w", req.CommitmentID, existing.ID, domain.ErrDuplicateTransfer)
	}

	members, err := lockMembers(ctx, tx, req.PayerID, req.PayeeID)
	if err != nil {
		return nil, err
	}
	payer, payee := members[req.PayerID], members[req.PayeeID]

	if after := payer.Balance.Sub(req.Hours); after.LessThan(l.config.DebtCeiling) {
		return nil, fmt.Errorf("payer %s balance %s - %s below %s: %w",
			payer.ID, payer.Balance.String(), req.Hours.String(), l.config.DebtCeiling.String(), domain.ErrReciprocityViolation)
	}

	at := l.now().UTC()
	t := domain.Transfer{
		ID:            uuid.NewString(),
		CommitmentID:  req.CommitmentID,
		PayerID:       payer.ID,
		PayeeID:       payee.ID,
		Hours:         req.Hours,
		SessionID:     req.SessionID,
		PayeeCredited: true,
		CreatedAt:     at,
	}
	if req.SessionID != "" {
		t.PayeeCredited, err = tx.ClaimSessionCredit(ctx, req.SessionID, t.ID, at)
		if err != nil {
			return nil, fmt.Errorf("claim session credit: %w", err)
		}
	}
	if err := tx.InsertTransfer(ctx, t); err != nil {
		return nil, err
	}

	debit, err := domain.NewDebit(uuid.NewString(), payer.ID, req.Hours, payer.Balance, at)
	if err != nil {
		return nil, err
	}
	if err := l.appendEntry(ctx, tx, &debit, t); err != nil {
		return nil, err
	}

	if t.PayeeCredited {
		credit, err := domain.NewCredit(uuid.NewString(), payee.ID, req.Hours, payee.Balance, at)
		if err != nil {
			return nil, err
		}
		if err := l.appendEntry(ctx, tx, &credit, t); err != nil {
			return nil, err
		}
	}
	return &t, nil
}

func (l *Ledger) appendEntry(ctx context.Context, tx domain.Repository, e *domain.LedgerEntry, t domain.Transfer) error {
	e.CommitmentID = t.CommitmentID
	e.TransferID = t.ID
	if err := tx.InsertEntry(ctx, e); err != nil {
		return fmt.Errorf("%s entry for %s: %w", e.Type(), e.MemberID, err)
	}
	return tx.SetMemberBalance(ctx, e.MemberID, e.Balance)
}

// lockMembers locks the given members in ascending id order.
func lockMembers(ctx context.Context, tx domain.Repository, ids ...string) (map[string]*domain.Member, error) {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	out := make(map[string]*domain.Member, len(sorted))
	for _, id := range sorted {
		m, err := tx.LockMember(ctx, id)
		if err != nil {
			return nil, err
		}
		out[id] = m
	}
	return out, nil
}

// Observe records the outcome of a transfer attempt once its transaction has
// committed or rolled back.
func (l *Ledger) Observe(req TransferRequest, t *domain.Transfer, err error) {
	switch {
	case err == nil && t != nil:
		observability.Transfers.WithLabelValues(observability.TransferPosted).Inc()
		observability.HoursDebited.Add(t.Hours.InexactFloat64())
		if t.PayeeCredited {
			observability.HoursCredited.Add(t.Hours.InexactFloat64())
		}
		l.log.Info("transfer posted",
			"transfer_id", t.ID, "commitment_id", t.CommitmentID,
			"payer", t.PayerID, "payee", t.PayeeID, "hours", t.Hours.String(),
			"payee_credited", t.PayeeCredited)
	case errors.Is(err, domain.ErrReciprocityViolation):
		observability.Transfers.WithLabelValues(observability.TransferCeiling).Inc()
		l.log.Info("transfer refused by debt ceiling", "commitment_id", req.CommitmentID, "payer", req.PayerID)
	case errors.Is(err, domain.ErrDuplicateTransfer):
		observability.Transfers.WithLabelValues(observability.TransferDuplicate).Inc()
		l.log.Warn("duplicate transfer refused", "commitment_id", req.CommitmentID)
	case errors.Is(err, domain.ErrInvalidAmount), errors.Is(err, domain.ErrSelfTransfer),
		errors.Is(err, domain.ErrMissingCommitment):
		observability.Transfers.WithLabelValues(observability.TransferInvalid).Inc()
	case err != nil:
		observability.Transfers.WithLabelValues(observability.TransferFailed).Inc()
		l.log.Error("transfer failed", "commitment_id", req.CommitmentID, "error", err)
	}
}

// ─── Queries ────────────────────────────────────────────────────────────────

// Balance returns the cached running balance of a member.
func (l *Ledger) Balance(ctx context.Context, memberID string) (decimal.Decimal, error) {
	m, err := l.store.GetMember(ctx, memberID)
	if err != nil {
		return decimal.Zero, err
	}
	return m.Balance, nil
}

// Headroom returns how many more hours the member can be debited before
// reaching the debt ceiling. It is advisory: only a transfer enforces it.
func (l *Ledger) Headroom(ctx context.Context, memberID string) (decimal.Decimal, error) {
	bal, err := l.Balance(ctx, memberID)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.Max(decimal.Zero, bal.Sub(l.config.DebtCeiling)), nil
}
