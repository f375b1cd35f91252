package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Yusufss4/swe573-practice-sub001/internal/domain"
	"github.com/Yusufss4/swe573-practice-sub001/internal/infra/observability"
)

// ─── Integrity Audit ────────────────────────────────────────────────────────

// IntegrityReport is the outcome of verifying one member's ledger.
type IntegrityReport struct {
	MemberID   string          `json:"member_id"`
	Entries    int             `json:"entries"`
	Cached     decimal.Decimal `json:"cached"`
	Computed   decimal.Decimal `json:"computed"`
	BadEntryID string          `json:"bad_entry_id,omitempty"`
	OK         bool            `json:"ok"`
	CheckedAt  time.Time       `json:"checked_at"`
}

// VerifyIntegrity recomputes a member's balance from the raw entries and
// checks every balance snapshot against the running sum. A disagreement is
// returned as *domain.IntegrityError, logged at ERROR and raised as an
// operational alert. Nothing is corrected.
func (l *Ledger) VerifyIntegrity(ctx context.Context, memberID string) (IntegrityReport, error) {
	rep := IntegrityReport{MemberID: memberID, Computed: decimal.Zero}

	err := l.store.WithTx(ctx, func(tx domain.Repository) error {
		// The member lock keeps a concurrent transfer from landing between
		// the two reads.
		m, err := tx.LockMember(ctx, memberID)
		if err != nil {
			return err
		}
		entries, err := tx.AllEntries(ctx, memberID)
		if err != nil {
			return err
		}
		rep.Cached = m.Balance
		rep.Entries = len(entries)
		for _, e := range entries {
			rep.Computed = rep.Computed.Add(e.Delta())
			if rep.BadEntryID == "" && (!e.Valid() || !e.Balance.Equal(rep.Computed)) {
				rep.BadEntryID = e.ID
			}
		}
		return nil
	})
	rep.CheckedAt = l.now().UTC()
	if err != nil {
		return rep, err
	}

	rep.OK = rep.BadEntryID == "" && rep.Cached.Equal(rep.Computed)
	if rep.OK {
		return rep, nil
	}

	ierr := &domain.IntegrityError{
		MemberID: memberID,
		Cached:   rep.Cached,
		Computed: rep.Computed,
		EntryID:  rep.BadEntryID,
	}
	observability.IntegrityMismatches.Inc()
	l.log.Error("ledger integrity mismatch",
		"member_id", memberID, "cached", rep.Cached.String(), "computed", rep.Computed.String(),
		"bad_entry_id", rep.BadEntryID)
	l.alerts.Raise(observability.Alert{
		Kind:     observability.AlertIntegrityMismatch,
		MemberID: memberID,
		Message:  ierr.Error(),
		At:       rep.CheckedAt,
	})
	return rep, ierr
}

// AuditReport summarises a full ledger audit.
type AuditReport struct {
	Checked    int               `json:"checked"`
	Mismatches []IntegrityReport `json:"mismatches"`
}

// AuditAll verifies every member. Mismatches are collected rather than
// stopping the audit; the returned error matches ErrIntegrityMismatch when
// any were found.
func (l *Ledger) AuditAll(ctx context.Context) (AuditReport, error) {
	var rep AuditReport
	ids, err := l.store.ListMemberIDs(ctx)
	if err != nil {
		return rep, err
	}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		r, err := l.VerifyIntegrity(ctx, id)
		rep.Checked++
		if errors.Is(err, domain.ErrIntegrityMismatch) {
			rep.Mismatches = append(rep.Mismatches, r)
			continue
		}
		if err != nil {
			return rep, fmt.Errorf("verify %s: %w", id, err)
		}
	}
	if len(rep.Mismatches) > 0 {
		return rep, fmt.Errorf("%d of %d members: %w", len(rep.Mismatches), rep.Checked, domain.ErrIntegrityMismatch)
	}
	l.log.Info("ledger audit clean", "members", rep.Checked)
	return rep, nil
}
