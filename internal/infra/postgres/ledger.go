package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/Yusufss4/swe573-practice-sub001/internal/domain"
)

// ─── Member Operations ──────────────────────────────────────────────────────

// InsertMember creates a member row.
func (db *DB) InsertMember(ctx context.Context, m domain.Member) error {
	units, err := domain.SignedUnits(m.Balance)
	if err != nil {
		return err
	}
	_, err = db.q.Exec(ctx, `
		INSERT INTO members (id, display_name, balance_units, created_at)
		VALUES ($1, $2, $3, $4)
	`, m.ID, m.DisplayName, units, m.CreatedAt.UTC())
	if isUniqueViolation(err) {
		return fmt.Errorf("member %s: %w", m.ID, domain.ErrMemberExists)
	}
	return err
}

const memberSelect = `SELECT id, display_name, balance_units, created_at FROM members WHERE id = $1`

func (db *DB) getMember(ctx context.Context, q, id string) (*domain.Member, error) {
	var (
		m     domain.Member
		units int64
	)
	err := db.q.QueryRow(ctx, q, id).Scan(&m.ID, &m.DisplayName, &units, &m.CreatedAt)
	if notFound(err) {
		return nil, fmt.Errorf("member %s: %w", id, domain.ErrMemberNotFound)
	}
	if err != nil {
		return nil, err
	}
	m.Balance = domain.FromUnits(units)
	m.CreatedAt = m.CreatedAt.UTC()
	return &m, nil
}

// GetMember retrieves a member by id.
func (db *DB) GetMember(ctx context.Context, id string) (*domain.Member, error) {
	return db.getMember(ctx, memberSelect, id)
}

// LockMember reads a member and holds a row lock until the transaction ends.
func (db *DB) LockMember(ctx context.Context, id string) (*domain.Member, error) {
	return db.getMember(ctx, memberSelect+` FOR UPDATE`, id)
}

// SetMemberBalance overwrites the cached balance.
func (db *DB) SetMemberBalance(ctx context.Context, id string, balance decimal.Decimal) error {
	units, err := domain.SignedUnits(balance)
	if err != nil {
		return err
	}
	tag, err := db.q.Exec(ctx, `UPDATE members SET balance_units = $1 WHERE id = $2`, units, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("member %s: %w", id, domain.ErrMemberNotFound)
	}
	return nil
}

// ListMemberIDs returns every member id in creation order.
func (db *DB) ListMemberIDs(ctx context.Context) ([]string, error) {
	rows, err := db.q.Query(ctx, `SELECT id FROM members ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// ─── Ledger Entry Operations ────────────────────────────────────────────────

// InsertEntry appends a ledger entry and sets e.Seq.
func (db *DB) InsertEntry(ctx context.Context, e *domain.LedgerEntry) error {
	debit, err := domain.ToUnits(e.Debit)
	if err != nil {
		return err
	}
	credit, err := domain.ToUnits(e.Credit)
	if err != nil {
		return err
	}
	balance, err := domain.SignedUnits(e.Balance)
	if err != nil {
		return err
	}
	return db.q.QueryRow(ctx, `
		INSERT INTO ledger_entries (id, member_id, kind, debit_units, credit_units, balance_units, commitment_id, transfer_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING seq
	`, e.ID, e.MemberID, string(e.Kind), debit, credit, balance,
		e.CommitmentID, e.TransferID, e.CreatedAt.UTC()).Scan(&e.Seq)
}

const entryColumns = `seq, id, member_id, kind, debit_units, credit_units, balance_units, commitment_id, transfer_id, created_at`

func scanEntry(row pgx.CollectableRow) (domain.LedgerEntry, error) {
	var (
		e                      domain.LedgerEntry
		kind                   string
		debit, credit, balance int64
	)
	err := row.Scan(&e.Seq, &e.ID, &e.MemberID, &kind, &debit, &credit, &balance,
		&e.CommitmentID, &e.TransferID, &e.CreatedAt)
	if err != nil {
		return e, err
	}
	e.Kind = domain.EntryKind(kind)
	e.Debit = domain.FromUnits(debit)
	e.Credit = domain.FromUnits(credit)
	e.Balance = domain.FromUnits(balance)
	e.CreatedAt = e.CreatedAt.UTC()
	return e, nil
}

// ListEntries returns up to limit entries newest first. beforeSeq > 0 starts
// strictly below that sequence number.
func (db *DB) ListEntries(ctx context.Context, memberID string, beforeSeq int64, limit int) ([]domain.LedgerEntry, error) {
	rows, err := db.q.Query(ctx, `
		SELECT `+entryColumns+` FROM ledger_entries
		WHERE member_id = $1 AND ($2::bigint = 0 OR seq < $2::bigint)
		ORDER BY seq DESC LIMIT $3
	`, memberID, beforeSeq, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanEntry)
}

// AllEntries returns every entry of a member oldest first.
func (db *DB) AllEntries(ctx context.Context, memberID string) ([]domain.LedgerEntry, error) {
	rows, err := db.q.Query(ctx, `
		SELECT `+entryColumns+` FROM ledger_entries WHERE member_id = $1 ORDER BY seq ASC
	`, memberID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanEntry)
}

// ─── Transfer Operations ────────────────────────────────────────────────────

// InsertTransfer records a transfer. A second transfer for the same
// commitment fails with ErrDuplicateTransfer.
func (db *DB) InsertTransfer(ctx context.Context, t domain.Transfer) error {
	units, err := domain.ToUnits(t.Hours)
	if err != nil {
		return err
	}
	_, err = db.q.Exec(ctx, `
		INSERT INTO transfers (id, commitment_id, payer_id, payee_id, hours_units, session_id, payee_credited, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, t.ID, t.CommitmentID, t.PayerID, t.PayeeID, units, t.SessionID, t.PayeeCredited, t.CreatedAt.UTC())
	if isUniqueViolation(err) {
		return fmt.Errorf("commitment %s: %w", t.CommitmentID, domain.ErrDuplicateTransfer)
	}
	return err
}

// GetTransferByCommitment returns the transfer of a commitment, or nil when
// none has been posted.
func (db *DB) GetTransferByCommitment(ctx context.Context, commitmentID string) (*domain.Transfer, error) {
	var (
		t     domain.Transfer
		units int64
	)
	err := db.q.QueryRow(ctx, `
		SELECT id, commitment_id, payer_id, payee_id, hours_units, session_id, payee_credited, created_at
		FROM transfers WHERE commitment_id = $1
	`, commitmentID).Scan(&t.ID, &t.CommitmentID, &t.PayerID, &t.PayeeID, &units, &t.SessionID, &t.PayeeCredited, &t.CreatedAt)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t.Hours = domain.FromUnits(units)
	t.CreatedAt = t.CreatedAt.UTC()
	return &t, nil
}

// ClaimSessionCredit records that transferID carries the provider credit for
// sessionID. It returns false when another transfer already claimed it.
func (db *DB) ClaimSessionCredit(ctx context.Context, sessionID, transferID string, at time.Time) (bool, error) {
	tag, err := db.q.Exec(ctx, `
		INSERT INTO session_credits (session_id, transfer_id, created_at) VALUES ($1, $2, $3)
		ON CONFLICT (session_id) DO NOTHING
	`, sessionID, transferID, at.UTC())
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
