package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

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
	_, err = db.q.ExecContext(ctx, `
		INSERT INTO members (id, display_name, balance_units, created_at)
		VALUES (?, ?, ?, ?)
	`, m.ID, m.DisplayName, units, toMicros(m.CreatedAt))
	if isUniqueViolation(err) {
		return fmt.Errorf("member %s: %w", m.ID, domain.ErrMemberExists)
	}
	return err
}

// GetMember retrieves a member by id.
func (db *DB) GetMember(ctx context.Context, id string) (*domain.Member, error) {
	var (
		m       domain.Member
		units   int64
		created int64
	)
	err := db.q.QueryRowContext(ctx, `
		SELECT id, display_name, balance_units, created_at FROM members WHERE id = ?
	`, id).Scan(&m.ID, &m.DisplayName, &units, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("member %s: %w", id, domain.ErrMemberNotFound)
	}
	if err != nil {
		return nil, err
	}
	m.Balance = domain.FromUnits(units)
	m.CreatedAt = fromMicros(created)
	return &m, nil
}

// LockMember is GetMember; writers are already serialised by the single
// connection.
func (db *DB) LockMember(ctx context.Context, id string) (*domain.Member, error) {
	return db.GetMember(ctx, id)
}

// SetMemberBalance overwrites the cached balance.
func (db *DB) SetMemberBalance(ctx context.Context, id string, balance decimal.Decimal) error {
	units, err := domain.SignedUnits(balance)
	if err != nil {
		return err
	}
	res, err := db.q.ExecContext(ctx, `UPDATE members SET balance_units = ? WHERE id = ?`, units, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("member %s: %w", id, domain.ErrMemberNotFound)
	}
	return nil
}

// ListMemberIDs returns every member id in creation order.
func (db *DB) ListMemberIDs(ctx context.Context) ([]string, error) {
	rows, err := db.q.QueryContext(ctx, `SELECT id FROM members ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
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
	res, err := db.q.ExecContext(ctx, `
		INSERT INTO ledger_entries (id, member_id, kind, debit_units, credit_units, balance_units, commitment_id, transfer_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.MemberID, string(e.Kind), debit, credit, balance,
		nullString(e.CommitmentID), nullString(e.TransferID), toMicros(e.CreatedAt))
	if err != nil {
		return err
	}
	e.Seq, err = res.LastInsertId()
	return err
}

const entryColumns = `seq, id, member_id, kind, debit_units, credit_units, balance_units, commitment_id, transfer_id, created_at`

func scanEntry(s scanner) (domain.LedgerEntry, error) {
	var (
		e                      domain.LedgerEntry
		kind                   string
		debit, credit, balance int64
		commitmentID, transfer sql.NullString
		created                int64
	)
	if err := s.Scan(&e.Seq, &e.ID, &e.MemberID, &kind, &debit, &credit, &balance, &commitmentID, &transfer, &created); err != nil {
		return e, err
	}
	e.Kind = domain.EntryKind(kind)
	e.Debit = domain.FromUnits(debit)
	e.Credit = domain.FromUnits(credit)
	e.Balance = domain.FromUnits(balance)
	e.CommitmentID = commitmentID.String
	e.TransferID = transfer.String
	e.CreatedAt = fromMicros(created)
	return e, nil
}

// ListEntries returns up to limit entries newest first. beforeSeq > 0 starts
// strictly below that sequence number.
func (db *DB) ListEntries(ctx context.Context, memberID string, beforeSeq int64, limit int) ([]domain.LedgerEntry, error) {
	q := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE member_id = ?`
	args := []any{memberID}
	if beforeSeq > 0 {
		q += ` AND seq < ?`
		args = append(args, beforeSeq)
	}
	q += ` ORDER BY seq DESC LIMIT ?`
	args = append(args, limit)
	return db.queryEntries(ctx, q, args...)
}

// AllEntries returns every entry of a member oldest first.
func (db *DB) AllEntries(ctx context.Context, memberID string) ([]domain.LedgerEntry, error) {
	return db.queryEntries(ctx, `SELECT `+entryColumns+` FROM ledger_entries WHERE member_id = ? ORDER BY seq ASC`, memberID)
}

func (db *DB) queryEntries(ctx context.Context, q string, args ...any) ([]domain.LedgerEntry, error) {
	rows, err := db.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ─── Transfer Operations ────────────────────────────────────────────────────

// InsertTransfer records a transfer. A second transfer for the same
// commitment fails with ErrDuplicateTransfer.
func (db *DB) InsertTransfer(ctx context.Context, t domain.Transfer) error {
	units, err := domain.ToUnits(t.Hours)
	if err != nil {
		return err
	}
	_, err = db.q.ExecContext(ctx, `
		INSERT INTO transfers (id, commitment_id, payer_id, payee_id, hours_units, session_id, payee_credited, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.CommitmentID, t.PayerID, t.PayeeID, units, nullString(t.SessionID),
		boolToInt(t.PayeeCredited), toMicros(t.CreatedAt))
	if isUniqueViolation(err) {
		return fmt.Errorf("commitment %s: %w", t.CommitmentID, domain.ErrDuplicateTransfer)
	}
	return err
}

// GetTransferByCommitment returns the transfer of a commitment, or nil when
// none has been posted.
func (db *DB) GetTransferByCommitment(ctx context.Context, commitmentID string) (*domain.Transfer, error) {
	var (
		t        domain.Transfer
		units    int64
		session  sql.NullString
		credited int
		created  int64
	)
	err := db.q.QueryRowContext(ctx, `
		SELECT id, commitment_id, payer_id, payee_id, hours_units, session_id, payee_credited, created_at
		FROM transfers WHERE commitment_id = ?
	`, commitmentID).Scan(&t.ID, &t.CommitmentID, &t.PayerID, &t.PayeeID, &units, &session, &credited, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t.Hours = domain.FromUnits(units)
	t.SessionID = session.String
	t.PayeeCredited = credited == 1
	t.CreatedAt = fromMicros(created)
	return &t, nil
}

// ClaimSessionCredit records that transferID carries the provider credit for
// sessionID. It returns false when another transfer already claimed it.
func (db *DB) ClaimSessionCredit(ctx context.Context, sessionID, transferID string, at time.Time) (bool, error) {
	res, err := db.q.ExecContext(ctx, `
		INSERT OR IGNORE INTO session_credits (session_id, transfer_id, created_at) VALUES (?, ?, ?)
	`, sessionID, transferID, toMicros(at))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}
