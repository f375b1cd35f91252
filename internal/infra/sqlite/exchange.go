package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Yusufss4/swe573-practice-sub001/internal/domain"
)

// ─── Listing Operations ─────────────────────────────────────────────────────

// InsertListing creates a listing.
func (db *DB) InsertListing(ctx context.Context, l domain.Listing) error {
	units, err := domain.ToUnits(l.Hours)
	if err != nil {
		return err
	}
	_, err = db.q.ExecContext(ctx, `
		INSERT INTO listings (id, type, owner_id, title, hours_units, capacity, accepted_count, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, l.ID, string(l.Type), l.OwnerID, l.Title, units, l.Capacity, l.AcceptedCount,
		string(l.Status), toMicros(l.CreatedAt), toMicros(l.UpdatedAt))
	return err
}

// GetListing retrieves a listing by id.
func (db *DB) GetListing(ctx context.Context, id string) (*domain.Listing, error) {
	var (
		l                       domain.Listing
		typ, status             string
		units, created, updated int64
	)
	err := db.q.QueryRowContext(ctx, `
		SELECT id, type, owner_id, title, hours_units, capacity, accepted_count, status, created_at, updated_at
		FROM listings WHERE id = ?
	`, id).Scan(&l.ID, &typ, &l.OwnerID, &l.Title, &units, &l.Capacity, &l.AcceptedCount, &status, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("listing %s: %w", id, domain.ErrListingNotFound)
	}
	if err != nil {
		return nil, err
	}
	l.Type = domain.ListingType(typ)
	l.Status = domain.ListingStatus(status)
	l.Hours = domain.FromUnits(units)
	l.CreatedAt = fromMicros(created)
	l.UpdatedAt = fromMicros(updated)
	return &l, nil
}

// LockListing is GetListing; the single connection already serialises writers.
func (db *DB) LockListing(ctx context.Context, id string) (*domain.Listing, error) {
	return db.GetListing(ctx, id)
}

// UpdateListing persists the mutable listing fields.
func (db *DB) UpdateListing(ctx context.Context, l *domain.Listing) error {
	res, err := db.q.ExecContext(ctx, `
		UPDATE listings SET capacity = ?, accepted_count = ?, status = ?, updated_at = ?
		WHERE id = ?
	`, l.Capacity, l.AcceptedCount, string(l.Status), toMicros(l.UpdatedAt), l.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("listing %s: %w", l.ID, domain.ErrListingNotFound)
	}
	return nil
}

// ─── Commitment Operations ──────────────────────────────────────────────────

const commitmentColumns = `id, listing_id, owner_id, member_id, message, status, confirmation, hours_units,
	cancelled_by, created_at, accepted_at, declined_at, cancelled_at, completed_at`

func scanCommitment(s scanner) (domain.Commitment, error) {
	var (
		c                                   domain.Commitment
		status, confirmation                string
		units, created                      int64
		accepted, declined, cancelled, done sql.NullInt64
	)
	err := s.Scan(&c.ID, &c.ListingID, &c.OwnerID, &c.MemberID, &c.Message, &status, &confirmation, &units,
		&c.CancelledBy, &created, &accepted, &declined, &cancelled, &done)
	if err != nil {
		return c, err
	}
	c.Status = domain.CommitmentStatus(status)
	c.Confirmation = domain.Confirmation(confirmation)
	c.Hours = domain.FromUnits(units)
	c.CreatedAt = fromMicros(created)
	c.AcceptedAt = fromNullMicros(accepted)
	c.DeclinedAt = fromNullMicros(declined)
	c.CancelledAt = fromNullMicros(cancelled)
	c.CompletedAt = fromNullMicros(done)
	return c, nil
}

// InsertCommitment creates a commitment.
func (db *DB) InsertCommitment(ctx context.Context, c domain.Commitment) error {
	units, err := domain.ToUnits(c.Hours)
	if err != nil {
		return err
	}
	_, err = db.q.ExecContext(ctx, `
		INSERT INTO commitments (`+commitmentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.ListingID, c.OwnerID, c.MemberID, c.Message, string(c.Status), string(c.Confirmation), units,
		c.CancelledBy, toMicros(c.CreatedAt), nullMicros(c.AcceptedAt), nullMicros(c.DeclinedAt),
		nullMicros(c.CancelledAt), nullMicros(c.CompletedAt))
	return err
}

// GetCommitment retrieves a commitment by id.
func (db *DB) GetCommitment(ctx context.Context, id string) (*domain.Commitment, error) {
	c, err := scanCommitment(db.q.QueryRowContext(ctx, `SELECT `+commitmentColumns+` FROM commitments WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("commitment %s: %w", id, domain.ErrCommitmentNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// LockCommitment is GetCommitment; the single connection already serialises writers.
func (db *DB) LockCommitment(ctx context.Context, id string) (*domain.Commitment, error) {
	return db.GetCommitment(ctx, id)
}

// UpdateCommitment persists the mutable commitment fields.
func (db *DB) UpdateCommitment(ctx context.Context, c *domain.Commitment) error {
	units, err := domain.ToUnits(c.Hours)
	if err != nil {
		return err
	}
	res, err := db.q.ExecContext(ctx, `
		UPDATE commitments SET
			status       = ?,
			confirmation = ?,
			hours_units  = ?,
			cancelled_by = ?,
			accepted_at  = ?,
			declined_at  = ?,
			cancelled_at = ?,
			completed_at = ?
		WHERE id = ?
	`, string(c.Status), string(c.Confirmation), units, c.CancelledBy,
		nullMicros(c.AcceptedAt), nullMicros(c.DeclinedAt), nullMicros(c.CancelledAt), nullMicros(c.CompletedAt), c.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("commitment %s: %w", c.ID, domain.ErrCommitmentNotFound)
	}
	return nil
}

// ListCommitmentsByListing returns a listing's commitments oldest first.
func (db *DB) ListCommitmentsByListing(ctx context.Context, listingID string) ([]domain.Commitment, error) {
	return db.queryCommitments(ctx, `
		SELECT `+commitmentColumns+` FROM commitments WHERE listing_id = ? ORDER BY created_at, id
	`, listingID)
}

// CountLiveCommitments counts PENDING or ACCEPTED commitments of memberID on a listing.
func (db *DB) CountLiveCommitments(ctx context.Context, listingID, memberID string) (int, error) {
	var n int
	err := db.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM commitments
		WHERE listing_id = ? AND member_id = ? AND status IN ('PENDING', 'ACCEPTED')
	`, listingID, memberID).Scan(&n)
	return n, err
}

// ListActiveCommitments returns PENDING and ACCEPTED commitments where
// memberID is either party, newest first.
func (db *DB) ListActiveCommitments(ctx context.Context, memberID string) ([]domain.Commitment, error) {
	return db.queryCommitments(ctx, `
		SELECT `+commitmentColumns+` FROM commitments
		WHERE (owner_id = ? OR member_id = ?) AND status IN ('PENDING', 'ACCEPTED')
		ORDER BY created_at DESC, id
	`, memberID, memberID)
}

func (db *DB) queryCommitments(ctx context.Context, q string, args ...any) ([]domain.Commitment, error) {
	rows, err := db.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Commitment
	for rows.Next() {
		c, err := scanCommitment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}
