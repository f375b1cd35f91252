package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Yusufss4/swe573-practice-sub001/internal/domain"
)

// ─── Listing Operations ─────────────────────────────────────────────────────

// InsertListing creates a listing.
func (db *DB) InsertListing(ctx context.Context, l domain.Listing) error {
	units, err := domain.ToUnits(l.Hours)
	if err != nil {
		return err
	}
	_, err = db.q.Exec(ctx, `
		INSERT INTO listings (id, type, owner_id, title, hours_units, capacity, accepted_count, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, l.ID, string(l.Type), l.OwnerID, l.Title, units, l.Capacity, l.AcceptedCount,
		string(l.Status), l.CreatedAt.UTC(), l.UpdatedAt.UTC())
	return err
}

const listingSelect = `SELECT id, type, owner_id, title, hours_units, capacity, accepted_count, status, created_at, updated_at
	FROM listings WHERE id = $1`

func (db *DB) getListing(ctx context.Context, q, id string) (*domain.Listing, error) {
	var (
		l           domain.Listing
		typ, status string
		units       int64
	)
	err := db.q.QueryRow(ctx, q, id).Scan(&l.ID, &typ, &l.OwnerID, &l.Title, &units,
		&l.Capacity, &l.AcceptedCount, &status, &l.CreatedAt, &l.UpdatedAt)
	if notFound(err) {
		return nil, fmt.Errorf("listing %s: %w", id, domain.ErrListingNotFound)
	}
	if err != nil {
		return nil, err
	}
	l.Type = domain.ListingType(typ)
	l.Status = domain.ListingStatus(status)
	l.Hours = domain.FromUnits(units)
	l.CreatedAt = l.CreatedAt.UTC()
	l.UpdatedAt = l.UpdatedAt.UTC()
	return &l, nil
}

// GetListing retrieves a listing by id.
func (db *DB) GetListing(ctx context.Context, id string) (*domain.Listing, error) {
	return db.getListing(ctx, listingSelect, id)
}

// LockListing reads a listing and holds a row lock until the transaction ends.
// Concurrent acceptances on one listing queue here.
func (db *DB) LockListing(ctx context.Context, id string) (*domain.Listing, error) {
	return db.getListing(ctx, listingSelect+` FOR UPDATE`, id)
}

// UpdateListing persists the mutable listing fields.
func (db *DB) UpdateListing(ctx context.Context, l *domain.Listing) error {
	tag, err := db.q.Exec(ctx, `
		UPDATE listings SET capacity = $1, accepted_count = $2, status = $3, updated_at = $4
		WHERE id = $5
	`, l.Capacity, l.AcceptedCount, string(l.Status), l.UpdatedAt.UTC(), l.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("listing %s: %w", l.ID, domain.ErrListingNotFound)
	}
	return nil
}

// ─── Commitment Operations ──────────────────────────────────────────────────

const commitmentColumns = `id, listing_id, owner_id, member_id, message, status, confirmation, hours_units,
	cancelled_by, created_at, accepted_at, declined_at, cancelled_at, completed_at`

func scanCommitment(row pgx.Row) (domain.Commitment, error) {
	var (
		c                    domain.Commitment
		status, confirmation string
		units                int64
	)
	err := row.Scan(&c.ID, &c.ListingID, &c.OwnerID, &c.MemberID, &c.Message, &status, &confirmation, &units,
		&c.CancelledBy, &c.CreatedAt, &c.AcceptedAt, &c.DeclinedAt, &c.CancelledAt, &c.CompletedAt)
	if err != nil {
		return c, err
	}
	c.Status = domain.CommitmentStatus(status)
	c.Confirmation = domain.Confirmation(confirmation)
	c.Hours = domain.FromUnits(units)
	c.CreatedAt = c.CreatedAt.UTC()
	c.AcceptedAt = utc(c.AcceptedAt)
	c.DeclinedAt = utc(c.DeclinedAt)
	c.CancelledAt = utc(c.CancelledAt)
	c.CompletedAt = utc(c.CompletedAt)
	return c, nil
}

func collectCommitment(row pgx.CollectableRow) (domain.Commitment, error) {
	return scanCommitment(row)
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func utcOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

// InsertCommitment creates a commitment.
func (db *DB) InsertCommitment(ctx context.Context, c domain.Commitment) error {
	units, err := domain.ToUnits(c.Hours)
	if err != nil {
		return err
	}
	_, err = db.q.Exec(ctx, `
		INSERT INTO commitments (`+commitmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, c.ID, c.ListingID, c.OwnerID, c.MemberID, c.Message, string(c.Status), string(c.Confirmation), units,
		c.CancelledBy, c.CreatedAt.UTC(), utcOrNil(c.AcceptedAt), utcOrNil(c.DeclinedAt),
		utcOrNil(c.CancelledAt), utcOrNil(c.CompletedAt))
	return err
}

func (db *DB) getCommitment(ctx context.Context, q, id string) (*domain.Commitment, error) {
	c, err := scanCommitment(db.q.QueryRow(ctx, q, id))
	if notFound(err) {
		return nil, fmt.Errorf("commitment %s: %w", id, domain.ErrCommitmentNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetCommitment retrieves a commitment by id.
func (db *DB) GetCommitment(ctx context.Context, id string) (*domain.Commitment, error) {
	return db.getCommitment(ctx, `SELECT `+commitmentColumns+` FROM commitments WHERE id = $1`, id)
}

// LockCommitment reads a commitment and holds a row lock until the
// transaction ends. Two concurrent second confirmations queue here, and the
// later one sees COMPLETED.
func (db *DB) LockCommitment(ctx context.Context, id string) (*domain.Commitment, error) {
	return db.getCommitment(ctx, `SELECT `+commitmentColumns+` FROM commitments WHERE id = $1 FOR UPDATE`, id)
}

// UpdateCommitment persists the mutable commitment fields.
func (db *DB) UpdateCommitment(ctx context.Context, c *domain.Commitment) error {
	units, err := domain.ToUnits(c.Hours)
	if err != nil {
		return err
	}
	tag, err := db.q.Exec(ctx, `
		UPDATE commitments SET
			status       = $1,
			confirmation = $2,
			hours_units  = $3,
			cancelled_by = $4,
			accepted_at  = $5,
			declined_at  = $6,
			cancelled_at = $7,
			completed_at = $8
		WHERE id = $9
	`, string(c.Status), string(c.Confirmation), units, c.CancelledBy,
		utcOrNil(c.AcceptedAt), utcOrNil(c.DeclinedAt), utcOrNil(c.CancelledAt), utcOrNil(c.CompletedAt), c.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("commitment %s: %w", c.ID, domain.ErrCommitmentNotFound)
	}
	return nil
}

// ListCommitmentsByListing returns a listing's commitments oldest first.
func (db *DB) ListCommitmentsByListing(ctx context.Context, listingID string) ([]domain.Commitment, error) {
	rows, err := db.q.Query(ctx, `
		SELECT `+commitmentColumns+` FROM commitments WHERE listing_id = $1 ORDER BY created_at, id
	`, listingID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, collectCommitment)
}

// CountLiveCommitments counts PENDING or ACCEPTED commitments of memberID on a listing.
func (db *DB) CountLiveCommitments(ctx context.Context, listingID, memberID string) (int, error) {
	var n int
	err := db.q.QueryRow(ctx, `
		SELECT COUNT(*) FROM commitments
		WHERE listing_id = $1 AND member_id = $2 AND status IN ('PENDING', 'ACCEPTED')
	`, listingID, memberID).Scan(&n)
	return n, err
}

// ListActiveCommitments returns PENDING and ACCEPTED commitments where
// memberID is either party, newest first.
func (db *DB) ListActiveCommitments(ctx context.Context, memberID string) ([]domain.Commitment, error) {
	rows, err := db.q.Query(ctx, `
		SELECT `+commitmentColumns+` FROM commitments
		WHERE (owner_id = $1 OR member_id = $1) AND status IN ('PENDING', 'ACCEPTED')
		ORDER BY created_at DESC, id
	`, memberID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, collectCommitment)
}
