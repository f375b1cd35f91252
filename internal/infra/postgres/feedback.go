package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Yusufss4/swe573-practice-sub001/internal/domain"
)

// ─── Rating Operations ──────────────────────────────────────────────────────

const ratingColumns = `id, commitment_id, rater_id, ratee_id, punctuality, helpfulness, communication,
	overall, comment, visible, revealed_at, created_at`

func scanRating(row pgx.CollectableRow) (domain.Rating, error) {
	var r domain.Rating
	err := row.Scan(&r.ID, &r.CommitmentID, &r.RaterID, &r.RateeID,
		&r.Scores.Punctuality, &r.Scores.Helpfulness, &r.Scores.Communication,
		&r.Overall, &r.Comment, &r.Visible, &r.RevealedAt, &r.CreatedAt)
	if err != nil {
		return r, err
	}
	r.RevealedAt = utc(r.RevealedAt)
	r.CreatedAt = r.CreatedAt.UTC()
	return r, nil
}

// InsertRating stores a rating. A second rating by the same rater for the
// same commitment fails with ErrDuplicateRating.
func (db *DB) InsertRating(ctx context.Context, r domain.Rating) error {
	_, err := db.q.Exec(ctx, `
		INSERT INTO ratings (`+ratingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, r.ID, r.CommitmentID, r.RaterID, r.RateeID,
		r.Scores.Punctuality, r.Scores.Helpfulness, r.Scores.Communication,
		r.Overall, r.Comment, r.Visible, utcOrNil(r.RevealedAt), r.CreatedAt.UTC())
	if isUniqueViolation(err) {
		return fmt.Errorf("commitment %s rater %s: %w", r.CommitmentID, r.RaterID, domain.ErrDuplicateRating)
	}
	return err
}

// ListRatingsByCommitment returns the ratings of a commitment.
func (db *DB) ListRatingsByCommitment(ctx context.Context, commitmentID string) ([]domain.Rating, error) {
	rows, err := db.q.Query(ctx, `
		SELECT `+ratingColumns+` FROM ratings WHERE commitment_id = $1 ORDER BY created_at, id
	`, commitmentID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanRating)
}

// RevealRatings marks every hidden rating of a commitment visible.
func (db *DB) RevealRatings(ctx context.Context, commitmentID string, at time.Time) (int64, error) {
	tag, err := db.q.Exec(ctx, `
		UPDATE ratings SET visible = TRUE, revealed_at = $1
		WHERE commitment_id = $2 AND NOT visible
	`, at.UTC(), commitmentID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// RevealExpiredRatings marks visible every hidden rating whose commitment
// completed at or before completedBefore.
func (db *DB) RevealExpiredRatings(ctx context.Context, completedBefore, at time.Time) (int64, error) {
	tag, err := db.q.Exec(ctx, `
		UPDATE ratings r SET visible = TRUE, revealed_at = $1
		FROM commitments c
		WHERE r.commitment_id = c.id AND NOT r.visible
		  AND c.status = 'COMPLETED' AND c.completed_at <= $2
	`, at.UTC(), completedBefore.UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListVisibleRatings returns the visible ratings received by rateeID, newest first.
func (db *DB) ListVisibleRatings(ctx context.Context, rateeID string, limit int) ([]domain.Rating, error) {
	rows, err := db.q.Query(ctx, `
		SELECT `+ratingColumns+` FROM ratings
		WHERE ratee_id = $1 AND visible
		ORDER BY created_at DESC, id LIMIT $2
	`, rateeID, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanRating)
}

// SummarizeRatings aggregates the visible ratings received by rateeID.
func (db *DB) SummarizeRatings(ctx context.Context, rateeID string) (domain.RatingSummary, error) {
	sum := domain.RatingSummary{MemberID: rateeID}
	err := db.q.QueryRow(ctx, `
		SELECT COUNT(*),
			COALESCE(AVG(overall), 0)::float8,
			COALESCE(AVG(punctuality), 0)::float8,
			COALESCE(AVG(helpfulness), 0)::float8,
			COALESCE(AVG(communication), 0)::float8
		FROM ratings WHERE ratee_id = $1 AND visible
	`, rateeID).Scan(&sum.Count, &sum.Overall, &sum.Punctuality, &sum.Helpfulness, &sum.Communication)
	return sum, err
}

// ─── Notification Outbox ────────────────────────────────────────────────────

// InsertNotification writes one outbox row per recipient as a single batch.
func (db *DB) InsertNotification(ctx context.Context, n domain.Notification) error {
	data := n.Data
	if data == nil {
		data = map[string]string{}
	}
	batch := &pgx.Batch{}
	for _, recipient := range n.Recipients {
		batch.Queue(`
			INSERT INTO notifications (id, recipient_id, kind, commitment_id, listing_id, data, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id, recipient_id) DO NOTHING
		`, n.ID, recipient, string(n.Kind), n.CommitmentID, n.ListingID, data, n.CreatedAt.UTC())
	}
	if batch.Len() == 0 {
		return nil
	}
	return db.sendBatch(ctx, batch)
}

func (db *DB) sendBatch(ctx context.Context, batch *pgx.Batch) error {
	type batcher interface {
		SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	}
	b, ok := db.q.(batcher)
	if !ok {
		return fmt.Errorf("querier %T cannot send batches", db.q)
	}
	return b.SendBatch(ctx, batch).Close()
}

// ListNotifications returns the newest notifications addressed to recipientID.
func (db *DB) ListNotifications(ctx context.Context, recipientID string, limit int) ([]domain.Notification, error) {
	rows, err := db.q.Query(ctx, `
		SELECT id, kind, commitment_id, listing_id, data, created_at
		FROM notifications WHERE recipient_id = $1
		ORDER BY seq DESC LIMIT $2
	`, recipientID, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Notification, error) {
		var (
			n    domain.Notification
			kind string
		)
		if err := row.Scan(&n.ID, &kind, &n.CommitmentID, &n.ListingID, &n.Data, &n.CreatedAt); err != nil {
			return n, err
		}
		n.Kind = domain.NotificationKind(kind)
		n.Recipients = []string{recipientID}
		n.CreatedAt = n.CreatedAt.UTC()
		return n, nil
	})
}
