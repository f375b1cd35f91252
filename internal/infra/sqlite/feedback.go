package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Yusufss4/swe573-practice-sub001/internal/domain"
)

// ─── Rating Operations ──────────────────────────────────────────────────────

const ratingColumns = `id, commitment_id, rater_id, ratee_id, punctuality, helpfulness, communication,
	overall, comment, visible, revealed_at, created_at`

func scanRating(s scanner) (domain.Rating, error) {
	var (
		r        domain.Rating
		visible  int
		revealed sql.NullInt64
		created  int64
	)
	err := s.Scan(&r.ID, &r.CommitmentID, &r.RaterID, &r.RateeID,
		&r.Scores.Punctuality, &r.Scores.Helpfulness, &r.Scores.Communication,
		&r.Overall, &r.Comment, &visible, &revealed, &created)
	if err != nil {
		return r, err
	}
	r.Visible = visible == 1
	r.RevealedAt = fromNullMicros(revealed)
	r.CreatedAt = fromMicros(created)
	return r, nil
}

// InsertRating stores a rating. A second rating by the same rater for the
// same commitment fails with ErrDuplicateRating.
func (db *DB) InsertRating(ctx context.Context, r domain.Rating) error {
	_, err := db.q.ExecContext(ctx, `
		INSERT INTO ratings (`+ratingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.CommitmentID, r.RaterID, r.RateeID,
		r.Scores.Punctuality, r.Scores.Helpfulness, r.Scores.Communication,
		r.Overall, r.Comment, boolToInt(r.Visible), nullMicros(r.RevealedAt), toMicros(r.CreatedAt))
	if isUniqueViolation(err) {
		return fmt.Errorf("commitment %s rater %s: %w", r.CommitmentID, r.RaterID, domain.ErrDuplicateRating)
	}
	return err
}

// ListRatingsByCommitment returns the (at most two) ratings of a commitment.
func (db *DB) ListRatingsByCommitment(ctx context.Context, commitmentID string) ([]domain.Rating, error) {
	return db.queryRatings(ctx, `
		SELECT `+ratingColumns+` FROM ratings WHERE commitment_id = ? ORDER BY created_at, id
	`, commitmentID)
}

// RevealRatings marks every hidden rating of a commitment visible.
func (db *DB) RevealRatings(ctx context.Context, commitmentID string, at time.Time) (int64, error) {
	res, err := db.q.ExecContext(ctx, `
		UPDATE ratings SET visible = 1, revealed_at = ?
		WHERE commitment_id = ? AND visible = 0
	`, toMicros(at), commitmentID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// RevealExpiredRatings marks visible every hidden rating whose commitment
// completed at or before completedBefore. Running it twice is harmless.
func (db *DB) RevealExpiredRatings(ctx context.Context, completedBefore, at time.Time) (int64, error) {
	res, err := db.q.ExecContext(ctx, `
		UPDATE ratings SET visible = 1, revealed_at = ?
		WHERE visible = 0 AND commitment_id IN (
			SELECT id FROM commitments
			WHERE status = 'COMPLETED' AND completed_at IS NOT NULL AND completed_at <= ?
		)
	`, toMicros(at), toMicros(completedBefore))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListVisibleRatings returns the visible ratings received by rateeID, newest first.
func (db *DB) ListVisibleRatings(ctx context.Context, rateeID string, limit int) ([]domain.Rating, error) {
	return db.queryRatings(ctx, `
		SELECT `+ratingColumns+` FROM ratings
		WHERE ratee_id = ? AND visible = 1
		ORDER BY created_at DESC, id LIMIT ?
	`, rateeID, limit)
}

// SummarizeRatings aggregates the visible ratings received by rateeID.
func (db *DB) SummarizeRatings(ctx context.Context, rateeID string) (domain.RatingSummary, error) {
	sum := domain.RatingSummary{MemberID: rateeID}
	var overall, punctuality, helpfulness, communication sql.NullFloat64
	err := db.q.QueryRowContext(ctx, `
		SELECT COUNT(*), AVG(overall), AVG(punctuality), AVG(helpfulness), AVG(communication)
		FROM ratings WHERE ratee_id = ? AND visible = 1
	`, rateeID).Scan(&sum.Count, &overall, &punctuality, &helpfulness, &communication)
	if err != nil {
		return sum, err
	}
	sum.Overall = overall.Float64
	sum.Punctuality = punctuality.Float64
	sum.Helpfulness = helpfulness.Float64
	sum.Communication = communication.Float64
	return sum, nil
}

func (db *DB) queryRatings(ctx context.Context, q string, args ...any) ([]domain.Rating, error) {
	rows, err := db.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Rating
	for rows.Next() {
		r, err := scanRating(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// ─── Notification Outbox ────────────────────────────────────────────────────

// InsertNotification writes one outbox row per recipient.
func (db *DB) InsertNotification(ctx context.Context, n domain.Notification) error {
	data, err := json.Marshal(n.Data)
	if err != nil {
		return err
	}
	for _, recipient := range n.Recipients {
		_, err := db.q.ExecContext(ctx, `
			INSERT OR IGNORE INTO notifications (id, recipient_id, kind, commitment_id, listing_id, data_json, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, n.ID, recipient, string(n.Kind), nullString(n.CommitmentID), nullString(n.ListingID), string(data), toMicros(n.CreatedAt))
		if err != nil {
			return err
		}
	}
	return nil
}

// ListNotifications returns the newest notifications addressed to recipientID.
func (db *DB) ListNotifications(ctx context.Context, recipientID string, limit int) ([]domain.Notification, error) {
	rows, err := db.q.QueryContext(ctx, `
		SELECT id, kind, commitment_id, listing_id, data_json, created_at
		FROM notifications WHERE recipient_id = ?
		ORDER BY seq DESC LIMIT ?
	`, recipientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Notification
	for rows.Next() {
		var (
			n                       domain.Notification
			kind, data              string
			commitmentID, listingID sql.NullString
			created                 int64
		)
		if err := rows.Scan(&n.ID, &kind, &commitmentID, &listingID, &data, &created); err != nil {
			return nil, err
		}
		n.Kind = domain.NotificationKind(kind)
		n.CommitmentID = commitmentID.String
		n.ListingID = listingID.String
		n.Recipients = []string{recipientID}
		n.CreatedAt = fromMicros(created)
		if err := json.Unmarshal([]byte(data), &n.Data); err != nil {
			return nil, fmt.Errorf("decode notification %s: %w", n.ID, err)
		}
		result = append(result, n)
	}
	return result, rows.Err()
}
