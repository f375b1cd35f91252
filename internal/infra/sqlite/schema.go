package sqlite

// ─── Schema ─────────────────────────────────────────────────────────────────
// Hours are stored as integer quarter-hour units, times as UTC unix
// microseconds.

// Migrations returns the schema statements in order.
// Each string is a single SQL statement (SQLite executes one at a time).
func Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS members (
			id            TEXT PRIMARY KEY,
			display_name  TEXT NOT NULL DEFAULT '',
			balance_units INTEGER NOT NULL DEFAULT 0,
			created_at    INTEGER NOT NULL
		)`,

		// Append-only ledger. seq orders entries; exactly one side is non-zero.
		`CREATE TABLE IF NOT EXISTS ledger_entries (
			seq           INTEGER PRIMARY KEY AUTOINCREMENT,
			id            TEXT NOT NULL UNIQUE,
			member_id     TEXT NOT NULL REFERENCES members(id),
			kind          TEXT NOT NULL,
			debit_units   INTEGER NOT NULL DEFAULT 0 CHECK(debit_units >= 0),
			credit_units  INTEGER NOT NULL DEFAULT 0 CHECK(credit_units >= 0),
			balance_units INTEGER NOT NULL,
			commitment_id TEXT,
			transfer_id   TEXT,
			created_at    INTEGER NOT NULL,
			CHECK((debit_units = 0) <> (credit_units = 0))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_member ON ledger_entries(member_id, seq)`,

		// At most one transfer per commitment.
		`CREATE TABLE IF NOT EXISTS transfers (
			id             TEXT PRIMARY KEY,
			commitment_id  TEXT NOT NULL UNIQUE,
			payer_id       TEXT NOT NULL REFERENCES members(id),
			payee_id       TEXT NOT NULL REFERENCES members(id),
			hours_units    INTEGER NOT NULL CHECK(hours_units > 0),
			session_id     TEXT,
			payee_credited INTEGER NOT NULL DEFAULT 1,
			created_at     INTEGER NOT NULL
		)`,

		// One provider credit per group session.
		`CREATE TABLE IF NOT EXISTS session_credits (
			session_id  TEXT PRIMARY KEY,
			transfer_id TEXT NOT NULL,
			created_at  INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS listings (
			id             TEXT PRIMARY KEY,
			type           TEXT NOT NULL CHECK(type IN ('OFFER', 'NEED')),
			owner_id       TEXT NOT NULL REFERENCES members(id),
			title          TEXT NOT NULL DEFAULT '',
			hours_units    INTEGER NOT NULL CHECK(hours_units > 0),
			capacity       INTEGER NOT NULL DEFAULT 1 CHECK(capacity >= 1),
			accepted_count INTEGER NOT NULL DEFAULT 0,
			status         TEXT NOT NULL DEFAULT 'ACTIVE',
			created_at     INTEGER NOT NULL,
			updated_at     INTEGER NOT NULL,
			CHECK(accepted_count >= 0 AND accepted_count <= capacity)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_listings_owner ON listings(owner_id)`,

		`CREATE TABLE IF NOT EXISTS commitments (
			id           TEXT PRIMARY KEY,
			listing_id   TEXT NOT NULL REFERENCES listings(id),
			owner_id     TEXT NOT NULL REFERENCES members(id),
			member_id    TEXT NOT NULL REFERENCES members(id),
			message      TEXT NOT NULL DEFAULT '',
			status       TEXT NOT NULL DEFAULT 'PENDING',
			confirmation TEXT NOT NULL DEFAULT 'UNCONFIRMED',
			hours_units  INTEGER NOT NULL DEFAULT 0,
			cancelled_by TEXT NOT NULL DEFAULT '',
			created_at   INTEGER NOT NULL,
			accepted_at  INTEGER,
			declined_at  INTEGER,
			cancelled_at INTEGER,
			completed_at INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_commitments_listing ON commitments(listing_id)`,
		`CREATE INDEX IF NOT EXISTS idx_commitments_member ON commitments(member_id)`,
		`CREATE INDEX IF NOT EXISTS idx_commitments_owner ON commitments(owner_id)`,
		`CREATE INDEX IF NOT EXISTS idx_commitments_completed ON commitments(status, completed_at)`,

		`CREATE TABLE IF NOT EXISTS ratings (
			id            TEXT PRIMARY KEY,
			commitment_id TEXT NOT NULL REFERENCES commitments(id),
			rater_id      TEXT NOT NULL REFERENCES members(id),
			ratee_id      TEXT NOT NULL REFERENCES members(id),
			punctuality   INTEGER NOT NULL CHECK(punctuality BETWEEN 1 AND 5),
			helpfulness   INTEGER NOT NULL CHECK(helpfulness BETWEEN 1 AND 5),
			communication INTEGER NOT NULL CHECK(communication BETWEEN 1 AND 5),
			overall       INTEGER NOT NULL CHECK(overall BETWEEN 1 AND 5),
			comment       TEXT NOT NULL DEFAULT '',
			visible       INTEGER NOT NULL DEFAULT 0,
			revealed_at   INTEGER,
			created_at    INTEGER NOT NULL,
			UNIQUE(commitment_id, rater_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ratings_commitment ON ratings(commitment_id)`,
		`CREATE INDEX IF NOT EXISTS idx_ratings_ratee ON ratings(ratee_id, visible)`,

		// Notification outbox, one row per recipient.
		`CREATE TABLE IF NOT EXISTS notifications (
			seq           INTEGER PRIMARY KEY AUTOINCREMENT,
			id            TEXT NOT NULL,
			recipient_id  TEXT NOT NULL,
			kind          TEXT NOT NULL,
			commitment_id TEXT,
			listing_id    TEXT,
			data_json     TEXT NOT NULL DEFAULT '{}',
			created_at    INTEGER NOT NULL,
			UNIQUE(id, recipient_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_recipient ON notifications(recipient_id, seq)`,
	}
}
