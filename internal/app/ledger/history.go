package ledger

import (
	"context"
	"encoding/base64"
	"fmt"
	"iter"
	"strconv"
	"strings"

	"github.com/Yusufss4/swe573-practice-sub001/internal/domain"
)

// ─── History ────────────────────────────────────────────────────────────────

// Page limits.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page selects a window of history. An empty Cursor starts at the newest
// entry.
type Page struct {
	Cursor string
	Limit  int
}

// HistoryPage is one window of entries, newest first. NextCursor is empty on
// the last page.
type HistoryPage struct {
	Entries    []domain.LedgerEntry `json:"entries"`
	NextCursor string               `json:"next_cursor,omitempty"`
}

const cursorPrefix = "seq:"

func encodeCursor(seq int64) string {
	return base64.RawURLEncoding.EncodeToString([]byte(cursorPrefix + strconv.FormatInt(seq, 10)))
}

func decodeCursor(c string) (int64, error) {
	if c == "" {
		return 0, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(c)
	if err != nil {
		return 0, fmt.Errorf("cursor %q: %w", c, domain.ErrInvalidCursor)
	}
	s, ok := strings.CutPrefix(string(raw), cursorPrefix)
	if !ok {
		return 0, fmt.Errorf("cursor %q: %w", c, domain.ErrInvalidCursor)
	}
	seq, err := strconv.ParseInt(s, 10, 64)
	if err != nil || seq <= 0 {
		return 0, fmt.Errorf("cursor %q: %w", c, domain.ErrInvalidCursor)
	}
	return seq, nil
}

// History returns one page of a member's entries, newest first. The cursor
// is stable under concurrent appends: new entries land before the first
// page, never inside a later one.
func (l *Ledger) History(ctx context.Context, memberID string, p Page) (HistoryPage, error) {
	var out HistoryPage
	before, err := decodeCursor(p.Cursor)
	if err != nil {
		return out, err
	}
	limit := p.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	limit = min(limit, MaxPageSize)

	if _, err := l.store.GetMember(ctx, memberID); err != nil {
		return out, err
	}
	entries, err := l.store.ListEntries(ctx, memberID, before, limit+1)
	if err != nil {
		return out, err
	}
	if len(entries) > limit {
		entries = entries[:limit]
		out.NextCursor = encodeCursor(entries[limit-1].Seq)
	}
	out.Entries = entries
	return out, nil
}

// Iterate lazily walks a member's whole history, newest first, fetching
// pageSize entries at a time. Iteration stops at the first error, which is
// yielded with a zero entry.
func (l *Ledger) Iterate(ctx context.Context, memberID string, pageSize int) iter.Seq2[domain.LedgerEntry, error] {
	return func(yield func(domain.LedgerEntry, error) bool) {
		cursor := ""
		for {
			page, err := l.History(ctx, memberID, Page{Cursor: cursor, Limit: pageSize})
			if err != nil {
				yield(domain.LedgerEntry{}, err)
				return
			}
			for _, e := range page.Entries {
				if !yield(e, nil) {
					return
				}
			}
			if page.NextCursor == "" {
				return
			}
			cursor = page.NextCursor
		}
	}
}
