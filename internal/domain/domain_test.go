package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

// ─── Hours Tests ────────────────────────────────────────────────────────────

func TestToUnits(t *testing.T) {
	tests := []struct {
		hours   string
		want    int64
		wantErr bool
	}{
		{"0", 0, false},
		{"0.25", 1, false},
		{"1", 4, false},
		{"2.5", 10, false},
		{"3.75", 15, false},
		{"0.3", 0, true},
		{"1.1", 0, true},
		{"-1", 0, true},
		{"1000000000", 4_000_000_000, false},
		{"1000000000.25", 0, true},
		{"3000000000000000000", 0, true},
		{"4611686018427387904.25", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.hours, func(t *testing.T) {
			got, err := ToUnits(HoursOf(tt.hours))
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidAmount) {
					t.Fatalf("ToUnits(%s) err = %v, want ErrInvalidAmount", tt.hours, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ToUnits(%s) err = %v", tt.hours, err)
			}
			if got != tt.want {
				t.Errorf("ToUnits(%s) = %d, want %d", tt.hours, got, tt.want)
			}
		})
	}
}

func TestSignedUnits(t *testing.T) {
	got, err := SignedUnits(HoursOf("-10"))
	if err != nil {
		t.Fatalf("SignedUnits(-10) err = %v", err)
	}
	if got != -40 {
		t.Errorf("SignedUnits(-10) = %d, want -40", got)
	}
	if _, err := SignedUnits(HoursOf("-0.1")); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("SignedUnits(-0.1) err = %v, want ErrInvalidAmount", err)
	}
	if _, err := SignedUnits(HoursOf("-3000000000000000000")); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("SignedUnits(-3e18) err = %v, want ErrInvalidAmount", err)
	}
}

func TestFromUnits(t *testing.T) {
	tests := []struct {
		units int64
		want  string
	}{
		{0, "0"},
		{1, "0.25"},
		{12, "3"},
		{-6, "-1.5"},
	}
	for _, tt := range tests {
		if got := FromUnits(tt.units); !got.Equal(HoursOf(tt.want)) {
			t.Errorf("FromUnits(%d) = %s, want %s", tt.units, got, tt.want)
		}
	}
}

// ─── Ledger Entry Tests ─────────────────────────────────────────────────────

func TestLedgerEntry(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	d, err := NewDebit("e1", "alice", HoursOf("2"), HoursOf("3"), at)
	if err != nil {
		t.Fatalf("NewDebit: %v", err)
	}
	if d.Type() != EntryDebit {
		t.Errorf("debit Type() = %s, want %s", d.Type(), EntryDebit)
	}
	if !d.Balance.Equal(HoursOf("1")) {
		t.Errorf("debit Balance = %s, want 1", d.Balance)
	}
	if !d.Delta().Equal(HoursOf("-2")) {
		t.Errorf("debit Delta() = %s, want -2", d.Delta())
	}
	if !d.Valid() {
		t.Error("debit should be valid")
	}

	c, err := NewCredit("e2", "bob", HoursOf("2"), HoursOf("3"), at)
	if err != nil {
		t.Fatalf("NewCredit: %v", err)
	}
	if c.Type() != EntryCredit {
		t.Errorf("credit Type() = %s, want %s", c.Type(), EntryCredit)
	}
	if !c.Balance.Equal(HoursOf("5")) {
		t.Errorf("credit Balance = %s, want 5", c.Balance)
	}

	if _, err := NewDebit("e3", "alice", HoursOf("0"), HoursOf("3"), at); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("zero debit err = %v, want ErrInvalidAmount", err)
	}
	if _, err := NewCredit("e4", "bob", HoursOf("-1"), HoursOf("3"), at); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("negative credit err = %v, want ErrInvalidAmount", err)
	}

	both := LedgerEntry{Debit: HoursOf("1"), Credit: HoursOf("1")}
	if both.Valid() {
		t.Error("entry with both sides set should be invalid")
	}
	if (LedgerEntry{}).Valid() {
		t.Error("empty entry should be invalid")
	}
}

// ─── Listing Tests ──────────────────────────────────────────────────────────

func TestListing_ReserveRelease(t *testing.T) {
	l := &Listing{Type: ListingOffer, Capacity: 2, Status: ListingActive}

	if err := l.Reserve(); err != nil {
		t.Fatalf("first Reserve: %v", err)
	}
	if l.Status != ListingActive {
		t.Errorf("status after 1/2 = %s, want ACTIVE", l.Status)
	}
	if err := l.Reserve(); err != nil {
		t.Fatalf("second Reserve: %v", err)
	}
	if l.Status != ListingFull {
		t.Errorf("status after 2/2 = %s, want FULL", l.Status)
	}
	if err := l.Reserve(); !errors.Is(err, ErrCapacityExceeded) {
		t.Errorf("third Reserve err = %v, want ErrCapacityExceeded", err)
	}
	if l.AcceptedCount != 2 {
		t.Errorf("AcceptedCount = %d, want 2", l.AcceptedCount)
	}

	l.Release()
	if l.Status != ListingActive || l.AcceptedCount != 1 {
		t.Errorf("after Release: status = %s count = %d, want ACTIVE 1", l.Status, l.AcceptedCount)
	}
	l.Release()
	l.Release()
	if l.AcceptedCount != 0 {
		t.Errorf("AcceptedCount = %d, want 0 (never negative)", l.AcceptedCount)
	}
}

func TestListing_ReserveClosed(t *testing.T) {
	for _, status := range []ListingStatus{ListingExpired, ListingArchived} {
		l := &Listing{Capacity: 3, Status: status}
		if err := l.Reserve(); !errors.Is(err, ErrListingUnavailable) {
			t.Errorf("%s Reserve err = %v, want ErrListingUnavailable", status, err)
		}
		l.Release()
		if l.Status != status {
			t.Errorf("Release changed closed status %s to %s", status, l.Status)
		}
	}
}

func TestListing_Resize(t *testing.T) {
	tests := []struct {
		name       string
		accepted   int
		capacity   int
		wantErr    error
		wantStatus ListingStatus
	}{
		{"grow from full", 2, 4, nil, ListingActive},
		{"shrink to accepted", 2, 2, nil, ListingFull},
		{"below accepted", 2, 1, ErrCapacityBelowAccepted, ListingFull},
		{"zero", 0, 0, ErrInvalidCapacity, ListingFull},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := &Listing{Capacity: 2, AcceptedCount: tt.accepted, Status: ListingFull}
			err := l.Resize(tt.capacity)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Resize(%d) err = %v, want %v", tt.capacity, err, tt.wantErr)
			}
			if l.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s", l.Status, tt.wantStatus)
			}
		})
	}
}

func TestListing_Roles(t *testing.T) {
	offer := &Listing{ID: "l1", Type: ListingOffer, OwnerID: "owner", Capacity: 1}
	if offer.Provider("m") != "owner" || offer.Requester("m") != "m" {
		t.Errorf("offer roles = %s/%s, want owner/m", offer.Provider("m"), offer.Requester("m"))
	}
	if offer.SessionKey() != "l1" {
		t.Errorf("offer SessionKey() = %q, want l1 even at capacity 1", offer.SessionKey())
	}

	need := &Listing{ID: "l2", Type: ListingNeed, OwnerID: "owner", Capacity: 3}
	if need.Provider("m") != "m" || need.Requester("m") != "owner" {
		t.Errorf("need roles = %s/%s, want m/owner", need.Provider("m"), need.Requester("m"))
	}
	if need.SessionKey() != "" {
		t.Errorf("need SessionKey() = %q, want none", need.SessionKey())
	}

	if ListingType("SWAP").Valid() {
		t.Error("unknown listing type should be invalid")
	}
}

// ─── Commitment Tests ───────────────────────────────────────────────────────

func TestConfirmation_With(t *testing.T) {
	tests := []struct {
		from    Confirmation
		party   Party
		want    Confirmation
		changed bool
	}{
		{Unconfirmed, PartyOwner, OwnerConfirmed, true},
		{Unconfirmed, PartyCounterparty, CounterpartyConfirmed, true},
		{"", PartyOwner, OwnerConfirmed, true},
		{OwnerConfirmed, PartyOwner, OwnerConfirmed, false},
		{OwnerConfirmed, PartyCounterparty, BothConfirmed, true},
		{CounterpartyConfirmed, PartyOwner, BothConfirmed, true},
		{BothConfirmed, PartyOwner, BothConfirmed, false},
		{Unconfirmed, PartyNone, Unconfirmed, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s+%d", tt.from, tt.party), func(t *testing.T) {
			got, changed := tt.from.With(tt.party)
			if got != tt.want || changed != tt.changed {
				t.Errorf("With = (%s, %v), want (%s, %v)", got, changed, tt.want, tt.changed)
			}
		})
	}
}

func TestCommitment_Parties(t *testing.T) {
	c := &Commitment{OwnerID: "owner", MemberID: "alice"}
	if c.PartyOf("owner") != PartyOwner || c.PartyOf("alice") != PartyCounterparty || c.PartyOf("bob") != PartyNone {
		t.Error("PartyOf mapped a member to the wrong side")
	}
	if c.Counterpart("owner") != "alice" || c.Counterpart("alice") != "owner" {
		t.Error("Counterpart returned the wrong member")
	}
}

func TestCommitment_DisplayStatus(t *testing.T) {
	tests := []struct {
		status CommitmentStatus
		conf   Confirmation
		want   string
	}{
		{CommitmentPending, Unconfirmed, "PENDING"},
		{CommitmentAccepted, Unconfirmed, "ACCEPTED"},
		{CommitmentAccepted, OwnerConfirmed, DisplayAwaitingConfirmation},
		{CommitmentAccepted, CounterpartyConfirmed, DisplayAwaitingConfirmation},
		{CommitmentCompleted, BothConfirmed, "COMPLETED"},
	}
	for _, tt := range tests {
		c := &Commitment{Status: tt.status, Confirmation: tt.conf}
		if got := c.DisplayStatus(); got != tt.want {
			t.Errorf("DisplayStatus(%s, %s) = %s, want %s", tt.status, tt.conf, got, tt.want)
		}
	}
}

func TestCommitmentStatus(t *testing.T) {
	for _, s := range []CommitmentStatus{CommitmentCompleted, CommitmentDeclined, CommitmentCancelled} {
		if !s.Terminal() || s.Live() {
			t.Errorf("%s should be terminal and not live", s)
		}
	}
	for _, s := range []CommitmentStatus{CommitmentPending, CommitmentAccepted} {
		if s.Terminal() || !s.Live() {
			t.Errorf("%s should be live and not terminal", s)
		}
	}
}

// ─── Rating Tests ───────────────────────────────────────────────────────────

func TestScores(t *testing.T) {
	tests := []struct {
		scores  Scores
		overall int
		valid   bool
	}{
		{Scores{5, 5, 5}, 5, true},
		{Scores{4, 5, 5}, 5, true},
		{Scores{3, 3, 4}, 3, true},
		{Scores{1, 2, 2}, 2, true},
		{Scores{0, 3, 3}, 2, false},
		{Scores{3, 6, 3}, 4, false},
	}
	for _, tt := range tests {
		err := tt.scores.Validate()
		if tt.valid && err != nil {
			t.Errorf("Validate(%+v) = %v, want nil", tt.scores, err)
		}
		if !tt.valid && !errors.Is(err, ErrInvalidScore) {
			t.Errorf("Validate(%+v) = %v, want ErrInvalidScore", tt.scores, err)
		}
		if got := tt.scores.Overall(); got != tt.overall {
			t.Errorf("Overall(%+v) = %d, want %d", tt.scores, got, tt.overall)
		}
	}
}

// ─── Error Tests ────────────────────────────────────────────────────────────

func TestIntegrityError_Is(t *testing.T) {
	err := fmt.Errorf("audit: %w", &IntegrityError{MemberID: "bob", Cached: HoursOf("5"), Computed: HoursOf("3")})
	if !errors.Is(err, ErrIntegrityMismatch) {
		t.Error("wrapped IntegrityError should match ErrIntegrityMismatch")
	}
	var ie *IntegrityError
	if !errors.As(err, &ie) || ie.MemberID != "bob" {
		t.Errorf("errors.As = %v, want member bob", ie)
	}
	want := "ledger integrity mismatch for member bob: cached 5, computed 3"
	if ie.Error() != want {
		t.Errorf("Error() = %q, want %q", ie.Error(), want)
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrCapacityExceeded, "this exchange is full"},
		{fmt.Errorf("transfer: %w", ErrReciprocityViolation), "this would exceed your available balance"},
		{&IntegrityError{MemberID: "x"}, "something went wrong, please try again"},
		{errors.New("disk on fire"), "something went wrong, please try again"},
	}
	for _, tt := range tests {
		if got := UserMessage(tt.err); got != tt.want {
			t.Errorf("UserMessage(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
