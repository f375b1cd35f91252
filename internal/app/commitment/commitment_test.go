package commitment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Yusufss4/swe573-practice-sub001/internal/app/ledger"
	"github.com/Yusufss4/swe573-practice-sub001/internal/domain"
	"github.com/Yusufss4/swe573-practice-sub001/internal/infra/sqlite"
)

// recorder is a Notifier that keeps everything it is handed.
type recorder struct {
	mu   sync.Mutex
	sent []domain.Notification
}

func (r *recorder) Notify(n domain.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

func (r *recorder) last(t *testing.T) domain.Notification {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		t.Fatal("no notification sent")
	}
	return r.sent[len(r.sent)-1]
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

type testEnv struct {
	svc    *Service
	ledger *ledger.Ledger
	db     *sqlite.DB
	notes  *recorder
}

func newTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func newTestEnv(t *testing.T, members ...string) *testEnv {
	t.Helper()
	db := newTestDB(t)
	clock := func() time.Time { return t0 }
	l := ledger.New(ledger.DefaultConfig(), db, nil, ledger.WithClock(clock))
	notes := &recorder{}
	env := &testEnv{svc: New(db, l, notes, nil, WithClock(clock)), ledger: l, db: db, notes: notes}
	for _, id := range members {
		if _, err := l.Register(context.Background(), ledger.RegisterRequest{ID: id}); err != nil {
			t.Fatalf("Register(%s) error: %v", id, err)
		}
	}
	return env
}

func (e *testEnv) listing(t *testing.T, typ domain.ListingType, owner, hours string, capacity int) *domain.Listing {
	t.Helper()
	l, err := e.svc.CreateListing(context.Background(), ListingRequest{
		Type: typ, OwnerID: owner, Title: "help", Hours: domain.HoursOf(hours), Capacity: capacity,
	})
	if err != nil {
		t.Fatalf("CreateListing() error: %v", err)
	}
	return l
}

func (e *testEnv) propose(t *testing.T, listingID, member string) *domain.Commitment {
	t.Helper()
	c, err := e.svc.Propose(context.Background(), listingID, member, "")
	if err != nil {
		t.Fatalf("Propose(%s) error: %v", member, err)
	}
	return c
}

func (e *testEnv) accepted(t *testing.T, l *domain.Listing, member string) *domain.Commitment {
	t.Helper()
	c := e.propose(t, l.ID, member)
	c, err := e.svc.Accept(context.Background(), c.ID, l.OwnerID)
	if err != nil {
		t.Fatalf("Accept(%s) error: %v", member, err)
	}
	return c
}

func (e *testEnv) balance(t *testing.T, id string) string {
	t.Helper()
	b, err := e.ledger.Balance(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	return b.String()
}

// ─── Listings ───────────────────────────────────────────────────────────────

func TestCreateListing_Validation(t *testing.T) {
	env := newTestEnv(t, "owner")
	ctx := context.Background()

	tests := []struct {
		name string
		req  ListingRequest
		want error
	}{
		{"bad type", ListingRequest{Type: "SWAP", OwnerID: "owner", Hours: domain.HoursOf("1")}, domain.ErrInvalidListing},
		{"zero hours", ListingRequest{Type: domain.ListingOffer, OwnerID: "owner", Hours: domain.HoursOf("0")}, domain.ErrInvalidAmount},
		{"odd hours", ListingRequest{Type: domain.ListingOffer, OwnerID: "owner", Hours: domain.HoursOf("1.3")}, domain.ErrInvalidAmount},
		{"hours beyond int64 units", ListingRequest{Type: domain.ListingOffer, OwnerID: "owner", Hours: domain.HoursOf("4611686018427387904.25")}, domain.ErrInvalidAmount},
		{"negative capacity", ListingRequest{Type: domain.ListingNeed, OwnerID: "owner", Hours: domain.HoursOf("1"), Capacity: -1}, domain.ErrInvalidCapacity},
		{"unknown owner", ListingRequest{Type: domain.ListingNeed, OwnerID: "ghost", Hours: domain.HoursOf("1")}, domain.ErrMemberNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := env.svc.CreateListing(ctx, tt.req); !errors.Is(err, tt.want) {
				t.Errorf("CreateListing() error = %v, want %v", err, tt.want)
			}
		})
	}

	l := env.listing(t, domain.ListingOffer, "owner", "1.5", 0)
	if l.Capacity != 1 || l.Status != domain.ListingActive {
		t.Errorf("listing = %d/%s, want capacity 1 ACTIVE", l.Capacity, l.Status)
	}
}

func TestSetCapacity(t *testing.T) {
	env := newTestEnv(t, "owner", "alice", "bob")
	ctx := context.Background()
	l := env.listing(t, domain.ListingOffer, "owner", "1", 2)
	env.accepted(t, l, "alice")
	env.accepted(t, l, "bob")

	got, _ := env.svc.GetListing(ctx, l.ID)
	if got.Status != domain.ListingFull {
		t.Fatalf("Status = %s, want FULL", got.Status)
	}
	if _, err := env.svc.SetCapacity(ctx, l.ID, "owner", 1); !errors.Is(err, domain.ErrCapacityBelowAccepted) {
		t.Errorf("lowering below accepted error = %v, want ErrCapacityBelowAccepted", err)
	}
	if _, err := env.svc.SetCapacity(ctx, l.ID, "owner", 0); !errors.Is(err, domain.ErrInvalidCapacity) {
		t.Errorf("zero capacity error = %v, want ErrInvalidCapacity", err)
	}
	if _, err := env.svc.SetCapacity(ctx, l.ID, "alice", 5); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("non-owner error = %v, want ErrForbidden", err)
	}

	got, err := env.svc.SetCapacity(ctx, l.ID, "owner", 3)
	if err != nil {
		t.Fatalf("SetCapacity() error: %v", err)
	}
	if got.Status != domain.ListingActive || got.Capacity != 3 {
		t.Errorf("after raise = %s/%d, want ACTIVE/3", got.Status, got.Capacity)
	}
}

func TestArchiveAndExpire_RefuseProposals(t *testing.T) {
	env := newTestEnv(t, "owner", "alice", "bob")
	ctx := context.Background()

	archived := env.listing(t, domain.ListingOffer, "owner", "1", 2)
	pending := env.propose(t, archived.ID, "alice")
	if _, err := env.svc.Archive(ctx, archived.ID, "alice"); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("Archive by non-owner error = %v, want ErrForbidden", err)
	}
	if _, err := env.svc.Archive(ctx, archived.ID, "owner"); err != nil {
		t.Fatalf("Archive() error: %v", err)
	}
	if _, err := env.svc.Propose(ctx, archived.ID, "bob", ""); !errors.Is(err, domain.ErrListingUnavailable) {
		t.Errorf("Propose on archived error = %v, want ErrListingUnavailable", err)
	}
	if _, err := env.svc.Accept(ctx, pending.ID, "owner"); !errors.Is(err, domain.ErrListingUnavailable) {
		t.Errorf("Accept on archived error = %v, want ErrListingUnavailable", err)
	}

	expired := env.listing(t, domain.ListingNeed, "owner", "1", 1)
	got, err := env.svc.Expire(ctx, expired.ID)
	if err != nil || got.Status != domain.ListingExpired {
		t.Fatalf("Expire() = %v, %v", got, err)
	}
	if _, err := env.svc.Propose(ctx, expired.ID, "bob", ""); !errors.Is(err, domain.ErrListingUnavailable) {
		t.Errorf("Propose on expired error = %v, want ErrListingUnavailable", err)
	}
}

// ─── Proposal ───────────────────────────────────────────────────────────────

func TestPropose(t *testing.T) {
	env := newTestEnv(t, "owner", "alice", "bob")
	ctx := context.Background()
	l := env.listing(t, domain.ListingOffer, "owner", "2", 1)

	c, err := env.svc.Propose(ctx, l.ID, "alice", "can I join?")
	if err != nil {
		t.Fatalf("Propose() error: %v", err)
	}
	if c.Status != domain.CommitmentPending || c.OwnerID != "owner" || c.Message != "can I join?" {
		t.Errorf("commitment = %+v", c)
	}
	if n := env.notes.last(t); n.Kind != domain.NotifyProposed || n.Recipients[0] != "owner" {
		t.Errorf("notification = %+v", n)
	}

	if _, err := env.svc.Propose(ctx, l.ID, "owner", ""); !errors.Is(err, domain.ErrSelfExchange) {
		t.Errorf("self proposal error = %v, want ErrSelfExchange", err)
	}
	if _, err := env.svc.Propose(ctx, l.ID, "alice", ""); !errors.Is(err, domain.ErrDuplicateProposal) {
		t.Errorf("duplicate proposal error = %v, want ErrDuplicateProposal", err)
	}
	if _, err := env.svc.Propose(ctx, "nope", "alice", ""); !errors.Is(err, domain.ErrListingNotFound) {
		t.Errorf("unknown listing error = %v, want ErrListingNotFound", err)
	}

	if _, err := env.svc.Accept(ctx, c.ID, "owner"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.svc.Propose(ctx, l.ID, "bob", ""); !errors.Is(err, domain.ErrCapacityExceeded) {
		t.Errorf("proposal on FULL listing error = %v, want ErrCapacityExceeded", err)
	}
}

// ─── Acceptance ─────────────────────────────────────────────────────────────

func TestAccept_OwnerOnlyAndFixesHours(t *testing.T) {
	env := newTestEnv(t, "owner", "alice")
	ctx := context.Background()
	l := env.listing(t, domain.ListingOffer, "owner", "1.75", 1)
	c := env.propose(t, l.ID, "alice")

	if _, err := env.svc.Accept(ctx, c.ID, "alice"); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("Accept by proposer error = %v, want ErrForbidden", err)
	}
	got, err := env.svc.Accept(ctx, c.ID, "owner")
	if err != nil {
		t.Fatalf("Accept() error: %v", err)
	}
	if got.Status != domain.CommitmentAccepted || got.AcceptedAt == nil {
		t.Errorf("commitment = %+v", got)
	}
	if !got.Hours.Equal(domain.HoursOf("1.75")) {
		t.Errorf("Hours = %s, want 1.75", got.Hours)
	}
	if _, err := env.svc.Accept(ctx, c.ID, "owner"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("second Accept() error = %v, want ErrInvalidTransition", err)
	}
}

// Capacity 1, two different pending commitments accepted concurrently.
func TestAccept_ConcurrentLastSlot(t *testing.T) {
	env := newTestEnv(t, "owner", "alice", "bob")
	ctx := context.Background()
	l := env.listing(t, domain.ListingOffer, "owner", "1", 1)
	a := env.propose(t, l.ID, "alice")
	b := env.propose(t, l.ID, "bob")

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i, id := range []string{a.ID, b.ID} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = env.svc.Accept(ctx, id, "owner")
		}()
	}
	wg.Wait()

	var ok, full int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrCapacityExceeded):
			full++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 || full != 1 {
		t.Errorf("accepted=%d capacity-exceeded=%d, want 1 and 1", ok, full)
	}
	got, _ := env.svc.GetListing(ctx, l.ID)
	if got.Status != domain.ListingFull || got.AcceptedCount != 1 {
		t.Errorf("listing = %s/%d, want FULL/1", got.Status, got.AcceptedCount)
	}
}

func TestAccept_ConcurrentNeverExceedsCapacity(t *testing.T) {
	const capacity, proposers = 3, 8
	members := []string{"owner"}
	for i := 0; i < proposers; i++ {
		members = append(members, fmt.Sprintf("m%d", i))
	}
	env := newTestEnv(t, members...)
	ctx := context.Background()
	l := env.listing(t, domain.ListingOffer, "owner", "1", capacity)

	var ids []string
	for _, m := range members[1:] {
		ids = append(ids, env.propose(t, l.ID, m).ID)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			env.svc.Accept(ctx, id, "owner")
		}()
	}
	wg.Wait()

	cs, _ := env.svc.ListForListing(ctx, l.ID)
	accepted := 0
	for _, c := range cs {
		if c.Status == domain.CommitmentAccepted {
			accepted++
		}
	}
	if accepted != capacity {
		t.Errorf("accepted = %d, want %d", accepted, capacity)
	}
	got, _ := env.svc.GetListing(ctx, l.ID)
	if got.AcceptedCount != capacity || got.Status != domain.ListingFull {
		t.Errorf("listing = %s/%d, want FULL/%d", got.Status, got.AcceptedCount, capacity)
	}
}

// ─── Decline & Cancel ───────────────────────────────────────────────────────

func TestDecline(t *testing.T) {
	env := newTestEnv(t, "owner", "alice")
	ctx := context.Background()
	l := env.listing(t, domain.ListingNeed, "owner", "1", 1)
	c := env.propose(t, l.ID, "alice")

	if _, err := env.svc.Decline(ctx, c.ID, "alice"); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("Decline by proposer error = %v, want ErrForbidden", err)
	}
	got, err := env.svc.Decline(ctx, c.ID, "owner")
	if err != nil {
		t.Fatalf("Decline() error: %v", err)
	}
	if got.Status != domain.CommitmentDeclined || got.DeclinedAt == nil {
		t.Errorf("commitment = %+v", got)
	}

	// Terminal.
	for name, op := range map[string]func(context.Context, string, string) (*domain.Commitment, error){
		"accept":  env.svc.Accept,
		"decline": env.svc.Decline,
		"confirm": env.svc.Confirm,
	} {
		if _, err := op(ctx, c.ID, "owner"); !errors.Is(err, domain.ErrInvalidTransition) {
			t.Errorf("%s after decline error = %v, want ErrInvalidTransition", name, err)
		}
	}
	if _, err := env.svc.Cancel(ctx, c.ID, "alice"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("cancel after decline error = %v, want ErrInvalidTransition", err)
	}
}

func TestCancel_Pending(t *testing.T) {
	env := newTestEnv(t, "owner", "alice", "mallory")
	ctx := context.Background()
	l := env.listing(t, domain.ListingOffer, "owner", "1", 1)
	c := env.propose(t, l.ID, "alice")

	if _, err := env.svc.Cancel(ctx, c.ID, "owner"); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("owner cancelling a pending proposal error = %v, want ErrForbidden", err)
	}
	if _, err := env.svc.Cancel(ctx, c.ID, "mallory"); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("stranger cancel error = %v, want ErrForbidden", err)
	}
	got, err := env.svc.Cancel(ctx, c.ID, "alice")
	if err != nil {
		t.Fatalf("Cancel() error: %v", err)
	}
	if got.Status != domain.CommitmentCancelled || got.CancelledBy != "alice" {
		t.Errorf("commitment = %+v", got)
	}
	// The proposer can try again after withdrawing.
	env.propose(t, l.ID, "alice")
}

func TestCancel_AcceptedReleasesCapacity(t *testing.T) {
	env := newTestEnv(t, "owner", "alice")
	ctx := context.Background()
	l := env.listing(t, domain.ListingOffer, "owner", "1", 1)
	c := env.accepted(t, l, "alice")

	if _, err := env.svc.Cancel(ctx, c.ID, "owner"); err != nil {
		t.Fatalf("owner Cancel() error: %v", err)
	}
	got, _ := env.svc.GetListing(ctx, l.ID)
	if got.Status != domain.ListingActive || got.AcceptedCount != 0 {
		t.Errorf("listing = %s/%d, want ACTIVE/0", got.Status, got.AcceptedCount)
	}
	if env.balance(t, "alice") != "3" || env.balance(t, "owner") != "3" {
		t.Error("cancellation must not touch balances")
	}
	n := env.notes.last(t)
	if n.Kind != domain.NotifyCancelled || n.Recipients[0] != "alice" || n.Data["partially_confirmed"] != "" {
		t.Errorf("notification = %+v", n)
	}
}

func TestCancel_AfterPartialConfirmationNotifiesOtherParty(t *testing.T) {
	env := newTestEnv(t, "owner", "alice")
	ctx := context.Background()
	l := env.listing(t, domain.ListingOffer, "owner", "1", 1)
	c := env.accepted(t, l, "alice")

	if _, err := env.svc.Confirm(ctx, c.ID, "owner"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.svc.Cancel(ctx, c.ID, "alice"); err != nil {
		t.Fatalf("Cancel() error: %v", err)
	}
	n := env.notes.last(t)
	if n.Data["partially_confirmed"] != "true" {
		t.Errorf("Data = %v, want partially_confirmed", n.Data)
	}
	if len(n.Recipients) != 1 || n.Recipients[0] != "owner" {
		t.Errorf("Recipients = %v, want [owner]", n.Recipients)
	}
}

// ─── Confirmation & Completion ──────────────────────────────────────────────

func TestConfirm_DualConfirmationPostsOnce(t *testing.T) {
	env := newTestEnv(t, "owner", "alice")
	ctx := context.Background()
	l := env.listing(t, domain.ListingOffer, "owner", "2", 1)
	c := env.accepted(t, l, "alice")

	first, err := env.svc.Confirm(ctx, c.ID, "alice")
	if err != nil {
		t.Fatalf("first Confirm() error: %v", err)
	}
	if first.Status != domain.CommitmentAccepted || first.DisplayStatus() != domain.DisplayAwaitingConfirmation {
		t.Errorf("after first confirm = %s/%s", first.Status, first.DisplayStatus())
	}
	if tr, _ := env.db.GetTransferByCommitment(ctx, c.ID); tr != nil {
		t.Fatal("first confirmation must not post a transfer")
	}

	sent := env.notes.count()
	again, err := env.svc.Confirm(ctx, c.ID, "alice")
	if err != nil {
		t.Fatalf("repeat Confirm() error: %v", err)
	}
	if again.Confirmation != domain.CounterpartyConfirmed {
		t.Errorf("Confirmation = %s, want COUNTERPARTY_CONFIRMED", again.Confirmation)
	}
	if env.notes.count() != sent {
		t.Error("a no-op confirmation should not notify")
	}

	done, err := env.svc.Confirm(ctx, c.ID, "owner")
	if err != nil {
		t.Fatalf("second Confirm() error: %v", err)
	}
	if done.Status != domain.CommitmentCompleted || done.Confirmation != domain.BothConfirmed || done.CompletedAt == nil {
		t.Errorf("commitment = %+v", done)
	}
	// Offer: the participant pays the owner.
	if env.balance(t, "alice") != "1" || env.balance(t, "owner") != "5" {
		t.Errorf("balances alice=%s owner=%s, want 1 and 5", env.balance(t, "alice"), env.balance(t, "owner"))
	}
	if n := env.notes.last(t); n.Kind != domain.NotifyCompleted || len(n.Recipients) != 2 {
		t.Errorf("notification = %+v", n)
	}

	// Retried completion calls are no-ops.
	for _, who := range []string{"owner", "alice"} {
		got, err := env.svc.Confirm(ctx, c.ID, who)
		if err != nil || got.Status != domain.CommitmentCompleted {
			t.Errorf("retry Confirm(%s) = %v, %v", who, got, err)
		}
	}
	if env.balance(t, "alice") != "1" {
		t.Errorf("alice = %s after retries, want 1", env.balance(t, "alice"))
	}
}

func TestConfirm_ConcurrentSecondConfirmations(t *testing.T) {
	env := newTestEnv(t, "owner", "alice")
	ctx := context.Background()
	l := env.listing(t, domain.ListingOffer, "owner", "1", 1)
	c := env.accepted(t, l, "alice")
	if _, err := env.svc.Confirm(ctx, c.ID, "alice"); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := env.svc.Confirm(ctx, c.ID, "owner"); err != nil {
				t.Errorf("Confirm() error: %v", err)
			}
		}()
	}
	wg.Wait()

	entries, _ := env.db.AllEntries(ctx, "alice")
	debits := 0
	for _, e := range entries {
		if e.Type() == domain.EntryDebit {
			debits++
		}
	}
	if debits != 1 {
		t.Errorf("debits = %d, want exactly 1", debits)
	}
}

func TestConfirm_NeedOwnerPays(t *testing.T) {
	env := newTestEnv(t, "owner", "helper")
	ctx := context.Background()
	l := env.listing(t, domain.ListingNeed, "owner", "1.5", 1)
	c := env.accepted(t, l, "helper")

	env.svc.Confirm(ctx, c.ID, "owner")
	if _, err := env.svc.Confirm(ctx, c.ID, "helper"); err != nil {
		t.Fatal(err)
	}
	if env.balance(t, "owner") != "1.5" || env.balance(t, "helper") != "4.5" {
		t.Errorf("balances owner=%s helper=%s, want 1.5 and 4.5", env.balance(t, "owner"), env.balance(t, "helper"))
	}
}

func TestConfirm_StrangerForbidden(t *testing.T) {
	env := newTestEnv(t, "owner", "alice", "mallory")
	l := env.listing(t, domain.ListingOffer, "owner", "1", 1)
	c := env.accepted(t, l, "alice")
	if _, err := env.svc.Confirm(context.Background(), c.ID, "mallory"); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("Confirm by stranger error = %v, want ErrForbidden", err)
	}
}

// A ledger refusal rolls the second confirmation back.
func TestConfirm_LedgerFailureRollsBack(t *testing.T) {
	env := newTestEnv(t, "owner", "alice")
	ctx := context.Background()
	// 3 - 14 = -11, below the -10 ceiling.
	l := env.listing(t, domain.ListingOffer, "owner", "14", 1)
	c := env.accepted(t, l, "alice")

	env.svc.Confirm(ctx, c.ID, "owner")
	_, err := env.svc.Confirm(ctx, c.ID, "alice")
	if !errors.Is(err, domain.ErrReciprocityViolation) {
		t.Fatalf("Confirm() error = %v, want ErrReciprocityViolation", err)
	}

	got, _ := env.svc.Get(ctx, c.ID)
	if got.Status != domain.CommitmentAccepted || got.Confirmation != domain.OwnerConfirmed {
		t.Errorf("commitment = %s/%s, want ACCEPTED/OWNER_CONFIRMED", got.Status, got.Confirmation)
	}
	if env.balance(t, "alice") != "3" || env.balance(t, "owner") != "3" {
		t.Error("balances must be unchanged")
	}
}

// Capacity 3, three participants, one 2 hour session.
func TestConfirm_GroupSession(t *testing.T) {
	env := newTestEnv(t, "owner", "p1", "p2", "p3")
	ctx := context.Background()
	l := env.listing(t, domain.ListingOffer, "owner", "2", 3)

	for _, p := range []string{"p1", "p2", "p3"} {
		c := env.accepted(t, l, p)
		if _, err := env.svc.Confirm(ctx, c.ID, p); err != nil {
			t.Fatal(err)
		}
		if _, err := env.svc.Confirm(ctx, c.ID, "owner"); err != nil {
			t.Fatalf("Confirm(owner) for %s error: %v", p, err)
		}
	}

	var credited, debited int
	entries, _ := env.db.AllEntries(ctx, "owner")
	for _, e := range entries {
		if e.Kind == domain.KindTransfer && e.Type() == domain.EntryCredit {
			credited++
			if !e.Credit.Equal(domain.HoursOf("2")) {
				t.Errorf("owner credit = %s, want 2", e.Credit)
			}
		}
	}
	for _, p := range []string{"p1", "p2", "p3"} {
		es, _ := env.db.AllEntries(ctx, p)
		for _, e := range es {
			if e.Type() == domain.EntryDebit {
				debited++
			}
		}
		if env.balance(t, p) != "1" {
			t.Errorf("%s = %s, want 1", p, env.balance(t, p))
		}
	}
	if credited != 1 || debited != 3 {
		t.Errorf("owner credits=%d participant debits=%d, want 1 and 3", credited, debited)
	}
	if env.balance(t, "owner") != "5" {
		t.Errorf("owner = %s, want 5", env.balance(t, "owner"))
	}
	if _, err := env.ledger.AuditAll(ctx); err != nil {
		t.Errorf("AuditAll() error: %v", err)
	}
}

func TestConfirm_SessionSurvivesCapacityRaise(t *testing.T) {
	env := newTestEnv(t, "owner", "p1", "p2", "p3")
	ctx := context.Background()
	l := env.listing(t, domain.ListingOffer, "owner", "2", 1)

	complete := func(p string) {
		t.Helper()
		c := env.accepted(t, l, p)
		if _, err := env.svc.Confirm(ctx, c.ID, p); err != nil {
			t.Fatal(err)
		}
		if _, err := env.svc.Confirm(ctx, c.ID, "owner"); err != nil {
			t.Fatalf("Confirm(owner) for %s error: %v", p, err)
		}
	}

	complete("p1")
	if _, err := env.svc.SetCapacity(ctx, l.ID, "owner", 3); err != nil {
		t.Fatalf("SetCapacity(3) error: %v", err)
	}
	complete("p2")
	complete("p3")

	credits := 0
	entries, _ := env.db.AllEntries(ctx, "owner")
	for _, e := range entries {
		if e.Kind == domain.KindTransfer && e.Type() == domain.EntryCredit {
			credits++
		}
	}
	if credits != 1 {
		t.Errorf("owner transfer credits = %d, want 1", credits)
	}
	if got := env.balance(t, "owner"); got != "5" {
		t.Errorf("owner = %s, want 5", got)
	}
	for _, p := range []string{"p1", "p2", "p3"} {
		if got := env.balance(t, p); got != "1" {
			t.Errorf("%s = %s, want 1", p, got)
		}
	}
	if _, err := env.ledger.AuditAll(ctx); err != nil {
		t.Errorf("AuditAll() error: %v", err)
	}
}

// ─── Active Items ───────────────────────────────────────────────────────────

func TestActiveItems(t *testing.T) {
	env := newTestEnv(t, "owner", "alice", "bob")
	ctx := context.Background()
	l := env.listing(t, domain.ListingOffer, "owner", "1", 2)
	pending := env.propose(t, l.ID, "alice")
	acc := env.accepted(t, l, "bob")
	env.svc.Confirm(ctx, acc.ID, "bob")

	items, err := env.svc.ActiveItems(ctx, "owner")
	if err != nil {
		t.Fatalf("ActiveItems() error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	byID := map[string]ActiveItem{}
	for _, it := range items {
		byID[it.Commitment.ID] = it
	}
	if it := byID[pending.ID]; it.Role != RoleOwner || !it.AwaitingYou || it.DisplayStatus != "PENDING" {
		t.Errorf("pending item = %+v", it)
	}
	if it := byID[acc.ID]; !it.AwaitingYou || it.DisplayStatus != domain.DisplayAwaitingConfirmation {
		t.Errorf("accepted item = %+v", it)
	}

	bobItems, _ := env.svc.ActiveItems(ctx, "bob")
	if len(bobItems) != 1 || bobItems[0].AwaitingYou || bobItems[0].Role != RoleParticipant {
		t.Errorf("bob items = %+v", bobItems)
	}
}
