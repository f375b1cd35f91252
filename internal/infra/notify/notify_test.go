package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Yusufss4/swe573-practice-sub001/internal/domain"
	"github.com/Yusufss4/swe573-practice-sub001/internal/infra/observability"
	"github.com/Yusufss4/swe573-practice-sub001/internal/infra/sqlite"
)

type memorySink struct {
	mu    sync.Mutex
	got   []domain.Notification
	gate  chan struct{} // when non-nil, Deliver waits on it
	fails bool
}

func (s *memorySink) Deliver(_ context.Context, n domain.Notification) error {
	if s.gate != nil {
		<-s.gate
	}
	if s.fails {
		return errors.New("sink down")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, n)
	return nil
}

func (s *memorySink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

func note(i int) domain.Notification {
	return domain.Notification{
		ID:         fmt.Sprintf("n%d", i),
		Kind:       domain.NotifyAccepted,
		Recipients: []string{"alice"},
		CreatedAt:  time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestWorker_DeliversAndDrainsOnClose(t *testing.T) {
	sink := &memorySink{}
	w := NewWorker(sink, 16, nil, nil)
	w.Start()
	for i := 0; i < 10; i++ {
		w.Notify(note(i))
	}
	w.Close()

	if got := sink.len(); got != 10 {
		t.Errorf("delivered = %d, want 10", got)
	}
	// Closing twice is fine.
	w.Close()
}

// ctxSink refuses deliveries whose context is already done, as a store does.
type ctxSink struct {
	memorySink
}

func (s *ctxSink) Deliver(ctx context.Context, n domain.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.memorySink.Deliver(ctx, n)
}

func TestWorker_CloseDeliversQueuedWithLiveContext(t *testing.T) {
	for round := 0; round < 50; round++ {
		sink := &ctxSink{}
		w := NewWorker(sink, 64, nil, nil)
		w.Start()
		for i := 0; i < 32; i++ {
			w.Notify(note(i))
		}
		w.Close()
		if got := sink.len(); got != 32 {
			t.Fatalf("round %d: delivered = %d, want 32", round, got)
		}
	}
}

func TestWorker_DropsWhenFull(t *testing.T) {
	sink := &memorySink{gate: make(chan struct{})}
	alerts := observability.NewAlertLog(observability.DefaultAlertLogConfig())
	w := NewWorker(sink, 2, nil, alerts)
	w.Start()

	// The first notification may be picked up by the goroutine and block in
	// Deliver, so send enough to overflow either way.
	start := time.Now()
	for i := 0; i < 6; i++ {
		w.Notify(note(i))
	}
	if time.Since(start) > time.Second {
		t.Error("Notify blocked on a full queue")
	}
	if alerts.Len() < 3 {
		t.Errorf("drop alerts = %d, want at least 3", alerts.Len())
	}
	if a := alerts.Recent(1)[0]; a.Kind != observability.AlertNotificationDrop {
		t.Errorf("alert kind = %s, want %s", a.Kind, observability.AlertNotificationDrop)
	}

	close(sink.gate)
	w.Close()
	if got := sink.len(); got < 2 || got > 3 {
		t.Errorf("delivered = %d, want 2 or 3", got)
	}
}

func TestWorker_NotifyAfterCloseDrops(t *testing.T) {
	sink := &memorySink{}
	alerts := observability.NewAlertLog(observability.DefaultAlertLogConfig())
	w := NewWorker(sink, 4, nil, alerts)
	w.Start()
	w.Close()

	w.Notify(note(1))
	if sink.len() != 0 {
		t.Error("closed worker delivered a notification")
	}
	if alerts.Len() != 1 {
		t.Errorf("alerts = %d, want 1", alerts.Len())
	}
}

func TestWorker_SinkErrorDoesNotStop(t *testing.T) {
	sink := &memorySink{fails: true}
	w := NewWorker(sink, 4, nil, nil)
	w.Start()
	w.Notify(note(1))
	w.Notify(note(2))
	w.Close()
	if sink.len() != 0 {
		t.Errorf("delivered = %d, want 0", sink.len())
	}
}

func TestStoreSink_WritesOutbox(t *testing.T) {
	db, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	w := NewWorker(StoreSink{Repo: db}, 4, nil, nil)
	w.Start()
	n := note(7)
	n.Recipients = []string{"alice", "bob"}
	n.Data = map[string]string{"hours": "2"}
	w.Notify(n)
	w.Close()

	for _, who := range []string{"alice", "bob"} {
		got, err := db.ListNotifications(context.Background(), who, 10)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 || got[0].ID != "n7" || got[0].Data["hours"] != "2" {
			t.Errorf("%s outbox = %+v", who, got)
		}
	}
}

func TestLogSink(t *testing.T) {
	if err := (LogSink{}).Deliver(context.Background(), note(1)); err != nil {
		t.Errorf("Deliver() error: %v", err)
	}
}
