// Package notify delivers state-transition notifications off the request
// path. Worker implements domain.Notifier: Notify never blocks, and a full
// buffer drops the notification with a warning.
package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Yusufss4/swe573-practice-sub001/internal/domain"
	"github.com/Yusufss4/swe573-practice-sub001/internal/infra/observability"
)

// DefaultBuffer is the queue size used when none is configured.
const DefaultBuffer = 256

// Sink receives notifications from the worker.
type Sink interface {
	Deliver(ctx context.Context, n domain.Notification) error
}

// ─── Sinks ──────────────────────────────────────────────────────────────────

// StoreSink writes notifications to the store outbox, where the external
// push collaborator picks them up.
type StoreSink struct {
	Repo domain.Repository
}

// Deliver implements Sink.
func (s StoreSink) Deliver(ctx context.Context, n domain.Notification) error {
	return s.Repo.InsertNotification(ctx, n)
}

// LogSink logs every notification. Used when no outbox is wanted.
type LogSink struct {
	Logger *slog.Logger
}

// Deliver implements Sink.
func (s LogSink) Deliver(_ context.Context, n domain.Notification) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("notification", "id", n.ID, "kind", n.Kind, "commitment_id", n.CommitmentID, "recipients", n.Recipients)
	return nil
}

// ─── Worker ─────────────────────────────────────────────────────────────────

// Worker queues notifications and hands them to a Sink on one goroutine.
type Worker struct {
	ch     chan domain.Notification
	sink   Sink
	log    *slog.Logger
	alerts *observability.AlertLog
	wg     sync.WaitGroup

	mu     sync.RWMutex // guards closed and the close of ch
	closed bool
}

// NewWorker creates a worker with a queue of buffer notifications. alerts
// may be nil.
func NewWorker(sink Sink, buffer int, logger *slog.Logger, alerts *observability.AlertLog) *Worker {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		ch:     make(chan domain.Notification, buffer),
		sink:   sink,
		log:    logger.With("component", "notify"),
		alerts: alerts,
	}
}

// Start launches the delivery goroutine. It runs until Close has closed the
// queue and every queued notification has been handed to the sink.
func (w *Worker) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for n := range w.ch {
			w.deliver(context.Background(), n)
		}
	}()
}

func (w *Worker) deliver(ctx context.Context, n domain.Notification) {
	if err := w.sink.Deliver(ctx, n); err != nil {
		w.log.Error("notification delivery failed", "error", err, "id", n.ID, "kind", n.Kind)
		return
	}
	observability.NotificationsDelivered.Inc()
}

// Notify implements domain.Notifier.
func (w *Worker) Notify(n domain.Notification) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		w.drop(n, "worker closed")
		return
	}
	select {
	case w.ch <- n:
	default:
		w.drop(n, "queue full")
	}
}

func (w *Worker) drop(n domain.Notification, reason string) {
	observability.NotificationsDropped.Inc()
	w.log.Warn("dropping notification", "reason", reason, "id", n.ID, "kind", n.Kind, "commitment_id", n.CommitmentID)
	w.alerts.Raise(observability.Alert{
		Kind:    observability.AlertNotificationDrop,
		Message: reason,
		Attrs:   map[string]string{"notification_id": n.ID, "kind": string(n.Kind)},
	})
}

// Close stops accepting notifications, delivers what is queued and waits for
// the goroutine to exit.
func (w *Worker) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.log.Info("draining notifications before shutdown", "remaining", len(w.ch))
	close(w.ch)
	w.mu.Unlock()

	w.wg.Wait()
}
