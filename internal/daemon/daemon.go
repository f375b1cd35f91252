package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/Yusufss4/swe573-practice-sub001/internal/api"
	"github.com/Yusufss4/swe573-practice-sub001/internal/app/commitment"
	"github.com/Yusufss4/swe573-practice-sub001/internal/app/feedback"
	"github.com/Yusufss4/swe573-practice-sub001/internal/app/ledger"
	"github.com/Yusufss4/swe573-practice-sub001/internal/domain"
	"github.com/Yusufss4/swe573-practice-sub001/internal/infra/notify"
	"github.com/Yusufss4/swe573-practice-sub001/internal/infra/observability"
	"github.com/Yusufss4/swe573-practice-sub001/internal/infra/postgres"
	"github.com/Yusufss4/swe573-practice-sub001/internal/infra/sqlite"
)

// OpenStore opens the configured store and applies its schema.
func OpenStore(ctx context.Context, cfg DatabaseConfig) (domain.Store, error) {
	switch cfg.Driver {
	case DriverSQLite:
		db, err := sqlite.Open(cfg.Path)
		if err != nil {
			return nil, err
		}
		return db, nil
	case DriverPostgres:
		db, err := postgres.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return db, nil
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
}

// Daemon holds the wired settlement core.
type Daemon struct {
	Config      Config
	Store       domain.Store
	Alerts      *observability.AlertLog
	Notifier    *notify.Worker
	Ledger      *ledger.Ledger
	Commitments *commitment.Service
	Feedback    *feedback.Gate
	Server      *api.Server

	log *slog.Logger
}

// New opens the store and builds every component. Close releases them.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Daemon, error) {
	store, err := OpenStore(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Database.Driver, err)
	}
	return Wire(cfg, store, logger), nil
}

// Wire builds the components over an already open store.
func Wire(cfg Config, store domain.Store, logger *slog.Logger) *Daemon {
	if logger == nil {
		logger = slog.Default()
	}
	alerts := observability.NewAlertLog(observability.DefaultAlertLogConfig())

	var sink notify.Sink = notify.StoreSink{Repo: store}
	if cfg.Notify.Sink == SinkLog {
		sink = notify.LogSink{Logger: logger}
	}
	worker := notify.NewWorker(sink, cfg.Notify.Buffer, logger, alerts)
	worker.Start()

	l := ledger.New(ledger.Config{
		StartingBalance: cfg.Ledger.StartingBalance,
		DebtCeiling:     cfg.Ledger.DebtCeiling,
	}, store, logger, ledger.WithAlerts(alerts))
	c := commitment.New(store, l, worker, logger)
	f := feedback.New(feedback.Config{RevealAfter: cfg.Feedback.RevealAfterDuration()}, store, worker, logger)

	srv := api.NewServer(l, c, f, alerts, logger)
	if cfg.Metrics.Enabled {
		srv.EnableMetrics()
	}

	return &Daemon{
		Config:      cfg,
		Store:       store,
		Alerts:      alerts,
		Notifier:    worker,
		Ledger:      l,
		Commitments: c,
		Feedback:    f,
		Server:      srv,
		log:         logger.With("component", "daemon"),
	}
}

// Close drains notifications and closes the store.
func (d *Daemon) Close() error {
	d.Notifier.Close()
	return d.Store.Close()
}

// Serve runs the HTTP server (and the in-process sweep when configured)
// until ctx is cancelled, then shuts down gracefully.
func (d *Daemon) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", d.Config.API.Addr())
	if err != nil {
		return fmt.Errorf("listen %s: %w", d.Config.API.Addr(), err)
	}
	return d.ServeListener(ctx, ln)
}

// ServeListener is Serve on an existing listener.
func (d *Daemon) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           d.Server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if every := d.Config.Feedback.SweepIntervalDuration(); every > 0 {
		go d.sweepLoop(ctx, every)
	}

	errCh := make(chan error, 1)
	go func() {
		d.log.Info("settlement core listening", "addr", ln.Addr().String(), "driver", d.Config.Database.Driver)
		errCh <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		d.log.Info("shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), d.Config.API.ShutdownTimeoutDuration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

// sweepLoop runs the rating timeout sweep on a ticker.
func (d *Daemon) sweepLoop(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := d.Feedback.Sweep(ctx); err != nil && ctx.Err() == nil {
				d.log.Error("scheduled sweep failed", "error", err)
			}
		}
	}
}
