package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/aniladanir/sms-campaign-service/internal/domain"
	"github.com/aniladanir/sms-campaign-service/internal/events"
	"github.com/aniladanir/sms-campaign-service/internal/metrics"
	repository "github.com/aniladanir/sms-campaign-service/internal/repository/campaign"
)

const (
	DefaultSweepInterval = time.Minute
	DefaultStaleAfter    = 10 * time.Minute
	DefaultSweepBatch    = 500
)

// Reconciler fails recipients left pending by an interrupted dispatch and finalizes their campaigns
type Reconciler interface {
	Start()
	Stop()
	// Reconcile runs one sweep and returns the number of recipients it settled
	Reconcile(ctx context.Context) (int, error)
}

type ReconcilerConfig struct {
	Interval   time.Duration
	StaleAfter time.Duration
	BatchSize  int
}

type reconciler struct {
	ledger     repository.Repository
	publisher  events.Publisher
	logger     *slog.Logger
	interval   time.Duration
	staleAfter time.Duration
	batchSize  int
	stopChan   chan struct{}
	isRunning  bool
	mtx        sync.Mutex
}

func NewReconciler(ledger repository.Repository, publisher events.Publisher, cfg ReconcilerConfig, logger *slog.Logger) Reconciler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultSweepInterval
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = DefaultStaleAfter
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultSweepBatch
	}
	if publisher == nil {
		publisher = events.NewNopPublisher()
	}

	return &reconciler{
		ledger:     ledger,
		publisher:  publisher,
		logger:     logger,
		interval:   cfg.Interval,
		staleAfter: cfg.StaleAfter,
		batchSize:  cfg.BatchSize,
		stopChan:   make(chan struct{}),
	}
}

// Start runs the sweep loop in the background
func (r *reconciler) Start() {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	if r.isRunning {
		return
	}
	r.isRunning = true

	ticker := time.NewTicker(r.interval)
	go func(t *time.Ticker) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// initial run
		r.sweep(ctx)

		for {
			select {
			case <-t.C:
				r.sweep(ctx)
			case <-r.stopChan:
				t.Stop()
				return
			}
		}
	}(ticker)
}

// Stop halts the sweep loop
func (r *reconciler) Stop() {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	if !r.isRunning {
		return
	}

	r.stopChan <- struct{}{}
	r.isRunning = false
}

func (r *reconciler) sweep(ctx context.Context) {
	n, err := r.Reconcile(ctx)
	if err != nil {
		r.logger.Error("failed to reconcile stale recipients", "error", err.Error())
		return
	}
	if n > 0 {
		r.logger.Warn("failed stale pending recipients", "count", n)
	}
}

func (r *reconciler) Reconcile(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-r.staleAfter)

	ids, swept, err := r.ledger.SweepStaleRecipients(ctx, cutoff, r.batchSize)
	if err != nil {
		return 0, err
	}
	metrics.StaleRecipientsSweptTotal.Add(float64(swept))

	for _, id := range ids {
		logger := r.logger.With(slog.String("messageId", id.String()))

		c, err := r.ledger.GetCampaign(ctx, id)
		if err != nil {
			logger.Error("failed to load swept campaign", "error", err.Error())
			continue
		}

		status := finalStatus(c.Kind, c.FailedCount)
		err = finish(ctx, r.ledger, r.publisher, logger, c, status)
		if errors.Is(err, domain.ErrCampaignUnsettled) {
			// the rest of its recipients fall into a later batch
			continue
		}
		if err != nil {
			logger.Error("failed to finalize swept campaign", "error", err.Error())
			continue
		}
		logger.Info("finalized interrupted campaign", "status", status)
	}

	return swept, nil
}
