package checkout

import (
	"context"
	"time"

	"stagepass/internal/orders"
	"stagepass/internal/shared/config"
	"stagepass/pkg/logger"
)

// Reclaimer sweeps orders the buyer abandoned mid-checkout. A PENDING or
// PROCESSING order that hasn't moved within the abandon window gets
// cancelled and its seats go back on sale.
type Reclaimer struct {
	checkout Service
	orders   orders.Service
	interval time.Duration
	maxAge   time.Duration
	stop     chan struct{}
	done     chan struct{}
	logger   *logger.Logger
}

func NewReclaimer(checkoutSvc Service, ordersSvc orders.Service, cfg *config.CheckoutConfig) *Reclaimer {
	return &Reclaimer{
		checkout: checkoutSvc,
		orders:   ordersSvc,
		interval: cfg.ReclaimInterval,
		maxAge:   cfg.AbandonAfter,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.GetDefault(),
	}
}

// Start runs the sweep loop until Stop is called
func (r *Reclaimer) Start(ctx context.Context) {
	go func() {
		defer close(r.done)

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		r.logger.Info("order reclaimer started",
			"interval", r.interval.String(),
			"abandon_after", r.maxAge.String())

		for {
			select {
			case <-ticker.C:
				r.sweep(ctx)
			case <-ctx.Done():
				return
			case <-r.stop:
				return
			}
		}
	}()
}

// Stop halts the loop and waits for an in-flight sweep to finish
func (r *Reclaimer) Stop() {
	close(r.stop)
	<-r.done
}

func (r *Reclaimer) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-r.maxAge)

	stale, err := r.orders.ListStaleOrders(ctx, cutoff)
	if err != nil {
		r.logger.WithError(err).Error("reclaimer failed to list stale orders")
		return
	}

	for _, order := range stale {
		if err := r.checkout.CancelAbandoned(ctx, order.ID); err != nil {
			r.logger.WithError(err).Error("reclaimer failed to cancel abandoned order",
				"order_id", order.ID.String())
			continue
		}
		r.logger.Info("abandoned order reclaimed",
			"order_id", order.ID.String(),
			"reference", order.Reference)
	}

	purged, err := r.orders.PurgeExpiredTemporaryUsers(ctx)
	if err != nil {
		r.logger.WithError(err).Error("reclaimer failed to purge expired temporary users")
		return
	}
	if purged > 0 {
		r.logger.Info("expired temporary users purged", "count", purged)
	}
}
