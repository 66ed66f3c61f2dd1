// Package reconcile repairs settled payments whose entitlement write was lost
// and sweeps subscriptions that ran past their period.
package reconcile

import (
	"context"
	"time"

	"github.com/inspira-labs/inspira-billing/internal/clock"
	"github.com/inspira-labs/inspira-billing/internal/metrics"
	paymentdomain "github.com/inspira-labs/inspira-billing/internal/payment/domain"
	"github.com/inspira-labs/inspira-billing/internal/ratelimit"
	subscriptiondomain "github.com/inspira-labs/inspira-billing/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Clock       clock.Clock
	PaymentRepo paymentdomain.Repository
	SubSvc      subscriptiondomain.Service
	Guard       *ratelimit.Guard `optional:"true"`
	Config      Config           `optional:"true"`
	Metrics     *metrics.Metrics `optional:"true"`
}

type Worker struct {
	db          *gorm.DB
	log         *zap.Logger
	clock       clock.Clock
	paymentRepo paymentdomain.Repository
	subSvc      subscriptiondomain.Service
	guard       *ratelimit.Guard
	metrics     *metrics.Metrics
	cfg         Config
}

func NewWorker(p Params) *Worker {
	return &Worker{
		db:          p.DB,
		log:         p.Log.Named("reconcile.worker"),
		clock:       p.Clock,
		paymentRepo: p.PaymentRepo,
		subSvc:      p.SubSvc,
		guard:       p.Guard,
		metrics:     p.Metrics,
		cfg:         p.Config.withDefaults(),
	}
}

func (w *Worker) RunForever(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := w.RunOnce(ctx); err != nil {
			w.log.Warn("reconcile run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *Worker) RunOnce(parentCtx context.Context) error {
	ctx, cancel := context.WithTimeout(parentCtx, w.cfg.RunTimeout)
	defer cancel()

	// One replica sweeps at a time; losing the lease just skips the tick.
	token, ok, err := w.guard.TryLeaderLock(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	defer func() {
		if err := w.guard.ReleaseLeaderLock(ctx, token); err != nil {
			w.log.Warn("failed to release reconcile lease", zap.Error(err))
		}
	}()

	if _, err := w.replayStuck(ctx); err != nil {
		return err
	}

	expired, err := w.subSvc.ExpireDue(ctx)
	if err != nil {
		return err
	}
	w.metrics.RecordSubscriptionsExpired(expired)

	return nil
}

// replayStuck re-runs provisioning for settled orders the subscription never
// absorbed. Provisioning is idempotent per order, so racing a concurrent
// callback retry is harmless.
func (w *Worker) replayStuck(ctx context.Context) (int, error) {
	cutoff := w.clock.Now().Add(-w.cfg.Lookback)

	orders, err := w.paymentRepo.ListUnprovisionedSuccess(ctx, w.db, cutoff, w.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	replayed := 0
	for _, order := range orders {
		if err := w.subSvc.ProvisionQuota(ctx, order.UserID, order.Tier, order.OrderID); err != nil {
			w.log.Warn("replay failed",
				zap.String("order_id", order.OrderID),
				zap.Int64("user_id", int64(order.UserID)),
				zap.Error(err),
			)
			w.metrics.RecordReconcileReplay("failed")
			continue
		}

		w.log.Info("replayed provisioning for settled order",
			zap.String("order_id", order.OrderID),
			zap.Int64("user_id", int64(order.UserID)),
		)
		w.metrics.RecordReconcileReplay("replayed")
		replayed++
	}

	return replayed, nil
}
