package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/apprendschap/packkit/pkg/payment"
)

// RunnerConfig holds the sweep schedule.
type RunnerConfig struct {
	ExpirationInterval time.Duration `env:"SWEEP_EXPIRATION_INTERVAL" envDefault:"1h"`
	PendingInterval    time.Duration `env:"SWEEP_PENDING_INTERVAL" envDefault:"1m"`
}

// Runner drives the expiration sweep and the pending payment sweep on
// their own tickers until the context is cancelled.
type Runner struct {
	sweeper    *Sweeper
	reconciler *payment.Reconciler
	cfg        RunnerConfig
	log        *slog.Logger
}

// NewRunner creates a sweep Runner. The reconciler may be nil to run only
// expiration sweeps.
func NewRunner(sweeper *Sweeper, reconciler *payment.Reconciler, cfg RunnerConfig, log *slog.Logger) *Runner {
	if sweeper == nil {
		panic("sweeper: Sweeper is required")
	}
	if cfg.ExpirationInterval <= 0 {
		cfg.ExpirationInterval = time.Hour
	}
	if cfg.PendingInterval <= 0 {
		cfg.PendingInterval = time.Minute
	}
	if log == nil {
		log = slog.Default()
	}
	return &Runner{sweeper: sweeper, reconciler: reconciler, cfg: cfg, log: log}
}

// Start runs both sweeps immediately, then on their intervals. Blocks
// until ctx is cancelled and returns ctx.Err().
func (r *Runner) Start(ctx context.Context) error {
	expiration := time.NewTicker(r.cfg.ExpirationInterval)
	defer expiration.Stop()
	pending := time.NewTicker(r.cfg.PendingInterval)
	defer pending.Stop()

	r.sweepExpirations(ctx)
	r.sweepPending(ctx)

	for {
		select {
		case <-ctx.Done():
			r.log.InfoContext(ctx, "sweep runner shutting down")
			return ctx.Err()
		case <-expiration.C:
			r.sweepExpirations(ctx)
		case <-pending.C:
			r.sweepPending(ctx)
		}
	}
}

func (r *Runner) sweepExpirations(ctx context.Context) {
	if _, err := r.sweeper.Sweep(ctx); err != nil {
		r.log.ErrorContext(ctx, "expiration sweep failed", "error", err)
	}
}

func (r *Runner) sweepPending(ctx context.Context) {
	if r.reconciler == nil {
		return
	}
	if _, err := r.reconciler.SweepPending(ctx); err != nil {
		r.log.ErrorContext(ctx, "pending payment sweep failed", "error", err)
	}
}
