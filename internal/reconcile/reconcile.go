package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"flakewatch/internal/logging"
	"flakewatch/internal/store"
	"flakewatch/internal/verify"
)

// Reconciler periodically scans for pending resolutions whose verification
// window has elapsed and runs the verifier on each. The scan is the durable
// scheduling mechanism: an in-process timer alone would not survive a
// restart, the verify_after column does.
type Reconciler struct {
	store    store.Store
	verifier *verify.Verifier
	interval time.Duration
	parallel int
	logger   *slog.Logger
}

// New returns a Reconciler scanning every interval with at most parallel
// concurrent verifications.
func New(st store.Store, v *verify.Verifier, interval time.Duration, parallel int) *Reconciler {
	if parallel < 1 {
		parallel = 1
	}
	return &Reconciler{
		store:    st,
		verifier: v,
		interval: interval,
		parallel: parallel,
		logger:   logging.New("reconcile"),
	}
}

// Run loops until ctx is canceled, scanning once per interval. An initial
// scan runs immediately so restarts pick up overdue verifications without
// waiting a full interval.
func (r *Reconciler) Run(ctx context.Context) error {
	if _, err := r.RunOnce(ctx, time.Now()); err != nil {
		r.logger.Error("reconcile scan failed", "err", err)
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.RunOnce(ctx, time.Now()); err != nil {
				r.logger.Error("reconcile scan failed", "err", err)
			}
		}
	}
}

// RunOnce performs a single due-verification scan and returns how many
// resolutions were verified. Per-resolution failures are logged and left
// pending for the next scan; already-finalized records no-op inside the
// verifier, so a rescheduled check that already ran is harmless.
func (r *Reconciler) RunOnce(ctx context.Context, now time.Time) (int, error) {
	due, err := r.store.ListDueVerifications(now)
	if err != nil {
		return 0, err
	}
	if len(due) == 0 {
		return 0, nil
	}
	r.logger.Info("due verifications found", "count", len(due))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallel)

	done := 0
	results := make(chan struct{}, len(due))
	for _, rec := range due {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, err := r.verifier.Verify(rec.ID, now); err != nil {
				if errors.Is(err, verify.ErrNotDue) {
					return nil
				}
				// Leave pending; the next scan retries.
				r.logger.Warn("verification failed, will retry",
					"resolution", rec.ID, "err", err)
				return nil
			}
			results <- struct{}{}
			return nil
		})
	}
	err = g.Wait()
	close(results)
	for range results {
		done++
	}
	return done, err
}
