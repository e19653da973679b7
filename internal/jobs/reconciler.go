// Package jobs runs the periodic sweep that re-verifies payments whose
// gateway redirect never arrived.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/honeynil/RentalOrderService/internal/config"
	service "github.com/honeynil/RentalOrderService/internal/services"
	"github.com/robfig/cron/v3"
)

type StaleReconciler interface {
	ReconcileStale(ctx context.Context, olderThan time.Duration, limit int) (*service.ReconcileReport, error)
}

type Scheduler struct {
	cron   *cron.Cron
	svc    StaleReconciler
	cfg    config.ReconcilerConfig
	ctx    context.Context
	cancel context.CancelFunc
}

func NewScheduler(svc StaleReconciler, cfg config.ReconcilerConfig) (*Scheduler, error) {
	logger := cron.PrintfLogger(slog.NewLogLogger(slog.Default().Handler(), slog.LevelInfo))
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{cron: c, svc: svc, cfg: cfg, ctx: ctx, cancel: cancel}

	if _, err := c.AddFunc(cfg.Schedule, func() { s.RunOnce(s.ctx) }); err != nil {
		cancel()
		return nil, fmt.Errorf("invalid reconciler schedule %q: %w", cfg.Schedule, err)
	}
	return s, nil
}

// RunOnce performs a single sweep. Errors are logged; the next tick retries.
func (s *Scheduler) RunOnce(ctx context.Context) {
	start := time.Now()
	report, err := s.svc.ReconcileStale(ctx, s.cfg.StaleAfter, s.cfg.BatchSize)
	if err != nil {
		slog.Error("stale payment sweep failed", "error", err, "duration", time.Since(start))
		return
	}
	if report.Checked > 0 {
		slog.Info("stale payment sweep",
			"checked", report.Checked,
			"settled", report.Settled,
			"pending", report.Pending,
			"failed", report.Failed,
			"duration", time.Since(start))
	}
}

func (s *Scheduler) Start() {
	slog.Info("reconciler started", "schedule", s.cfg.Schedule, "stale_after", s.cfg.StaleAfter)
	s.cron.Start()
}

// Stop cancels an in-flight sweep and waits for it to return.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		slog.Info("reconciler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
