package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// HoldSweeper periodically releases expired seat holds.
type HoldSweeper struct {
	cron    *cron.Cron
	svc     *BookingService
	log     *slog.Logger
	timeout time.Duration
}

// NewHoldSweeper schedules svc.SweepExpired on spec, a robfig/cron
// expression such as "@every 30s".  The schedule does not run until Start.
func NewHoldSweeper(svc *BookingService, spec string, log *slog.Logger) (*HoldSweeper, error) {
	s := &HoldSweeper{
		cron:    cron.New(),
		svc:     svc,
		log:     log,
		timeout: time.Minute,
	}
	if _, err := s.cron.AddFunc(spec, s.RunOnce); err != nil {
		return nil, err
	}
	return s, nil
}

// RunOnce performs a single sweep.
func (s *HoldSweeper) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	n, err := s.svc.SweepExpired(ctx)
	if err != nil {
		s.log.Error("hold sweep failed", "released", n, "err", err)
		return
	}
	if n > 0 {
		s.log.Info("expired holds released", "released", n)
	}
}

// Start begins running the schedule in its own goroutine.
func (s *HoldSweeper) Start() { s.cron.Start() }

// Stop halts the schedule and waits for a running sweep to finish.
func (s *HoldSweeper) Stop() {
	<-s.cron.Stop().Done()
}
