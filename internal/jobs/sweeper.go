// Package jobs runs background maintenance of the local store.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSweepSchedule is used when no schedule is configured.
const DefaultSweepSchedule = "@every 5m"

// passTimeout bounds one scheduled pass.
const passTimeout = time.Minute

// OverdueMarker marks overdue borrows. *inventory.Machine implements it.
type OverdueMarker interface {
	SweepOverdue(ctx context.Context) ([]string, error)
}

// Sweeper runs SweepOverdue on a cron schedule and on demand.
type Sweeper struct {
	marker   OverdueMarker
	schedule string
	log      *slog.Logger

	passMu sync.Mutex

	mu      sync.Mutex
	cron    *cron.Cron
	started bool
}

// ParseSchedule validates a cron spec. Descriptors like "@every 5m" are
// accepted.
func ParseSchedule(spec string) (cron.Schedule, error) {
	s, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parsing sweep schedule %q: %w", spec, err)
	}
	return s, nil
}

// NewSweeper creates a Sweeper. An empty schedule selects DefaultSweepSchedule.
func NewSweeper(marker OverdueMarker, schedule string, logger *slog.Logger) (*Sweeper, error) {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Sweeper{
		marker:   marker,
		schedule: schedule,
		log:      logger,
		cron:     cron.New(),
	}
	if _, err := s.cron.AddFunc(schedule, s.scheduled); err != nil {
		return nil, fmt.Errorf("registering sweep job: %w", err)
	}
	return s, nil
}

// Schedule returns the cron spec in use.
func (s *Sweeper) Schedule() string { return s.schedule }

// Start begins running passes on the schedule.
func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.cron.Start()
	s.log.Info("sweeper started", "schedule", s.schedule)
}

// Stop stops the schedule and waits for a running pass to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.log.Info("sweeper stopped")
}

// Foreground runs one pass immediately. It is meant for the moment the
// application returns to the foreground.
func (s *Sweeper) Foreground(ctx context.Context) ([]string, error) {
	return s.pass(ctx)
}

func (s *Sweeper) scheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), passTimeout)
	defer cancel()
	s.runWithRecovery("SweepOverdue", func() {
		if _, err := s.pass(ctx); err != nil {
			s.log.Error("sweep failed", "error", err)
		}
	})
}

func (s *Sweeper) pass(ctx context.Context) ([]string, error) {
	s.passMu.Lock()
	defer s.passMu.Unlock()
	ids, err := s.marker.SweepOverdue(ctx)
	if err != nil {
		return nil, fmt.Errorf("sweeping overdue borrows: %w", err)
	}
	return ids, nil
}

// runWithRecovery logs a panic in a job instead of crashing the scheduler.
func (s *Sweeper) runWithRecovery(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("job panicked", "job", name, "panic", r)
		}
	}()

	s.log.Debug("starting job", "job", name)
	fn()
	s.log.Debug("job completed", "job", name)
}
