package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
)

// SyncFunc runs one sync-all cycle
type SyncFunc func(ctx context.Context) error

// Service drives periodic sync-all runs on a cron schedule. A cycle that is
// still running when the next tick fires is not stacked; the tick is skipped.
type Service struct {
	cron      *cron.Cron
	logger    arbor.ILogger
	syncFunc  SyncFunc
	mu        sync.Mutex
	isRunning bool
	started   bool
	lastRun   *time.Time
	lastError string
}

// NewService creates a scheduler around one sync function
func NewService(syncFunc SyncFunc, logger arbor.ILogger) *Service {
	return &Service{
		cron:     cron.New(cron.WithSeconds()),
		logger:   logger,
		syncFunc: syncFunc,
	}
}

// Start begins the scheduler with the given cron expression
func (s *Service) Start(cronExpr string) error {
	if s.started {
		return fmt.Errorf("scheduler already running")
	}
	if cronExpr == "" {
		cronExpr = "0 0 3 * * *" // Default: daily at 03:00
	}

	if _, err := s.cron.AddFunc(cronExpr, s.runCycle); err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.cron.Start()
	s.started = true

	s.logger.Info().Str("schedule", cronExpr).Msg("Scheduler started")
	return nil
}

// Stop halts the scheduler and waits for a running cycle to finish
func (s *Service) Stop() error {
	if !s.started {
		return nil
	}

	<-s.cron.Stop().Done()
	s.started = false

	s.logger.Info().Msg("Scheduler stopped")
	return nil
}

// TriggerNow runs a cycle immediately, outside the schedule
func (s *Service) TriggerNow() {
	go s.runCycle()
}

// IsRunning reports whether a sync cycle is currently executing
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// LastRun returns the completion time and error text of the latest cycle
func (s *Service) LastRun() (*time.Time, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.lastError
}

func (s *Service) runCycle() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("PANIC RECOVERED in scheduled sync")
			s.mu.Lock()
			s.isRunning = false
			s.lastError = fmt.Sprintf("panic: %v", r)
			s.mu.Unlock()
		}
	}()

	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		s.logger.Debug().Msg("Previous sync cycle still running, skipping tick")
		return
	}
	s.isRunning = true
	s.mu.Unlock()

	start := time.Now()
	s.logger.Info().Msg("Scheduled sync cycle started")

	err := s.syncFunc(context.Background())

	completed := time.Now()
	s.mu.Lock()
	s.isRunning = false
	s.lastRun = &completed
	if err != nil {
		s.lastError = err.Error()
	} else {
		s.lastError = ""
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error().Err(err).
			Str("duration", time.Since(start).String()).
			Msg("Scheduled sync cycle failed")
		return
	}
	s.logger.Info().
		Str("duration", time.Since(start).String()).
		Msg("Scheduled sync cycle completed")
}
