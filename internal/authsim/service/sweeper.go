package service

import (
	"context"
	"log/slog"
	"time"
)

// SweeperService periodically removes expired sessions and lapsed lockout
// records so neither table grows without bound.
type SweeperService struct {
	Sessions *SessionService
	Lockouts *LockoutService
	Logger   *slog.Logger
	Interval time.Duration

	// Internal channels for lifecycle management
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewSweeperService creates a sweeper with the given interval.
// If interval is 0 or negative, defaults to 5 minutes.
func NewSweeperService(sessions *SessionService, lockouts *LockoutService, logger *slog.Logger, interval time.Duration) *SweeperService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	return &SweeperService{
		Sessions: sessions,
		Lockouts: lockouts,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background worker that periodically runs a sweep.
// This is non-blocking and should be called after the store is ready.
// Call Stop() to gracefully shutdown the worker.
func (s *SweeperService) Start() {
	go s.run()
	s.Logger.Info("sweeper service started", "interval", s.Interval)
}

// Stop gracefully shuts down the background worker.
// Blocks until the worker has finished any in-progress sweep.
func (s *SweeperService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("sweeper service stopped")
}

// run is the main background worker loop.
func (s *SweeperService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Run a sweep immediately on startup
	s.Sweep()

	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-s.stopCh:
			return
		}
	}
}

// Sweep performs one pass over both tables. Each deletion is independent;
// a failure in one won't stop the other.
func (s *SweeperService) Sweep() {
	ctx := context.Background()

	removed, err := s.Sessions.SweepExpired(ctx)
	if err != nil {
		s.Logger.Error("failed to delete expired sessions", "error", err)
	} else if removed > 0 {
		s.Logger.Info("deleted expired sessions", "count", removed)
	}

	cleared, err := s.Lockouts.SweepExpired(ctx)
	if err != nil {
		s.Logger.Error("failed to delete expired lockouts", "error", err)
	} else if cleared > 0 {
		s.Logger.Info("deleted expired lockouts", "count", cleared)
	}
}
