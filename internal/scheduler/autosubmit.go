// Package scheduler holds the one-shot auto-submit timers that
// force-finish open attempts once their deadline passes.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/medjeex/exam-engine/internal/models"
)

// Finalizer is the fire path a timer invokes. The implementation must
// re-check the session's state and treat an already-finalized session
// as a no-op, so a stale timer can never clobber a candidate's submit.
type Finalizer interface {
	ForceSubmit(ctx context.Context, key models.AttemptKey) error
}

// AutoSubmitScheduler keeps one pending timer per open attempt. Timers
// are never cancelled on submit; firing after finalization is harmless
// because the Finalizer re-checks state first.
type AutoSubmitScheduler struct {
	mu        sync.Mutex
	timers    map[models.AttemptKey]*time.Timer
	finalizer Finalizer
	logger    *slog.Logger
	clock     func() time.Time
	closed    bool
}

func NewAutoSubmitScheduler(logger *slog.Logger) *AutoSubmitScheduler {
	return &AutoSubmitScheduler{
		timers: make(map[models.AttemptKey]*time.Timer),
		logger: logger,
		clock:  time.Now,
	}
}

// Bind attaches the finalizer the timers act through. The scheduler and
// the attempt service reference each other, so wiring happens in two
// steps at startup: construct the scheduler, construct the service with
// it, then Bind.
func (s *AutoSubmitScheduler) Bind(finalizer Finalizer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalizer = finalizer
}

// Arm schedules the force-submit action for key at fireAt. A deadline
// already in the past fires immediately. Re-arming an existing key
// replaces the pending timer.
func (s *AutoSubmitScheduler) Arm(key models.AttemptKey, fireAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if existing, ok := s.timers[key]; ok {
		existing.Stop()
	}

	delay := fireAt.Sub(s.clock())
	if delay < 0 {
		delay = 0
	}

	s.timers[key] = time.AfterFunc(delay, func() {
		s.fire(key)
	})

	s.logger.Debug("Armed auto-submit timer",
		"user_id", key.UserID,
		"test_paper_id", key.TestPaperID,
		"fire_at", fireAt)
}

func (s *AutoSubmitScheduler) fire(key models.AttemptKey) {
	s.mu.Lock()
	delete(s.timers, key)
	finalizer := s.finalizer
	closed := s.closed
	s.mu.Unlock()

	if closed || finalizer == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := finalizer.ForceSubmit(ctx, key); err != nil {
		s.logger.Error("Auto-submit failed",
			"user_id", key.UserID,
			"test_paper_id", key.TestPaperID,
			"error", err)
		return
	}

	s.logger.Info("Auto-submit timer fired",
		"user_id", key.UserID,
		"test_paper_id", key.TestPaperID)
}

// Pending reports the number of armed timers.
func (s *AutoSubmitScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Close stops all pending timers. Open sessions are recovered by the
// startup re-arm pass on the next boot.
func (s *AutoSubmitScheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	for key, timer := range s.timers {
		timer.Stop()
		delete(s.timers, key)
	}
}
