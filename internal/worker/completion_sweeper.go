package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/garyjia/claims-intake/internal/external"
	"github.com/garyjia/claims-intake/internal/models"
	"go.uber.org/zap"
)

// IntakeLister lists the started, uncompleted intakes the sweeper scans.
type IntakeLister interface {
	ListInProgress() ([]*models.Intake, error)
}

// CompletionAborter returns a completing intake to started.
type CompletionAborter interface {
	Abort(intakeID int64) (*models.Intake, error)
}

// CompletionSweeper periodically aborts completion attempts that have
// been in flight longer than the completion timeout. A completion
// normally finishes or fails within seconds; one stuck past the window
// means the process died mid-protocol, and aborting returns the intake
// to started so it can be retried.
type CompletionSweeper struct {
	intakes IntakeLister
	aborter CompletionAborter
	clock   external.Clock
	logger  *zap.Logger

	sweepInterval     time.Duration
	completionTimeout time.Duration

	mu        sync.Mutex
	isRunning bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewCompletionSweeper creates a new sweeper. Zero durations fall back
// to a 30 second sweep and a 5 minute completion window.
func NewCompletionSweeper(
	intakes IntakeLister,
	aborter CompletionAborter,
	clock external.Clock,
	sweepInterval time.Duration,
	completionTimeout time.Duration,
	logger *zap.Logger,
) *CompletionSweeper {
	if sweepInterval == 0 {
		sweepInterval = 30 * time.Second
	}
	if completionTimeout == 0 {
		completionTimeout = 5 * time.Minute
	}
	return &CompletionSweeper{
		intakes:           intakes,
		aborter:           aborter,
		clock:             clock,
		logger:            logger,
		sweepInterval:     sweepInterval,
		completionTimeout: completionTimeout,
	}
}

// Start starts the background sweep loop.
func (s *CompletionSweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("completion sweeper is already running")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.isRunning = true

	s.logger.Info("CompletionSweeper started",
		zap.Duration("sweep_interval", s.sweepInterval),
		zap.Duration("completion_timeout", s.completionTimeout))

	go s.sweepLoop()

	return nil
}

// Stop stops the sweep loop.
func (s *CompletionSweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	s.isRunning = false
	if s.cancel != nil {
		s.cancel()
	}

	s.logger.Info("CompletionSweeper stopped")
}

func (s *CompletionSweeper) sweepLoop() {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	s.Sweep()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Sweep runs one pass over the in-progress intakes and aborts every
// completion attempt older than the timeout. Returns how many were
// aborted.
func (s *CompletionSweeper) Sweep() int {
	intakes, err := s.intakes.ListInProgress()
	if err != nil {
		s.logger.Error("Failed to list intakes for sweeping", zap.Error(err))
		return 0
	}

	now := s.clock.Now()
	aborted := 0

	for _, in := range intakes {
		if !in.Completing() {
			continue
		}
		if now.Sub(*in.CompletionStartedAt) < s.completionTimeout {
			continue
		}

		if _, err := s.aborter.Abort(in.ID); err != nil {
			s.logger.Error("Failed to abort stale completion",
				zap.Int64("intake_id", in.ID),
				zap.Error(err))
			continue
		}

		s.logger.Info("Stale completion aborted",
			zap.Int64("intake_id", in.ID),
			zap.Time("completion_started_at", *in.CompletionStartedAt))
		aborted++
	}

	return aborted
}
