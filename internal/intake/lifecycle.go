package intake

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/claims-intake/internal/external"
	"github.com/garyjia/claims-intake/internal/models"
	"github.com/garyjia/claims-intake/pkg/utils"
	"go.uber.org/zap"
)

// DefaultCompletionTimeout bounds how long a completion attempt counts
// as pending before callers are expected to re-attempt or escalate.
const DefaultCompletionTimeout = 5 * time.Minute

// Lifecycle states, derived from the intake's timestamps rather than
// stored.
const (
	StateUnstarted  = "unstarted"
	StateStarted    = "started"
	StateCompleting = "completing"
	StateCompleted  = "completed"
)

// StateError reports a transition invoked from a state that does not
// permit it. It indicates a caller bug, not bad user input, and is
// never recorded on the intake.
type StateError struct {
	Op    string
	State string
}

// Error implements the error interface.
func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s an intake in state %q", e.Op, e.State)
}

// CompletionExtra carries the status-specific fields recorded alongside
// a completion.
type CompletionExtra struct {
	ErrorCode    string
	ErrorData    map[string]string
	CancelReason string
	CancelOther  string
}

// Lifecycle owns the state of a single intake: validation, completion
// start/abort, completion recording, and time-based pendency. It
// mutates the intake in memory only; persistence is the caller's
// responsibility.
type Lifecycle struct {
	intake            *models.Intake
	directory         external.SubjectDirectory
	guard             *UniquenessGuard
	clock             external.Clock
	completionTimeout time.Duration
	logger            *zap.Logger
}

// NewLifecycle creates a lifecycle over one intake. A zero timeout
// falls back to DefaultCompletionTimeout.
func NewLifecycle(
	in *models.Intake,
	directory external.SubjectDirectory,
	guard *UniquenessGuard,
	clock external.Clock,
	completionTimeout time.Duration,
	logger *zap.Logger,
) *Lifecycle {
	if completionTimeout == 0 {
		completionTimeout = DefaultCompletionTimeout
	}
	return &Lifecycle{
		intake:            in,
		directory:         directory,
		guard:             guard,
		clock:             clock,
		completionTimeout: completionTimeout,
		logger:            logger,
	}
}

// Intake returns the underlying record.
func (l *Lifecycle) Intake() *models.Intake {
	return l.intake
}

// State derives the current lifecycle state.
func (l *Lifecycle) State() string {
	switch {
	case l.intake.Completed():
		return StateCompleted
	case l.intake.CompletionStartedAt != nil:
		return StateCompleting
	case l.intake.Started():
		return StateStarted
	default:
		return StateUnstarted
	}
}

// ValidateStart checks the file number shape, the subject directory and
// the uniqueness guard, in that order. It only runs on an unstarted
// intake; re-validating one that already started would restamp
// StartedAt, so that is a StateError. Domain failures record an error
// code on the still-unstarted intake and return false; only
// infrastructure problems surface as errors. Full success stamps
// StartedAt and returns true.
func (l *Lifecycle) ValidateStart(ctx context.Context) (bool, error) {
	if l.State() != StateUnstarted {
		return false, &StateError{Op: "validate", State: l.State()}
	}

	fileNumber := utils.CleanFileNumber(l.intake.VeteranFileNumber)
	if !utils.ValidFileNumber(fileNumber) {
		l.recordValidationError(models.ErrCodeInvalidFileNumber, nil)
		return false, nil
	}
	l.intake.VeteranFileNumber = fileNumber

	subject, err := l.directory.FindSubject(ctx, fileNumber)
	if err != nil {
		return false, fmt.Errorf("failed to look up veteran: %w", err)
	}
	if subject == nil {
		l.recordValidationError(models.ErrCodeVeteranNotFound, nil)
		return false, nil
	}

	accessible, err := l.directory.Accessible(ctx, fileNumber)
	if err != nil {
		return false, fmt.Errorf("failed to check veteran access: %w", err)
	}
	if !accessible {
		l.recordValidationError(models.ErrCodeVeteranNotAccessible, nil)
		return false, nil
	}

	result, err := l.guard.MayStart(fileNumber, l.intake.Type, l.intake.ID)
	if err != nil {
		return false, err
	}
	if !result.OK {
		l.recordValidationError(models.ErrCodeDuplicateIntakeInProgress, map[string]string{
			"processed_by": result.ProcessedBy,
		})
		return false, nil
	}

	now := l.clock.Now()
	l.intake.StartedAt = &now
	l.intake.ErrorCode = ""
	l.intake.ErrorData = nil
	return true, nil
}

// StartCompletion marks a completion attempt as in flight. Calling it
// again while completing is a no-op that keeps the original timestamp,
// so completion can be retried after a crash.
func (l *Lifecycle) StartCompletion() error {
	switch l.State() {
	case StateCompleting:
		return nil
	case StateStarted:
		now := l.clock.Now()
		l.intake.CompletionStartedAt = &now
		return nil
	default:
		return &StateError{Op: "start completing", State: l.State()}
	}
}

// AbortCompletion returns a completing intake to started. It clears
// only CompletionStartedAt; every other field is left untouched.
func (l *Lifecycle) AbortCompletion() error {
	if l.State() != StateCompleting {
		return &StateError{Op: "abort completing", State: l.State()}
	}
	l.intake.CompletionStartedAt = nil
	return nil
}

// CompleteWithStatus records the terminal outcome of the intake.
// Statuses that do not need the two-phase protocol may be recorded
// directly from started. Completing an already-terminal intake is a
// caller bug.
func (l *Lifecycle) CompleteWithStatus(status models.CompletionStatus, extra CompletionExtra) error {
	switch l.State() {
	case StateStarted, StateCompleting:
	default:
		return &StateError{Op: "complete", State: l.State()}
	}

	now := l.clock.Now()
	l.intake.CompletedAt = &now
	l.intake.CompletionStatus = status
	l.intake.CompletionStartedAt = nil

	switch status {
	case models.CompletionError:
		l.intake.ErrorCode = extra.ErrorCode
		l.intake.ErrorData = extra.ErrorData
	case models.CompletionCanceled:
		l.intake.CancelReason = extra.CancelReason
		l.intake.CancelOther = extra.CancelOther
	}

	l.logger.Info("Intake completed",
		zap.Int64("intake_id", l.intake.ID),
		zap.String("form_type", string(l.intake.Type)),
		zap.String("status", string(status)))
	return nil
}

// Pending reports whether a pending completion is still within its
// timeout window. Recomputed from the clock on every call; once the
// window elapses the intake is no longer pending and callers should
// re-attempt or escalate.
func (l *Lifecycle) Pending() bool {
	if l.intake.CompletionStatus != models.CompletionPending {
		return false
	}
	if l.intake.CompletionStartedAt == nil {
		return false
	}
	return l.clock.Now().Sub(*l.intake.CompletionStartedAt) < l.completionTimeout
}

// recordValidationError stores a recoverable failure on the intake
// without starting it.
func (l *Lifecycle) recordValidationError(code string, data map[string]string) {
	l.intake.ErrorCode = code
	l.intake.ErrorData = data
	l.logger.Info("Intake validation failed",
		zap.String("form_type", string(l.intake.Type)),
		zap.String("error_code", code))
}
