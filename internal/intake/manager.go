package intake

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/claims-intake/internal/external"
	"github.com/garyjia/claims-intake/internal/models"
	"github.com/garyjia/claims-intake/internal/repository"
	"github.com/garyjia/claims-intake/pkg/database"
	"go.uber.org/zap"
)

// Cancellation input errors, surfaced as field-level failures.
var (
	ErrCancelReasonInvalid = errors.New("cancel reason is not recognized")
	ErrCancelOtherRequired = errors.New("cancel reason 'other' requires an explanation")
	ErrIntakeNotFound      = errors.New("intake not found")
)

// Manager orchestrates intake lifecycles against storage and the
// external collaborators. Each operation wraps the lifecycle mutation
// and the corresponding write in one transaction.
type Manager struct {
	db                *database.DB
	intakes           *repository.IntakeRepository
	users             *repository.UserRepository
	directory         external.SubjectDirectory
	establisher       external.ClaimEstablisher
	clock             external.Clock
	completionTimeout time.Duration
	logger            *zap.Logger
}

// NewManager creates a new intake manager.
func NewManager(
	db *database.DB,
	intakes *repository.IntakeRepository,
	users *repository.UserRepository,
	directory external.SubjectDirectory,
	establisher external.ClaimEstablisher,
	clock external.Clock,
	completionTimeout time.Duration,
	logger *zap.Logger,
) *Manager {
	return &Manager{
		db:                db,
		intakes:           intakes,
		users:             users,
		directory:         directory,
		establisher:       establisher,
		clock:             clock,
		completionTimeout: completionTimeout,
		logger:            logger,
	}
}

// Lifecycle builds the state machine for one intake with the manager's
// collaborators wired in.
func (m *Manager) Lifecycle(in *models.Intake) *Lifecycle {
	guard := NewUniquenessGuard(m.intakes, m.users, m.logger)
	return NewLifecycle(in, m.directory, guard, m.clock, m.completionTimeout, m.logger)
}

// Start builds a new intake of the given form type and validates it.
// A non-empty detail payload is checked against the variant's schema
// before anything touches storage; schema failures wrap ErrDetailInvalid
// and leave no record. On success the started intake is persisted; the
// partial unique index settles races the guard cannot see. Validation
// failures are persisted as completed error records so the error surface
// and review tooling can see them; the caller inspects ErrorCode on the
// returned intake.
func (m *Manager) Start(ctx context.Context, formType, fileNumber string, detail json.RawMessage, user *models.User) (*models.Intake, error) {
	def, err := Definition(models.FormType(formType))
	if err != nil {
		return nil, err
	}
	if len(detail) > 0 {
		if err := def.ValidateDetail(detail); err != nil {
			return nil, err
		}
	}
	in := def.NewIntake(fileNumber, user)

	lc := m.Lifecycle(in)
	ok, err := lc.ValidateStart(ctx)
	if err != nil {
		return nil, err
	}

	if !ok {
		if err := m.saveValidationFailure(in); err != nil {
			return nil, err
		}
		return in, nil
	}

	err = m.db.WithTransaction(func(tx *sql.Tx) error {
		return m.intakes.Create(tx, in)
	})
	if errors.Is(err, repository.ErrDuplicateInProgress) {
		return m.recordLostRace(in)
	}
	if err != nil {
		return nil, err
	}

	m.logger.Info("Intake started",
		zap.Int64("intake_id", in.ID),
		zap.String("form_type", formType),
		zap.String("css_id", user.CSSID))
	return in, nil
}

// Complete runs the two-phase completion protocol: mark the completion
// in flight, delegate claim establishment, then record success. When
// establishment fails the intake is left completing; a retry may call
// Complete again (StartCompletion is idempotent), or Abort / RecordError
// to resolve it.
func (m *Manager) Complete(ctx context.Context, intakeID int64) (*models.Intake, error) {
	in, err := m.getIntake(intakeID)
	if err != nil {
		return nil, err
	}

	lc := m.Lifecycle(in)
	if err := lc.StartCompletion(); err != nil {
		return nil, err
	}
	if err := m.save(in); err != nil {
		return nil, err
	}

	if err := m.establisher.EstablishClaim(ctx, in); err != nil {
		m.logger.Error("Claim establishment failed; intake left completing",
			zap.Int64("intake_id", in.ID),
			zap.Error(err))
		return in, fmt.Errorf("claim establishment failed: %w", err)
	}

	if err := lc.CompleteWithStatus(models.CompletionSuccess, CompletionExtra{}); err != nil {
		return nil, err
	}
	if err := m.save(in); err != nil {
		return nil, err
	}

	return in, nil
}

// Abort returns a completing intake to started so completion can be
// re-attempted. This is the recovery primitive for crashed or timed-out
// completions; retry policy belongs to the caller.
func (m *Manager) Abort(intakeID int64) (*models.Intake, error) {
	in, err := m.getIntake(intakeID)
	if err != nil {
		return nil, err
	}

	lc := m.Lifecycle(in)
	if err := lc.AbortCompletion(); err != nil {
		return nil, err
	}
	if err := m.save(in); err != nil {
		return nil, err
	}

	m.logger.Info("Intake completion aborted", zap.Int64("intake_id", in.ID))
	return in, nil
}

// Cancel terminates an intake with a cancel reason from the closed set.
// Reason "other" requires free-text detail.
func (m *Manager) Cancel(intakeID int64, reason, other string) (*models.Intake, error) {
	if !models.ValidCancelReason(reason) {
		return nil, fmt.Errorf("%w: %q", ErrCancelReasonInvalid, reason)
	}
	if reason == models.CancelReasonOther && other == "" {
		return nil, ErrCancelOtherRequired
	}

	in, err := m.getIntake(intakeID)
	if err != nil {
		return nil, err
	}

	lc := m.Lifecycle(in)
	err = lc.CompleteWithStatus(models.CompletionCanceled, CompletionExtra{
		CancelReason: reason,
		CancelOther:  other,
	})
	if err != nil {
		return nil, err
	}
	if err := m.save(in); err != nil {
		return nil, err
	}

	return in, nil
}

// RecordError terminates an intake with an error code, ending any
// in-flight completion. Used by retry jobs and manual escalation when
// a completion cannot be salvaged.
func (m *Manager) RecordError(intakeID int64, code string, data map[string]string) (*models.Intake, error) {
	in, err := m.getIntake(intakeID)
	if err != nil {
		return nil, err
	}

	if _, designated := models.ErrorCodeActionable(code); !designated {
		m.logger.Warn("Recording error code without a review designation",
			zap.Int64("intake_id", in.ID),
			zap.String("error_code", code))
	}

	lc := m.Lifecycle(in)
	err = lc.CompleteWithStatus(models.CompletionError, CompletionExtra{
		ErrorCode: code,
		ErrorData: data,
	})
	if err != nil {
		return nil, err
	}
	if err := m.save(in); err != nil {
		return nil, err
	}

	return in, nil
}

// Pending reports whether an intake's pending completion is still
// within its timeout window.
func (m *Manager) Pending(in *models.Intake) bool {
	return m.Lifecycle(in).Pending()
}

func (m *Manager) getIntake(intakeID int64) (*models.Intake, error) {
	in, err := m.intakes.GetByID(intakeID)
	if err != nil {
		return nil, err
	}
	if in == nil {
		return nil, fmt.Errorf("%w: %d", ErrIntakeNotFound, intakeID)
	}
	return in, nil
}

func (m *Manager) save(in *models.Intake) error {
	return m.db.WithTransaction(func(tx *sql.Tx) error {
		return m.intakes.Update(tx, in)
	})
}

// saveValidationFailure persists a failed validation as a completed
// error record. The intake never started; the row exists so the error
// can be audited.
func (m *Manager) saveValidationFailure(in *models.Intake) error {
	now := m.clock.Now()
	in.CompletedAt = &now
	in.CompletionStatus = models.CompletionError

	return m.db.WithTransaction(func(tx *sql.Tx) error {
		return m.intakes.Create(tx, in)
	})
}

// recordLostRace converts a unique-index violation into the same
// duplicate conflict the guard reports, naming the winner when it can
// still be found.
func (m *Manager) recordLostRace(in *models.Intake) (*models.Intake, error) {
	in.StartedAt = nil

	processedBy := ""
	other, err := m.intakes.FindInProgressByKey(in.VeteranFileNumber, in.Type, in.ID)
	if err == nil && other != nil {
		if user, uerr := m.users.GetUserByID(other.UserID); uerr == nil && user != nil {
			processedBy = user.FullName
		}
	}

	in.ErrorCode = models.ErrCodeDuplicateIntakeInProgress
	in.ErrorData = map[string]string{"processed_by": processedBy}

	if err := m.saveValidationFailure(in); err != nil {
		return nil, err
	}
	return in, nil
}
