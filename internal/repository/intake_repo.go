package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/garyjia/claims-intake/internal/models"
	sqlite3 "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// ErrDuplicateInProgress is returned when an insert loses the race
// against another in-progress intake for the same veteran and form
// type. The partial unique index on the intakes table raises it at
// commit time.
var ErrDuplicateInProgress = errors.New("an in-progress intake already exists for this veteran and form type")

const intakeColumns = `
	id, type, veteran_file_number, detail_type, detail_id, user_id,
	started_at, completion_started_at, completed_at, completion_status,
	error_code, error_data, cancel_reason, cancel_other,
	created_at, updated_at
`

// IntakeRepository handles intake database operations.
type IntakeRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewIntakeRepository creates a new intake repository.
func NewIntakeRepository(db *sql.DB, logger *zap.Logger) *IntakeRepository {
	return &IntakeRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new intake. A unique-constraint violation on the
// in-progress index is mapped to ErrDuplicateInProgress.
func (r *IntakeRepository) Create(tx *sql.Tx, in *models.Intake) error {
	query := `
		INSERT INTO intakes (
			type, veteran_file_number, detail_type, detail_id, user_id,
			started_at, completion_started_at, completed_at, completion_status,
			error_code, error_data, cancel_reason, cancel_other
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	errorData, err := marshalErrorData(in.ErrorData)
	if err != nil {
		return err
	}

	args := []interface{}{
		in.Type,
		in.VeteranFileNumber,
		in.DetailType,
		in.DetailID,
		in.UserID,
		in.StartedAt,
		in.CompletionStartedAt,
		in.CompletedAt,
		string(in.CompletionStatus),
		in.ErrorCode,
		errorData,
		in.CancelReason,
		in.CancelOther,
	}

	var result sql.Result
	if tx != nil {
		result, err = tx.Exec(query, args...)
	} else {
		result, err = r.db.Exec(query, args...)
	}

	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateInProgress
		}
		r.logger.Error("Failed to create intake", zap.Error(err))
		return fmt.Errorf("failed to create intake: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	in.ID = id
	return nil
}

// Update writes the mutable fields of an intake back to storage.
func (r *IntakeRepository) Update(tx *sql.Tx, in *models.Intake) error {
	query := `
		UPDATE intakes SET
			veteran_file_number = ?,
			detail_id = ?,
			started_at = ?,
			completion_started_at = ?,
			completed_at = ?,
			completion_status = ?,
			error_code = ?,
			error_data = ?,
			cancel_reason = ?,
			cancel_other = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	errorData, err := marshalErrorData(in.ErrorData)
	if err != nil {
		return err
	}

	args := []interface{}{
		in.VeteranFileNumber,
		in.DetailID,
		in.StartedAt,
		in.CompletionStartedAt,
		in.CompletedAt,
		string(in.CompletionStatus),
		in.ErrorCode,
		errorData,
		in.CancelReason,
		in.CancelOther,
		in.ID,
	}

	if tx != nil {
		_, err = tx.Exec(query, args...)
	} else {
		_, err = r.db.Exec(query, args...)
	}

	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateInProgress
		}
		r.logger.Error("Failed to update intake", zap.Int64("id", in.ID), zap.Error(err))
		return fmt.Errorf("failed to update intake: %w", err)
	}

	return nil
}

// GetByID retrieves an intake by ID. Returns (nil, nil) when no row
// exists.
func (r *IntakeRepository) GetByID(id int64) (*models.Intake, error) {
	query := `SELECT ` + intakeColumns + ` FROM intakes WHERE id = ?`

	in, err := scanIntake(r.db.QueryRow(query, id))
	if err != nil {
		r.logger.Error("Failed to get intake by ID", zap.Int64("id", id), zap.Error(err))
		return nil, err
	}
	return in, nil
}

// FindInProgressByKey finds the in-progress intake for a (file number,
// form type) pair, leaving out the candidate's own row. Returns
// (nil, nil) when none exists.
func (r *IntakeRepository) FindInProgressByKey(fileNumber string, formType models.FormType, excludeID int64) (*models.Intake, error) {
	query := `
		SELECT ` + intakeColumns + `
		FROM intakes
		WHERE veteran_file_number = ?
		  AND type = ?
		  AND started_at IS NOT NULL
		  AND completed_at IS NULL
		  AND id != ?
		LIMIT 1
	`

	in, err := scanIntake(r.db.QueryRow(query, fileNumber, formType, excludeID))
	if err != nil {
		r.logger.Error("Failed to find in-progress intake",
			zap.String("form_type", string(formType)), zap.Error(err))
		return nil, err
	}
	return in, nil
}

// ListInProgress returns all started, uncompleted intakes, most recent
// first.
func (r *IntakeRepository) ListInProgress() ([]*models.Intake, error) {
	query := `
		SELECT ` + intakeColumns + `
		FROM intakes
		WHERE started_at IS NOT NULL
		  AND completed_at IS NULL
		ORDER BY started_at DESC
	`
	return r.list(query)
}

// ListManagerReviewCandidates returns completed intakes that ended in
// cancellation or error and have no strictly-later-started successful
// intake for the same (file number, form type) key. Error-code
// designation filtering happens in the review queue, not here.
func (r *IntakeRepository) ListManagerReviewCandidates() ([]*models.Intake, error) {
	query := `
		SELECT ` + intakeColumns + `
		FROM intakes i
		WHERE i.completed_at IS NOT NULL
		  AND i.completion_status IN (?, ?)
		  AND NOT EXISTS (
			SELECT 1 FROM intakes s
			WHERE s.veteran_file_number = i.veteran_file_number
			  AND s.type = i.type
			  AND s.completion_status = ?
			  AND s.started_at > i.started_at
		  )
		ORDER BY i.completed_at DESC
	`
	return r.list(query,
		string(models.CompletionCanceled),
		string(models.CompletionError),
		string(models.CompletionSuccess))
}

func (r *IntakeRepository) list(query string, args ...interface{}) ([]*models.Intake, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		r.logger.Error("Failed to list intakes", zap.Error(err))
		return nil, fmt.Errorf("failed to list intakes: %w", err)
	}
	defer rows.Close()

	var intakes []*models.Intake
	for rows.Next() {
		in, err := scanIntakeRow(rows)
		if err != nil {
			return nil, err
		}
		intakes = append(intakes, in)
	}

	return intakes, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanIntake(row *sql.Row) (*models.Intake, error) {
	in, err := scanIntakeRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return in, err
}

func scanIntakeRow(row rowScanner) (*models.Intake, error) {
	var in models.Intake
	var startedAt, completionStartedAt, completedAt sql.NullTime
	var completionStatus, errorCode, errorData, cancelReason, cancelOther sql.NullString

	err := row.Scan(
		&in.ID,
		&in.Type,
		&in.VeteranFileNumber,
		&in.DetailType,
		&in.DetailID,
		&in.UserID,
		&startedAt,
		&completionStartedAt,
		&completedAt,
		&completionStatus,
		&errorCode,
		&errorData,
		&cancelReason,
		&cancelOther,
		&in.CreatedAt,
		&in.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan intake: %w", err)
	}

	if startedAt.Valid {
		in.StartedAt = &startedAt.Time
	}
	if completionStartedAt.Valid {
		in.CompletionStartedAt = &completionStartedAt.Time
	}
	if completedAt.Valid {
		in.CompletedAt = &completedAt.Time
	}
	in.CompletionStatus = models.CompletionStatus(completionStatus.String)
	in.ErrorCode = errorCode.String
	in.CancelReason = cancelReason.String
	in.CancelOther = cancelOther.String

	if errorData.Valid && errorData.String != "" {
		if err := json.Unmarshal([]byte(errorData.String), &in.ErrorData); err != nil {
			return nil, fmt.Errorf("failed to unmarshal error data: %w", err)
		}
	}

	return &in, nil
}

func marshalErrorData(data map[string]string) (interface{}, error) {
	if data == nil {
		return nil, nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal error data: %w", err)
	}
	return string(b), nil
}

func isUniqueViolation(err error) bool {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		return serr.Code == sqlite3.ErrConstraint && serr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
