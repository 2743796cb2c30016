package models

// Intake error codes. Validation codes are set by ValidateStart while
// the record is still unstarted; completion codes are recorded through
// CompleteWithStatus when downstream claim establishment fails.
const (
	ErrCodeInvalidFileNumber         = "invalid_file_number"
	ErrCodeVeteranNotFound           = "veteran_not_found"
	ErrCodeVeteranNotAccessible      = "veteran_not_accessible"
	ErrCodeDuplicateIntakeInProgress = "duplicate_intake_in_progress"

	ErrCodeVeteranNotValid              = "veteran_not_valid"
	ErrCodeVeteranInvalidFileNumber     = "veteran_invalid_file_number"
	ErrCodeRampRefilingAlreadyProcessed = "ramp_refiling_already_processed"
)

// errorCodeActionable is the single source of truth for which error
// codes put a completed intake in front of an intake manager. Every
// known code must appear here with an explicit designation; codes found
// in the database but missing from this table are reported by the
// review queue and treated as actionable until designated.
var errorCodeActionable = map[string]bool{
	// The veteran exists but the intake could not proceed; a manager
	// can usually unblock these.
	ErrCodeVeteranNotAccessible: true,
	ErrCodeVeteranNotValid:      true,

	// Benign: bad input on a record that never started, or work that
	// was already done downstream.
	ErrCodeInvalidFileNumber:            false,
	ErrCodeVeteranInvalidFileNumber:     false,
	ErrCodeRampRefilingAlreadyProcessed: false,
	ErrCodeVeteranNotFound:              false,
	ErrCodeDuplicateIntakeInProgress:    false,
}

// ErrorCodeActionable reports the manager-review designation for code.
// The second return value is false when the code has no explicit
// designation.
func ErrorCodeActionable(code string) (actionable, designated bool) {
	actionable, designated = errorCodeActionable[code]
	return actionable, designated
}
