package models

import "time"

// Intake tracks one attempt to convert a veteran's request into an
// established claim. Once completed it is immutable history; nothing in
// this system deletes intake rows.
type Intake struct {
	ID                  int64             `json:"id"`
	Type                FormType          `json:"type"`
	VeteranFileNumber   string            `json:"veteran_file_number"`
	DetailType          string            `json:"detail_type,omitempty"`
	DetailID            int64             `json:"detail_id,omitempty"`
	UserID              int64             `json:"user_id"`
	StartedAt           *time.Time        `json:"started_at,omitempty"`
	CompletionStartedAt *time.Time        `json:"completion_started_at,omitempty"`
	CompletedAt         *time.Time        `json:"completed_at,omitempty"`
	CompletionStatus    CompletionStatus  `json:"completion_status,omitempty"`
	ErrorCode           string            `json:"error_code,omitempty"`
	ErrorData           map[string]string `json:"error_data,omitempty"`
	CancelReason        string            `json:"cancel_reason,omitempty"`
	CancelOther         string            `json:"cancel_other,omitempty"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

// CompletionStatus is the terminal (or pending) outcome of an intake.
// The zero value means no completion has been recorded.
type CompletionStatus string

// Completion status constants
const (
	CompletionNone     CompletionStatus = ""
	CompletionSuccess  CompletionStatus = "success"
	CompletionCanceled CompletionStatus = "canceled"
	CompletionError    CompletionStatus = "error"
	CompletionPending  CompletionStatus = "pending"
)

// Cancel reason constants
const (
	CancelReasonDuplicateEP          = "duplicate_ep"
	CancelReasonSystemError          = "system_error"
	CancelReasonMissingSignature     = "missing_signature"
	CancelReasonVeteranClarification = "veteran_clarification"
	CancelReasonOther                = "other"
)

// ValidCancelReason reports whether reason is a member of the closed
// cancel-reason set.
func ValidCancelReason(reason string) bool {
	switch reason {
	case CancelReasonDuplicateEP,
		CancelReasonSystemError,
		CancelReasonMissingSignature,
		CancelReasonVeteranClarification,
		CancelReasonOther:
		return true
	}
	return false
}

// Started reports whether the intake has passed validation.
func (i *Intake) Started() bool {
	return i.StartedAt != nil
}

// Completed reports whether a terminal (or pending) completion has been
// recorded.
func (i *Intake) Completed() bool {
	return i.CompletedAt != nil
}

// InProgress reports whether the intake is started but not yet completed.
func (i *Intake) InProgress() bool {
	return i.Started() && !i.Completed()
}

// Completing reports whether a completion attempt is in flight.
func (i *Intake) Completing() bool {
	return i.CompletionStartedAt != nil && !i.Completed()
}

// Canceled reports whether the intake completed as canceled.
func (i *Intake) Canceled() bool {
	return i.Completed() && i.CompletionStatus == CompletionCanceled
}

// Succeeded reports whether the intake completed successfully.
func (i *Intake) Succeeded() bool {
	return i.Completed() && i.CompletionStatus == CompletionSuccess
}
