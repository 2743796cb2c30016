package external

import (
	"context"
	"time"

	"github.com/garyjia/claims-intake/internal/models"
)

// Subject is the veteran record returned by the subject directory.
type Subject struct {
	FileNumber    string `json:"file_number"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	ParticipantID string `json:"participant_id,omitempty"`
}

// SubjectDirectory looks veterans up in the corporate directory.
// FindSubject returns (nil, nil) when no record exists.
type SubjectDirectory interface {
	FindSubject(ctx context.Context, fileNumber string) (*Subject, error)
	Accessible(ctx context.Context, fileNumber string) (bool, error)
}

// IssueReference identifies one row of the legacy issue code catalog.
type IssueReference struct {
	Program string
	Issue   string
	Level1  string
	Level2  string
	Level3  string
}

// IssueCatalog is the legacy system's authoritative table of valid
// issue code combinations. A combination is legal only when it matches
// exactly one catalog row.
type IssueCatalog interface {
	FindReference(ctx context.Context, ref IssueReference) ([]IssueReference, error)
}

// ClaimEstablisher creates the real downstream claim once an intake
// completion begins. Establishment is synchronous from the intake's
// point of view.
type ClaimEstablisher interface {
	EstablishClaim(ctx context.Context, intake *models.Intake) error
}

// Clock provides the current time. Injected so lifecycle timing can be
// controlled in tests.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns the current wall-clock time.
func (SystemClock) Now() time.Time { return time.Now() }
