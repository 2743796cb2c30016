package intake

import (
	"fmt"

	"github.com/garyjia/claims-intake/internal/models"
	"go.uber.org/zap"
)

// IntakeFinder is the slice of the intake repository the guard needs.
type IntakeFinder interface {
	FindInProgressByKey(fileNumber string, formType models.FormType, excludeID int64) (*models.Intake, error)
}

// UserFinder resolves the owner of a blocking intake for conflict
// messages.
type UserFinder interface {
	GetUserByID(id int64) (*models.User, error)
}

// GuardResult is the outcome of a uniqueness check. When OK is false,
// ProcessedBy names the user whose in-progress intake is blocking.
type GuardResult struct {
	OK          bool
	ProcessedBy string
}

// UniquenessGuard enforces that at most one intake per (file number,
// form type) pair is in progress at a time.
//
// The check and the subsequent insert are not atomic: two validations
// can both observe no conflict before either commits. The partial
// unique index on in-progress intake rows is the authoritative arbiter;
// an insert losing that race fails at commit and is mapped to the same
// duplicate_intake_in_progress error. This guard exists as a fast path
// that can name the blocking user.
type UniquenessGuard struct {
	intakes IntakeFinder
	users   UserFinder
	logger  *zap.Logger
}

// NewUniquenessGuard creates a new guard.
func NewUniquenessGuard(intakes IntakeFinder, users UserFinder, logger *zap.Logger) *UniquenessGuard {
	return &UniquenessGuard{
		intakes: intakes,
		users:   users,
		logger:  logger,
	}
}

// MayStart reports whether a new intake for the given key may start.
// excludeID leaves the candidate's own row out of the scan.
func (g *UniquenessGuard) MayStart(fileNumber string, formType models.FormType, excludeID int64) (GuardResult, error) {
	other, err := g.intakes.FindInProgressByKey(fileNumber, formType, excludeID)
	if err != nil {
		return GuardResult{}, fmt.Errorf("failed to check for in-progress intake: %w", err)
	}
	if other == nil {
		return GuardResult{OK: true}, nil
	}

	processedBy := ""
	user, err := g.users.GetUserByID(other.UserID)
	if err != nil {
		return GuardResult{}, fmt.Errorf("failed to resolve blocking user: %w", err)
	}
	if user != nil {
		processedBy = user.FullName
	}

	g.logger.Info("Duplicate intake in progress",
		zap.String("form_type", string(formType)),
		zap.Int64("blocking_intake_id", other.ID),
		zap.String("processed_by", processedBy))

	return GuardResult{ProcessedBy: processedBy}, nil
}
