package queue

import (
	"github.com/garyjia/claims-intake/internal/models"
	"go.uber.org/zap"
)

// IntakeLister is the slice of the intake repository the queue reads
// from.
type IntakeLister interface {
	ListInProgress() ([]*models.Intake, error)
	ListManagerReviewCandidates() ([]*models.Intake, error)
}

// Page controls pagination of queue listings. A zero Limit means no
// limit.
type Page struct {
	Limit  int
	Offset int
}

// ReviewQueue is the read model over the intake set: what is currently
// in flight, and what needs a manager's attention.
type ReviewQueue struct {
	intakes IntakeLister
	logger  *zap.Logger
}

// NewReviewQueue creates a new review queue.
func NewReviewQueue(intakes IntakeLister, logger *zap.Logger) *ReviewQueue {
	return &ReviewQueue{
		intakes: intakes,
		logger:  logger,
	}
}

// InProgress returns all started, uncompleted intakes, most recent
// first.
func (q *ReviewQueue) InProgress() ([]*models.Intake, error) {
	return q.intakes.ListInProgress()
}

// FlaggedForManagerReview returns completed intakes needing manual
// follow-up: canceled ones, plus errored ones whose code is designated
// actionable, excluding anything superseded by a later successful
// intake for the same key. Codes missing a designation are logged and
// kept in the queue so they get looked at.
func (q *ReviewQueue) FlaggedForManagerReview(page Page) ([]*models.Intake, error) {
	candidates, err := q.intakes.ListManagerReviewCandidates()
	if err != nil {
		return nil, err
	}

	flagged := make([]*models.Intake, 0, len(candidates))
	for _, in := range candidates {
		if in.Canceled() {
			flagged = append(flagged, in)
			continue
		}

		actionable, designated := models.ErrorCodeActionable(in.ErrorCode)
		if !designated {
			q.logger.Warn("Intake error code has no review designation; treating as actionable",
				zap.Int64("intake_id", in.ID),
				zap.String("error_code", in.ErrorCode))
			flagged = append(flagged, in)
			continue
		}
		if actionable {
			flagged = append(flagged, in)
		}
	}

	return paginate(flagged, page), nil
}

func paginate(intakes []*models.Intake, page Page) []*models.Intake {
	if page.Offset >= len(intakes) {
		return []*models.Intake{}
	}
	intakes = intakes[page.Offset:]
	if page.Limit > 0 && page.Limit < len(intakes) {
		intakes = intakes[:page.Limit]
	}
	return intakes
}
