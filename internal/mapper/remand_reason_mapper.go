package mapper

import (
	"fmt"

	"github.com/garyjia/claims-intake/internal/external"
)

// RemandReason is one reason an issue is being sent back to the agency
// of original jurisdiction.
type RemandReason struct {
	Code               string
	AfterCertification bool
}

// knownRemandReasonCodes is the closed set of legacy remand reason
// codes this system may record.
var knownRemandReasonCodes = map[string]bool{
	"AA": true, // service connection, medical examination
	"AB": true, // service connection, medical opinion
	"BA": true, // records request, service records
	"BB": true, // records request, VA medical records
	"CA": true, // due process, notice
	"CB": true, // due process, hearing
	"DA": true, // duty to notify
	"DI": true, // duty to assist
	"EA": true, // other, manlincon compliance
}

// RemandReasonMapper translates remand reasons into legacy columns.
// Same contract as the issue mapper, narrower column set.
type RemandReasonMapper struct {
	clock external.Clock
}

// NewRemandReasonMapper creates a new remand reason mapper.
func NewRemandReasonMapper(clock external.Clock) *RemandReasonMapper {
	return &RemandReasonMapper{clock: clock}
}

// Map validates and renames each reason. Every reason is stamped with
// the acting user and the legacy time convention.
func (m *RemandReasonMapper) Map(slogid string, reasons []RemandReason) ([]map[string]interface{}, error) {
	now := vacolsTimestamp(m.clock.Now())

	mapped := make([]map[string]interface{}, 0, len(reasons))
	for _, reason := range reasons {
		if !knownRemandReasonCodes[reason.Code] {
			return nil, &ValidationError{
				Code:    ErrCodeRemandReasonNotRecognized,
				Message: fmt.Sprintf("remand reason is not recognized: %q", reason.Code),
			}
		}

		dev := "S1"
		if reason.AfterCertification {
			dev = "S2"
		}

		mapped = append(mapped, map[string]interface{}{
			"rmdval":   reason.Code,
			"rmddev":   dev,
			"rmdmdusr": slogid,
			"rmdmdtim": now,
		})
	}

	return mapped, nil
}
