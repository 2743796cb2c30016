package intake

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/garyjia/claims-intake/internal/models"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Registry input errors.
var (
	// ErrFormTypeNotSupported is returned when a caller asks for an
	// intake variant outside the closed set.
	ErrFormTypeNotSupported = errors.New("form type is not supported")

	// ErrDetailInvalid is returned when a variant's detail payload does
	// not satisfy its schema.
	ErrDetailInvalid = errors.New("detail payload is invalid")
)

// FormDefinition describes one intake variant: the detail record it
// produces and the schema its detail payload must satisfy.
type FormDefinition struct {
	Type       models.FormType
	DetailType string
	schema     *jsonschema.Schema
}

// ValidateDetail checks a variant-specific detail payload against the
// variant's schema. Failures wrap ErrDetailInvalid so callers can
// distinguish bad input from infrastructure problems.
func (d *FormDefinition) ValidateDetail(payload []byte) error {
	var v interface{}
	if err := json.Unmarshal(payload, &v); err != nil {
		return fmt.Errorf("%w: not valid JSON: %v", ErrDetailInvalid, err)
	}
	if err := d.schema.Validate(v); err != nil {
		return fmt.Errorf("%w for %s: %v", ErrDetailInvalid, d.Type, err)
	}
	return nil
}

// NewIntake constructs a new unstarted intake of this variant for a
// user.
func (d *FormDefinition) NewIntake(fileNumber string, user *models.User) *models.Intake {
	return &models.Intake{
		Type:              d.Type,
		DetailType:        d.DetailType,
		VeteranFileNumber: fileNumber,
		UserID:            user.ID,
	}
}

var registry = map[models.FormType]*FormDefinition{
	models.FormTypeRampElection: {
		Type:       models.FormTypeRampElection,
		DetailType: "RampElection",
		schema: jsonschema.MustCompileString("ramp_election.json", `{
			"type": "object",
			"required": ["notice_date"],
			"properties": {
				"notice_date": {"type": "string", "format": "date"},
				"receipt_date": {"type": "string", "format": "date"},
				"option_selected": {"type": "string", "enum": ["supplemental_claim", "higher_level_review", "higher_level_review_with_hearing", "appeal"]}
			}
		}`),
	},
	models.FormTypeRampRefiling: {
		Type:       models.FormTypeRampRefiling,
		DetailType: "RampRefiling",
		schema: jsonschema.MustCompileString("ramp_refiling.json", `{
			"type": "object",
			"required": ["receipt_date", "option_selected"],
			"properties": {
				"receipt_date": {"type": "string", "format": "date"},
				"option_selected": {"type": "string", "enum": ["supplemental_claim", "higher_level_review", "higher_level_review_with_hearing", "appeal"]}
			}
		}`),
	},
	models.FormTypeHigherLevelReview: {
		Type:       models.FormTypeHigherLevelReview,
		DetailType: "HigherLevelReview",
		schema: jsonschema.MustCompileString("higher_level_review.json", `{
			"type": "object",
			"required": ["receipt_date"],
			"properties": {
				"receipt_date": {"type": "string", "format": "date"},
				"informal_conference": {"type": "boolean"},
				"same_office": {"type": "boolean"}
			}
		}`),
	},
	models.FormTypeSupplementalClaim: {
		Type:       models.FormTypeSupplementalClaim,
		DetailType: "SupplementalClaim",
		schema: jsonschema.MustCompileString("supplemental_claim.json", `{
			"type": "object",
			"required": ["receipt_date"],
			"properties": {
				"receipt_date": {"type": "string", "format": "date"}
			}
		}`),
	},
	models.FormTypeAppeal: {
		Type:       models.FormTypeAppeal,
		DetailType: "Appeal",
		schema: jsonschema.MustCompileString("appeal.json", `{
			"type": "object",
			"required": ["receipt_date", "docket_type"],
			"properties": {
				"receipt_date": {"type": "string", "format": "date"},
				"docket_type": {"type": "string", "enum": ["direct_review", "evidence_submission", "hearing"]}
			}
		}`),
	},
}

// Definition looks a form type up in the closed registry.
func Definition(formType models.FormType) (*FormDefinition, error) {
	def, ok := registry[formType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrFormTypeNotSupported, formType)
	}
	return def, nil
}

// Build constructs a new unstarted intake of the given form type for a
// user. The form type must be a member of the closed registry.
func Build(formType string, fileNumber string, user *models.User) (*models.Intake, error) {
	def, err := Definition(models.FormType(formType))
	if err != nil {
		return nil, err
	}
	return def.NewIntake(fileNumber, user), nil
}
