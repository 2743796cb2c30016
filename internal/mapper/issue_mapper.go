package mapper

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/claims-intake/internal/external"
)

// Action distinguishes creating a legacy issue row from updating one.
type Action string

// Mapper actions
const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
)

// Field carries a value plus whether the caller supplied it. A field
// that is present with an empty value clears the legacy column; an
// absent field leaves it untouched.
type Field struct {
	Present bool
	Value   string
}

// Set builds a present Field.
func Set(value string) Field {
	return Field{Present: true, Value: value}
}

// IssueAttributes are the domain-level attributes of a single issue.
type IssueAttributes struct {
	Program         Field
	Issue           Field
	Level1          Field
	Level2          Field
	Level3          Field
	Note            Field
	Disposition     Field
	DispositionDate Field
	VacolsID        Field
	RemandReasons   []RemandReason
}

// Legacy column names for issue attributes.
const (
	colProgram         = "issprog"
	colIssue           = "isscode"
	colLevel1          = "isslev1"
	colLevel2          = "isslev2"
	colLevel3          = "isslev3"
	colNote            = "issdesc"
	colDisposition     = "issdc"
	colDispositionDate = "issdcls"
	colVacolsID        = "isskey"
	colRemandReasons   = "remand_reasons"
)

// codeColumns are the columns that must resolve to exactly one catalog
// row whenever any of them is touched.
var codeColumns = []string{colProgram, colIssue, colLevel1, colLevel2, colLevel3}

// IssueMapper renames and validates domain issue attributes into the
// flat column format the legacy case database expects. The catalog is
// the sole source of truth for which code combinations are legal.
type IssueMapper struct {
	catalog external.IssueCatalog
	clock   external.Clock
	remand  *RemandReasonMapper
}

// NewIssueMapper creates a new issue mapper.
func NewIssueMapper(catalog external.IssueCatalog, clock external.Clock) *IssueMapper {
	return &IssueMapper{
		catalog: catalog,
		clock:   clock,
		remand:  NewRemandReasonMapper(clock),
	}
}

// Map translates attrs into legacy columns, or fails with a
// *ValidationError. Only supplied fields are translated; an empty
// result means a no-op and carries no actor or time stamps.
func (m *IssueMapper) Map(ctx context.Context, action Action, slogid string, attrs IssueAttributes) (map[string]interface{}, error) {
	result, err := m.rename(slogid, attrs)
	if err != nil {
		return nil, err
	}

	if len(result) == 0 {
		return result, nil
	}

	if err := m.validateCodes(ctx, result); err != nil {
		return nil, err
	}

	now := vacolsTimestamp(m.clock.Now())
	switch action {
	case ActionCreate:
		result["issaduser"] = slogid
		result["issadtime"] = now
	case ActionUpdate:
		result["issmduser"] = slogid
		result["issmdtime"] = now
	}

	return result, nil
}

// rename translates each supplied field to its legacy column. The
// disposition is translated from its human label to the legacy code,
// and a remanded disposition pulls in mapped remand reasons.
func (m *IssueMapper) rename(slogid string, attrs IssueAttributes) (map[string]interface{}, error) {
	result := map[string]interface{}{}

	plain := []struct {
		column string
		field  Field
	}{
		{colProgram, attrs.Program},
		{colIssue, attrs.Issue},
		{colLevel1, attrs.Level1},
		{colLevel2, attrs.Level2},
		{colLevel3, attrs.Level3},
		{colNote, attrs.Note},
		{colDispositionDate, attrs.DispositionDate},
		{colVacolsID, attrs.VacolsID},
	}
	for _, p := range plain {
		if p.field.Present {
			result[p.column] = p.field.Value
		}
	}

	if attrs.Disposition.Present {
		code, err := m.dispositionCode(attrs.Disposition.Value)
		if err != nil {
			return nil, err
		}
		if code == dispositionCodeRemanded {
			if len(attrs.RemandReasons) == 0 {
				return nil, &ValidationError{
					Code:    ErrCodeRemandReasonsMissing,
					Message: "remand reasons are missing",
				}
			}
			reasons, err := m.remand.Map(slogid, attrs.RemandReasons)
			if err != nil {
				return nil, err
			}
			result[colRemandReasons] = reasons
		}
		result[colDisposition] = code
	}

	return result, nil
}

// dispositionCode resolves a human disposition label to its allowed
// legacy code.
func (m *IssueMapper) dispositionCode(label string) (string, error) {
	code := dispositionToCode(label)
	if !allowedDispositionCodes[code] {
		return "", &ValidationError{
			Code:    ErrCodeDispositionNotAllowed,
			Message: fmt.Sprintf("not allowed disposition: %q", label),
		}
	}
	return code, nil
}

// validateCodes confirms the touched code combination matches exactly
// one catalog row.
func (m *IssueMapper) validateCodes(ctx context.Context, result map[string]interface{}) error {
	touched := false
	for _, col := range codeColumns {
		if _, ok := result[col]; ok {
			touched = true
			break
		}
	}
	if !touched {
		return nil
	}

	ref := external.IssueReference{
		Program: stringAt(result, colProgram),
		Issue:   stringAt(result, colIssue),
		Level1:  stringAt(result, colLevel1),
		Level2:  stringAt(result, colLevel2),
		Level3:  stringAt(result, colLevel3),
	}

	matches, err := m.catalog.FindReference(ctx, ref)
	if err != nil {
		return fmt.Errorf("failed to look up issue reference: %w", err)
	}
	if len(matches) != 1 {
		return &ValidationError{
			Code:    ErrCodeInvalidCodeCombination,
			Message: fmt.Sprintf("combination of issue codes is invalid: %+v", ref),
		}
	}

	return nil
}

func stringAt(result map[string]interface{}, column string) string {
	if v, ok := result[column].(string); ok {
		return v
	}
	return ""
}

// vacolsTimestamp renders t in the convention the legacy database
// expects: Eastern wall-clock time labeled as UTC.
func vacolsTimestamp(t time.Time) time.Time {
	local := t.In(easternTime)
	return time.Date(local.Year(), local.Month(), local.Day(),
		local.Hour(), local.Minute(), local.Second(), 0, time.UTC)
}

var easternTime = loadEasternTime()

func loadEasternTime() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.UTC
	}
	return loc
}
