package models

// FormType discriminates which intake workflow variant a record belongs
// to. The set is closed; unknown values are rejected at build time.
type FormType string

// Form type constants
const (
	FormTypeRampElection      FormType = "ramp_election"
	FormTypeRampRefiling      FormType = "ramp_refiling"
	FormTypeHigherLevelReview FormType = "higher_level_review"
	FormTypeSupplementalClaim FormType = "supplemental_claim"
	FormTypeAppeal            FormType = "appeal"
)

// FormTypes lists every supported form type in display order.
func FormTypes() []FormType {
	return []FormType{
		FormTypeRampElection,
		FormTypeRampRefiling,
		FormTypeHigherLevelReview,
		FormTypeSupplementalClaim,
		FormTypeAppeal,
	}
}
