package mapper

// vacolsDispositions maps legacy single-character disposition codes to
// the human labels shown in the UI. Mirrors the legacy case table.
var vacolsDispositions = map[string]string{
	"1": "Allowed",
	"3": "Remanded",
	"4": "Denied",
	"5": "Vacated",
	"6": "Dismissed, Other",
	"8": "Dismissed, Death",
	"9": "Withdrawn",
	"A": "Advance Allowed in Field",
	"B": "Benefits Granted by AOJ",
	"D": "Designation of Record",
	"E": "Death, Field",
	"G": "Advance Withdrawn by Appellant",
}

// allowedDispositionCodes is the subset of codes an attorney may record
// through this system. Anything else resolving from a label is rejected.
var allowedDispositionCodes = map[string]bool{
	"1": true,
	"3": true,
	"4": true,
	"5": true,
	"6": true,
	"8": true,
	"9": true,
}

const dispositionCodeRemanded = "3"

// dispositionToCode reverse-looks-up a human disposition label into its
// legacy code. Returns "" when the label is unknown.
func dispositionToCode(label string) string {
	for code, l := range vacolsDispositions {
		if l == label {
			return code
		}
	}
	return ""
}
