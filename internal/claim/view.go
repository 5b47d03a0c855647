package claim

import "github.com/datacite/akita/internal/model"

// Action is the control a view offers
type Action string

const (
	ActionNone   Action = ""        // Nothing to click
	ActionSignIn Action = "sign-in" // Disabled prompt to sign in
	ActionCreate Action = "create"  // Add the work to the ORCID record
	ActionDelete Action = "delete"  // Remove the claim
	ActionStatus Action = "status"  // Non-actionable progress indicator
)

// Button labels
const (
	LabelCreate = "Add to ORCID Record"
	LabelDelete = "Remove Claim"
	LabelSignIn = "Sign in to Add to ORCID record"
)

// View is what a claim control should display
type View struct {
	// Hidden is set when claims are not offered for the work at all
	Hidden bool `json:"hidden,omitempty"`
	// Loading is set until the first load finishes
	Loading bool `json:"loading,omitempty"`
	// LoadError is the blocking error panel message
	LoadError string `json:"loadError,omitempty"`

	Action   Action `json:"action,omitempty"`
	Enabled  bool   `json:"enabled"`
	Label    string `json:"label,omitempty"`
	Status   string `json:"status,omitempty"`
	ErrorMsg string `json:"error,omitempty"`

	Claim model.Claim `json:"claim"`
}

// statusText describes a waiting claim
func statusText(c model.Claim) string {
	switch c.ClaimAction {
	case model.ClaimActionDelete:
		return "Removing from ORCID record"
	case model.ClaimActionCreate, "":
		return "Adding to ORCID record"
	default:
		return "Claim " + c.ClaimAction + " in progress"
	}
}
