package model

import "time"

// Claim links a person identity to a work
type Claim struct {
	ID            string         `json:"id,omitempty"`
	SourceID      string         `json:"sourceId,omitempty"`
	State         ClaimState     `json:"state"`
	ClaimAction   string         `json:"claimAction,omitempty"`
	Claimed       *time.Time     `json:"claimed"`
	ErrorMessages []ErrorMessage `json:"errorMessages"`
}

// ErrorMessage is a {status, title} pair reported for a claim
type ErrorMessage struct {
	Status int    `json:"status,omitempty"`
	Title  string `json:"title"`
}

// ClaimState mirrors the remote service's claim state. The vocabulary is owned
// by the service, so unknown values are passed through unchanged.
type ClaimState string

const (
	ClaimStateReady   ClaimState = "ready"   // No claim exists yet
	ClaimStateWaiting ClaimState = "waiting" // Claim is being processed remotely
	ClaimStateDone    ClaimState = "done"    // Remote processing finished
	ClaimStateFailed  ClaimState = "failed"  // Remote processing failed
)

// Claim actions as reported by the service
const (
	ClaimActionCreate = "create"
	ClaimActionDelete = "delete"
)

// SourceOrcidSearch is the source id used when claiming from the portal
const SourceOrcidSearch = "orcid_search"

// ReadyClaim returns the placeholder shown when a work has no claim
func ReadyClaim() Claim {
	return Claim{State: ClaimStateReady}
}

// IsClaimed reports whether the claim is confirmed
func (c Claim) IsClaimed() bool {
	return c.State == ClaimStateDone && c.Claimed != nil
}

// IsWaiting reports whether the claim is in a transient state
func (c Claim) IsWaiting() bool {
	return c.State == ClaimStateWaiting
}

// FirstError returns the first error title, or "" when there is none
func (c Claim) FirstError() string {
	if len(c.ErrorMessages) == 0 {
		return ""
	}
	return c.ErrorMessages[0].Title
}

// MutationError is an error reported by a claim mutation
type MutationError struct {
	Status int    `json:"status,omitempty"`
	Source string `json:"source,omitempty"`
	Title  string `json:"title"`
}

// RegistrationAgency identifies who registered a work's DOI
type RegistrationAgency struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// ClaimableAgency is the only registration agency claims are offered for
const ClaimableAgency = "datacite"

// WorkClaims is the cached view of one work's claims
type WorkClaims struct {
	ID                 string              `json:"id"`
	RegistrationAgency *RegistrationAgency `json:"registrationAgency"`
	Claims             []Claim             `json:"claims"`
}

// Current returns the first claim or the ready placeholder
func (w *WorkClaims) Current() Claim {
	if w == nil || len(w.Claims) == 0 {
		return ReadyClaim()
	}
	return w.Claims[0]
}

// IsClaimable reports whether claims may be offered for this work. A work with
// no known registration agency is treated as claimable.
func (w *WorkClaims) IsClaimable() bool {
	if w == nil || w.RegistrationAgency == nil {
		return true
	}
	return w.RegistrationAgency.ID == ClaimableAgency
}
