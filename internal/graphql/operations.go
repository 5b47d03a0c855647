package graphql

import (
	"context"
	"errors"
	"fmt"

	"github.com/datacite/akita/internal/model"
)

const claimFields = `
      id
      sourceId
      state
      claimAction
      claimed
      errorMessages {
        status
        title
      }`

// WorkClaimsQuery fetches a work's registration agency and claims
const WorkClaimsQuery = `
query getDoiClaimQuery($id: ID!) {
  work(id: $id) {
    id
    registrationAgency {
      id
    }
    claims {` + claimFields + `
    }
  }
}`

// CreateClaimMutation claims a work for the signed-in identity
const CreateClaimMutation = `
mutation createClaim($doi: ID!, $sourceId: String!) {
  createClaim(doi: $doi, sourceId: $sourceId) {
    claim {` + claimFields + `
    }
    errors {
      status
      source
      title
    }
  }
}`

// DeleteClaimMutation removes a claim
const DeleteClaimMutation = `
mutation deleteClaim($id: ID!) {
  deleteClaim(id: $id) {
    claim {` + claimFields + `
    }
    errors {
      status
      source
      title
    }
  }
}`

// ErrWorkNotFound is returned when the backend has no such work
var ErrWorkNotFound = errors.New("work not found")

// ClaimPayload is the result of a claim mutation
type ClaimPayload struct {
	Claim  *model.Claim          `json:"claim"`
	Errors []model.MutationError `json:"errors"`
}

// claimPayload returns payload with top-level GraphQL errors folded into its
// error list when the response carried a payload alongside them. Any other
// error is returned as is.
func claimPayload(payload *ClaimPayload, err error) (*ClaimPayload, error) {
	if err == nil {
		return payload, nil
	}
	var gqlErrs Errors
	if payload == nil || !errors.As(err, &gqlErrs) {
		return nil, err
	}
	for _, e := range gqlErrs {
		payload.Errors = append(payload.Errors, model.MutationError{Title: e.Message})
	}
	return payload, nil
}

// WorkClaims fetches the claims for a work
func (c *Client) WorkClaims(ctx context.Context, workID string) (*model.WorkClaims, error) {
	var data struct {
		Work *model.WorkClaims `json:"work"`
	}
	if err := c.Do(ctx, WorkClaimsQuery, map[string]any{"id": workID}, &data); err != nil {
		return nil, fmt.Errorf("query claims: %w", err)
	}
	if data.Work == nil {
		return nil, ErrWorkNotFound
	}
	return data.Work, nil
}

// CreateClaim asks the backend to claim doi for the signed-in identity
func (c *Client) CreateClaim(ctx context.Context, doi, sourceID string) (*ClaimPayload, error) {
	var data struct {
		CreateClaim *ClaimPayload `json:"createClaim"`
	}
	vars := map[string]any{"doi": doi, "sourceId": sourceID}
	err := c.Mutate(ctx, CreateClaimMutation, vars, &data)
	payload, err := claimPayload(data.CreateClaim, err)
	if err != nil {
		return nil, fmt.Errorf("create claim: %w", err)
	}
	if payload == nil {
		return nil, errors.New("create claim: empty payload")
	}
	return payload, nil
}

// DeleteClaim asks the backend to remove a claim
func (c *Client) DeleteClaim(ctx context.Context, claimID string) (*ClaimPayload, error) {
	var data struct {
		DeleteClaim *ClaimPayload `json:"deleteClaim"`
	}
	err := c.Mutate(ctx, DeleteClaimMutation, map[string]any{"id": claimID}, &data)
	payload, err := claimPayload(data.DeleteClaim, err)
	if err != nil {
		return nil, fmt.Errorf("delete claim: %w", err)
	}
	if payload == nil {
		return nil, errors.New("delete claim: empty payload")
	}
	return payload, nil
}
