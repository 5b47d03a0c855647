package cache

import (
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/datacite/akita/internal/model"
)

// ClaimStore is the normalized read cache of claim lists keyed by work id.
// It is shared by every synchronizer looking at the same work; writes are
// last-write-wins per claim id.
type ClaimStore struct {
	mu    sync.Mutex
	cache Cache
	ttl   time.Duration
}

// NewClaimStore creates a store on top of a byte cache
func NewClaimStore(c Cache, ttl time.Duration) *ClaimStore {
	return &ClaimStore{
		cache: c,
		ttl:   ttl,
	}
}

// NewMemoryClaimStore creates a store that lives for the process only.
// Entries never expire, so no background cleanup runs.
func NewMemoryClaimStore() *ClaimStore {
	return NewClaimStore(NewMemoryCache(0, 0), 0)
}

// Get returns the cached claims for a work
func (s *ClaimStore) Get(workID string) (*model.WorkClaims, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(workID)
}

// Put replaces the cached claims for a work
func (s *ClaimStore) Put(workID string, work *model.WorkClaims) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.put(workID, work)
}

// UpsertClaim merges claim into the work's list: a claim with the same id is
// replaced in place, otherwise the claim is appended. The resulting list is
// returned.
func (s *ClaimStore) UpsertClaim(workID string, claim model.Claim) (*model.WorkClaims, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	work, found := s.get(workID)
	if !found {
		work = &model.WorkClaims{ID: workID}
	}
	work.Claims = MergeClaim(work.Claims, claim)

	if err := s.put(workID, work); err != nil {
		return nil, err
	}
	return work, nil
}

// Delete drops a work from the store
func (s *ClaimStore) Delete(workID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Delete(WorkKey(workID))
}

func (s *ClaimStore) get(workID string) (*model.WorkClaims, bool) {
	raw, found := s.cache.Get(WorkKey(workID))
	if !found {
		return nil, false
	}

	var work model.WorkClaims
	if err := json.Unmarshal(raw, &work); err != nil {
		return nil, false
	}
	return &work, true
}

func (s *ClaimStore) put(workID string, work *model.WorkClaims) error {
	raw, err := json.Marshal(work)
	if err != nil {
		return fmt.Errorf("marshal claims: %w", err)
	}
	if err := s.cache.Set(WorkKey(workID), raw, s.ttl); err != nil {
		return fmt.Errorf("store claims: %w", err)
	}
	return nil
}

// MergeClaim returns claims with claim replacing the first entry of the same
// id, or appended when no entry matches. Later entries sharing the id are
// dropped. The input slice is not modified.
func MergeClaim(claims []model.Claim, claim model.Claim) []model.Claim {
	merged := make([]model.Claim, 0, len(claims)+1)
	replaced := false
	for _, existing := range claims {
		if existing.ID == claim.ID {
			if !replaced {
				merged = append(merged, claim)
				replaced = true
			}
			continue
		}
		merged = append(merged, existing)
	}
	if !replaced {
		merged = append(merged, claim)
	}
	return merged
}
