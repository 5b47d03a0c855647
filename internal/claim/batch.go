package claim

import (
	"context"

	"github.com/datacite/akita/internal/cache"
	"github.com/datacite/akita/internal/model"
	"github.com/datacite/akita/internal/session"
)

// Claimer claims works one at a time through short-lived synchronizers that
// share a single store
type Claimer struct {
	backend Backend
	store   *cache.ClaimStore
	session session.Provider
	opts    []Option
}

// NewClaimer creates a Claimer; opts apply to every synchronizer it creates
func NewClaimer(backend Backend, store *cache.ClaimStore, sess session.Provider, opts ...Option) *Claimer {
	return &Claimer{
		backend: backend,
		store:   store,
		session: sess,
		opts:    opts,
	}
}

// ClaimWork loads the work's claims and creates a claim unless one is
// already confirmed or in progress, in which case that claim is returned
func (c *Claimer) ClaimWork(ctx context.Context, doi string) (model.Claim, error) {
	s := New(doi, c.backend, c.store, c.session, c.opts...)
	defer s.Close()

	if err := s.Load(ctx); err != nil {
		return model.Claim{}, err
	}

	v := s.View()
	switch {
	case v.Hidden:
		return model.Claim{}, ErrNotClaimable
	case v.Action == ActionDelete, v.Action == ActionStatus:
		return v.Claim, nil
	}

	return s.Create(ctx)
}
