// Package claim keeps one work's claim in sync with the remote service.
//
// A Synchronizer is created for a work (mount), loads the work's claims into
// the shared ClaimStore, issues create and delete mutations, and polls while
// the claim is waiting. Close (unmount) cancels the poll and waits for it.
package claim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/datacite/akita/internal/cache"
	"github.com/datacite/akita/internal/graphql"
	"github.com/datacite/akita/internal/metrics"
	"github.com/datacite/akita/internal/model"
	"github.com/datacite/akita/internal/session"
)

// DefaultPollInterval is how often a waiting claim is re-fetched. It is also
// the shortest interval a synchronizer accepts.
const DefaultPollInterval = 10 * time.Second

var (
	// ErrSignedOut is returned when a mutation is attempted without a session
	ErrSignedOut = errors.New("sign in to claim works")
	// ErrNotClaimable is returned for works of other registration agencies
	ErrNotClaimable = errors.New("claims are not offered for this registration agency")
	// ErrNotDisplayed is returned when deleting a claim that is not shown
	ErrNotDisplayed = errors.New("claim is not the displayed claim")
	// ErrUnavailable is returned when the current state offers no such action
	ErrUnavailable = errors.New("action not available in current claim state")
	// ErrRejected wraps errors reported by the mutation payload
	ErrRejected = errors.New("claim rejected")
	// ErrClosed is returned after Close
	ErrClosed = errors.New("synchronizer closed")
)

// Backend is the remote claim service
type Backend interface {
	WorkClaims(ctx context.Context, workID string) (*model.WorkClaims, error)
	CreateClaim(ctx context.Context, doi, sourceID string) (*graphql.ClaimPayload, error)
	DeleteClaim(ctx context.Context, claimID string) (*graphql.ClaimPayload, error)
}

// Option configures a Synchronizer
type Option func(*Synchronizer)

// WithPollInterval lengthens the waiting-state poll interval. Values below
// DefaultPollInterval are raised to it.
func WithPollInterval(d time.Duration) Option {
	return func(s *Synchronizer) {
		s.interval = max(d, DefaultPollInterval)
	}
}

// WithSourceID sets the source id sent with createClaim
func WithSourceID(id string) Option {
	return func(s *Synchronizer) { s.sourceID = id }
}

// WithClaimableAgency sets the registration agency claims are offered for
func WithClaimableAgency(id string) Option {
	return func(s *Synchronizer) { s.agency = id }
}

// WithTicker replaces the poll ticker
func WithTicker(f TickerFunc) Option {
	return func(s *Synchronizer) { s.newTicker = f }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Synchronizer) { s.logger = l }
}

// WithMetrics records mutations and polls
func WithMetrics(m *metrics.ClaimMetrics) Option {
	return func(s *Synchronizer) { s.metrics = m }
}

// Synchronizer owns the claim state of one work
type Synchronizer struct {
	workID    string
	backend   Backend
	store     *cache.ClaimStore
	session   session.Provider
	sourceID  string
	agency    string
	interval  time.Duration
	newTicker TickerFunc
	logger    *zap.Logger
	metrics   *metrics.ClaimMetrics

	flight singleflight.Group

	mu          sync.Mutex
	loaded      bool
	loadErr     error
	pending     *model.Claim
	mutationErr []model.ErrorMessage
	pollCancel  context.CancelFunc
	pollers     sync.WaitGroup
	closed      bool
	updates     chan struct{}
}

// New creates a Synchronizer for workID. The store may be shared between
// synchronizers; sess may be nil for a signed-out client.
func New(workID string, backend Backend, store *cache.ClaimStore, sess session.Provider, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		workID:    workID,
		backend:   backend,
		store:     store,
		session:   sess,
		sourceID:  model.SourceOrcidSearch,
		agency:    model.ClaimableAgency,
		interval:  DefaultPollInterval,
		newTicker: NewTimeTicker,
		logger:    zap.NewNop(),
		updates:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("work", workID))
	return s
}

// Updates signals whenever the view may have changed. Signals coalesce.
func (s *Synchronizer) Updates() <-chan struct{} {
	return s.updates
}

// Load fetches the work's claims into the store. A failure is kept as the
// view's load error until the next successful load.
func (s *Synchronizer) Load(ctx context.Context) error {
	if s.isClosed() {
		return ErrClosed
	}

	work, err := s.backend.WorkClaims(ctx, s.workID)

	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.notify()

	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		s.loadErr = err
		s.logger.Warn("claim load failed", zap.Error(err))
		return fmt.Errorf("load claims: %w", err)
	}

	if err := s.store.Put(s.workID, work); err != nil {
		return err
	}
	s.loaded = true
	s.loadErr = nil
	s.reconcileLocked()
	return nil
}

// Create claims the work for the signed-in identity
func (s *Synchronizer) Create(ctx context.Context) (model.Claim, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return model.Claim{}, ErrClosed
	}
	if err := s.checkCreateLocked(); err != nil {
		s.mu.Unlock()
		return model.Claim{}, err
	}
	s.setPendingLocked(model.ClaimActionCreate, s.currentLocked())
	s.mu.Unlock()

	return s.mutate(model.ClaimActionCreate, model.ClaimActionCreate+":"+s.workID, func() (*graphql.ClaimPayload, error) {
		return s.backend.CreateClaim(ctx, s.workID, s.sourceID)
	})
}

// Delete removes the displayed claim. claimID must match it.
func (s *Synchronizer) Delete(ctx context.Context, claimID string) (model.Claim, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return model.Claim{}, ErrClosed
	}
	if s.session == nil || s.session.Current() == nil {
		s.mu.Unlock()
		return model.Claim{}, ErrSignedOut
	}
	current := s.currentLocked()
	if current.ID == "" || current.ID != claimID {
		s.mu.Unlock()
		return model.Claim{}, ErrNotDisplayed
	}
	if !current.IsClaimed() {
		s.mu.Unlock()
		return model.Claim{}, ErrUnavailable
	}
	s.setPendingLocked(model.ClaimActionDelete, current)
	s.mu.Unlock()

	return s.mutate(model.ClaimActionDelete, model.ClaimActionDelete+":"+claimID, func() (*graphql.ClaimPayload, error) {
		return s.backend.DeleteClaim(ctx, claimID)
	})
}

// mutate runs call at most once at a time per key. A caller arriving while
// a call with the same key is in flight shares its result.
func (s *Synchronizer) mutate(kind, key string, call func() (*graphql.ClaimPayload, error)) (model.Claim, error) {
	v, err, shared := s.flight.Do(key, func() (any, error) {
		return call()
	})
	if shared {
		s.metrics.Mutation(kind, metrics.OutcomeShared)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.notify()

	s.pending = nil

	if err != nil {
		s.mutationErr = []model.ErrorMessage{{Title: err.Error()}}
		s.metrics.Mutation(kind, metrics.OutcomeError)
		s.logger.Warn("claim mutation failed", zap.String("kind", kind), zap.Error(err))
		return s.currentLocked(), fmt.Errorf("%s claim: %w", kind, err)
	}

	payload, _ := v.(*graphql.ClaimPayload)
	if payload == nil {
		payload = &graphql.ClaimPayload{}
	}
	s.mutationErr = nil
	for _, e := range payload.Errors {
		s.mutationErr = append(s.mutationErr, model.ErrorMessage{Status: e.Status, Title: e.Title})
	}

	if payload.Claim != nil {
		if _, err := s.store.UpsertClaim(s.workID, *payload.Claim); err != nil {
			return *payload.Claim, err
		}
		s.reconcileLocked()
	}

	if len(s.mutationErr) > 0 {
		s.metrics.Mutation(kind, metrics.OutcomeRejected)
		s.logger.Info("claim mutation rejected",
			zap.String("kind", kind),
			zap.String("error", s.mutationErr[0].Title))
		return s.currentLocked(), fmt.Errorf("%w: %s", ErrRejected, s.mutationErr[0].Title)
	}

	s.metrics.Mutation(kind, metrics.OutcomeOK)
	s.logger.Info("claim mutation applied",
		zap.String("kind", kind),
		zap.String("state", string(s.currentLocked().State)))
	return s.currentLocked(), nil
}

// View returns what the claim control should show
func (s *Synchronizer) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	work, _ := s.store.Get(s.workID)
	if work != nil && !s.claimableLocked(work) {
		return View{Hidden: true}
	}
	if s.loadErr != nil {
		return View{LoadError: s.loadErr.Error()}
	}
	if !s.loaded && work == nil {
		return View{Loading: true}
	}

	claim := work.Current()
	if s.pending != nil {
		claim = *s.pending
	}
	if len(s.mutationErr) > 0 {
		claim.ErrorMessages = append(append([]model.ErrorMessage(nil), claim.ErrorMessages...), s.mutationErr...)
	}

	v := View{Claim: claim}
	if s.session == nil || s.session.Current() == nil {
		v.Action = ActionSignIn
		v.Label = LabelSignIn
		return v
	}

	switch {
	case claim.IsWaiting():
		v.Action = ActionStatus
		v.Status = statusText(claim)
	case claim.IsClaimed():
		v.Action = ActionDelete
		v.Label = LabelDelete
		v.Enabled = true
	default:
		v.Action = ActionCreate
		v.Label = LabelCreate
		v.Enabled = true
	}

	if !claim.IsClaimed() {
		v.ErrorMsg = claim.FirstError()
	}
	return v
}

// Polling reports whether a poll is active
func (s *Synchronizer) Polling() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pollCancel != nil
}

// Close stops polling and waits for the poll goroutine to exit
func (s *Synchronizer) Close() {
	s.mu.Lock()
	s.closed = true
	s.stopPollLocked()
	s.mu.Unlock()

	s.pollers.Wait()
}

func (s *Synchronizer) checkCreateLocked() error {
	if s.session == nil || s.session.Current() == nil {
		return ErrSignedOut
	}
	work, _ := s.store.Get(s.workID)
	if work == nil {
		// agency unknown until the work has been loaded
		return ErrUnavailable
	}
	if !s.claimableLocked(work) {
		return ErrNotClaimable
	}
	current := s.currentLocked()
	if current.IsWaiting() || current.IsClaimed() {
		return ErrUnavailable
	}
	return nil
}

func (s *Synchronizer) claimableLocked(work *model.WorkClaims) bool {
	if work.RegistrationAgency == nil {
		return true
	}
	return work.RegistrationAgency.ID == s.agency
}

// currentLocked returns the displayed claim without optimistic overrides
func (s *Synchronizer) currentLocked() model.Claim {
	work, _ := s.store.Get(s.workID)
	return work.Current()
}

func (s *Synchronizer) setPendingLocked(action string, base model.Claim) {
	pending := base
	pending.State = model.ClaimStateWaiting
	pending.ClaimAction = action
	pending.ErrorMessages = nil
	s.pending = &pending
	s.mutationErr = nil
	s.notify()
}

// reconcileLocked starts polling when the stored claim is waiting and stops
// it otherwise
func (s *Synchronizer) reconcileLocked() {
	waiting := s.currentLocked().IsWaiting()

	switch {
	case waiting && s.pollCancel == nil && !s.closed:
		ctx, cancel := context.WithCancel(context.Background())
		s.pollCancel = cancel
		s.pollers.Add(1)
		s.metrics.PollerStarted()
		s.logger.Debug("claim poll started", zap.Duration("interval", s.interval))
		go s.poll(ctx)
	case !waiting:
		s.stopPollLocked()
	}
}

func (s *Synchronizer) stopPollLocked() {
	if s.pollCancel == nil {
		return
	}
	s.pollCancel()
	s.pollCancel = nil
	s.logger.Debug("claim poll stopped")
}

func (s *Synchronizer) poll(ctx context.Context) {
	defer s.pollers.Done()
	defer s.metrics.PollerStopped()

	ticker := s.newTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			s.metrics.Poll()
			if err := s.Load(ctx); err != nil && ctx.Err() == nil {
				s.logger.Debug("claim poll fetch failed", zap.Error(err))
			}
		}
	}
}

func (s *Synchronizer) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// notify signals Updates without blocking
func (s *Synchronizer) notify() {
	select {
	case s.updates <- struct{}{}:
	default:
	}
}
