package claim

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/datacite/akita/internal/cache"
	"github.com/datacite/akita/internal/graphql"
	"github.com/datacite/akita/internal/metrics"
	"github.com/datacite/akita/internal/model"
	"github.com/datacite/akita/internal/session"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const testWork = "10.5061/dryad.8jd18"

type fakeBackend struct {
	mu      sync.Mutex
	works   []*model.WorkClaims
	loadErr error
	fetches int

	create      func() (*graphql.ClaimPayload, error)
	createCalls int
	remove      func(id string) (*graphql.ClaimPayload, error)
	removeCalls int
}

// respond queues works returned by successive fetches; the last one repeats
func (b *fakeBackend) respond(works ...*model.WorkClaims) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.works = append(b.works, works...)
}

// set replaces the queued responses
func (b *fakeBackend) set(work *model.WorkClaims) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.works = []*model.WorkClaims{work}
}

func (b *fakeBackend) WorkClaims(ctx context.Context, workID string) (*model.WorkClaims, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fetches++
	if b.loadErr != nil {
		return nil, b.loadErr
	}
	if len(b.works) == 0 {
		return &model.WorkClaims{ID: workID}, nil
	}
	w := b.works[0]
	if len(b.works) > 1 {
		b.works = b.works[1:]
	}
	cp := *w
	cp.Claims = append([]model.Claim(nil), w.Claims...)
	return &cp, nil
}

func (b *fakeBackend) CreateClaim(ctx context.Context, doi, sourceID string) (*graphql.ClaimPayload, error) {
	b.mu.Lock()
	b.createCalls++
	create := b.create
	b.mu.Unlock()
	if create == nil {
		return &graphql.ClaimPayload{}, nil
	}
	return create()
}

func (b *fakeBackend) DeleteClaim(ctx context.Context, claimID string) (*graphql.ClaimPayload, error) {
	b.mu.Lock()
	b.removeCalls++
	remove := b.remove
	b.mu.Unlock()
	if remove == nil {
		return &graphql.ClaimPayload{}, nil
	}
	return remove(claimID)
}

func (b *fakeBackend) fetchCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fetches
}

func (b *fakeBackend) createCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.createCalls
}

type manualTicker struct {
	ch      chan time.Time
	period  time.Duration
	stopped atomic.Bool
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }
func (t *manualTicker) Stop()               { t.stopped.Store(true) }

// manualTickers hands out tickers that only fire when the test sends on them
type manualTickers struct {
	created chan *manualTicker
}

func newManualTickers() *manualTickers {
	return &manualTickers{created: make(chan *manualTicker, 8)}
}

func (m *manualTickers) New(d time.Duration) Ticker {
	t := &manualTicker{ch: make(chan time.Time), period: d}
	m.created <- t
	return t
}

func (m *manualTickers) next(t *testing.T) *manualTicker {
	t.Helper()
	select {
	case tk := <-m.created:
		return tk
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not start")
		return nil
	}
}

func datacite(claims ...model.Claim) *model.WorkClaims {
	return &model.WorkClaims{
		ID:                 "https://doi.org/" + testWork,
		RegistrationAgency: &model.RegistrationAgency{ID: "datacite", Name: "DataCite"},
		Claims:             claims,
	}
}

func doneClaim(id string) model.Claim {
	ts := time.Date(2020, 6, 4, 8, 27, 32, 0, time.UTC)
	return model.Claim{ID: id, SourceID: model.SourceOrcidSearch, State: model.ClaimStateDone, ClaimAction: model.ClaimActionCreate, Claimed: &ts}
}

func waitingClaim(id, action string) model.Claim {
	return model.Claim{ID: id, SourceID: model.SourceOrcidSearch, State: model.ClaimStateWaiting, ClaimAction: action}
}

func signedIn() session.Provider {
	return session.NewStatic(&session.User{Orcid: "0000-0001-6528-2027", Name: "Martin Fenner", Token: "tok"})
}

func newSync(t *testing.T, b *fakeBackend, sess session.Provider, opts ...Option) (*Synchronizer, *cache.ClaimStore) {
	t.Helper()
	store := cache.NewMemoryClaimStore()
	s := New(testWork, b, store, sess, opts...)
	t.Cleanup(s.Close)
	return s, store
}

func TestView_LoadingBeforeFirstLoad(t *testing.T) {
	s, _ := newSync(t, &fakeBackend{}, signedIn())
	assert.True(t, s.View().Loading)
}

func TestView_SignedOutReady(t *testing.T) {
	b := &fakeBackend{}
	b.respond(datacite())
	s, _ := newSync(t, b, session.NewStatic(nil))

	require.NoError(t, s.Load(context.Background()))

	v := s.View()
	assert.Equal(t, ActionSignIn, v.Action)
	assert.False(t, v.Enabled)
	assert.Equal(t, LabelSignIn, v.Label)
	assert.Equal(t, model.ClaimStateReady, v.Claim.State)
	assert.False(t, s.Polling())
}

func TestView_NilSessionIsSignedOut(t *testing.T) {
	b := &fakeBackend{}
	b.respond(datacite())
	s, _ := newSync(t, b, nil)

	require.NoError(t, s.Load(context.Background()))
	assert.Equal(t, ActionSignIn, s.View().Action)
}

func TestView_ReadySignedInOffersCreate(t *testing.T) {
	b := &fakeBackend{}
	b.respond(datacite())
	s, _ := newSync(t, b, signedIn())

	require.NoError(t, s.Load(context.Background()))

	v := s.View()
	assert.Equal(t, ActionCreate, v.Action)
	assert.True(t, v.Enabled)
	assert.Equal(t, LabelCreate, v.Label)
}

func TestView_ClaimedOffersDelete(t *testing.T) {
	b := &fakeBackend{}
	b.respond(datacite(doneClaim("c1")))
	s, _ := newSync(t, b, signedIn())

	require.NoError(t, s.Load(context.Background()))

	v := s.View()
	assert.Equal(t, ActionDelete, v.Action)
	assert.Equal(t, LabelDelete, v.Label)
	assert.Equal(t, "c1", v.Claim.ID)
}

func TestView_DoneWithoutTimestampIsNotClaimed(t *testing.T) {
	c := doneClaim("c1")
	c.Claimed = nil
	c.ErrorMessages = []model.ErrorMessage{{Status: 400, Title: "Missing data"}, {Title: "second"}}
	b := &fakeBackend{}
	b.respond(datacite(c))
	s, _ := newSync(t, b, signedIn())

	require.NoError(t, s.Load(context.Background()))

	v := s.View()
	assert.Equal(t, ActionCreate, v.Action)
	assert.Equal(t, "Missing data", v.ErrorMsg)
}

func TestView_ErrorsHiddenWhenClaimed(t *testing.T) {
	c := doneClaim("c1")
	c.ErrorMessages = []model.ErrorMessage{{Title: "stale"}}
	b := &fakeBackend{}
	b.respond(datacite(c))
	s, _ := newSync(t, b, signedIn())

	require.NoError(t, s.Load(context.Background()))
	assert.Empty(t, s.View().ErrorMsg)
}

func TestView_OtherAgencyHidden(t *testing.T) {
	b := &fakeBackend{}
	b.respond(&model.WorkClaims{ID: testWork, RegistrationAgency: &model.RegistrationAgency{ID: "crossref"}})
	s, _ := newSync(t, b, signedIn())

	require.NoError(t, s.Load(context.Background()))
	assert.True(t, s.View().Hidden)

	_, err := s.Create(context.Background())
	assert.ErrorIs(t, err, ErrNotClaimable)
	assert.Zero(t, b.createCount())
}

func TestView_LoadError(t *testing.T) {
	b := &fakeBackend{loadErr: errors.New("boom")}
	s, _ := newSync(t, b, signedIn())

	err := s.Load(context.Background())
	require.Error(t, err)

	v := s.View()
	assert.Contains(t, v.LoadError, "boom")
	assert.Equal(t, ActionNone, v.Action)

	b.mu.Lock()
	b.loadErr = nil
	b.mu.Unlock()
	require.NoError(t, s.Load(context.Background()))
	assert.Empty(t, s.View().LoadError)
}

func TestWaiting_PollsUntilSettled(t *testing.T) {
	tickers := newManualTickers()
	b := &fakeBackend{}
	b.respond(datacite(waitingClaim("c1", model.ClaimActionCreate)), datacite(doneClaim("c1")))
	s, _ := newSync(t, b, signedIn(), WithTicker(tickers.New))

	require.NoError(t, s.Load(context.Background()))

	v := s.View()
	assert.Equal(t, ActionStatus, v.Action)
	assert.Equal(t, "Adding to ORCID record", v.Status)
	assert.True(t, s.Polling())

	tk := tickers.next(t)
	assert.Equal(t, DefaultPollInterval, tk.period)
	tk.ch <- time.Now()

	require.Eventually(t, func() bool { return !s.Polling() }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, b.fetchCount())
	assert.Equal(t, ActionDelete, s.View().Action)
	require.Eventually(t, tk.stopped.Load, 2*time.Second, 5*time.Millisecond)
}

func TestWaiting_PollIntervalFloor(t *testing.T) {
	tests := []struct {
		name string
		set  time.Duration
		want time.Duration
	}{
		{"below floor", time.Second, DefaultPollInterval},
		{"zero", 0, DefaultPollInterval},
		{"longer", 30 * time.Second, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tickers := newManualTickers()
			b := &fakeBackend{}
			b.respond(datacite(waitingClaim("c1", model.ClaimActionCreate)))
			s, _ := newSync(t, b, signedIn(), WithTicker(tickers.New), WithPollInterval(tt.set))

			require.NoError(t, s.Load(context.Background()))
			assert.Equal(t, tt.want, tickers.next(t).period)
		})
	}
}

func TestClose_StopsPolling(t *testing.T) {
	tickers := newManualTickers()
	b := &fakeBackend{}
	b.respond(datacite(waitingClaim("c1", model.ClaimActionCreate)))
	s, _ := newSync(t, b, signedIn(), WithTicker(tickers.New))

	require.NoError(t, s.Load(context.Background()))
	tk := tickers.next(t)
	tk.ch <- time.Now()
	require.Eventually(t, func() bool { return b.fetchCount() == 2 }, 2*time.Second, 5*time.Millisecond)

	s.Close()

	assert.True(t, tk.stopped.Load())
	assert.False(t, s.Polling())
	select {
	case tk.ch <- time.Now():
		t.Fatal("poller still receiving ticks after Close")
	case <-time.After(20 * time.Millisecond):
	}
	assert.ErrorIs(t, s.Load(context.Background()), ErrClosed)
	assert.Equal(t, 2, b.fetchCount())
}

func TestCreate_ReplacesPlaceholder(t *testing.T) {
	tickers := newManualTickers()
	b := &fakeBackend{
		create: func() (*graphql.ClaimPayload, error) {
			c := waitingClaim("new", model.ClaimActionCreate)
			return &graphql.ClaimPayload{Claim: &c}, nil
		},
	}
	b.respond(datacite())
	s, store := newSync(t, b, signedIn(), WithTicker(tickers.New))

	require.NoError(t, s.Load(context.Background()))

	claim, err := s.Create(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "new", claim.ID)

	work, ok := store.Get(testWork)
	require.True(t, ok)
	require.Len(t, work.Claims, 1)
	assert.Equal(t, "new", work.Claims[0].ID)
	assert.Equal(t, "datacite", work.RegistrationAgency.ID)

	assert.Equal(t, ActionStatus, s.View().Action)
	assert.True(t, s.Polling())
	tickers.next(t)
}

func TestCreate_SameIDMergedOnce(t *testing.T) {
	b := &fakeBackend{
		create: func() (*graphql.ClaimPayload, error) {
			c := doneClaim("c1")
			return &graphql.ClaimPayload{Claim: &c}, nil
		},
	}
	c := doneClaim("c1")
	c.Claimed = nil
	c.State = model.ClaimStateFailed
	b.respond(datacite(c))
	s, store := newSync(t, b, signedIn())

	require.NoError(t, s.Load(context.Background()))
	_, err := s.Create(context.Background())
	require.NoError(t, err)

	work, _ := store.Get(testWork)
	require.Len(t, work.Claims, 1)
	assert.True(t, work.Claims[0].IsClaimed())
}

func TestCreate_BeforeLoadNeverSent(t *testing.T) {
	b := &fakeBackend{}
	s, _ := newSync(t, b, signedIn())

	_, err := s.Create(context.Background())

	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Zero(t, b.createCount())
	assert.True(t, s.View().Loading)
}

func TestCreate_ClaimKeptAlongsideErrors(t *testing.T) {
	tickers := newManualTickers()
	b := &fakeBackend{
		create: func() (*graphql.ClaimPayload, error) {
			c := waitingClaim("c1", model.ClaimActionCreate)
			return &graphql.ClaimPayload{
				Claim:  &c,
				Errors: []model.MutationError{{Title: "orcid token expiring"}},
			}, nil
		},
	}
	b.respond(datacite())
	s, store := newSync(t, b, signedIn(), WithTicker(tickers.New))

	require.NoError(t, s.Load(context.Background()))
	_, err := s.Create(context.Background())
	assert.ErrorIs(t, err, ErrRejected)

	work, ok := store.Get(testWork)
	require.True(t, ok)
	require.Len(t, work.Claims, 1)
	assert.Equal(t, "c1", work.Claims[0].ID)

	v := s.View()
	assert.Equal(t, ActionStatus, v.Action)
	assert.Equal(t, "orcid token expiring", v.ErrorMsg)
	assert.True(t, s.Polling())
	tickers.next(t)
}

func TestCreate_SignedOutNeverSent(t *testing.T) {
	b := &fakeBackend{}
	b.respond(datacite())
	s, _ := newSync(t, b, session.NewStatic(nil))

	require.NoError(t, s.Load(context.Background()))
	_, err := s.Create(context.Background())

	assert.ErrorIs(t, err, ErrSignedOut)
	assert.Zero(t, b.createCount())
}

func TestCreate_UnavailableWhileClaimed(t *testing.T) {
	b := &fakeBackend{}
	b.respond(datacite(doneClaim("c1")))
	s, _ := newSync(t, b, signedIn())

	require.NoError(t, s.Load(context.Background()))
	_, err := s.Create(context.Background())

	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Zero(t, b.createCount())
}

func TestCreate_Rejected(t *testing.T) {
	b := &fakeBackend{
		create: func() (*graphql.ClaimPayload, error) {
			return &graphql.ClaimPayload{Errors: []model.MutationError{{Status: 403, Title: "You are not authorized"}}}, nil
		},
	}
	b.respond(datacite())
	s, _ := newSync(t, b, signedIn())

	require.NoError(t, s.Load(context.Background()))
	_, err := s.Create(context.Background())
	assert.ErrorIs(t, err, ErrRejected)

	v := s.View()
	assert.Equal(t, ActionCreate, v.Action)
	assert.Equal(t, "You are not authorized", v.ErrorMsg)
	assert.False(t, s.Polling())
}

func TestCreate_TransportErrorShown(t *testing.T) {
	b := &fakeBackend{
		create: func() (*graphql.ClaimPayload, error) {
			return nil, errors.New("connection refused")
		},
	}
	b.respond(datacite())
	s, _ := newSync(t, b, signedIn())

	require.NoError(t, s.Load(context.Background()))
	_, err := s.Create(context.Background())
	require.Error(t, err)

	v := s.View()
	assert.Equal(t, ActionCreate, v.Action)
	assert.Contains(t, v.ErrorMsg, "connection refused")
}

func TestCreate_ConcurrentCallsSendOnce(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	b := &fakeBackend{
		create: func() (*graphql.ClaimPayload, error) {
			once.Do(func() { close(started) })
			<-release
			c := waitingClaim("new", model.ClaimActionCreate)
			return &graphql.ClaimPayload{Claim: &c}, nil
		},
	}
	b.respond(datacite())
	reg := prometheus.NewRegistry()
	s, store := newSync(t, b, signedIn(), WithTicker(newManualTickers().New), WithMetrics(metrics.NewClaimMetrics(reg)))

	require.NoError(t, s.Load(context.Background()))

	errs := make(chan error, 2)
	go func() {
		_, err := s.Create(context.Background())
		errs <- err
	}()
	<-started

	// optimistic state is visible while the mutation is in flight
	assert.Equal(t, ActionStatus, s.View().Action)

	go func() {
		_, err := s.Create(context.Background())
		errs <- err
	}()
	time.Sleep(20 * time.Millisecond)
	close(release)

	require.NoError(t, <-errs)
	if err := <-errs; err != nil {
		assert.ErrorIs(t, err, ErrUnavailable)
	}

	assert.Equal(t, 1, b.createCount())
	work, _ := store.Get(testWork)
	assert.Len(t, work.Claims, 1)

	n, err := testutil.GatherAndCount(reg, "akita_claim_mutations_total")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 1)
}

func TestDelete_ReflectsServerState(t *testing.T) {
	tickers := newManualTickers()
	b := &fakeBackend{
		remove: func(id string) (*graphql.ClaimPayload, error) {
			c := waitingClaim(id, model.ClaimActionDelete)
			return &graphql.ClaimPayload{Claim: &c}, nil
		},
	}
	b.respond(datacite(doneClaim("c1")))
	s, _ := newSync(t, b, signedIn(), WithTicker(tickers.New))

	require.NoError(t, s.Load(context.Background()))

	_, err := s.Delete(context.Background(), "c1")
	require.NoError(t, err)

	v := s.View()
	assert.Equal(t, ActionStatus, v.Action)
	assert.Equal(t, "Removing from ORCID record", v.Status)

	b.set(datacite())
	tk := tickers.next(t)
	assert.Equal(t, DefaultPollInterval, tk.period)
	tk.ch <- time.Now()

	require.Eventually(t, func() bool { return !s.Polling() }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, ActionCreate, s.View().Action)
}

func TestDelete_Preconditions(t *testing.T) {
	b := &fakeBackend{}
	b.respond(datacite(doneClaim("c1")))

	s, _ := newSync(t, b, signedIn())
	require.NoError(t, s.Load(context.Background()))

	_, err := s.Delete(context.Background(), "other")
	assert.ErrorIs(t, err, ErrNotDisplayed)

	out, _ := newSync(t, b, session.NewStatic(nil))
	require.NoError(t, out.Load(context.Background()))
	_, err = out.Delete(context.Background(), "c1")
	assert.ErrorIs(t, err, ErrSignedOut)

	b.mu.Lock()
	assert.Zero(t, b.removeCalls)
	b.mu.Unlock()
}

func TestSharedStoreAcrossSynchronizers(t *testing.T) {
	b := &fakeBackend{
		create: func() (*graphql.ClaimPayload, error) {
			c := doneClaim("c9")
			return &graphql.ClaimPayload{Claim: &c}, nil
		},
	}
	b.respond(datacite())
	store := cache.NewMemoryClaimStore()

	first := New(testWork, b, store, signedIn())
	defer first.Close()
	second := New(testWork, b, store, signedIn())
	defer second.Close()

	require.NoError(t, first.Load(context.Background()))
	_, err := first.Create(context.Background())
	require.NoError(t, err)

	v := second.View()
	assert.False(t, v.Loading)
	assert.Equal(t, ActionDelete, v.Action)
	assert.Equal(t, "c9", v.Claim.ID)
}

func TestUpdatesSignalled(t *testing.T) {
	b := &fakeBackend{}
	b.respond(datacite())
	s, _ := newSync(t, b, signedIn())

	require.NoError(t, s.Load(context.Background()))

	select {
	case <-s.Updates():
	case <-time.After(time.Second):
		t.Fatal("expected update after load")
	}
}

func TestStatusText(t *testing.T) {
	tests := []struct {
		action string
		want   string
	}{
		{model.ClaimActionCreate, "Adding to ORCID record"},
		{"", "Adding to ORCID record"},
		{model.ClaimActionDelete, "Removing from ORCID record"},
		{"update", "Claim update in progress"},
	}
	for _, tt := range tests {
		if got := statusText(model.Claim{ClaimAction: tt.action}); got != tt.want {
			t.Errorf("statusText(%q) = %q, want %q", tt.action, got, tt.want)
		}
	}
}
