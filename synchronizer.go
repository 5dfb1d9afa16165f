package authsync

import (
	"context"
	"sync"
)

// Synchronizer mirrors the provider's session into an AuthState with a
// single writer: itself. Consumers read snapshots through State or Watch;
// they never mutate.
//
// Session fields are written only from the provider's event channel, never
// from the return value of Login, Register, or Logout. A successful Login
// therefore resolves slightly before IsAuthenticated flips true; callers
// must not assume the two are synchronous.
type Synchronizer struct {
	provider Provider
	logger   Logger

	mu          sync.RWMutex
	session     *Session
	initialized bool
	pending     int
	closed      bool
	watchers    map[uint64]func(AuthState)
	nextWatcher uint64

	sub       Subscription
	started   bool
	ready     chan struct{}
	closeOnce sync.Once
}

type SynchronizerOption func(*Synchronizer)

func WithLogger(logger Logger) SynchronizerOption {
	return func(s *Synchronizer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New builds a Synchronizer in the Initializing state. Call Start to
// subscribe to the provider and resolve the initial session.
func New(provider Provider, opts ...SynchronizerOption) *Synchronizer {
	s := &Synchronizer{
		provider: provider,
		logger:   defLogger{},
		watchers: map[uint64]func(AuthState){},
		ready:    make(chan struct{}),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// Start establishes the change-event subscription and kicks off the
// initial session fetch. The fetch resolves asynchronously; use WaitReady
// to block on it. Starting twice is a no-op.
func (s *Synchronizer) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.closed {
		s.mu.Unlock()
		s.logger.Warn("synchronizer start ignored, already started or closed")
		return
	}
	s.started = true
	s.mu.Unlock()

	// Subscription first: an event that fires before the fetch resolves is
	// still applied, last write wins.
	s.sub = s.provider.OnSessionChange(s.handleChange)

	go s.initialize(ctx)
}

// Close releases the provider subscription exactly once and detaches all
// watchers. Events that fire after Close produce no state mutation.
func (s *Synchronizer) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.watchers = nil
		sub := s.sub
		s.sub = nil
		s.mu.Unlock()

		if sub != nil {
			sub.Cancel()
		}
	})
}

// State returns a snapshot of the synchronized state.
func (s *Synchronizer) State() AuthState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// WaitReady blocks until the initial session fetch has settled or the
// context is done.
func (s *Synchronizer) WaitReady(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Watch registers a callback invoked with a snapshot after every state
// transition. The current snapshot is delivered immediately so consumers
// do not need a separate initial read.
func (s *Synchronizer) Watch(fn func(AuthState)) Subscription {
	if fn == nil {
		return noopSubscription{}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return noopSubscription{}
	}
	id := s.nextWatcher
	s.nextWatcher++
	s.watchers[id] = fn
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	fn(snapshot)

	return &watcherSubscription{owner: s, id: id}
}

// Login delegates to the provider's credential flow. Email and password
// are assumed pre-validated by the caller. The session itself arrives via
// the change event, not from this call.
func (s *Synchronizer) Login(ctx context.Context, email, password string) *AuthError {
	return s.runAction("login", func() error {
		_, err := s.provider.SignIn(ctx, email, password)
		return err
	})
}

// Register forwards signup credentials plus optional profile fields to the
// provider. Contract is identical to Login.
func (s *Synchronizer) Register(ctx context.Context, email, password string, profile Profile) *AuthError {
	return s.runAction("register", func() error {
		_, err := s.provider.SignUp(ctx, email, password, profile)
		return err
	})
}

// Logout delegates to the provider's sign-out and relies on the
// subsequent change event to null out the mirrored session. Logging out
// while signed out succeeds.
func (s *Synchronizer) Logout(ctx context.Context) *AuthError {
	return s.runAction("logout", func() error {
		return s.provider.SignOut(ctx)
	})
}

// runAction wraps an imperative provider call in the Action-pending state
// and funnels every failure mode, provider-reported or panic, into the
// one AuthError shape.
func (s *Synchronizer) runAction(name string, fn func() error) (authErr *AuthError) {
	s.beginAction()
	defer s.endAction()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("synchronizer %s panic: %v", name, r)
			authErr = normalizePanic(r)
		}
	}()

	if err := fn(); err != nil {
		s.logger.Error("synchronizer %s failed: %v", name, err)
		return NormalizeError(err)
	}

	return nil
}

func (s *Synchronizer) initialize(ctx context.Context) {
	session, err := s.provider.CurrentSession(ctx)
	if err != nil {
		// Failure to resolve the initial session is treated as signed out.
		s.logger.Warn("initial session fetch failed, treating as signed out: %v", err)
		session = nil
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.session = session
	alreadyReady := s.initialized
	s.initialized = true
	snapshot, watchers := s.snapshotAndWatchersLocked()
	s.mu.Unlock()

	if !alreadyReady {
		close(s.ready)
	}

	notify(watchers, snapshot)
}

// handleChange applies a provider event as an atomic, already-settled
// transition. It never touches the loading flag.
func (s *Synchronizer) handleChange(event ChangeEvent, session *Session) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.session = session
	snapshot, watchers := s.snapshotAndWatchersLocked()
	s.mu.Unlock()

	s.logger.Debug("session change applied: %s", event)
	notify(watchers, snapshot)
}

func (s *Synchronizer) beginAction() {
	s.mu.Lock()
	s.pending++
	snapshot, watchers := s.snapshotAndWatchersLocked()
	s.mu.Unlock()

	notify(watchers, snapshot)
}

func (s *Synchronizer) endAction() {
	s.mu.Lock()
	if s.pending > 0 {
		s.pending--
	}
	snapshot, watchers := s.snapshotAndWatchersLocked()
	s.mu.Unlock()

	notify(watchers, snapshot)
}

func (s *Synchronizer) snapshotLocked() AuthState {
	var user *User
	if s.session != nil {
		user = s.session.User
	}

	return AuthState{
		User:            user,
		Session:         s.session.Clone(),
		IsAuthenticated: user != nil,
		IsLoading:       !s.initialized || s.pending > 0,
	}
}

func (s *Synchronizer) snapshotAndWatchersLocked() (AuthState, []func(AuthState)) {
	snapshot := s.snapshotLocked()
	if len(s.watchers) == 0 {
		return snapshot, nil
	}

	watchers := make([]func(AuthState), 0, len(s.watchers))
	for _, fn := range s.watchers {
		watchers = append(watchers, fn)
	}
	return snapshot, watchers
}

func (s *Synchronizer) removeWatcher(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watchers != nil {
		delete(s.watchers, id)
	}
}

func notify(watchers []func(AuthState), snapshot AuthState) {
	for _, fn := range watchers {
		fn(snapshot)
	}
}

type watcherSubscription struct {
	owner *Synchronizer
	id    uint64
	once  sync.Once
}

func (w *watcherSubscription) Cancel() {
	w.once.Do(func() {
		w.owner.removeWatcher(w.id)
	})
}

type noopSubscription struct{}

func (noopSubscription) Cancel() {}
