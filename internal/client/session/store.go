// Package session holds the client's authentication state. The state is
// persisted between runs and gated by a three-step boot so nothing renders
// as signed in until the server has confirmed the session.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/taskflow/taskflow-go/internal/model"
)

// Phase tracks how far the store has booted.
type Phase int

const (
	PhasePending Phase = iota
	PhaseHydrated
	PhaseChecked
)

func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "pending"
	case PhaseHydrated:
		return "hydrated"
	case PhaseChecked:
		return "checked"
	default:
		return "unknown"
	}
}

// State is a snapshot of the session.
type State struct {
	User            *model.UserResponse
	IsAuthenticated bool
	IsChecking      bool
}

// ProfileFetcher asks the server who the current cookies belong to.
type ProfileFetcher interface {
	Profile(ctx context.Context) (model.UserResponse, error)
}

// UserPatch holds the profile fields to merge into the stored user. Nil
// fields are left alone.
type UserPatch struct {
	FirstName *string
	LastName  *string
	Username  *string
	Email     *string
}

type persisted struct {
	User            *model.UserResponse `json:"user"`
	IsAuthenticated bool                `json:"isAuthenticated"`
}

// Store is the single session container of a running client.
type Store struct {
	storage Storage
	log     *zap.Logger

	mu      sync.Mutex
	state   State
	phase   Phase
	subs    map[int]func(State)
	nextSub int

	ready     chan struct{}
	readyOnce sync.Once
	bootOnce  sync.Once
	bootErr   error
}

// New creates a Store in PhasePending with IsChecking set.
func New(storage Storage, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		storage: storage,
		log:     log,
		state:   State{IsChecking: true},
		subs:    map[int]func(State){},
		ready:   make(chan struct{}),
	}
}

// Hydrate restores the persisted session. It only has an effect while the
// store is pending. A corrupt record is discarded.
func (s *Store) Hydrate() error {
	s.mu.Lock()
	if s.phase != PhasePending {
		s.mu.Unlock()
		return nil
	}

	var err error
	data, loadErr := s.storage.Load(Namespace)
	switch {
	case errors.Is(loadErr, ErrNotFound):
	case loadErr != nil:
		err = loadErr
	default:
		var p persisted
		if jerr := json.Unmarshal(data, &p); jerr != nil {
			s.log.Warn("discarding unreadable session", zap.Error(jerr))
			if rerr := s.storage.Remove(Namespace); rerr != nil {
				s.log.Warn("failed to wipe persisted session", zap.Error(rerr))
			}
		} else {
			s.state.User = p.User
			s.state.IsAuthenticated = p.IsAuthenticated && p.User != nil
		}
	}
	s.phase = PhaseHydrated
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return err
}

// CheckAuth confirms the session with the server. Success stores the
// returned user; any failure clears the session.
func (s *Store) CheckAuth(ctx context.Context, fetcher ProfileFetcher) error {
	s.mu.Lock()
	s.state.IsChecking = true
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)

	user, err := fetcher.Profile(ctx)

	s.mu.Lock()
	if err != nil {
		s.log.Info("auth check failed", zap.Error(err))
		s.state = State{}
	} else {
		s.state = State{User: &user, IsAuthenticated: true}
	}
	s.persistLocked()
	s.phase = PhaseChecked
	snap = s.snapshotLocked()
	s.mu.Unlock()

	s.readyOnce.Do(func() { close(s.ready) })
	s.notify(snap)
	return err
}

// SetAuth records a freshly signed-in user.
func (s *Store) SetAuth(user model.UserResponse) {
	s.mu.Lock()
	s.state = State{User: &user, IsAuthenticated: true}
	s.persistLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
}

// Logout clears the session and wipes the persisted record before it
// returns, so nothing observing the store afterwards sees the old user.
func (s *Store) Logout() {
	s.mu.Lock()
	s.state = State{IsChecking: s.state.IsChecking}
	if err := s.storage.Remove(Namespace); err != nil {
		s.log.Warn("failed to wipe persisted session", zap.Error(err))
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
}

// UpdateUser merges patch into the current user. It is a no-op when signed out.
func (s *Store) UpdateUser(patch UserPatch) {
	s.mu.Lock()
	if s.state.User == nil {
		s.mu.Unlock()
		return
	}
	u := *s.state.User
	if patch.FirstName != nil {
		u.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		u.LastName = *patch.LastName
	}
	if patch.Username != nil {
		u.Username = *patch.Username
	}
	if patch.Email != nil {
		u.Email = *patch.Email
	}
	s.state.User = &u
	s.persistLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
}

// State returns a copy of the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// IsAuthenticated reports whether a user is signed in.
func (s *Store) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.IsAuthenticated
}

func (s *Store) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Subscribe registers fn to run after every change. The returned func
// removes it.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Ready is closed once the store reaches PhaseChecked.
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

// Wait blocks until the store is checked or ctx is done.
func (s *Store) Wait(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) snapshotLocked() State {
	st := s.state
	if st.User != nil {
		u := *st.User
		st.User = &u
	}
	return st
}

func (s *Store) persistLocked() {
	if !s.state.IsAuthenticated {
		if err := s.storage.Remove(Namespace); err != nil {
			s.log.Warn("failed to wipe persisted session", zap.Error(err))
		}
		return
	}
	data, err := json.Marshal(persisted{User: s.state.User, IsAuthenticated: true})
	if err != nil {
		s.log.Warn("failed to encode session", zap.Error(err))
		return
	}
	if err := s.storage.Save(Namespace, data); err != nil {
		s.log.Warn("failed to persist session", zap.Error(err))
	}
}

func (s *Store) notify(st State) {
	s.mu.Lock()
	fns := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
}
