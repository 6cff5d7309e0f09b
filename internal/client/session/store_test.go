package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/taskflow/taskflow-go/internal/model"
)

type fakeFetcher struct {
	calls atomic.Int32
	user  model.UserResponse
	err   error
}

func (f *fakeFetcher) Profile(context.Context) (model.UserResponse, error) {
	f.calls.Add(1)
	return f.user, f.err
}

var alice = model.UserResponse{ID: 42, FirstName: "Alice", LastName: "Liddell", Username: "alice", Email: "alice@example.com"}

func seeded(t *testing.T, user model.UserResponse) *MemoryStorage {
	t.Helper()
	storage := NewMemoryStorage()
	data, err := json.Marshal(persisted{User: &user, IsAuthenticated: true})
	require.NoError(t, err)
	require.NoError(t, storage.Save(Namespace, data))
	return storage
}

func TestPhaseTransitions(t *testing.T) {
	s := New(seeded(t, alice), nil)
	assert.Equal(t, PhasePending, s.Phase())
	assert.True(t, s.State().IsChecking)

	require.NoError(t, s.Hydrate())
	assert.Equal(t, PhaseHydrated, s.Phase())
	st := s.State()
	require.NotNil(t, st.User)
	assert.Equal(t, "alice", st.User.Username)
	assert.True(t, st.IsChecking, "still gated until the server confirms")

	select {
	case <-s.Ready():
		t.Fatal("ready before check")
	default:
	}

	require.NoError(t, s.CheckAuth(context.Background(), &fakeFetcher{user: alice}))
	assert.Equal(t, PhaseChecked, s.Phase())
	assert.False(t, s.State().IsChecking)
	assert.True(t, s.IsAuthenticated())

	select {
	case <-s.Ready():
	default:
		t.Fatal("ready not closed after check")
	}
}

func TestBootWithExpiredServerSession(t *testing.T) {
	storage := seeded(t, alice)
	s := New(storage, nil)

	var mu sync.Mutex
	var seen []State
	s.Subscribe(func(st State) {
		mu.Lock()
		seen = append(seen, st)
		mu.Unlock()
	})

	err := Boot(context.Background(), s, &fakeFetcher{err: errors.New("session expired")})
	require.Error(t, err)

	st := s.State()
	assert.Nil(t, st.User)
	assert.False(t, st.IsAuthenticated)
	assert.False(t, st.IsChecking)
	assert.Equal(t, PhaseChecked, s.Phase())

	_, err = storage.Load(Namespace)
	assert.ErrorIs(t, err, ErrNotFound)

	// Every state published before the check finished is still gated.
	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, seen)
	for _, st := range seen[:len(seen)-1] {
		assert.True(t, st.IsChecking)
	}
	assert.False(t, seen[len(seen)-1].IsAuthenticated)
}

func TestBootRunsOnce(t *testing.T) {
	s := New(NewMemoryStorage(), nil)
	f := &fakeFetcher{user: alice}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, Boot(context.Background(), s, f))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), f.calls.Load())
	assert.True(t, s.IsAuthenticated())
}

func TestLogoutWipesStorageBeforeReturning(t *testing.T) {
	storage := NewMemoryStorage()
	s := New(storage, nil)
	require.NoError(t, Boot(context.Background(), s, &fakeFetcher{user: alice}))

	_, err := storage.Load(Namespace)
	require.NoError(t, err, "signed-in session is persisted")

	s.Logout()

	_, err = storage.Load(Namespace)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, s.IsAuthenticated())
	assert.Nil(t, s.State().User)

	// A fresh store started from the same storage comes up signed out.
	next := New(storage, nil)
	require.NoError(t, next.Hydrate())
	assert.False(t, next.IsAuthenticated())
}

func TestSetAuthAndUpdateUser(t *testing.T) {
	storage := NewMemoryStorage()
	s := New(storage, nil)

	s.UpdateUser(UserPatch{FirstName: strPtr("Nobody")})
	assert.Nil(t, s.State().User, "no user to patch")

	s.SetAuth(alice)
	s.UpdateUser(UserPatch{FirstName: strPtr("Alicia")})

	st := s.State()
	require.NotNil(t, st.User)
	assert.Equal(t, "Alicia", st.User.FirstName)
	assert.Equal(t, "Liddell", st.User.LastName)

	data, err := storage.Load(Namespace)
	require.NoError(t, err)
	var p persisted
	require.NoError(t, json.Unmarshal(data, &p))
	assert.Equal(t, "Alicia", p.User.FirstName)
	assert.True(t, p.IsAuthenticated)
}

func TestStateIsACopy(t *testing.T) {
	s := New(NewMemoryStorage(), nil)
	s.SetAuth(alice)

	st := s.State()
	st.User.FirstName = "Mallory"
	assert.Equal(t, "Alice", s.State().User.FirstName)
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	s := New(NewMemoryStorage(), nil)
	var calls int
	unsubscribe := s.Subscribe(func(State) { calls++ })

	s.SetAuth(alice)
	assert.Equal(t, 1, calls)

	unsubscribe()
	s.Logout()
	assert.Equal(t, 1, calls)
}

func TestWaitHonoursContext(t *testing.T) {
	s := New(NewMemoryStorage(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Wait(ctx), context.DeadlineExceeded)

	go Boot(context.Background(), s, &fakeFetcher{user: alice})
	require.NoError(t, s.Wait(context.Background()))
	assert.Equal(t, PhaseChecked, s.Phase())
}

func TestHydrateDiscardsCorruptRecord(t *testing.T) {
	storage := NewMemoryStorage()
	require.NoError(t, storage.Save(Namespace, []byte("{not json")))

	s := New(storage, nil)
	require.NoError(t, s.Hydrate())
	assert.False(t, s.IsAuthenticated())

	_, err := storage.Load(Namespace)
	assert.ErrorIs(t, err, ErrNotFound)
}

// stuckStorage returns a corrupt record and cannot delete it.
type stuckStorage struct{ *MemoryStorage }

func (stuckStorage) Remove(string) error { return errors.New("read-only volume") }

func TestHydrateLogsFailedWipe(t *testing.T) {
	storage := stuckStorage{NewMemoryStorage()}
	require.NoError(t, storage.Save(Namespace, []byte("{not json")))

	core, logs := observer.New(zap.WarnLevel)
	s := New(storage, zap.New(core))
	require.NoError(t, s.Hydrate())
	assert.False(t, s.IsAuthenticated())

	entries := logs.FilterMessage("failed to wipe persisted session").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "read-only volume", entries[0].ContextMap()["error"])
}

func TestFileStorage(t *testing.T) {
	fs := NewFileStorage(t.TempDir())

	_, err := fs.Load(Namespace)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, fs.Save(Namespace, []byte(`{"isAuthenticated":true}`)))
	data, err := fs.Load(Namespace)
	require.NoError(t, err)
	assert.JSONEq(t, `{"isAuthenticated":true}`, string(data))

	require.NoError(t, fs.Remove(Namespace))
	require.NoError(t, fs.Remove(Namespace), "removing twice is fine")
	_, err = fs.Load(Namespace)
	assert.ErrorIs(t, err, ErrNotFound)
}

func strPtr(s string) *string { return &s }
