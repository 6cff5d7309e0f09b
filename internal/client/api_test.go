package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/taskflow/taskflow-go/internal/client/board"
	"github.com/taskflow/taskflow-go/internal/client/session"
	"github.com/taskflow/taskflow-go/internal/client/transport"
	"github.com/taskflow/taskflow-go/internal/crypto"
	"github.com/taskflow/taskflow-go/internal/handler"
	"github.com/taskflow/taskflow-go/internal/middleware"
	"github.com/taskflow/taskflow-go/internal/model"
	"github.com/taskflow/taskflow-go/internal/repository"
	"github.com/taskflow/taskflow-go/internal/service"
)

type noopMailer struct{}

func (noopMailer) SendPasswordReset(context.Context, string, string) error { return nil }

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newServer(t *testing.T) (*httptest.Server, *clock) {
	t.Helper()
	clk := &clock{t: time.Now()}
	ids, err := repository.NewIDGenerator(1)
	require.NoError(t, err)
	tokens, err := crypto.NewTokenIssuer("access-secret", "refresh-secret", crypto.WithClock(clk.now))
	require.NoError(t, err)
	log := zap.NewNop()

	h := handler.NewRouter(handler.RouterConfig{
		Auth:          handler.NewAuthHandler(service.NewAuthService(repository.NewMemoryUserRepository(ids), tokens, noopMailer{}, "http://localhost:5173", log), handler.NewCookieManager(false), log, true),
		Todos:         handler.NewTodoHandler(service.NewTodoService(repository.NewMemoryTodoRepository(ids)), log, true),
		Tokens:        tokens,
		Log:           log,
		GlobalLimiter: middleware.NewMemoryLimiter(1000, time.Minute),
		AuthLimiter:   middleware.NewMemoryLimiter(1000, time.Minute),
		ClientURL:     "http://localhost:5173",
		Development:   true,
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv, clk
}

type tab struct {
	api       *API
	store     *session.Store
	redirects []string
}

func openTab(t *testing.T, baseURL string) *tab {
	t.Helper()
	tb := &tab{store: session.New(session.NewMemoryStorage(), nil)}
	tc, err := transport.New(transport.Config{
		BaseURL:    baseURL,
		Jar:        transport.NewJar(),
		Hooks:      tb.store,
		OnRedirect: func(reason string) { tb.redirects = append(tb.redirects, reason) },
	})
	require.NoError(t, err)
	tb.api = NewAPI(tc)
	return tb
}

func (tb *tab) login(t *testing.T) {
	t.Helper()
	user, err := tb.api.Login(context.Background(), model.LoginRequest{Email: "alice@example.com", Password: "wonderland"})
	require.NoError(t, err)
	tb.store.SetAuth(user)
}

var signup = model.SignupRequest{FirstName: "Alice", LastName: "Liddell", Email: "alice@example.com", Password: "wonderland", Username: "alice"}

func TestBootSignedOut(t *testing.T) {
	srv, _ := newServer(t)
	tb := openTab(t, srv.URL)

	err := session.Boot(context.Background(), tb.store, tb.api)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, transport.StatusCode(err))
	assert.Equal(t, session.PhaseChecked, tb.store.Phase())
	assert.False(t, tb.store.IsAuthenticated())
	assert.Empty(t, tb.redirects, "anonymous users are not redirected")
}

func TestSilentRefresh(t *testing.T) {
	srv, clk := newServer(t)
	tb := openTab(t, srv.URL)
	ctx := context.Background()

	msg, err := tb.api.Signup(ctx, signup)
	require.NoError(t, err)
	assert.Equal(t, "User created successfully", msg)
	tb.login(t)

	require.NoError(t, session.Boot(ctx, tb.store, tb.api))
	assert.True(t, tb.store.IsAuthenticated())

	_, err = tb.api.CreateTodo(ctx, model.CreateTodoRequest{Title: "Write report", Description: "Quarterly numbers"})
	require.NoError(t, err)

	clk.advance(20 * time.Minute)

	todos, err := tb.api.ListTodos(ctx)
	require.NoError(t, err, "expired access token is renewed transparently")
	assert.Len(t, todos, 1)
	assert.True(t, tb.store.IsAuthenticated())
}

func TestSupersededSessionLogsOut(t *testing.T) {
	srv, clk := newServer(t)
	ctx := context.Background()

	first := openTab(t, srv.URL)
	_, err := first.api.Signup(ctx, signup)
	require.NoError(t, err)
	first.login(t)

	second := openTab(t, srv.URL)
	second.login(t)

	clk.advance(20 * time.Minute)

	_, err = first.api.ListTodos(ctx)
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, transport.StatusCode(err))
	assert.False(t, first.store.IsAuthenticated())
	assert.Equal(t, []string{transport.ReasonSessionExpired}, first.redirects)

	_, err = second.api.ListTodos(ctx)
	assert.NoError(t, err)
}

func TestBoardAgainstServer(t *testing.T) {
	srv, _ := newServer(t)
	tb := openTab(t, srv.URL)
	ctx := context.Background()

	_, err := tb.api.Signup(ctx, signup)
	require.NoError(t, err)
	tb.login(t)

	b := board.New(tb.api, nil)
	created, err := b.Create(ctx, model.CreateTodoRequest{Title: "Ship it", Description: "Release"})
	require.NoError(t, err)
	b.Wait()

	require.NoError(t, b.MoveTask(ctx, created.ID, model.StatusDone))
	b.Wait()
	tasks := b.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, model.StatusDone, tasks[0].Status)
	assert.NotNil(t, tasks[0].CompletedAt)

	require.NoError(t, b.MoveTask(ctx, created.ID, model.StatusTodo))
	b.Wait()
	assert.Nil(t, b.Tasks()[0].CompletedAt)

	err = b.MoveTask(ctx, created.ID+1, model.StatusDone)
	assert.Equal(t, http.StatusNotFound, transport.StatusCode(err))
	b.Wait()
	assert.Equal(t, model.StatusTodo, b.Tasks()[0].Status)

	require.NoError(t, b.Delete(ctx, created.ID))
	b.Wait()
	assert.Empty(t, b.Tasks())
}

func TestLogoutClearsServerSession(t *testing.T) {
	srv, _ := newServer(t)
	tb := openTab(t, srv.URL)
	ctx := context.Background()

	_, err := tb.api.Signup(ctx, signup)
	require.NoError(t, err)
	tb.login(t)

	require.NoError(t, tb.api.Logout(ctx))
	tb.store.Logout()

	_, err = tb.api.Profile(ctx)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, transport.StatusCode(err))
	assert.Empty(t, tb.redirects)
}
