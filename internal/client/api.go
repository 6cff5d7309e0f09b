// Package client is the typed TaskFlow API used by the terminal client.
package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/taskflow/taskflow-go/internal/client/transport"
	"github.com/taskflow/taskflow-go/internal/model"
)

// Doer sends buffered requests. *transport.Client implements it.
type Doer interface {
	Do(ctx context.Context, req *transport.Request) (*transport.Response, error)
}

// API wraps the REST surface under /api/v1.
type API struct {
	doer Doer
}

func NewAPI(doer Doer) *API {
	return &API{doer: doer}
}

func (a *API) call(ctx context.Context, method, path string, body, out interface{}) error {
	req, err := transport.NewJSONRequest(method, path, body)
	if err != nil {
		return err
	}
	resp, err := a.doer.Do(ctx, req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return resp.Decode(out)
}

// Signup creates an account. It does not sign in.
func (a *API) Signup(ctx context.Context, req model.SignupRequest) (string, error) {
	var resp model.MessageResponse
	if err := a.call(ctx, http.MethodPost, "/api/v1/user/signup", req, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// Login signs in; the session cookies land in the transport's jar.
func (a *API) Login(ctx context.Context, req model.LoginRequest) (model.UserResponse, error) {
	var resp model.AuthResponse
	if err := a.call(ctx, http.MethodPost, transport.LoginPath, req, &resp); err != nil {
		return model.UserResponse{}, err
	}
	return resp.User, nil
}

func (a *API) Logout(ctx context.Context) error {
	return a.call(ctx, http.MethodPost, "/api/v1/user/logout", nil, nil)
}

// Profile returns the signed-in user.
func (a *API) Profile(ctx context.Context) (model.UserResponse, error) {
	var user model.UserResponse
	err := a.call(ctx, http.MethodGet, "/api/v1/user/profile", nil, &user)
	return user, err
}

func (a *API) UpdateProfile(ctx context.Context, req model.UpdateProfileRequest) (model.UserResponse, error) {
	var resp model.AuthResponse
	if err := a.call(ctx, http.MethodPut, "/api/v1/user/profile", req, &resp); err != nil {
		return model.UserResponse{}, err
	}
	return resp.User, nil
}

func (a *API) ForgotPassword(ctx context.Context, email string) (string, error) {
	var resp model.MessageResponse
	err := a.call(ctx, http.MethodPost, "/api/v1/user/forgot-password", model.ForgotPasswordRequest{Email: email}, &resp)
	return resp.Message, err
}

func (a *API) ResetPassword(ctx context.Context, token string, req model.ResetPasswordRequest) (string, error) {
	var resp model.MessageResponse
	err := a.call(ctx, http.MethodPost, "/api/v1/user/reset-password/"+url.PathEscape(token), req, &resp)
	return resp.Message, err
}

func (a *API) ListTodos(ctx context.Context) ([]model.Todo, error) {
	var resp model.TodoListResponse
	if err := a.call(ctx, http.MethodGet, "/api/v1/todo/all-todos", nil, &resp); err != nil {
		return nil, err
	}
	if resp.Todos == nil {
		resp.Todos = []model.Todo{}
	}
	return resp.Todos, nil
}

func (a *API) CreateTodo(ctx context.Context, req model.CreateTodoRequest) (model.Todo, error) {
	var resp model.TodoResponse
	err := a.call(ctx, http.MethodPost, "/api/v1/todo/create-todo", req, &resp)
	return resp.Todo, err
}

func (a *API) UpdateTodo(ctx context.Context, id int64, req model.UpdateTodoRequest) (model.Todo, error) {
	var resp model.TodoResponse
	err := a.call(ctx, http.MethodPut, "/api/v1/todo/update-todo/"+strconv.FormatInt(id, 10), req, &resp)
	return resp.Todo, err
}

func (a *API) DeleteTodo(ctx context.Context, id int64) error {
	return a.call(ctx, http.MethodDelete, "/api/v1/todo/delete-todo/"+strconv.FormatInt(id, 10), nil, nil)
}
