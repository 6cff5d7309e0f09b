package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/taskflow/taskflow-go/internal/middleware"
)

// RouterConfig carries everything the HTTP surface needs.
type RouterConfig struct {
	Auth   *AuthHandler
	Todos  *TodoHandler
	Tokens middleware.AccessVerifier
	Log    *zap.Logger
	// GlobalLimiter applies to every /api/v1 route, AuthLimiter additionally
	// to signup, login and the password reset flow.
	GlobalLimiter middleware.Limiter
	AuthLimiter   middleware.Limiter
	ClientURL     string
	TrustProxy    bool
	Development   bool
}

// NewRouter builds the chi router for the API.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if cfg.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.Logger(cfg.Log))
	r.Use(middleware.Recoverer(cfg.Log, cfg.Development))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(cfg.ClientURL))

	r.NotFound(notFound)
	r.MethodNotAllowed(notFound)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.GlobalLimiter, middleware.GlobalLimitMessage, cfg.Log))

		r.Route("/user", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimit(cfg.AuthLimiter, middleware.AuthLimitMessage, cfg.Log))
				r.Post("/signup", cfg.Auth.HandleSignup)
				r.Post("/login", cfg.Auth.HandleLogin)
				r.Post("/forgot-password", cfg.Auth.HandleForgotPassword)
				r.Post("/reset-password/{token}", cfg.Auth.HandleResetPassword)
			})

			r.Post("/refresh", cfg.Auth.HandleRefresh)

			r.Group(func(r chi.Router) {
				r.Use(middleware.CookieAuth(cfg.Tokens))
				r.Post("/logout", cfg.Auth.HandleLogout)
				r.Get("/profile", cfg.Auth.HandleProfile)
				r.Put("/profile", cfg.Auth.HandleUpdateProfile)
			})
		})

		r.Route("/todo", func(r chi.Router) {
			r.Use(middleware.CookieAuth(cfg.Tokens))
			r.Post("/create-todo", cfg.Todos.HandleCreate)
			r.Get("/all-todos", cfg.Todos.HandleList)
			r.Put("/update-todo/{id}", cfg.Todos.HandleUpdate)
			r.Delete("/delete-todo/{id}", cfg.Todos.HandleDelete)
		})
	})

	return r
}
