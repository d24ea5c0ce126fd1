// Package webscope opens one injector scope per HTTP request.
package webscope

import (
	"net/http"

	"github.com/dozm/injector"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type options struct {
	logger *zap.Logger
}

type Option func(*options)

// WithLogger sets the logger that receives the errors of closing request scopes.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func newOptions(opts []Option) *options {
	o := &options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Middleware opens a scope of sf for every request and attaches it to the request
// context, so scoped services resolved with the request context share one instance
// per request. The scope is closed when the next handler returns.
func Middleware(sf injector.ScopeFactory, opts ...Option) func(http.Handler) http.Handler {
	o := newOptions(opts)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scope := sf.CreateScope()
			defer func() {
				if err := scope.Close(); err != nil {
					o.logger.Warn("closing request scope",
						zap.String("requestID", middleware.GetReqID(r.Context())),
						zap.Error(err))
				}
			}()

			next.ServeHTTP(w, r.WithContext(injector.WithScope(r.Context(), scope)))
		})
	}
}

// NewRouter creates a chi router with request ids, panic recovery and the scope
// middleware of c installed.
func NewRouter(c injector.RootContainer, opts ...Option) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(Middleware(c, opts...))
	return r
}

// Scope returns the scope of the request, or nil outside of Middleware.
func Scope(r *http.Request) *injector.Scope {
	return injector.ScopeFrom(r.Context())
}

// Resolve resolves T from c in the scope of the request.
func Resolve[T any](r *http.Request, c injector.Container) (T, error) {
	return injector.TryGetWithContext[T](r.Context(), c)
}
