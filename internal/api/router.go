package api

import (
	"net/http"

	"github.com/Ycseeasy/explore-with-me/internal/api/handlers"
	"github.com/Ycseeasy/explore-with-me/internal/api/middleware"
	"github.com/Ycseeasy/explore-with-me/internal/audit"
	"github.com/Ycseeasy/explore-with-me/internal/auth"
	"github.com/Ycseeasy/explore-with-me/internal/config"
	"github.com/Ycseeasy/explore-with-me/internal/domain/categories"
	"github.com/Ycseeasy/explore-with-me/internal/domain/events"
	"github.com/Ycseeasy/explore-with-me/internal/domain/participation"
	"github.com/Ycseeasy/explore-with-me/internal/domain/users"
	"github.com/Ycseeasy/explore-with-me/internal/metrics"
	"github.com/rs/zerolog"
)

// Dependencies are the services the HTTP surface is built on.
type Dependencies struct {
	Config config.Config
	Logger zerolog.Logger

	Events     *events.Service
	Submission *participation.SubmissionService
	Admission  *participation.AdmissionEngine
	Users      *users.Service
	Categories *categories.Service

	JWT *auth.JWTManager
	// Idempotency is optional; without it Idempotency-Key headers are
	// validated but not replayed.
	Idempotency handlers.IdempotencyStore
	Audit       *audit.Logger
	Health      *handlers.HealthChecker

	Version   string
	GitCommit string
	BuildDate string
}

// Router is the root handler. Close releases the rate limiter.
type Router struct {
	handler http.Handler
	limiter *middleware.RateLimiter
}

func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt.handler.ServeHTTP(w, r)
}

func (rt *Router) Close() {
	rt.limiter.Stop()
}

func NewRouter(deps Dependencies) *Router {
	env := deps.Config.Environment
	limiter := middleware.NewRateLimiter(deps.Config.RateLimit, env)

	eventsHandler := handlers.NewEventsHandler(deps.Events, deps.Submission, deps.Admission, deps.Categories, deps.Users, deps.Audit, env)
	requestsHandler := handlers.NewRequestsHandler(deps.Submission, deps.Idempotency, env)
	usersHandler := handlers.NewAdminUsersHandler(deps.Users, deps.Audit, env)
	categoriesHandler := handlers.NewCategoriesHandler(deps.Categories, deps.Audit, env)

	authenticate := middleware.Authenticate(deps.JWT, env)
	requireSelf := middleware.RequireSelf("userId", env)
	requireAdmin := middleware.RequireAdmin(env)
	idempotent := middleware.Idempotency(env)

	public := func(h http.HandlerFunc) http.Handler {
		return limiter.Middleware(h)
	}
	private := func(h http.HandlerFunc) http.Handler {
		return authenticate(limiter.Middleware(requireSelf(h)))
	}
	admin := func(h http.HandlerFunc) http.Handler {
		return authenticate(limiter.Middleware(requireAdmin(h)))
	}

	mux := http.NewServeMux()

	health := deps.Health
	if health == nil {
		health = handlers.NewHealthChecker(deps.Version, deps.GitCommit)
	}
	mux.Handle("GET /healthz", handlers.Healthz())
	mux.Handle("GET /readyz", health.Readyz())
	mux.Handle("GET /health", health.Health())
	mux.Handle("GET /version", VersionHandler(deps.Version, deps.GitCommit, deps.BuildDate))
	mux.Handle("GET /metrics", metrics.Handler())

	mux.Handle("POST /users/{userId}/events", private(eventsHandler.Create))
	mux.Handle("GET /users/{userId}/events", private(eventsHandler.ListOwned))
	mux.Handle("GET /users/{userId}/events/{eventId}", private(eventsHandler.GetOwned))
	mux.Handle("PATCH /users/{userId}/events/{eventId}", private(eventsHandler.UpdateOwned))
	mux.Handle("GET /users/{userId}/events/{eventId}/requests", private(eventsHandler.ListEventRequests))
	mux.Handle("PATCH /users/{userId}/events/{eventId}/requests", private(eventsHandler.DecideRequests))

	mux.Handle("GET /users/{userId}/requests", private(requestsHandler.List))
	mux.Handle("POST /users/{userId}/requests", authenticate(limiter.Middleware(requireSelf(idempotent(http.HandlerFunc(requestsHandler.Submit))))))
	mux.Handle("PATCH /users/{userId}/requests/{requestId}/cancel", private(requestsHandler.Cancel))

	mux.Handle("PATCH /admin/events/{eventId}", admin(eventsHandler.AdminUpdate))
	mux.Handle("PATCH /admin/events/{eventId}/requests", admin(eventsHandler.AdminDecideRequests))
	mux.Handle("POST /admin/users", admin(usersHandler.Create))
	mux.Handle("GET /admin/users", admin(usersHandler.List))
	mux.Handle("DELETE /admin/users/{userId}", admin(usersHandler.Delete))
	mux.Handle("POST /admin/categories", admin(categoriesHandler.Create))
	mux.Handle("PATCH /admin/categories/{catId}", admin(categoriesHandler.Rename))
	mux.Handle("DELETE /admin/categories/{catId}", admin(categoriesHandler.Delete))

	mux.Handle("GET /events/{eventId}", public(eventsHandler.GetPublished))
	mux.Handle("GET /categories", public(categoriesHandler.List))
	mux.Handle("GET /categories/{catId}", public(categoriesHandler.Get))

	// The chain below passes one *http.Request through to the mux, so the
	// pattern it records is visible to tracing, logging and metrics.
	var handler http.Handler = metrics.HTTPMiddleware(mux)
	handler = middleware.RequestSize(middleware.DefaultMaxBodySize)(handler)
	handler = middleware.RequestLogging(deps.Logger)(handler)
	handler = middleware.Tracing(handler)
	handler = middleware.SecurityHeaders(deps.Config.IsProduction())(handler)
	handler = middleware.CorrelationID(deps.Logger)(handler)

	return &Router{handler: handler, limiter: limiter}
}
