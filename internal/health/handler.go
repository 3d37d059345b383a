// Package health reports the readiness of the service dependencies.
package health

import (
	"context"
	"slices"
	"time"

	"github.com/conblem/acmon/internal/kv"
	"github.com/danielgtaylor/huma/v2"
	"github.com/redis/go-redis/v9"
)

// DefaultTimeout bounds each dependency check.
const DefaultTimeout = 2 * time.Second

// Checker defines the interface for checking service health.
type Checker interface {
	Ping(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context) error

func (f CheckerFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

// RedisChecker adapts a redis client to Checker.
type RedisChecker struct {
	client redis.UniversalClient
}

// NewRedisChecker creates a new Redis health checker.
func NewRedisChecker(client redis.UniversalClient) *RedisChecker {
	return &RedisChecker{client: client}
}

// Ping checks Redis connectivity.
func (r *RedisChecker) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// StoreChecker reports whether a key-value transport is ready to accept requests.
type StoreChecker struct {
	service kv.Service
}

// NewStoreChecker creates a checker for service.
func NewStoreChecker(service kv.Service) *StoreChecker {
	return &StoreChecker{service: service}
}

// Ping waits for the transport to become ready.
func (s *StoreChecker) Ping(ctx context.Context) error {
	return s.service.Ready(ctx)
}

// Handler handles health check operations.
type Handler struct {
	checkers map[string]Checker
	timeout  time.Duration
}

// NewHandler creates a new health handler reporting on each named checker.
func NewHandler(checkers map[string]Checker) *Handler {
	return &Handler{checkers: checkers, timeout: DefaultTimeout}
}

// WithTimeout sets the deadline applied to each check.
func (h *Handler) WithTimeout(d time.Duration) *Handler {
	h.timeout = d

	return h
}

// Response is the response for health check endpoint.
type Response struct {
	Body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
}

// Check performs a health check of the application and its dependencies.
func (h *Handler) Check(ctx context.Context, _ *struct{}) (*Response, error) {
	resp := &Response{}
	resp.Body.Status = "ok"
	resp.Body.Checks = make(map[string]string, len(h.checkers))

	names := make([]string, 0, len(h.checkers))
	for name := range h.checkers {
		names = append(names, name)
	}

	slices.Sort(names)

	for _, name := range names {
		checkCtx, cancel := context.WithTimeout(ctx, h.timeout)
		err := h.checkers[name].Ping(checkCtx)

		cancel()

		if err != nil {
			resp.Body.Checks[name] = "unhealthy"
			resp.Body.Status = "degraded"
		} else {
			resp.Body.Checks[name] = "healthy"
		}
	}

	return resp, nil
}

// RegisterRoutes registers health check routes, applying options to each operation.
func RegisterRoutes(api huma.API, h *Handler, options ...func(o *huma.Operation)) {
	huma.Get(api, "/health", h.Check, options...)
}
