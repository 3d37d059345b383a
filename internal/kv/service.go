package kv

import "context"

// Service is an asynchronous request/response channel to a key-value store.
//
// Ready must be called before each Call. It reports whether the service can
// accept a request and may block to apply backpressure. Implementations are
// safe for concurrent use; sharing one value between callers shares the
// underlying connection.
type Service interface {
	Ready(ctx context.Context) error
	Call(ctx context.Context, req Request) (Response, error)
}

// Middleware wraps a Service with cross-cutting behaviour.
type Middleware func(next Service) Service

// Chain wraps svc with mws. The first middleware is the outermost.
func Chain(svc Service, mws ...Middleware) Service {
	for i := len(mws) - 1; i >= 0; i-- {
		svc = mws[i](svc)
	}

	return svc
}

// ServiceFunc adapts a function to a Service that is always ready.
type ServiceFunc func(ctx context.Context, req Request) (Response, error)

func (f ServiceFunc) Ready(ctx context.Context) error {
	return ctx.Err()
}

func (f ServiceFunc) Call(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// Oneshot waits for svc to be ready, sends req and returns the response
// variant req is answered with.
//
//	res, err := kv.Oneshot[*kv.GetResponse](ctx, svc, kv.NewGet("key"))
func Oneshot[R Response](ctx context.Context, svc Service, req Typed[R]) (R, error) {
	var zero R

	if err := svc.Ready(ctx); err != nil {
		return zero, err
	}

	res, err := svc.Call(ctx, req)
	if err != nil {
		return zero, err
	}

	typed, ok := req.answer(res)
	if !ok {
		return zero, &UnexpectedResponseError{Op: req.Op(), Response: res}
	}

	return typed, nil
}
