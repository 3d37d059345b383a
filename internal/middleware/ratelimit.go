// Package middleware holds the huma middlewares of the HTTP front end.
package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/conblem/acmon/internal/acme"
	"github.com/conblem/acmon/internal/events"
	"github.com/conblem/acmon/internal/messaging"
	"github.com/conblem/acmon/internal/ratelimit"
	"github.com/danielgtaylor/huma/v2"
	"go.uber.org/zap"
)

// MetadataSkip marks operations the rate limiter lets through unchecked.
const MetadataSkip = "ratelimit.skip"

// SkipRateLimit is an operation option excluding the operation from rate limiting.
func SkipRateLimit(op *huma.Operation) {
	if op.Metadata == nil {
		op.Metadata = make(map[string]any)
	}

	op.Metadata[MetadataSkip] = true
}

// RateLimiter returns a Huma middleware that admits a request only if limiter
// allows its client key. Rejections answer 429 and are published as events;
// limiter failures answer 500. Requests without a key from ClientKey are keyed here.
func RateLimiter(
	api huma.API,
	limiter ratelimit.Limiter,
	publish messaging.Publish[events.Rejected],
	logger *zap.Logger,
) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if op := ctx.Operation(); op != nil && op.Metadata[MetadataSkip] == true {
			next(ctx)

			return
		}

		key := acme.ClientFromContext(ctx.Context())
		if key == "" {
			key = clientKey(ctx)
			ctx = huma.WithContext(ctx, acme.WithClient(ctx.Context(), key))
		}

		path := operationPath(ctx)

		decision, err := limiter.Allow(ctx.Context(), key)
		if err != nil {
			logger.Error("rate limit check failed", zap.String("path", path), zap.Error(err))
			_ = huma.WriteErr(api, ctx, http.StatusInternalServerError, "internal server error")

			return
		}

		if !decision.Allowed {
			rejected(api, ctx, decision, key, path, publish, logger)

			return
		}

		next(ctx)
	}
}

func rejected(
	api huma.API,
	ctx huma.Context,
	decision ratelimit.Decision,
	key, path string,
	publish messaging.Publish[events.Rejected],
	logger *zap.Logger,
) {
	logger.Warn("rate limit exceeded",
		zap.String("path", path),
		zap.String("method", ctx.Method()),
		zap.String("scope", string(decision.Scope)),
		zap.Uint32("count", decision.Count),
		zap.Uint32("max", decision.Max),
		zap.Duration("window", decision.Window),
		zap.String("client_ip", clientIP(ctx)),
	)

	event := events.NewRejected(key, path, decision, time.Now())
	if err := publish(ctx.Context(), event); err != nil {
		logger.Error("failed to publish rejection", zap.String("id", event.ID), zap.Error(err))
	}

	ctx.SetHeader("Retry-After", strconv.FormatInt(decision.RetryAfter(), 10))

	msg := fmt.Sprintf("rate limit exceeded: %s scope, %d/%d requests in %s",
		decision.Scope, decision.Count, decision.Max, decision.Window)
	_ = huma.WriteErr(api, ctx, http.StatusTooManyRequests, msg)
}

// operationPath extracts the path from the operation, if available.
func operationPath(ctx huma.Context) string {
	if op := ctx.Operation(); op != nil {
		return op.Path
	}

	return ""
}
