// Package container wires the service components into a samber/do injector.
package container

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/conblem/acmon/internal/account"
	"github.com/conblem/acmon/internal/acme"
	"github.com/conblem/acmon/internal/clock"
	"github.com/conblem/acmon/internal/events"
	"github.com/conblem/acmon/internal/handlers"
	"github.com/conblem/acmon/internal/health"
	"github.com/conblem/acmon/internal/messaging"
	"github.com/conblem/acmon/internal/middleware"
	"github.com/conblem/acmon/internal/ratelimit"
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor" // CBOR format support for huma
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"go.uber.org/zap"
)

// RedisClient owns the redis connection shared by the store and the event streams.
type RedisClient struct {
	*redis.Client
}

// Shutdown closes the connection.
func (c *RedisClient) Shutdown() error {
	return c.Close()
}

// Postgres owns the account database pool.
type Postgres struct {
	*pgxpool.Pool
}

// Shutdown closes the pool.
func (p *Postgres) Shutdown() error {
	p.Close()

	return nil
}

// LoggerPackage provides the *zap.Logger.
func LoggerPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*zap.Logger, error) {
		opts := do.MustInvoke[*Options](i)

		return NewLogger(opts.LogFormat, opts.LogLevel)
	})
}

// NewLogger builds a JSON production logger, or a development logger for format "console".
func NewLogger(format, level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
	}

	if level != "" {
		lvl, err := zap.ParseAtomicLevel(level)
		if err != nil {
			return nil, fmt.Errorf("container: log level: %w", err)
		}

		cfg.Level = lvl
	}

	return cfg.Build()
}

// RedisPackage provides the *RedisClient. The connection is opened lazily on first use.
func RedisPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*RedisClient, error) {
		opts := do.MustInvoke[*Options](i)

		client := redis.NewClient(&redis.Options{
			Addr:        opts.RedisAddr,
			DialTimeout: opts.DialTimeout,
		})

		return &RedisClient{Client: client}, nil
	})
}

// PostgresPackage provides the account.Repository, backed by PostgreSQL when a
// database URL is configured and by memory otherwise.
func PostgresPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*Postgres, error) {
		opts := do.MustInvoke[*Options](i)

		ctx, cancel := context.WithTimeout(context.Background(), opts.DialTimeout)
		defer cancel()

		pool, err := pgxpool.New(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("container: postgres: %w", err)
		}

		return &Postgres{Pool: pool}, nil
	})

	do.Provide(i, func(i *do.Injector) (account.Repository, error) {
		opts := do.MustInvoke[*Options](i)
		if opts.DatabaseURL == "" {
			return account.NewMemoryRepository(), nil
		}

		pg, err := do.Invoke[*Postgres](i)
		if err != nil {
			return nil, err
		}

		return account.NewPostgresRepository(pg.Pool), nil
	})
}

// RateLimitPackage provides the repository, the policy and the policy limiter.
func RateLimitPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*ratelimit.KVRepository, error) {
		opts := do.MustInvoke[*Options](i)
		store := do.MustInvoke[*Store](i)
		logger := do.MustInvoke[*zap.Logger](i)

		return ratelimit.NewKVBuilder().
			Transport(store.Transport).
			Clock(clock.System{}).
			MaxWindow(opts.MaxWindow).
			Attempts(opts.RetryAttempts).
			Backoff(opts.RetryBackoff).
			Logger(logger.Named("ratelimit")).
			Build()
	})

	do.Provide(i, func(i *do.Injector) (*ratelimit.Policy, error) {
		opts := do.MustInvoke[*Options](i)

		policy := ratelimit.DefaultPolicy()
		policy.Limits[ratelimit.ScopeGlobal] = []ratelimit.LimitConfig{
			{Window: opts.GlobalWindow, Max: uint32(opts.GlobalLimit)},
		}
		policy.Limits[ratelimit.ScopeNonce] = []ratelimit.LimitConfig{
			{Window: opts.NonceWindow, Max: uint32(opts.NonceLimit)},
		}

		if err := policy.Validate(opts.MaxWindow); err != nil {
			return nil, err
		}

		return policy, nil
	})

	do.Provide(i, func(i *do.Injector) (*ratelimit.PolicyLimiter, error) {
		repo := do.MustInvoke[*ratelimit.KVRepository](i)
		policy := do.MustInvoke[*ratelimit.Policy](i)

		return ratelimit.NewPolicyLimiter(repo, policy), nil
	})
}

// PublisherGroupPackage provides the rejection event publisher.
func PublisherGroupPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*messaging.PublisherGroup, error) {
		redisClient := do.MustInvoke[*RedisClient](i)
		logger := do.MustInvoke[*zap.Logger](i)

		publisher, err := messaging.NewRedisPublisher(redisClient.Client, messaging.NewZapLogger(logger.Named("watermill")))
		if err != nil {
			return nil, err
		}

		return messaging.NewPublisherGroup(publisher), nil
	})

	do.Provide(i, func(i *do.Injector) (messaging.Publish[events.Rejected], error) {
		opts := do.MustInvoke[*Options](i)
		if !opts.Events {
			return messaging.Discard[events.Rejected](), nil
		}

		group := do.MustInvoke[*messaging.PublisherGroup](i)

		return messaging.NewPublishFunc[events.Rejected](group.Publisher(), events.TopicRejected), nil
	})
}

// ConsumerGroupPackage provides the consumer group logging rejection events.
func ConsumerGroupPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (message.Subscriber, error) {
		opts := do.MustInvoke[*Options](i)
		redisClient := do.MustInvoke[*RedisClient](i)
		logger := do.MustInvoke[*zap.Logger](i)

		subscriber, err := messaging.NewRedisSubscriber(
			redisClient.Client,
			opts.Consumers,
			messaging.NewZapLogger(logger.Named("watermill")),
		)
		if err != nil {
			return nil, err
		}

		return subscriber, nil
	})

	do.Provide(i, func(i *do.Injector) (*messaging.ConsumerGroup, error) {
		subscriber := do.MustInvoke[message.Subscriber](i)
		logger := do.MustInvoke[*zap.Logger](i)

		rejected := messaging.NewConsumer(
			subscriber,
			events.TopicRejected,
			events.LogRejected(logger.Named("rejections")),
			logger,
		)

		return messaging.NewConsumerGroup(subscriber, logger, rejected), nil
	})
}

// ACMEPackage provides the rate limited acme.Server.
func ACMEPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (acme.Server, error) {
		limiter := do.MustInvoke[*ratelimit.PolicyLimiter](i)

		builder := acme.NewLimitedBuilder(
			acme.NewProxyBuilder(&acme.LocalBuilder{}),
			acme.PolicyLimiters(limiter),
		)

		return builder.Build(context.Background())
	})
}

// HTTPPackage provides the router and the huma API with every route registered.
func HTTPPackage(i *do.Injector) {
	do.Provide(i, func(_ *do.Injector) (*chi.Mux, error) {
		return chi.NewMux(), nil
	})

	do.Provide(i, func(i *do.Injector) (huma.API, error) {
		opts := do.MustInvoke[*Options](i)
		router := do.MustInvoke[*chi.Mux](i)
		logger := do.MustInvoke[*zap.Logger](i)
		limiter := do.MustInvoke[*ratelimit.PolicyLimiter](i)
		publish := do.MustInvoke[messaging.Publish[events.Rejected]](i)
		server := do.MustInvoke[acme.Server](i)

		api := humachi.New(router, huma.DefaultConfig("acmon", "1.0.0"))
		api.UseMiddleware(
			middleware.ClientKey(api),
			middleware.RateLimiter(api, limiter.Scoped(ratelimit.ScopeGlobal), publish, logger.Named("http")),
		)

		acmeHandler, err := handlers.NewACMEHandler(server, opts.BaseURL, publish, logger.Named("acme"))
		if err != nil {
			return nil, err
		}

		handlers.RegisterRoutes(api, acmeHandler)
		health.RegisterRoutes(api, health.NewHandler(healthCheckers(i, opts)), middleware.SkipRateLimit)

		return api, nil
	})
}

func healthCheckers(i *do.Injector, opts *Options) map[string]health.Checker {
	checkers := map[string]health.Checker{
		"store": health.NewStoreChecker(do.MustInvoke[*Store](i).Backend),
	}

	if opts.Events {
		checkers["events"] = health.NewRedisChecker(do.MustInvoke[*RedisClient](i).Client)
	}

	if accounts, ok := do.MustInvoke[account.Repository](i).(health.Checker); ok {
		checkers["accounts"] = accounts
	}

	return checkers
}
