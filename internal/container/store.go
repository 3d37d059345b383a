package container

import (
	"github.com/conblem/acmon/internal/clock"
	"github.com/conblem/acmon/internal/kv"
	"github.com/conblem/acmon/internal/kv/etcd"
	"github.com/conblem/acmon/internal/kv/memory"
	"github.com/conblem/acmon/internal/kv/middleware"
	"github.com/conblem/acmon/internal/kv/rediskv"
	"github.com/samber/do"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

// Store is the rate limit key-value store. Backend talks to the storage
// itself, Transport is Backend behind the configured middleware stack.
type Store struct {
	Backend   kv.Service
	Transport kv.Service
}

// Shutdown releases the backend connection if the backend owns one.
func (s *Store) Shutdown() error {
	if closer, ok := s.Backend.(interface{ Shutdown() error }); ok {
		return closer.Shutdown()
	}

	return nil
}

// StorePackage provides the *Store selected by Options.Store.
func StorePackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*Store, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i).Named("kv")

		if err := opts.Validate(); err != nil {
			return nil, err
		}

		backend, err := newBackend(i, opts)
		if err != nil {
			return nil, err
		}

		metrics, err := middleware.Metrics(otel.Meter("github.com/conblem/acmon/internal/kv"))
		if err != nil {
			return nil, err
		}

		mws := []kv.Middleware{middleware.Logging(logger), metrics}

		if opts.StoreRetries > 1 {
			mws = append(mws, middleware.Retry(uint(opts.StoreRetries), opts.RetryBackoff, logger))
		}

		mws = append(mws, middleware.Timeout(opts.CallTimeout))

		if opts.StoreRate > 0 {
			mws = append(mws, middleware.RateShape(float64(opts.StoreRate), opts.StoreBurst))
		}

		if opts.StoreInflight > 0 {
			mws = append(mws, middleware.ConcurrencyLimit(int64(opts.StoreInflight)))
		}

		logger.Info("store configured",
			zap.String("backend", opts.Store),
			zap.Int("retries", opts.StoreRetries),
			zap.Int("rate", opts.StoreRate),
			zap.Int("inflight", opts.StoreInflight),
		)

		return &Store{Backend: backend, Transport: kv.Chain(backend, mws...)}, nil
	})
}

func newBackend(i *do.Injector, opts *Options) (kv.Service, error) {
	switch opts.Store {
	case StoreEtcd:
		svc, err := etcd.Dial(etcd.Config{
			Endpoints:   opts.Endpoints(),
			DialTimeout: opts.DialTimeout,
			Username:    opts.EtcdUsername,
			Password:    opts.EtcdPassword,
		})
		if err != nil {
			return nil, err
		}

		return svc, nil
	case StoreRedis:
		client := do.MustInvoke[*RedisClient](i)

		return rediskv.NewService(client.Client, rediskv.Options{}), nil
	default:
		return memory.New(clock.System{}), nil
	}
}
