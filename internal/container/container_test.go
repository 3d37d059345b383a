package container_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/conblem/acmon/internal/container"
	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"
	"github.com/samber/do"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func testOptions() *container.Options {
	return &container.Options{
		Port:          8000,
		BaseURL:       "https://acme.example.com",
		Store:         container.StoreMemory,
		DialTimeout:   time.Second,
		CallTimeout:   time.Second,
		MaxWindow:     3 * time.Hour,
		GlobalLimit:   100,
		GlobalWindow:  time.Minute,
		NonceLimit:    2,
		NonceWindow:   time.Minute,
		RetryAttempts: 3,
		RetryBackoff:  time.Millisecond,
		StoreBurst:    50,
		StoreRetries:  1,
		LogFormat:     "console",
		LogLevel:      "error",
	}
}

func newInjector(t *testing.T, opts *container.Options) *do.Injector {
	t.Helper()

	injector := do.New()
	do.ProvideValue(injector, opts)
	container.LoggerPackage(injector)
	container.RedisPackage(injector)
	container.PostgresPackage(injector)
	container.StorePackage(injector)
	container.RateLimitPackage(injector)
	container.PublisherGroupPackage(injector)
	container.ACMEPackage(injector)
	container.HTTPPackage(injector)

	t.Cleanup(func() {
		_ = injector.Shutdown()
	})

	return injector
}

func serve(router http.Handler, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("User-Agent", "container-test")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	return w
}

func TestOptionsValidate(t *testing.T) {
	t.Run("accepts the test defaults", func(t *testing.T) {
		require.NoError(t, testOptions().Validate())
	})

	t.Run("rejects an unknown store", func(t *testing.T) {
		opts := testOptions()
		opts.Store = "consul"

		assert.ErrorContains(t, opts.Validate(), "unknown store")
	})

	t.Run("etcd needs endpoints", func(t *testing.T) {
		opts := testOptions()
		opts.Store = container.StoreEtcd
		opts.EtcdEndpoints = " , "

		assert.ErrorContains(t, opts.Validate(), "endpoint")

		opts.EtcdEndpoints = "etcd-0:2379"
		assert.NoError(t, opts.Validate())
	})

	t.Run("rejects zero attempts", func(t *testing.T) {
		opts := testOptions()
		opts.RetryAttempts = 0

		assert.Error(t, opts.Validate())
	})

	t.Run("rejects negative limits", func(t *testing.T) {
		opts := testOptions()
		opts.NonceLimit = -1

		assert.ErrorContains(t, opts.Validate(), "nonce limit")
	})
}

func TestOptionsEndpoints(t *testing.T) {
	opts := &container.Options{EtcdEndpoints: "etcd-0:2379, etcd-1:2379,,etcd-2:2379 "}

	assert.Equal(t, []string{"etcd-0:2379", "etcd-1:2379", "etcd-2:2379"}, opts.Endpoints())
}

func TestNewLogger(t *testing.T) {
	t.Run("applies the level", func(t *testing.T) {
		logger, err := container.NewLogger("json", "warn")
		require.NoError(t, err)

		assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
		assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
	})

	t.Run("console format logs at debug by default", func(t *testing.T) {
		logger, err := container.NewLogger("console", "")
		require.NoError(t, err)

		assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("rejects unknown levels", func(t *testing.T) {
		_, err := container.NewLogger("json", "loud")

		assert.Error(t, err)
	})
}

func TestHTTPPackage(t *testing.T) {
	injector := newInjector(t, testOptions())

	router := do.MustInvoke[*chi.Mux](injector)
	_ = do.MustInvoke[huma.API](injector)

	t.Run("serves the directory", func(t *testing.T) {
		w := serve(router, http.MethodGet, "/acme/directory")

		require.Equal(t, http.StatusOK, w.Code)

		var body map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "https://acme.example.com/acme/new_nonce", body["newNonce"])
	})

	t.Run("rate limits nonces per client", func(t *testing.T) {
		for range 2 {
			w := serve(router, http.MethodHead, "/acme/new_nonce")

			require.Equal(t, http.StatusOK, w.Code)
			assert.NotEmpty(t, w.Header().Get("Replay-Nonce"))
		}

		w := serve(router, http.MethodGet, "/acme/new_nonce")

		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "60", w.Header().Get("Retry-After"))
	})

	t.Run("health reports the memory backends", func(t *testing.T) {
		w := serve(router, http.MethodGet, "/health")

		require.Equal(t, http.StatusOK, w.Code)

		var body struct {
			Status string            `json:"status"`
			Checks map[string]string `json:"checks"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "ok", body.Status)
		assert.Equal(t, map[string]string{"store": "healthy", "accounts": "healthy"}, body.Checks)
	})
}

func TestStorePackage(t *testing.T) {
	t.Run("rejects invalid options", func(t *testing.T) {
		opts := testOptions()
		opts.Store = "consul"

		injector := newInjector(t, opts)

		_, err := do.Invoke[*container.Store](injector)
		assert.Error(t, err)
	})

	t.Run("builds the memory store with shaping", func(t *testing.T) {
		opts := testOptions()
		opts.StoreRate = 100
		opts.StoreInflight = 4
		opts.StoreRetries = 2

		injector := newInjector(t, opts)

		store, err := do.Invoke[*container.Store](injector)
		require.NoError(t, err)
		assert.NotSame(t, store.Backend, store.Transport)
		assert.NoError(t, store.Transport.Ready(t.Context()))
	})
}
