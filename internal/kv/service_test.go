package kv_test

import (
	"context"
	"errors"
	"testing"

	"github.com/conblem/acmon/internal/kv"
	"github.com/conblem/acmon/internal/kv/kvtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOneshot(t *testing.T) {
	t.Run("returns the typed get response", func(t *testing.T) {
		mock := kvtest.NewMock(kvtest.Respond(&kv.GetResponse{Count: 3}))

		res, err := kv.Oneshot[*kv.GetResponse](context.Background(), mock, kv.NewGet("key"))

		require.NoError(t, err)
		assert.Equal(t, int64(3), res.Count)
		assert.Equal(t, 1, mock.ReadyCalls())
		assert.Equal(t, []kv.Request{kv.NewGet("key")}, mock.Requests())
	})

	t.Run("returns the typed put response", func(t *testing.T) {
		mock := kvtest.NewMock(kvtest.Respond(&kv.PutResponse{Revision: 7}))

		res, err := kv.Oneshot[*kv.PutResponse](context.Background(), mock, kv.NewPut("key", "value"))

		require.NoError(t, err)
		assert.Equal(t, int64(7), res.Revision)
	})

	t.Run("rejects a mismatched response variant", func(t *testing.T) {
		mock := kvtest.NewMock(kvtest.Respond(&kv.PutResponse{}))

		res, err := kv.Oneshot[*kv.GetResponse](context.Background(), mock, kv.NewGet("key"))

		assert.Nil(t, res)

		var unexpected *kv.UnexpectedResponseError
		require.ErrorAs(t, err, &unexpected)
		assert.Equal(t, kv.OpGet, unexpected.Op)
	})

	t.Run("rejects a nil response", func(t *testing.T) {
		mock := kvtest.NewMock(kvtest.Respond(nil))

		_, err := kv.Oneshot[*kv.PutResponse](context.Background(), mock, kv.NewPut("key", "value"))

		var unexpected *kv.UnexpectedResponseError
		assert.ErrorAs(t, err, &unexpected)
	})

	t.Run("surfaces transport errors verbatim", func(t *testing.T) {
		storeErr := errors.New("store down")
		mock := kvtest.NewMock(kvtest.Fail(storeErr))

		_, err := kv.Oneshot[*kv.PutResponse](context.Background(), mock, kv.NewPut("key", "value"))

		assert.Same(t, storeErr, err)
	})

	t.Run("does not call when not ready", func(t *testing.T) {
		mock := kvtest.NewMock(kvtest.Respond(&kv.GetResponse{}))
		mock.FailReady(kv.ErrClosed)

		_, err := kv.Oneshot[*kv.GetResponse](context.Background(), mock, kv.NewGet("key"))

		assert.ErrorIs(t, err, kv.ErrClosed)
		assert.Equal(t, 0, mock.Calls())
	})
}

func TestChain(t *testing.T) {
	var order []string

	tag := func(name string) kv.Middleware {
		return func(next kv.Service) kv.Service {
			return kv.ServiceFunc(func(ctx context.Context, req kv.Request) (kv.Response, error) {
				order = append(order, name)

				return next.Call(ctx, req)
			})
		}
	}

	inner := kv.ServiceFunc(func(_ context.Context, _ kv.Request) (kv.Response, error) {
		order = append(order, "inner")

		return &kv.GetResponse{}, nil
	})

	svc := kv.Chain(inner, tag("outer"), tag("middle"))

	_, err := kv.Oneshot[*kv.GetResponse](context.Background(), svc, kv.NewGet("key"))

	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "middle", "inner"}, order)
}

func TestGetOptions(t *testing.T) {
	assert.False(t, kv.GetOptions{}.HasRange())
	assert.True(t, kv.GetOptions{RangeEnd: []byte("b")}.HasRange())
	assert.False(t, kv.GetOptions{RangeEnd: []byte("b")}.ToEnd())
	assert.True(t, kv.GetOptions{RangeEnd: kv.RangeToEnd}.ToEnd())
}

func TestRequestOps(t *testing.T) {
	tests := []struct {
		req kv.Request
		op  kv.Op
	}{
		{kv.NewPut("k", "v"), kv.OpPut},
		{kv.NewPutWithOptions("k", []byte{1}, kv.PutOptions{PrevKV: true}), kv.OpPutWithOptions},
		{kv.NewGet("k"), kv.OpGet},
		{kv.NewGetWithOptions([]byte("k"), kv.GetOptions{CountOnly: true}), kv.OpGetWithOptions},
	}

	for _, tt := range tests {
		t.Run(string(tt.op), func(t *testing.T) {
			assert.Equal(t, tt.op, tt.req.Op())
			assert.Equal(t, []byte("k"), tt.req.RequestKey())
		})
	}
}
