// Package rediskv implements kv.Service on Redis.
//
// Values are stored as plain strings under {prefix}{key}. Range queries are
// answered from a sorted set {prefix}__index holding every key with score 0,
// so lexical ZLEXCOUNT/ZRANGEBYLEX ranges match etcd's byte-wise key ranges.
package rediskv

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/conblem/acmon/internal/kv"
	"github.com/redis/go-redis/v9"
)

// DefaultPingInterval bounds how often Ready round-trips to Redis.
const DefaultPingInterval = time.Second

// Options configure a Service.
type Options struct {
	// Prefix namespaces every key the service writes. Defaults to "kv:".
	Prefix string
	// PingInterval is the minimum time between readiness pings.
	PingInterval time.Duration
}

// Service sends kv requests to Redis.
type Service struct {
	client       redis.UniversalClient
	prefix       string
	indexKey     string
	revKey       string
	pingInterval time.Duration
	lastPing     atomic.Int64
}

// NewService creates a Redis-backed service. The client is managed by the caller.
func NewService(client redis.UniversalClient, opts Options) *Service {
	if opts.Prefix == "" {
		opts.Prefix = "kv:"
	}

	if opts.PingInterval <= 0 {
		opts.PingInterval = DefaultPingInterval
	}

	return &Service{
		client:       client,
		prefix:       opts.Prefix,
		indexKey:     opts.Prefix + "__index",
		revKey:       opts.Prefix + "__rev",
		pingInterval: opts.PingInterval,
	}
}

// Ready pings Redis unless a ping succeeded within the ping interval.
func (s *Service) Ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	now := time.Now().UnixNano()
	if now-s.lastPing.Load() < int64(s.pingInterval) {
		return nil
	}

	if err := s.client.Ping(ctx).Err(); err != nil {
		if errors.Is(err, redis.ErrClosed) {
			return kv.ErrClosed
		}

		return err
	}

	s.lastPing.Store(now)

	return nil
}

func (s *Service) Call(ctx context.Context, req kv.Request) (kv.Response, error) {
	switch r := req.(type) {
	case kv.Put:
		return s.put(ctx, r.Key, r.Value, kv.PutOptions{})
	case kv.PutWithOptions:
		return s.put(ctx, r.Key, r.Value, r.Options)
	case kv.Get:
		return s.get(ctx, r.Key, kv.GetOptions{})
	case kv.GetWithOptions:
		return s.get(ctx, r.Key, r.Options)
	default:
		return nil, fmt.Errorf("rediskv: unknown request %T", req)
	}
}

func (s *Service) put(ctx context.Context, key, value []byte, opts kv.PutOptions) (*kv.PutResponse, error) {
	if opts.TTL > 0 {
		return nil, fmt.Errorf("rediskv: ttl on indexed keys: %w", kv.ErrUnsupportedOption)
	}

	var prev *redis.StringCmd

	var rev *redis.IntCmd

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if opts.PrevKV {
			prev = pipe.Get(ctx, s.prefix+string(key))
		}

		pipe.Set(ctx, s.prefix+string(key), value, 0)
		pipe.ZAdd(ctx, s.indexKey, redis.Z{Score: 0, Member: string(key)})
		rev = pipe.Incr(ctx, s.revKey)

		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	res := &kv.PutResponse{Revision: rev.Val()}

	if prev != nil {
		if old, err := prev.Bytes(); err == nil {
			res.PrevKV = &kv.KeyValue{Key: key, Value: old}
		}
	}

	return res, nil
}

func (s *Service) get(ctx context.Context, key []byte, opts kv.GetOptions) (*kv.GetResponse, error) {
	if !opts.HasRange() {
		return s.getOne(ctx, key, opts)
	}

	lower := "[" + string(key)
	upper := "+"

	if !opts.ToEnd() {
		upper = "(" + string(opts.RangeEnd)
	}

	var (
		count   *redis.IntCmd
		members *redis.StringSliceCmd
		rev     *redis.StringCmd
	)

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		count = pipe.ZLexCount(ctx, s.indexKey, lower, upper)
		rev = pipe.Get(ctx, s.revKey)

		if !opts.CountOnly {
			members = pipe.ZRangeByLex(ctx, s.indexKey, &redis.ZRangeBy{
				Min:   lower,
				Max:   upper,
				Count: opts.Limit,
			})
		}

		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	res := &kv.GetResponse{Count: count.Val(), Revision: revision(rev)}
	if opts.CountOnly {
		return res, nil
	}

	keys := members.Val()
	res.More = int64(len(keys)) < res.Count
	res.KVs = make([]kv.KeyValue, 0, len(keys))

	if opts.KeysOnly || len(keys) == 0 {
		for _, k := range keys {
			res.KVs = append(res.KVs, kv.KeyValue{Key: []byte(k)})
		}

		return res, nil
	}

	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = s.prefix + k
	}

	values, err := s.client.MGet(ctx, prefixed...).Result()
	if err != nil {
		return nil, err
	}

	for i, k := range keys {
		pair := kv.KeyValue{Key: []byte(k)}

		if v, ok := values[i].(string); ok {
			pair.Value = []byte(v)
		}

		res.KVs = append(res.KVs, pair)
	}

	return res, nil
}

func (s *Service) getOne(ctx context.Context, key []byte, opts kv.GetOptions) (*kv.GetResponse, error) {
	var value, rev *redis.StringCmd

	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		value = pipe.Get(ctx, s.prefix+string(key))
		rev = pipe.Get(ctx, s.revKey)

		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	res := &kv.GetResponse{Revision: revision(rev)}

	v, err := value.Bytes()
	if errors.Is(err, redis.Nil) {
		return res, nil
	}

	if err != nil {
		return nil, err
	}

	res.Count = 1
	if opts.CountOnly {
		return res, nil
	}

	pair := kv.KeyValue{Key: key}
	if !opts.KeysOnly {
		pair.Value = v
	}

	res.KVs = []kv.KeyValue{pair}

	return res, nil
}

func revision(cmd *redis.StringCmd) int64 {
	rev, err := cmd.Int64()
	if err != nil {
		return 0
	}

	return rev
}

var _ kv.Service = (*Service)(nil)
