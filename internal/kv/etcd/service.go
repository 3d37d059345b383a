// Package etcd implements kv.Service on top of an etcd v3 client.
package etcd

import (
	"context"
	"fmt"
	"time"

	"github.com/conblem/acmon/internal/kv"
	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
	"google.golang.org/grpc/connectivity"
)

// Conn is the part of a gRPC client connection readiness depends on.
// *grpc.ClientConn satisfies it.
type Conn interface {
	GetState() connectivity.State
	WaitForStateChange(ctx context.Context, source connectivity.State) bool
}

// Config holds connection settings.
type Config struct {
	Endpoints   []string
	DialTimeout time.Duration
	Username    string
	Password    string
}

// Service sends kv requests to etcd. All copies of the client share one
// gRPC connection.
type Service struct {
	kv     clientv3.KV
	lease  clientv3.Lease
	conn   Conn
	client *clientv3.Client
}

// Dial connects to etcd and returns a Service owning the client.
func Dial(cfg Config) (*Service, error) {
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
		Username:    cfg.Username,
		Password:    cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("etcd: dial %v: %w", cfg.Endpoints, err)
	}

	return New(client), nil
}

// New wraps an existing client. Shutdown closes it.
func New(client *clientv3.Client) *Service {
	svc := NewWithKV(client.KV, client.Lease, nil)
	svc.client = client

	if conn := client.ActiveConnection(); conn != nil {
		svc.conn = conn
	}

	return svc
}

// NewWithKV builds a Service from its parts. A nil conn is always ready.
func NewWithKV(kvc clientv3.KV, lease clientv3.Lease, conn Conn) *Service {
	return &Service{kv: kvc, lease: lease, conn: conn}
}

// Ready blocks while the connection is establishing or recovering.
func (s *Service) Ready(ctx context.Context) error {
	if s.conn == nil {
		return ctx.Err()
	}

	for {
		state := s.conn.GetState()

		switch state {
		case connectivity.Ready, connectivity.Idle:
			return ctx.Err()
		case connectivity.Shutdown:
			return kv.ErrClosed
		case connectivity.Connecting, connectivity.TransientFailure:
		}

		if !s.conn.WaitForStateChange(ctx, state) {
			return ctx.Err()
		}
	}
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
		return nil, fmt.Errorf("etcd: unknown request %T", req)
	}
}

// Shutdown closes the owned client, if any.
func (s *Service) Shutdown() error {
	if s.client == nil {
		return nil
	}

	return s.client.Close()
}

func (s *Service) put(ctx context.Context, key, value []byte, opts kv.PutOptions) (*kv.PutResponse, error) {
	var ops []clientv3.OpOption

	if opts.PrevKV {
		ops = append(ops, clientv3.WithPrevKV())
	}

	if opts.TTL > 0 {
		lease, err := s.lease.Grant(ctx, ttlSeconds(opts.TTL))
		if err != nil {
			return nil, err
		}

		ops = append(ops, clientv3.WithLease(lease.ID))
	}

	res, err := s.kv.Put(ctx, string(key), string(value), ops...)
	if err != nil {
		return nil, err
	}

	out := &kv.PutResponse{}
	if res.Header != nil {
		out.Revision = res.Header.Revision
	}

	if res.PrevKv != nil {
		prev := toKeyValue(res.PrevKv)
		out.PrevKV = &prev
	}

	return out, nil
}

func (s *Service) get(ctx context.Context, key []byte, opts kv.GetOptions) (*kv.GetResponse, error) {
	var ops []clientv3.OpOption

	if opts.HasRange() {
		ops = append(ops, clientv3.WithRange(string(opts.RangeEnd)))
	}

	if opts.CountOnly {
		ops = append(ops, clientv3.WithCountOnly())
	}

	if opts.KeysOnly {
		ops = append(ops, clientv3.WithKeysOnly())
	}

	if opts.Limit > 0 {
		ops = append(ops, clientv3.WithLimit(opts.Limit))
	}

	res, err := s.kv.Get(ctx, string(key), ops...)
	if err != nil {
		return nil, err
	}

	out := &kv.GetResponse{
		Count: res.Count,
		More:  res.More,
		KVs:   make([]kv.KeyValue, 0, len(res.Kvs)),
	}
	if res.Header != nil {
		out.Revision = res.Header.Revision
	}

	for _, pair := range res.Kvs {
		out.KVs = append(out.KVs, toKeyValue(pair))
	}

	return out, nil
}

func toKeyValue(pair *mvccpb.KeyValue) kv.KeyValue {
	return kv.KeyValue{
		Key:         pair.Key,
		Value:       pair.Value,
		ModRevision: pair.ModRevision,
	}
}

// ttlSeconds rounds up, etcd leases have whole second granularity.
func ttlSeconds(d time.Duration) int64 {
	secs := int64(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}

	return secs
}

var _ kv.Service = (*Service)(nil)
