// Package memory implements kv.Service in process, for local runs and tests.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/conblem/acmon/internal/clock"
	"github.com/conblem/acmon/internal/kv"
)

type entry struct {
	value     []byte
	modRev    int64
	expiresAt time.Duration // zero means no expiry
}

// Service is an in-memory ordered key-value store.
type Service struct {
	mu       sync.RWMutex
	clock    clock.Clock
	entries  map[string]entry
	revision int64
	closed   bool
}

// New creates an empty store. Entry expiry is evaluated against c.
func New(c clock.Clock) *Service {
	return &Service{
		clock:   c,
		entries: make(map[string]entry),
	}
}

func (s *Service) Ready(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return kv.ErrClosed
	}

	return ctx.Err()
}

func (s *Service) Call(ctx context.Context, req kv.Request) (kv.Response, error) {
	if err := s.Ready(ctx); err != nil {
		return nil, err
	}

	switch r := req.(type) {
	case kv.Put:
		return s.put(r.Key, r.Value, kv.PutOptions{}), nil
	case kv.PutWithOptions:
		return s.put(r.Key, r.Value, r.Options), nil
	case kv.Get:
		return s.get(r.Key, kv.GetOptions{}), nil
	case kv.GetWithOptions:
		return s.get(r.Key, r.Options), nil
	default:
		return nil, fmt.Errorf("memory: unknown request %T", req)
	}
}

// Shutdown closes the store. Later calls to Ready and Call fail with kv.ErrClosed.
func (s *Service) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true

	return nil
}

func (s *Service) put(key, value []byte, opts kv.PutOptions) *kv.PutResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	res := &kv.PutResponse{}

	if prev, ok := s.entries[string(key)]; ok && opts.PrevKV && live(prev, now) {
		res.PrevKV = &kv.KeyValue{
			Key:         bytes.Clone(key),
			Value:       bytes.Clone(prev.value),
			ModRevision: prev.modRev,
		}
	}

	s.revision++

	e := entry{value: bytes.Clone(value), modRev: s.revision}
	if opts.TTL > 0 {
		e.expiresAt = now + opts.TTL
	}

	s.entries[string(key)] = e
	res.Revision = s.revision

	return res
}

func (s *Service) get(key []byte, opts kv.GetOptions) *kv.GetResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.clock.Now()
	res := &kv.GetResponse{Revision: s.revision}

	var keys []string

	if opts.HasRange() {
		for k, e := range s.entries {
			if inRange(k, key, opts) && live(e, now) {
				keys = append(keys, k)
			}
		}

		slices.Sort(keys)
	} else if e, ok := s.entries[string(key)]; ok && live(e, now) {
		keys = []string{string(key)}
	}

	res.Count = int64(len(keys))
	if opts.CountOnly {
		return res
	}

	if opts.Limit > 0 && int64(len(keys)) > opts.Limit {
		keys = keys[:opts.Limit]
		res.More = true
	}

	res.KVs = make([]kv.KeyValue, 0, len(keys))

	for _, k := range keys {
		e := s.entries[k]
		pair := kv.KeyValue{Key: []byte(k), ModRevision: e.modRev}

		if !opts.KeysOnly {
			pair.Value = bytes.Clone(e.value)
		}

		res.KVs = append(res.KVs, pair)
	}

	return res
}

func inRange(k string, start []byte, opts kv.GetOptions) bool {
	if k < string(start) {
		return false
	}

	return opts.ToEnd() || k < string(opts.RangeEnd)
}

func live(e entry, now time.Duration) bool {
	return e.expiresAt == 0 || now < e.expiresAt
}

var _ kv.Service = (*Service)(nil)
