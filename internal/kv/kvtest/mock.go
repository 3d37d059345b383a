// Package kvtest provides a scripted kv.Service for tests.
package kvtest

import (
	"context"
	"errors"
	"sync"

	"github.com/conblem/acmon/internal/kv"
)

// ErrScriptExhausted is returned by Call once every scripted reply has been used.
var ErrScriptExhausted = errors.New("kvtest: no scripted reply left")

// Reply is one scripted answer.
type Reply struct {
	Response kv.Response
	Err      error
}

// Respond scripts a successful reply.
func Respond(res kv.Response) Reply {
	return Reply{Response: res}
}

// Fail scripts a failed reply.
func Fail(err error) Reply {
	return Reply{Err: err}
}

// Mock records requests and answers them from a FIFO script.
type Mock struct {
	mu       sync.Mutex
	script   []Reply
	requests []kv.Request
	readies  int
	readyErr error
}

// NewMock creates a mock answering with replies in order.
func NewMock(replies ...Reply) *Mock {
	return &Mock{script: replies}
}

// Push appends replies to the script.
func (m *Mock) Push(replies ...Reply) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.script = append(m.script, replies...)
}

// FailReady makes every Ready call return err.
func (m *Mock) FailReady(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.readyErr = err
}

func (m *Mock) Ready(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.readies++

	if m.readyErr != nil {
		return m.readyErr
	}

	return ctx.Err()
}

func (m *Mock) Call(_ context.Context, req kv.Request) (kv.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)

	if len(m.script) == 0 {
		return nil, ErrScriptExhausted
	}

	reply := m.script[0]
	m.script = m.script[1:]

	return reply.Response, reply.Err
}

// Requests returns every request received, in call order.
func (m *Mock) Requests() []kv.Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]kv.Request(nil), m.requests...)
}

// Calls returns the number of Call invocations.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.requests)
}

// ReadyCalls returns the number of Ready invocations.
func (m *Mock) ReadyCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.readies
}

// Remaining returns the number of unused scripted replies.
func (m *Mock) Remaining() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.script)
}

var _ kv.Service = (*Mock)(nil)
