package kv

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned once the underlying connection has been shut down.
	ErrClosed = errors.New("kv: service closed")
	// ErrUnsupportedOption is returned when a backend cannot honour a request option.
	ErrUnsupportedOption = errors.New("kv: unsupported option")
)

// UnexpectedResponseError is returned when a transport answers a request with the wrong variant.
type UnexpectedResponseError struct {
	Op       Op
	Response Response
}

func (e *UnexpectedResponseError) Error() string {
	return fmt.Sprintf("kv: unexpected response %T for %s", e.Response, e.Op)
}
