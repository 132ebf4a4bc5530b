// Package rpc multiplexes JSON-RPC 2.0 calls and subscriptions over
// one persistent connection. Writes are serialized, reads run on a
// single dispatch loop, and a slow subscription consumer never
// blocks the loop or unrelated calls. The package is method-agnostic;
// owning packages issue the node's actual procedures through it.
package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Conn is the framed-message boundary the client multiplexes over.
// ReadMessage and WriteMessage carry one complete JSON document each;
// the client never issues concurrent writes.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// ErrClosed is the terminal error of a client torn down by Close.
var ErrClosed = errors.New("rpc: client closed")

// ErrUnsubscribed is returned by Next after Unsubscribe released the
// subscription.
var ErrUnsubscribed = errors.New("rpc: unsubscribed")

// ServerError is the error object a node returns for a failed call.
type ServerError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("rpc: server error %d: %s", e.Code, e.Message)
}

// IsServerError reports whether err is a server-side error object and
// returns it when so.
func IsServerError(err error) (*ServerError, bool) {
	var e *ServerError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// TransportError reports that the connection failed. Every pending
// call and live subscription receives one; nothing is retried, since
// lifecycle state cannot be replayed across a gap.
type TransportError struct {
	Cause error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("rpc: transport failed: %v", e.Cause)
}

func (e *TransportError) Unwrap() error { return e.Cause }

// IsTransportError reports whether err is a connection failure and
// returns it when so.
func IsTransportError(err error) (*TransportError, bool) {
	var e *TransportError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
