package rpc

import (
	"context"
	"encoding/json"
	"sync"
)

// Subscription is one live notification stream. Exactly one consumer
// calls Next; notifications queue without bound so the connection's
// dispatch loop never waits on a slow consumer, and arrival order is
// preserved exactly.
type Subscription struct {
	c           *Client
	key         string
	idParam     any
	notifMethod string
	unsubMethod string

	mu     sync.Mutex
	queue  []json.RawMessage
	err    error
	closed bool
	ready  chan struct{}
}

// ID returns the server-assigned subscription id.
func (s *Subscription) ID() string { return s.key }

// Next returns the oldest undelivered notification, waiting for one
// if none is queued. Queued notifications drain before a terminal
// error surfaces; after that the terminal error repeats forever.
func (s *Subscription) Next(ctx context.Context) (json.RawMessage, error) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			msg := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return msg, nil
		}
		if s.err != nil {
			err := s.err
			s.mu.Unlock()
			return nil, err
		}
		s.mu.Unlock()

		select {
		case <-s.ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Unsubscribe releases the local slot and tells the server to stop.
// It is idempotent; the first call's outcome wins.
func (s *Subscription) Unsubscribe(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.c.release(s.key)
	s.fail(ErrUnsubscribed)

	var ok bool
	if err := s.c.Call(ctx, &ok, s.unsubMethod, s.idParam); err != nil {
		return err
	}
	return nil
}

// push appends one notification; called only by the dispatch loop.
func (s *Subscription) push(msg json.RawMessage) {
	s.mu.Lock()
	if s.err == nil {
		s.queue = append(s.queue, msg)
	}
	s.mu.Unlock()
	s.signal()
}

// fail pins the terminal error; the first one sticks.
func (s *Subscription) fail(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
	s.signal()
}

func (s *Subscription) signal() {
	select {
	case s.ready <- struct{}{}:
	default:
	}
}
