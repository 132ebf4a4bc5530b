package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
)

// Compile-time interface check.
var _ Conn = wsConn{}

// wsConn adapts a websocket connection to the Conn boundary.
type wsConn struct {
	ws *websocket.Conn
}

func (c wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	return data, err
}

func (c wsConn) WriteMessage(data []byte) error {
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c wsConn) Close() error { return c.ws.Close() }

// Option configures a client.
type Option func(*Client)

// WithLogger routes the client's diagnostics to log. The default
// discards them.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithMetrics registers the client's collectors with reg and enables
// instrumentation.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *Client) { c.met = newMetrics(reg) }
}

// callResult carries one call's outcome from the dispatch loop to
// the waiting caller.
type callResult struct {
	resp *response
	err  error
}

// pendingCall is one in-flight request. sub is non-nil when the
// request establishes a subscription; the dispatch loop installs it
// under the server-assigned id before releasing the caller, so no
// notification can slip past between the two.
type pendingCall struct {
	ch  chan callResult
	sub *Subscription
}

// Client multiplexes calls and subscriptions over one Conn.
type Client struct {
	conn Conn
	log  *slog.Logger
	met  *metrics

	writeMu sync.Mutex
	nextID  atomic.Uint64

	mu       sync.Mutex
	pending  map[uint64]pendingCall
	subs     map[string]*Subscription
	closed   bool
	closeErr error
}

// Dial connects to a node's websocket endpoint and returns a running
// client.
func Dial(ctx context.Context, url string, opts ...Option) (*Client, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("rpc: dial %s: %w", url, err)
	}
	return NewClient(wsConn{ws: ws}, opts...), nil
}

// NewClient runs a client over an established conn and starts its
// dispatch loop. The client owns conn from here on.
func NewClient(conn Conn, opts ...Option) *Client {
	c := &Client{
		conn:    conn,
		log:     slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)})),
		pending: make(map[uint64]pendingCall),
		subs:    make(map[string]*Subscription),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.readLoop()
	return c
}

// Call issues method with positional params and unmarshals the
// result into result when non-nil. Server failures surface as
// *ServerError, connection failures as *TransportError. Cancelling
// ctx releases the pending slot immediately.
func (c *Client) Call(ctx context.Context, result any, method string, params ...any) error {
	raw, err := c.invoke(ctx, method, params, nil)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}
	if err := json.Unmarshal(raw, result); err != nil {
		return fmt.Errorf("rpc: %s result: %w", method, err)
	}
	return nil
}

// Subscribe issues method and returns the live subscription feeding
// notifMethod notifications. unsubMethod is sent when the caller
// unsubscribes.
func (c *Client) Subscribe(ctx context.Context, method, unsubMethod, notifMethod string, params ...any) (*Subscription, error) {
	sub := &Subscription{
		c:           c,
		notifMethod: notifMethod,
		unsubMethod: unsubMethod,
		ready:       make(chan struct{}, 1),
	}
	if _, err := c.invoke(ctx, method, params, sub); err != nil {
		return nil, err
	}
	c.log.Debug("rpc subscribed", "method", method, "subscription", sub.key)
	return sub, nil
}

// Close tears the connection down. Every pending call and live
// subscription fails with ErrClosed.
func (c *Client) Close() error {
	return c.closeWith(ErrClosed)
}

func (c *Client) invoke(ctx context.Context, method string, params []any, sub *Subscription) (json.RawMessage, error) {
	id := c.nextID.Add(1)
	p := pendingCall{ch: make(chan callResult, 1), sub: sub}

	c.mu.Lock()
	if c.closed {
		err := c.closeErr
		c.mu.Unlock()
		return nil, err
	}
	c.pending[id] = p
	c.mu.Unlock()

	data, err := json.Marshal(request{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		c.forget(id)
		return nil, fmt.Errorf("rpc: marshal %s params: %w", method, err)
	}
	if err := c.write(data); err != nil {
		c.forget(id)
		c.met.call(method, "transport")
		return nil, &TransportError{Cause: err}
	}

	select {
	case res := <-p.ch:
		if res.err != nil {
			c.met.call(method, "transport")
			return nil, res.err
		}
		if res.resp.Error != nil {
			c.met.call(method, "server_error")
			return nil, res.resp.Error
		}
		c.met.call(method, "ok")
		return res.resp.Result, nil
	case <-ctx.Done():
		c.forget(id)
		if sub != nil {
			// The response may have won the race and installed the
			// subscription; take the slot back.
			select {
			case res := <-p.ch:
				if res.err == nil && res.resp.Error == nil {
					c.release(sub.key)
				}
			default:
			}
		}
		c.met.call(method, "cancelled")
		return nil, ctx.Err()
	}
}

func (c *Client) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(data)
}

func (c *Client) forget(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// readLoop is the connection-wide dispatcher. It exits when the conn
// fails, taking every waiter down with a TransportError.
func (c *Client) readLoop() {
	for {
		data, err := c.conn.ReadMessage()
		if err != nil {
			c.closeWith(&TransportError{Cause: err})
			return
		}
		c.dispatch(data)
	}
}

func (c *Client) dispatch(data []byte) {
	var msg response
	if err := json.Unmarshal(data, &msg); err != nil {
		c.log.Warn("rpc: dropping undecodable message", "err", err)
		return
	}
	switch {
	case msg.ID != nil:
		c.dispatchResponse(&msg)
	case msg.Method != "" && msg.Params != nil:
		c.dispatchNotification(&msg)
	default:
		c.log.Warn("rpc: dropping unrecognized message")
	}
}

func (c *Client) dispatchResponse(msg *response) {
	id := *msg.ID
	c.mu.Lock()
	p, ok := c.pending[id]
	if !ok {
		c.mu.Unlock()
		c.log.Debug("rpc: response for unknown id", "id", id)
		return
	}
	delete(c.pending, id)

	if p.sub != nil && msg.Error == nil {
		key, param, err := parseSubID(msg.Result)
		if err != nil {
			c.mu.Unlock()
			p.ch <- callResult{err: err}
			return
		}
		p.sub.key = key
		p.sub.idParam = param
		c.subs[key] = p.sub
		c.mu.Unlock()
		c.met.subscriptionOpened()
		p.ch <- callResult{resp: msg}
		return
	}
	c.mu.Unlock()
	p.ch <- callResult{resp: msg}
}

func (c *Client) dispatchNotification(msg *response) {
	key, _, err := parseSubID(msg.Params.Subscription)
	if err != nil {
		c.log.Warn("rpc: notification without usable subscription id", "method", msg.Method)
		return
	}
	c.mu.Lock()
	sub, ok := c.subs[key]
	c.mu.Unlock()
	if !ok {
		// Either racing an unsubscribe or never ours; both are drops.
		c.log.Debug("rpc: notification for unknown subscription", "subscription", key)
		return
	}
	if sub.notifMethod != msg.Method {
		c.log.Warn("rpc: notification method mismatch",
			"subscription", key, "got", msg.Method, "want", sub.notifMethod)
		return
	}
	sub.push(msg.Params.Result)
	c.met.notification(msg.Method)
}

// release drops a subscription from the table; idempotent.
func (c *Client) release(key string) {
	c.mu.Lock()
	_, ok := c.subs[key]
	delete(c.subs, key)
	c.mu.Unlock()
	if ok {
		c.met.subscriptionClosed()
	}
}

func (c *Client) closeWith(cause error) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.closeErr = cause
	pending := c.pending
	subs := c.subs
	c.pending = make(map[uint64]pendingCall)
	c.subs = make(map[string]*Subscription)
	c.mu.Unlock()

	for _, p := range pending {
		p.ch <- callResult{err: cause}
	}
	for _, s := range subs {
		s.fail(cause)
		c.met.subscriptionClosed()
	}
	c.log.Debug("rpc client closed", "cause", cause,
		"failed_calls", len(pending), "failed_subscriptions", len(subs))
	return c.conn.Close()
}
