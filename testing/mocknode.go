// Package sigiltest provides test doubles for client development: an
// in-memory scripted node, a prebuilt metadata fixture, and a signer
// compliance suite.
package sigiltest

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/blake2b"

	"github.com/sigil-dev/sigil/rpc"
	"github.com/sigil-dev/sigil/txstatus"
	"github.com/sigil-dev/sigil/types"
)

// Compile-time check that MockNode can sit under an rpc client.
var _ rpc.Conn = (*MockNode)(nil)

const (
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternal       = -32603
)

// HandlerFunc answers one JSON-RPC method. Returning a *rpc.ServerError
// sends that error to the client; any other error is wrapped as an
// internal server error.
type HandlerFunc func(params []json.RawMessage) (any, error)

// MockNode is an in-memory node speaking scripted JSON-RPC over the
// rpc.Conn boundary. Register methods with Handle; extrinsic
// submission and watch subscriptions are built in and can be
// overridden the same way. All behavior is deterministic.
type MockNode struct {
	mu        sync.Mutex
	handlers  map[string]HandlerFunc
	subs      map[string]bool
	script    []txstatus.Status
	submitted [][]byte
	subSeq    int

	out    chan []byte
	closed chan struct{}
	once   sync.Once
}

func NewMockNode() *MockNode {
	return &MockNode{
		handlers: make(map[string]HandlerFunc),
		subs:     make(map[string]bool),
		out:      make(chan []byte, 256),
		closed:   make(chan struct{}),
	}
}

// Handle registers fn for method, replacing any previous handler,
// built-in behavior included.
func (n *MockNode) Handle(method string, fn HandlerFunc) {
	n.mu.Lock()
	n.handlers[method] = fn
	n.mu.Unlock()
}

// Script sets the status sequence replayed after every subsequent
// submitAndWatch. With no script the subscription stays silent until
// Notify is called.
func (n *MockNode) Script(statuses ...txstatus.Status) {
	n.mu.Lock()
	n.script = append([]txstatus.Status(nil), statuses...)
	n.mu.Unlock()
}

// Notify pushes one extrinsicUpdate notification for subID. The
// payload is marshaled as given, so tests can push shapes a real
// node never would.
func (n *MockNode) Notify(subID string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		panic(fmt.Sprintf("sigiltest: marshal notification: %v", err))
	}
	n.push(map[string]any{
		"jsonrpc": "2.0",
		"method":  "author_extrinsicUpdate",
		"params": map[string]any{
			"subscription": subID,
			"result":       json.RawMessage(body),
		},
	})
}

// Submitted returns the decoded bytes of every extrinsic received,
// in arrival order.
func (n *MockNode) Submitted() [][]byte {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([][]byte, len(n.submitted))
	for i, b := range n.submitted {
		out[i] = append([]byte(nil), b...)
	}
	return out
}

// OpenSubscriptions reports how many watch subscriptions have not
// been unwatched yet. Zero means no server-side leak.
func (n *MockNode) OpenSubscriptions() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs)
}

func (n *MockNode) ReadMessage() ([]byte, error) {
	select {
	case msg := <-n.out:
		return msg, nil
	default:
	}
	select {
	case msg := <-n.out:
		return msg, nil
	case <-n.closed:
		return nil, errors.New("mock node closed")
	}
}

func (n *MockNode) WriteMessage(data []byte) error {
	select {
	case <-n.closed:
		return errors.New("mock node closed")
	default:
	}
	var req struct {
		ID     uint64            `json:"id"`
		Method string            `json:"method"`
		Params []json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("sigiltest: bad request frame: %w", err)
	}
	n.serve(req.ID, req.Method, req.Params)
	return nil
}

func (n *MockNode) Close() error {
	n.once.Do(func() { close(n.closed) })
	return nil
}

func (n *MockNode) serve(id uint64, method string, params []json.RawMessage) {
	n.mu.Lock()
	fn := n.handlers[method]
	n.mu.Unlock()
	if fn != nil {
		res, err := fn(params)
		switch se := (*rpc.ServerError)(nil); {
		case errors.As(err, &se):
			n.replyError(id, se.Code, se.Message)
		case err != nil:
			n.replyError(id, codeInternal, err.Error())
		default:
			n.reply(id, res)
		}
		return
	}

	switch method {
	case "author_submitExtrinsic":
		n.serveSubmit(id, params)
	case "author_submitAndWatchExtrinsic":
		n.serveSubmitAndWatch(id, params)
	case "author_unwatchExtrinsic":
		n.serveUnwatch(id, params)
	default:
		n.replyError(id, codeMethodNotFound, fmt.Sprintf("method %s not found", method))
	}
}

func (n *MockNode) serveSubmit(id uint64, params []json.RawMessage) {
	xt, err := n.recordSubmission(params)
	if err != nil {
		n.replyError(id, codeInvalidParams, err.Error())
		return
	}
	sum := blake2b.Sum256(xt)
	n.reply(id, types.Hash(sum).Hex())
}

func (n *MockNode) serveSubmitAndWatch(id uint64, params []json.RawMessage) {
	if _, err := n.recordSubmission(params); err != nil {
		n.replyError(id, codeInvalidParams, err.Error())
		return
	}
	n.mu.Lock()
	n.subSeq++
	subID := fmt.Sprintf("mock-sub-%d", n.subSeq)
	n.subs[subID] = true
	script := append([]txstatus.Status(nil), n.script...)
	n.mu.Unlock()

	n.reply(id, subID)
	for _, st := range script {
		n.Notify(subID, st)
	}
}

func (n *MockNode) serveUnwatch(id uint64, params []json.RawMessage) {
	var subID string
	ok := false
	if len(params) == 1 && json.Unmarshal(params[0], &subID) == nil {
		n.mu.Lock()
		ok = n.subs[subID]
		delete(n.subs, subID)
		n.mu.Unlock()
	}
	n.reply(id, ok)
}

func (n *MockNode) recordSubmission(params []json.RawMessage) ([]byte, error) {
	if len(params) != 1 {
		return nil, fmt.Errorf("want one extrinsic param, got %d", len(params))
	}
	var hx types.HexBytes
	if err := json.Unmarshal(params[0], &hx); err != nil {
		return nil, fmt.Errorf("extrinsic param: %w", err)
	}
	n.mu.Lock()
	n.submitted = append(n.submitted, []byte(hx))
	n.mu.Unlock()
	return hx, nil
}

func (n *MockNode) reply(id uint64, result any) {
	n.push(map[string]any{"jsonrpc": "2.0", "id": id, "result": result})
}

func (n *MockNode) replyError(id uint64, code int, message string) {
	n.push(map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"error":   map[string]any{"code": code, "message": message},
	})
}

func (n *MockNode) push(msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		panic(fmt.Sprintf("sigiltest: marshal frame: %v", err))
	}
	select {
	case n.out <- data:
	case <-n.closed:
	}
}
