package rpc

import (
	"encoding/json"
	"fmt"
)

// request is the JSON-RPC 2.0 call envelope.
type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

// response covers both reply shapes the server sends: correlated
// results (ID set) and subscription notifications (Method and Params
// set, no ID).
type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *uint64         `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *ServerError    `json:"error"`
	Method  string          `json:"method"`
	Params  *notification   `json:"params"`
}

// notification carries one subscription push.
type notification struct {
	Subscription json.RawMessage `json:"subscription"`
	Result       json.RawMessage `json:"result"`
}

// parseSubID normalizes a server-assigned subscription id. Servers
// hand out strings or numbers; the normalized form keys the local
// table and the decoded form is echoed back on unsubscribe.
func parseSubID(raw json.RawMessage) (key string, param any, err error) {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s, s, nil
	}
	var n json.Number
	if json.Unmarshal(raw, &n) == nil {
		return n.String(), n, nil
	}
	return "", nil, fmt.Errorf("rpc: unusable subscription id %s", raw)
}
