// Package sigil is a client for nodes that publish their runtime as
// a metadata document: it builds, signs, submits and tracks
// extrinsics and reads storage, all driven by the published type
// registry rather than generated code.
//
// [Connect] dials a node and snapshots the chain's identity. From
// there [Client.Tx] starts the submission flow:
//
//	tx, err := client.Tx("Balances", "transfer", dest, amount)
//	signed, err := tx.Signed(ctx, signer)
//	watcher, err := signed.SubmitAndWatch(ctx)
//
// The subpackages stand alone: scale and dynamic are the codecs,
// metadata the registry, extrinsic the builder, rpc the transport,
// storage and events the read side, txstatus the lifecycle tracker.
package sigil

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sigil-dev/sigil/events"
	"github.com/sigil-dev/sigil/metadata"
	"github.com/sigil-dev/sigil/rpc"
	"github.com/sigil-dev/sigil/scale"
	"github.com/sigil-dev/sigil/storage"
	"github.com/sigil-dev/sigil/types"
)

const (
	methodMetadata       = "state_getMetadata"
	methodBlockHash      = "chain_getBlockHash"
	methodRuntimeVersion = "state_getRuntimeVersion"
	methodHeader         = "chain_getHeader"
	methodFinalizedHead  = "chain_getFinalizedHead"
	methodNextIndex      = "system_accountNextIndex"
	methodSubmit         = "author_submitExtrinsic"
	methodSubmitWatch    = "author_submitAndWatchExtrinsic"
	methodUnwatch        = "author_unwatchExtrinsic"
	methodWatchUpdates   = "author_extrinsicUpdate"
)

// defaultSS58Network is the generic address prefix, used when the
// chain does not declare one.
const defaultSS58Network uint16 = 42

// RuntimeVersion identifies the runtime a node executes. SpecVersion
// and TransactionVersion are mixed into every signature; an
// extrinsic signed against one version is invalid under another.
type RuntimeVersion struct {
	SpecName           string `json:"specName"`
	ImplName           string `json:"implName"`
	AuthoringVersion   uint32 `json:"authoringVersion"`
	SpecVersion        uint32 `json:"specVersion"`
	ImplVersion        uint32 `json:"implVersion"`
	TransactionVersion uint32 `json:"transactionVersion"`
	StateVersion       uint32 `json:"stateVersion"`
}

// Client is one node session. Construction snapshots the chain's
// identity, and the snapshot never changes:
//  1. the metadata document, which drives all encoding and decoding,
//  2. the genesis hash, mixed into every signature,
//  3. the runtime version the signer commits to.
//
// A client holding a stale snapshot produces extrinsics the node
// rejects after a runtime upgrade; reconnect to refresh.
//
// The client never caches nonces and never retries. A failed
// submission leaves the account's next nonce unknown, and
// re-acquiring it is the caller's decision.
type Client struct {
	rpc     *rpc.Client
	meta    *metadata.Metadata
	genesis types.Hash
	version RuntimeVersion
	network uint16

	storage *storage.Client
}

// Option configures Connect.
type Option func(*config)

type config struct {
	rpcOpts []rpc.Option
}

// WithLogger routes transport logs to log.
func WithLogger(log *slog.Logger) Option {
	return func(c *config) { c.rpcOpts = append(c.rpcOpts, rpc.WithLogger(log)) }
}

// WithMetrics registers transport metrics with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *config) { c.rpcOpts = append(c.rpcOpts, rpc.WithMetrics(reg)) }
}

// Connect dials url and builds a client over the connection.
func Connect(ctx context.Context, url string, opts ...Option) (*Client, error) {
	var cfg config
	for _, o := range opts {
		o(&cfg)
	}
	rc, err := rpc.Dial(ctx, url, cfg.rpcOpts...)
	if err != nil {
		return nil, err
	}
	c, err := NewClient(ctx, rc)
	if err != nil {
		_ = rc.Close()
		return nil, err
	}
	return c, nil
}

// NewClient builds a client over an already-dialed transport and
// takes ownership of it. The chain identity is fetched here; a node
// that cannot answer the three identity queries is not usable.
func NewClient(ctx context.Context, rc *rpc.Client) (*Client, error) {
	var rawMeta types.HexBytes
	if err := rc.Call(ctx, &rawMeta, methodMetadata); err != nil {
		return nil, fmt.Errorf("sigil: fetch metadata: %w", err)
	}
	m, err := metadata.Decode(rawMeta)
	if err != nil {
		return nil, err
	}

	var genesis types.Hash
	if err := rc.Call(ctx, &genesis, methodBlockHash, 0); err != nil {
		return nil, fmt.Errorf("sigil: fetch genesis hash: %w", err)
	}

	var version RuntimeVersion
	if err := rc.Call(ctx, &version, methodRuntimeVersion); err != nil {
		return nil, fmt.Errorf("sigil: fetch runtime version: %w", err)
	}

	return &Client{
		rpc:     rc,
		meta:    m,
		genesis: genesis,
		version: version,
		network: ss58Network(m),
		storage: storage.NewClient(rc, m),
	}, nil
}

// ss58Network reads the chain's declared address prefix, falling
// back to the generic one.
func ss58Network(m *metadata.Metadata) uint16 {
	c, err := m.Constant("System", "SS58Prefix")
	if err != nil {
		return defaultSS58Network
	}
	v, err := scale.NewReader(c.Value).Uint(2)
	if err != nil {
		return defaultSS58Network
	}
	return uint16(v)
}

// Metadata returns the snapshotted metadata document.
func (c *Client) Metadata() *metadata.Metadata { return c.meta }

// GenesisHash returns the chain's genesis block hash.
func (c *Client) GenesisHash() types.Hash { return c.genesis }

// RuntimeVersion returns the runtime version snapshotted at
// construction.
func (c *Client) RuntimeVersion() RuntimeVersion { return c.version }

// RPC exposes the underlying transport for methods the client does
// not wrap.
func (c *Client) RPC() *rpc.Client { return c.rpc }

// Storage returns the storage query engine bound to this client's
// metadata.
func (c *Client) Storage() *storage.Client { return c.storage }

// Header fetches the header of the block at, or of the node's best
// block when at is nil.
func (c *Client) Header(ctx context.Context, at *types.Hash) (*types.Header, error) {
	var params []any
	if at != nil {
		params = append(params, at)
	}
	var h types.Header
	if err := c.rpc.Call(ctx, &h, methodHeader, params...); err != nil {
		return nil, err
	}
	return &h, nil
}

// FinalizedHead returns the hash of the latest finalized block. With
// the matching header it anchors a mortal era:
//
//	head, _ := client.FinalizedHead(ctx)
//	hdr, _ := client.Header(ctx, &head)
//	opt := sigil.WithEra(extrinsic.Mortal(64, uint64(hdr.Number)), head)
func (c *Client) FinalizedHead(ctx context.Context) (types.Hash, error) {
	var h types.Hash
	if err := c.rpc.Call(ctx, &h, methodFinalizedHead); err != nil {
		return types.Hash{}, err
	}
	return h, nil
}

// AccountNonce asks the node for the account's next transaction
// index. The answer reflects pending pool transactions, so two calls
// around a submission differ by one.
func (c *Client) AccountNonce(ctx context.Context, account types.AccountID) (uint64, error) {
	addr, err := account.SS58(c.network)
	if err != nil {
		return 0, err
	}
	var nonce uint64
	if err := c.rpc.Call(ctx, &nonce, methodNextIndex, addr); err != nil {
		return 0, err
	}
	return nonce, nil
}

// Events reads and decodes the event list of the block at, or of the
// best block when at is nil. A block without events yields nil.
func (c *Client) Events(ctx context.Context, at *types.Hash) ([]events.Record, error) {
	key, err := events.Key(c.meta)
	if err != nil {
		return nil, err
	}
	raw, err := c.storage.Fetch(ctx, key, at)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	return events.Decode(c.meta, raw)
}

// Close tears down the transport. In-flight calls fail and every
// open subscription, watchers included, receives the close as its
// terminal error.
func (c *Client) Close() error { return c.rpc.Close() }
