package txstatus_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sigil-dev/sigil/rpc"
	sigiltest "github.com/sigil-dev/sigil/testing"
	"github.com/sigil-dev/sigil/txstatus"
	"github.com/sigil-dev/sigil/types"
)

var blockHash = types.Hash{0xaa, 0xbb, 0xcc}

func TestStatus_UnmarshalShapes(t *testing.T) {
	cases := []struct {
		in   string
		want txstatus.Status
	}{
		{`"future"`, txstatus.Status{Kind: txstatus.Future}},
		{`"ready"`, txstatus.Status{Kind: txstatus.Ready}},
		{`"dropped"`, txstatus.Status{Kind: txstatus.Dropped}},
		{`"invalid"`, txstatus.Status{Kind: txstatus.Invalid}},
		{`{"broadcast":["peer-a","peer-b"]}`, txstatus.Status{Kind: txstatus.Broadcast, Peers: []string{"peer-a", "peer-b"}}},
		{`{"inBlock":"` + blockHash.Hex() + `"}`, txstatus.Status{Kind: txstatus.InBlock, Hash: blockHash}},
		{`{"retracted":"` + blockHash.Hex() + `"}`, txstatus.Status{Kind: txstatus.Retracted, Hash: blockHash}},
		{`{"finalityTimeout":"` + blockHash.Hex() + `"}`, txstatus.Status{Kind: txstatus.FinalityTimeout, Hash: blockHash}},
		{`{"finalized":"` + blockHash.Hex() + `"}`, txstatus.Status{Kind: txstatus.Finalized, Hash: blockHash}},
		{`{"usurped":"` + blockHash.Hex() + `"}`, txstatus.Status{Kind: txstatus.Usurped, Hash: blockHash}},
	}
	for _, c := range cases {
		var got txstatus.Status
		if err := json.Unmarshal([]byte(c.in), &got); err != nil {
			t.Fatalf("unmarshal %s: %v", c.in, err)
		}
		if got.Kind != c.want.Kind || got.Hash != c.want.Hash {
			t.Fatalf("unmarshal %s = %v, want %v", c.in, got, c.want)
		}
		if len(got.Peers) != len(c.want.Peers) {
			t.Fatalf("unmarshal %s peers = %v", c.in, got.Peers)
		}
		for i := range got.Peers {
			if got.Peers[i] != c.want.Peers[i] {
				t.Fatalf("unmarshal %s peer %d = %q", c.in, i, got.Peers[i])
			}
		}
	}
}

func TestStatus_UnmarshalRejects(t *testing.T) {
	bad := []string{
		`"banana"`,
		`"finalized"`,
		`{"finalized":"0x00","ready":null}`,
		`{"mystery":"0x00"}`,
		`{"finalized":7}`,
		`{"broadcast":"peer"}`,
		`5`,
	}
	for _, in := range bad {
		var st txstatus.Status
		if err := json.Unmarshal([]byte(in), &st); err == nil {
			t.Fatalf("unmarshal %s succeeded, want error", in)
		}
	}
}

func TestStatus_MarshalRoundTrip(t *testing.T) {
	statuses := []txstatus.Status{
		{Kind: txstatus.Future},
		{Kind: txstatus.Ready},
		{Kind: txstatus.Broadcast, Peers: []string{"p1"}},
		{Kind: txstatus.InBlock, Hash: blockHash},
		{Kind: txstatus.Retracted, Hash: blockHash},
		{Kind: txstatus.FinalityTimeout, Hash: blockHash},
		{Kind: txstatus.Finalized, Hash: blockHash},
		{Kind: txstatus.Usurped, Hash: blockHash},
		{Kind: txstatus.Dropped},
		{Kind: txstatus.Invalid},
	}
	for _, st := range statuses {
		data, err := json.Marshal(st)
		if err != nil {
			t.Fatalf("marshal %v: %v", st, err)
		}
		var got txstatus.Status
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal %s: %v", data, err)
		}
		if got.Kind != st.Kind || got.Hash != st.Hash || len(got.Peers) != len(st.Peers) {
			t.Fatalf("round trip %v via %s = %v", st, data, got)
		}
	}
}

func TestStatus_Terminal(t *testing.T) {
	terminal := map[txstatus.Kind]bool{
		txstatus.Future:          false,
		txstatus.Ready:           false,
		txstatus.Broadcast:       false,
		txstatus.InBlock:         false,
		txstatus.Retracted:       false,
		txstatus.FinalityTimeout: true,
		txstatus.Finalized:       true,
		txstatus.Usurped:         true,
		txstatus.Dropped:         true,
		txstatus.Invalid:         true,
	}
	for k, want := range terminal {
		if k.Terminal() != want {
			t.Fatalf("%s.Terminal() = %v, want %v", k, k.Terminal(), want)
		}
	}
}

func TestStatus_String(t *testing.T) {
	st := txstatus.Status{Kind: txstatus.Finalized, Hash: blockHash}
	if got := st.String(); !strings.HasPrefix(got, "Finalized(0xaabbcc") {
		t.Fatalf("String() = %q", got)
	}
	b := txstatus.Status{Kind: txstatus.Broadcast, Peers: []string{"a", "b"}}
	if got := b.String(); got != "Broadcast(2 peers)" {
		t.Fatalf("String() = %q", got)
	}
	if got := (txstatus.Status{Kind: txstatus.Ready}).String(); got != "Ready" {
		t.Fatalf("String() = %q", got)
	}
}

// newWatch opens a watch subscription against node and wraps it.
func newWatch(t *testing.T, node *sigiltest.MockNode) (*rpc.Client, *rpc.Subscription, *txstatus.Watcher) {
	t.Helper()
	node.Handle("mock_fence", func([]json.RawMessage) (any, error) { return true, nil })
	client := rpc.NewClient(node)
	t.Cleanup(func() { client.Close() })
	sub, err := client.Subscribe(context.Background(),
		"author_submitAndWatchExtrinsic", "author_unwatchExtrinsic", "author_extrinsicUpdate", "0x1234")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	return client, sub, txstatus.NewWatcher(sub)
}

// fence round-trips a call so every notification pushed before it is
// already dispatched when it returns.
func fence(t *testing.T, client *rpc.Client) {
	t.Helper()
	if err := client.Call(context.Background(), nil, "mock_fence"); err != nil {
		t.Fatalf("fence: %v", err)
	}
}

func TestWatcher_DeliversLifecycleInOrder(t *testing.T) {
	node := sigiltest.NewMockNode()
	node.Script(
		txstatus.Status{Kind: txstatus.Ready},
		txstatus.Status{Kind: txstatus.InBlock, Hash: blockHash},
		txstatus.Status{Kind: txstatus.Retracted, Hash: blockHash},
		txstatus.Status{Kind: txstatus.InBlock, Hash: blockHash},
		txstatus.Status{Kind: txstatus.Finalized, Hash: blockHash},
	)
	_, _, w := newWatch(t, node)

	want := []txstatus.Kind{
		txstatus.Ready, txstatus.InBlock, txstatus.Retracted, txstatus.InBlock, txstatus.Finalized,
	}
	for i, k := range want {
		st, err := w.Next(context.Background())
		if err != nil {
			t.Fatalf("Next %d: %v", i, err)
		}
		if st.Kind != k {
			t.Fatalf("status %d = %s, want %s", i, st.Kind, k)
		}
	}

	// Terminal consumed: the watch is done and the server slot is
	// already released.
	if _, err := w.Next(context.Background()); !errors.Is(err, txstatus.ErrWatchDone) {
		t.Fatalf("Next after terminal: %v, want ErrWatchDone", err)
	}
	if n := node.OpenSubscriptions(); n != 0 {
		t.Fatalf("%d subscriptions still open", n)
	}
}

func TestWatcher_PostTerminalViolation(t *testing.T) {
	node := sigiltest.NewMockNode()
	client, sub, w := newWatch(t, node)

	node.Notify(sub.ID(), txstatus.Status{Kind: txstatus.Finalized, Hash: blockHash})
	node.Notify(sub.ID(), txstatus.Status{Kind: txstatus.Ready})
	fence(t, client)

	st, err := w.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if st.Kind != txstatus.Finalized {
		t.Fatalf("status = %s", st.Kind)
	}
	if _, err := w.Next(context.Background()); !errors.Is(err, txstatus.ErrPostTerminal) {
		t.Fatalf("Next = %v, want ErrPostTerminal", err)
	}
	if n := node.OpenSubscriptions(); n != 0 {
		t.Fatalf("%d subscriptions still open", n)
	}
}

func TestWatcher_MalformedStatus(t *testing.T) {
	node := sigiltest.NewMockNode()
	client, sub, w := newWatch(t, node)

	node.Notify(sub.ID(), json.RawMessage(`{"mystery":true}`))
	fence(t, client)

	_, err := w.Next(context.Background())
	if err == nil || !strings.Contains(err.Error(), "unknown status") {
		t.Fatalf("Next = %v, want decode error", err)
	}
	// The error pins; only Close remains useful.
	if _, err2 := w.Next(context.Background()); !errors.Is(err2, err) && err2.Error() != err.Error() {
		t.Fatalf("second Next = %v, want pinned %v", err2, err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if n := node.OpenSubscriptions(); n != 0 {
		t.Fatalf("%d subscriptions still open after Close", n)
	}
}

func TestWatcher_CloseMidWatch(t *testing.T) {
	node := sigiltest.NewMockNode()
	_, _, w := newWatch(t, node)

	got := make(chan error, 1)
	go func() {
		_, err := w.Next(context.Background())
		got <- err
	}()

	// Give the consumer a moment to block, then abandon the watch.
	time.Sleep(10 * time.Millisecond)
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := <-got; !errors.Is(err, rpc.ErrUnsubscribed) {
		t.Fatalf("blocked Next = %v, want ErrUnsubscribed", err)
	}
	if _, err := w.Next(context.Background()); !errors.Is(err, txstatus.ErrWatchDone) {
		t.Fatalf("Next after Close = %v, want ErrWatchDone", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("repeat Close: %v", err)
	}
	if n := node.OpenSubscriptions(); n != 0 {
		t.Fatalf("%d subscriptions still open", n)
	}
}

func TestWatcher_TransportLoss(t *testing.T) {
	node := sigiltest.NewMockNode()
	client, sub, w := newWatch(t, node)

	node.Notify(sub.ID(), txstatus.Status{Kind: txstatus.Ready})
	fence(t, client)
	node.Close()

	st, err := w.Next(context.Background())
	if err != nil {
		t.Fatalf("queued status after loss: %v", err)
	}
	if st.Kind != txstatus.Ready {
		t.Fatalf("status = %s", st.Kind)
	}
	_, err = w.Next(context.Background())
	if _, ok := rpc.IsTransportError(err); !ok {
		t.Fatalf("Next = %v, want TransportError", err)
	}
	// Terminal for the watch as well.
	_, err2 := w.Next(context.Background())
	if _, ok := rpc.IsTransportError(err2); !ok {
		t.Fatalf("repeat Next = %v, want pinned TransportError", err2)
	}
}

func TestWatcher_NextHonorsContext(t *testing.T) {
	node := sigiltest.NewMockNode()
	client, sub, w := newWatch(t, node)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := w.Next(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Next = %v, want DeadlineExceeded", err)
	}

	// A context miss does not end the watch.
	node.Notify(sub.ID(), txstatus.Status{Kind: txstatus.Ready})
	fence(t, client)
	st, err := w.Next(context.Background())
	if err != nil || st.Kind != txstatus.Ready {
		t.Fatalf("Next after timeout = %v, %v", st, err)
	}
}
