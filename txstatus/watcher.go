package txstatus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/sigil-dev/sigil/rpc"
)

var (
	// ErrWatchDone is returned by Next once the terminal status has
	// been consumed.
	ErrWatchDone = errors.New("txstatus: watch finished")

	// ErrPostTerminal is returned by Next when the node pushed more
	// reports behind a terminal status.
	ErrPostTerminal = errors.New("txstatus: status report after terminal")
)

// Watcher delivers the status sequence for one submitted extrinsic,
// in node order. Next is meant for a single consumer; Close may be
// called from any goroutine.
type Watcher struct {
	sub *rpc.Subscription

	mu     sync.Mutex
	done   bool
	err    error
	closed bool
}

// NewWatcher wraps a status subscription, typically one opened by
// author_submitAndWatchExtrinsic.
func NewWatcher(sub *rpc.Subscription) *Watcher {
	return &Watcher{sub: sub}
}

// Next blocks for the next status report. When the terminal report
// arrives the subscription is released before it is returned, and
// later calls report ErrWatchDone, or ErrPostTerminal if the node
// kept sending after the terminal status. A dead transport surfaces
// as the rpc package's transport error once queued reports drain.
func (w *Watcher) Next(ctx context.Context) (Status, error) {
	w.mu.Lock()
	if w.done {
		err := w.err
		w.mu.Unlock()
		return Status{}, err
	}
	w.mu.Unlock()

	raw, err := w.sub.Next(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			// The caller gave up on this report, not on the watch.
			return Status{}, err
		}
		w.finish(err)
		return Status{}, err
	}

	var st Status
	if err := json.Unmarshal(raw, &st); err != nil {
		w.finish(err)
		return Status{}, err
	}

	if st.Terminal() {
		queued := w.drainQueued()
		_ = w.sub.Unsubscribe(ctx)
		if queued > 0 {
			w.finish(fmt.Errorf("%w: %d reports queued behind %s", ErrPostTerminal, queued, st.Kind))
		} else {
			w.finish(ErrWatchDone)
		}
	}
	return st, nil
}

// drainQueued pops whatever the dispatch loop queued behind the
// terminal report. A conforming node sends nothing after terminal.
func (w *Watcher) drainQueued() int {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n := 0
	for {
		if _, err := w.sub.Next(ctx); err != nil {
			return n
		}
		n++
	}
}

func (w *Watcher) finish(err error) {
	w.mu.Lock()
	if !w.done {
		w.done = true
		w.err = err
	}
	w.mu.Unlock()
}

// Close abandons the watch and releases the subscription, server
// side included. Safe to call at any point and more than once.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()
	w.finish(ErrWatchDone)
	return w.sub.Unsubscribe(context.Background())
}
