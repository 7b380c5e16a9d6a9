package admin

import (
	"context"
)

// Signal is a control-plane message exchanged between the Admin loop and
// sibling worker threads, per spec.md §4.5/§6.
type Signal int

const (
	// SignalFlushAll instructs a sibling to flush its cache.
	SignalFlushAll Signal = iota

	// SignalShutdown instructs a sibling (and the Admin loop itself) to
	// terminate.
	SignalShutdown
)

func (s Signal) String() string {
	switch s {
	case SignalFlushAll:
		return "FlushAll"
	case SignalShutdown:
		return "Shutdown"
	default:
		return "Unknown"
	}
}

// Receiver is the receive end of the inbound signal channel from the
// parent/supervisor thread (spec.md §4.5's signal_in). TryReceive must
// never block.
type Receiver interface {
	// TryReceive returns the next pending Signal, or ok=false if none is
	// currently available. Unknown signal values must be tolerated by
	// forward-compatible callers (spec.md §6), not rejected here.
	TryReceive() (sig Signal, ok bool)
}

// Fanout is the outbound signal broadcast endpoint to N sibling worker
// threads (spec.md §4.5's signal_out).
type Fanout interface {
	// TrySendAll best-effort broadcasts sig to every sibling. Failures
	// (a sibling dead or saturated) are not reported as an aggregate
	// error; per spec.md §4.5 they are ignored by the caller.
	TrySendAll(sig Signal)

	// Wake unblocks every sibling's own poller so it observes the signal
	// promptly. A failure here during shutdown is fatal and logged at the
	// highest severity (spec.md §4.5, §7).
	Wake() error
}

// ReceiverFunc adapts a function to a Receiver.
type ReceiverFunc func() (Signal, bool)

// TryReceive implements Receiver.
func (f ReceiverFunc) TryReceive() (Signal, bool) { return f() }

// chanReceiver is the default Receiver, backed by a buffered channel. It
// satisfies spec.md §1's assumption of "bounded MPMC channels with a
// wake-up primitive" for callers who don't bring their own transport.
//
// Grounded on joeycumines-go-utilpkg/longpoll/channel.go's
// context-aware, non-blocking channel consumption style.
type chanReceiver struct {
	ch <-chan Signal
}

// NewChannelReceiver wraps a channel as a Receiver. Sends to ch must never
// block (the channel should be adequately buffered, or paired with a
// select+default sender), consistent with signal_in being non-blocking
// from the Admin loop's perspective.
func NewChannelReceiver(ch <-chan Signal) Receiver {
	return &chanReceiver{ch: ch}
}

func (r *chanReceiver) TryReceive() (Signal, bool) {
	select {
	case sig, ok := <-r.ch:
		if !ok {
			return 0, false
		}
		return sig, true
	default:
		return 0, false
	}
}

// chanFanout is the default Fanout, broadcasting to a fixed set of
// buffered sibling channels plus an associated Waker per sibling.
type chanFanout struct {
	siblings []chan<- Signal
	wakers   []Waker
}

// NewChannelFanout constructs a Fanout over the given sibling channels and
// their associated Wakers (one Waker per sibling poller, so Wake() can
// unblock each of them in turn). The two slices are used independently:
// wakers may be nil or shorter than siblings, and Wake skips nil entries.
func NewChannelFanout(siblings []chan<- Signal, wakers []Waker) Fanout {
	return &chanFanout{siblings: siblings, wakers: wakers}
}

func (f *chanFanout) TrySendAll(sig Signal) {
	for _, ch := range f.siblings {
		select {
		case ch <- sig:
		default:
			// Best-effort: a full or dead sibling channel is ignored,
			// per spec.md §4.5.
		}
	}
}

func (f *chanFanout) Wake() error {
	var firstErr error
	for _, w := range f.wakers {
		if w == nil {
			continue
		}
		if err := w.Wake(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// noopFanout is used when an Admin is constructed without siblings (e.g.
// in tests, or a single-process deployment); TrySendAll and Wake are no-ops.
type noopFanout struct{}

func (noopFanout) TrySendAll(Signal) {}
func (noopFanout) Wake() error       { return nil }

// NewNoopFanout returns a Fanout with no siblings.
func NewNoopFanout() Fanout { return noopFanout{} }

// noopReceiver never has a pending signal.
type noopReceiver struct{}

func (noopReceiver) TryReceive() (Signal, bool) { return 0, false }

// NewNoopReceiver returns a Receiver that never yields a signal. Useful
// for embedding an Admin instance that is stopped only via context
// cancellation.
func NewNoopReceiver() Receiver { return noopReceiver{} }

// contextReceiver adapts a context.Context's cancellation into a single
// SignalShutdown delivery, for callers who prefer context-based shutdown
// over wiring a real signal_in channel.
type contextReceiver struct {
	ctx    context.Context
	sent   bool
	inner  Receiver
}

// NewContextReceiver wraps inner (which may be NewNoopReceiver()) so that,
// once ctx is done, a single SignalShutdown is synthesized.
func NewContextReceiver(ctx context.Context, inner Receiver) Receiver {
	if inner == nil {
		inner = NewNoopReceiver()
	}
	return &contextReceiver{ctx: ctx, inner: inner}
}

func (r *contextReceiver) TryReceive() (Signal, bool) {
	if sig, ok := r.inner.TryReceive(); ok {
		return sig, ok
	}
	if !r.sent {
		select {
		case <-r.ctx.Done():
			r.sent = true
			return SignalShutdown, true
		default:
		}
	}
	return 0, false
}
