// Package admin implements the admin endpoint core of a cache-server
// fleet: a single-threaded, readiness-driven TCP listener terminating a
// small text-line administrative protocol (version/stats/flush_all/quit)
// and bridging to sibling worker threads via a best-effort signal fabric.
package admin

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"

	"github.com/joeycumines/logiface"
)

// Admin is the long-lived event-loop object described in spec.md §3: it
// owns the listener, the poller, the wakeup, the session slab, the
// backlog of tokens needing re-visit, the inbound signal receiver, the
// outbound signal fan-out, the log drain, the service version string,
// the poll timeout, and the per-iteration event capacity.
//
// An Admin is built once via New and run once via Run; Run blocks until a
// Shutdown signal is observed on signal_in or the ctx passed to Run is
// canceled. It is not safe to call Run concurrently, and no exported
// method other than Run and Addr is intended to be called from outside
// the loop's own goroutine.
type Admin struct {
	listener Listener
	poller   Poller
	waker    Waker
	slab     *sessionSlab

	backlog []Token

	signalIn  Receiver
	signalOut Fanout

	version       string
	nevent        int
	timeoutMillis int
	useTLS        bool
	factory       AcceptorFactory
	addr          string
	backlogSize   int

	metrics  *metricSet
	logger   *logiface.Logger[*event]
	logDrain LogDrain
	rusage   rusageState

	running int32

	// readyCh is closed once the listener is bound and registered, so
	// callers (principally tests using an ephemeral port) can safely
	// call Addr() after Run has started in another goroutine.
	readyCh   chan struct{}
	boundAddr net.Addr
}

// New constructs an Admin from opts, per spec.md §6's enumerated
// configuration inputs. The listener and poller/wakeup are not bound
// until Run is called, so New itself never touches the network.
func New(opts ...Option) (*Admin, error) {
	c, err := resolveConfig(opts)
	if err != nil {
		return nil, err
	}
	return &Admin{
		signalIn:      c.signalIn,
		signalOut:     c.signalOut,
		version:       c.version,
		nevent:        c.nevent,
		timeoutMillis: c.timeoutMillis,
		useTLS:        c.useTLS,
		factory:       c.acceptorFactory,
		addr:          c.addr,
		backlogSize:   c.backlog,
		metrics:       newMetricSet(c.registerer),
		logger:        c.logger,
		logDrain:      c.logDrain,
		slab:          newSessionSlab(),
		readyCh:       make(chan struct{}),
	}, nil
}

// Addr blocks until Run has bound the listener, then returns its address.
// Chiefly useful in tests that bind an ephemeral (":0") port.
func (a *Admin) Addr() net.Addr {
	<-a.readyCh
	return a.boundAddr
}

// Run binds the listener, poller, and wakeup, then blocks running the
// event loop described in spec.md §4.1 until a Shutdown signal is
// observed on signal_in or ctx is canceled, at which point it
// broadcasts Shutdown to signal_out, wakes siblings, flushes the log
// drain, and returns nil. A nil ctx is treated as context.Background().
//
// Run returns ErrAlreadyRunning if called while already running.
func (a *Admin) Run(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&a.running, 0, 1) {
		return ErrAlreadyRunning
	}
	defer atomic.StoreInt32(&a.running, 0)
	// Only a prior Run has closed readyCh; the channel made by New is kept
	// so an Addr call already waiting on it is released by this Run.
	select {
	case <-a.readyCh:
		a.readyCh = make(chan struct{})
	default:
	}

	if ctx == nil {
		ctx = context.Background()
	}
	signalIn := NewContextReceiver(ctx, a.signalIn)

	factory := a.factory
	if a.useTLS && factory == nil {
		return ErrNoTLSAcceptor
	}

	listener, err := Listen(a.addr, a.backlogSize, factory)
	if err != nil {
		return err
	}
	a.listener = listener
	defer func() { _ = a.listener.Close() }()

	poller, err := newPoller()
	if err != nil {
		return err
	}
	a.poller = poller
	defer func() { _ = a.poller.Close() }()

	waker, err := newWaker()
	if err != nil {
		return err
	}
	a.waker = waker
	defer func() { _ = a.waker.Close() }()

	if err := a.poller.Register(ListenerToken, a.listener.FD(), InterestReadable); err != nil {
		return fmt.Errorf("admin: register listener: %w: %w", ErrRegistrationFailed, err)
	}
	if err := a.poller.Register(WakerToken, a.waker.FD(), InterestReadable); err != nil {
		return fmt.Errorf("admin: register waker: %w: %w", ErrRegistrationFailed, err)
	}

	if addr, err := a.listener.Addr(); err == nil {
		a.boundAddr = addr
	}
	close(a.readyCh)

	events := make([]Event, 0, a.nevent)

	for {
		a.metrics.EventLoop.Inc()
		a.rusage.sample(a.metrics)

		events = events[:0]
		var waitErr error
		events, waitErr = a.poller.Wait(events, a.timeoutMillis)
		if waitErr != nil {
			a.logger.Warning().Err(fmt.Errorf("admin: poll error: %w: %w", ErrPollFailed, waitErr)).Log("admin: poll error")
		} else {
			a.metrics.EventTotal.Add(float64(len(events)))

			for _, ev := range events {
				switch ev.Token {
				case ListenerToken:
					a.acceptOne()
				case WakerToken:
					a.drainWaker()
				default:
					a.sessionEvent(ev)
				}
			}
		}

		if shutdown := a.drainSignals(signalIn); shutdown {
			a.flushLog()
			return nil
		}

		a.flushLog()
	}
}

// flushLog flushes the log drain once per iteration (spec.md §4.1 step
// 7); a failure is logged but never fatal (spec.md §7).
func (a *Admin) flushLog() {
	if a.logDrain == nil {
		return
	}
	if err := a.logDrain.Flush(); err != nil {
		a.logger.Warning().Err(err).Log("admin: log drain flush failed")
	}
}

// drainSignals non-blockingly drains signalIn (signal_in, wrapped with
// Run's ctx so cancellation synthesizes a Shutdown), per spec.md §4.1
// step 6. It returns true once a Shutdown has been observed and fully
// handled (broadcast, sibling wake, ready for Run to return).
func (a *Admin) drainSignals(signalIn Receiver) (shutdown bool) {
	for {
		sig, ok := signalIn.TryReceive()
		if !ok {
			return shutdown
		}
		switch sig {
		case SignalShutdown:
			a.signalOut.TrySendAll(SignalShutdown)
			if err := a.signalOut.Wake(); err != nil {
				a.logger.Emerg().Err(fmt.Errorf("admin: sibling wake failed during shutdown: %w: %w", ErrShutdownBroadcastFailed, err)).Log("admin: sibling wake failed during shutdown")
			}
			shutdown = true
		case SignalFlushAll:
			// No internal action: FlushAll is only ever fan-out on
			// request from a session's own flush_all command (spec.md
			// §4.1 step 6), never acted on when received on signal_in.
		default:
			// Unknown signal kinds are silently tolerated, per spec.md
			// §6's forward-compatibility requirement.
		}
	}
}

// acceptOne implements spec.md §4.3's accept_one, invoked both from
// listener readiness and from backlog drain.
func (a *Admin) acceptOne() {
	a.metrics.SessionAccept.Inc()

	t, err := a.listener.AcceptOne()
	if err != nil {
		if isWouldBlock(err) {
			return
		}
		a.metrics.SessionAcceptEx.Inc()
		a.pushBacklog(ListenerToken)
		return
	}

	startWritable := a.useTLS
	sess := newSession(0, t, a.version, a.metrics, a.signalOut, startWritable)
	tok := a.slab.Insert(sess)
	sess.token = tok

	if err := a.poller.Register(tok, t.FD(), sess.Interest()); err != nil {
		a.logger.Warning().Err(fmt.Errorf("admin: register session: %w: %w", ErrRegistrationFailed, err)).Log("admin: session registration failed")
		a.slab.Remove(tok)
		_ = t.Close()
		a.metrics.SessionAcceptEx.Inc()
		return
	}

	a.metrics.SessionAcceptOK.Inc()
	a.metrics.SessionCurr.Inc()

	// Re-queue the listener so any remaining backlog in the kernel
	// accept queue drains on the next iteration without depending on
	// the poller's edge-vs-level semantics (spec.md §4.3's rationale).
	a.pushBacklog(ListenerToken)
}

// pushBacklog appends tok to the backlog and wakes the loop, per
// spec.md §4.3 steps 3/5.
func (a *Admin) pushBacklog(tok Token) {
	a.backlog = append(a.backlog, tok)
	if err := a.waker.Wake(); err != nil {
		a.logger.Warning().Err(err).Log("admin: self wake failed")
	}
}

// drainWaker implements spec.md §4.1's WakerToken handling: reset the
// wakeup, then drain the backlog, re-attempting accept_one for every
// ListenerToken entry. Session-token backlog entries are reserved for
// future use (spec.md §9) and are never pushed by this package.
func (a *Admin) drainWaker() {
	if err := a.waker.Reset(); err != nil {
		a.logger.Warning().Err(err).Log("admin: waker reset failed")
	}

	pending := a.backlog
	a.backlog = a.backlog[:0]

	for _, tok := range pending {
		if tok == ListenerToken {
			a.acceptOne()
		}
		// Session-token entries are not drained here; see spec.md §9.
	}
}

// sessionEvent implements spec.md §4.2's dispatch for a non-reserved
// token: error check, then write-before-read, then a handshake step.
func (a *Admin) sessionEvent(ev Event) {
	tok := ev.Token
	sess := a.slab.Get(tok)
	if sess == nil {
		// Stale event for an already-closed session; ignore.
		return
	}

	if ev.IsError() {
		a.metrics.EventError.Inc()
		a.closeSession(tok, sess)
		return
	}

	if ev.IsWritable() {
		a.metrics.EventWrite.Inc()
		if err := sess.Write(); err != nil {
			if err == ErrNeedsReregister {
				a.reregister(tok, sess)
			} else {
				a.closeSession(tok, sess)
				return
			}
		}
		if a.slab.Get(tok) == nil {
			return // reregister failed and closed the session
		}
	}

	if ev.IsReadable() {
		a.metrics.EventRead.Inc()
		if err := sess.Read(); err != nil {
			if err == ErrNeedsReregister {
				a.reregister(tok, sess)
			} else {
				a.closeSession(tok, sess)
				return
			}
		}
		if a.slab.Get(tok) == nil {
			return // reregister failed and closed the session
		}
	}

	if err := sess.Handshake(); err != nil {
		if err == ErrNeedsReregister {
			a.reregister(tok, sess)
		} else if !isWouldBlock(err) {
			a.closeSession(tok, sess)
		}
	}
}

// reregister updates the poller's interest set for sess. Failure is
// fatal to the session, never to the loop (spec.md §4.2, §7).
func (a *Admin) reregister(tok Token, sess *Session) {
	if err := a.poller.Reregister(tok, sess.FD(), sess.Interest()); err != nil {
		a.logger.Warning().Err(fmt.Errorf("admin: reregister session: %w: %w", ErrRegistrationFailed, err)).Log("admin: reregister failed, closing session")
		a.closeSession(tok, sess)
	}
}

// closeSession implements spec.md §4.2's close(T): deregister, a
// best-effort final flush of any still-pending outbound bytes (e.g. the
// OK\r\n of a flush_all immediately followed by quit in the same
// packet), then close the transport and release the slab slot.
func (a *Admin) closeSession(tok Token, sess *Session) {
	if a.slab.Get(tok) == nil {
		return
	}
	_ = a.poller.Deregister(tok, sess.FD())
	_ = sess.flushPending()
	_ = sess.Close()
	a.metrics.SessionClose.Inc()
	a.slab.Remove(tok)
	a.metrics.SessionCurr.Dec()
}

// SessionCount reports the number of live sessions, for tests and
// diagnostics (mirrors ADMIN_SESSION_CURR).
func (a *Admin) SessionCount() int { return a.slab.Len() }
