package admin

// sessionState enumerates the states named in spec.md §4.4. TLS-only
// states collapse to Ready immediately for a plain-TCP Transport (one
// whose HandshakeState is always HandshakeNone).
type sessionState uint8

const (
	stateHandshakingIn sessionState = iota
	stateHandshakingOut
	stateReady
	stateHalfClosed
	stateClosed
)

// Session is a per-connection object: transport, buffers, TLS handshake
// state, request parser, last registered interest, per spec.md §3.
//
// A Session is mutated only by the event loop goroutine (spec.md §5); it
// carries no internal synchronization.
type Session struct {
	token     Token
	transport Transport
	state     sessionState
	interest  Interest

	in  []byte // unparsed inbound bytes
	out []byte // outbound bytes not yet flushed

	version string
	metrics *metricSet
	fanout  Fanout
}

// newSession wraps an accepted Transport. The initial interest is
// writable when a handshake is pending and the transport variant starts
// by writing (e.g. a TLS server sending ServerHello first on some
// configurations), readable otherwise — per spec.md §4.4 ("Initial
// interest is derived from the session"). This package's bundled plain
// Transport has no handshake, so sessions start Ready/readable. The Admin
// passes startWritable as true whenever it was configured WithTLS, so a
// pending handshake from such a factory starts writable.
func newSession(tok Token, t Transport, version string, m *metricSet, fanout Fanout, startWritable bool) *Session {
	s := &Session{
		token:     tok,
		transport: t,
		version:   version,
		metrics:   m,
		fanout:    fanout,
	}
	if t.HandshakeState() == HandshakeNone {
		s.state = stateReady
		s.interest = InterestReadable
	} else {
		s.state = stateHandshakingIn
		if startWritable {
			s.state = stateHandshakingOut
			s.interest = InterestWritable
		} else {
			s.interest = InterestReadable
		}
	}
	return s
}

// Interest returns the session's last-registered interest set, for
// Poller.Register at accept time.
func (s *Session) Interest() Interest { return s.interest }

// FD returns the underlying descriptor, for Poller registration.
func (s *Session) FD() int { return s.transport.FD() }

// Read implements spec.md §4.2's read(T): fill the inbound buffer, then
// parse and dispatch every complete request currently buffered (looping
// rather than stopping after one, so pipelined commands delivered in a
// single readiness event are all observed in this iteration rather than
// depending on the socket becoming readable again for bytes already in
// our own buffer).
func (s *Session) Read() error {
	if s.state == stateClosed {
		return ErrClosed
	}
	buf, n, err := s.transport.Fill(s.in)
	if err != nil {
		if !isWouldBlock(err) {
			return err
		}
		// would-block: no new bytes, but bytes already buffered from a
		// prior read (if any) are still parsed below.
	} else if n == 0 {
		return ErrClientHangup
	} else {
		s.in = buf
	}

	for {
		cmd, consumed, perr := parseRequest(s.in)
		if perr != nil {
			if isWouldBlock(perr) {
				break
			}
			if perr == ErrUnknownCommand {
				// Resolved per spec.md §9: respond ERROR\r\n, keep the
				// session open, rather than treating it as fatal framing.
				s.in = s.in[consumed:]
				if err := writeErrorResponse(&sessionWriter{s}); err != nil {
					return err
				}
				s.metrics.ResponseCompose.Inc()
				continue
			}
			return perr
		}
		s.metrics.RequestParse.Inc()
		s.in = s.in[consumed:]

		if err := s.dispatch(cmd); err != nil {
			return err
		}
		s.metrics.ResponseCompose.Inc()
	}

	if err := s.flushPending(); err != nil {
		return err
	}

	if len(s.out) > 0 || len(s.in) > 0 {
		s.interest = s.computeInterest()
		return ErrNeedsReregister
	}
	return nil
}

// dispatch handles one parsed Command, per spec.md §4.2's per-command
// table.
func (s *Session) dispatch(cmd Command) error {
	switch cmd {
	case CommandVersion:
		return writeVersionResponse(&sessionWriter{s}, s.version)
	case CommandStats:
		return writeStatsResponse(&sessionWriter{s}, s.metrics.snapshot())
	case CommandFlushAll:
		if s.fanout != nil {
			s.fanout.TrySendAll(SignalFlushAll)
		}
		return writeOKResponse(&sessionWriter{s})
	case CommandQuit:
		return ErrShouldHangup
	default:
		return writeErrorResponse(&sessionWriter{s})
	}
}

// sessionWriter adapts Session.out (an append-only byte slice) to
// io.Writer, so parser.go's writeXResponse helpers can target it
// directly without knowing about Session's buffer management.
type sessionWriter struct{ s *Session }

func (w *sessionWriter) Write(p []byte) (int, error) {
	w.s.out = append(w.s.out, p...)
	return len(p), nil
}

// flushPending writes as much of s.out as the transport will currently
// accept, per spec.md §4.2's write(T).
func (s *Session) flushPending() error {
	for len(s.out) > 0 {
		n, err := s.transport.Flush(s.out)
		if n > 0 {
			s.out = s.out[n:]
		}
		if err != nil {
			if isWouldBlock(err) {
				break
			}
			return err
		}
		if n == 0 {
			break
		}
	}
	return nil
}

// Write implements spec.md §4.2's write(T): flush the outbound buffer;
// would-block is not an error.
func (s *Session) Write() error {
	if s.state == stateClosed {
		return ErrClosed
	}
	if err := s.flushPending(); err != nil {
		return err
	}
	if len(s.out) > 0 {
		s.interest = s.computeInterest()
		return ErrNeedsReregister
	}
	return nil
}

// Handshake implements spec.md §4.2/§4.4's handshake(T): drive one TLS
// handshake step; on completion, if unconsumed inbound bytes remain,
// signal a reregister.
func (s *Session) Handshake() error {
	if s.transport.HandshakeState() != HandshakePending && s.state != stateHandshakingIn && s.state != stateHandshakingOut {
		return nil
	}
	hs, err := s.transport.DoHandshake()
	if err != nil {
		if isWouldBlock(err) {
			return nil
		}
		return err
	}
	if hs == HandshakeDone {
		s.state = stateReady
		s.interest = s.computeInterest()
		if len(s.in) > 0 {
			return ErrNeedsReregister
		}
	}
	return nil
}

// computeInterest derives the interest set per spec.md §5's backpressure
// rule: readable and writable while outbound bytes are pending, readable
// only once outbound is drained.
func (s *Session) computeInterest() Interest {
	if len(s.out) > 0 {
		return InterestReadable | InterestWritable
	}
	return InterestReadable
}

// Close releases the underlying transport. Calls after the first are
// no-ops returning nil. The Admin
// event loop is responsible for slab/metrics bookkeeping (spec.md §4.2's
// close(T)), not Session itself.
func (s *Session) Close() error {
	if s.state == stateClosed {
		return nil
	}
	s.state = stateClosed
	return s.transport.Close()
}

// ErrNeedsReregister is a sentinel, internal to this package, signaling
// that the caller (admin.go) must Poller.Reregister this session with
// its updated interest set. It is not a failure — admin.go treats it
// distinctly from a real error.
var ErrNeedsReregister = newSentinelError("admin: needs reregister")

type sentinelError string

func newSentinelError(s string) error { return sentinelError(s) }
func (e sentinelError) Error() string { return string(e) }
