package admin

import (
	"errors"
	"fmt"
)

// Standard errors returned by this package.
var (
	// ErrAlreadyRunning is returned by Run when called on an Admin that is
	// already running.
	ErrAlreadyRunning = errors.New("admin: already running")

	// ErrClosed is returned by Session.Read and Session.Write when called
	// on a session that has already been closed.
	ErrClosed = errors.New("admin: closed")

	// ErrRegistrationFailed indicates a registration (or reregistration)
	// with the poller failed. For a session it is logged and closes only
	// that session, never the loop; for the listener or the waker, Run
	// returns it before the loop starts.
	ErrRegistrationFailed = errors.New("admin: poller registration failed")

	// ErrClientHangup indicates the peer performed an orderly close
	// (a zero-byte read).
	ErrClientHangup = errors.New("admin: client hangup")

	// ErrShouldHangup indicates the session requested its own close (a
	// Quit command), as distinct from a transport-level error.
	ErrShouldHangup = errors.New("admin: session requested close")

	// ErrMalformedRequest indicates a framing error: the line is not a
	// recognized, well-formed request.
	ErrMalformedRequest = errors.New("admin: malformed request")

	// ErrNoTLSAcceptor is returned by New when WithTLS is given a nil
	// AcceptorFactory.
	ErrNoTLSAcceptor = errors.New("admin: use_tls set without a TLS acceptor factory")

	// ErrPollFailed wraps a failed Poller.Wait call. Logged at Warning and
	// otherwise tolerated: the loop continues to its next iteration
	// rather than returning (spec.md §7).
	ErrPollFailed = errors.New("admin: poll failed")

	// ErrShutdownBroadcastFailed wraps a failed Fanout.Wake call made
	// while handling a Shutdown signal. Logged at the highest configured
	// severity; Run still returns nil afterward (spec.md §4.5, §7).
	ErrShutdownBroadcastFailed = errors.New("admin: shutdown broadcast wake failed")
)

// wouldBlockError is implemented by transport errors that mean "no data
// available right now," which callers must treat as success-with-no-bytes,
// never as a fatal transport error.
type wouldBlockError interface {
	Temporary() bool
}

// isWouldBlock reports whether err represents a non-fatal, retry-later
// condition (EAGAIN/EWOULDBLOCK and friends), as opposed to a fatal
// transport error.
func isWouldBlock(err error) bool {
	if err == nil {
		return false
	}
	var tmp wouldBlockError
	if errors.As(err, &tmp) {
		return tmp.Temporary()
	}
	return false
}

// wrapf wraps err with a formatted message, preserving it for errors.Is/As.
func wrapf(format string, err error, args ...any) error {
	args = append(args, err)
	return fmt.Errorf(format+": %w", args...)
}
