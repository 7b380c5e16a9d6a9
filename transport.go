package admin

import (
	"golang.org/x/sys/unix"
)

// HandshakeState tracks TLS negotiation progress for a Session, per
// spec.md §3 ("a TLS-handshake state (none/pending/done if TLS is
// configured; otherwise permanently done)").
type HandshakeState uint8

const (
	// HandshakeNone means TLS isn't configured for this transport; the
	// state is permanently "done".
	HandshakeNone HandshakeState = iota
	// HandshakePending means a handshake step is still required.
	HandshakePending
	// HandshakeDone means the handshake has completed.
	HandshakeDone
)

// Transport is the uniform capability set spec.md §9 assigns to both
// transport variants (plain TCP, TLS-wrapped TCP): "accept, fill, flush,
// receive, send, do_handshake, register, reregister, interest, remaining,
// write_pending." accept/register/reregister live on Listener/Poller;
// the rest live here.
type Transport interface {
	// FD returns the underlying file descriptor, for Poller registration.
	FD() int

	// Fill reads as many bytes as are currently available (non-blocking)
	// into the session's inbound buffer, appending to dst and returning
	// the extended slice. Returns (dst, 0, nil) on orderly close (n==0
	// read): callers must treat that as ErrClientHangup, not success.
	// Returns a wouldBlockError when no bytes are currently available.
	Fill(dst []byte) ([]byte, int, error)

	// Flush writes as much of pending as possible (non-blocking),
	// returning the number of bytes consumed from the front of pending.
	// A short write (n < len(pending)) is not an error; neither is a
	// wouldBlockError with n == 0.
	Flush(pending []byte) (int, error)

	// HandshakeState reports the current TLS negotiation state.
	HandshakeState() HandshakeState

	// DoHandshake drives one step of a pending TLS handshake. No-op,
	// returning HandshakeDone, when HandshakeState is HandshakeNone.
	DoHandshake() (HandshakeState, error)

	// Close releases the underlying descriptor.
	Close() error
}

// plainTransport is the non-TLS Transport, a thin non-blocking wrapper
// over a raw socket fd. Grounded on widaT-netpoll/poll_default_linux.go's
// raw unix-syscall read/write pattern (readv/sendmsg via syscall.Recvmsg
// et al.), adapted to golang.org/x/sys/unix and to this package's
// would-block error convention instead of bare syscall.EAGAIN checks.
type plainTransport struct {
	fd int
}

// newPlainTransport wraps fd, which must already be non-blocking.
func newPlainTransport(fd int) *plainTransport {
	return &plainTransport{fd: fd}
}

func (t *plainTransport) FD() int { return t.fd }

func (t *plainTransport) Fill(dst []byte) ([]byte, int, error) {
	var buf [4096]byte
	n, err := unix.Read(t.fd, buf[:])
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR {
			return dst, 0, errTransportWouldBlock
		}
		return dst, 0, wrapf("admin: read", err)
	}
	if n == 0 {
		return dst, 0, nil
	}
	return append(dst, buf[:n]...), n, nil
}

func (t *plainTransport) Flush(pending []byte) (int, error) {
	if len(pending) == 0 {
		return 0, nil
	}
	n, err := unix.Write(t.fd, pending)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR {
			return 0, errTransportWouldBlock
		}
		return 0, wrapf("admin: write", err)
	}
	return n, nil
}

func (t *plainTransport) HandshakeState() HandshakeState { return HandshakeNone }

func (t *plainTransport) DoHandshake() (HandshakeState, error) { return HandshakeDone, nil }

func (t *plainTransport) Close() error { return unix.Close(t.fd) }

// errTransportWouldBlock is the canonical would-block sentinel for
// Transport methods.
type errTransportWouldBlockType struct{}

func (errTransportWouldBlockType) Error() string   { return "admin: transport would block" }
func (errTransportWouldBlockType) Temporary() bool { return true }

var errTransportWouldBlock error = errTransportWouldBlockType{}

// AcceptorFactory wraps a freshly accepted, non-blocking raw fd into a
// Transport. The default (nil) factory yields plainTransport. TLS
// construction is explicitly out of scope for this package (it is
// "a pluggable acceptor factory" per spec.md §1); a caller wanting TLS
// supplies a factory that wraps fd with its own handshake/record-layer
// logic and reports HandshakeState/​DoHandshake accordingly.
type AcceptorFactory func(fd int) (Transport, error)

func defaultAcceptorFactory(fd int) (Transport, error) {
	return newPlainTransport(fd), nil
}
