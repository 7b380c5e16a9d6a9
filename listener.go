package admin

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// Listener is a non-blocking TCP acceptor, optionally wrapping accepted
// connections via an AcceptorFactory (spec.md §2 item 3, §9).
type Listener interface {
	// FD returns the listening socket's descriptor, for Poller
	// registration under ListenerToken.
	FD() int

	// AcceptOne attempts a single non-blocking accept, per spec.md §4.3.
	// Returns a wouldBlockError when the accept queue is currently empty.
	AcceptOne() (Transport, error)

	// Addr returns the address the listener is bound to, resolving an
	// ephemeral (":0") port to the one the kernel actually assigned.
	Addr() (net.Addr, error)

	// Close releases the listening socket.
	Close() error
}

// tcpListener is the default Listener, backed by a raw non-blocking
// socket constructed directly via golang.org/x/sys/unix rather than the
// net package, so that accepted connection fds can be handed to our own
// Poller instead of Go's runtime netpoller.
//
// Grounded on widaT-netpoll/poll_default_linux.go's raw-syscall approach
// to socket lifecycle management (that file manages an epoll/eventfd
// pair directly via syscall; this applies the same idiom to socket
// creation/accept via golang.org/x/sys/unix, consistent with this
// package's wakeup/poller files).
type tcpListener struct {
	fd      int
	factory AcceptorFactory
}

// Listen binds and listens on addr (host:port), returning a Listener
// ready for Poller registration. backlog sizes the kernel accept queue.
func Listen(addr string, backlog int, factory AcceptorFactory) (Listener, error) {
	if factory == nil {
		factory = defaultAcceptorFactory
	}

	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, wrapf("admin: resolve listen addr", err)
	}

	domain := unix.AF_INET
	sa := &unix.SockaddrInet4{Port: tcpAddr.Port}
	var sa6 *unix.SockaddrInet6
	if ip4 := tcpAddr.IP.To4(); ip4 != nil {
		copy(sa.Addr[:], ip4)
	} else {
		domain = unix.AF_INET6
		sa6 = &unix.SockaddrInet6{Port: tcpAddr.Port}
		copy(sa6.Addr[:], tcpAddr.IP.To16())
	}

	fd, err := unix.Socket(domain, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, wrapf("admin: socket", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, wrapf("admin: setsockopt SO_REUSEADDR", err)
	}

	var bindErr error
	if domain == unix.AF_INET6 {
		bindErr = unix.Bind(fd, sa6)
	} else {
		bindErr = unix.Bind(fd, sa)
	}
	if bindErr != nil {
		unix.Close(fd)
		return nil, wrapf("admin: bind", bindErr)
	}

	if backlog <= 0 {
		backlog = 128
	}
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return nil, wrapf("admin: listen", err)
	}

	return &tcpListener{fd: fd, factory: factory}, nil
}

func (l *tcpListener) FD() int { return l.fd }

func (l *tcpListener) Addr() (net.Addr, error) {
	sa, err := unix.Getsockname(l.fd)
	if err != nil {
		return nil, wrapf("admin: getsockname", err)
	}
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: append([]byte(nil), sa.Addr[:]...), Port: sa.Port}, nil
	case *unix.SockaddrInet6:
		return &net.TCPAddr{IP: append([]byte(nil), sa.Addr[:]...), Port: sa.Port}, nil
	default:
		return nil, fmt.Errorf("admin: unexpected sockaddr type %T", sa)
	}
}

func (l *tcpListener) AcceptOne() (Transport, error) {
	connFD, _, err := unix.Accept4(l.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return nil, errTransportWouldBlock
		}
		return nil, wrapf("admin: accept", err)
	}
	t, err := l.factory(connFD)
	if err != nil {
		unix.Close(connFD)
		return nil, err
	}
	return t, nil
}

func (l *tcpListener) Close() error { return unix.Close(l.fd) }
