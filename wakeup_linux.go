//go:build linux

package admin

import (
	"golang.org/x/sys/unix"
)

// eventfdWaker is the Linux Waker implementation, backed by eventfd(2).
//
// Adapted from joeycumines-go-utilpkg/eventloop's wakeup_linux.go
// (createWakeFd/drainWakeUpPipe): same non-blocking, semaphore-less
// eventfd counter, drained to zero on Reset.
type eventfdWaker struct {
	fd int
}

// newWaker constructs the platform Waker.
func newWaker() (Waker, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return nil, wrapf("admin: eventfd", err)
	}
	return &eventfdWaker{fd: fd}, nil
}

func (w *eventfdWaker) FD() int { return w.fd }

func (w *eventfdWaker) Wake() error {
	var buf [8]byte
	buf[7] = 1
	_, err := unix.Write(w.fd, buf[:])
	if err != nil && err != unix.EAGAIN {
		return wrapf("admin: eventfd write", err)
	}
	return nil
}

func (w *eventfdWaker) Reset() error {
	var buf [8]byte
	for {
		_, err := unix.Read(w.fd, buf[:])
		if err != nil {
			break
		}
	}
	return nil
}

func (w *eventfdWaker) Close() error {
	return unix.Close(w.fd)
}
