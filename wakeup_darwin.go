//go:build darwin

package admin

import (
	"golang.org/x/sys/unix"
)

// pipeWaker is the Darwin Waker implementation, backed by a
// non-blocking self-pipe (Darwin has no eventfd equivalent).
//
// Adapted from joeycumines-go-utilpkg/eventloop's wakeup_darwin.go
// (createWakeFd): a close-on-exec, non-blocking pipe pair; the read end
// is registered with the Poller, the write end is used to signal it.
type pipeWaker struct {
	readFD  int
	writeFD int
}

func newWaker() (Waker, error) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return nil, wrapf("admin: pipe", err)
	}
	for _, fd := range fds {
		unix.CloseOnExec(fd)
		if err := unix.SetNonblock(fd, true); err != nil {
			unix.Close(fds[0])
			unix.Close(fds[1])
			return nil, wrapf("admin: set nonblock", err)
		}
	}
	return &pipeWaker{readFD: fds[0], writeFD: fds[1]}, nil
}

func (w *pipeWaker) FD() int { return w.readFD }

func (w *pipeWaker) Wake() error {
	var buf [1]byte
	_, err := unix.Write(w.writeFD, buf[:])
	if err != nil && err != unix.EAGAIN {
		return wrapf("admin: pipe write", err)
	}
	return nil
}

func (w *pipeWaker) Reset() error {
	var buf [64]byte
	for {
		_, err := unix.Read(w.readFD, buf[:])
		if err != nil {
			break
		}
	}
	return nil
}

func (w *pipeWaker) Close() error {
	_ = unix.Close(w.writeFD)
	return unix.Close(w.readFD)
}
