//go:build darwin

package admin

import (
	"golang.org/x/sys/unix"
)

// kqueuePoller is the Darwin Poller implementation, backed by kqueue.
//
// Adapted from joeycumines-go-utilpkg/eventloop's FastPoller
// (poller_darwin.go): same kqueue/kevent syscall sequence, restructured to
// key registrations by Token instead of an inline per-fd callback, and to
// return a batch of Event values from Wait, matching epollPoller's
// contract (spec.md §4.1).
type kqueuePoller struct {
	kq int

	tokenByFD map[int]Token
	fdByToken map[Token]int
	// interestByFD tracks what's currently registered, since kqueue
	// requires explicit EV_DELETE of filters no longer wanted on Reregister.
	interestByFD map[int]Interest

	eventBuf []unix.Kevent_t
}

func newPoller() (Poller, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, wrapf("admin: kqueue", err)
	}
	unix.CloseOnExec(kq)
	return &kqueuePoller{
		kq:           kq,
		tokenByFD:    make(map[int]Token),
		fdByToken:    make(map[Token]int),
		interestByFD: make(map[int]Interest),
		eventBuf:     make([]unix.Kevent_t, 256),
	}, nil
}

func kevents(fd int, interest Interest, flags uint16) []unix.Kevent_t {
	var out []unix.Kevent_t
	if interest.Readable() {
		out = append(out, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: flags})
	}
	if interest.Writable() {
		out = append(out, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: flags})
	}
	return out
}

func (p *kqueuePoller) apply(changes []unix.Kevent_t) error {
	if len(changes) == 0 {
		return nil
	}
	_, err := unix.Kevent(p.kq, changes, nil, nil)
	return err
}

func (p *kqueuePoller) Register(token Token, fd int, interest Interest) error {
	if err := p.apply(kevents(fd, interest, unix.EV_ADD|unix.EV_ENABLE)); err != nil {
		return wrapf("admin: kevent add", err)
	}
	p.tokenByFD[fd] = token
	p.fdByToken[token] = fd
	p.interestByFD[fd] = interest
	return nil
}

func (p *kqueuePoller) Reregister(token Token, fd int, interest Interest) error {
	old := p.interestByFD[fd]
	removed := old &^ interest
	added := interest &^ old
	if err := p.apply(kevents(fd, removed, unix.EV_DELETE)); err != nil {
		return wrapf("admin: kevent del", err)
	}
	if err := p.apply(kevents(fd, added, unix.EV_ADD|unix.EV_ENABLE)); err != nil {
		return wrapf("admin: kevent add", err)
	}
	p.interestByFD[fd] = interest
	return nil
}

func (p *kqueuePoller) Deregister(token Token, fd int) error {
	old := p.interestByFD[fd]
	delete(p.tokenByFD, fd)
	delete(p.fdByToken, token)
	delete(p.interestByFD, fd)
	// Best-effort; the fd is being closed regardless.
	_ = p.apply(kevents(fd, old, unix.EV_DELETE))
	return nil
}

func (p *kqueuePoller) Wait(dst []Event, timeoutMillis int) ([]Event, error) {
	var ts *unix.Timespec
	if timeoutMillis >= 0 {
		ts = &unix.Timespec{
			Sec:  int64(timeoutMillis / 1000),
			Nsec: int64(timeoutMillis%1000) * 1000000,
		}
	}
	n, err := unix.Kevent(p.kq, nil, p.eventBuf, ts)
	if err != nil {
		if err == unix.EINTR {
			return dst, nil
		}
		return dst, wrapf("admin: kevent wait", err)
	}
	for i := 0; i < n; i++ {
		raw := p.eventBuf[i]
		fd := int(raw.Ident)
		token, ok := p.tokenByFD[fd]
		if !ok {
			continue
		}
		var ev Event
		ev.Token = token
		switch raw.Filter {
		case unix.EVFILT_READ:
			ev.Readable = true
		case unix.EVFILT_WRITE:
			ev.Writable = true
		}
		if raw.Flags&unix.EV_ERROR != 0 {
			ev.Error = true
		}
		if raw.Flags&unix.EV_EOF != 0 {
			ev.Hangup = true
		}
		dst = append(dst, ev)
	}
	return dst, nil
}

func (p *kqueuePoller) Close() error {
	return unix.Close(p.kq)
}
