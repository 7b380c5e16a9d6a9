package admin

// Interest is the subset of {readable, writable} a Poller is asked to
// report on for a given registration (spec.md §3, Glossary: "Interest
// set").
type Interest uint8

const (
	// InterestReadable requests readability notifications.
	InterestReadable Interest = 1 << iota
	// InterestWritable requests writability notifications.
	InterestWritable
)

// Readable reports whether the interest set includes readability.
func (i Interest) Readable() bool { return i&InterestReadable != 0 }

// Writable reports whether the interest set includes writability.
func (i Interest) Writable() bool { return i&InterestWritable != 0 }

// Event is one delivered readiness notification, carrying the token that
// was registered at Register/Reregister time and the OS-reported
// condition flags.
type Event struct {
	Token    Token
	Readable bool
	Writable bool
	Error    bool
	Hangup   bool
}

// IsError reports whether the event represents an error condition on the
// underlying descriptor (spec.md §4.2, event.is_error()).
func (e Event) IsError() bool { return e.Error }

// IsReadable reports readiness for reading (spec.md §4.2, event.is_readable()).
func (e Event) IsReadable() bool { return e.Readable }

// IsWritable reports readiness for writing (spec.md §4.2, event.is_writable()).
func (e Event) IsWritable() bool { return e.Writable }

// Poller wraps an OS-level readiness primitive (epoll on Linux, kqueue on
// Darwin), delivering batches of events identified by opaque Token
// values, per spec.md §2.1 and §4.1.
//
// Implementations must be safe to use from a single goroutine only; the
// Admin event loop is the sole caller, per spec.md §5.
type Poller interface {
	// Register adds fd to the poller under token, with the given interest.
	Register(token Token, fd int, interest Interest) error

	// Reregister updates the interest set for an already-registered fd.
	// Failure is fatal to the affected session (spec.md §4.2).
	Reregister(token Token, fd int, interest Interest) error

	// Deregister removes fd from the poller. Errors are ignored by callers
	// (the fd is being closed regardless).
	Deregister(token Token, fd int) error

	// Wait blocks for up to timeoutMillis milliseconds (or indefinitely, if
	// negative) and appends ready events to dst, returning the extended
	// slice. A zero-length result on timeout is not an error.
	Wait(dst []Event, timeoutMillis int) ([]Event, error)

	// Close releases the underlying OS resources.
	Close() error
}
