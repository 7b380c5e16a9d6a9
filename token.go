package admin

// Token is an opaque identifier for a registration with the Poller. Every
// value other than ListenerToken and WakerToken is a session slab index,
// per spec.md §3.
type Token uint64

const (
	// WakerToken is the reserved token for the Wakeup registration. Chosen
	// as the largest representable uint64 value so it can never collide
	// with a slab index.
	WakerToken Token = ^Token(0)

	// ListenerToken is the reserved token for the listening socket.
	// Chosen as the second-largest representable uint64 value.
	ListenerToken Token = ^Token(0) - 1
)

// isReserved reports whether t is one of the two reserved tokens, and is
// therefore never a valid slab index.
func (t Token) isReserved() bool {
	return t == WakerToken || t == ListenerToken
}
