package admin

// Waker is a level-triggered, always-registered poller entry used to
// unblock Poller.Wait on demand, per spec.md §4.6.
//
// Wake must be cheap, idempotent, and safe to call from any goroutine
// (it's the one primitive in this package that may be invoked off the
// Admin's own goroutine, per spec.md §4.6's "design permits cross-thread
// wakes"). Reset must only ever be called from the Admin goroutine itself.
type Waker interface {
	// FD returns the descriptor to register with the Poller.
	FD() int

	// Wake signals the poller to return from a blocking Wait call.
	Wake() error

	// Reset re-arms the wakeup after the loop has observed it, draining
	// any pending notification so a subsequent Wake is observed as a new
	// edge/level trigger.
	Reset() error

	// Close releases the underlying OS resources.
	Close() error
}
