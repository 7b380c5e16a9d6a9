package admin

// sessionSlab is the dense indexed pool of per-connection sessions named in
// spec.md §1/§3: a session's slab index doubles as the Token registered
// with the Poller. Grounded on
// joeycumines-go-utilpkg/eventloop/registry.go's arena idiom (a dense
// slice keyed by a stable integer id, with ids only reused after an
// explicit remove) — adapted here from registry's weak-pointer-based
// promise bookkeeping to a plain free-list, since sessions are owned
// outright by the single event-loop goroutine and need no GC-awareness.
//
// sessionSlab is not safe for concurrent use; spec.md §5 confines all
// session mutation to the event loop thread.
type sessionSlab struct {
	sessions []*Session
	free     []Token
	curr     int
}

// newSessionSlab returns an empty slab.
func newSessionSlab() *sessionSlab {
	return &sessionSlab{}
}

// Insert reserves the next available index, stores s there, and returns
// the Token (spec.md §4.3 step 3: "reserve a slab slot"). The returned
// Token is never ListenerToken or WakerToken.
func (sl *sessionSlab) Insert(s *Session) Token {
	if n := len(sl.free); n > 0 {
		tok := sl.free[n-1]
		sl.free = sl.free[:n-1]
		sl.sessions[tok] = s
		sl.curr++
		return tok
	}
	tok := Token(len(sl.sessions))
	sl.sessions = append(sl.sessions, s)
	sl.curr++
	return tok
}

// Get returns the session stored at tok, or nil if tok is out of range,
// reserved, or currently free.
func (sl *sessionSlab) Get(tok Token) *Session {
	if tok.isReserved() || tok >= Token(len(sl.sessions)) {
		return nil
	}
	return sl.sessions[tok]
}

// Remove evicts the session at tok, per spec.md §3's invariant: "the slab
// never reuses an index until the prior session is fully removed". The
// index is pushed onto the free list only here, never before.
func (sl *sessionSlab) Remove(tok Token) {
	if tok.isReserved() || tok >= Token(len(sl.sessions)) || sl.sessions[tok] == nil {
		return
	}
	sl.sessions[tok] = nil
	sl.free = append(sl.free, tok)
	sl.curr--
}

// Len reports the current number of live (inserted, not yet removed)
// sessions — the value spec.md §7 requires ADMIN_SESSION_CURR track
// exactly.
func (sl *sessionSlab) Len() int { return sl.curr }

// Each calls fn for every live session, in ascending Token order. fn must
// not Insert or Remove from the slab.
func (sl *sessionSlab) Each(fn func(Token, *Session)) {
	for i, s := range sl.sessions {
		if s != nil {
			fn(Token(i), s)
		}
	}
}
