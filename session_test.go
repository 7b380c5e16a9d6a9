package admin

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTransport is an in-memory Transport double: inbound is consumed by
// Fill, outbound bytes written via Flush accumulate in written. Both support
// forcing a would-block or a hard error on the next call, to exercise
// Session's error handling without real sockets.
type fakeTransport struct {
	inbound []byte
	written []byte

	fillErr  error
	flushErr error

	hs       HandshakeState
	hsErr    error
	hsResult HandshakeState
	closed   bool

	// flushCap, when nonzero, caps the single Flush call that succeeds
	// (consuming up to flushCap bytes); every subsequent Flush call
	// would-blocks, modeling a saturated non-blocking send buffer that
	// doesn't drain further within one loop iteration.
	flushCap    int
	flushedOnce bool
}

func (f *fakeTransport) FD() int { return -1 }

func (f *fakeTransport) Fill(dst []byte) ([]byte, int, error) {
	if f.fillErr != nil {
		err := f.fillErr
		f.fillErr = nil
		return dst, 0, err
	}
	if len(f.inbound) == 0 {
		return dst, 0, errTransportWouldBlock
	}
	n := len(f.inbound)
	dst = append(dst, f.inbound...)
	f.inbound = nil
	return dst, n, nil
}

func (f *fakeTransport) Flush(pending []byte) (int, error) {
	if f.flushErr != nil {
		err := f.flushErr
		f.flushErr = nil
		return 0, err
	}
	if f.flushCap > 0 {
		if f.flushedOnce {
			return 0, errTransportWouldBlock
		}
		n := len(pending)
		if n > f.flushCap {
			n = f.flushCap
		}
		f.written = append(f.written, pending[:n]...)
		f.flushedOnce = true
		return n, nil
	}
	f.written = append(f.written, pending...)
	return len(pending), nil
}

func (f *fakeTransport) HandshakeState() HandshakeState { return f.hs }

func (f *fakeTransport) DoHandshake() (HandshakeState, error) {
	if f.hsErr != nil {
		err := f.hsErr
		f.hsErr = nil
		return f.hs, err
	}
	f.hs = f.hsResult
	return f.hsResult, nil
}

func (f *fakeTransport) Close() error {
	f.closed = true
	return nil
}

func newTestMetrics() *metricSet {
	return newMetricSet(prometheus.NewRegistry())
}

func TestSession_VersionRoundTrip(t *testing.T) {
	tr := &fakeTransport{inbound: []byte("version\r\n")}
	m := newTestMetrics()
	s := newSession(Token(0), tr, "7.7.7", m, NewNoopFanout(), false)

	require.NoError(t, s.Read())
	assert.Equal(t, "VERSION 7.7.7\r\n", string(tr.written))
}

func TestSession_UnknownCommand_SendsErrorKeepsOpen(t *testing.T) {
	tr := &fakeTransport{inbound: []byte("bogus\r\n")}
	s := newSession(Token(0), tr, "1.0.0", newTestMetrics(), NewNoopFanout(), false)

	require.NoError(t, s.Read())
	assert.Equal(t, "ERROR\r\n", string(tr.written))
	assert.Equal(t, stateReady, s.state)
}

func TestSession_Pipelined_VersionThenUnknown(t *testing.T) {
	tr := &fakeTransport{inbound: []byte("version\r\nfoo\r\n")}
	s := newSession(Token(0), tr, "x", newTestMetrics(), NewNoopFanout(), false)

	require.NoError(t, s.Read())
	assert.Equal(t, "VERSION x\r\nERROR\r\n", string(tr.written))
}

func TestSession_Quit_ReturnsShouldHangup(t *testing.T) {
	tr := &fakeTransport{inbound: []byte("quit\r\n")}
	s := newSession(Token(0), tr, "1.0.0", newTestMetrics(), NewNoopFanout(), false)

	err := s.Read()
	assert.Equal(t, ErrShouldHangup, err)
	assert.Empty(t, tr.written, "quit sends no response")
}

type fakeFanout struct {
	sent []Signal
}

func (f *fakeFanout) TrySendAll(sig Signal) { f.sent = append(f.sent, sig) }
func (f *fakeFanout) Wake() error           { return nil }

func TestSession_FlushAll_BroadcastsAndRespondsOK(t *testing.T) {
	tr := &fakeTransport{inbound: []byte("flush_all\r\n")}
	fanout := &fakeFanout{}
	s := newSession(Token(0), tr, "1.0.0", newTestMetrics(), fanout, false)

	require.NoError(t, s.Read())
	assert.Equal(t, "OK\r\n", string(tr.written))
	assert.Equal(t, []Signal{SignalFlushAll}, fanout.sent)
}

func TestSession_Stats_RespondsWithEnd(t *testing.T) {
	tr := &fakeTransport{inbound: []byte("stats\r\n")}
	s := newSession(Token(0), tr, "1.0.0", newTestMetrics(), NewNoopFanout(), false)

	require.NoError(t, s.Read())
	out := string(tr.written)
	assert.Contains(t, out, "STAT admin_request_parse ")
	assert.Contains(t, out, "END\r\n")
}

// hangupTransport always reports an orderly close (a zero-byte, non-error
// Fill), distinct from fakeTransport's would-block-on-empty default.
type hangupTransport struct{ fakeTransport }

func (h *hangupTransport) Fill(dst []byte) ([]byte, int, error) { return dst, 0, nil }

func TestSession_Read_ClientHangup(t *testing.T) {
	tr := &hangupTransport{}
	s := newSession(Token(0), tr, "1.0.0", newTestMetrics(), NewNoopFanout(), false)
	err := s.Read()
	assert.Equal(t, ErrClientHangup, err)
}

func TestSession_Read_FillFatalError(t *testing.T) {
	tr := &fakeTransport{fillErr: assertErr{}}
	s := newSession(Token(0), tr, "1.0.0", newTestMetrics(), NewNoopFanout(), false)
	err := s.Read()
	assert.Error(t, err)
	assert.False(t, isWouldBlock(err))
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }

func TestSession_Write_PendingBytesRequireReregister(t *testing.T) {
	tr := &fakeTransport{flushCap: 2}
	s := newSession(Token(0), tr, "1.0.0", newTestMetrics(), NewNoopFanout(), false)
	s.out = []byte("abcd")

	err := s.Write()
	assert.Equal(t, ErrNeedsReregister, err)
	assert.Equal(t, InterestReadable|InterestWritable, s.Interest())
	assert.Equal(t, []byte("ab"), tr.written)
	assert.Equal(t, []byte("cd"), s.out)
}

func TestSession_Write_FullyFlushedNoReregister(t *testing.T) {
	tr := &fakeTransport{}
	s := newSession(Token(0), tr, "1.0.0", newTestMetrics(), NewNoopFanout(), false)
	s.out = []byte("abcd")

	require.NoError(t, s.Write())
	assert.Equal(t, []byte("abcd"), tr.written)
	assert.Empty(t, s.out)
}

func TestSession_Close_IsIdempotent(t *testing.T) {
	tr := &fakeTransport{}
	s := newSession(Token(0), tr, "1.0.0", newTestMetrics(), NewNoopFanout(), false)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.True(t, tr.closed)
	assert.Equal(t, stateClosed, s.state)
}

func TestSession_Handshake_CompletesAndReregistersWithResidualInput(t *testing.T) {
	tr := &fakeTransport{hs: HandshakePending, hsResult: HandshakeDone}
	s := newSession(Token(0), tr, "1.0.0", newTestMetrics(), NewNoopFanout(), true)
	assert.Equal(t, stateHandshakingOut, s.state)

	s.in = []byte("version\r\n")
	err := s.Handshake()
	assert.Equal(t, ErrNeedsReregister, err)
	assert.Equal(t, stateReady, s.state)
}

func TestSession_Handshake_NoopWhenAlreadyDone(t *testing.T) {
	tr := &fakeTransport{hs: HandshakeNone}
	s := newSession(Token(0), tr, "1.0.0", newTestMetrics(), NewNoopFanout(), false)
	assert.Equal(t, stateReady, s.state)
	assert.NoError(t, s.Handshake())
}
