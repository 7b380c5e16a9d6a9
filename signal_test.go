package admin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChanReceiver_TryReceive(t *testing.T) {
	ch := make(chan Signal, 1)
	r := NewChannelReceiver(ch)

	_, ok := r.TryReceive()
	assert.False(t, ok)

	ch <- SignalFlushAll
	sig, ok := r.TryReceive()
	require.True(t, ok)
	assert.Equal(t, SignalFlushAll, sig)
}

func TestChanReceiver_ClosedChannel(t *testing.T) {
	ch := make(chan Signal)
	close(ch)
	r := NewChannelReceiver(ch)
	_, ok := r.TryReceive()
	assert.False(t, ok)
}

type fakeWaker struct {
	woken int
	err   error
}

func (f *fakeWaker) FD() int      { return -1 }
func (f *fakeWaker) Wake() error  { f.woken++; return f.err }
func (f *fakeWaker) Reset() error { return nil }
func (f *fakeWaker) Close() error { return nil }

func TestChanFanout_TrySendAll_BestEffort(t *testing.T) {
	full := make(chan Signal) // unbuffered, never drained: send must not block
	ok := make(chan Signal, 1)
	fanout := NewChannelFanout([]chan<- Signal{full, ok}, nil)

	fanout.TrySendAll(SignalShutdown)

	select {
	case sig := <-ok:
		assert.Equal(t, SignalShutdown, sig)
	default:
		t.Fatal("expected sibling to observe the signal")
	}
}

func TestChanFanout_Wake(t *testing.T) {
	w1 := &fakeWaker{}
	w2 := &fakeWaker{}
	fanout := NewChannelFanout([]chan<- Signal{make(chan Signal, 1), make(chan Signal, 1)}, []Waker{w1, w2})
	require.NoError(t, fanout.Wake())
	assert.Equal(t, 1, w1.woken)
	assert.Equal(t, 1, w2.woken)
}

func TestNoopFanoutAndReceiver(t *testing.T) {
	f := NewNoopFanout()
	f.TrySendAll(SignalFlushAll)
	assert.NoError(t, f.Wake())

	r := NewNoopReceiver()
	_, ok := r.TryReceive()
	assert.False(t, ok)
}

func TestContextReceiver_DeliversShutdownOnce(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := NewContextReceiver(ctx, nil)

	_, ok := r.TryReceive()
	assert.False(t, ok)

	cancel()
	sig, ok := r.TryReceive()
	require.True(t, ok)
	assert.Equal(t, SignalShutdown, sig)

	// Must not repeat once delivered.
	_, ok = r.TryReceive()
	assert.False(t, ok)
}

func TestSignal_String(t *testing.T) {
	assert.Equal(t, "FlushAll", SignalFlushAll.String())
	assert.Equal(t, "Shutdown", SignalShutdown.String())
	assert.Equal(t, "Unknown", Signal(99).String())
}
