package admin

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startTestAdmin builds and runs an Admin bound to an ephemeral loopback
// port, returning it along with a function that issues SignalShutdown and
// waits for Run to return. fanout, if non-nil, is wired as the outbound
// Fanout (for sibling-broadcast tests); the inbound shutdown channel is
// always owned by this helper so stop() can reliably terminate Run.
func startTestAdmin(t *testing.T, fanout Fanout, opts ...Option) (*Admin, net.Addr, func()) {
	t.Helper()

	if fanout == nil {
		fanout = NewNoopFanout()
	}
	sigCh := make(chan Signal, 1)
	base := []Option{
		WithAddr("127.0.0.1:0"),
		WithVersion("test-1.0.0"),
		WithTimeout(50),
		WithSignals(NewChannelReceiver(sigCh), fanout),
	}
	a, err := New(append(base, opts...)...)
	require.NoError(t, err)

	runErr := make(chan error, 1)
	go func() { runErr <- a.Run(context.Background()) }()

	addr := a.Addr()

	stop := func() {
		sigCh <- SignalShutdown
		select {
		case err := <-runErr:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("Run did not return after Shutdown")
		}
	}
	return a, addr, stop
}

func TestAdmin_VersionQuery(t *testing.T) {
	_, addr, stop := startTestAdmin(t, nil)
	defer stop()

	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("version\r\n"))
	require.NoError(t, err)

	line, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "VERSION test-1.0.0\r\n", line)
}

func TestAdmin_PipelinedUnknownCommand(t *testing.T) {
	_, addr, stop := startTestAdmin(t, nil)
	defer stop()

	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("version\r\nfoo\r\n"))
	require.NoError(t, err)

	r := bufio.NewReader(conn)
	line1, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "VERSION test-1.0.0\r\n", line1)

	line2, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "ERROR\r\n", line2)

	// Connection must remain open per spec.md §9's resolved policy.
	_, err = conn.Write([]byte("version\r\n"))
	require.NoError(t, err)
	line3, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "VERSION test-1.0.0\r\n", line3)
}

func TestAdmin_FlushBroadcast(t *testing.T) {
	sib1 := make(chan Signal, 1)
	sib2 := make(chan Signal, 1)
	fanout := NewChannelFanout([]chan<- Signal{sib1, sib2}, nil)

	_, addr, stop := startTestAdmin(t, fanout)
	defer stop()

	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("flush_all\r\n"))
	require.NoError(t, err)

	line, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "OK\r\n", line)

	select {
	case sig := <-sib1:
		assert.Equal(t, SignalFlushAll, sig)
	case <-time.After(time.Second):
		t.Fatal("sibling 1 did not observe FlushAll")
	}
	select {
	case sig := <-sib2:
		assert.Equal(t, SignalFlushAll, sig)
	case <-time.After(time.Second):
		t.Fatal("sibling 2 did not observe FlushAll")
	}
}

func TestAdmin_QuitClosesConnection(t *testing.T) {
	a, addr, stop := startTestAdmin(t, nil)
	defer stop()

	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("quit\r\n"))
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 16)
	n, err := conn.Read(buf)
	assert.Equal(t, 0, n)
	assert.Error(t, err) // EOF: orderly close, no bytes

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if a.SessionCount() == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("session was not reaped after quit")
}

func TestAdmin_ShutdownSignal(t *testing.T) {
	_, _, stop := startTestAdmin(t, nil)
	stop() // asserts Run returns within the timeout
}

func TestAdmin_AcceptStorm(t *testing.T) {
	_, addr, stop := startTestAdmin(t, nil)
	defer stop()

	const n = 64
	conns := make([]net.Conn, 0, n)
	defer func() {
		for _, c := range conns {
			c.Close()
		}
	}()
	for i := 0; i < n; i++ {
		conn, err := net.Dial("tcp", addr.String())
		require.NoError(t, err)
		conns = append(conns, conn)
	}

	for _, conn := range conns {
		_, err := conn.Write([]byte("version\r\n"))
		require.NoError(t, err)
	}
	for _, conn := range conns {
		line, err := bufio.NewReader(conn).ReadString('\n')
		require.NoError(t, err)
		assert.Equal(t, "VERSION test-1.0.0\r\n", line)
	}
}

func TestAdmin_DoubleRunRejected(t *testing.T) {
	sigCh := make(chan Signal, 1)
	a, err := New(WithAddr("127.0.0.1:0"), WithSignals(NewChannelReceiver(sigCh), NewNoopFanout()))
	require.NoError(t, err)

	runErr := make(chan error, 1)
	go func() { runErr <- a.Run(context.Background()) }()
	a.Addr()

	assert.Equal(t, ErrAlreadyRunning, a.Run(context.Background()))

	sigCh <- SignalShutdown
	select {
	case err := <-runErr:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Shutdown")
	}
}
