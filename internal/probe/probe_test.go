package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/portward/internal/scanning"
)

type dialFunc func(ctx context.Context, network, address string) (net.Conn, error)

func (f dialFunc) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	return f(ctx, network, address)
}

type trackedConn struct {
	net.Conn
	closed atomic.Bool
}

func (c *trackedConn) Close() error {
	c.closed.Store(true)
	return nil
}

func listenLoopback(t *testing.T) (net.Listener, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			_ = conn.Close()
		}
	}()
	return ln, ln.Addr().(*net.TCPAddr).Port
}

func TestProbeOpenPort(t *testing.T) {
	_, port := listenLoopback(t)

	result := New().Probe(context.Background(), "127.0.0.1", port, time.Second)
	assert.Equal(t, scanning.StateOpen, result.State)
	assert.Equal(t, port, result.Port)
	assert.Empty(t, result.Error)
	assert.Greater(t, result.Latency, time.Duration(0))
}

func TestProbeClosedPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	result := New().Probe(context.Background(), "127.0.0.1", port, time.Second)
	assert.Equal(t, scanning.StateClosed, result.State)
	assert.Nil(t, result.Service)
}

func TestProbeOpenAnnotatesService(t *testing.T) {
	conn := &trackedConn{}
	p := New(WithDialer(dialFunc(func(ctx context.Context, network, address string) (net.Conn, error) {
		assert.Equal(t, "tcp", network)
		assert.Equal(t, "10.0.0.1:22", address)
		return conn, nil
	})))

	result := p.Probe(context.Background(), "10.0.0.1", 22, time.Second)
	assert.Equal(t, scanning.StateOpen, result.State)
	require.NotNil(t, result.Service)
	assert.Equal(t, "SSH", *result.Service)
	assert.True(t, conn.closed.Load(), "connection must be released")
}

func TestProbeIPv6Address(t *testing.T) {
	var got string
	p := New(WithDialer(dialFunc(func(ctx context.Context, network, address string) (net.Conn, error) {
		got = address
		return &trackedConn{}, nil
	})))
	p.Probe(context.Background(), "::1", 443, time.Second)
	assert.Equal(t, "[::1]:443", got)
}

func TestProbeTimeoutIsFiltered(t *testing.T) {
	p := New(WithDialer(dialFunc(func(ctx context.Context, network, address string) (net.Conn, error) {
		<-ctx.Done()
		return nil, &net.OpError{Op: "dial", Net: "tcp", Err: ctx.Err()}
	})))

	start := time.Now()
	result := p.Probe(context.Background(), "10.255.255.1", 80, 50*time.Millisecond)
	assert.Equal(t, scanning.StateFiltered, result.State)
	assert.Less(t, time.Since(start), time.Second)
}

func TestProbeParentCancelIsError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := New(WithDialer(dialFunc(func(dctx context.Context, network, address string) (net.Conn, error) {
		cancel()
		<-dctx.Done()
		return nil, dctx.Err()
	})))

	result := p.Probe(ctx, "10.0.0.1", 80, time.Second)
	assert.Equal(t, scanning.StateError, result.State)
	assert.NotEmpty(t, result.Error)
}

func TestClassify(t *testing.T) {
	bg := context.Background()
	cancelled, cancel := context.WithCancel(bg)
	cancel()

	tests := []struct {
		name   string
		parent context.Context
		err    error
		want   scanning.PortState
	}{
		{"nil", bg, nil, scanning.StateOpen},
		{"refused", bg, &net.OpError{Op: "dial", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}, scanning.StateClosed},
		{"reset", bg, fmt.Errorf("read: %w", syscall.ECONNRESET), scanning.StateClosed},
		{"deadline", bg, context.DeadlineExceeded, scanning.StateFiltered},
		{"os deadline", bg, &net.OpError{Op: "dial", Err: os.ErrDeadlineExceeded}, scanning.StateFiltered},
		{"host unreachable", bg, &net.OpError{Op: "dial", Err: os.NewSyscallError("connect", syscall.EHOSTUNREACH)}, scanning.StateFiltered},
		{"network unreachable", bg, os.NewSyscallError("connect", syscall.ENETUNREACH), scanning.StateFiltered},
		{"dns failure", bg, &net.OpError{Op: "dial", Err: &net.DNSError{Err: "no such host", Name: "nope.invalid", IsNotFound: true}}, scanning.StateError},
		{"dns timeout still error", bg, &net.DNSError{Err: "timeout", IsTimeout: true}, scanning.StateError},
		{"canceled", bg, context.Canceled, scanning.StateError},
		{"parent done", cancelled, context.DeadlineExceeded, scanning.StateError},
		{"other", bg, errors.New("too many open files"), scanning.StateError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.parent, tt.err))
		})
	}
}

func TestProberWithScheduler(t *testing.T) {
	_, openPort := listenLoopback(t)

	sched := scanning.NewScheduler(New())
	req := scanning.ScanRequest{
		Target:      "127.0.0.1",
		StartPort:   openPort,
		EndPort:     openPort,
		Timeout:     time.Second,
		Concurrency: 1,
	}

	var got []scanning.PortResult
	_, err := sched.Run(context.Background(), "127.0.0.1", req, scanning.SinkFunc(func(r scanning.PortResult) bool {
		got = append(got, r)
		return true
	}))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, scanning.StateOpen, got[0].State)
}
