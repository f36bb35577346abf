// Package probe implements the connect-based reachability check used by the
// scan engine. A probe never returns an error; every failure is folded into
// the PortState of its result.
package probe

import (
	"context"
	stderrors "errors"
	"net"
	"os"
	"strconv"
	"syscall"
	"time"

	"github.com/anstrom/portward/internal/scanning"
	"github.com/anstrom/portward/internal/services"
)

// Dialer opens network connections. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Prober performs TCP connect probes.
type Prober struct {
	dialer Dialer
	now    func() time.Time
}

// Option configures a Prober.
type Option func(*Prober)

// WithDialer replaces the default net.Dialer.
func WithDialer(d Dialer) Option {
	return func(p *Prober) {
		p.dialer = d
	}
}

// New creates a Prober.
func New(opts ...Option) *Prober {
	p := &Prober{
		dialer: &net.Dialer{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe attempts one TCP connection to host:port bounded by timeout.
func (p *Prober) Probe(ctx context.Context, host string, port int, timeout time.Duration) scanning.PortResult {
	result := scanning.PortResult{Port: port}

	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := p.now()
	conn, err := p.dialer.DialContext(probeCtx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	result.Latency = p.now().Sub(start)

	if err == nil {
		_ = conn.Close()
		result.State = scanning.StateOpen
		result.Service = services.Name(port)
		return result
	}

	result.State = Classify(ctx, err)
	if result.State == scanning.StateError {
		result.Error = err.Error()
	}
	return result
}

// Classify maps a dial error to a port state. parent is the context the probe
// was derived from; its cancellation is reported as an error rather than as
// a filtered port.
func Classify(parent context.Context, err error) scanning.PortState {
	if err == nil {
		return scanning.StateOpen
	}

	var dnsErr *net.DNSError
	switch {
	case stderrors.As(err, &dnsErr):
		return scanning.StateError
	case stderrors.Is(err, context.Canceled), parent.Err() != nil:
		return scanning.StateError
	case stderrors.Is(err, syscall.ECONNREFUSED), stderrors.Is(err, syscall.ECONNRESET):
		return scanning.StateClosed
	case stderrors.Is(err, context.DeadlineExceeded), stderrors.Is(err, os.ErrDeadlineExceeded):
		return scanning.StateFiltered
	case stderrors.Is(err, syscall.EHOSTUNREACH), stderrors.Is(err, syscall.ENETUNREACH):
		return scanning.StateFiltered
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return scanning.StateFiltered
	}
	return scanning.StateError
}
