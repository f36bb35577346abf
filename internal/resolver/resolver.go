// Package resolver turns a scan target into the single IP address every probe
// of a job dials. Targets are resolved once per job so that probes never
// depend on name resolution.
package resolver

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/anstrom/portward/internal/errors"
)

const defaultQueryTimeout = 3 * time.Second

// Resolver resolves hostnames either through the system resolver or, when a
// server is configured, by querying that DNS server directly.
type Resolver struct {
	server string
	client *dns.Client
	system *net.Resolver
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithQueryTimeout bounds each DNS exchange against the configured server.
func WithQueryTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		r.client.Timeout = d
	}
}

// WithNetwork selects "udp" or "tcp" for queries against the configured server.
func WithNetwork(network string) Option {
	return func(r *Resolver) {
		r.client.Net = network
	}
}

// New creates a resolver. An empty server uses the system resolver.
func New(server string, opts ...Option) *Resolver {
	r := &Resolver{
		server: server,
		client: &dns.Client{Net: "udp", Timeout: defaultQueryTimeout},
		system: net.DefaultResolver,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns one address for target. IP literals are returned unchanged.
// IPv4 answers are preferred over IPv6. Failures carry RESOLUTION_FAILED.
func (r *Resolver) Resolve(ctx context.Context, target string) (string, error) {
	host := strings.TrimSuffix(strings.TrimPrefix(target, "["), "]")
	if ip := net.ParseIP(host); ip != nil {
		return ip.String(), nil
	}

	var (
		addr string
		err  error
	)
	if r.server != "" {
		addr, err = r.query(ctx, host)
	} else {
		addr, err = r.lookupSystem(ctx, host)
	}
	if err != nil {
		return "", errors.ErrResolution(target, err)
	}
	return addr, nil
}

func (r *Resolver) lookupSystem(ctx context.Context, host string) (string, error) {
	addrs, err := r.system.LookupIPAddr(ctx, host)
	if err != nil {
		return "", err
	}
	for _, a := range addrs {
		if a.IP.To4() != nil {
			return a.IP.String(), nil
		}
	}
	if len(addrs) > 0 {
		return addrs[0].IP.String(), nil
	}
	return "", fmt.Errorf("no addresses for %s", host)
}

func (r *Resolver) query(ctx context.Context, host string) (string, error) {
	var lastErr error
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		addr, err := r.exchange(ctx, host, qtype)
		if err != nil {
			lastErr = err
			continue
		}
		if addr != "" {
			return addr, nil
		}
	}
	if lastErr != nil {
		return "", lastErr
	}
	return "", fmt.Errorf("no A or AAAA records for %s", host)
}

func (r *Resolver) exchange(ctx context.Context, host string, qtype uint16) (string, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(host), qtype)
	msg.RecursionDesired = true

	resp, _, err := r.client.ExchangeContext(ctx, msg, r.server)
	if err != nil {
		return "", fmt.Errorf("query %s %s: %w", dns.TypeToString[qtype], host, err)
	}
	if resp.Rcode != dns.RcodeSuccess {
		return "", fmt.Errorf("query %s %s: %s", dns.TypeToString[qtype], host, dns.RcodeToString[resp.Rcode])
	}

	for _, rr := range resp.Answer {
		switch rec := rr.(type) {
		case *dns.A:
			return rec.A.String(), nil
		case *dns.AAAA:
			return rec.AAAA.String(), nil
		}
	}
	return "", nil
}
