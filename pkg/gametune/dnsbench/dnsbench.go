// Package dnsbench measures resolver latency so the DNS provider table can be
// compared from the user's own connection before switching.
package dnsbench

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/miekg/dns"

	"github.com/jamesainslie/gametune/pkg/gametune/logging"
	"github.com/jamesainslie/gametune/pkg/gametune/tables"
)

var logger = logging.Get("dnsbench")

// Defaults.
const (
	DefaultAttempts = 5
	DefaultTimeout  = 2 * time.Second
	DefaultPort     = 53
)

// DefaultDomains are queried in rotation. They are popular enough to be
// cached by every public resolver.
var DefaultDomains = []string{"www.google.com", "www.cloudflare.com", "store.steampowered.com", "www.microsoft.com"}

// Result is the measurement of one resolver.
type Result struct {
	Provider string        `json:"provider" yaml:"provider"`
	Server   string        `json:"server" yaml:"server"`
	Median   time.Duration `json:"median" yaml:"median"`
	Min      time.Duration `json:"min" yaml:"min"`
	Max      time.Duration `json:"max" yaml:"max"`
	OK       int           `json:"ok" yaml:"ok"`
	Failed   int           `json:"failed" yaml:"failed"`
	Err      string        `json:"error,omitempty" yaml:"error,omitempty"`
}

// Reachable reports whether at least one query was answered.
func (r Result) Reachable() bool {
	return r.OK > 0
}

// Bencher queries resolvers.
type Bencher struct {
	attempts int
	timeout  time.Duration
	port     int
	domains  []string
	client   *dns.Client
}

// Option configures a Bencher.
type Option func(*Bencher)

// WithAttempts sets the number of queries per server.
func WithAttempts(n int) Option {
	return func(b *Bencher) {
		if n > 0 {
			b.attempts = n
		}
	}
}

// WithTimeout sets the per-query timeout.
func WithTimeout(d time.Duration) Option {
	return func(b *Bencher) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithPort queries servers on a port other than 53.
func WithPort(port int) Option {
	return func(b *Bencher) {
		b.port = port
	}
}

// WithDomains sets the names to query.
func WithDomains(domains ...string) Option {
	return func(b *Bencher) {
		if len(domains) > 0 {
			b.domains = domains
		}
	}
}

// New creates a Bencher.
func New(opts ...Option) *Bencher {
	b := &Bencher{
		attempts: DefaultAttempts,
		timeout:  DefaultTimeout,
		port:     DefaultPort,
		domains:  DefaultDomains,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.client = &dns.Client{Net: "udp", Timeout: b.timeout}
	return b
}

// Run measures every server of every provider concurrently. Results are
// sorted fastest first; unreachable servers sort last.
func (b *Bencher) Run(ctx context.Context, providers []tables.DNSProvider) []Result {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []Result
	)

	for _, p := range providers {
		for _, server := range p.Servers() {
			wg.Add(1)
			go func(provider, server string) {
				defer wg.Done()
				r := b.Measure(ctx, provider, server)
				mu.Lock()
				results = append(results, r)
				mu.Unlock()
			}(p.Name, server)
		}
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool {
		a, c := results[i], results[j]
		if a.Reachable() != c.Reachable() {
			return a.Reachable()
		}
		if a.Median != c.Median {
			return a.Median < c.Median
		}
		return a.Server < c.Server
	})
	return results
}

// Measure queries one server b.attempts times.
func (b *Bencher) Measure(ctx context.Context, provider, server string) Result {
	r := Result{Provider: provider, Server: server}
	addr := net.JoinHostPort(server, strconv.Itoa(b.port))

	var (
		rtts    []time.Duration
		lastErr error
	)
	for i := 0; i < b.attempts; i++ {
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			r.Failed += b.attempts - i
			break
		}

		rtt, err := b.query(ctx, addr, b.domains[i%len(b.domains)])
		if err != nil {
			logger.Debug("query failed", "server", addr, "error", err)
			lastErr = err
			r.Failed++
			continue
		}
		rtts = append(rtts, rtt)
	}

	r.OK = len(rtts)
	if lastErr != nil && r.OK == 0 {
		r.Err = lastErr.Error()
	}
	if r.OK > 0 {
		sort.Slice(rtts, func(i, j int) bool { return rtts[i] < rtts[j] })
		r.Min, r.Max = rtts[0], rtts[len(rtts)-1]
		r.Median = rtts[len(rtts)/2]
	}

	logger.Debug("server measured", "provider", provider, "server", server, "median", r.Median, "ok", r.OK, "failed", r.Failed)
	return r
}

var errRcode = errors.New("resolver returned an error")

func (b *Bencher) query(ctx context.Context, addr, domain string) (time.Duration, error) {
	q := new(dns.Msg)
	q.SetQuestion(dns.Fqdn(domain), dns.TypeA)

	reply, rtt, err := b.client.ExchangeContext(ctx, q, addr)
	if err != nil {
		return 0, err
	}
	if reply.Rcode != dns.RcodeSuccess {
		return 0, fmt.Errorf("%w: %s for %s", errRcode, dns.RcodeToString[reply.Rcode], domain)
	}
	return rtt, nil
}
