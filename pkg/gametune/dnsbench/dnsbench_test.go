package dnsbench

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/gametune/pkg/gametune/tables"
)

// startServer runs a local resolver that answers every A query, or refuses
// them all when refuse is set. It returns the UDP port.
func startServer(t *testing.T, refuse bool) int {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	handler := dns.HandlerFunc(func(w dns.ResponseWriter, req *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(req)
		if refuse {
			m.Rcode = dns.RcodeRefused
		} else {
			rr, _ := dns.NewRR(req.Question[0].Name + " 60 IN A 192.0.2.1")
			m.Answer = append(m.Answer, rr)
		}
		_ = w.WriteMsg(m)
	})

	started := make(chan struct{})
	srv := &dns.Server{PacketConn: pc, Handler: handler, NotifyStartedFunc: func() { close(started) }}
	go func() { _ = srv.ActivateAndServe() }()
	t.Cleanup(func() { _ = srv.Shutdown() })

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("dns server did not start")
	}
	return pc.LocalAddr().(*net.UDPAddr).Port
}

func TestMeasure(t *testing.T) {
	port := startServer(t, false)
	b := New(WithPort(port), WithAttempts(3), WithTimeout(time.Second))

	r := b.Measure(context.Background(), "local", "127.0.0.1")
	assert.Equal(t, 3, r.OK)
	assert.Zero(t, r.Failed)
	assert.True(t, r.Reachable())
	assert.Empty(t, r.Err)
	assert.LessOrEqual(t, r.Min, r.Median)
	assert.LessOrEqual(t, r.Median, r.Max)
}

func TestMeasure_Refused(t *testing.T) {
	port := startServer(t, true)
	b := New(WithPort(port), WithAttempts(2), WithTimeout(time.Second))

	r := b.Measure(context.Background(), "local", "127.0.0.1")
	assert.Zero(t, r.OK)
	assert.Equal(t, 2, r.Failed)
	assert.Contains(t, r.Err, "REFUSED")
}

func TestMeasure_Cancelled(t *testing.T) {
	b := New(WithAttempts(4))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := b.Measure(ctx, "local", "127.0.0.1")
	assert.Equal(t, 4, r.Failed)
	assert.False(t, r.Reachable())
}

func TestRun_SortsReachableFirst(t *testing.T) {
	port := startServer(t, false)
	b := New(WithPort(port), WithAttempts(2), WithTimeout(300*time.Millisecond), WithDomains("example.com"))

	providers := []tables.DNSProvider{
		// nothing listens on 127.0.0.2 at this port
		{Name: "dead", Primary: "127.0.0.2"},
		{Name: "local", Primary: "127.0.0.1"},
	}

	results := b.Run(context.Background(), providers)
	require.Len(t, results, 2)
	assert.Equal(t, "local", results[0].Provider)
	assert.True(t, results[0].Reachable())
	assert.False(t, results[1].Reachable())
}
