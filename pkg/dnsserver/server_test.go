package dnsserver

import (
	"context"
	"net"
	"testing"
	"time"

	"sink-hole/pkg/config"
	"sink-hole/pkg/liststore"
	"sink-hole/pkg/stats"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startTestServer binds a server on an ephemeral loopback port and returns
// its address.
func startTestServer(t *testing.T, lists *liststore.Store, rec *stats.Recorder) string {
	cfg := config.LoadWithDefaults()
	cfg.DNSHost = "127.0.0.1"
	cfg.DNSPort = 0

	engine := NewEngine(cfg, lists, rec, nil, testLogger(t))
	srv := NewServer(cfg, engine, testLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("server did not stop after context cancellation")
		}
	})

	deadline := time.Now().Add(2 * time.Second)
	for srv.Addr() == nil {
		if time.Now().After(deadline) {
			t.Fatal("server did not bind in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return srv.Addr().String()
}

func TestServerSinkholesOverUDP(t *testing.T) {
	lists := liststore.New()
	lists.ReplaceBlocklist(liststore.NewDomainSet([]string{"ads.example.com"}))
	rec := stats.NewRecorder()

	addr := startTestServer(t, lists, rec)

	client := &dns.Client{Net: "udp", Timeout: 2 * time.Second}
	query := new(dns.Msg)
	query.SetQuestion("tracker.ads.example.com.", dns.TypeA)

	resp, _, err := client.Exchange(query, addr)
	require.NoError(t, err)
	require.NotNil(t, resp)

	assert.Equal(t, query.Id, resp.Id)
	require.Len(t, resp.Answer, 1)
	a, isA := resp.Answer[0].(*dns.A)
	require.True(t, isA)
	assert.Equal(t, "0.0.0.0", a.A.String())
	assert.Equal(t, uint32(60), a.Hdr.Ttl)

	total, blocked := rec.Counts()
	assert.Equal(t, uint64(1), total)
	assert.Equal(t, uint64(1), blocked)
}

func TestServerSurvivesGarbageDatagram(t *testing.T) {
	lists := liststore.New()
	lists.ReplaceBlocklist(liststore.NewDomainSet([]string{"ads.example.com"}))
	rec := stats.NewRecorder()

	addr := startTestServer(t, lists, rec)

	// Garbage gets silently dropped.
	conn, err := net.Dial("udp", addr)
	require.NoError(t, err)
	_, err = conn.Write([]byte("not a dns message"))
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	// A real query still gets answered afterwards.
	client := &dns.Client{Net: "udp", Timeout: 2 * time.Second}
	query := new(dns.Msg)
	query.SetQuestion("ads.example.com.", dns.TypeA)

	resp, _, err := client.Exchange(query, addr)
	require.NoError(t, err)
	require.Len(t, resp.Answer, 1)
}

func TestServerConcurrentQueries(t *testing.T) {
	lists := liststore.New()
	lists.ReplaceBlocklist(liststore.NewDomainSet([]string{"ads.example.com"}))
	rec := stats.NewRecorder()

	addr := startTestServer(t, lists, rec)

	const n = 20
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			client := &dns.Client{Net: "udp", Timeout: 2 * time.Second}
			query := new(dns.Msg)
			query.SetQuestion("ads.example.com.", dns.TypeA)
			_, _, err := client.Exchange(query, addr)
			errs <- err
		}()
	}
	for i := 0; i < n; i++ {
		assert.NoError(t, <-errs)
	}

	total, blocked := rec.Counts()
	assert.Equal(t, uint64(n), total)
	assert.Equal(t, uint64(n), blocked)
}

func TestStartTwiceFails(t *testing.T) {
	cfg := config.LoadWithDefaults()
	cfg.DNSHost = "127.0.0.1"
	cfg.DNSPort = 0

	engine := NewEngine(cfg, liststore.New(), stats.NewRecorder(), nil, testLogger(t))
	srv := NewServer(cfg, engine, testLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = srv.Start(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for !srv.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("server did not start in time")
		}
		time.Sleep(5 * time.Millisecond)
	}

	assert.Error(t, srv.Start(ctx))
}
