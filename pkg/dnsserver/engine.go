// Package dnsserver implements the UDP listener and the query engine:
// parse, block/forward decision, sinkhole synthesis, upstream forwarding.
package dnsserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"sink-hole/pkg/config"
	"sink-hole/pkg/liststore"
	"sink-hole/pkg/logging"
	"sink-hole/pkg/stats"
	"sink-hole/pkg/telemetry"

	"github.com/miekg/dns"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// sinkholeTTL is the TTL of synthesized A answers for blocked names.
const sinkholeTTL = 60

// defaultUpstreamTimeout bounds a single upstream exchange.
const defaultUpstreamTimeout = 5 * time.Second

// Engine turns one raw datagram into one raw response (or a drop).
type Engine struct {
	lists   *liststore.Store
	stats   *stats.Recorder
	metrics *telemetry.Metrics
	logger  *logging.Logger

	sinkholeIP   net.IP
	upstreamAddr string // host:port used for the exchange
	upstreamName string // bare address used in log lines
	timeout      time.Duration

	clientPool sync.Pool
}

// NewEngine creates the query engine from configuration.
func NewEngine(cfg *config.Config, lists *liststore.Store, rec *stats.Recorder, metrics *telemetry.Metrics, logger *logging.Logger) *Engine {
	e := &Engine{
		lists:        lists,
		stats:        rec,
		metrics:      metrics,
		logger:       logger,
		sinkholeIP:   net.ParseIP(cfg.SinkholeIP).To4(),
		upstreamAddr: cfg.UpstreamAddr(),
		upstreamName: cfg.UpstreamDNS,
		timeout:      defaultUpstreamTimeout,
	}

	e.clientPool.New = func() any {
		return &dns.Client{
			Net:     "udp",
			Timeout: e.timeout,
		}
	}

	return e
}

// SetUpstream overrides the upstream resolver address.
func (e *Engine) SetUpstream(addr string) {
	e.upstreamAddr = addr
	if host, _, err := net.SplitHostPort(addr); err == nil {
		e.upstreamName = host
	} else {
		e.upstreamName = addr
	}
}

// SetTimeout sets the upstream exchange timeout.
func (e *Engine) SetTimeout(timeout time.Duration) {
	e.timeout = timeout
}

// HandleQuery processes one datagram from clientIP and returns the wire
// response to send back, or nil to drop.
func (e *Engine) HandleQuery(ctx context.Context, packet []byte, clientIP string) []byte {
	startTime := time.Now()
	defer func() {
		if e.metrics != nil {
			e.metrics.DNSQueryDuration.Record(ctx, float64(time.Since(startTime).Milliseconds()))
		}
	}()

	query := new(dns.Msg)
	if err := query.Unpack(packet); err != nil {
		e.logger.Warn("Dropping unparseable datagram", "client", clientIP, "error", err)
		return nil
	}

	if len(query.Question) == 0 {
		// Not a standard query, ignore.
		return nil
	}

	q := query.Question[0]
	qname := liststore.Normalize(q.Name)
	qtypeLabel := dnsTypeLabel(q.Qtype)

	e.stats.RecordQuery(fmt.Sprintf("%s - Query from %s for %s (Type: %s)", timestamp(), clientIP, qname, qtypeLabel))
	if e.metrics != nil {
		e.metrics.DNSQueriesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("type", qtypeLabel)))
	}

	snap := e.lists.Snapshot()
	action, matched, ok := liststore.Match(qname, snap)

	annotation := ""
	if ok {
		switch action {
		case liststore.ActionDenylist, liststore.ActionBlocklist:
			return e.sinkhole(ctx, query, q, action, qname, matched, qtypeLabel)
		case liststore.ActionAllowlist:
			annotation = fmt.Sprintf(" (matched %s, overriding deny/block lists)", matched)
		}
	}

	return e.forward(ctx, query, qname, qtypeLabel, annotation)
}

// sinkhole synthesizes the blocked-name response: the original question plus
// exactly one A answer pointing at the sinkhole address. The answer is type A
// regardless of qtype, matching the reference behavior.
func (e *Engine) sinkhole(ctx context.Context, query *dns.Msg, q dns.Question, action liststore.Action, qname, matched, qtypeLabel string) []byte {
	msg := new(dns.Msg)
	msg.SetReply(query)
	msg.RecursionAvailable = true
	msg.Answer = []dns.RR{&dns.A{
		Hdr: dns.RR_Header{
			Name:   q.Name,
			Rrtype: dns.TypeA,
			Class:  dns.ClassINET,
			Ttl:    sinkholeTTL,
		},
		A: e.sinkholeIP,
	}}

	wire, err := msg.Pack()
	if err != nil {
		e.logger.Error("Failed to pack sinkhole response", "domain", qname, "error", err)
		return nil
	}

	e.stats.RecordOutcome(fmt.Sprintf("%s - %s BLOCKED: %s (matched %s)", timestamp(), action, qname, matched), true)
	if e.metrics != nil {
		e.metrics.DNSBlockedQueries.Add(ctx, 1, metric.WithAttributes(
			attribute.String("list", string(action)),
			attribute.String("type", qtypeLabel),
		))
	}

	return wire
}

// forward relays the query to the upstream resolver over UDP and returns
// its answer, or a SERVFAIL when the upstream times out or errors.
func (e *Engine) forward(ctx context.Context, query *dns.Msg, qname, qtypeLabel, annotation string) []byte {
	client := e.clientPool.Get().(*dns.Client)
	client.Timeout = e.timeout
	defer e.clientPool.Put(client)

	resp, rtt, err := client.ExchangeContext(ctx, query, e.upstreamAddr)
	if err != nil {
		if isTimeout(err) {
			e.stats.RecordOutcome(fmt.Sprintf("%s - TIMEOUT: Forwarding %s to %s%s", timestamp(), qname, e.upstreamName, annotation), false)
			e.logger.Warn("Upstream query timed out",
				"domain", qname,
				"upstream", e.upstreamAddr,
				"timeout", e.timeout)
		} else {
			e.stats.RecordOutcome(fmt.Sprintf("%s - ERROR: Forwarding DNS query for %s: %v%s", timestamp(), qname, err, annotation), false)
			e.logger.Warn("Upstream query failed",
				"domain", qname,
				"upstream", e.upstreamAddr,
				"error", err)
		}
		if e.metrics != nil {
			e.metrics.DNSUpstreamErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("type", qtypeLabel)))
		}
		return e.servfail(query, qname)
	}

	wire, err := resp.Pack()
	if err != nil {
		e.logger.Error("Failed to pack upstream response", "domain", qname, "error", err)
		return e.servfail(query, qname)
	}

	e.stats.RecordOutcome(fmt.Sprintf("%s - FORWARDED: %s to %s%s", timestamp(), qname, e.upstreamName, annotation), false)
	if e.metrics != nil {
		e.metrics.DNSForwardedQueries.Add(ctx, 1, metric.WithAttributes(attribute.String("type", qtypeLabel)))
	}

	e.logger.Debug("Upstream query succeeded",
		"domain", qname,
		"upstream", e.upstreamAddr,
		"rcode", dns.RcodeToString[resp.Rcode],
		"rtt", rtt)

	return wire
}

// servfail builds the failure response: same ID and question, no answers,
// RCODE=SERVFAIL.
func (e *Engine) servfail(query *dns.Msg, qname string) []byte {
	msg := new(dns.Msg)
	msg.SetRcode(query, dns.RcodeServerFailure)
	msg.RecursionAvailable = true

	wire, err := msg.Pack()
	if err != nil {
		e.logger.Error("Failed to pack SERVFAIL response", "domain", qname, "error", err)
		return nil
	}
	return wire
}

// timestamp formats the wall clock at seconds precision for query log lines.
func timestamp() string {
	return time.Now().Format("15:04:05")
}

// dnsTypeLabel returns a human-readable string for the query type, falling
// back to TYPE#### per RFC 3597 when unknown.
func dnsTypeLabel(qtype uint16) string {
	if label := dns.TypeToString[qtype]; label != "" {
		return label
	}
	return "TYPE" + strconv.FormatUint(uint64(qtype), 10)
}

// isTimeout distinguishes deadline expiry from other transport failures.
func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err)
}
