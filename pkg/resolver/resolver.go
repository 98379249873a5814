// Package resolver centralizes outbound DNS resolution so other packages
// avoid relying on the host resolver. On a machine whose /etc/resolv.conf
// points at this very process, blocklist downloads through the system
// resolver would deadlock against an empty blocklist at startup.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"sink-hole/pkg/logging"
)

// Resolver resolves hostnames through the configured upstream DNS servers
// instead of the system's default resolver.
type Resolver struct {
	logger    *logging.Logger
	dialer    *net.Dialer
	upstreams []string
}

// New creates a resolver that uses the specified upstream DNS servers. If
// upstreams is empty, it falls back to the system's default resolver.
func New(upstreams []string, logger *logging.Logger) *Resolver {
	if len(upstreams) == 0 {
		logger.Warn("No upstream DNS servers configured, using system default resolver")
	} else {
		logger.Info("DNS resolver initialized", "upstreams", upstreams)
	}

	return &Resolver{
		upstreams: upstreams,
		logger:    logger,
		dialer: &net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		},
	}
}

// LookupIP resolves a hostname using the configured upstreams, trying each
// until one succeeds.
func (r *Resolver) LookupIP(ctx context.Context, network, host string) ([]net.IP, error) {
	if len(r.upstreams) == 0 {
		return net.DefaultResolver.LookupIP(ctx, network, host)
	}

	var lastErr error
	for _, upstream := range r.upstreams {
		upstream := upstream
		netResolver := &net.Resolver{
			PreferGo: true,
			Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
				return r.dialer.DialContext(ctx, "udp", upstream)
			},
		}

		ips, err := netResolver.LookupIP(ctx, network, host)
		if err != nil {
			lastErr = err
			r.logger.Warn("DNS resolution attempt failed",
				"host", host,
				"upstream", upstream,
				"error", err)
			continue
		}
		if len(ips) > 0 {
			return ips, nil
		}
		lastErr = fmt.Errorf("no addresses for %s via %s", host, upstream)
	}

	if lastErr == nil {
		lastErr = errors.New("no upstream produced an answer")
	}
	return nil, fmt.Errorf("failed to resolve %s: %w", host, lastErr)
}

// NewHTTPClient returns an HTTP client whose connections resolve hostnames
// through this resolver. The timeout bounds the whole request.
func (r *Resolver) NewHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, err
			}

			// Literal addresses skip resolution entirely.
			if ip := net.ParseIP(host); ip != nil {
				return r.dialer.DialContext(ctx, network, addr)
			}

			ips, err := r.LookupIP(ctx, "ip", host)
			if err != nil {
				return nil, err
			}

			var lastErr error
			for _, ip := range ips {
				conn, dialErr := r.dialer.DialContext(ctx, network, net.JoinHostPort(ip.String(), port))
				if dialErr == nil {
					return conn, nil
				}
				lastErr = dialErr
			}
			return nil, fmt.Errorf("failed to connect to %s: %w", host, lastErr)
		},
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
