// Package blocklist downloads the hosts-format feed, parses it into a
// domain set, and periodically republishes it to the list store.
package blocklist

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"sink-hole/pkg/liststore"
	"sink-hole/pkg/logging"
)

// FetchTimeout bounds a single feed download.
const FetchTimeout = 10 * time.Second

// Fetcher downloads and parses the blocklist feed.
type Fetcher struct {
	client *http.Client
	logger *logging.Logger
}

// NewFetcher creates a fetcher with a custom HTTP client. The client should
// resolve through the configured upstream DNS (see pkg/resolver); if nil, a
// default client with the fetch timeout is used.
func NewFetcher(logger *logging.Logger, client *http.Client) *Fetcher {
	if client == nil {
		logger.Warn("No HTTP client provided, using default client with system DNS resolver")
		client = &http.Client{Timeout: FetchTimeout}
	}

	return &Fetcher{
		client: client,
		logger: logger,
	}
}

// Fetch downloads the feed at url and returns the parsed domain set.
func (f *Fetcher) Fetch(ctx context.Context, url string) (liststore.DomainSet, error) {
	f.logger.Info("Downloading blocklist", "url", url)
	startTime := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download blocklist: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	domains, err := ParseHosts(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse blocklist: %w", err)
	}

	f.logger.Info("Blocklist downloaded",
		"url", url,
		"domains", len(domains),
		"duration", time.Since(startTime))

	return domains, nil
}

// ParseHosts parses a hosts-format feed. Per line:
//
//	0.0.0.0 domain.com    -> domain.com
//	127.0.0.1 domain.com  -> domain.com
//	domain.com            -> domain.com
//
// Blank lines and lines starting with "#" are skipped. A line with two or
// more tokens whose first token is not one of the two sinkhole addresses is
// ignored. Trailing comments after the hostname fall away because only the
// second token is consulted.
func ParseHosts(r io.Reader) (liststore.DomainSet, error) {
	domains := make(liststore.DomainSet)
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		var raw string
		switch {
		case len(fields) >= 2 && (fields[0] == "0.0.0.0" || fields[0] == "127.0.0.1"):
			raw = fields[1]
		case len(fields) == 1:
			raw = fields[0]
		default:
			continue
		}

		if domain := liststore.Normalize(raw); domain != "" {
			domains[domain] = struct{}{}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading blocklist: %w", err)
	}

	return domains, nil
}
