package blocklist

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"sink-hole/pkg/liststore"
	"sink-hole/pkg/logging"
	"sink-hole/pkg/telemetry"
)

// Manager owns the refresh schedule and publishes each successfully fetched
// set to the list store. A failed fetch never touches the published set.
type Manager struct {
	url      string
	interval time.Duration
	fetcher  *Fetcher
	store    *liststore.Store
	logger   *logging.Logger
	metrics  *telemetry.Metrics

	stopChan chan struct{}
	wg       sync.WaitGroup
	started  atomic.Bool
}

// NewManager creates a manager that publishes into store. An empty url
// disables fetching entirely.
func NewManager(url string, interval time.Duration, store *liststore.Store, logger *logging.Logger, metrics *telemetry.Metrics, httpClient *http.Client) *Manager {
	return &Manager{
		url:      url,
		interval: interval,
		fetcher:  NewFetcher(logger, httpClient),
		store:    store,
		logger:   logger,
		metrics:  metrics,
		stopChan: make(chan struct{}),
	}
}

// Start runs the initial fetch synchronously and then starts the periodic
// refresh loop. A failed initial fetch is logged and the loop continues on
// schedule; the server can serve with an empty blocklist.
func (m *Manager) Start(ctx context.Context) error {
	if !m.started.CompareAndSwap(false, true) {
		m.logger.Warn("Blocklist manager already started")
		return nil
	}

	if m.url == "" {
		m.logger.Info("No blocklist URL configured, skipping blocklist downloads")
		return nil
	}

	m.stopChan = make(chan struct{})

	m.logger.Info("Starting blocklist manager",
		"url", m.url,
		"interval", m.interval)

	if err := m.Refresh(ctx); err != nil {
		m.logger.Error("Initial blocklist download failed", "url", m.url, "error", err)
	}

	if m.interval > 0 {
		m.wg.Add(1)
		go m.refreshLoop(ctx)
	}

	return nil
}

// Stop terminates the refresh loop.
func (m *Manager) Stop() {
	if !m.started.CompareAndSwap(true, false) {
		return
	}
	close(m.stopChan)
	m.wg.Wait()
	m.logger.Info("Blocklist manager stopped")
}

// Refresh fetches the feed once and atomically swaps the published
// blocklist on success.
func (m *Manager) Refresh(ctx context.Context) error {
	if m.url == "" {
		return fmt.Errorf("no blocklist URL configured")
	}

	fetchCtx, cancel := context.WithTimeout(ctx, FetchTimeout)
	defer cancel()

	domains, err := m.fetcher.Fetch(fetchCtx, m.url)
	if err != nil {
		return fmt.Errorf("blocklist refresh: %w", err)
	}

	oldSize := m.store.BlocklistSize()
	m.store.ReplaceBlocklist(domains)

	if m.metrics != nil {
		m.metrics.BlocklistSize.Record(ctx, int64(len(domains)))
	}

	m.logger.Info("Blocklist updated",
		"domains", len(domains),
		"previous", oldSize)

	return nil
}

// refreshLoop re-fetches on a fixed interval until stopped. Errors are
// logged and the schedule continues.
func (m *Manager) refreshLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.Info("Blocklist refresh loop started", "interval", m.interval)

	for {
		select {
		case <-m.stopChan:
			m.logger.Info("Blocklist refresh loop stopped")
			return
		case <-ticker.C:
			if err := m.Refresh(ctx); err != nil {
				m.logger.Error("Scheduled blocklist refresh failed", "url", m.url, "error", err)
			}
		}
	}
}
