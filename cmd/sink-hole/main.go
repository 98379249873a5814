package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"sink-hole/pkg/api"
	"sink-hole/pkg/blocklist"
	"sink-hole/pkg/config"
	"sink-hole/pkg/dnsserver"
	"sink-hole/pkg/liststore"
	"sink-hole/pkg/logging"
	"sink-hole/pkg/resolver"
	"sink-hole/pkg/stats"
	"sink-hole/pkg/telemetry"
)

var (
	configPath     = flag.String("config", "config.yaml", "Path to configuration file")
	showVersion    = flag.Bool("version", false, "Show version information and exit")
	validateConfig = flag.Bool("validate-config", false, "Validate configuration file and exit")

	// Build-time variables set via ldflags
	// Example: go build -ldflags "-X main.version=$(git describe --tags)"
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("sink-hole DNS server\n")
		fmt.Printf("Version:     %s\n", version)
		fmt.Printf("Build Time:  %s\n", buildTime)
		fmt.Printf("Go Version:  %s\n", runtime.Version())
		os.Exit(0)
	}

	if *validateConfig {
		if _, err := config.Load(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Configuration invalid: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Configuration valid.")
		return
	}

	ctx := context.Background()

	// A missing or malformed config file is not fatal; the server runs on
	// defaults.
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config from %s: %v. Using default settings.\n", *configPath, err)
		cfg = config.LoadWithDefaults()
	}

	logger, err := logging.New(&cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetGlobal(logger)

	logger.Info("sink-hole DNS starting",
		"version", version,
		"build_time", buildTime,
	)

	telem, err := telemetry.New(ctx, &cfg.Telemetry, logger)
	if err != nil {
		logger.Error("Failed to initialize telemetry", "error", err)
		os.Exit(1)
	}

	metrics, err := telem.InitMetrics()
	if err != nil {
		logger.Error("Failed to initialize metrics", "error", err)
		os.Exit(1)
	}

	lists := liststore.New()
	recorder := stats.NewRecorder()

	// Blocklist downloads resolve through the configured upstream rather
	// than the host resolver, which may point back at this process.
	dnsResolver := resolver.New([]string{cfg.UpstreamAddr()}, logger)
	httpClient := dnsResolver.NewHTTPClient(blocklist.FetchTimeout)

	blocklistMgr := blocklist.NewManager(
		cfg.BlocklistURL,
		cfg.RefreshInterval(),
		lists,
		logger,
		metrics,
		httpClient,
	)
	if err := blocklistMgr.Start(ctx); err != nil {
		logger.Error("Failed to start blocklist manager", "error", err)
		// Continue anyway - the server can run with an empty blocklist.
	}

	engine := dnsserver.NewEngine(cfg, lists, recorder, metrics, logger)
	dnsSrv := dnsserver.NewServer(cfg, engine, logger)

	apiSrv := api.New(&api.Config{
		Lists:         lists,
		Stats:         recorder,
		Blocklist:     blocklistMgr,
		Logger:        logger.Logger,
		ListenAddress: cfg.DashboardAddr(),
		Version:       version,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	serverCtx, serverCancel := context.WithCancel(ctx)
	defer serverCancel()

	errChan := make(chan error, 2)

	go func() {
		if err := dnsSrv.Start(serverCtx); err != nil {
			errChan <- fmt.Errorf("DNS server error: %w", err)
		}
	}()

	go func() {
		if err := apiSrv.Start(serverCtx); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	logger.Info("sink-hole is running",
		"dns_address", cfg.DNSListenAddr(),
		"dashboard_address", cfg.DashboardAddr(),
		"upstream", cfg.UpstreamDNS,
		"sinkhole_ip", cfg.SinkholeIP,
	)

	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", "signal", sig.String())
		serverCancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		if err := apiSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Error during API server shutdown", "error", err)
		}

		blocklistMgr.Stop()

		if err := telem.Shutdown(shutdownCtx); err != nil {
			logger.Error("Error during telemetry shutdown", "error", err)
		}

		logger.Info("sink-hole stopped")

	case err := <-errChan:
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
}
