package dnsserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"

	"sink-hole/pkg/config"
	"sink-hole/pkg/logging"
)

// maxDatagramSize is the receive buffer for one datagram.
const maxDatagramSize = 4096

// Server owns the listening UDP socket and dispatches each datagram to the
// engine on its own goroutine, so a slow upstream forward never stalls
// other queries.
type Server struct {
	cfg    *config.Config
	engine *Engine
	logger *logging.Logger

	mu      sync.RWMutex
	conn    *net.UDPConn
	running bool
}

// NewServer creates a new UDP DNS server.
func NewServer(cfg *config.Config, engine *Engine, logger *logging.Logger) *Server {
	return &Server{
		cfg:    cfg,
		engine: engine,
		logger: logger,
	}
}

// Start binds the socket and runs the receive loop until ctx is canceled.
// A bind failure is returned to the caller and is fatal for the process;
// transient receive errors are logged and the loop continues.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}

	conn, err := net.ListenUDP("udp", &net.UDPAddr{
		IP:   net.ParseIP(s.cfg.DNSHost),
		Port: s.cfg.DNSPort,
	})
	if err != nil {
		s.mu.Unlock()
		if errors.Is(err, os.ErrPermission) {
			return fmt.Errorf("permission denied binding UDP port %d (ports below 1024 require elevated privileges): %w", s.cfg.DNSPort, err)
		}
		return fmt.Errorf("failed to bind DNS server: %w", err)
	}
	s.conn = conn
	s.running = true
	s.mu.Unlock()

	s.logger.Info("DNS server listening", "address", conn.LocalAddr().String())

	// Closing the socket is the only way to interrupt a blocked read.
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	buf := make([]byte, maxDatagramSize)
	for {
		n, raddr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.logger.Info("DNS server stopped")
				return nil
			}
			s.logger.Warn("Receive error on DNS socket", "error", err)
			continue
		}

		packet := make([]byte, n)
		copy(packet, buf[:n])
		go s.handle(ctx, packet, raddr)
	}
}

// handle processes one datagram and writes the engine's response back to
// the originating address. WriteToUDP is safe for concurrent use.
func (s *Server) handle(ctx context.Context, packet []byte, raddr *net.UDPAddr) {
	clientIP := raddr.IP.String()

	resp := s.engine.HandleQuery(ctx, packet, clientIP)
	if len(resp) == 0 {
		return
	}

	if _, err := s.conn.WriteToUDP(resp, raddr); err != nil {
		// Client likely went away - nothing we can do.
		s.logger.Debug("Failed to write DNS response", "client", clientIP, "error", err)
	}
}

// Addr returns the bound address, or nil before Start has bound the socket.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

// IsRunning reports whether the receive loop is active.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}
