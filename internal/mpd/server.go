// Package mpd implements the MPD text protocol on top of the core: request
// tokenizing, the command table, the per-connection dispatcher with its
// command lists and idle notifications, and the TCP server.
package mpd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/austinkregel/local-media/mpdd/internal/auth"
	"github.com/austinkregel/local-media/mpdd/internal/core"
)

// ServerConfig tunes the TCP server
type ServerConfig struct {
	Options
	MaxConnections    int
	ConnectionTimeout time.Duration
}

// Server accepts MPD clients and runs a Session for each
type Server struct {
	core   *core.Core
	table  *Table
	config ServerConfig
	logger *log.Logger

	listener net.Listener
	mu       sync.Mutex
	clients  map[net.Conn]struct{}
	wg       sync.WaitGroup
}

// NewServer creates a server for the core
func NewServer(c *core.Core, cfg ServerConfig, logger *log.Logger) *Server {
	if cfg.Updates == nil {
		cfg.Updates = NewUpdateJobs()
	}
	if cfg.Auth == nil {
		cfg.Auth = auth.NewManager("")
	}
	return &Server{
		core:    c,
		table:   NewDefaultTable(),
		config:  cfg,
		logger:  logger,
		clients: make(map[net.Conn]struct{}),
	}
}

// Table returns the command table sessions dispatch against
func (s *Server) Table() *Table {
	return s.table
}

// Options returns the settings shared by every session
func (s *Server) Options() Options {
	return s.config.Options
}

// Listen opens the TCP listener
func (s *Server) Listen(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener
	s.logger.Info("listening for MPD clients", "addr", listener.Addr().String())
	return nil
}

// Addr is the address the server listens on
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve accepts clients until ctx is cancelled, then closes every
// connection and waits for the sessions to finish
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		return errors.New("server is not listening")
	}

	go s.acceptLoop(ctx)
	<-ctx.Done()

	s.logger.Info("shutting down MPD server")
	s.listener.Close()

	s.mu.Lock()
	clientCount := len(s.clients)
	for conn := range s.clients {
		conn.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()

	s.logger.Info("MPD server stopped", "closed", clientCount)
	return nil
}

func (s *Server) acceptLoop(ctx context.Context) {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("accept error", "err", err)
			continue
		}

		s.mu.Lock()
		if s.config.MaxConnections > 0 && len(s.clients) >= s.config.MaxConnections {
			s.mu.Unlock()
			s.logger.Warn("rejecting client, too many connections", "remote", conn.RemoteAddr().String(), "max", s.config.MaxConnections)
			conn.Close()
			continue
		}
		s.clients[conn] = struct{}{}
		clientCount := len(s.clients)
		s.mu.Unlock()

		s.logger.Debug("client connected", "remote", conn.RemoteAddr().String(), "clients", clientCount)

		s.wg.Add(1)
		go s.handleConnection(ctx, conn)
	}
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	remoteAddr := conn.RemoteAddr().String()
	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		clientCount := len(s.clients)
		s.mu.Unlock()
		s.logger.Debug("client disconnected", "remote", remoteAddr, "clients", clientCount)
		s.wg.Done()
	}()

	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	logger := s.logger.With("session", uuid.NewString()[:8], "remote", remoteAddr)
	session := NewSession(newConnTransport(conn), s.core, s.table, s.config.Options, host, s.config.ConnectionTimeout, logger)
	if err := session.Serve(ctx); err != nil {
		logger.Debug("session ended", "err", err)
	}
}
