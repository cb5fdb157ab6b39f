// Package web serves the MPD protocol over WebSocket so browser clients can
// talk to the daemon. Each text message from the client carries one or more
// request lines; each response goes back as one text message.
package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/austinkregel/local-media/mpdd/internal/core"
	"github.com/austinkregel/local-media/mpdd/internal/mpd"
)

const (
	writeTimeout = 10 * time.Second
	readLimit    = 1 << 20
)

// Server is the HTTP server carrying the /ws endpoint
type Server struct {
	core     *core.Core
	mpd      *mpd.Server
	timeout  time.Duration
	origins  []string
	logger   *log.Logger
	listener net.Listener
}

// NewServer creates a WebSocket front for the sessions mpdServer would run.
// origins lists the allowed Origin host patterns; empty allows same-host
// requests only.
func NewServer(c *core.Core, mpdServer *mpd.Server, timeout time.Duration, origins []string, logger *log.Logger) *Server {
	return &Server{
		core:    c,
		mpd:     mpdServer,
		timeout: timeout,
		origins: origins,
		logger:  logger,
	}
}

// Handler returns the HTTP routes
func (s *Server) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		s.serveWebSocket(ctx, w, r)
	})
	return mux
}

// Listen opens the TCP listener
func (s *Server) Listen(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener
	s.logger.Info("listening for WebSocket clients", "addr", listener.Addr().String())
	return nil
}

// Addr is the address the server listens on
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve handles requests until ctx is cancelled
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		return errors.New("server is not listening")
	}
	srv := &http.Server{
		Handler:           s.Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(s.listener) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("http shutdown", "err", err)
	}
	s.logger.Info("WebSocket server stopped")
	return nil
}

func (s *Server) serveWebSocket(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.origins,
	})
	if err != nil {
		s.logger.Warn("ws accept failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	conn.SetReadLimit(readLimit)

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	logger := s.logger.With("session", uuid.NewString()[:8], "remote", r.RemoteAddr, "transport", "ws")
	logger.Debug("client connected")

	session := mpd.NewSession(newTransport(conn), s.core, s.mpd.Table(), s.mpd.Options(), host, s.timeout, logger)
	if err := session.Serve(ctx); err != nil {
		logger.Debug("session ended", "err", err)
	}
	logger.Debug("client disconnected")
}

// transport adapts a WebSocket connection to mpd.Transport
type transport struct {
	conn    *websocket.Conn
	pending []string
}

func newTransport(conn *websocket.Conn) *transport {
	return &transport{conn: conn}
}

// ReadLine returns the next request line, reading a new message when the
// previous one is used up. Binary messages are ignored.
func (t *transport) ReadLine(ctx context.Context) (string, error) {
	for len(t.pending) == 0 {
		typ, data, err := t.conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return "", net.ErrClosed
			}
			return "", err
		}
		if typ != websocket.MessageText {
			continue
		}
		t.pending = splitLines(string(data))
	}
	line := t.pending[0]
	t.pending = t.pending[1:]
	return line, nil
}

// splitLines splits a message into request lines. A trailing newline does
// not add an empty request; an empty message is one empty request.
func splitLines(msg string) []string {
	msg = strings.TrimSuffix(msg, "\n")
	lines := strings.Split(msg, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

func (t *transport) WriteLines(lines []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return t.conn.Write(ctx, websocket.MessageText, []byte(strings.Join(lines, "\n")+"\n"))
}

func (t *transport) Close() error {
	return t.conn.Close(websocket.StatusNormalClosure, "")
}
