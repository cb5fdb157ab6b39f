package mpd

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"

	"github.com/austinkregel/local-media/mpdd/internal/core"
)

// Greeting is the first line every client receives
const Greeting = "OK MPD 0.19.0"

// Transport moves protocol lines to and from one client
type Transport interface {
	ReadLine(ctx context.Context) (string, error)
	WriteLines(lines []string) error
	Close() error
}

// Session runs the protocol for one client until it disconnects, sends
// close, or stays silent longer than the connection timeout
type Session struct {
	transport  Transport
	core       *core.Core
	context    *Context
	dispatcher *Dispatcher
	timeout    time.Duration
	logger     *log.Logger
}

// NewSession creates a session for a client at host. A zero timeout
// disables the inactivity timeout.
func NewSession(t Transport, c *core.Core, table *Table, opts Options, host string, timeout time.Duration, logger *log.Logger) *Session {
	ctx := NewContext(c, opts, host, logger)
	return &Session{
		transport:  t,
		core:       c,
		context:    ctx,
		dispatcher: NewDispatcher(table, ctx),
		timeout:    timeout,
		logger:     logger,
	}
}

// Serve greets the client and handles requests and idle notifications
func (s *Session) Serve(ctx context.Context) error {
	defer s.transport.Close()

	events := s.core.Bus.Subscribe()
	defer events.Close()

	if err := s.transport.WriteLines([]string{Greeting}); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		for {
			line, err := s.transport.ReadLine(ctx)
			if err != nil {
				readErr <- err
				return
			}
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
	}()

	var timer *time.Timer
	if s.timeout > 0 {
		timer = time.NewTimer(s.timeout)
		defer timer.Stop()
	}
	resetTimer := func() {
		if timer != nil {
			timer.Reset(s.timeout)
		}
	}

	for {
		var timeout <-chan time.Time
		if timer != nil && !s.dispatcher.Idle() {
			timeout = timer.C
		}

		select {
		case <-ctx.Done():
			return nil

		case err := <-readErr:
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err

		case line := <-lines:
			resetTimer()
			if !utf8.ValidString(line) {
				s.logger.Warn("closing connection, request is not valid UTF-8")
				return nil
			}
			s.logger.Debug("request", "line", line)
			if response := s.dispatcher.Handle(ctx, line); len(response) > 0 {
				if err := s.transport.WriteLines(response); err != nil {
					return err
				}
			}
			if s.context.Closing() {
				return nil
			}

		case <-events.C():
			for _, e := range events.Drain() {
				subsystem := e.Subsystem()
				if subsystem == "" {
					continue
				}
				if response := s.dispatcher.HandleIdle(subsystem); len(response) > 0 {
					resetTimer()
					if err := s.transport.WriteLines(response); err != nil {
						return err
					}
				}
			}

		case <-timeout:
			s.logger.Info("closing connection after inactivity", "timeout", s.timeout)
			return nil
		}
	}
}

// connTransport frames lines over a stream connection
type connTransport struct {
	conn   net.Conn
	reader *bufio.Reader
	writer *bufio.Writer
}

func newConnTransport(conn net.Conn) *connTransport {
	return &connTransport{
		conn:   conn,
		reader: bufio.NewReader(conn),
		writer: bufio.NewWriter(conn),
	}
}

func (t *connTransport) ReadLine(ctx context.Context) (string, error) {
	line, err := t.reader.ReadString('\n')
	if err != nil {
		if line != "" && errors.Is(err, io.EOF) {
			return strings.TrimRight(line, "\r"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (t *connTransport) WriteLines(lines []string) error {
	for _, l := range lines {
		if _, err := t.writer.WriteString(l); err != nil {
			return err
		}
		if err := t.writer.WriteByte('\n'); err != nil {
			return err
		}
	}
	return t.writer.Flush()
}

func (t *connTransport) Close() error {
	return t.conn.Close()
}
