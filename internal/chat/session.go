package chat

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Session is the client side of a chat connection: a receiver copying server
// output to the display and a sender forwarding local input lines.
type Session struct {
	conn net.Conn
	in   io.Reader

	display *lockedWriter
	errs    *lockedWriter

	bufferSize int
	connected  atomic.Bool
	cleanup    sync.Once
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithErrorOutput sets where local error messages are printed. Defaults to os.Stderr.
func WithErrorOutput(w io.Writer) SessionOption {
	return func(s *Session) {
		if w != nil {
			s.errs = newLockedWriter(w)
		}
	}
}

// NewSession wires conn to the local input and display.
func NewSession(conn net.Conn, in io.Reader, out io.Writer, opts ...SessionOption) *Session {
	s := &Session{
		conn:       conn,
		in:         in,
		display:    newLockedWriter(out),
		errs:       newLockedWriter(os.Stderr),
		bufferSize: DefaultBufferSize,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Run starts the receiver and sender and returns once both have finished. The
// connection is closed on return.
//
// Neither task is interrupted mid-read: when the sender stops first the write
// side is half-closed so the server disconnects and the receiver's read
// returns; when the receiver stops first the sender exits after its current
// input line.
func (s *Session) Run() error {
	defer s.close()

	s.connected.Store(true)

	var g errgroup.Group
	g.Go(s.receive)
	g.Go(func() error {
		err := s.send()
		s.connected.Store(false)
		s.closeWrite()
		return err
	})
	return g.Wait()
}

// Connected reports whether neither side has observed a disconnect yet.
func (s *Session) Connected() bool {
	return s.connected.Load()
}

func (s *Session) receive() error {
	buf := make([]byte, s.bufferSize-1)
	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			if _, werr := s.display.Write(buf[:n]); werr != nil {
				s.connected.Store(false)
				return fmt.Errorf("chat: display: %w", werr)
			}
		}
		if err == nil {
			continue
		}

		// A local quit already flipped the flag; the read error is our own close.
		wasConnected := s.connected.Swap(false)
		switch {
		case !wasConnected:
			return nil
		case errors.Is(err, io.EOF):
			_ = s.display.writeString("\nServer closed connection\n")
			return nil
		default:
			_ = s.errs.writeString("\nError: Failed to receive data\n")
			return fmt.Errorf("%w: %w", ErrReadFailure, err)
		}
	}
}

func (s *Session) send() error {
	scanner := bufio.NewScanner(s.in)
	for scanner.Scan() {
		if !s.connected.Load() {
			return nil
		}

		line := scanner.Text()
		if _, err := io.WriteString(s.conn, line+"\n"); err != nil {
			_ = s.errs.writeString("Error: Failed to send message\n")
			return fmt.Errorf("%w: %w", ErrSendFailure, err)
		}
		if IsSentinel(line) {
			return nil
		}
	}
	return scanner.Err()
}

func (s *Session) closeWrite() {
	if cw, ok := s.conn.(interface{ CloseWrite() error }); ok {
		if err := cw.CloseWrite(); err == nil {
			return
		}
	}
	_ = s.conn.Close()
}

func (s *Session) close() {
	s.cleanup.Do(func() {
		s.connected.Store(false)
		_ = s.conn.Close()
	})
}

// lockedWriter serialises writes from the receiver and sender goroutines.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func newLockedWriter(w io.Writer) *lockedWriter {
	if w == nil {
		w = io.Discard
	}
	return &lockedWriter{w: w}
}

func (w *lockedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.w.Write(p)
}

func (w *lockedWriter) writeString(s string) error {
	_, err := io.WriteString(w, s)
	return err
}
