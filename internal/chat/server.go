package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"time"
)

// DefaultBufferSize is the read buffer size per client, including one reserved byte.
const DefaultBufferSize = 1024

type eventKind int

const (
	eventAccept eventKind = iota
	eventData
	eventClosed
)

type event struct {
	kind eventKind
	conn net.Conn
	id   RecordID
	data []byte
	err  error
}

// Server is the chat event loop. A single goroutine running Run owns the
// registry and performs every write; read pumps and Accept only enqueue events.
type Server struct {
	registry *Registry
	router   *Router
	logger   *log.Logger

	bufferSize   int
	writeTimeout time.Duration

	events chan event
	done   chan struct{}
	pumps  sync.WaitGroup

	mu      sync.Mutex
	running bool
	stopped bool
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the operator log.
func WithLogger(logger *log.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCapacity bounds the number of concurrently registered clients.
func WithCapacity(capacity int) Option {
	return func(s *Server) {
		s.registry = NewRegistry(capacity)
	}
}

// WithBufferSize sets the per-read buffer size. One byte is reserved, so a
// buffer of n bytes yields at most n-1 bytes per read.
func WithBufferSize(size int) Option {
	return func(s *Server) {
		if size > 1 {
			s.bufferSize = size
		}
	}
}

// WithWriteTimeout bounds every write to a client. Zero keeps writes blocking.
func WithWriteTimeout(timeout time.Duration) Option {
	return func(s *Server) {
		if timeout >= 0 {
			s.writeTimeout = timeout
		}
	}
}

// NewServer constructs an idle Server. Call Run to start the loop.
func NewServer(opts ...Option) *Server {
	s := &Server{
		registry:   NewRegistry(DefaultCapacity),
		logger:     log.Default(),
		bufferSize: DefaultBufferSize,
		events:     make(chan event, 64),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.router = NewRouter(s.registry, s.logger, s.writeTimeout)
	return s
}

// Accept hands a freshly accepted connection to the loop. It is safe to call
// from any goroutine. Connections offered after shutdown are closed.
func (s *Server) Accept(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		_ = conn.Close()
		return
	}
	select {
	case s.events <- event{kind: eventAccept, conn: conn}:
	case <-s.done:
		_ = conn.Close()
	}
}

// Run processes events until ctx is cancelled. On return every client
// connection has been closed and every read pump has exited.
func (s *Server) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running || s.stopped {
		s.mu.Unlock()
		return errServerStopped
	}
	s.running = true
	s.mu.Unlock()

	defer s.shutdown()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-s.events:
			s.dispatch(s.collect(ev))
		}
	}
}

// collect returns first plus every event already queued behind it.
func (s *Server) collect(first event) []event {
	ready := []event{first}
	for n := len(s.events); n > 0; n-- {
		ready = append(ready, <-s.events)
	}
	return ready
}

func (s *Server) dispatch(ready []event) {
	for _, ev := range ready {
		if ev.kind == eventAccept {
			s.handleAccept(ev.conn)
		}
	}
	for _, ev := range ready {
		switch ev.kind {
		case eventData:
			s.handleData(ev.id, ev.data)
		case eventClosed:
			s.teardown(ev.id, ev.err)
		}
	}
}

func (s *Server) handleAccept(conn net.Conn) {
	id, err := s.registry.Add(conn)
	if err != nil {
		s.logger.Printf("chat: reject %s: %v", conn.RemoteAddr(), err)
		if err := writeLine(conn, RejectFull, s.writeTimeout); err != nil {
			s.logger.Printf("chat: reject %s: %v", conn.RemoteAddr(), err)
		}
		_ = conn.Close()
		return
	}

	client, _ := s.registry.Get(id)
	s.logger.Printf("chat: new connection from %s (%s)", client.RemoteAddr, client.SessionID)

	if err := writeLine(conn, PromptUsername, s.writeTimeout); err != nil {
		s.teardown(id, err)
		return
	}
	s.watch(id, conn)
}

func (s *Server) handleData(id RecordID, data []byte) {
	if _, ok := s.registry.Get(id); !ok {
		return
	}
	if err := s.router.Route(id, firstLine(data)); err != nil {
		s.teardown(id, err)
	}
}

// teardown announces the departure of id, closes its connection and removes
// its record. Ids that are already gone are ignored.
func (s *Server) teardown(id RecordID, cause error) {
	client, ok := s.registry.Get(id)
	if !ok {
		return
	}

	name := client.Username
	if !client.Authenticated {
		name = client.RemoteAddr
	}
	if errors.Is(cause, ErrPeerClosed) {
		s.logger.Printf("chat: client %s disconnected (%s)", name, client.SessionID)
	} else {
		s.logger.Printf("chat: client %s dropped (%s): %v", name, client.SessionID, cause)
	}

	s.router.Depart(id)
	if err := client.Conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		s.logger.Printf("chat: close %s: %v", name, err)
	}
	s.registry.Remove(id)
}

// watch starts the read pump for id.
func (s *Server) watch(id RecordID, conn net.Conn) {
	s.pumps.Add(1)
	go func() {
		defer s.pumps.Done()

		buf := make([]byte, s.bufferSize-1)
		for {
			n, err := conn.Read(buf)
			if n > 0 {
				data := append([]byte(nil), buf[:n]...)
				if !s.post(event{kind: eventData, id: id, data: data}) {
					return
				}
			}
			if err != nil {
				if errors.Is(err, io.EOF) {
					err = ErrPeerClosed
				} else {
					err = fmt.Errorf("%w: %w", ErrReadFailure, err)
				}
				s.post(event{kind: eventClosed, id: id, err: err})
				return
			}
		}
	}()
}

func (s *Server) post(ev event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

func (s *Server) shutdown() {
	close(s.done)

	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	s.registry.ForEach(nil, func(id RecordID, client *ClientRecord) {
		_ = client.Conn.Close()
		s.registry.Remove(id)
	})

	for n := len(s.events); n > 0; n-- {
		if ev := <-s.events; ev.kind == eventAccept {
			_ = ev.conn.Close()
		}
	}

	s.pumps.Wait()
	s.logger.Print("chat: shut down")
}
