package tcpserver

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"syscall"
)

var (
	// ErrSocketCreation reports that the operating system refused to create the listening socket.
	ErrSocketCreation = errors.New("tcpserver: socket creation failed")
	// ErrBind reports that the listen address could not be bound.
	ErrBind = errors.New("tcpserver: bind failed")
	// ErrListen reports any other failure to start listening.
	ErrListen = errors.New("tcpserver: listen failed")
	// ErrAccept wraps a failed accept on a running listener.
	ErrAccept = errors.New("tcpserver: accept failed")
)

// ConnHandler receives every accepted connection and takes ownership of it.
type ConnHandler func(conn net.Conn)

// Server wraps the TCP listener lifecycle.
type Server struct {
	Addr string

	logger *log.Logger
}

// New creates a Server for addr.
func New(addr string, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}

	return &Server{
		Addr:   addr,
		logger: logger,
	}
}

// Listen opens the listening socket. Failures are wrapped in ErrSocketCreation,
// ErrBind or ErrListen.
func (s *Server) Listen(ctx context.Context) (net.Listener, error) {
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", s.Addr)
	if err != nil {
		return nil, classifyListenError(s.Addr, err)
	}
	return listener, nil
}

// ListenAndServe listens on Addr and serves until the context is cancelled or
// the listener fails.
func (s *Server) ListenAndServe(ctx context.Context, handler ConnHandler) error {
	if handler == nil {
		return errors.New("tcpserver: connection handler required")
	}

	listener, err := s.Listen(ctx)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listener, handler)
}

// Serve accepts connections on listener and passes them to handler. A failed
// accept is logged and does not stop the loop. The listener is closed on return.
func (s *Server) Serve(ctx context.Context, listener net.Listener, handler ConnHandler) error {
	if handler == nil {
		return errors.New("tcpserver: connection handler required")
	}
	defer listener.Close()

	shutdown := make(chan struct{})
	defer close(shutdown)

	go func() {
		select {
		case <-ctx.Done():
			if err := listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
				s.logger.Printf("tcpserver: listener close error: %v", err)
			}
		case <-shutdown:
		}
	}()

	s.logger.Printf("tcpserver: listening on %s", listener.Addr())

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("%w: %w", ErrAccept, err)
			}
			s.logger.Printf("tcpserver: %v", fmt.Errorf("%w: %w", ErrAccept, err))
			continue
		}

		handler(conn)
	}
}

func classifyListenError(addr string, err error) error {
	switch {
	case errors.Is(err, syscall.EADDRINUSE),
		errors.Is(err, syscall.EADDRNOTAVAIL),
		errors.Is(err, syscall.EACCES):
		return fmt.Errorf("%w: %s: %w", ErrBind, addr, err)
	case errors.Is(err, syscall.EMFILE),
		errors.Is(err, syscall.ENFILE),
		errors.Is(err, syscall.EAFNOSUPPORT),
		errors.Is(err, syscall.EPROTONOSUPPORT):
		return fmt.Errorf("%w: %s: %w", ErrSocketCreation, addr, err)
	default:
		return fmt.Errorf("%w: %s: %w", ErrListen, addr, err)
	}
}
