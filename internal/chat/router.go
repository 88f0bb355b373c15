package chat

import (
	"fmt"
	"io"
	"log"
	"net"
	"time"
)

// Router interprets inbound lines and fans messages out to authenticated peers.
//
// Sends are synchronous on the caller's goroutine. A stalled peer blocks the
// whole event loop unless a write timeout is configured; a per-client outbound
// queue would lift that limitation.
type Router struct {
	registry     *Registry
	logger       *log.Logger
	writeTimeout time.Duration
}

// NewRouter constructs a Router over registry.
func NewRouter(registry *Registry, logger *log.Logger, writeTimeout time.Duration) *Router {
	if logger == nil {
		logger = log.Default()
	}
	return &Router{
		registry:     registry,
		logger:       logger,
		writeTimeout: writeTimeout,
	}
}

// Route handles one inbound line from id. The first line of a client is always
// its username claim. A non-nil error means the sender itself could not be
// written to and should be torn down.
func (r *Router) Route(id RecordID, line string) error {
	client, ok := r.registry.Get(id)
	if !ok {
		return nil
	}

	if !client.Authenticated {
		client.Username = line
		if err := r.send(client, welcomeLine(client.Username)); err != nil {
			return err
		}
		// Authenticated only once the welcome is delivered.
		client.Authenticated = true
		r.logger.Printf("chat: client %s connected (%s)", client.Username, client.SessionID)
		r.Broadcast(id, joinNotice(client.Username))
		return nil
	}

	msg := chatLine(client.Username, line)
	r.logger.Print("chat: " + msg)
	r.Broadcast(id, msg)
	return nil
}

// Depart announces that id is leaving. Nothing is sent for clients that never
// claimed a username.
func (r *Router) Depart(id RecordID) {
	client, ok := r.registry.Get(id)
	if !ok || !client.Authenticated {
		return
	}
	r.Broadcast(id, leaveNotice(client.Username))
}

// Broadcast delivers msg to every authenticated client except sender and
// returns the number of successful deliveries. Failed sends are logged and do
// not stop the fan-out.
func (r *Router) Broadcast(sender RecordID, msg string) int {
	delivered := 0
	r.registry.ForEach(
		func(id RecordID, client *ClientRecord) bool {
			return id != sender && client.Authenticated
		},
		func(_ RecordID, client *ClientRecord) {
			if err := r.send(client, msg); err != nil {
				r.logger.Printf("chat: broadcast to %s: %v", client.Username, err)
				return
			}
			delivered++
		},
	)
	return delivered
}

func (r *Router) send(client *ClientRecord, msg string) error {
	return writeLine(client.Conn, msg, r.writeTimeout)
}

func writeLine(conn net.Conn, msg string, timeout time.Duration) error {
	if timeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			return fmt.Errorf("%w: set deadline: %w", ErrSendFailure, err)
		}
	}
	if _, err := io.WriteString(conn, msg); err != nil {
		return fmt.Errorf("%w: %w", ErrSendFailure, err)
	}
	return nil
}
