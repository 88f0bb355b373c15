package chat

import "errors"

var (
	// ErrCapacityExceeded is returned by Registry.Add when the registry is full.
	ErrCapacityExceeded = errors.New("chat: capacity exceeded")

	// ErrPeerClosed reports a zero-byte read: the peer closed its side of the connection.
	ErrPeerClosed = errors.New("chat: peer closed connection")

	// ErrReadFailure wraps any other error observed while reading from a client.
	ErrReadFailure = errors.New("chat: read failure")

	// ErrSendFailure wraps a failed write to a client.
	ErrSendFailure = errors.New("chat: send failure")

	errServerStopped = errors.New("chat: server already started or stopped")
)
