package tcpserver

import (
	"context"
	"io"
	"log"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestListenReportsBindFailure(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	_, err = New(busy.Addr().String(), quietLogger()).Listen(context.Background())
	require.ErrorIs(t, err, ErrBind)
}

func TestListenReportsInvalidAddress(t *testing.T) {
	_, err := New("127.0.0.1:not-a-port", quietLogger()).Listen(context.Background())
	require.ErrorIs(t, err, ErrListen)
}

func TestServeHandsOffConnections(t *testing.T) {
	srv := New("127.0.0.1:0", quietLogger())
	ln, err := srv.Listen(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	accepted := make(chan net.Conn, 1)
	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(ctx, ln, func(conn net.Conn) { accepted <- conn })
	}()

	client, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	select {
	case conn := <-accepted:
		require.Equal(t, client.LocalAddr().String(), conn.RemoteAddr().String())
		conn.Close()
	case <-time.After(time.Second):
		t.Fatal("connection was not handed to the handler")
	}

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestServeStopsWhenListenerClosed(t *testing.T) {
	srv := New("127.0.0.1:0", quietLogger())
	ln, err := srv.Listen(context.Background())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(context.Background(), ln, func(conn net.Conn) { conn.Close() })
	}()

	require.NoError(t, ln.Close())
	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrAccept)
		require.ErrorIs(t, err, net.ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after the listener closed")
	}
}

func TestServeRequiresHandler(t *testing.T) {
	err := New("127.0.0.1:0", quietLogger()).ListenAndServe(context.Background(), nil)
	require.Error(t, err)
}
