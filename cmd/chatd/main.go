// Command chatd runs the TCP chat relay.
//
//	chatd [-host addr] [-max-clients n] [-buffer-size n] [-write-timeout d] [port]
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/ledzpl/tcpchat/internal/chat"
	"github.com/ledzpl/tcpchat/internal/config"
	"github.com/ledzpl/tcpchat/pkg/tcpserver"
)

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)

	cfg, err := config.ParseServer(flag.CommandLine, os.Args[1:])
	if err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	server := chat.NewServer(
		chat.WithLogger(logger),
		chat.WithCapacity(cfg.MaxClients),
		chat.WithBufferSize(cfg.BufferSize),
		chat.WithWriteTimeout(cfg.WriteTimeout),
	)
	listener := tcpserver.New(cfg.Addr(), logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(ctx)
	})
	g.Go(func() error {
		return listener.ListenAndServe(ctx, server.Accept)
	})

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("server stopped with error: %v", err)
	}
	logger.Print("Server: Shut down successfully")
}
