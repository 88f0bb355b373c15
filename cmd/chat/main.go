// Command chat is a terminal client for chatd.
//
//	chat [address] [port]
package main

import (
	"flag"
	"fmt"
	"net"
	"os"

	"github.com/ledzpl/tcpchat/internal/chat"
	"github.com/ledzpl/tcpchat/internal/config"
)

func main() {
	cfg, err := config.ParseClient(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	conn, err := net.Dial("tcp", cfg.Addr())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to connect to server: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Connected to server at %s:%d\n", cfg.ServerAddr, cfg.Port)
	fmt.Println()
	fmt.Println("--- Multi-Client Chat ---")
	fmt.Printf("Type '%s' or '%s' to disconnect\n", chat.CommandQuit, chat.CommandExit)
	fmt.Println("-------------------------")
	fmt.Println()

	session := chat.NewSession(conn, os.Stdin, os.Stdout, chat.WithErrorOutput(os.Stderr))
	err = session.Run()
	fmt.Println("Disconnected from server")
	if err != nil {
		os.Exit(1)
	}
}
