// Package config loads server and client settings from the environment,
// command-line flags and positional arguments, in increasing precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
)

// DefaultPort is used by both the server and the client when none is given.
const DefaultPort = 8080

// ErrInvalidPort reports a port outside 1-65535 or one that is not a number.
var ErrInvalidPort = errors.New("config: invalid port number")

// Server holds chatd settings.
type Server struct {
	Host         string        `env:"CHAT_HOST"`
	Port         int           `env:"CHAT_PORT"          envDefault:"8080"`
	MaxClients   int           `env:"CHAT_MAX_CLIENTS"   envDefault:"10"`
	BufferSize   int           `env:"CHAT_BUFFER_SIZE"   envDefault:"1024"`
	WriteTimeout time.Duration `env:"CHAT_WRITE_TIMEOUT" envDefault:"0s"`
}

// Addr returns the listen address.
func (c Server) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Client holds chat client settings.
type Client struct {
	ServerAddr string `env:"CHAT_SERVER_ADDR" envDefault:"127.0.0.1"`
	Port       int    `env:"CHAT_PORT"        envDefault:"8080"`
}

// Addr returns the server address to dial.
func (c Client) Addr() string {
	return net.JoinHostPort(c.ServerAddr, strconv.Itoa(c.Port))
}

// ParseServer builds the server config. Usage: chatd [flags] [port].
func ParseServer(fs *flag.FlagSet, args []string) (Server, error) {
	var cfg Server
	if err := parseEnv(&cfg); err != nil {
		return Server{}, err
	}

	fs.StringVar(&cfg.Host, "host", cfg.Host, "listen host (empty for all interfaces)")
	fs.IntVar(&cfg.MaxClients, "max-clients", cfg.MaxClients, "maximum number of concurrent clients")
	fs.IntVar(&cfg.BufferSize, "buffer-size", cfg.BufferSize, "per-read buffer size in bytes")
	fs.DurationVar(&cfg.WriteTimeout, "write-timeout", cfg.WriteTimeout, "per-write deadline for client sends (0 disables)")
	if err := fs.Parse(nonNil(args)); err != nil {
		return Server{}, err
	}

	if rest := fs.Args(); len(rest) > 0 {
		port, err := ParsePort(rest[0])
		if err != nil {
			return Server{}, err
		}
		cfg.Port = port
	}
	if err := ValidatePort(cfg.Port); err != nil {
		return Server{}, err
	}
	if cfg.MaxClients <= 0 {
		return Server{}, fmt.Errorf("config: max clients must be positive, got %d", cfg.MaxClients)
	}
	if cfg.BufferSize < 2 {
		return Server{}, fmt.Errorf("config: buffer size must be at least 2, got %d", cfg.BufferSize)
	}
	if cfg.WriteTimeout < 0 {
		return Server{}, fmt.Errorf("config: write timeout must not be negative, got %v", cfg.WriteTimeout)
	}
	return cfg, nil
}

// ParseClient builds the client config. Usage: chat [address] [port].
func ParseClient(fs *flag.FlagSet, args []string) (Client, error) {
	var cfg Client
	if err := parseEnv(&cfg); err != nil {
		return Client{}, err
	}

	if err := fs.Parse(nonNil(args)); err != nil {
		return Client{}, err
	}

	rest := fs.Args()
	if len(rest) > 0 {
		cfg.ServerAddr = rest[0]
	}
	if len(rest) > 1 {
		port, err := ParsePort(rest[1])
		if err != nil {
			return Client{}, err
		}
		cfg.Port = port
	}
	if err := ValidatePort(cfg.Port); err != nil {
		return Client{}, err
	}
	return cfg, nil
}

// ParsePort converts s to a port number in 1-65535.
func ParsePort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPort, s)
	}
	if err := ValidatePort(port); err != nil {
		return 0, err
	}
	return port, nil
}

// ValidatePort rejects ports outside 1-65535.
func ValidatePort(port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, port)
	}
	return nil
}

func parseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func nonNil(args []string) []string {
	if args == nil {
		return []string{}
	}
	return args
}
