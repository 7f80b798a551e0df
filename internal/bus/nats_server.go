// Recommender - Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommender

package bus

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/nats-io/nats-server/v2/server"

	"github.com/tomtom215/recommender/internal/config"
	"github.com/tomtom215/recommender/internal/logging"
)

// EmbeddedServer is an in-process NATS JetStream server for single-node
// deployments and tests.
type EmbeddedServer struct {
	server    *server.Server
	clientURL string
}

// NewEmbeddedServer starts a JetStream server. It listens on the host and
// port of cfg.URL, or on a random loopback port when cfg.URL is empty.
func NewEmbeddedServer(cfg *config.NATSConfig) (*EmbeddedServer, error) {
	host, port, err := listenAddr(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts := &server.Options{
		ServerName:         "recommender-events",
		Host:               host,
		Port:               port,
		JetStream:          true,
		StoreDir:           cfg.StoreDir,
		JetStreamMaxMemory: cfg.MaxMemory,
		JetStreamMaxStore:  cfg.MaxStore,
		NoSigs:             true,
		NoLog:              true,
		MaxPayload:         8 * 1024 * 1024,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create NATS server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(30 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("NATS server not ready within timeout")
	}

	logging.Info().
		Str("url", ns.ClientURL()).
		Str("store_dir", cfg.StoreDir).
		Msg("Embedded NATS JetStream server started")

	return &EmbeddedServer{server: ns, clientURL: ns.ClientURL()}, nil
}

func listenAddr(rawURL string) (string, int, error) {
	if rawURL == "" {
		return "127.0.0.1", server.RANDOM_PORT, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", 0, fmt.Errorf("parse NATS url %q: %w", rawURL, err)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		return u.Hostname(), 4222, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("parse NATS port %q: %w", portStr, err)
	}
	return host, port, nil
}

// ClientURL returns the URL clients should connect to.
func (s *EmbeddedServer) ClientURL() string {
	return s.clientURL
}

// IsRunning reports server health.
func (s *EmbeddedServer) IsRunning() bool {
	return s.server.Running()
}

// Shutdown stops the server and waits for it to exit or ctx to end.
func (s *EmbeddedServer) Shutdown(ctx context.Context) error {
	s.server.Shutdown()

	done := make(chan struct{})
	go func() {
		s.server.WaitForShutdown()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}
