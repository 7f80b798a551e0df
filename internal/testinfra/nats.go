// Recommender - Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommender

//go:build integration

package testinfra

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	// DefaultNATSImage is the upstream server image.
	DefaultNATSImage = "nats:2.12-alpine"

	natsClientPort  = "4222/tcp"
	natsMonitorPort = "8222/tcp"
)

// NATSContainer is a JetStream-enabled NATS server.
type NATSContainer struct {
	testcontainers.Container
	URL string
}

// NATSOption configures the container.
type NATSOption func(*natsConfig)

type natsConfig struct {
	image        string
	startTimeout time.Duration
}

// WithNATSImage overrides DefaultNATSImage.
func WithNATSImage(image string) NATSOption {
	return func(c *natsConfig) { c.image = image }
}

// WithStartTimeout bounds the wait for the health endpoint.
func WithStartTimeout(timeout time.Duration) NATSOption {
	return func(c *natsConfig) { c.startTimeout = timeout }
}

// NewNATSContainer starts a NATS server with JetStream enabled and returns
// its client URL.
func NewNATSContainer(ctx context.Context, opts ...NATSOption) (*NATSContainer, error) {
	cfg := &natsConfig{
		image:        DefaultNATSImage,
		startTimeout: 60 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	req := testcontainers.ContainerRequest{
		Image:        cfg.image,
		ExposedPorts: []string{natsClientPort, natsMonitorPort},
		Cmd:          []string{"-js", "-m", "8222"},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort(natsClientPort),
			wait.ForHTTP("/healthz?js-enabled-only=true").WithPort(natsMonitorPort),
		).WithStartupTimeout(cfg.startTimeout),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("create nats container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get container host: %w", err)
	}
	port, err := container.MappedPort(ctx, natsClientPort)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get mapped port: %w", err)
	}

	return &NATSContainer{
		Container: container,
		URL:       fmt.Sprintf("nats://%s:%s", host, port.Port()),
	}, nil
}
