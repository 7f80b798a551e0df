// Recommender - Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommender

// Package catalog fetches product records from the authoritative catalog
// service. It is used to backfill products that an interaction references
// before the product's own creation event has been applied.
//
// Each lookup is a GET <base_url>/<product_id> bounded by a timeout, paced by
// a token-bucket limiter and guarded by a circuit breaker so that a catalog
// outage does not stall the interaction consumer.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/recommender/internal/cache"
	"github.com/tomtom215/recommender/internal/config"
	"github.com/tomtom215/recommender/internal/logging"
	"github.com/tomtom215/recommender/internal/metrics"
	"github.com/tomtom215/recommender/internal/models"
)

var (
	// ErrNotFound means the catalog answered 404 for the id.
	ErrNotFound = errors.New("catalog: product not found")
	// ErrUnavailable covers transport errors, timeouts and non-2xx answers.
	ErrUnavailable = errors.New("catalog: unavailable")
)

// maxBodyBytes caps the size of a catalog response.
const maxBodyBytes = 1 << 20

// Client is a circuit-breaker protected catalog client.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[interface{}]
	name    string

	// notFound remembers recent 404s; nil when disabled.
	notFound *cache.LRU[struct{}]
}

// NewClient builds a client from cfg.
func NewClient(cfg *config.CatalogConfig) *Client {
	return newClient(cfg, &http.Client{Timeout: cfg.Timeout})
}

func newClient(cfg *config.CatalogConfig, httpClient *http.Client) *Client {
	cbName := "catalog-api"

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0)
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(cbName).Set(0)

	minRequests := cfg.BreakerMinRequests
	failureRatio := cfg.BreakerFailureRatio

	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: cfg.BreakerMaxRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := ratio >= failureRatio
			if shouldTrip {
				logging.Warn().
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", ratio*100).
					Msg("[CIRCUIT BREAKER] Opening catalog circuit")
			}
			return shouldTrip
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)
			logging.Info().Str("breaker", name).Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] State transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
			}
		},

		// A 404 is a healthy answer about a missing product.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound)
		},
	})

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: cfg.Timeout,
		http:    httpClient,
		limiter: rate.NewLimiter(limit, burst),
		cb:      cb,
		name:    cbName,
	}
	if cfg.NotFoundTTL > 0 {
		c.notFound = cache.NewLRU[struct{}](cfg.NotFoundCacheSize, cfg.NotFoundTTL)
	}
	return c
}

// FetchProduct looks up one product. The returned payload's ProductID is
// always id, whatever the catalog echoes back.
func (c *Client) FetchProduct(ctx context.Context, id string) (*models.ProductPayload, error) {
	if c.notFound != nil {
		if _, ok := c.notFound.Get(id); ok {
			return nil, fmt.Errorf("%w: %s (cached)", ErrNotFound, id)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	p, err := castResult[models.ProductPayload](c.execute(func() (interface{}, error) {
		return c.fetch(ctx, id)
	}))
	if c.notFound != nil && errors.Is(err, ErrNotFound) {
		c.notFound.Add(id, struct{}{})
	}
	return p, err
}

// State reports the breaker state for status endpoints.
func (c *Client) State() string {
	return stateToString(c.cb.State())
}

func (c *Client) fetch(ctx context.Context, id string) (*models.ProductPayload, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %v", ErrUnavailable, err)
	}

	reqURL := c.baseURL + "/" + url.PathEscape(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("%w: GET %s returned HTTP %d", ErrUnavailable, reqURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}
	p, err := models.DecodeProductPayload(body)
	if err != nil {
		return nil, fmt.Errorf("%w: decode product %s: %v", ErrUnavailable, id, err)
	}
	p.ProductID = id
	return p, nil
}

// execute runs fn through the breaker and records the outcome.
func (c *Client) execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := c.cb.Execute(fn)

	if err != nil {
		switch {
		case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
			metrics.CircuitBreakerRequests.WithLabelValues(c.name, "rejected").Inc()
			logging.Warn().Err(err).Msg("[CIRCUIT BREAKER] Catalog request rejected")
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		case errors.Is(err, ErrNotFound):
			metrics.CircuitBreakerRequests.WithLabelValues(c.name, "success").Inc()
		default:
			metrics.CircuitBreakerRequests.WithLabelValues(c.name, "failure").Inc()
			metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(c.name).Set(float64(c.cb.Counts().ConsecutiveFailures))
		}
		return nil, err
	}

	metrics.CircuitBreakerRequests.WithLabelValues(c.name, "success").Inc()
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(c.name).Set(0)
	return result, nil
}

func castResult[T any](result interface{}, err error) (*T, error) {
	if err != nil {
		return nil, err
	}
	typed, ok := result.(*T)
	if !ok {
		return nil, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
