// Recommender - Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommender

// Package ingest applies product and interaction events to the replica.
//
// Each topic gets its own ConsumerService. The service dials the bus, hands
// every message to a Processor and reconnects after transport failures with
// a fixed backoff. The Processor never fails a message: decode and store
// errors are logged, counted and skipped so the stream keeps advancing.
package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/recommender/internal/catalog"
	"github.com/tomtom215/recommender/internal/logging"
	"github.com/tomtom215/recommender/internal/metrics"
	"github.com/tomtom215/recommender/internal/models"
	"github.com/tomtom215/recommender/internal/replica"
)

// ProductStore is the replica surface used by product events.
type ProductStore interface {
	UpsertProduct(ctx context.Context, p *replica.Product) error
	DeleteProduct(ctx context.Context, id string) (bool, error)
}

// InteractionStore is the replica surface used by interaction events.
type InteractionStore interface {
	ProductExists(ctx context.Context, id string) (bool, error)
	UpsertProduct(ctx context.Context, p *replica.Product) error
	AppendInteraction(ctx context.Context, userID, productID, interactionType string) error
}

// Fetcher loads a product from the upstream catalog.
type Fetcher interface {
	FetchProduct(ctx context.Context, id string) (*models.ProductPayload, error)
}

// Applier applies one decoded envelope.
type Applier interface {
	Apply(ctx context.Context, env *models.EventEnvelope) error
}

func productFromPayload(p *models.ProductPayload) *replica.Product {
	return &replica.Product{
		ID:          p.ProductID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		AccountID:   p.AccountID,
		Category:    p.Category,
	}
}

// ProductHandler applies product_created, product_updated and
// product_deleted events.
type ProductHandler struct {
	store ProductStore
}

// NewProductHandler creates a handler writing to store.
func NewProductHandler(store ProductStore) *ProductHandler {
	return &ProductHandler{store: store}
}

// Apply upserts or deletes the product named by env. Unknown kinds are
// logged and ignored.
func (h *ProductHandler) Apply(ctx context.Context, env *models.EventEnvelope) error {
	switch env.Type {
	case models.EventProductCreated, models.EventProductUpdated:
		payload, err := models.DecodeProductPayload(env.Data)
		if err != nil {
			return malformed("%s: %v", env.Type, err)
		}
		if !models.ValidID(payload.ProductID) {
			return malformed("%s: product_id must be 1 to %d bytes and not blank", env.Type, models.MaxIDLength)
		}
		return h.store.UpsertProduct(ctx, productFromPayload(payload))

	case models.EventProductDeleted:
		payload, err := models.DecodeProductPayload(env.Data)
		if err != nil {
			return malformed("%s: %v", env.Type, err)
		}
		if !models.ValidID(payload.ProductID) {
			return malformed("%s: product_id must be 1 to %d bytes and not blank", env.Type, models.MaxIDLength)
		}
		deleted, err := h.store.DeleteProduct(ctx, payload.ProductID)
		if err != nil {
			return err
		}
		if !deleted {
			logging.Warn().Str("product_id", payload.ProductID).Msg("Delete for unknown product ignored")
		}
		return nil

	default:
		logging.Warn().Str("type", env.Type).Msg("Skipping unknown product event type")
		return nil
	}
}

// InteractionHandler records interactions, backfilling missing products from
// the catalog first.
type InteractionHandler struct {
	store   InteractionStore
	fetcher Fetcher
}

// NewInteractionHandler creates a handler. fetcher may be nil, which
// disables backfill.
func NewInteractionHandler(store InteractionStore, fetcher Fetcher) *InteractionHandler {
	return &InteractionHandler{store: store, fetcher: fetcher}
}

// Apply appends one interaction of kind env.Type.
func (h *InteractionHandler) Apply(ctx context.Context, env *models.EventEnvelope) error {
	payload, err := models.DecodeInteractionPayload(env.Data)
	if err != nil {
		return malformed("%s: %v", env.Type, err)
	}

	exists, err := h.store.ProductExists(ctx, payload.ProductID)
	if err != nil {
		return err
	}
	if !exists {
		h.backfill(ctx, payload.ProductID)
	}

	return h.store.AppendInteraction(ctx, payload.UserID, payload.ProductID, env.Type)
}

// backfill is best effort: the interaction is written whatever happens here.
func (h *InteractionHandler) backfill(ctx context.Context, productID string) {
	if h.fetcher == nil {
		metrics.RecordBackfill("skipped", 0)
		return
	}

	start := time.Now()
	product, err := h.fetcher.FetchProduct(ctx, productID)
	if err != nil {
		outcome := "unavailable"
		if errors.Is(err, catalog.ErrNotFound) {
			outcome = "not_found"
		}
		metrics.RecordBackfill(outcome, time.Since(start))
		logging.Warn().Err(err).Str("product_id", productID).Msg("Product backfill failed")
		return
	}
	if product.ProductID == "" {
		product.ProductID = productID
	}

	if err := h.store.UpsertProduct(ctx, productFromPayload(product)); err != nil {
		metrics.RecordBackfill("store_error", time.Since(start))
		logging.Error().Err(err).Str("product_id", productID).Msg("Failed to store backfilled product")
		return
	}
	metrics.RecordBackfill("success", time.Since(start))
	logging.Debug().Str("product_id", productID).Msg("Backfilled product from catalog")
}
