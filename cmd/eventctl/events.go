// Recommender - Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommender

package main

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/recommender/internal/bus"
	"github.com/tomtom215/recommender/internal/models"
)

// headerEventType carries the envelope type so it shows up in broker tooling
// without decoding the body.
const headerEventType = "event_type"

var sampleCategories = []string{"books", "electronics", "garden", "kitchen", "toys"}

// productData is the data object of a product event.
type productData struct {
	ProductID   string  `json:"product_id"`
	Name        string  `json:"name,omitempty"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price,omitempty"`
	AccountID   int64   `json:"accountID,omitempty"`
	Category    string  `json:"category,omitempty"`
}

type envelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func newMessage(topic, key, eventType string, data interface{}) (bus.Message, error) {
	body, err := json.Marshal(envelope{Type: eventType, Data: data})
	if err != nil {
		return bus.Message{}, fmt.Errorf("encode %s: %w", eventType, err)
	}
	return bus.Message{
		ID:      uuid.NewString(),
		Topic:   topic,
		Key:     []byte(key),
		Value:   body,
		Headers: map[string]string{headerEventType: eventType},
	}, nil
}

// productEvent builds a product_created, product_updated or product_deleted
// message keyed by product id so all events of one product share a partition.
func productEvent(topic, eventType string, p productData) (bus.Message, error) {
	switch eventType {
	case models.EventProductCreated, models.EventProductUpdated:
	case models.EventProductDeleted:
		p = productData{ProductID: p.ProductID}
	default:
		return bus.Message{}, fmt.Errorf("unknown product event type %q", eventType)
	}
	if p.ProductID == "" {
		return bus.Message{}, errors.New("product id is required")
	}
	return newMessage(topic, p.ProductID, eventType, p)
}

// interactionEvent builds an interaction message keyed by user id.
func interactionEvent(topic, kind, userID, productID string) (bus.Message, error) {
	if kind == "" {
		return bus.Message{}, errors.New("interaction type is required")
	}
	if userID == "" || productID == "" {
		return bus.Message{}, errors.New("user id and product id are required")
	}
	return newMessage(topic, userID, kind, models.InteractionPayload{UserID: userID, ProductID: productID})
}

// SeedConfig sizes a generated dataset.
type SeedConfig struct {
	ProductTopic     string
	InteractionTopic string
	Products         int
	Users            int
	Interactions     int
	// PurchaseRatio is the share of interactions that are purchases.
	PurchaseRatio float64
	Seed          uint64
}

// seedEvents generates a catalog followed by interactions over it. The same
// Seed always yields the same ids and pairs.
func seedEvents(cfg SeedConfig) ([]bus.Message, error) {
	if cfg.Products <= 0 {
		return nil, errors.New("seed needs at least one product")
	}
	if cfg.Interactions > 0 && cfg.Users <= 0 {
		return nil, errors.New("seed needs at least one user for interactions")
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	out := make([]bus.Message, 0, cfg.Products+cfg.Interactions)

	for i := 0; i < cfg.Products; i++ {
		category := sampleCategories[i%len(sampleCategories)]
		msg, err := productEvent(cfg.ProductTopic, models.EventProductCreated, productData{
			ProductID:   fmt.Sprintf("p%d", i+1),
			Name:        fmt.Sprintf("Sample %s %d", category, i+1),
			Description: "Generated by eventctl",
			Price:       float64(100+rng.IntN(9900)) / 100,
			AccountID:   int64(1 + i%3),
			Category:    category,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}

	for i := 0; i < cfg.Interactions; i++ {
		kind := models.InteractionView
		if rng.Float64() < cfg.PurchaseRatio {
			kind = models.InteractionPurchase
		}
		msg, err := interactionEvent(cfg.InteractionTopic, kind,
			fmt.Sprintf("u%d", rng.IntN(cfg.Users)+1),
			fmt.Sprintf("p%d", rng.IntN(cfg.Products)+1))
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, nil
}
