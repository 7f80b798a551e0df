// Recommender - Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommender

package models

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// Product event types.
const (
	EventProductCreated = "product_created"
	EventProductUpdated = "product_updated"
	EventProductDeleted = "product_deleted"
)

// Interaction types with special weight. Any other type is accepted.
const (
	InteractionView     = "view"
	InteractionPurchase = "purchase"
)

// DefaultAccountID is used when no alias is present.
const DefaultAccountID int64 = 0

// AccountIDAliases lists the accepted owner-account field names, highest
// priority first.
var AccountIDAliases = []string{"accountID", "account_id", "accountId"}

// ErrInvalidPayload marks data that cannot be decoded into a payload.
var ErrInvalidPayload = errors.New("invalid payload")

// MaxIDLength bounds user and product ids in bytes.
const MaxIDLength = 256

// ValidID reports whether id is usable as a user or product id: not blank
// and at most MaxIDLength bytes. Ids are otherwise opaque, so spaces and
// slashes are allowed. The same rule applies to events and API requests.
func ValidID(id string) bool {
	return len(id) <= MaxIDLength && strings.TrimSpace(id) != ""
}

// EventEnvelope is the outer JSON message on both topics.
type EventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// DecodeEnvelope parses a raw message body.
func DecodeEnvelope(body []byte) (*EventEnvelope, error) {
	var env EventEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: envelope: %v", ErrInvalidPayload, err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("%w: envelope type is empty", ErrInvalidPayload)
	}
	return &env, nil
}

// ProductPayload is a product record from an event or the catalog.
type ProductPayload struct {
	ProductID   string
	Name        string
	Description string
	Price       float64
	AccountID   int64
	Category    string
}

// DecodeProductPayload decodes product data. The id is read from
// product_id, falling back to id (catalog records use id).
func DecodeProductPayload(data []byte) (*ProductPayload, error) {
	fields, err := decodeObject(data)
	if err != nil {
		return nil, err
	}

	p := &ProductPayload{}
	if p.ProductID, err = firstString(fields, "product_id", "id"); err != nil {
		return nil, err
	}
	if p.Name, err = firstString(fields, "name"); err != nil {
		return nil, err
	}
	if p.Description, err = firstString(fields, "description"); err != nil {
		return nil, err
	}
	if p.Category, err = firstString(fields, "category"); err != nil {
		return nil, err
	}
	if p.Price, err = flexFloat(fields["price"], "price"); err != nil {
		return nil, err
	}
	if p.AccountID, err = ResolveAccountID(fields); err != nil {
		return nil, err
	}
	return p, nil
}

// InteractionPayload is the data of an interaction event.
type InteractionPayload struct {
	UserID    string `json:"user_id"`
	ProductID string `json:"product_id"`
}

// DecodeInteractionPayload decodes interaction data. Both ids are required.
func DecodeInteractionPayload(data []byte) (*InteractionPayload, error) {
	var p InteractionPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: interaction: %v", ErrInvalidPayload, err)
	}
	if !ValidID(p.UserID) || !ValidID(p.ProductID) {
		return nil, fmt.Errorf("%w: interaction requires user_id and product_id of 1 to %d bytes", ErrInvalidPayload, MaxIDLength)
	}
	return &p, nil
}

// ResolveAccountID returns the value of the first alias present and non-null,
// or DefaultAccountID. Numbers and numeric strings are accepted.
func ResolveAccountID(fields map[string]json.RawMessage) (int64, error) {
	for _, alias := range AccountIDAliases {
		raw, ok := fields[alias]
		if !ok || isNull(raw) {
			continue
		}
		v, err := flexInt(raw)
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, alias, err)
		}
		return v, nil
	}
	return DefaultAccountID, nil
}

func decodeObject(data []byte) (map[string]json.RawMessage, error) {
	if isNull(data) {
		return nil, fmt.Errorf("%w: data is missing", ErrInvalidPayload)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return fields, nil
}

// firstString returns the first non-null string among keys, or "".
func firstString(fields map[string]json.RawMessage, keys ...string) (string, error) {
	for _, key := range keys {
		raw, ok := fields[key]
		if !ok || isNull(raw) {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			// Numeric ids are common in catalog exports.
			var n json.Number
			if nerr := json.Unmarshal(raw, &n); nerr == nil {
				return n.String(), nil
			}
			return "", fmt.Errorf("%w: %s must be a string", ErrInvalidPayload, key)
		}
		return s, nil
	}
	return "", nil
}

func flexFloat(raw json.RawMessage, name string) (float64, error) {
	if len(raw) == 0 || isNull(raw) {
		return 0, nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: %s must be a number", ErrInvalidPayload, name)
}

func flexInt(raw json.RawMessage) (int64, error) {
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strconv.ParseInt(s, 10, 64)
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil && f == float64(int64(f)) {
		return int64(f), nil
	}
	return 0, fmt.Errorf("not an integer: %s", raw)
}

func isNull(raw []byte) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}
