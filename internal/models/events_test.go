// Recommender - Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommender

package models

import (
	"errors"
	"strings"
	"testing"
)

func TestDecodeEnvelope(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"type":"product_created","data":{"product_id":"p1"}}`))
	if err != nil {
		t.Fatalf("DecodeEnvelope() error = %v", err)
	}
	if env.Type != EventProductCreated {
		t.Errorf("Type = %q", env.Type)
	}
	if string(env.Data) != `{"product_id":"p1"}` {
		t.Errorf("Data = %s", env.Data)
	}

	for _, body := range []string{`not json`, `{"data":{}}`, `{"type":""}`} {
		if _, err := DecodeEnvelope([]byte(body)); !errors.Is(err, ErrInvalidPayload) {
			t.Errorf("DecodeEnvelope(%s) error = %v, want ErrInvalidPayload", body, err)
		}
	}
}

func TestResolveAccountID_AliasPriority(t *testing.T) {
	tests := []struct {
		name string
		data string
		want int64
	}{
		{"accountID wins", `{"accountID": 1, "account_id": 2, "accountId": 3}`, 1},
		{"account_id next", `{"account_id": 2, "accountId": 3}`, 2},
		{"accountId last", `{"accountId": 3}`, 3},
		{"null skipped", `{"accountID": null, "accountId": 9}`, 9},
		{"numeric string", `{"account_id": "42"}`, 42},
		{"none present", `{"name": "x"}`, DefaultAccountID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := DecodeProductPayload([]byte(tt.data))
			if err != nil {
				t.Fatalf("DecodeProductPayload() error = %v", err)
			}
			if p.AccountID != tt.want {
				t.Errorf("AccountID = %d, want %d", p.AccountID, tt.want)
			}
		})
	}

	if _, err := DecodeProductPayload([]byte(`{"accountID": "abc"}`)); !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("non-numeric account id error = %v, want ErrInvalidPayload", err)
	}
}

func TestDecodeProductPayload(t *testing.T) {
	p, err := DecodeProductPayload([]byte(`{
		"product_id": "p1", "name": "Mug", "description": "ceramic",
		"price": "12.50", "accountId": 7, "category": "kitchen"
	}`))
	if err != nil {
		t.Fatalf("DecodeProductPayload() error = %v", err)
	}
	want := ProductPayload{ProductID: "p1", Name: "Mug", Description: "ceramic", Price: 12.5, AccountID: 7, Category: "kitchen"}
	if *p != want {
		t.Errorf("DecodeProductPayload() = %+v, want %+v", *p, want)
	}

	catalog, err := DecodeProductPayload([]byte(`{"id": 991, "name": "Pan", "price": 30}`))
	if err != nil {
		t.Fatalf("catalog record error = %v", err)
	}
	if catalog.ProductID != "991" || catalog.Price != 30 {
		t.Errorf("catalog record = %+v", catalog)
	}

	for _, data := range []string{``, `null`, `[]`, `{"price": true}`, `{"name": {}}`} {
		if _, err := DecodeProductPayload([]byte(data)); !errors.Is(err, ErrInvalidPayload) {
			t.Errorf("DecodeProductPayload(%q) error = %v, want ErrInvalidPayload", data, err)
		}
	}
}

func TestDecodeInteractionPayload(t *testing.T) {
	p, err := DecodeInteractionPayload([]byte(`{"user_id":"u1","product_id":"p1"}`))
	if err != nil {
		t.Fatalf("DecodeInteractionPayload() error = %v", err)
	}
	if p.UserID != "u1" || p.ProductID != "p1" {
		t.Errorf("payload = %+v", p)
	}

	p, err = DecodeInteractionPayload([]byte(`{"user_id":"jane doe","product_id":"sku/1"}`))
	if err != nil || p.UserID != "jane doe" || p.ProductID != "sku/1" {
		t.Errorf("opaque ids: payload = %+v, error = %v", p, err)
	}

	for _, data := range []string{`{"user_id":"u1"}`, `{"product_id":"p1"}`, `{"user_id":5}`, `{"user_id":"  ","product_id":"p1"}`} {
		if _, err := DecodeInteractionPayload([]byte(data)); !errors.Is(err, ErrInvalidPayload) {
			t.Errorf("DecodeInteractionPayload(%s) error = %v, want ErrInvalidPayload", data, err)
		}
	}
}

func TestValidID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"p1", true},
		{"jane doe", true},
		{"sku/1", true},
		{`a\b`, true},
		{strings.Repeat("x", MaxIDLength), true},
		{"", false},
		{" \t\n", false},
		{strings.Repeat("x", MaxIDLength+1), false},
	}

	for _, tt := range tests {
		if got := ValidID(tt.id); got != tt.want {
			t.Errorf("ValidID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}
