// Recommender - Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommender

/*
Package models defines the wire formats shared across the recommender.

Event Envelope:

Every message on product_events and interaction_events is a JSON envelope:

	{"type": "product_created", "data": {...}}

ProductPayload decodes the data of product_created, product_updated and
product_deleted events, and the records returned by the catalog service.
InteractionPayload decodes interaction events, whose kind (view, purchase,
...) is the envelope type.

Account ID Aliases:

Upstream producers disagree on the owner account field name. The accepted
names are listed once, in priority order, in AccountIDAliases, and resolved
at decode time so nothing downstream sees the aliases:

	accountID > account_id > accountId > 0
*/
package models
