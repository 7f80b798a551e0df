// Recommender - Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommender

/*
Package api serves the recommendation RPC surface over HTTP/JSON.

Routes:

	POST /v1/recommendations                  GetRecommendations
	POST /v1/recommendations/viewed           GetRecommendationsBasedOnViewed
	POST /recommender.RecommenderService/...  the same two operations, RPC-style paths
	GET  /v1/model                            training status
	POST /v1/model/train                      start a retrain (202, or 409 if one is running)
	GET  /healthz/live, /healthz/ready        probes
	GET  /metrics                             Prometheus exposition

Both recommendation operations rank product ids with the engine, load the
products in one replica query and return them in rank order:

	{"products": [{"id": "p3", "name": "...", "description": "...", "price": 9.5}]}

On an unexpected failure the response is HTTP 500 with an empty product list
and an INTERNAL error body. Requests that fail to decode or validate get
HTTP 400 with code VALIDATION_ERROR.

Concurrency is bounded by chi's Throttle middleware (server.max_concurrent
in flight, server.max_backlog queued). Per-IP rate limiting with httprate is
optional.
*/
package api
