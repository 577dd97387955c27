// Package http provides the webhook transport for voice platforms.
//
// The transport accepts platform requests over HTTP and hands them to an
// inbound.Dispatcher, which asks each registered platform whether the request
// belongs to it. The first platform that accepts the request extracts it,
// runs the intent handler and writes exactly one response.
//
// # Usage
//
//	transport := http.NewHTTPTransport(unifier,
//	    http.WithAddr(":8080"),
//	    http.WithLogger(logger),
//	    http.WithRateLimit(100, time.Minute),
//	)
//	err := transport.Start(ctx)
//
// # Endpoints
//
//	POST /*      - Platform webhook (Alexa posts to /alexa by default)
//	GET /health  - JSON health report
//	GET /metrics - Prometheus metrics
//
// # Status Codes
//
//	200 - The platform response body, as application/json
//	404 - No platform accepts the request (wrong path, app ID or signature)
//	413 - Request body larger than 1 MB
//	429 - Rate limit exceeded
//	500 - Handler or response synthesis failed
//
// # Middleware Chain
//
// Requests pass through middleware in this order:
//
//  1. MetricsMiddleware - Records duration and outcome (ok, rejected, error)
//  2. RequestIDMiddleware - Extracts or generates X-Request-ID, enriches the logger
//  3. RealIPMiddleware - Extracts client IP from proxy headers
//  4. OTelHTTP - Server span per request
//  5. RateLimit - Per-IP sliding window (webhook routes only, optional)
//  6. Webhook handler - Dispatches to the platforms
package http
