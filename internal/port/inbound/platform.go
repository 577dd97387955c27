// Package inbound defines the inbound port interfaces of the voice
// application host. The HTTP transport calls the Dispatcher; platform
// adapters implement Platform; application logic implements IntentHandler.
package inbound

import (
	"context"

	"github.com/webcomputing/assistant-alexa/internal/domain/answer"
	"github.com/webcomputing/assistant-alexa/internal/domain/request"
)

// RequestExtractor recognizes a platform's requests and normalizes them.
type RequestExtractor interface {
	// Platform returns the platform name, e.g. "alexa".
	Platform() string

	// Fits reports whether the request belongs to this platform. A false
	// result means "not mine"; an error means the extractor is unusable
	// (e.g. misconfigured) and must abort the request.
	Fits(ctx context.Context, req *request.Context) (bool, error)

	// Extract builds the canonical extraction. It is only called after Fits
	// returned true for the same request.
	Extract(ctx context.Context, req *request.Context) (*request.Extraction, error)
}

// Responder hands an encoded response body to the transport.
type Responder func(ctx context.Context, body []byte) error

// Platform is a RequestExtractor that can also answer its requests.
type Platform interface {
	RequestExtractor

	// NewHandler returns a fresh response handler for one request.
	NewHandler(respond Responder) answer.Handable
}

// IntentHandler is the application logic run for every matched request.
// It writes its answer to h and sends it.
type IntentHandler interface {
	Handle(ctx context.Context, extraction *request.Extraction, h answer.Handable) error
}

// Dispatcher routes one inbound request to the first fitting platform and
// runs the intent handler for it. It returns the name of the platform that
// handled the request.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *request.Context, respond Responder) (platform string, err error)
}
