// Package outbound defines the outbound port interfaces for request
// verification and external tooling.
package outbound

import (
	"context"
)

// SignatureVerifier checks that a request was signed by the platform.
type SignatureVerifier interface {
	// Verify returns nil if body was signed with the certificate chain at
	// certChainURL and signature matches. Any error means the request must
	// not be trusted.
	Verify(ctx context.Context, certChainURL, signature string, body []byte) error
}

// SignatureVerifierFunc adapts a function to SignatureVerifier.
type SignatureVerifierFunc func(ctx context.Context, certChainURL, signature string, body []byte) error

// Verify implements SignatureVerifier.
func (f SignatureVerifierFunc) Verify(ctx context.Context, certChainURL, signature string, body []byte) error {
	return f(ctx, certChainURL, signature, body)
}
