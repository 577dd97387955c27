package alexa

import (
	"log/slog"

	"github.com/webcomputing/assistant-alexa/internal/domain/answer"
	"github.com/webcomputing/assistant-alexa/internal/port/inbound"
	"github.com/webcomputing/assistant-alexa/internal/port/outbound"
)

// Platform registers Alexa with the dispatcher.
type Platform struct {
	*Extractor
}

// NewPlatform creates the Alexa platform.
func NewPlatform(cfg ExtractorConfig, verifier outbound.SignatureVerifier, logger *slog.Logger) *Platform {
	return &Platform{Extractor: NewExtractor(cfg, verifier, logger)}
}

// NewHandler implements inbound.Platform.
func (p *Platform) NewHandler(respond inbound.Responder) answer.Handable {
	return NewHandler(respond)
}

var _ inbound.Platform = (*Platform)(nil)
