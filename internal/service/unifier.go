package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/webcomputing/assistant-alexa/internal/ctxkey"
	"github.com/webcomputing/assistant-alexa/internal/domain/request"
	"github.com/webcomputing/assistant-alexa/internal/port/inbound"
)

// Dispatch errors.
var (
	// ErrNoPlatform means no registered platform accepted the request.
	ErrNoPlatform = errors.New("no platform accepts the request")
	// ErrNoResponse means the intent handler returned without sending.
	ErrNoResponse = errors.New("intent handler sent no response")
)

// Unifier dispatches inbound requests across registered platforms. Platforms
// are asked in registration order; the first that fits handles the request.
type Unifier struct {
	platforms []inbound.Platform
	handler   inbound.IntentHandler
	logger    *slog.Logger
	tracer    trace.Tracer
}

// NewUnifier creates a Unifier running handler for every matched request.
func NewUnifier(handler inbound.IntentHandler, logger *slog.Logger, platforms ...inbound.Platform) *Unifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Unifier{
		platforms: platforms,
		handler:   handler,
		logger:    logger,
		tracer:    otel.Tracer("github.com/webcomputing/assistant-alexa/service"),
	}
}

// Platforms returns the names of the registered platforms.
func (u *Unifier) Platforms() []string {
	names := make([]string, 0, len(u.platforms))
	for _, p := range u.platforms {
		names = append(names, p.Platform())
	}
	return names
}

// Dispatch implements inbound.Dispatcher.
func (u *Unifier) Dispatch(ctx context.Context, req *request.Context, respond inbound.Responder) (string, error) {
	ctx, span := u.tracer.Start(ctx, "unifier.Dispatch")
	defer span.End()
	logger := ctxkey.Logger(ctx, u.logger)

	for _, p := range u.platforms {
		ok, err := p.Fits(ctx, req)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "platform misconfigured")
			return p.Platform(), fmt.Errorf("platform %s: %w", p.Platform(), err)
		}
		if !ok {
			continue
		}

		span.SetAttributes(attribute.String("platform", p.Platform()))
		if err := u.handle(ctx, p, req, respond); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return p.Platform(), err
		}
		return p.Platform(), nil
	}

	logger.Debug("no platform accepts the request", "path", req.Path)
	return "", ErrNoPlatform
}

func (u *Unifier) handle(ctx context.Context, p inbound.Platform, req *request.Context, respond inbound.Responder) error {
	ext, err := p.Extract(ctx, req)
	if err != nil {
		return fmt.Errorf("platform %s: extract: %w", p.Platform(), err)
	}

	sent := false
	h := p.NewHandler(func(ctx context.Context, body []byte) error {
		sent = true
		return respond(ctx, body)
	})
	if err := u.handler.Handle(ctx, ext, h); err != nil {
		return fmt.Errorf("platform %s: handle %s: %w", p.Platform(), ext.Intent, err)
	}
	if !sent {
		return ErrNoResponse
	}
	return nil
}

// Compile-time interface check.
var _ inbound.Dispatcher = (*Unifier)(nil)
