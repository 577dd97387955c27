// Package alexa is the Alexa platform adapter. The Extractor recognizes and
// normalizes Alexa requests; the Handler collects an answer and synthesizes
// the Alexa response envelope.
package alexa

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/webcomputing/assistant-alexa/internal/ctxkey"
	"github.com/webcomputing/assistant-alexa/internal/domain/alexa"
	"github.com/webcomputing/assistant-alexa/internal/domain/intent"
	"github.com/webcomputing/assistant-alexa/internal/domain/request"
	"github.com/webcomputing/assistant-alexa/internal/port/inbound"
	"github.com/webcomputing/assistant-alexa/internal/port/outbound"
)

// PlatformName identifies Alexa in extractions and session ids.
const PlatformName = "alexa"

// DefaultRoute is the webhook path Alexa requests are accepted on.
const DefaultRoute = "/alexa"

// SessionKey is the session attribute holding the session data blob.
const SessionKey = "sessionKey"

// SelectedElementEntity is the entity carrying the token of a touched element.
const SelectedElementEntity = "selectedElement"

// Header names, lower-cased.
const (
	HeaderSignature    = "signature"
	HeaderCertChainURL = "signaturecertchainurl"
)

// ErrMissingApplicationID means the adapter was never configured.
var ErrMissingApplicationID = errors.New("alexa: application id is not configured")

// ExtractorConfig is the configuration the Extractor reads.
type ExtractorConfig struct {
	ApplicationID string
	// Route defaults to DefaultRoute.
	Route string
	// ForcedOAuthToken replaces every extracted OAuth token when set.
	// Only meant for testing with the developer console simulator.
	ForcedOAuthToken string
}

// Extractor recognizes Alexa requests and builds canonical extractions.
// It holds no per-request state.
type Extractor struct {
	cfg      ExtractorConfig
	verifier outbound.SignatureVerifier
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewExtractor creates an Extractor.
func NewExtractor(cfg ExtractorConfig, verifier outbound.SignatureVerifier, logger *slog.Logger) *Extractor {
	if cfg.Route == "" {
		cfg.Route = DefaultRoute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		cfg:      cfg,
		verifier: verifier,
		logger:   logger,
		tracer:   otel.Tracer("github.com/webcomputing/assistant-alexa/alexa"),
	}
}

// Platform implements inbound.RequestExtractor.
func (e *Extractor) Platform() string { return PlatformName }

// Fits implements inbound.RequestExtractor.
func (e *Extractor) Fits(ctx context.Context, req *request.Context) (bool, error) {
	if e.cfg.ApplicationID == "" {
		return false, ErrMissingApplicationID
	}

	ctx, span := e.tracer.Start(ctx, "alexa.Fits")
	defer span.End()
	logger := ctxkey.Logger(ctx, e.logger)

	if req == nil || req.Path != e.cfg.Route {
		logger.Debug("alexa: route does not match", "route", e.cfg.Route)
		return false, nil
	}

	env, err := alexa.ParseRequestEnvelope(req.Body)
	if err != nil {
		logger.Debug("alexa: body is not an alexa request", "error", err)
		return false, nil
	}
	if env.Session == nil || env.Session.Application == nil {
		logger.Debug("alexa: request has no session or application")
		return false, nil
	}
	if env.Session.Application.ApplicationID != e.cfg.ApplicationID {
		logger.Debug("alexa: application id does not match", "application_id", env.Session.Application.ApplicationID)
		return false, nil
	}
	if ir, ok := env.Request.(*alexa.IntentRequest); ok && ir.Intent == nil {
		logger.Debug("alexa: intent request without intent")
		return false, nil
	}

	err = e.verifier.Verify(ctx, req.Header(HeaderCertChainURL), req.Header(HeaderSignature), req.Body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "verification failed")
		logger.Error("alexa request verification failed",
			"request_id", env.Request.Base().RequestID,
			"error", err)
		return false, nil
	}

	span.SetAttributes(attribute.Bool("alexa.fits", true))
	return true, nil
}

// Extract implements inbound.RequestExtractor.
func (e *Extractor) Extract(ctx context.Context, req *request.Context) (*request.Extraction, error) {
	ctx, span := e.tracer.Start(ctx, "alexa.Extract")
	defer span.End()

	env, err := alexa.ParseRequestEnvelope(req.Body)
	if err != nil {
		return nil, err
	}
	base := env.Request.Base()

	ext := &request.Extraction{
		Intent:           resolveIntent(env.Request),
		Entities:         entities(env.Request),
		Language:         language(base.Locale),
		Platform:         PlatformName,
		RequestTimestamp: base.Timestamp,
	}

	if s := env.Session; s != nil {
		ext.SessionID = PlatformName + "-" + s.SessionID
		ext.SessionData = sessionData(s.Attributes)
		if s.User != nil {
			userID := s.User.UserID
			ext.TemporalAuthToken = &userID
			if s.User.AccessToken != "" {
				token := s.User.AccessToken
				ext.OAuthToken = &token
			}
		}
	}

	if e.cfg.ForcedOAuthToken != "" {
		ctxkey.Logger(ctx, e.logger).Warn("alexa: using forced oauth token instead of the request's token")
		token := e.cfg.ForcedOAuthToken
		ext.OAuthToken = &token
	}

	span.SetAttributes(
		attribute.String("alexa.request_type", base.Type),
		attribute.String("alexa.intent", ext.Intent.String()),
	)
	return ext, nil
}

func resolveIntent(r alexa.Request) intent.Intent {
	switch req := r.(type) {
	case *alexa.LaunchRequest:
		return intent.FromGeneric(intent.Invoke)
	case *alexa.SessionEndedRequest:
		return intent.FromGeneric(intent.Unanswered)
	case *alexa.ElementSelectedRequest:
		return intent.FromGeneric(intent.Selected)
	case *alexa.IntentRequest:
		if req.Intent == nil {
			return intent.Named("")
		}
		return intent.FromAlexaName(req.Intent.Name)
	case *alexa.UnknownRequest:
		return intent.Named(req.Type)
	default:
		return intent.Named(r.Base().Type)
	}
}

func entities(r alexa.Request) map[string]string {
	out := map[string]string{}
	switch req := r.(type) {
	case *alexa.IntentRequest:
		if req.Intent == nil {
			return out
		}
		for name, slot := range req.Intent.Slots {
			if slot.Value == nil {
				continue
			}
			if v := *slot.Value; v != "?" && v != "null" {
				out[name] = v
			}
		}
	case *alexa.ElementSelectedRequest:
		if req.Token != nil {
			out[SelectedElementEntity] = *req.Token
		}
	}
	return out
}

func language(locale string) string {
	lang, _, _ := strings.Cut(locale, "-")
	return lang
}

// sessionData returns the sessionKey attribute. Non-string JSON values are
// returned as their raw JSON text.
func sessionData(attrs map[string]json.RawMessage) *string {
	raw, ok := attrs[SessionKey]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return &s
	}
	text := string(raw)
	return &text
}

// Compile-time interface check.
var _ inbound.RequestExtractor = (*Extractor)(nil)
