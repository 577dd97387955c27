package alexa

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/webcomputing/assistant-alexa/internal/domain/alexa"
	"github.com/webcomputing/assistant-alexa/internal/domain/answer"
	"github.com/webcomputing/assistant-alexa/internal/port/inbound"
)

// Handler collects the answer for one Alexa request and sends it once.
// It is not safe for concurrent mutation; Send itself is race-free.
type Handler struct {
	answer.State

	template         alexa.Template
	hint             *string
	customDirectives []alexa.Directive
	customSet        bool

	once    answer.SendOnce
	respond inbound.Responder
}

// NewHandler creates a Handler that hands the encoded body to respond.
func NewHandler(respond inbound.Responder) *Handler {
	return &Handler{respond: respond}
}

// SetCustomDirectives replaces every other directive with directives. An
// empty list still overrides templates and hints.
func (h *Handler) SetCustomDirectives(directives ...alexa.Directive) {
	h.customDirectives = append([]alexa.Directive{}, directives...)
	h.customSet = true
}

// SetHint sets the plain-text hint shown on screen devices.
func (h *Handler) SetHint(text string) { h.hint = &text }

// SetListTemplate1 sets the display template, replacing any other.
func (h *Handler) SetListTemplate1(t alexa.ListTemplate1) { h.template = t }

// SetListTemplate2 sets the display template, replacing any other.
func (h *Handler) SetListTemplate2(t alexa.ListTemplate2) { h.template = t }

// SetBodyTemplate1 sets the display template, replacing any other.
func (h *Handler) SetBodyTemplate1(t alexa.BodyTemplate1) { h.template = t }

// SetBodyTemplate2 sets the display template, replacing any other.
func (h *Handler) SetBodyTemplate2(t alexa.BodyTemplate2) { h.template = t }

// SetBodyTemplate3 sets the display template, replacing any other.
func (h *Handler) SetBodyTemplate3(t alexa.BodyTemplate3) { h.template = t }

// SetBodyTemplate6 sets the display template, replacing any other.
func (h *Handler) SetBodyTemplate6(t alexa.BodyTemplate6) { h.template = t }

// SetBodyTemplate7 sets the display template, replacing any other.
func (h *Handler) SetBodyTemplate7(t alexa.BodyTemplate7) { h.template = t }

// Results returns a snapshot of the collected answer.
func (h *Handler) Results() Results {
	return Results{
		Answer:              &h.State,
		Template:            h.template,
		Hint:                h.hint,
		CustomDirectives:    h.customDirectives,
		CustomDirectivesSet: h.customSet,
	}
}

// Body synthesizes the response envelope without sending it.
func (h *Handler) Body() (*alexa.ResponseEnvelope, error) {
	return BuildBody(h.Results())
}

// Send implements answer.Handable.
func (h *Handler) Send(ctx context.Context) error {
	if h.once.Sent() {
		return answer.ErrAlreadySent
	}
	env, err := h.Body()
	if err != nil {
		return err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("alexa: encode response: %w", err)
	}
	if err := h.once.Claim(); err != nil {
		return err
	}
	if h.respond == nil {
		return nil
	}
	return h.respond(ctx, data)
}

// Sent reports whether the response was sent.
func (h *Handler) Sent() bool { return h.once.Sent() }

// Compile-time interface check.
var _ answer.Handable = (*Handler)(nil)
