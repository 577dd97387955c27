package alexa

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Version is the only response envelope version Alexa accepts.
const Version = "1.0"

// Output speech types.
const (
	SpeechPlainText = "PlainText"
	SpeechSSML      = "SSML"
)

// Card types.
const (
	CardSimple      = "Simple"
	CardStandard    = "Standard"
	CardLinkAccount = "LinkAccount"
)

// ResponseEnvelope is the body a skill answers an Alexa request with.
type ResponseEnvelope struct {
	Version           string            `json:"version"`
	SessionAttributes map[string]string `json:"sessionAttributes,omitempty"`
	Response          Response          `json:"response"`
}

// Response is the payload of a ResponseEnvelope.
//
// Directives distinguishes "unset" (nil, omitted from the JSON) from
// "explicitly empty" (non-nil, encoded as []). DirectivesSet reports which.
type Response struct {
	ShouldEndSession bool          `json:"shouldEndSession"`
	OutputSpeech     *OutputSpeech `json:"outputSpeech,omitempty"`
	Card             *Card         `json:"card,omitempty"`
	Reprompt         *Reprompt     `json:"reprompt,omitempty"`
	Directives       []Directive   `json:"-"`
	DirectivesSet    bool          `json:"-"`
}

// OutputSpeech is either plain text or SSML, selected by Type.
type OutputSpeech struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	SSML string `json:"ssml,omitempty"`
}

// Reprompt is spoken when the user does not answer.
type Reprompt struct {
	OutputSpeech *OutputSpeech `json:"outputSpeech"`
}

// Card is shown in the Alexa companion app.
type Card struct {
	Type    string     `json:"type"`
	Title   string     `json:"title,omitempty"`
	Content string     `json:"content,omitempty"`
	Text    string     `json:"text,omitempty"`
	Image   *CardImage `json:"image,omitempty"`
}

// CardImage holds both image sizes of a Standard card.
type CardImage struct {
	SmallImageURL string `json:"smallImageUrl"`
	LargeImageURL string `json:"largeImageUrl"`
}

// NewSpeech builds plain-text or SSML output speech.
func NewSpeech(text string, ssml bool) *OutputSpeech {
	if ssml {
		return &OutputSpeech{Type: SpeechSSML, SSML: text}
	}
	return &OutputSpeech{Type: SpeechPlainText, Text: text}
}

// SetDirectives replaces the directive list and marks it as set, so an empty
// list is still emitted.
func (r *Response) SetDirectives(directives []Directive) {
	if directives == nil {
		directives = []Directive{}
	}
	r.Directives = directives
	r.DirectivesSet = true
}

// AppendDirective appends to the directive list and marks it as set.
func (r *Response) AppendDirective(d Directive) {
	r.Directives = append(r.Directives, d)
	r.DirectivesSet = true
}

type responseJSON struct {
	ShouldEndSession bool          `json:"shouldEndSession"`
	OutputSpeech     *OutputSpeech `json:"outputSpeech,omitempty"`
	Card             *Card         `json:"card,omitempty"`
	Reprompt         *Reprompt     `json:"reprompt,omitempty"`
	Directives       *[]Directive  `json:"directives,omitempty"`
}

// MarshalJSON omits directives only when they were never set.
func (r Response) MarshalJSON() ([]byte, error) {
	out := responseJSON{
		ShouldEndSession: r.ShouldEndSession,
		OutputSpeech:     r.OutputSpeech,
		Card:             r.Card,
		Reprompt:         r.Reprompt,
	}
	if r.DirectivesSet || r.Directives != nil {
		directives := r.Directives
		if directives == nil {
			directives = []Directive{}
		}
		out.Directives = &directives
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a response, keeping directives as raw GenericDirectives.
func (r *Response) UnmarshalJSON(data []byte) error {
	var in struct {
		ShouldEndSession bool              `json:"shouldEndSession"`
		OutputSpeech     *OutputSpeech     `json:"outputSpeech"`
		Card             *Card             `json:"card"`
		Reprompt         *Reprompt         `json:"reprompt"`
		Directives       []json.RawMessage `json:"directives"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*r = Response{
		ShouldEndSession: in.ShouldEndSession,
		OutputSpeech:     in.OutputSpeech,
		Card:             in.Card,
		Reprompt:         in.Reprompt,
	}
	if in.Directives != nil {
		directives := make([]Directive, 0, len(in.Directives))
		for _, raw := range in.Directives {
			var fields map[string]json.RawMessage
			if err := json.Unmarshal(raw, &fields); err != nil {
				return fmt.Errorf("alexa: decode directive: %w", err)
			}
			var typ string
			if t, ok := fields["type"]; ok {
				if err := json.Unmarshal(t, &typ); err != nil {
					return fmt.Errorf("alexa: decode directive type: %w", err)
				}
				delete(fields, "type")
			}
			directives = append(directives, GenericDirective{Type: typ, Fields: fields})
		}
		r.SetDirectives(directives)
	}
	return nil
}

// marshalWithType encodes v and prepends a "type" member. v must encode as a
// JSON object.
func marshalWithType(typ string, v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	body = bytes.TrimSpace(body)
	if len(body) < 2 || body[0] != '{' {
		return nil, fmt.Errorf("alexa: %s does not encode as an object", typ)
	}
	tag, err := json.Marshal(typ)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Grow(len(body) + len(tag) + 10)
	buf.WriteString(`{"type":`)
	buf.Write(tag)
	rest := bytes.TrimSpace(body[1:])
	if len(rest) > 0 && rest[0] != '}' {
		buf.WriteByte(',')
	}
	buf.Write(rest)
	return buf.Bytes(), nil
}
