package alexa

import (
	"encoding/json"
	"errors"
)

// Directive types.
const (
	DirectiveRenderTemplate = "Display.RenderTemplate"
	DirectiveHint           = "Hint"
)

// Directive is one entry of response.directives. Implementations encode
// themselves including their "type" member.
type Directive interface {
	DirectiveType() string
}

// RenderTemplateDirective shows a display template on screen devices.
type RenderTemplateDirective struct {
	Template Template
}

// DirectiveType implements Directive.
func (RenderTemplateDirective) DirectiveType() string { return DirectiveRenderTemplate }

// MarshalJSON tags the template with its subtype.
func (d RenderTemplateDirective) MarshalJSON() ([]byte, error) {
	if d.Template == nil {
		return nil, errors.New("alexa: render template directive without template")
	}
	tmpl, err := marshalWithType(d.Template.TemplateType(), d.Template)
	if err != nil {
		return nil, err
	}
	return marshalWithType(DirectiveRenderTemplate, struct {
		Template json.RawMessage `json:"template"`
	}{tmpl})
}

// HintDirective shows a suggested utterance on screen devices.
type HintDirective struct {
	Hint Hint `json:"hint"`
}

// Hint is the text shape of a HintDirective.
type Hint struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// NewHintDirective builds a plain-text hint.
func NewHintDirective(text string) HintDirective {
	return HintDirective{Hint: Hint{Type: TextPlain, Text: text}}
}

// DirectiveType implements Directive.
func (HintDirective) DirectiveType() string { return DirectiveHint }

// MarshalJSON adds the directive type.
func (d HintDirective) MarshalJSON() ([]byte, error) {
	type plain HintDirective
	return marshalWithType(DirectiveHint, plain(d))
}

// GenericDirective is any directive not modelled by this package, such as
// AudioPlayer or Dialog directives. Fields holds every member except "type".
type GenericDirective struct {
	Type   string
	Fields map[string]json.RawMessage
}

// DirectiveType implements Directive.
func (d GenericDirective) DirectiveType() string { return d.Type }

// MarshalJSON encodes the type and all fields.
func (d GenericDirective) MarshalJSON() ([]byte, error) {
	fields := d.Fields
	if fields == nil {
		fields = map[string]json.RawMessage{}
	}
	return marshalWithType(d.Type, fields)
}

// NewGenericDirective builds a GenericDirective from plain Go values.
func NewGenericDirective(typ string, fields map[string]any) (GenericDirective, error) {
	d := GenericDirective{Type: typ, Fields: make(map[string]json.RawMessage, len(fields))}
	for k, v := range fields {
		if k == "type" {
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return GenericDirective{}, err
		}
		d.Fields[k] = raw
	}
	return d, nil
}
