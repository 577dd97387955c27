package alexa

import (
	"errors"

	"github.com/webcomputing/assistant-alexa/internal/domain/alexa"
	"github.com/webcomputing/assistant-alexa/internal/domain/answer"
)

// ErrCardIncomplete is returned when a card has a title but no description.
var ErrCardIncomplete = errors.New("alexa: card title and description must both be set")

// Results is the answer state BuildBody synthesizes a response from.
type Results struct {
	Answer answer.Reader

	// Template is the single display template, or nil.
	Template alexa.Template
	// Hint is the hint text, or nil.
	Hint *string
	// CustomDirectives replaces all other directives when
	// CustomDirectivesSet is true, even if it is empty.
	CustomDirectives    []alexa.Directive
	CustomDirectivesSet bool
}

// BuildBody synthesizes the Alexa response envelope. Later steps take
// precedence over earlier ones:
//
//  1. base envelope and session attributes
//  2. render template directive
//  3. hint directive, appended
//  4. custom directives, replacing 2 and 3
//  5. card, with LinkAccount winning over a title card
//  6. output speech
//  7. reprompt, from the first reprompt only
func BuildBody(r Results) (*alexa.ResponseEnvelope, error) {
	a := r.Answer
	if a == nil {
		a = &answer.State{}
	}

	env := &alexa.ResponseEnvelope{Version: alexa.Version}
	env.Response.ShouldEndSession = a.ShouldEndSession()
	if data, ok := a.SessionData(); ok && data != "" {
		env.SessionAttributes = map[string]string{SessionKey: data}
	}

	if r.Template != nil {
		env.Response.AppendDirective(alexa.RenderTemplateDirective{Template: r.Template})
	}
	if r.Hint != nil {
		env.Response.AppendDirective(alexa.NewHintDirective(*r.Hint))
	}
	if r.CustomDirectivesSet {
		env.Response.SetDirectives(append([]alexa.Directive{}, r.CustomDirectives...))
	}

	card, err := buildCard(a)
	if err != nil {
		return nil, err
	}
	env.Response.Card = card

	if v := a.VoiceMessage(); v != nil {
		env.Response.OutputSpeech = alexa.NewSpeech(v.Text, v.IsSSML)
	}
	if reprompts := a.Reprompts(); len(reprompts) > 0 {
		env.Response.Reprompt = &alexa.Reprompt{
			OutputSpeech: alexa.NewSpeech(reprompts[0].Text, reprompts[0].IsSSML),
		}
	}
	return env, nil
}

func buildCard(a answer.Reader) (*alexa.Card, error) {
	if a.AuthenticationRequired() {
		return &alexa.Card{Type: alexa.CardLinkAccount}, nil
	}
	c := a.Card()
	if c == nil || c.Title == "" {
		return nil, nil
	}
	if c.Description == "" {
		return nil, ErrCardIncomplete
	}
	if c.CardImage == "" {
		return &alexa.Card{Type: alexa.CardSimple, Title: c.Title, Content: c.Description}, nil
	}

	small := c.SmallCardImage
	if small == "" {
		small = c.CardImage
	}
	return &alexa.Card{
		Type:  alexa.CardStandard,
		Title: c.Title,
		Text:  c.Description,
		Image: &alexa.CardImage{SmallImageURL: small, LargeImageURL: c.CardImage},
	}, nil
}
