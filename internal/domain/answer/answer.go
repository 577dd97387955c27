// Package answer defines the canonical, platform-independent answer state a
// request handler accumulates, and the narrow capability interfaces response
// synthesizers read it through.
package answer

import (
	"context"
	"errors"
	"sync/atomic"
)

// ErrAlreadySent is returned when a second response is sent for one request.
var ErrAlreadySent = errors.New("answer: response already sent")

// VoiceMessage is a spoken text, either plain or SSML.
type VoiceMessage struct {
	Text   string
	IsSSML bool
}

// Card is a visual card shown in the companion app.
type Card struct {
	Title          string
	Description    string
	CardImage      string
	SmallCardImage string
}

// HasSessionEnd exposes the end-session flag.
type HasSessionEnd interface {
	ShouldEndSession() bool
}

// HasVoiceMessage exposes the primary voice message.
type HasVoiceMessage interface {
	VoiceMessage() *VoiceMessage
}

// HasCard exposes the card.
type HasCard interface {
	Card() *Card
}

// HasReprompts exposes the ordered reprompts.
type HasReprompts interface {
	Reprompts() []VoiceMessage
}

// HasSessionData exposes the session data blob.
type HasSessionData interface {
	SessionData() (string, bool)
}

// HasAuthentication exposes whether the user has to link an account.
type HasAuthentication interface {
	AuthenticationRequired() bool
}

// Reader is the full read-only view of an answer.
type Reader interface {
	HasSessionEnd
	HasVoiceMessage
	HasCard
	HasReprompts
	HasSessionData
	HasAuthentication
}

// Handable is what intent handlers write their answer to. Every platform
// response handler implements it.
type Handable interface {
	Reader

	SetEndSession(end bool)
	SetVoiceMessage(text string, ssml bool)
	SetReprompts(reprompts ...VoiceMessage)
	SetCard(card Card)
	SetSessionData(data string)
	SetAuthenticationRequired(required bool)

	// Send synthesizes the platform response and hands it to the transport.
	// It fails with ErrAlreadySent on every call after the first.
	Send(ctx context.Context) error
}

// State is the mutable answer state of one request. The zero value is an
// empty answer that keeps the session open.
type State struct {
	endSession   bool
	voice        *VoiceMessage
	reprompts    []VoiceMessage
	card         *Card
	sessionData  *string
	authRequired bool
}

// SetEndSession sets whether the session ends after this answer.
func (s *State) SetEndSession(end bool) { s.endSession = end }

// ShouldEndSession implements HasSessionEnd.
func (s *State) ShouldEndSession() bool { return s.endSession }

// SetVoiceMessage sets the spoken answer.
func (s *State) SetVoiceMessage(text string, ssml bool) {
	s.voice = &VoiceMessage{Text: text, IsSSML: ssml}
}

// VoiceMessage implements HasVoiceMessage.
func (s *State) VoiceMessage() *VoiceMessage { return s.voice }

// SetReprompts replaces the reprompts.
func (s *State) SetReprompts(reprompts ...VoiceMessage) {
	s.reprompts = append([]VoiceMessage(nil), reprompts...)
}

// Reprompts implements HasReprompts.
func (s *State) Reprompts() []VoiceMessage { return s.reprompts }

// SetCard replaces the card.
func (s *State) SetCard(card Card) { s.card = &card }

// SetCardTitle sets the card title, creating the card if needed.
func (s *State) SetCardTitle(title string) { s.ensureCard().Title = title }

// SetCardDescription sets the card body.
func (s *State) SetCardDescription(description string) {
	s.ensureCard().Description = description
}

// SetCardImage sets the card image used for both sizes unless a small image
// is set.
func (s *State) SetCardImage(url string) { s.ensureCard().CardImage = url }

// SetSmallCardImage sets a distinct small card image.
func (s *State) SetSmallCardImage(url string) { s.ensureCard().SmallCardImage = url }

func (s *State) ensureCard() *Card {
	if s.card == nil {
		s.card = &Card{}
	}
	return s.card
}

// Card implements HasCard.
func (s *State) Card() *Card { return s.card }

// SetSessionData sets the session data blob.
func (s *State) SetSessionData(data string) { s.sessionData = &data }

// SessionData implements HasSessionData.
func (s *State) SessionData() (string, bool) {
	if s.sessionData == nil {
		return "", false
	}
	return *s.sessionData, true
}

// SetAuthenticationRequired sets whether the user has to link an account.
func (s *State) SetAuthenticationRequired(required bool) { s.authRequired = required }

// AuthenticationRequired implements HasAuthentication.
func (s *State) AuthenticationRequired() bool { return s.authRequired }

// SendOnce guards a response handler against sending twice.
type SendOnce struct {
	sent atomic.Bool
}

// Claim marks the response as sent. It returns ErrAlreadySent if it was.
func (o *SendOnce) Claim() error {
	if !o.sent.CompareAndSwap(false, true) {
		return ErrAlreadySent
	}
	return nil
}

// Sent reports whether a response was sent.
func (o *SendOnce) Sent() bool { return o.sent.Load() }
