// Package alexa defines the Alexa Skills Kit JSON wire model: the request
// envelope Alexa posts to a skill endpoint and the response envelope the
// skill answers with.
package alexa

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Request type discriminators.
const (
	TypeLaunchRequest       = "LaunchRequest"
	TypeIntentRequest       = "IntentRequest"
	TypeSessionEndedRequest = "SessionEndedRequest"
	TypeElementSelected     = "Display.ElementSelected"
)

// ErrMissingRequest is returned when an envelope has no request object.
var ErrMissingRequest = errors.New("alexa: envelope has no request")

// RequestEnvelope is the body of every Alexa request.
type RequestEnvelope struct {
	Version string   `json:"version"`
	Session *Session `json:"session,omitempty"`
	Request Request  `json:"-"`
}

// Session carries the conversation context. Alexa omits it for some
// out-of-session requests.
type Session struct {
	New         bool                       `json:"new"`
	SessionID   string                     `json:"sessionId"`
	Application *Application               `json:"application,omitempty"`
	Attributes  map[string]json.RawMessage `json:"attributes,omitempty"`
	User        *User                      `json:"user,omitempty"`
}

// Application identifies the skill the request was sent for.
type Application struct {
	ApplicationID string `json:"applicationId"`
}

// User describes the Amazon account talking to the skill.
type User struct {
	UserID      string       `json:"userId"`
	AccessToken string       `json:"accessToken,omitempty"`
	Permissions *Permissions `json:"permissions,omitempty"`
}

// Permissions holds the consent token for customer data APIs.
type Permissions struct {
	ConsentToken string `json:"consentToken,omitempty"`
}

// Request is the tagged union of all request variants. Consumers switch on
// the concrete type: *LaunchRequest, *IntentRequest, *SessionEndedRequest,
// *ElementSelectedRequest or *UnknownRequest.
type Request interface {
	// Base returns the fields shared by all request variants.
	Base() RequestBase
}

// RequestBase holds the fields every request variant carries.
type RequestBase struct {
	Type      string `json:"type"`
	RequestID string `json:"requestId"`
	Timestamp string `json:"timestamp"`
	Locale    string `json:"locale"`
}

// Base implements Request.
func (b RequestBase) Base() RequestBase { return b }

// LaunchRequest is sent when the user invokes the skill without an intent.
type LaunchRequest struct {
	RequestBase
}

// IntentRequest is sent when the user speaks an utterance mapped to an intent.
type IntentRequest struct {
	RequestBase
	DialogState string  `json:"dialogState,omitempty"`
	Intent      *Intent `json:"intent,omitempty"`
}

// Intent is the resolved intent of an IntentRequest.
type Intent struct {
	Name               string          `json:"name"`
	ConfirmationStatus string          `json:"confirmationStatus,omitempty"`
	Slots              map[string]Slot `json:"slots,omitempty"`
}

// Slot is one filled or unfilled slot of an intent. Value is nil when Alexa
// omitted it or sent JSON null.
type Slot struct {
	Name               string  `json:"name"`
	Value              *string `json:"value,omitempty"`
	ConfirmationStatus string  `json:"confirmationStatus,omitempty"`
}

// SessionEndedRequest is sent when the session ends for a reason other than
// the skill ending it.
type SessionEndedRequest struct {
	RequestBase
	Reason string             `json:"reason,omitempty"`
	Error  *SessionEndedError `json:"error,omitempty"`
}

// SessionEndedError explains an ERROR session end reason.
type SessionEndedError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ElementSelectedRequest is sent when the user touches a list item on a
// screen device. Token is nil when the request carries none; an empty
// token is still a selection.
type ElementSelectedRequest struct {
	RequestBase
	Token *string `json:"token,omitempty"`
}

// UnknownRequest keeps any request type this package does not model.
type UnknownRequest struct {
	RequestBase
	Raw json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes the envelope and resolves the request variant from
// its "type" discriminator.
func (e *RequestEnvelope) UnmarshalJSON(data []byte) error {
	var raw struct {
		Version string          `json:"version"`
		Session *Session        `json:"session"`
		Request json.RawMessage `json:"request"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.Version = raw.Version
	e.Session = raw.Session
	e.Request = nil

	if len(raw.Request) == 0 || string(raw.Request) == "null" {
		return ErrMissingRequest
	}
	req, err := decodeRequest(raw.Request)
	if err != nil {
		return err
	}
	e.Request = req
	return nil
}

// MarshalJSON encodes the envelope, including the request variant.
func (e RequestEnvelope) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Version string   `json:"version"`
		Session *Session `json:"session,omitempty"`
		Request Request  `json:"request,omitempty"`
	}{e.Version, e.Session, e.Request})
}

// MarshalJSON returns the raw request for unknown types so they round-trip.
func (r *UnknownRequest) MarshalJSON() ([]byte, error) {
	if len(r.Raw) > 0 {
		return r.Raw, nil
	}
	return json.Marshal(r.RequestBase)
}

func decodeRequest(data json.RawMessage) (Request, error) {
	var base RequestBase
	if err := json.Unmarshal(data, &base); err != nil {
		return nil, fmt.Errorf("alexa: decode request: %w", err)
	}

	var req Request
	switch base.Type {
	case TypeLaunchRequest:
		req = &LaunchRequest{}
	case TypeIntentRequest:
		req = &IntentRequest{}
	case TypeSessionEndedRequest:
		req = &SessionEndedRequest{}
	case TypeElementSelected:
		req = &ElementSelectedRequest{}
	default:
		return &UnknownRequest{RequestBase: base, Raw: data}, nil
	}

	if err := json.Unmarshal(data, req); err != nil {
		return nil, fmt.Errorf("alexa: decode %s: %w", base.Type, err)
	}
	return req, nil
}

// ParseRequestEnvelope decodes a raw Alexa request body.
func ParseRequestEnvelope(body []byte) (*RequestEnvelope, error) {
	var env RequestEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}
	return &env, nil
}
