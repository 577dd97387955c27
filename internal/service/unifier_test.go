package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/webcomputing/assistant-alexa/internal/adapter/inbound/alexa"
	"github.com/webcomputing/assistant-alexa/internal/adapter/outbound/verifier"
	"github.com/webcomputing/assistant-alexa/internal/domain/answer"
	"github.com/webcomputing/assistant-alexa/internal/domain/reply"
	"github.com/webcomputing/assistant-alexa/internal/domain/request"
	"github.com/webcomputing/assistant-alexa/internal/port/inbound"
)

const alexaBody = `{
  "version": "1.0",
  "session": {
    "new": true,
    "sessionId": "SessionId.d391741c-a96f-4393-b7b4-ee76c81c24d3",
    "application": {"applicationId": "mock-applicationId"},
    "user": {"userId": "temporalUserId", "accessToken": "mockOAuthToken"}
  },
  "request": {
    "type": "IntentRequest",
    "requestId": "EdwRequestId.1",
    "timestamp": "2017-06-24T16:00:18Z",
    "locale": "en-US",
    "intent": {"name": "test", "slots": {"entity1": {"name": "entity1", "value": "entityvalue"}}}
  }
}`

// stubPlatform is a platform with a fixed Fits result.
type stubPlatform struct {
	name     string
	fits     bool
	fitsErr  error
	extracts int
}

func (p *stubPlatform) Platform() string { return p.name }
func (p *stubPlatform) Fits(context.Context, *request.Context) (bool, error) {
	return p.fits, p.fitsErr
}
func (p *stubPlatform) Extract(context.Context, *request.Context) (*request.Extraction, error) {
	p.extracts++
	return &request.Extraction{Platform: p.name}, nil
}
func (p *stubPlatform) NewHandler(respond inbound.Responder) answer.Handable {
	return alexa.NewHandler(respond)
}

// intentHandlerFunc adapts a function to inbound.IntentHandler.
type intentHandlerFunc func(context.Context, *request.Extraction, answer.Handable) error

func (f intentHandlerFunc) Handle(ctx context.Context, e *request.Extraction, h answer.Handable) error {
	return f(ctx, e, h)
}

func sendOnly(ctx context.Context, _ *request.Extraction, h answer.Handable) error {
	return h.Send(ctx)
}

func TestUnifier_NoPlatform(t *testing.T) {
	u := NewUnifier(intentHandlerFunc(sendOnly), testLogger(), &stubPlatform{name: "google"})
	_, err := u.Dispatch(context.Background(), &request.Context{Path: "/alexa"}, nil)
	if !errors.Is(err, ErrNoPlatform) {
		t.Errorf("Dispatch() error = %v, want ErrNoPlatform", err)
	}
}

func TestUnifier_FirstFittingPlatformWins(t *testing.T) {
	first := &stubPlatform{name: "first", fits: true}
	second := &stubPlatform{name: "second", fits: true}
	u := NewUnifier(intentHandlerFunc(sendOnly), testLogger(), &stubPlatform{name: "none"}, first, second)

	platform, err := u.Dispatch(context.Background(), &request.Context{}, func(context.Context, []byte) error { return nil })
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if platform != "first" || first.extracts != 1 || second.extracts != 0 {
		t.Errorf("platform = %s, extracts = %d/%d; want first, 1/0", platform, first.extracts, second.extracts)
	}
	if got := u.Platforms(); len(got) != 3 || got[1] != "first" {
		t.Errorf("Platforms() = %v", got)
	}
}

func TestUnifier_MisconfiguredPlatformAborts(t *testing.T) {
	u := NewUnifier(intentHandlerFunc(sendOnly), testLogger(),
		&stubPlatform{name: "alexa", fitsErr: alexa.ErrMissingApplicationID},
		&stubPlatform{name: "other", fits: true},
	)
	_, err := u.Dispatch(context.Background(), &request.Context{}, nil)
	if !errors.Is(err, alexa.ErrMissingApplicationID) {
		t.Errorf("Dispatch() error = %v, want ErrMissingApplicationID", err)
	}
}

func TestUnifier_HandlerMustSend(t *testing.T) {
	noop := intentHandlerFunc(func(context.Context, *request.Extraction, answer.Handable) error { return nil })
	u := NewUnifier(noop, testLogger(), &stubPlatform{name: "p", fits: true})
	_, err := u.Dispatch(context.Background(), &request.Context{}, func(context.Context, []byte) error { return nil })
	if !errors.Is(err, ErrNoResponse) {
		t.Errorf("Dispatch() error = %v, want ErrNoResponse", err)
	}
}

func TestUnifier_DoubleSendFails(t *testing.T) {
	twice := intentHandlerFunc(func(ctx context.Context, _ *request.Extraction, h answer.Handable) error {
		if err := h.Send(ctx); err != nil {
			return err
		}
		return h.Send(ctx)
	})
	u := NewUnifier(twice, testLogger(), &stubPlatform{name: "p", fits: true})
	_, err := u.Dispatch(context.Background(), &request.Context{}, func(context.Context, []byte) error { return nil })
	if !errors.Is(err, answer.ErrAlreadySent) {
		t.Errorf("Dispatch() error = %v, want ErrAlreadySent", err)
	}
}

func TestUnifier_AlexaEndToEnd(t *testing.T) {
	replies, err := NewReplyService([]reply.Rule{
		{Name: "test", Intent: "test", Condition: `entities["entity1"] == "entityvalue"`, Say: "Hello from alexa!", EndSession: true},
	}, reply.Rule{Say: "fallback"}, testLogger())
	if err != nil {
		t.Fatalf("NewReplyService() error = %v", err)
	}
	platform := alexa.NewPlatform(alexa.ExtractorConfig{ApplicationID: "mock-applicationId"},
		verifier.Resolve(false, testLogger()), testLogger())
	u := NewUnifier(replies, testLogger(), platform)

	var body []byte
	req := request.NewContext("req-1", "POST", "/alexa", nil, []byte(alexaBody))
	name, err := u.Dispatch(context.Background(), req, func(_ context.Context, b []byte) error {
		body = b
		return nil
	})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if name != "alexa" {
		t.Errorf("platform = %q, want alexa", name)
	}

	var env struct {
		Response struct {
			ShouldEndSession bool `json:"shouldEndSession"`
			OutputSpeech     struct {
				Text string `json:"text"`
			} `json:"outputSpeech"`
		} `json:"response"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if !env.Response.ShouldEndSession || env.Response.OutputSpeech.Text != "Hello from alexa!" {
		t.Errorf("response = %+v", env.Response)
	}
}
