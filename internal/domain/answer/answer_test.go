package answer

import (
	"errors"
	"sync"
	"testing"
)

// Compile-time check that State satisfies Reader.
var _ Reader = (*State)(nil)

func TestState_ZeroValue(t *testing.T) {
	var s State
	if s.ShouldEndSession() {
		t.Error("zero State should keep the session open")
	}
	if s.VoiceMessage() != nil {
		t.Error("zero State should have no voice message")
	}
	if s.Card() != nil {
		t.Error("zero State should have no card")
	}
	if len(s.Reprompts()) != 0 {
		t.Error("zero State should have no reprompts")
	}
	if _, ok := s.SessionData(); ok {
		t.Error("zero State should have no session data")
	}
	if s.AuthenticationRequired() {
		t.Error("zero State should not require authentication")
	}
}

func TestState_Setters(t *testing.T) {
	var s State
	s.SetEndSession(true)
	s.SetVoiceMessage("<speak>Hello</speak>", true)
	s.SetReprompts(VoiceMessage{Text: "first"}, VoiceMessage{Text: "second"})
	s.SetSessionData(`{"state":"main"}`)
	s.SetAuthenticationRequired(true)

	if !s.ShouldEndSession() {
		t.Error("ShouldEndSession() = false, want true")
	}
	if v := s.VoiceMessage(); v == nil || v.Text != "<speak>Hello</speak>" || !v.IsSSML {
		t.Errorf("VoiceMessage() = %+v", v)
	}
	if got := s.Reprompts(); len(got) != 2 || got[0].Text != "first" {
		t.Errorf("Reprompts() = %+v", got)
	}
	if data, ok := s.SessionData(); !ok || data != `{"state":"main"}` {
		t.Errorf("SessionData() = %q, %v", data, ok)
	}
	if !s.AuthenticationRequired() {
		t.Error("AuthenticationRequired() = false, want true")
	}
}

func TestState_CardSetters(t *testing.T) {
	var s State
	s.SetCardTitle("My title")
	s.SetCardDescription("My body")
	s.SetCardImage("My image")

	want := Card{Title: "My title", Description: "My body", CardImage: "My image"}
	if got := s.Card(); got == nil || *got != want {
		t.Errorf("Card() = %+v, want %+v", got, want)
	}

	s.SetCard(Card{Title: "Other"})
	if got := s.Card(); got.Description != "" {
		t.Errorf("SetCard should replace the card, got %+v", got)
	}
}

func TestState_SetRepromptsCopies(t *testing.T) {
	reprompts := []VoiceMessage{{Text: "a"}}
	var s State
	s.SetReprompts(reprompts...)
	reprompts[0].Text = "changed"
	if s.Reprompts()[0].Text != "a" {
		t.Error("SetReprompts should copy its input")
	}
}

func TestSendOnce(t *testing.T) {
	var once SendOnce
	if once.Sent() {
		t.Fatal("Sent() = true before Claim")
	}
	if err := once.Claim(); err != nil {
		t.Fatalf("first Claim() error = %v", err)
	}
	if err := once.Claim(); !errors.Is(err, ErrAlreadySent) {
		t.Errorf("second Claim() error = %v, want ErrAlreadySent", err)
	}
}

func TestSendOnce_Concurrent(t *testing.T) {
	var once SendOnce
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if once.Claim() == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("successful claims = %d, want 1", wins)
	}
}
