package intent

import "testing"

func TestFromAlexaName(t *testing.T) {
	tests := []struct {
		name        string
		want        string
		wantGeneric bool
	}{
		{"AMAZON.YesIntent", "yes", true},
		{"AMAZON.NoIntent", "no", true},
		{"AMAZON.HelpIntent", "help", true},
		{"AMAZON.CancelIntent", "cancel", true},
		{"AMAZON.StopIntent", "stop", true},
		{"AMAZON.FallbackIntent", "AMAZON.FallbackIntent", false},
		{"bookTable", "bookTable", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromAlexaName(tt.name)
			if got.String() != tt.want {
				t.Errorf("FromAlexaName(%q) = %q, want %q", tt.name, got.String(), tt.want)
			}
			if got.IsGeneric() != tt.wantGeneric {
				t.Errorf("IsGeneric() = %v, want %v", got.IsGeneric(), tt.wantGeneric)
			}
		})
	}
}

func TestGenericToAlexa_IsInverse(t *testing.T) {
	if len(GenericToAlexa) != len(AlexaToGeneric) {
		t.Fatalf("len(GenericToAlexa) = %d, want %d", len(GenericToAlexa), len(AlexaToGeneric))
	}
	for name, g := range AlexaToGeneric {
		back, ok := AlexaName(g)
		if !ok || back != name {
			t.Errorf("AlexaName(%v) = %q, %v; want %q, true", g, back, ok, name)
		}
	}
	if _, ok := AlexaName(Invoke); ok {
		t.Error("Invoke should have no Alexa built-in name")
	}
}

func TestIsSpeakable(t *testing.T) {
	speakable := map[GenericIntent]bool{
		Invoke: false, Unhandled: false, Unanswered: false, Selected: false,
		Yes: true, No: true, Help: true, Cancel: true, Stop: true,
	}
	for g, want := range speakable {
		if g.IsSpeakable() != want {
			t.Errorf("%v.IsSpeakable() = %v, want %v", g, g.IsSpeakable(), want)
		}
	}
}

func TestParseGeneric(t *testing.T) {
	g, ok := ParseGeneric(" Help ")
	if !ok || g != Help {
		t.Errorf("ParseGeneric(Help) = %v, %v; want help, true", g, ok)
	}
	if _, ok := ParseGeneric("bookTable"); ok {
		t.Error("ParseGeneric(bookTable) should fail")
	}
}

func TestIntent_ZeroValue(t *testing.T) {
	var i Intent
	if i.IsGeneric() {
		t.Error("zero Intent should not be generic")
	}
	if i.Is(Invoke) {
		t.Error("zero Intent should not match Invoke")
	}
	if i.String() != "" {
		t.Errorf("String() = %q, want empty", i.String())
	}
}
