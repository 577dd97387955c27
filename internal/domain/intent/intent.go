// Package intent defines the cross-platform intent vocabulary and its
// mapping onto Alexa's built-in intent names.
package intent

import "strings"

// GenericIntent is an intent every platform understands, independent of the
// platform-specific name it arrives under.
type GenericIntent int

const (
	// Invoke is sent when the user opens the skill without a concrete intent.
	Invoke GenericIntent = iota + 1
	// Unhandled is used by the framework when no handler matched.
	Unhandled
	// Unanswered is sent when the session ends without a user answer.
	Unanswered
	// Selected is sent when the user selects an element on a screen.
	Selected
	// Yes is the user's affirmation.
	Yes
	// No is the user's negation.
	No
	// Help is a request for help.
	Help
	// Cancel cancels the current transaction.
	Cancel
	// Stop ends the interaction.
	Stop
)

var genericNames = map[GenericIntent]string{
	Invoke:     "invoke",
	Unhandled:  "unhandled",
	Unanswered: "unanswered",
	Selected:   "selected",
	Yes:        "yes",
	No:         "no",
	Help:       "help",
	Cancel:     "cancel",
	Stop:       "stop",
}

// String returns the lower-case name of the generic intent.
func (g GenericIntent) String() string {
	if name, ok := genericNames[g]; ok {
		return name
	}
	return "unknown"
}

// IsSpeakable reports whether users can trigger the intent with an utterance.
// Invoke, Unhandled, Unanswered and Selected are raised by the platform itself.
func (g GenericIntent) IsSpeakable() bool {
	switch g {
	case Yes, No, Help, Cancel, Stop:
		return true
	default:
		return false
	}
}

// ParseGeneric resolves a generic intent from its name (case-insensitive).
func ParseGeneric(name string) (GenericIntent, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for g, n := range genericNames {
		if n == name {
			return g, true
		}
	}
	return 0, false
}

// Intent is either a GenericIntent or a raw, platform-specific intent name.
// The zero value is an empty raw intent.
type Intent struct {
	generic GenericIntent
	name    string
}

// FromGeneric wraps a generic intent.
func FromGeneric(g GenericIntent) Intent {
	return Intent{generic: g}
}

// Named wraps a raw platform intent name.
func Named(name string) Intent {
	return Intent{name: name}
}

// Generic returns the generic intent and true if the intent is generic.
func (i Intent) Generic() (GenericIntent, bool) {
	return i.generic, i.generic != 0
}

// IsGeneric reports whether the intent is a generic intent.
func (i Intent) IsGeneric() bool {
	return i.generic != 0
}

// Is reports whether the intent equals the given generic intent.
func (i Intent) Is(g GenericIntent) bool {
	return i.generic != 0 && i.generic == g
}

// Name returns the raw platform name, or "" for generic intents.
func (i Intent) Name() string {
	return i.name
}

// String returns the generic name or the raw platform name.
func (i Intent) String() string {
	if i.generic != 0 {
		return i.generic.String()
	}
	return i.name
}
