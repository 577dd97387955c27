// Package reply defines configured answer rules: which intent they answer,
// the condition under which they apply, and the answer they produce.
package reply

import (
	"path/filepath"
	"strings"

	"github.com/webcomputing/assistant-alexa/internal/domain/intent"
	"github.com/webcomputing/assistant-alexa/internal/domain/request"
)

// AnyIntent matches every intent.
const AnyIntent = "*"

// Rule is one configured answer.
type Rule struct {
	Name string
	// Intent is a generic intent name ("help"), a raw platform intent name
	// ("bookTable"), a glob over either, or AnyIntent.
	Intent string
	// Condition is a CEL expression. Empty means "true".
	Condition string

	Say         string
	SSML        bool
	Reprompts   []string
	EndSession  bool
	Card        *Card
	Hint        string
	LinkAccount bool
	SessionData string
}

// Card is the card part of a Rule.
type Card struct {
	Title      string
	Body       string
	Image      string
	SmallImage string
}

// MatchesIntent reports whether the rule answers i.
func (r Rule) MatchesIntent(i intent.Intent) bool {
	pattern := strings.TrimSpace(r.Intent)
	if pattern == "" || pattern == AnyIntent {
		return true
	}
	name := i.String()
	if g, ok := i.Generic(); ok {
		if pg, ok := intent.ParseGeneric(pattern); ok {
			return pg == g
		}
		name = g.String()
	}
	if pattern == name {
		return true
	}
	if strings.ContainsAny(pattern, "*?[") {
		matched, _ := filepath.Match(pattern, name)
		return matched
	}
	return false
}

// EvaluationContext is what rule conditions are evaluated against.
type EvaluationContext struct {
	Intent         string
	Generic        string
	Entities       map[string]string
	Language       string
	Platform       string
	SessionID      string
	SessionData    string
	HasSessionData bool
	Authenticated  bool
}

// NewEvaluationContext builds the evaluation context of an extraction.
func NewEvaluationContext(e *request.Extraction) EvaluationContext {
	ctx := EvaluationContext{
		Intent:        e.Intent.String(),
		Entities:      e.Entities,
		Language:      e.Language,
		Platform:      e.Platform,
		SessionID:     e.SessionID,
		Authenticated: e.Authenticated(),
	}
	if g, ok := e.Intent.Generic(); ok {
		ctx.Generic = g.String()
	}
	if e.SessionData != nil {
		ctx.SessionData = *e.SessionData
		ctx.HasSessionData = true
	}
	if ctx.Entities == nil {
		ctx.Entities = map[string]string{}
	}
	return ctx
}
