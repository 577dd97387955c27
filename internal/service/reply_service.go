// Package service contains application services.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"sync/atomic"

	"github.com/google/cel-go/cel"

	celeval "github.com/webcomputing/assistant-alexa/internal/adapter/outbound/cel"
	"github.com/webcomputing/assistant-alexa/internal/domain/answer"
	"github.com/webcomputing/assistant-alexa/internal/domain/reply"
	"github.com/webcomputing/assistant-alexa/internal/domain/request"
	"github.com/webcomputing/assistant-alexa/internal/port/inbound"
)

// CompiledReply is a reply rule with its pre-compiled condition.
type CompiledReply struct {
	Rule    reply.Rule
	Program cel.Program
}

// placeholderRef matches "${name}" entity references in reply texts.
var placeholderRef = regexp.MustCompile(`\$\{(\w+)\}`)

// hintSetter is implemented by response handlers of platforms with screens.
type hintSetter interface {
	SetHint(text string)
}

// ReplyService answers requests from configured reply rules.
// Rules are compiled at load time and evaluated in order, first match wins.
// Uses atomic.Value for lock-free reads on the hot path.
type ReplyService struct {
	evaluator *celeval.Evaluator
	snapshot  atomic.Value // stores []CompiledReply
	mu        sync.Mutex   // Only for Reload() writes
	fallback  reply.Rule
	logger    *slog.Logger
}

// NewReplyService compiles rules and creates a ReplyService. fallback answers
// requests no rule matches.
func NewReplyService(rules []reply.Rule, fallback reply.Rule, logger *slog.Logger) (*ReplyService, error) {
	evaluator, err := celeval.NewEvaluator()
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL evaluator: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &ReplyService{
		evaluator: evaluator,
		fallback:  fallback,
		logger:    logger,
	}

	compiled, err := s.compileRules(rules)
	if err != nil {
		return nil, err
	}
	s.snapshot.Store(compiled)

	logger.Info("reply service initialized", "rules_compiled", len(compiled))
	return s, nil
}

// ValidateRules checks that all CEL conditions in the given rules are valid.
func (s *ReplyService) ValidateRules(rules []reply.Rule) error {
	for _, rule := range rules {
		if rule.Condition == "" {
			continue // empty condition defaults to "true" at compile time
		}
		if err := s.evaluator.Check(rule.Condition); err != nil {
			return fmt.Errorf("reply %q: %w", rule.Name, err)
		}
	}
	return nil
}

func (s *ReplyService) compileRules(rules []reply.Rule) ([]CompiledReply, error) {
	if err := s.ValidateRules(rules); err != nil {
		return nil, err
	}
	compiled := make([]CompiledReply, 0, len(rules))
	for _, rule := range rules {
		prg, err := s.evaluator.Compile(rule.Condition)
		if err != nil {
			return nil, fmt.Errorf("failed to compile reply %s: %w", rule.Name, err)
		}
		compiled = append(compiled, CompiledReply{Rule: rule, Program: prg})
	}
	return compiled, nil
}

// Reload replaces the rule set. It is safe to call concurrently with Match.
func (s *ReplyService) Reload(rules []reply.Rule) error {
	compiled, err := s.compileRules(rules)
	if err != nil {
		return fmt.Errorf("failed to compile replies: %w", err)
	}

	s.mu.Lock()
	s.snapshot.Store(compiled)
	s.mu.Unlock()

	s.logger.Info("reply service reloaded", "rules_compiled", len(compiled))
	return nil
}

func (s *ReplyService) loadSnapshot() []CompiledReply {
	return s.snapshot.Load().([]CompiledReply)
}

// Match returns the first rule answering the extraction. The boolean is
// false when the fallback was chosen.
func (s *ReplyService) Match(ctx context.Context, ext *request.Extraction) (reply.Rule, bool, error) {
	evalCtx := reply.NewEvaluationContext(ext)

	for _, cr := range s.loadSnapshot() {
		if !cr.Rule.MatchesIntent(ext.Intent) {
			continue
		}
		ok, err := s.evaluator.Evaluate(ctx, cr.Program, evalCtx)
		if err != nil {
			return reply.Rule{}, false, fmt.Errorf("reply %s evaluation failed: %w", cr.Rule.Name, err)
		}
		if ok {
			return cr.Rule, true, nil
		}
	}
	return s.fallback, false, nil
}

// Handle implements inbound.IntentHandler.
func (s *ReplyService) Handle(ctx context.Context, ext *request.Extraction, h answer.Handable) error {
	rule, matched, err := s.Match(ctx, ext)
	if err != nil {
		return err
	}
	s.logger.Debug("reply selected",
		"intent", ext.Intent.String(),
		"reply", rule.Name,
		"fallback", !matched,
	)

	Apply(rule, ext, h)
	return h.Send(ctx)
}

// Apply writes a rule's answer to h. "${name}" in texts expands to the
// entity value; references to entities the request lacks and any other "$"
// stay as written. Session data is carried over unless the rule replaces it.
func Apply(rule reply.Rule, ext *request.Extraction, h answer.Handable) {
	expand := func(s string) string {
		return placeholderRef.ReplaceAllStringFunc(s, func(ref string) string {
			if v, ok := ext.Entities[placeholderRef.FindStringSubmatch(ref)[1]]; ok {
				return v
			}
			return ref
		})
	}

	if rule.Say != "" {
		h.SetVoiceMessage(expand(rule.Say), rule.SSML)
	}
	if len(rule.Reprompts) > 0 {
		reprompts := make([]answer.VoiceMessage, 0, len(rule.Reprompts))
		for _, r := range rule.Reprompts {
			reprompts = append(reprompts, answer.VoiceMessage{Text: expand(r), IsSSML: rule.SSML})
		}
		h.SetReprompts(reprompts...)
	}
	h.SetEndSession(rule.EndSession)

	if c := rule.Card; c != nil {
		h.SetCard(answer.Card{
			Title:          expand(c.Title),
			Description:    expand(c.Body),
			CardImage:      c.Image,
			SmallCardImage: c.SmallImage,
		})
	}
	if rule.Hint != "" {
		if hs, ok := h.(hintSetter); ok {
			hs.SetHint(expand(rule.Hint))
		}
	}
	if rule.LinkAccount {
		h.SetAuthenticationRequired(true)
	}

	switch {
	case rule.SessionData != "":
		h.SetSessionData(rule.SessionData)
	case ext.SessionData != nil && !rule.EndSession:
		h.SetSessionData(*ext.SessionData)
	}
}

// Compile-time interface check.
var _ inbound.IntentHandler = (*ReplyService)(nil)

// Len returns the number of loaded reply rules.
func (s *ReplyService) Len() int {
	return len(s.loadSnapshot())
}
