package config

import "github.com/webcomputing/assistant-alexa/internal/domain/reply"

// Rule converts the reply configuration into a reply rule.
func (r ReplyConfig) Rule() reply.Rule {
	rule := reply.Rule{
		Name:        r.Name,
		Intent:      r.Intent,
		Condition:   r.Condition,
		Say:         r.Say,
		SSML:        r.SSML,
		Reprompts:   r.Reprompts,
		EndSession:  r.EndSession,
		Hint:        r.Hint,
		LinkAccount: r.LinkAccount,
		SessionData: r.SessionData,
	}
	if r.Card != nil {
		rule.Card = &reply.Card{
			Title:      r.Card.Title,
			Body:       r.Card.Body,
			Image:      r.Card.Image,
			SmallImage: r.Card.SmallImage,
		}
	}
	return rule
}

// ReplyRules returns the configured replies in evaluation order.
func (c *AppConfig) ReplyRules() []reply.Rule {
	rules := make([]reply.Rule, 0, len(c.Replies))
	for _, r := range c.Replies {
		rules = append(rules, r.Rule())
	}
	return rules
}
