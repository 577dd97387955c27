// Package request defines the platform-agnostic view of an inbound voice
// request: the raw HTTP context handed to platform extractors and the
// canonical extraction they produce.
package request

import (
	"strings"

	"github.com/webcomputing/assistant-alexa/internal/domain/intent"
)

// Context is the raw inbound request as seen by platform extractors.
type Context struct {
	// ID is the request id assigned by the transport.
	ID     string
	Method string
	Path   string
	// Headers holds the request headers with lower-cased names.
	Headers map[string]string
	// Body is the unmodified request body.
	Body []byte
}

// NewContext builds a Context, lower-casing header names. Multi-valued
// headers keep their first value.
func NewContext(id, method, path string, headers map[string][]string, body []byte) *Context {
	h := make(map[string]string, len(headers))
	for k, v := range headers {
		if len(v) == 0 {
			continue
		}
		key := strings.ToLower(k)
		if _, ok := h[key]; !ok {
			h[key] = v[0]
		}
	}
	return &Context{ID: id, Method: method, Path: path, Headers: h, Body: body}
}

// Header returns a header value by case-insensitive name.
func (c *Context) Header(name string) string {
	if c == nil {
		return ""
	}
	return c.Headers[strings.ToLower(name)]
}

// Extraction is the canonical, platform-agnostic content of a request.
type Extraction struct {
	// SessionID is prefixed with the platform name.
	SessionID string
	// SessionData is the opaque state blob the platform round-trips.
	SessionData *string
	Intent      intent.Intent
	// Entities only holds slots with a concrete value.
	Entities map[string]string
	// Language is the two-letter language code.
	Language string
	Platform string
	// OAuthToken is the linked account token, if any.
	OAuthToken *string
	// TemporalAuthToken is an anonymous per-user identifier.
	TemporalAuthToken *string
	RequestTimestamp  string
}

// Authenticated reports whether the request carries an OAuth token.
func (e *Extraction) Authenticated() bool {
	return e != nil && e.OAuthToken != nil && *e.OAuthToken != ""
}

// Entity returns the value of an entity and whether it is present.
func (e *Extraction) Entity(name string) (string, bool) {
	if e == nil {
		return "", false
	}
	v, ok := e.Entities[name]
	return v, ok
}
