// Package retrieve acquires the pages a detection method looks at.
//
// Two channels exist: a plain HTTP GET (always available) and an optional
// rendered channel driven by a real browser. Both produce a Response; one
// probe of a (template, identity) pair produces one Sample holding both.
//
// Retrieval never fails on transport problems. A failed GET becomes a
// Response with Status -1 and the error text as body, so signature
// extraction downstream works on every sample.
package retrieve

import (
	"errors"
	"strings"
	"time"
)

// Channel tags the way a Response was acquired.
type Channel string

const (
	ChannelHTTP     Channel = "http"
	ChannelRendered Channel = "rendered"
)

// StatusTransportError is the status of a Response whose GET never completed.
const StatusTransportError = -1

// Placeholders recognised in URL templates.
var Placeholders = []string{"{user}", "{usuario}"}

// ErrNoPlaceholder is returned when a URL template has no identity placeholder.
// It is a configuration fault: the method can never apply to any identity.
var ErrNoPlaceholder = errors.New("retrieve: url template has no {user} or {usuario} placeholder")

// Response is one normalised page acquisition. Treat as immutable.
type Response struct {
	URL      string            `json:"url"`
	FinalURL string            `json:"final_url"`
	Status   int               `json:"status"`
	Headers  map[string]string `json:"headers,omitempty"`
	Body     string            `json:"-"`
	IsJSON   bool              `json:"is_json"`
	JSON     any               `json:"-"`
	Channel  Channel           `json:"channel"`
	Took     time.Duration     `json:"took"`
}

// Failed reports whether the response is a transport-failure sentinel.
func (r *Response) Failed() bool {
	return r == nil || r.Status == StatusTransportError
}

// JSONObject returns the decoded body as an object when it parsed as one.
func (r *Response) JSONObject() (map[string]any, bool) {
	if r == nil || !r.IsJSON {
		return nil, false
	}
	obj, ok := r.JSON.(map[string]any)
	return obj, ok
}

// Sample pairs the plain response with the optional rendered one for the
// same identity. Plain is never nil.
type Sample struct {
	Identity string    `json:"identity"`
	Plain    *Response `json:"plain"`
	Rendered *Response `json:"rendered,omitempty"`
}

// HasRendered reports whether a rendered capture exists.
func (s Sample) HasRendered() bool {
	return s.Rendered != nil
}

// EffectiveText is the more complete of the two bodies. The rendered body
// is used only when it is strictly longer; a tie keeps the plain one.
func (s Sample) EffectiveText() string {
	plain := ""
	if s.Plain != nil {
		plain = s.Plain.Body
	}
	if s.Rendered != nil && len(s.Rendered.Body) > len(plain) {
		return s.Rendered.Body
	}
	return plain
}

// FinalURL prefers the stabilised rendered URL over the plain redirect target.
func (s Sample) FinalURL() string {
	if s.Rendered != nil && s.Rendered.FinalURL != "" {
		return s.Rendered.FinalURL
	}
	if s.Plain != nil {
		return s.Plain.FinalURL
	}
	return ""
}

// Channel is the channel the effective content came from.
func (s Sample) Channel() Channel {
	if s.Rendered != nil {
		return s.Rendered.Channel
	}
	return ChannelHTTP
}

// HasPlaceholder reports whether template contains a recognised placeholder.
func HasPlaceholder(template string) bool {
	for _, p := range Placeholders {
		if strings.Contains(template, p) {
			return true
		}
	}
	return false
}

// Substitute replaces every placeholder occurrence with the raw identity.
func Substitute(template, identity string) (string, error) {
	if !HasPlaceholder(template) {
		return "", ErrNoPlaceholder
	}
	out := template
	for _, p := range Placeholders {
		out = strings.ReplaceAll(out, p, identity)
	}
	return out, nil
}
