// Package method defines the detection methods a site can be probed with and
// turns a probe sample into the short signature string each method observes.
//
// The set of method types is closed. Every type has its own parameter record;
// adding a type means adding a Type constant, a Params implementation and a
// case in NewParams.
package method

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hazyhaar/argos/retrieve"
)

// Type names a detection method.
type Type string

const (
	StatusCode     Type = "status_code"
	URLCheck       Type = "url_check"
	RedirectCheck  Type = "redirect_check"
	StatusText     Type = "status_code_y_texto"
	HTMLContains   Type = "html_contains"
	JSONKeys       Type = "json_response_check"
	Captcha        Type = "captcha_detect"
	Keywords       Type = "palabras_clave"
	CustomSelector Type = "custom_selector_check"
)

// Types lists every method type in derivation order.
var Types = []Type{
	StatusCode, URLCheck, RedirectCheck, HTMLContains, StatusText,
	JSONKeys, Captcha, Keywords, CustomSelector,
}

// maxNeedles caps how many configured substrings or keys an all-of check uses.
const maxNeedles = 5

// ErrUnknownType is returned for a type outside the enumeration.
var ErrUnknownType = errors.New("method: unknown type")

// Params is the parameter record of one method type.
type Params interface {
	Type() Type
	// Signature reports what the method observes in s.
	Signature(s retrieve.Sample) string
	validate() error
}

// NewParams returns the zero parameter record for t.
func NewParams(t Type) (Params, error) {
	switch t {
	case StatusCode:
		return &StatusCodeParams{}, nil
	case URLCheck:
		return &URLCheckParams{}, nil
	case RedirectCheck:
		return &RedirectCheckParams{}, nil
	case StatusText:
		return &StatusTextParams{}, nil
	case HTMLContains:
		return &HTMLContainsParams{}, nil
	case JSONKeys:
		return &JSONKeysParams{}, nil
	case Captcha:
		return &CaptchaParams{}, nil
	case Keywords:
		return &KeywordsParams{}, nil
	case CustomSelector:
		return &SelectorParams{}, nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownType, t)
}

// DecodeParams decodes and validates raw parameters for t.
func DecodeParams(t Type, raw json.RawMessage) (Params, error) {
	p, err := NewParams(t)
	if err != nil {
		return nil, err
	}
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, p); err != nil {
			return nil, fmt.Errorf("method: %s params: %w", t, err)
		}
	}
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("method: %s params: %w", t, err)
	}
	return p, nil
}

// Spec is one declared method for a site. Immutable once committed.
type Spec struct {
	Site        string
	URLTemplate string
	Type        Type
	Params      Params
	Evidence    map[string]any
}

// NewSpec builds a Spec whose type is taken from p.
func NewSpec(site, urlTemplate string, p Params, evidence map[string]any) Spec {
	return Spec{Site: site, URLTemplate: urlTemplate, Type: p.Type(), Params: p, Evidence: evidence}
}

// Applicable reports whether the URL template can take an identity.
func (s Spec) Applicable() bool {
	return retrieve.HasPlaceholder(s.URLTemplate)
}

type specJSON struct {
	Site        string          `json:"site"`
	URLTemplate string          `json:"url_template"`
	Type        Type            `json:"type"`
	Params      json.RawMessage `json:"params"`
	Evidence    map[string]any  `json:"evidence,omitempty"`
}

// MarshalJSON writes params under "params".
func (s Spec) MarshalJSON() ([]byte, error) {
	raw, err := EncodeParams(s.Type, s.Params)
	if err != nil {
		return nil, err
	}
	return json.Marshal(specJSON{
		Site:        s.Site,
		URLTemplate: s.URLTemplate,
		Type:        s.Type,
		Params:      raw,
		Evidence:    s.Evidence,
	})
}

// UnmarshalJSON decodes params into the record of the declared type.
func (s *Spec) UnmarshalJSON(data []byte) error {
	var j specJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	p, err := DecodeParams(j.Type, j.Params)
	if err != nil {
		return err
	}
	*s = Spec{
		Site:        j.Site,
		URLTemplate: j.URLTemplate,
		Type:        j.Type,
		Params:      p,
		Evidence:    j.Evidence,
	}
	return nil
}

// Signature computes the signature of s under spec. ok is false only when
// extraction itself faulted; a sample with an empty body still has one.
func Signature(spec Spec, s retrieve.Sample) (sig string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			sig, ok = "", false
		}
	}()
	if spec.Params == nil || spec.Params.Type() != spec.Type {
		return "", false
	}
	if s.Plain == nil {
		s.Plain = &retrieve.Response{Status: retrieve.StatusTransportError}
	}
	return spec.Params.Signature(s), true
}

// flag renders a boolean the way stored signatures spell it.
func flag(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func lowerAll(keys []string) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = strings.ToLower(k)
	}
	return out
}

func firstN(keys []string, n int) []string {
	if len(keys) > n {
		return keys[:n]
	}
	return keys
}

func containsAll(text string, needles []string) bool {
	for _, n := range needles {
		if !strings.Contains(text, n) {
			return false
		}
	}
	return true
}

func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}

// EncodeParams marshals p, substituting the zero record of t when p is nil.
func EncodeParams(t Type, p Params) (json.RawMessage, error) {
	if p == nil {
		var err error
		if p, err = NewParams(t); err != nil {
			return nil, err
		}
	}
	return json.Marshal(p)
}
