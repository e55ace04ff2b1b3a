package method

import (
	"fmt"
	"strings"

	"github.com/hazyhaar/argos/retrieve"
)

// CaptchaMarkers are the challenge-page markers captcha_detect looks for.
var CaptchaMarkers = []string{
	"captcha", "cf-challenge", "hcaptcha", "g-recaptcha", "cloudflare",
	"attention required!", "/cdn-cgi/challenge-platform", "are you a human",
	"just a moment...",
}

// DetectCaptcha reports whether text carries any captcha marker.
func DetectCaptcha(text string) bool {
	return containsAny(strings.ToLower(text), CaptchaMarkers)
}

// StatusCodeParams: signature is the plain status code.
type StatusCodeParams struct{}

func (*StatusCodeParams) Type() Type      { return StatusCode }
func (*StatusCodeParams) validate() error { return nil }

func (*StatusCodeParams) Signature(s retrieve.Sample) string {
	return fmt.Sprintf("status=%d", s.Plain.Status)
}

// URLCheckParams: signature is the final URL.
type URLCheckParams struct{}

func (*URLCheckParams) Type() Type      { return URLCheck }
func (*URLCheckParams) validate() error { return nil }

func (*URLCheckParams) Signature(s retrieve.Sample) string {
	return "final_url=" + s.FinalURL()
}

// RedirectCheckParams observes the same final URL as url_check; it exists
// as its own type so reviewers can keep one and drop the other.
type RedirectCheckParams struct{}

func (*RedirectCheckParams) Type() Type      { return RedirectCheck }
func (*RedirectCheckParams) validate() error { return nil }

func (*RedirectCheckParams) Signature(s retrieve.Sample) string {
	return "final_url=" + s.FinalURL()
}

// StatusTextParams: plain status equals Code and the effective text holds
// every one of the first five MustContain needles.
type StatusTextParams struct {
	Code        int      `json:"code"`
	MustContain []string `json:"must_contain"`
}

func (*StatusTextParams) Type() Type { return StatusText }

func (p *StatusTextParams) validate() error {
	if p.Code < 100 || p.Code > 599 {
		return fmt.Errorf("code %d out of range", p.Code)
	}
	return nil
}

func (p *StatusTextParams) Signature(s retrieve.Sample) string {
	text := strings.ToLower(s.EffectiveText())
	hit := s.Plain.Status == p.Code && containsAll(text, firstN(lowerAll(p.MustContain), maxNeedles))
	return "status_text_hit=" + flag(hit)
}

// HTMLContainsParams: the effective text holds every one of the first five
// keys. No keys never hits.
type HTMLContainsParams struct {
	Keys []string `json:"keys"`
}

func (*HTMLContainsParams) Type() Type      { return HTMLContains }
func (*HTMLContainsParams) validate() error { return nil }

func (p *HTMLContainsParams) Signature(s retrieve.Sample) string {
	keys := firstN(lowerAll(p.Keys), maxNeedles)
	hit := len(keys) > 0 && containsAll(strings.ToLower(s.EffectiveText()), keys)
	return "html_hit=" + flag(hit)
}

// JSONKeysParams: the plain response is a JSON object holding every one of
// the first five keys.
type JSONKeysParams struct {
	Keys []string `json:"keys"`
}

func (*JSONKeysParams) Type() Type      { return JSONKeys }
func (*JSONKeysParams) validate() error { return nil }

func (p *JSONKeysParams) Signature(s retrieve.Sample) string {
	obj, ok := s.Plain.JSONObject()
	if !ok {
		return "json_hit=False"
	}
	for _, k := range firstN(p.Keys, maxNeedles) {
		if _, present := obj[k]; !present {
			return "json_hit=False"
		}
	}
	return "json_hit=True"
}

// CaptchaParams: any CaptchaMarkers entry in the effective text. Markers
// records what was seen at learning time; detection always uses the fixed set.
type CaptchaParams struct {
	Markers []string `json:"markers,omitempty"`
}

func (*CaptchaParams) Type() Type      { return Captcha }
func (*CaptchaParams) validate() error { return nil }

func (*CaptchaParams) Signature(s retrieve.Sample) string {
	return "captcha=" + flag(DetectCaptcha(s.EffectiveText()))
}

// KeywordsParams: any keyword in the effective text.
type KeywordsParams struct {
	Keys []string `json:"keys"`
}

func (*KeywordsParams) Type() Type      { return Keywords }
func (*KeywordsParams) validate() error { return nil }

func (p *KeywordsParams) Signature(s retrieve.Sample) string {
	return "kw_hit=" + flag(containsAny(strings.ToLower(s.EffectiveText()), lowerAll(p.Keys)))
}

// SelectorParams: whether a rendered DOM was captured at all. Selectors are
// kept as review evidence.
type SelectorParams struct {
	Selectors []string `json:"css_selectors,omitempty"`
}

func (*SelectorParams) Type() Type      { return CustomSelector }
func (*SelectorParams) validate() error { return nil }

func (*SelectorParams) Signature(s retrieve.Sample) string {
	return "dom_loaded=" + flag(s.HasRendered())
}
