package catalog

import (
	"cmp"
	"regexp"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/hazyhaar/argos/method"
	"github.com/hazyhaar/argos/retrieve"
)

const (
	minWordLen      = 4
	wordsPerPage    = 80
	stableWords     = 30
	htmlKeysMax     = 25
	statusTextMax   = 10
	jsonKeysMax     = 20
	userKeywordsMax = 20
)

var wordRe = regexp.MustCompile(`[\p{L}\p{N}_]{4,}`)

// boilerplate words every page of a site tends to share.
var boilerplate = map[string]bool{
	"home": true, "login": true, "about": true, "contact": true, "cookies": true,
	"terms": true, "policy": true, "help": true, "explore": true, "search": true,
}

// DefaultSelectors are the selectors proposed for custom_selector_check.
var DefaultSelectors = []string{"title", "h1", `[role="main"]`}

// Derive proposes the methods worth discriminating for site, given samples
// of known real and fake identities and optional operator keywords. The
// three URL-level methods are always proposed; the rest only when the
// samples support them.
func Derive(site, urlTemplate string, real, fake []retrieve.Sample, keywords []string) []method.Spec {
	specs := []method.Spec{
		method.NewSpec(site, urlTemplate, &method.StatusCodeParams{},
			map[string]any{"note": "status can differ with account state"}),
		method.NewSpec(site, urlTemplate, &method.URLCheckParams{},
			map[string]any{"note": "compares the stabilised final URL"}),
		method.NewSpec(site, urlTemplate, &method.RedirectCheckParams{},
			map[string]any{"note": "detects a differing redirect target"}),
	}

	realStable := stableWordSet(real)
	fakeStable := stableWordSet(fake)
	var keys []string
	for w := range realStable {
		if !fakeStable[w] {
			keys = append(keys, w)
		}
	}
	slices.Sort(keys)
	if len(keys) > 0 {
		html := firstN(keys, htmlKeysMax)
		specs = append(specs, method.NewSpec(site, urlTemplate,
			&method.HTMLContainsParams{Keys: html},
			map[string]any{"keys": html}))
		if code, ok := commonStatus(real); ok {
			specs = append(specs, method.NewSpec(site, urlTemplate,
				&method.StatusTextParams{Code: code, MustContain: firstN(keys, statusTextMax)},
				map[string]any{"code": code}))
		}
	}

	if jk := commonJSONKeys(real); len(jk) > 0 {
		jk = firstN(jk, jsonKeysMax)
		specs = append(specs, method.NewSpec(site, urlTemplate,
			&method.JSONKeysParams{Keys: jk},
			map[string]any{"keys": jk}))
	}

	all := slices.Concat(real, fake)
	if slices.ContainsFunc(all, func(s retrieve.Sample) bool { return method.DetectCaptcha(s.EffectiveText()) }) {
		specs = append(specs, method.NewSpec(site, urlTemplate,
			&method.CaptchaParams{Markers: slices.Clone(method.CaptchaMarkers)},
			map[string]any{"note": "captcha markers seen while sampling"}))
	}

	if kw := userKeywords(keywords, fake); len(kw) > 0 {
		specs = append(specs, method.NewSpec(site, urlTemplate,
			&method.KeywordsParams{Keys: kw},
			map[string]any{"keys": kw}))
	}

	if slices.ContainsFunc(all, retrieve.Sample.HasRendered) {
		specs = append(specs, method.NewSpec(site, urlTemplate,
			&method.SelectorParams{Selectors: slices.Clone(DefaultSelectors)},
			map[string]any{"note": "requires a rendered DOM"}))
	}
	return specs
}

// PageWords returns the most frequent words of a page, most frequent first,
// ties broken alphabetically. Markup, scripts and styles are ignored.
func PageWords(body string) []string {
	text := body
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(body)); err == nil {
		doc.Find("script, style, noscript").Remove()
		text = doc.Text()
	}
	freq := make(map[string]int)
	for _, w := range wordRe.FindAllString(text, -1) {
		freq[strings.ToLower(w)]++
	}
	words := make([]string, 0, len(freq))
	for w := range freq {
		if len([]rune(w)) >= minWordLen {
			words = append(words, w)
		}
	}
	slices.SortFunc(words, func(a, b string) int {
		if c := cmp.Compare(freq[b], freq[a]); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	return firstN(words, wordsPerPage)
}

// StableWords are the frequent words shared by every page, minus
// boilerplate, sorted and capped.
func StableWords(bodies []string) []string {
	if len(bodies) == 0 {
		return nil
	}
	inter := make(map[string]bool)
	for _, w := range PageWords(bodies[0]) {
		inter[w] = true
	}
	for _, b := range bodies[1:] {
		page := make(map[string]bool)
		for _, w := range PageWords(b) {
			page[w] = true
		}
		for w := range inter {
			if !page[w] {
				delete(inter, w)
			}
		}
	}
	var out []string
	for w := range inter {
		if !boilerplate[w] {
			out = append(out, w)
		}
	}
	slices.Sort(out)
	return firstN(out, stableWords)
}

func stableWordSet(samples []retrieve.Sample) map[string]bool {
	bodies := make([]string, len(samples))
	for i, s := range samples {
		bodies[i] = s.EffectiveText()
	}
	set := make(map[string]bool)
	for _, w := range StableWords(bodies) {
		set[w] = true
	}
	return set
}

// commonStatus is the most frequent plain status among samples; ties go to
// the lowest code.
func commonStatus(samples []retrieve.Sample) (int, bool) {
	counts := make(map[int]int)
	for _, s := range samples {
		if s.Plain != nil {
			counts[s.Plain.Status]++
		}
	}
	best, bestN := 0, 0
	for code, n := range counts {
		if n > bestN || (n == bestN && code < best) {
			best, bestN = code, n
		}
	}
	return best, bestN > 0 && best >= 100 && best <= 599
}

// commonJSONKeys are the top-level keys present in every real sample whose
// plain body decoded to a JSON object.
func commonJSONKeys(samples []retrieve.Sample) []string {
	var inter map[string]bool
	for _, s := range samples {
		obj, ok := s.Plain.JSONObject()
		if !ok {
			continue
		}
		if inter == nil {
			inter = make(map[string]bool, len(obj))
			for k := range obj {
				inter[k] = true
			}
			continue
		}
		for k := range inter {
			if _, ok := obj[k]; !ok {
				delete(inter, k)
			}
		}
	}
	out := make([]string, 0, len(inter))
	for k := range inter {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// userKeywords keeps the operator keywords that appear on no fake page.
func userKeywords(keywords []string, fake []retrieve.Sample) []string {
	var b strings.Builder
	for _, s := range fake {
		b.WriteString(strings.ToLower(s.EffectiveText()))
		b.WriteByte(' ')
	}
	fakeText := b.String()
	var out []string
	for _, k := range keywords {
		k = strings.TrimSpace(k)
		if k == "" || strings.Contains(fakeText, strings.ToLower(k)) {
			continue
		}
		out = append(out, k)
	}
	return firstN(out, userKeywordsMax)
}

func firstN(s []string, n int) []string {
	if len(s) > n {
		s = s[:n]
	}
	return slices.Clone(s)
}
