// Package metadata pulls the publicly visible profile facts out of a page
// once a site has been judged to hold the identity.
package metadata

import (
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

// Info is what could be read off a profile page. Missing fields are empty.
type Info struct {
	FinalURL      string `json:"final_url,omitempty"`
	Canonical     string `json:"canonical,omitempty"`
	Title         string `json:"title,omitempty"`
	Description   string `json:"description,omitempty"`
	OGTitle       string `json:"og_title,omitempty"`
	OGDescription string `json:"og_description,omitempty"`
	OGImage       string `json:"og_image,omitempty"`
	Handle        string `json:"handle,omitempty"`
	Followers     string `json:"followers,omitempty"`
	Following     string `json:"following,omitempty"`
	Posts         string `json:"posts,omitempty"`
	Likes         string `json:"likes,omitempty"`
}

// Field is one labelled value of Info.
type Field struct {
	Name  string
	Value string
}

// Fields lists the non-empty fields in display order.
func (i Info) Fields() []Field {
	all := []Field{
		{"final_url", i.FinalURL},
		{"canonical", i.Canonical},
		{"title", i.Title},
		{"description", i.Description},
		{"og:title", i.OGTitle},
		{"og:description", i.OGDescription},
		{"og:image", i.OGImage},
		{"handle", i.Handle},
		{"followers", i.Followers},
		{"following", i.Following},
		{"posts", i.Posts},
		{"likes", i.Likes},
	}
	out := all[:0]
	for _, f := range all {
		if f.Value != "" {
			out = append(out, f)
		}
	}
	return out
}

const count = `(\d[\d.,]*\s*(?:millones|mil|k|m)?)\s*`

var (
	followersRe = regexp.MustCompile(`(?i)` + count + `(?:seguidores|followers)`)
	followingRe = regexp.MustCompile(`(?i)` + count + `(?:siguiendo|following)`)
	postsRe     = regexp.MustCompile(`(?i)` + count + `(?:publicaciones|posts|pins)`)
	likesRe     = regexp.MustCompile(`(?i)` + count + `(?:me gusta|likes)`)
	handleRe    = regexp.MustCompile(`@([A-Za-z0-9_.-]{3,})`)
)

var strict = bluemonday.StrictPolicy()

// Extract reads Info from page, whose final location was finalURL.
func Extract(page, finalURL string) Info {
	info := Info{FinalURL: finalURL}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return info
	}

	info.Title = clean(doc.Find("title").First().Text())
	info.Canonical = attr(doc, `link[rel="canonical"]`, "href")
	info.Description = attr(doc, `meta[name="description"]`, "content")
	info.OGTitle = attr(doc, `meta[property="og:title"]`, "content")
	info.OGDescription = attr(doc, `meta[property="og:description"]`, "content")
	info.OGImage = attr(doc, `meta[property="og:image"]`, "content")

	doc.Find("script, style, noscript").Remove()
	text := strings.Join(strings.Fields(doc.Text()), " ")
	info.Followers = firstGroup(followersRe, text)
	info.Following = firstGroup(followingRe, text)
	info.Posts = firstGroup(postsRe, text)
	info.Likes = firstGroup(likesRe, text)
	info.Handle = firstGroup(handleRe, text)
	return info
}

func attr(doc *goquery.Document, selector, name string) string {
	v, _ := doc.Find(selector).First().Attr(name)
	return clean(v)
}

// clean strips any markup smuggled into a value, decodes entities and
// collapses whitespace.
func clean(s string) string {
	s = html.UnescapeString(strict.Sanitize(s))
	return strings.Join(strings.Fields(s), " ")
}

func firstGroup(re *regexp.Regexp, text string) string {
	m := re.FindStringSubmatch(text)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}
