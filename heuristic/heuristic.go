// Package heuristic classifies a captured profile page when no learned
// method reached a verdict. It only ever upgrades to EXISTS; everything it
// cannot recognise stays INDETERMINATE.
package heuristic

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/argos/verdict"
)

// profileCounters are the words a profile page shows next to its counters.
var profileCounters = []string{
	"followers", "seguidores", "following", "siguiendo",
	"posts", "publicaciones", "likes", "me gusta",
}

// Page is the page the classifier looks at.
type Page struct {
	FinalURL string
	HTML     string
}

// Classify applies the site-specific rules for TikTok and Pinterest, then the
// generic profile rule. Matching is case-insensitive.
func Classify(identity string, p Page) verdict.Verdict {
	if strings.TrimSpace(p.HTML) == "" || identity == "" {
		return verdict.Indeterminate
	}
	u := strings.ToLower(identity)
	raw := strings.ToLower(p.HTML)
	title, text := VisibleText(p.HTML)
	title, text = strings.ToLower(title), strings.ToLower(text)
	host := hostOf(p.FinalURL)

	if strings.Contains(host, "tiktok.com") {
		if strings.Contains(text, "@"+u) ||
			strings.Contains(raw, `uniqueid":"`) ||
			(strings.Contains(raw, "og:url") && strings.Contains(raw, "@"+u)) {
			return verdict.Exists
		}
	}

	if strings.Contains(host, "pinterest.com") {
		profile := strings.Contains(raw, `property="og:type" content="profile"`) || strings.Contains(text, "profile")
		if profile && (strings.Contains(strings.ToLower(p.FinalURL), u) || strings.Contains(text, u)) {
			return verdict.Exists
		}
	}

	if strings.Contains(title, u) || strings.Contains(text, u) {
		for _, k := range profileCounters {
			if strings.Contains(text, k) {
				return verdict.Exists
			}
		}
	}
	return verdict.Indeterminate
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// VisibleText returns the document title and the whitespace-collapsed text
// of every node outside script, style and noscript. The title is part of
// the text as well.
func VisibleText(doc string) (title, text string) {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return "", strings.Join(strings.Fields(doc), " ")
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript:
				return
			case atom.Title:
				if title == "" && n.FirstChild != nil {
					title = strings.Join(strings.Fields(n.FirstChild.Data), " ")
				}
			}
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return title, strings.Join(strings.Fields(sb.String()), " ")
}
