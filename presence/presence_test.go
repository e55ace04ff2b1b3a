package presence

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hazyhaar/argos/catalog"
	"github.com/hazyhaar/argos/idgen"
	"github.com/hazyhaar/argos/method"
	"github.com/hazyhaar/argos/retrieve"
)

const profileHTML = `<html><head><title>%[1]s (@%[1]s) on Social</title>
<meta property="og:title" content="%[1]s">
<link rel="canonical" href="https://social.example/%[1]s"></head>
<body><h1>@%[1]s</h1><ul><li>1,204 followers</li><li>87 following</li><li>12 posts</li></ul>
<footer>home about help</footer></body></html>`

const missingHTML = `<html><head><title>Page not found</title></head>
<body><p>Sorry, this page isn't available anymore.</p><footer>home about help</footer></body></html>`

// socialSite serves profiles for known users and 404 for everyone else,
// counting requests per path.
type socialSite struct {
	*httptest.Server
	users map[string]bool
	mu    sync.Mutex
	hits  map[string]int
}

func newSocialSite(t *testing.T, users ...string) *socialSite {
	t.Helper()
	s := &socialSite{users: map[string]bool{}, hits: map[string]int{}}
	for _, u := range users {
		s.users[u] = true
	}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[r.URL.Path]++
		s.mu.Unlock()
		name := strings.TrimPrefix(r.URL.Path, "/")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if s.users[name] {
			fmt.Fprintf(w, profileHTML, name)
			return
		}
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, missingHTML)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *socialSite) template() string { return s.URL + "/{user}" }

func (s *socialSite) hitsFor(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

func testConfig(t *testing.T, store catalog.Store) Config {
	t.Helper()
	return Config{
		Store:  store,
		Prober: retrieve.NewProber(retrieve.NewFetcher(retrieve.WithTimeout(5*time.Second)), nil, slog.Default()),
		Pacing: -1,
		IDs:    idgen.Prefixed(idgen.RunPrefix, idgen.Fixed("test")),
		Logger: slog.Default(),
	}
}

func fileStore(t *testing.T) catalog.Store {
	t.Helper()
	return catalog.OpenFile(filepath.Join(t.TempDir(), "sitios.json"))
}

// learnAndCommit learns site from the given identities and commits every
// GOOD candidate.
func learnAndCommit(t *testing.T, svc *Service, name string, site *socialSite, real, fake []string) []catalog.Entry {
	t.Helper()
	ctx := context.Background()
	sess, err := svc.Learner.Learn(ctx, LearnRequest{Site: name, URLTemplate: site.template(), Real: real, Fake: fake})
	if err != nil {
		t.Fatalf("Learn(%s): %v", name, err)
	}
	added, err := svc.Learner.Commit(ctx, sess.Good())
	if err != nil {
		t.Fatalf("Commit(%s): %v", name, err)
	}
	return added
}

func entry(site, template string, p method.Params, real, fake []string) catalog.Entry {
	return catalog.Entry{
		Spec:         method.NewSpec(site, template, p, nil),
		OutcomesReal: real,
		OutcomesFake: fake,
		Overlap:      []string{},
		Status:       catalog.Good,
	}
}
