package presence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"github.com/hazyhaar/argos/catalog"
	"github.com/hazyhaar/argos/retrieve"
	"github.com/hazyhaar/argos/safe"
)

// LearnRequest describes one learning session for a site.
type LearnRequest struct {
	Site        string   `json:"site"`
	URLTemplate string   `json:"url_template"`
	Real        []string `json:"real"`
	Fake        []string `json:"fake"`
	Keywords    []string `json:"keywords,omitempty"`
}

// Session is the outcome of Learn: candidate entries awaiting review.
// Candidates carry no IDs until committed.
type Session struct {
	Site        string          `json:"site"`
	URLTemplate string          `json:"url_template"`
	RealSampled int             `json:"real_sampled"`
	FakeSampled int             `json:"fake_sampled"`
	Rendering   bool            `json:"rendering"`
	Candidates  []catalog.Entry `json:"candidates"`
}

// Good returns the discriminating candidates.
func (s *Session) Good() []catalog.Entry {
	var out []catalog.Entry
	for _, e := range s.Candidates {
		if e.Status == catalog.Good {
			out = append(out, e)
		}
	}
	return out
}

// Learner derives and discriminates methods for a site.
type Learner struct {
	store     catalog.Store
	prober    *retrieve.Prober
	pace      *rate.Limiter
	cacheSize int
	logger    *slog.Logger
}

// NewLearner creates a Learner.
func NewLearner(cfg Config) *Learner {
	cfg.defaults()
	return newLearner(cfg, newPacer(cfg.Pacing))
}

func newLearner(cfg Config, pace *rate.Limiter) *Learner {
	return &Learner{
		store:     cfg.Store,
		prober:    cfg.Prober,
		pace:      pace,
		cacheSize: cfg.CacheSize,
		logger:    cfg.Logger,
	}
}

// Learn probes every real identity, then every fake one, proposes the
// methods the samples support and discriminates each of them. Nothing is
// stored: pass the reviewed candidates to Commit.
func (l *Learner) Learn(ctx context.Context, req LearnRequest) (*Session, error) {
	site := strings.TrimSpace(req.Site)
	if site == "" {
		return nil, errors.New("presence: learn: site name is empty")
	}
	if !retrieve.HasPlaceholder(req.URLTemplate) {
		return nil, fmt.Errorf("presence: learn %s: %w", site, retrieve.ErrNoPlaceholder)
	}
	if err := safe.ValidateTemplate(req.URLTemplate); err != nil {
		return nil, fmt.Errorf("presence: learn %s: %w", site, err)
	}
	realIDs, fakeIDs := identities(req.Real), identities(req.Fake)
	if len(realIDs) == 0 {
		return nil, ErrNoRealSamples
	}

	smp := newSampler(l.prober, l.pace, l.cacheSize)
	probeAll := func(ids []string, kind string) ([]retrieve.Sample, error) {
		out := make([]retrieve.Sample, 0, len(ids))
		for _, id := range ids {
			s, err := smp.sample(ctx, req.URLTemplate, id)
			if err != nil {
				return nil, fmt.Errorf("presence: learn %s: %w", site, err)
			}
			l.logger.Info("presence: sampled",
				"site", site, "kind", kind, "identity", id,
				"status", s.Plain.Status, "final_url", s.FinalURL(), "channel", s.Channel())
			out = append(out, s)
		}
		return out, nil
	}
	real, err := probeAll(realIDs, "real")
	if err != nil {
		return nil, err
	}
	fake, err := probeAll(fakeIDs, "fake")
	if err != nil {
		return nil, err
	}

	specs := catalog.Derive(site, req.URLTemplate, real, fake, req.Keywords)
	sess := &Session{
		Site:        site,
		URLTemplate: req.URLTemplate,
		RealSampled: len(real),
		FakeSampled: len(fake),
		Rendering:   l.prober.Rendering(),
		Candidates:  make([]catalog.Entry, 0, len(specs)),
	}
	for _, spec := range specs {
		sess.Candidates = append(sess.Candidates, catalog.Discriminate(spec, real, fake))
	}
	l.logger.Info("presence: learned",
		"site", site, "candidates", len(sess.Candidates), "good", len(sess.Good()))
	return sess, nil
}

// Commit appends the selected candidates to the catalog and returns them
// with their IDs.
func (l *Learner) Commit(ctx context.Context, selected []catalog.Entry) ([]catalog.Entry, error) {
	if len(selected) == 0 {
		return nil, nil
	}
	added, err := l.store.Append(ctx, selected)
	if err != nil {
		return nil, fmt.Errorf("presence: commit: %w", err)
	}
	l.logger.Info("presence: committed", "count", len(added),
		"first_id", added[0].ID, "last_id", added[len(added)-1].ID)
	return added, nil
}

// identities trims, drops blanks and de-duplicates, keeping order.
func identities(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, id := range in {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// ParseSelection picks reviewed candidates. Accepted forms: "all", "none"
// or empty, "good" (every GOOD candidate), and comma-separated 1-based
// numbers and ranges such as "1,3,5-7". Numbers outside the list are
// ignored; malformed tokens are an error. Order follows the candidate list.
func ParseSelection(input string, candidates []catalog.Entry) ([]catalog.Entry, error) {
	sel := strings.ToLower(strings.TrimSpace(input))
	keep := make(map[int]bool)
	switch sel {
	case "", "none":
		return nil, nil
	case "all":
		return append([]catalog.Entry(nil), candidates...), nil
	case "good":
		for i, e := range candidates {
			if e.Status == catalog.Good {
				keep[i+1] = true
			}
		}
	default:
		for _, part := range strings.Split(sel, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			lo, hi, err := parseRange(part)
			if err != nil {
				return nil, fmt.Errorf("presence: selection %q: %w", part, err)
			}
			lo, hi = max(lo, 1), min(hi, len(candidates))
			for x := lo; x <= hi; x++ {
				keep[x] = true
			}
		}
	}
	var out []catalog.Entry
	for i, e := range candidates {
		if keep[i+1] {
			out = append(out, e)
		}
	}
	return out, nil
}

func parseRange(part string) (lo, hi int, err error) {
	a, b, isRange := strings.Cut(part, "-")
	if lo, err = strconv.Atoi(strings.TrimSpace(a)); err != nil {
		return 0, 0, err
	}
	if !isRange {
		return lo, lo, nil
	}
	if hi, err = strconv.Atoi(strings.TrimSpace(b)); err != nil {
		return 0, 0, err
	}
	return min(lo, hi), max(lo, hi), nil
}
