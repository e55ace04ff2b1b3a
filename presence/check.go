package presence

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/hazyhaar/argos/catalog"
	"github.com/hazyhaar/argos/heuristic"
	"github.com/hazyhaar/argos/idgen"
	"github.com/hazyhaar/argos/metadata"
	"github.com/hazyhaar/argos/method"
	"github.com/hazyhaar/argos/retrieve"
	"github.com/hazyhaar/argos/verdict"
)

// inapplicableOutcome is reported for a method whose template has no
// identity placeholder.
const inapplicableOutcome = "[url template without {user}/{usuario}]"

// Checker verifies one identity against the catalog.
type Checker struct {
	store     catalog.Store
	prober    *retrieve.Prober
	pace      *rate.Limiter
	workers   int
	cacheSize int
	ids       idgen.Generator
	now       func() time.Time
	logger    *slog.Logger
}

// NewChecker creates a Checker.
func NewChecker(cfg Config) *Checker {
	cfg.defaults()
	return newChecker(cfg, newPacer(cfg.Pacing))
}

func newChecker(cfg Config, pace *rate.Limiter) *Checker {
	return &Checker{
		store:     cfg.Store,
		prober:    cfg.Prober,
		pace:      pace,
		workers:   cfg.Workers,
		cacheSize: cfg.CacheSize,
		ids:       cfg.IDs,
		now:       cfg.Now,
		logger:    cfg.Logger,
	}
}

// Check loads the catalog and evaluates identity on every site in it.
func (c *Checker) Check(ctx context.Context, identity string) (*Report, error) {
	entries, err := c.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("presence: check: %w", err)
	}
	return c.CheckEntries(ctx, identity, entries)
}

// CheckEntries evaluates identity against the given entries, grouped by
// site. Sites may run concurrently up to the worker limit; each site
// observes all of its method verdicts before aggregating, and the report
// keeps catalog order.
func (c *Checker) CheckEntries(ctx context.Context, identity string, entries []catalog.Entry) (*Report, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil, ErrEmptyIdentity
	}
	rep := &Report{
		RunID:     c.ids(),
		Identity:  identity,
		StartedAt: c.now(),
		Rendering: c.prober.Rendering(),
	}
	logger := c.logger.With("run_id", rep.RunID)

	groups := catalog.GroupBySite(entries)
	rep.Sites = make([]SiteReport, len(groups))
	smp := newSampler(c.prober, c.pace, c.cacheSize)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, grp := range groups {
		g.Go(func() error {
			sr, err := c.checkSite(gctx, smp, identity, grp, logger)
			if err != nil {
				return err
			}
			rep.Sites[i] = sr
			logger.Info("presence: site decided",
				"site", sr.Site, "verdict", sr.Verdict, "heuristic", sr.ViaHeuristic)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("presence: check %s: %w", identity, err)
	}
	rep.Took = c.now().Sub(rep.StartedAt)
	rep.Probes = int(smp.probes.Load())
	logger.Info("presence: check done",
		"identity", identity, "sites", len(rep.Sites), "found", len(rep.Found()), "probes", rep.Probes)
	return rep, nil
}

func (c *Checker) checkSite(ctx context.Context, smp *sampler, identity string, grp catalog.SiteGroup, logger *slog.Logger) (SiteReport, error) {
	sr := SiteReport{Site: grp.Site, Methods: make([]verdict.MethodResult, 0, len(grp.Entries))}
	var best capture
	for _, e := range grp.Entries {
		res := verdict.MethodResult{EntryID: e.ID, Type: string(e.Spec.Type), Verdict: verdict.Indeterminate}
		if !e.Spec.Applicable() {
			logger.Warn("presence: method not applicable",
				"site", grp.Site, "id", e.ID, "template", e.Spec.URLTemplate)
			res.Inapplicable = true
			res.Outcome = inapplicableOutcome
			sr.Methods = append(sr.Methods, res)
			continue
		}
		s, err := smp.sample(ctx, e.Spec.URLTemplate, identity)
		if err != nil {
			return sr, err
		}
		sig, ok := method.Signature(e.Spec, s)
		if !ok {
			logger.Warn("presence: signature extraction failed", "site", grp.Site, "id", e.ID, "type", e.Spec.Type)
		}
		res.Verdict = verdict.DecideMethod(e, sig, ok)
		res.Outcome = sig
		res.FinalURL = s.FinalURL()
		res.Channel = string(s.Channel())
		sr.Methods = append(sr.Methods, res)
		best.consider(s)
	}

	sr.Verdict = verdict.DecideSite(sr.Methods)
	if sr.Verdict == verdict.Indeterminate && best.text != "" {
		if heuristic.Classify(identity, heuristic.Page{FinalURL: best.finalURL, HTML: best.text}) == verdict.Exists {
			sr.Verdict = verdict.Exists
			sr.ViaHeuristic = true
		}
	}
	if sr.Verdict == verdict.Exists && best.text != "" {
		info := metadata.Extract(best.text, best.finalURL)
		sr.Metadata = &info
	}
	return sr, nil
}

// capture tracks the best page seen for a site: any rendered capture beats
// a plain one, then the longer text wins.
type capture struct {
	text     string
	finalURL string
	rendered bool
}

func (b *capture) consider(s retrieve.Sample) {
	text := s.EffectiveText()
	if text == "" || s.Plain.Failed() && !s.HasRendered() {
		return
	}
	switch {
	case s.HasRendered() && !b.rendered,
		s.HasRendered() == b.rendered && len(text) > len(b.text):
		b.text, b.finalURL, b.rendered = text, s.FinalURL(), s.HasRendered()
	}
}
