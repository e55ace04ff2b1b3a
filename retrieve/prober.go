package retrieve

import (
	"context"
	"log/slog"
)

// Prober turns (template, identity) pairs into Samples.
type Prober struct {
	fetch  *Fetcher
	render Renderer
	logger *slog.Logger
}

// NewProber creates a Prober. render may be nil: samples are then plain-only.
func NewProber(fetch *Fetcher, render Renderer, logger *slog.Logger) *Prober {
	if fetch == nil {
		fetch = NewFetcher()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Prober{fetch: fetch, render: render, logger: logger}
}

// Rendering reports whether samples carry a rendered attempt.
func (p *Prober) Rendering() bool {
	return p.render != nil
}

// Probe retrieves one Sample. The only error is ErrNoPlaceholder; channel
// failures degrade the sample instead.
func (p *Prober) Probe(ctx context.Context, template, identity string) (Sample, error) {
	pageURL, err := Substitute(template, identity)
	if err != nil {
		return Sample{}, err
	}

	s := Sample{Identity: identity}
	if p.render != nil {
		r, err := p.render.Render(ctx, pageURL)
		if err != nil {
			p.logger.Warn("retrieve: rendered channel failed, using plain only",
				"url", pageURL, "error", err)
		} else {
			s.Rendered = r
		}
	}
	s.Plain = p.fetch.Fetch(ctx, pageURL)
	return s, nil
}
