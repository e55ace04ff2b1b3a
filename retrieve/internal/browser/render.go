package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Timing bounds each phase of a render.
type Timing struct {
	PageLoad    time.Duration // navigation timeout. Default: 45s.
	DOMReady    time.Duration // wait for readyState "complete". Default: 20s.
	PollEvery   time.Duration // URL poll interval. Default: 150ms.
	StableFor   time.Duration // URL must stay unchanged this long. Default: 900ms.
	StabilizeBy time.Duration // overall stabilisation deadline. Default: 12s.
	Settle      time.Duration // extra wait for deferred rendering. Default: 700ms.
}

func (t *Timing) defaults() {
	if t.PageLoad <= 0 {
		t.PageLoad = 45 * time.Second
	}
	if t.DOMReady <= 0 {
		t.DOMReady = 20 * time.Second
	}
	if t.PollEvery <= 0 {
		t.PollEvery = 150 * time.Millisecond
	}
	if t.StableFor <= 0 {
		t.StableFor = 900 * time.Millisecond
	}
	if t.StabilizeBy <= 0 {
		t.StabilizeBy = 12 * time.Second
	}
	if t.Settle <= 0 {
		t.Settle = 700 * time.Millisecond
	}
}

// Page is what a render captured.
type Page struct {
	FinalURL string
	HTML     string
	Took     time.Duration
}

// Render loads pageURL in a fresh incognito context, waits for the document,
// stabilises the URL and captures the DOM. The context is always closed.
func (m *Manager) Render(ctx context.Context, pageURL string) (*Page, error) {
	b, err := m.Browser(ctx)
	if err != nil {
		return nil, err
	}

	session, err := b.Incognito()
	if err != nil {
		// A dead Chrome fails here first; relaunch on the next call.
		m.Recycle()
		return nil, fmt.Errorf("browser: incognito: %w", err)
	}
	defer session.Close()

	return m.renderIn(ctx, session, pageURL)
}

func (m *Manager) renderIn(ctx context.Context, session *rod.Browser, pageURL string) (*Page, error) {
	t := m.cfg.Timing
	log := m.cfg.Logger
	start := time.Now()

	var page *rod.Page
	var err error
	if m.cfg.Mode == ModeHeadless {
		page, err = stealth.Page(session)
	} else {
		page, err = session.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, fmt.Errorf("browser: create page: %w", err)
	}
	defer page.Close()

	navCtx, cancel := context.WithTimeout(ctx, t.PageLoad)
	defer cancel()
	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}

	if err := waitReady(ctx, page, t.DOMReady, t.PollEvery); err != nil {
		log.Warn("browser: document not complete in time, capturing current state",
			"url", pageURL, "error", err)
	}

	final := StabilizeURL(ctx, func() (string, error) {
		info, err := page.Info()
		if err != nil {
			return "", err
		}
		return info.URL, nil
	}, t.PollEvery, t.StableFor, t.StabilizeBy)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(t.Settle):
	}

	html, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("browser: capture html: %w", err)
	}
	if final == "" {
		final = pageURL
	}

	return &Page{FinalURL: final, HTML: html, Took: time.Since(start)}, nil
}

func waitReady(ctx context.Context, page *rod.Page, max, every time.Duration) error {
	deadline := time.Now().Add(max)
	for {
		res, err := page.Context(ctx).Eval(`() => document.readyState`)
		if err == nil && res.Value.Str() == "complete" {
			return nil
		}
		if time.Now().After(deadline) {
			if err != nil {
				return err
			}
			return fmt.Errorf("readyState %q after %s", res.Value.Str(), max)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(every):
		}
	}
}

// StabilizeURL polls current every interval until the URL has not changed
// for window, or until max has elapsed since the first read, and returns the
// last URL seen. Read errors keep the previous URL.
func StabilizeURL(ctx context.Context, current func() (string, error), interval, window, max time.Duration) string {
	start := time.Now()
	last, _ := current()
	stableSince := start

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return last
		case <-ticker.C:
		}

		now := time.Now()
		if cur, err := current(); err == nil && cur != last {
			last = cur
			stableSince = now
		}
		if now.Sub(stableSince) >= window || now.Sub(start) >= max {
			return last
		}
	}
}
