package retrieve

import (
	"context"
	"log/slog"
	"time"

	"github.com/hazyhaar/argos/retrieve/internal/browser"
)

// Renderer is the optional rendered channel.
type Renderer interface {
	Render(ctx context.Context, pageURL string) (*Response, error)
}

// RenderConfig configures the browser-backed renderer.
type RenderConfig struct {
	RemoteURL   string
	Bin         string
	Headful     bool
	XvfbDisplay string

	PageLoad    time.Duration
	DOMReady    time.Duration
	PollEvery   time.Duration
	StableFor   time.Duration
	StabilizeBy time.Duration
	Settle      time.Duration

	Logger *slog.Logger
}

func (c RenderConfig) browserConfig() browser.Config {
	mode := browser.ModeHeadless
	if c.Headful {
		mode = browser.ModeHeadful
	}
	return browser.Config{
		RemoteURL:   c.RemoteURL,
		Bin:         c.Bin,
		Mode:        mode,
		XvfbDisplay: c.XvfbDisplay,
		Timing: browser.Timing{
			PageLoad:    c.PageLoad,
			DOMReady:    c.DOMReady,
			PollEvery:   c.PollEvery,
			StableFor:   c.StableFor,
			StabilizeBy: c.StabilizeBy,
			Settle:      c.Settle,
		},
		Logger: c.Logger,
	}
}

// RenderAvailable reports whether this environment can run the rendered channel.
func RenderAvailable(cfg RenderConfig) bool {
	return browser.Available(cfg.browserConfig())
}

// BrowserRenderer renders pages in Chrome through Rod.
type BrowserRenderer struct {
	mgr *browser.Manager
}

// NewBrowserRenderer creates a renderer. Chrome starts on the first Render.
func NewBrowserRenderer(cfg RenderConfig) *BrowserRenderer {
	return &BrowserRenderer{mgr: browser.NewManager(cfg.browserConfig())}
}

// Render loads pageURL in a fresh browser session. The status of a rendered
// response is always 200: the browser does not expose it reliably.
func (r *BrowserRenderer) Render(ctx context.Context, pageURL string) (*Response, error) {
	p, err := r.mgr.Render(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	return &Response{
		URL:      pageURL,
		FinalURL: p.FinalURL,
		Status:   200,
		Headers:  map[string]string{"via": "chrome"},
		Body:     p.HTML,
		Channel:  ChannelRendered,
		Took:     p.Took,
	}, nil
}

// Close stops Chrome.
func (r *BrowserRenderer) Close() error {
	return r.mgr.Close()
}
