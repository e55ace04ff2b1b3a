// Package browser owns the Chrome process behind the rendered channel:
// launch or connect via Rod, relaunch after a crash, and render single pages
// in throwaway incognito contexts.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

// Mode controls how Chrome is started.
type Mode int

const (
	ModeHeadless Mode = iota // Rod headless + stealth
	ModeHeadful              // real window on $DISPLAY or Xvfb
)

// ErrClosed is returned by a Manager after Close.
var ErrClosed = errors.New("browser: manager is closed")

// Config configures the browser manager.
type Config struct {
	// RemoteURL is the DevTools WebSocket URL of an external Chrome.
	// Empty = launch a local Chrome via launcher.
	RemoteURL string

	// Bin forces a browser binary. Empty = launcher lookup.
	Bin string

	Mode Mode

	// XvfbDisplay is started when Mode is headful and $DISPLAY is unset.
	// Empty disables Xvfb. Default: "".
	XvfbDisplay string

	Timing Timing

	Logger *slog.Logger
}

func (c *Config) defaults() {
	c.Timing.defaults()
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Manager manages the Chrome lifecycle. Safe for concurrent use.
type Manager struct {
	cfg     Config
	mu      sync.RWMutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	xvfb    *exec.Cmd
	startAt time.Time
	closed  bool
}

// NewManager creates a Manager. Chrome is started lazily on first use.
func NewManager(cfg Config) *Manager {
	cfg.defaults()
	return &Manager{cfg: cfg}
}

// Available reports whether a browser can be driven in this environment:
// a remote endpoint is configured, or a local binary exists and (for
// headful mode) a display surface is reachable.
func Available(cfg Config) bool {
	if cfg.RemoteURL != "" {
		return true
	}
	if cfg.Bin == "" {
		if _, ok := launcher.LookPath(); !ok {
			return false
		}
	}
	if cfg.Mode == ModeHeadful && os.Getenv("DISPLAY") == "" && cfg.XvfbDisplay == "" {
		return false
	}
	return true
}

// Browser returns the running browser, launching it if needed.
func (m *Manager) Browser(ctx context.Context) (*rod.Browser, error) {
	m.mu.RLock()
	b, closed := m.browser, m.closed
	m.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}
	if b != nil {
		return b, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	if m.browser != nil {
		return m.browser, nil
	}
	b, err := m.launch(ctx)
	if err != nil {
		return nil, err
	}
	m.browser = b
	m.startAt = time.Now()
	return b, nil
}

// Recycle kills Chrome so the next Browser call relaunches it.
func (m *Manager) Recycle() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.browser == nil {
		return
	}
	m.cfg.Logger.Info("browser: recycling", "uptime", time.Since(m.startAt))
	m.cleanup()
}

// Close shuts down Chrome and Xvfb.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.cleanup()
	m.stopXvfb()
	return nil
}

func (m *Manager) launch(ctx context.Context) (*rod.Browser, error) {
	log := m.cfg.Logger

	var wsURL string
	if m.cfg.RemoteURL != "" {
		wsURL = m.cfg.RemoteURL
		log.Info("browser: connecting to remote", "url", wsURL)
	} else {
		l := launcher.New().Context(ctx)
		if m.cfg.Bin != "" {
			l = l.Bin(m.cfg.Bin)
		}

		if m.cfg.Mode == ModeHeadful {
			display := os.Getenv("DISPLAY")
			if display == "" && m.cfg.XvfbDisplay != "" {
				if err := m.startXvfb(ctx); err != nil {
					return nil, fmt.Errorf("browser: xvfb: %w", err)
				}
				display = m.cfg.XvfbDisplay
			}
			l = l.Headless(false).Env("DISPLAY=" + display)
		} else {
			l = l.Headless(true)
		}

		l = l.Set("disable-blink-features", "AutomationControlled")

		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		m.lnch = l
		log.Info("browser: launched local chrome", "url", wsURL, "mode", m.cfg.Mode)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	if err := b.IgnoreCertErrors(true); err != nil {
		log.Warn("browser: ignore cert errors failed", "error", err)
	}
	return b, nil
}

func (m *Manager) cleanup() {
	if m.browser != nil {
		m.browser.Close()
		m.browser = nil
	}
	if m.lnch != nil {
		m.lnch.Cleanup()
		m.lnch = nil
	}
}
