package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/argos/audit"
	"github.com/hazyhaar/argos/catalog"
	"github.com/hazyhaar/argos/internal/config"
	"github.com/hazyhaar/argos/presence"
	"github.com/hazyhaar/argos/retrieve"
)

type globalFlags struct {
	config   string
	catalog  string
	logLevel string
	render   bool
}

type commandContext struct {
	flags *globalFlags

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{flags: flags}
}

func (c *commandContext) ensureConfig(cmd *cobra.Command) (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, err := config.Load(strings.TrimSpace(c.flags.config))
		if err != nil {
			c.configErr = err
			return
		}
		if v := strings.TrimSpace(c.flags.catalog); v != "" {
			cfg.Catalog = v
		}
		if cmd != nil && cmd.Flags().Changed("render") {
			cfg.Render.Enabled = c.flags.render
		}
		if err := cfg.Validate(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(c.flags.logLevel)}))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// session is what a command works with: the service over the catalog and
// the optional audit trail.
type session struct {
	svc   *presence.Service
	cfg   *config.Config
	audit *audit.SQLiteLogger // nil when disabled
	close func()
}

// record adds a CLI operation to the audit trail, if any.
func (s *session) record(action string, params, result any, err error, start time.Time) {
	if s.audit == nil {
		return
	}
	e := &audit.Entry{
		Action:     action,
		Transport:  "cli",
		Parameters: toJSON(params),
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		e.Error = err.Error()
	} else {
		e.Result = toJSON(result)
	}
	s.audit.LogAsync(e)
}

func toJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// openSession opens the catalog, the audit trail and the retrieval
// channels. session.close releases all three.
func (c *commandContext) openSession(cmd *cobra.Command) (*session, error) {
	cfg, err := c.ensureConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := c.logger()

	store, err := catalog.Open(cfg.Catalog)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	var trail *audit.SQLiteLogger
	if cfg.Audit != "" {
		if trail, err = audit.Open(cfg.Audit, audit.WithLogger(logger)); err != nil {
			store.Close()
			return nil, err
		}
	}

	prober, closeRender := newProber(cfg, logger)
	svc := presence.New(presence.Config{
		Store:     store,
		Prober:    prober,
		Workers:   cfg.Workers,
		Pacing:    cfg.Pacing,
		CacheSize: cfg.CacheSize,
		Logger:    logger,
		Audit:     trail,
	})
	s := &session{svc: svc, cfg: cfg, audit: trail}
	s.close = func() {
		errs := []error{closeRender(), store.Close()}
		if trail != nil {
			errs = append(errs, trail.Close())
		}
		if err := errors.Join(errs...); err != nil {
			logger.Warn("argos: close", "error", err)
		}
	}
	return s, nil
}

func newProber(cfg *config.Config, logger *slog.Logger) (*retrieve.Prober, func() error) {
	opts := []retrieve.Option{retrieve.WithTimeout(cfg.Fetch.Timeout), retrieve.WithLogger(logger)}
	if cfg.Fetch.UserAgent != "" {
		opts = append(opts, retrieve.WithUserAgent(cfg.Fetch.UserAgent))
	}
	fetch := retrieve.NewFetcher(opts...)
	noop := func() error { return nil }
	if !cfg.Render.Enabled {
		return retrieve.NewProber(fetch, nil, logger), noop
	}

	rc := retrieve.RenderConfig{
		RemoteURL:   cfg.Render.Remote,
		Bin:         cfg.Render.Bin,
		Headful:     cfg.Render.Mode == "headful",
		XvfbDisplay: cfg.Render.XvfbDisplay,
		PageLoad:    cfg.Render.PageLoad,
		DOMReady:    cfg.Render.DOMReady,
		PollEvery:   cfg.Render.PollEvery,
		StableFor:   cfg.Render.StableFor,
		StabilizeBy: cfg.Render.StabilizeBy,
		Settle:      cfg.Render.Settle,
		Logger:      logger,
	}
	if !retrieve.RenderAvailable(rc) {
		logger.Warn("argos: rendered channel unavailable, using plain HTTP only")
		return retrieve.NewProber(fetch, nil, logger), noop
	}
	r := retrieve.NewBrowserRenderer(rc)
	return retrieve.NewProber(fetch, r, logger), r.Close
}

// splitList splits comma or whitespace separated values, dropping blanks.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, f := range strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' }) {
			out = append(out, f)
		}
	}
	return out
}
