package presence

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hazyhaar/argos/audit"
	"github.com/hazyhaar/argos/catalog"
	"github.com/hazyhaar/argos/kit"
)

// Service bundles the workflows over one catalog for the CLI, HTTP and MCP
// surfaces. Learner and Checker share one pacing limiter.
type Service struct {
	Learner *Learner
	Checker *Checker
	store   catalog.Store
	audit   *audit.SQLiteLogger
	logger  *slog.Logger
}

// New creates a Service.
func New(cfg Config) *Service {
	cfg.defaults()
	pace := newPacer(cfg.Pacing)
	return &Service{
		Learner: newLearner(cfg, pace),
		Checker: newChecker(cfg, pace),
		store:   cfg.Store,
		audit:   cfg.Audit,
		logger:  cfg.Logger,
	}
}

// Check verifies identity on every catalogued site.
func (s *Service) Check(ctx context.Context, identity string) (*Report, error) {
	return s.Checker.Check(ctx, identity)
}

// Methods lists catalog entries whose site starts with site; empty lists all.
func (s *Service) Methods(ctx context.Context, site string) ([]catalog.Entry, error) {
	entries, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("presence: methods: %w", err)
	}
	site = strings.TrimSpace(site)
	if site == "" {
		return entries, nil
	}
	return catalog.ForSite(entries, site), nil
}

// DeleteMethods removes entries by ID.
func (s *Service) DeleteMethods(ctx context.Context, ids []int64) (int, error) {
	n, err := s.store.Delete(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("presence: delete: %w", err)
	}
	s.logger.Info("presence: methods deleted", "requested", len(ids), "deleted", n)
	return n, nil
}

// DeleteSite removes every entry of the sites starting with prefix.
func (s *Service) DeleteSite(ctx context.Context, prefix string) (int, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return 0, fmt.Errorf("presence: delete: empty site prefix")
	}
	entries, err := s.Methods(ctx, prefix)
	if err != nil {
		return 0, err
	}
	ids := make([]int64, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return s.DeleteMethods(ctx, ids)
}

// endpoint wraps fn with logging and, for audited operations when an audit
// trail is configured, with audit.Middleware.
func (s *Service) endpoint(name string, audited bool, fn kit.Endpoint) kit.Endpoint {
	mws := []kit.Middleware{kit.Logging(s.logger, name)}
	if audited && s.audit != nil {
		mws = append(mws, audit.Middleware(s.audit, name))
	}
	return kit.Chain(mws...)(fn)
}
