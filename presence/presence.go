// Package presence runs the two workflows of argos on top of the catalog:
// learning detection methods for a site from known real and fake
// identities, and checking one identity against every site in the catalog.
//
// Both workflows probe through a retrieve.Prober, pace their probes through
// one shared limiter, and reuse a sample when the same (template, identity)
// pair is probed twice in a run.
package presence

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/hazyhaar/argos/audit"
	"github.com/hazyhaar/argos/catalog"
	"github.com/hazyhaar/argos/idgen"
	"github.com/hazyhaar/argos/retrieve"
)

var (
	// ErrNoRealSamples means learning evaluated no real identity.
	ErrNoRealSamples = errors.New("presence: no real identity was sampled")
	// ErrEmptyIdentity is returned when checking a blank identity.
	ErrEmptyIdentity = errors.New("presence: identity is empty")
)

// Config wires the workflows. Store is required.
type Config struct {
	Store  catalog.Store
	Prober *retrieve.Prober // nil: plain channel only
	// Workers bounds how many sites a check evaluates at once.
	Workers int
	// Pacing is the minimum interval between two probes across all
	// workers. Negative disables pacing.
	Pacing time.Duration
	// CacheSize bounds the samples one run keeps.
	CacheSize int
	IDs       idgen.Generator
	Now       func() time.Time
	Logger    *slog.Logger
	// Audit records the checks and deletions served over HTTP and MCP.
	// nil: no audit trail.
	Audit *audit.SQLiteLogger
}

func (c *Config) defaults() {
	if c.Prober == nil {
		c.Prober = retrieve.NewProber(nil, nil, c.Logger)
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.Pacing == 0 {
		c.Pacing = 300 * time.Millisecond
	}
	if c.CacheSize <= 0 {
		c.CacheSize = 512
	}
	if c.IDs == nil {
		c.IDs = idgen.Run
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

func newPacer(every time.Duration) *rate.Limiter {
	if every < 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(every), 1)
}

type sampleKey struct {
	template, identity string
}

// sampler probes with pacing and keeps one sample per (template, identity)
// for the lifetime of a run. Concurrent requests for the same pair share
// one probe.
type sampler struct {
	prober *retrieve.Prober
	pace   *rate.Limiter
	cache  *lru.Cache[sampleKey, retrieve.Sample]
	flight singleflight.Group
	probes atomic.Int64
}

func newSampler(prober *retrieve.Prober, pace *rate.Limiter, size int) *sampler {
	cache, err := lru.New[sampleKey, retrieve.Sample](size)
	if err != nil {
		panic(err) // size <= 0
	}
	return &sampler{prober: prober, pace: pace, cache: cache}
}

func (s *sampler) sample(ctx context.Context, template, identity string) (retrieve.Sample, error) {
	key := sampleKey{template, identity}
	if v, ok := s.cache.Get(key); ok {
		return v, nil
	}
	v, err, _ := s.flight.Do(template+"\x00"+identity, func() (any, error) {
		if v, ok := s.cache.Get(key); ok {
			return v, nil
		}
		if err := s.pace.Wait(ctx); err != nil {
			return nil, err
		}
		smp, err := s.prober.Probe(ctx, template, identity)
		if err != nil {
			return nil, err
		}
		s.probes.Add(1)
		s.cache.Add(key, smp)
		return smp, nil
	})
	if err != nil {
		return retrieve.Sample{}, err
	}
	return v.(retrieve.Sample), nil
}
