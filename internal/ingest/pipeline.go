// Package ingest orchestrates the check-cache, probe, fetch, store, fall-back
// pipeline that keeps the persistent store populated.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/gramseva/mgnrega-tracker/internal/config"
	"github.com/gramseva/mgnrega-tracker/internal/fallback"
	"github.com/gramseva/mgnrega-tracker/internal/model"
	"github.com/gramseva/mgnrega-tracker/internal/store"
)

const districtsCacheKey = "districts"

// Source is the external data source the pipeline pulls from.
type Source interface {
	Probe(ctx context.Context) bool
	FetchDistricts(ctx context.Context) ([]model.District, error)
	FetchPerformance(ctx context.Context, districtCode string, year int) ([]model.PerformanceRecord, error)
}

// Pipeline populates the store with the freshest available data, preferring
// live external data and degrading to cached then static fallback data.
// Source-unavailable conditions never escape RefreshAll; only store failures do.
type Pipeline struct {
	store   store.Store
	source  Source
	cfg     config.IngestConfig
	ttl     time.Duration
	workers int
	pacer   *rate.Limiter
	mu      sync.Mutex
}

// New creates a Pipeline.
func New(st store.Store, src Source, cfg config.IngestConfig) *Pipeline {
	ttl := cfg.CacheTTL()
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	pause := cfg.Pause()
	if pause <= 0 {
		pause = time.Second
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{
		store:   st,
		source:  src,
		cfg:     cfg,
		ttl:     ttl,
		workers: workers,
		pacer:   rate.NewLimiter(rate.Every(pause), 1),
	}
}

// RefreshAll fetches and upserts district metadata, then each district's
// performance history for the configured year. Overlapping triggers no-op
// while a run is in progress.
func (p *Pipeline) RefreshAll(ctx context.Context) error {
	if !p.mu.TryLock() {
		zap.L().Info("ingest: refresh already in progress, skipping")
		return nil
	}
	defer p.mu.Unlock()

	log := zap.L().With(zap.String("component", "ingest"))
	start := time.Now()
	log.Info("starting data refresh", zap.Int("year", p.cfg.Year))

	districts, live := p.resolveDistricts(ctx, log)
	if err := p.store.UpsertDistricts(ctx, districts); err != nil {
		return eris.Wrap(err, "ingest: upsert districts")
	}
	log.Info("stored districts",
		zap.Int("count", len(districts)),
		zap.Bool("live", live),
	)

	var stored atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for _, d := range districts {
		g.Go(func() error {
			records := p.resolvePerformance(gctx, log, d.Code)
			if len(records) == 0 {
				return nil
			}
			if err := p.store.UpsertPerformance(gctx, records); err != nil {
				return eris.Wrapf(err, "ingest: upsert performance %s", d.Code)
			}
			stored.Add(int64(len(records)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if n, err := p.store.DeleteExpiredCache(ctx); err != nil {
		log.Warn("failed to compact expired cache entries", zap.Error(err))
	} else if n > 0 {
		log.Info("compacted expired cache entries", zap.Int("deleted", n))
	}

	log.Info("data refresh complete",
		zap.Int64("records", stored.Load()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// resolveDistricts returns the district set to ingest: cache, then live API,
// then the static fallback list. The bool reports whether the data is live
// (API-sourced, possibly via cache) rather than fallback.
func (p *Pipeline) resolveDistricts(ctx context.Context, log *zap.Logger) ([]model.District, bool) {
	if cached, err := p.store.GetCache(ctx, districtsCacheKey); err != nil {
		log.Warn("district cache read failed", zap.Error(err))
	} else if cached != nil {
		var districts []model.District
		if err := json.Unmarshal(cached, &districts); err != nil {
			log.Warn("district cache entry malformed, refetching", zap.Error(err))
		} else {
			return districts, true
		}
	}

	if err := p.pacer.Wait(ctx); err != nil {
		return fallback.Districts(), false
	}
	if !p.source.Probe(ctx) {
		log.Warn("external source unreachable, using fallback districts")
		return fallback.Districts(), false
	}

	districts, err := p.source.FetchDistricts(ctx)
	if err != nil || len(districts) == 0 {
		log.Warn("district fetch unavailable, using fallback districts",
			zap.Error(err), zap.Int("fetched", len(districts)))
		return fallback.Districts(), false
	}

	p.writeCache(ctx, log, districtsCacheKey, districts)
	return districts, true
}

// resolvePerformance returns one district's records for the configured year:
// cache, then live API, then the fallback dataset (empty when none defined).
func (p *Pipeline) resolvePerformance(ctx context.Context, log *zap.Logger, code string) []model.PerformanceRecord {
	key := performanceCacheKey(code, p.cfg.Year)

	if cached, err := p.store.GetCache(ctx, key); err != nil {
		log.Warn("performance cache read failed", zap.String("district", code), zap.Error(err))
	} else if cached != nil {
		var records []model.PerformanceRecord
		if err := json.Unmarshal(cached, &records); err != nil {
			log.Warn("performance cache entry malformed, refetching",
				zap.String("district", code), zap.Error(err))
		} else {
			return records
		}
	}

	// Courtesy pause between live calls so the external source is not
	// hammered district-by-district. Cache hits never reach this point.
	if err := p.pacer.Wait(ctx); err != nil {
		return fallback.Performance(code)
	}
	if !p.source.Probe(ctx) {
		log.Warn("external source unreachable, using fallback performance",
			zap.String("district", code))
		return fallback.Performance(code)
	}

	records, err := p.source.FetchPerformance(ctx, code, p.cfg.Year)
	if err != nil || len(records) == 0 {
		log.Warn("performance fetch unavailable, using fallback",
			zap.String("district", code), zap.Error(err))
		return fallback.Performance(code)
	}

	p.writeCache(ctx, log, key, records)
	return records
}

func (p *Pipeline) writeCache(ctx context.Context, log *zap.Logger, key string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Warn("cache marshal failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := p.store.PutCache(ctx, key, payload, p.ttl); err != nil {
		log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func performanceCacheKey(code string, year int) string {
	return fmt.Sprintf("performance_%s_%d", code, year)
}
