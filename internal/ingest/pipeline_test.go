package ingest

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gramseva/mgnrega-tracker/internal/config"
	"github.com/gramseva/mgnrega-tracker/internal/model"
	"github.com/gramseva/mgnrega-tracker/internal/store"
)

// fakeSource is a scriptable Source.
type fakeSource struct {
	mu           sync.Mutex
	reachable    bool
	districts    []model.District
	performance  map[string][]model.PerformanceRecord
	probeCalls   int
	fetchErr     error
	perfFetchErr error
}

func (f *fakeSource) Probe(ctx context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probeCalls++
	return f.reachable
}

func (f *fakeSource) FetchDistricts(ctx context.Context) ([]model.District, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.districts, nil
}

func (f *fakeSource) FetchPerformance(ctx context.Context, code string, year int) ([]model.PerformanceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.perfFetchErr != nil {
		return nil, f.perfFetchErr
	}
	return f.performance[code], nil
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testIngestConfig() config.IngestConfig {
	return config.IngestConfig{
		StateName:     "Bihar",
		StateCode:     "BI",
		Year:          2024,
		CacheTTLHours: 6,
		PauseMillis:   1,
		Workers:       1,
	}
}

func TestRefreshAll_SourceUnreachableUsesFallback(t *testing.T) {
	st := newTestStore(t)
	src := &fakeSource{reachable: false}
	p := New(st, src, testIngestConfig())

	require.NoError(t, p.RefreshAll(context.Background()))

	districts, err := st.ListDistricts(context.Background())
	require.NoError(t, err)
	assert.Len(t, districts, 5)

	records, err := st.MonthlyPerformance(context.Background(), "BI001", 2024)
	require.NoError(t, err)
	require.Len(t, records, 3)
	for _, r := range records {
		assert.Equal(t, model.SourceSample, r.Source)
	}
}

func TestRefreshAll_LiveFetchTaggedAPI(t *testing.T) {
	st := newTestStore(t)
	src := &fakeSource{
		reachable: true,
		districts: []model.District{
			{Code: "BI001", Name: "Patna", StateName: "Bihar", StateCode: "BI"},
		},
		performance: map[string][]model.PerformanceRecord{
			"BI001": {
				{DistrictCode: "BI001", Month: 1, Year: 2024, Households: 15000, Source: model.SourceAPI},
			},
		},
	}
	p := New(st, src, testIngestConfig())

	require.NoError(t, p.RefreshAll(context.Background()))

	records, err := st.MonthlyPerformance(context.Background(), "BI001", 2024)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, model.SourceAPI, records[0].Source)
	assert.Equal(t, int64(15000), records[0].Households)
}

func TestRefreshAll_LiveFetchPopulatesCache(t *testing.T) {
	st := newTestStore(t)
	src := &fakeSource{
		reachable: true,
		districts: []model.District{
			{Code: "BI001", Name: "Patna", StateName: "Bihar", StateCode: "BI"},
		},
		performance: map[string][]model.PerformanceRecord{
			"BI001": {
				{DistrictCode: "BI001", Month: 1, Year: 2024, Households: 15000, Source: model.SourceAPI},
			},
		},
	}
	p := New(st, src, testIngestConfig())
	require.NoError(t, p.RefreshAll(context.Background()))

	cached, err := st.GetCache(context.Background(), "districts")
	require.NoError(t, err)
	require.NotNil(t, cached)

	var districts []model.District
	require.NoError(t, json.Unmarshal(cached, &districts))
	assert.Len(t, districts, 1)

	cached, err = st.GetCache(context.Background(), "performance_BI001_2024")
	require.NoError(t, err)
	assert.NotNil(t, cached)
}

func TestRefreshAll_CacheHitSkipsProbe(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	districts := []model.District{
		{Code: "BI001", Name: "Patna", StateName: "Bihar", StateCode: "BI"},
	}
	records := []model.PerformanceRecord{
		{DistrictCode: "BI001", Month: 1, Year: 2024, Households: 11111, Source: model.SourceAPI},
	}
	payload, err := json.Marshal(districts)
	require.NoError(t, err)
	require.NoError(t, st.PutCache(ctx, "districts", payload, time.Hour))
	payload, err = json.Marshal(records)
	require.NoError(t, err)
	require.NoError(t, st.PutCache(ctx, "performance_BI001_2024", payload, time.Hour))

	src := &fakeSource{reachable: false} // would fall back if consulted
	p := New(st, src, testIngestConfig())
	require.NoError(t, p.RefreshAll(ctx))

	assert.Equal(t, 0, src.probeCalls)

	got, err := st.MonthlyPerformance(ctx, "BI001", 2024)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(11111), got[0].Households)
	assert.Equal(t, model.SourceAPI, got[0].Source)
}

func TestRefreshAll_EmptyFetchFallsBack(t *testing.T) {
	st := newTestStore(t)
	src := &fakeSource{reachable: true} // reachable but returns zero records
	p := New(st, src, testIngestConfig())

	require.NoError(t, p.RefreshAll(context.Background()))

	districts, err := st.ListDistricts(context.Background())
	require.NoError(t, err)
	assert.Len(t, districts, 5)
}

func TestRefreshAll_FetchErrorFallsBack(t *testing.T) {
	st := newTestStore(t)
	src := &fakeSource{
		reachable: true,
		fetchErr:  eris.New("upstream 503"),
	}
	p := New(st, src, testIngestConfig())

	require.NoError(t, p.RefreshAll(context.Background()))

	districts, err := st.ListDistricts(context.Background())
	require.NoError(t, err)
	assert.Len(t, districts, 5)
}

func TestRefreshAll_ReingestReplacesRows(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	src := &fakeSource{
		reachable: true,
		districts: []model.District{
			{Code: "BI001", Name: "Patna", StateName: "Bihar", StateCode: "BI"},
		},
		performance: map[string][]model.PerformanceRecord{
			"BI001": {
				{DistrictCode: "BI001", Month: 1, Year: 2024, Households: 100, Source: model.SourceAPI},
			},
		},
	}
	p := New(st, src, testIngestConfig())
	p.ttl = -time.Hour // cache entries expire immediately, so every run refetches
	require.NoError(t, p.RefreshAll(ctx))

	src.mu.Lock()
	src.performance["BI001"] = []model.PerformanceRecord{
		{DistrictCode: "BI001", Month: 1, Year: 2024, Households: 200, Source: model.SourceAPI},
	}
	src.mu.Unlock()
	require.NoError(t, p.RefreshAll(ctx))

	records, err := st.MonthlyPerformance(ctx, "BI001", 2024)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(200), records[0].Households)
}

func TestRefreshAll_OverlappingRunNoOps(t *testing.T) {
	st := newTestStore(t)
	src := &fakeSource{reachable: false}
	p := New(st, src, testIngestConfig())

	p.mu.Lock()
	done := make(chan error, 1)
	go func() { done <- p.RefreshAll(context.Background()) }()

	select {
	case err := <-done:
		require.NoError(t, err) // second trigger no-ops while a run holds the lock
	case <-time.After(2 * time.Second):
		t.Fatal("overlapping RefreshAll did not return promptly")
	}
	p.mu.Unlock()

	// With the lock released the pipeline runs normally.
	require.NoError(t, p.RefreshAll(context.Background()))
	districts, err := st.ListDistricts(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, districts)
}

func TestRefreshAll_CompactsExpiredCache(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.PutCache(ctx, "stale", []byte("x"), -time.Hour))

	src := &fakeSource{reachable: false}
	p := New(st, src, testIngestConfig())
	require.NoError(t, p.RefreshAll(ctx))

	data, err := st.GetCache(ctx, "stale")
	require.NoError(t, err)
	assert.Nil(t, data)
}
