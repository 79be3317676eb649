package query

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gramseva/mgnrega-tracker/internal/model"
	"github.com/gramseva/mgnrega-tracker/internal/store"
)

func newTestService(t *testing.T) (*Service, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return NewService(st), st
}

func seedDistricts(t *testing.T, st store.Store, districts ...model.District) {
	t.Helper()
	require.NoError(t, st.UpsertDistricts(context.Background(), districts))
}

func TestDistrictSummary_UnknownCode(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.DistrictSummary(context.Background(), "XX999", 2024)
	assert.ErrorIs(t, err, ErrDistrictNotFound)
}

func TestDistrictSummary_ZeroRowsIsNotAnError(t *testing.T) {
	svc, st := newTestService(t)
	seedDistricts(t, st, model.District{Code: "BI001", Name: "Patna", StateName: "Bihar", StateCode: "BI"})

	sum, err := svc.DistrictSummary(context.Background(), "BI001", 2024)
	require.NoError(t, err)
	assert.Equal(t, "Patna", sum.District.Name)
	assert.Equal(t, 2024, sum.Year)
	assert.Nil(t, sum.Summary.Households)
}

func TestDistrictSummary_DefaultYear(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	seedDistricts(t, st, model.District{Code: "BI001", Name: "Patna", StateName: "Bihar", StateCode: "BI"})
	require.NoError(t, st.UpsertPerformance(ctx, []model.PerformanceRecord{
		{DistrictCode: "BI001", Month: 1, Year: 2024, Households: 12500, Source: model.SourceSample},
	}))

	sum, err := svc.DistrictSummary(ctx, "BI001", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultYear, sum.Year)
	require.NotNil(t, sum.Summary.Households)
	assert.Equal(t, int64(12500), *sum.Summary.Households)
}

func TestCompare_RequiresDistricts(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Compare(context.Background(), nil, 2024)
	assert.ErrorIs(t, err, ErrNoDistricts)
}

func TestCompare_OrderedByHouseholdsDesc(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	seedDistricts(t, st,
		model.District{Code: "BI001", Name: "Patna", StateName: "Bihar", StateCode: "BI"},
		model.District{Code: "BI002", Name: "Gaya", StateName: "Bihar", StateCode: "BI"},
	)
	require.NoError(t, st.UpsertPerformance(ctx, []model.PerformanceRecord{
		{DistrictCode: "BI001", Month: 1, Year: 2024, Households: 12500, Source: model.SourceSample},
		{DistrictCode: "BI002", Month: 1, Year: 2024, Households: 9800, Source: model.SourceSample},
	}))

	rows, err := svc.Compare(ctx, []string{"BI002", "BI001"}, 2024)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "BI001", rows[0].DistrictCode)
	assert.Equal(t, "BI002", rows[1].DistrictCode)
}

func TestCompare_TiesKeepInputOrder(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	seedDistricts(t, st,
		model.District{Code: "BI001", Name: "Patna", StateName: "Bihar", StateCode: "BI"},
		model.District{Code: "BI002", Name: "Gaya", StateName: "Bihar", StateCode: "BI"},
		model.District{Code: "BI003", Name: "Muzaffarpur", StateName: "Bihar", StateCode: "BI"},
	)
	require.NoError(t, st.UpsertPerformance(ctx, []model.PerformanceRecord{
		{DistrictCode: "BI001", Month: 1, Year: 2024, Households: 5000, Source: model.SourceSample},
		{DistrictCode: "BI002", Month: 1, Year: 2024, Households: 5000, Source: model.SourceSample},
		{DistrictCode: "BI003", Month: 1, Year: 2024, Households: 9000, Source: model.SourceSample},
	}))

	rows, err := svc.Compare(ctx, []string{"BI002", "BI001", "BI003"}, 2024)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "BI003", rows[0].DistrictCode)
	// BI002 and BI001 tie at 5000; input order puts BI002 first.
	assert.Equal(t, "BI002", rows[1].DistrictCode)
	assert.Equal(t, "BI001", rows[2].DistrictCode)
}

func TestCompare_ZeroRowDistrictsSortLast(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	seedDistricts(t, st,
		model.District{Code: "BI001", Name: "Patna", StateName: "Bihar", StateCode: "BI"},
		model.District{Code: "BI002", Name: "Gaya", StateName: "Bihar", StateCode: "BI"},
	)
	require.NoError(t, st.UpsertPerformance(ctx, []model.PerformanceRecord{
		{DistrictCode: "BI002", Month: 1, Year: 2024, Households: 100, Source: model.SourceSample},
	}))

	rows, err := svc.Compare(ctx, []string{"BI001", "BI002"}, 2024)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "BI002", rows[0].DistrictCode)
	assert.Equal(t, "BI001", rows[1].DistrictCode)
	assert.Nil(t, rows[1].Households)
}

func TestMonthlySeries_EmptyIsNotError(t *testing.T) {
	svc, _ := newTestService(t)

	records, err := svc.MonthlySeries(context.Background(), "BI001", 2024)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestStateSummary_DefaultYear(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	seedDistricts(t, st, model.District{Code: "BI001", Name: "Patna", StateName: "Bihar", StateCode: "BI"})
	require.NoError(t, st.UpsertPerformance(ctx, []model.PerformanceRecord{
		{DistrictCode: "BI001", Month: 1, Year: 2024, Households: 12500, Source: model.SourceSample},
	}))

	rows, err := svc.StateSummary(ctx, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Bihar", rows[0].StateName)
	require.NotNil(t, rows[0].Households)
	assert.Equal(t, int64(12500), *rows[0].Households)
}
