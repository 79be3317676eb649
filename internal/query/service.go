// Package query provides read-only aggregation over the persistent store.
package query

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/gramseva/mgnrega-tracker/internal/model"
	"github.com/gramseva/mgnrega-tracker/internal/store"
)

// DefaultYear is used when a caller does not specify a year.
const DefaultYear = 2024

// MaxCompareDistricts is the upper bound the dashboard enforces on comparison
// requests. The service documents it but does not reject larger sets; it is a
// presentation constraint, not a storage one.
const MaxCompareDistricts = 5

var (
	// ErrDistrictNotFound marks an unknown district code.
	ErrDistrictNotFound = eris.New("district not found")
	// ErrNoDistricts marks a comparison request with no district codes.
	ErrNoDistricts = eris.New("at least one district code is required")
)

// Service executes read-only aggregation queries. It never mutates state and
// tolerates a sparse or partially-ingested store.
type Service struct {
	store store.Store
}

// NewService creates a query Service over the given store.
func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// ListDistricts returns all districts ordered by name ascending.
func (s *Service) ListDistricts(ctx context.Context) ([]model.District, error) {
	return s.store.ListDistricts(ctx)
}

// MonthlySeries returns a district's records for a year ordered by month.
// An empty series is not an error.
func (s *Service) MonthlySeries(ctx context.Context, code string, year int) ([]model.PerformanceRecord, error) {
	if year == 0 {
		year = DefaultYear
	}
	return s.store.MonthlyPerformance(ctx, code, year)
}

// DistrictSummary returns a district with its yearly aggregate. An unknown
// code yields ErrDistrictNotFound; a known district with zero monthly rows
// yields an aggregate of nulls.
func (s *Service) DistrictSummary(ctx context.Context, code string, year int) (*model.DistrictSummary, error) {
	if year == 0 {
		year = DefaultYear
	}

	district, err := s.store.GetDistrict(ctx, code)
	if err != nil {
		return nil, err
	}
	if district == nil {
		return nil, ErrDistrictNotFound
	}

	summary, err := s.store.SummarizeDistrict(ctx, code, year)
	if err != nil {
		return nil, err
	}

	return &model.DistrictSummary{
		District: *district,
		Summary:  *summary,
		Year:     year,
	}, nil
}

// Compare returns one row per known district code with yearly totals, ordered
// by total households descending. Unknown codes are silently excluded;
// known districts with no rows for the year appear with null aggregates.
// Ties are broken by the caller's input order.
func (s *Service) Compare(ctx context.Context, codes []string, year int) ([]model.ComparisonRow, error) {
	if len(codes) == 0 {
		return nil, ErrNoDistricts
	}
	if year == 0 {
		year = DefaultYear
	}

	rows, err := s.store.CompareDistricts(ctx, codes, year)
	if err != nil {
		return nil, err
	}

	// SQL leaves tie order unspecified; finish the ordering here so equal
	// household totals keep the input order.
	inputOrder := make(map[string]int, len(codes))
	for i, c := range codes {
		inputOrder[c] = i
	}
	sort.SliceStable(rows, func(i, j int) bool {
		hi, hj := rows[i].Households, rows[j].Households
		switch {
		case hi == nil && hj == nil:
			return inputOrder[rows[i].DistrictCode] < inputOrder[rows[j].DistrictCode]
		case hi == nil:
			return false
		case hj == nil:
			return true
		case *hi != *hj:
			return *hi > *hj
		default:
			return inputOrder[rows[i].DistrictCode] < inputOrder[rows[j].DistrictCode]
		}
	})
	return rows, nil
}

// StateSummary returns one rollup row per parent region, ordered by total
// households descending.
func (s *Service) StateSummary(ctx context.Context, year int) ([]model.StateSummaryRow, error) {
	if year == 0 {
		year = DefaultYear
	}
	return s.store.StateSummary(ctx, year)
}
