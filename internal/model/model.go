// Package model defines the domain types shared across the store, ingestion
// and API layers.
package model

import "time"

// DataSource marks where a performance record came from.
type DataSource string

const (
	// SourceAPI marks records ingested from the live data.gov.in API.
	SourceAPI DataSource = "api"
	// SourceSample marks records loaded from the bundled fallback dataset.
	SourceSample DataSource = "sample"
)

// District is one administrative district of the tracked state.
type District struct {
	Code      string    `json:"district_code"`
	Name      string    `json:"district_name"`
	StateName string    `json:"state_name"`
	StateCode string    `json:"state_code"`
	CreatedAt time.Time `json:"created_at"`
}

// PerformanceRecord is one district's employment-program figures for a single
// month. The (DistrictCode, Month, Year) triple is the natural key.
type PerformanceRecord struct {
	DistrictCode    string     `json:"district_code"`
	Month           int        `json:"month"`
	Year            int        `json:"year"`
	Households      int64      `json:"total_households"`
	Persons         int64      `json:"total_persons"`
	WorkDays        int64      `json:"total_work_days"`
	WagesPaid       float64    `json:"total_wages_paid"`
	MaterialCost    float64    `json:"total_material_cost"`
	Expenditure     float64    `json:"total_expenditure"`
	WorksCompleted  int64      `json:"works_completed"`
	WorksOngoing    int64      `json:"works_ongoing"`
	WorksSanctioned int64      `json:"works_sanctioned"`
	Source          DataSource `json:"data_source"`
	LastUpdated     time.Time  `json:"last_updated"`
}

// Summary is a district's yearly aggregate. Fields are pointers because a
// district with no monthly rows aggregates to NULLs, and the API reports that
// distinctly from zero.
type Summary struct {
	Households         *int64   `json:"total_households"`
	Persons            *int64   `json:"total_persons"`
	WorkDays           *int64   `json:"total_work_days"`
	WagesPaid          *float64 `json:"total_wages_paid"`
	Expenditure        *float64 `json:"total_expenditure"`
	WorksCompleted     *int64   `json:"works_completed"`
	AvgHouseholdsMonth *float64 `json:"avg_households_per_month"`
	AvgPersonsMonth    *float64 `json:"avg_persons_per_month"`
}

// DistrictSummary pairs a district with its aggregate for one year.
type DistrictSummary struct {
	District District `json:"district"`
	Summary  Summary  `json:"summary"`
	Year     int      `json:"year"`
}

// ComparisonRow is one district's totals in a side-by-side comparison.
type ComparisonRow struct {
	DistrictCode   string   `json:"district_code"`
	DistrictName   string   `json:"district_name"`
	Households     *int64   `json:"total_households"`
	Persons        *int64   `json:"total_persons"`
	WorkDays       *int64   `json:"total_work_days"`
	WagesPaid      *float64 `json:"total_wages_paid"`
	WorksCompleted *int64   `json:"works_completed"`
}

// StateSummaryRow is one parent region's rollup across all of its districts.
type StateSummaryRow struct {
	StateName      string   `json:"state_name"`
	TotalDistricts int64    `json:"total_districts"`
	Households     *int64   `json:"total_households"`
	Persons        *int64   `json:"total_persons"`
	WorkDays       *int64   `json:"total_work_days"`
	WagesPaid      *float64 `json:"total_wages_paid"`
	WorksCompleted *int64   `json:"works_completed"`
}
