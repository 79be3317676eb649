// Package fallback supplies a static Bihar dataset so the tracker can always
// serve something when the data.gov.in API is unreachable.
package fallback

import "github.com/gramseva/mgnrega-tracker/internal/model"

var districts = []model.District{
	{Code: "BI001", Name: "Patna", StateName: "Bihar", StateCode: "BI"},
	{Code: "BI002", Name: "Gaya", StateName: "Bihar", StateCode: "BI"},
	{Code: "BI003", Name: "Muzaffarpur", StateName: "Bihar", StateCode: "BI"},
	{Code: "BI004", Name: "Bhagalpur", StateName: "Bihar", StateCode: "BI"},
	{Code: "BI005", Name: "Darbhanga", StateName: "Bihar", StateCode: "BI"},
}

var performance = map[string][]model.PerformanceRecord{
	"BI001": {
		rec("BI001", 1, 12500, 45000, 180000, 45000000, 45),
		rec("BI001", 2, 13200, 48000, 192000, 48000000, 52),
		rec("BI001", 3, 12800, 46000, 184000, 46000000, 48),
	},
	"BI002": {
		rec("BI002", 1, 9800, 35000, 140000, 35000000, 38),
		rec("BI002", 2, 10200, 37000, 148000, 37000000, 42),
		rec("BI002", 3, 9500, 34000, 136000, 34000000, 35),
	},
	"BI003": {
		rec("BI003", 1, 11000, 40000, 160000, 40000000, 41),
		rec("BI003", 2, 11500, 42000, 168000, 42000000, 46),
		rec("BI003", 3, 10800, 39000, 156000, 39000000, 39),
	},
	"BI004": {
		rec("BI004", 1, 8500, 30000, 120000, 30000000, 32),
		rec("BI004", 2, 8800, 32000, 128000, 32000000, 35),
		rec("BI004", 3, 8200, 29000, 116000, 29000000, 28),
	},
	"BI005": {
		rec("BI005", 1, 9200, 33000, 132000, 33000000, 36),
		rec("BI005", 2, 9600, 35000, 140000, 35000000, 40),
		rec("BI005", 3, 8900, 32000, 128000, 32000000, 33),
	},
}

func rec(code string, month int, households, persons, workDays int64, wages float64, worksCompleted int64) model.PerformanceRecord {
	return model.PerformanceRecord{
		DistrictCode:   code,
		Month:          month,
		Year:           2024,
		Households:     households,
		Persons:        persons,
		WorkDays:       workDays,
		WagesPaid:      wages,
		Expenditure:    wages,
		WorksCompleted: worksCompleted,
		Source:         model.SourceSample,
	}
}

// Districts returns the static district list.
func Districts() []model.District {
	out := make([]model.District, len(districts))
	copy(out, districts)
	return out
}

// Performance returns the static monthly records for a district code, or an
// empty slice when none are defined.
func Performance(code string) []model.PerformanceRecord {
	recs := performance[code]
	out := make([]model.PerformanceRecord, len(recs))
	copy(out, recs)
	return out
}
