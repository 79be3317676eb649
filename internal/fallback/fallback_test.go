package fallback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gramseva/mgnrega-tracker/internal/model"
)

func TestDistricts(t *testing.T) {
	districts := Districts()
	require.Len(t, districts, 5)
	assert.Equal(t, "BI001", districts[0].Code)
	assert.Equal(t, "Patna", districts[0].Name)
	for _, d := range districts {
		assert.Equal(t, "Bihar", d.StateName)
		assert.Equal(t, "BI", d.StateCode)
	}
}

func TestDistricts_ReturnsCopy(t *testing.T) {
	first := Districts()
	first[0].Name = "mutated"
	assert.Equal(t, "Patna", Districts()[0].Name)
}

func TestPerformance(t *testing.T) {
	for _, d := range Districts() {
		records := Performance(d.Code)
		require.Len(t, records, 3, "district %s", d.Code)
		for i, rec := range records {
			assert.Equal(t, d.Code, rec.DistrictCode)
			assert.Equal(t, i+1, rec.Month)
			assert.Equal(t, 2024, rec.Year)
			assert.Equal(t, model.SourceSample, rec.Source)
			assert.Positive(t, rec.Households)
		}
	}
}

func TestPerformance_UnknownCode(t *testing.T) {
	assert.Empty(t, Performance("ZZ999"))
}
