package safety_stock

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func forecastRow(item, refDate string, qty, errPct float64) ForecastRecord {
	return ForecastRecord{
		DemandRecord:         DemandRecord{ItemName: item, OrgCode: "US01", RefDate: refDate, Quantity: qty},
		ErrorType:            "MAPE",
		ForecastErrorPercent: errPct,
	}
}

func TestCalculateForecast(t *testing.T) {
	calc := NewCalculator(zerolog.Nop())
	master := []ItemMasterRecord{{ItemName: "WIDGET", OrgCode: "US01", LeadTimeDays: 9, ServiceLevel: 95}}
	forecast := []ForecastRecord{
		forecastRow("WIDGET", "01/01/2025", 300, 12),
		forecastRow("WIDGET", "01/16/2025", 150, 8),
	}

	results, skipped, err := calc.CalculateForecast(forecast, master)
	require.NoError(t, err)
	assert.Empty(t, skipped)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, 8.0, r.ForecastErrPercent)
	assert.Equal(t, 10, r.AvgDailyForecast)
	assert.Equal(t, 9, r.LeadTime)
	assert.InDelta(t, 1.644853625133699, r.ServiceFactor, 1e-9)
	assert.Equal(t, 27, r.SafetyStock)
	assert.Equal(t, 3, r.DaysOfCover)
}

func TestCalculateForecastRoundsHalfToEven(t *testing.T) {
	calc := NewCalculator(zerolog.Nop())
	master := []ItemMasterRecord{{ItemName: "WIDGET", OrgCode: "US01", LeadTimeDays: 4, ServiceLevel: 90}}

	// 75 over the 30 days to month end is 2.5.
	results, _, err := calc.CalculateForecast([]ForecastRecord{forecastRow("WIDGET", "01/01/2025", 75, 10)}, master)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 2, results[0].AvgDailyForecast)
}

func TestCalculateForecastSkips(t *testing.T) {
	calc := NewCalculator(zerolog.Nop())
	master := []ItemMasterRecord{
		{ItemName: "LAST", OrgCode: "US01", LeadTimeDays: 9, ServiceLevel: 95},
		{ItemName: "BAD", OrgCode: "US01", LeadTimeDays: 9, ServiceLevel: 95},
		{ItemName: "FULL", OrgCode: "US01", LeadTimeDays: 9, ServiceLevel: 100},
	}
	forecast := []ForecastRecord{
		forecastRow("ORPHAN", "01/01/2025", 10, 5),
		forecastRow("LAST", "01/31/2025", 10, 5),
		forecastRow("BAD", "", 10, 5),
		forecastRow("FULL", "01/01/2025", 10, 5),
	}

	results, skipped, err := calc.CalculateForecast(forecast, master)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, []SkippedGroup{
		{Key: GroupKey{ItemName: "ORPHAN", OrgCode: "US01"}, Reason: SkipMissingItemMaster},
		{Key: GroupKey{ItemName: "LAST", OrgCode: "US01"}, Reason: SkipDegenerateDuration},
		{Key: GroupKey{ItemName: "BAD", OrgCode: "US01"}, Reason: SkipNoValidDates},
		{Key: GroupKey{ItemName: "FULL", OrgCode: "US01"}, Reason: SkipUndefinedServiceLevel},
	}, skipped)
}

func TestCalculateForecastZeroAverage(t *testing.T) {
	calc := NewCalculator(zerolog.Nop())
	master := []ItemMasterRecord{{ItemName: "WIDGET", OrgCode: "US01", LeadTimeDays: 9, ServiceLevel: 95}}

	results, _, err := calc.CalculateForecast([]ForecastRecord{forecastRow("WIDGET", "01/01/2025", 0, 10)}, master)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Zero(t, results[0].SafetyStock)
	assert.Zero(t, results[0].DaysOfCover)
}

func TestCalculateForecastDomainError(t *testing.T) {
	calc := NewCalculator(zerolog.Nop())
	master := []ItemMasterRecord{{ItemName: "WIDGET", OrgCode: "US01", LeadTimeDays: 9, ServiceLevel: -5}}

	_, _, err := calc.CalculateForecast([]ForecastRecord{forecastRow("WIDGET", "01/01/2025", 30, 10)}, master)
	assert.ErrorIs(t, err, ErrDomain)
}

func TestCalculateForecastServiceLevelCheckedBeforeDates(t *testing.T) {
	calc := NewCalculator(zerolog.Nop())
	master := []ItemMasterRecord{{ItemName: "WIDGET", OrgCode: "US01", LeadTimeDays: 9, ServiceLevel: 150}}

	_, _, err := calc.CalculateForecast([]ForecastRecord{forecastRow("WIDGET", "", 30, 10)}, master)
	assert.ErrorIs(t, err, ErrDomain)
}
