package safety_stock

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// dailyDemand returns qty on each day of January 2025 from day 1 to last.
func dailyDemand(item, org string, last int, qty float64) []DemandRecord {
	records := make([]DemandRecord, 0, last)
	for d := 1; d <= last; d++ {
		records = append(records, DemandRecord{
			ItemName: item,
			OrgCode:  org,
			RefDate:  fmt.Sprintf("01/%02d/2025", d),
			Quantity: qty,
		})
	}
	return records
}

func TestParseRefDate(t *testing.T) {
	got, err := ParseRefDate("01/15/2025")
	require.NoError(t, err)
	assert.Equal(t, date(2025, time.January, 15), got)

	got, err = ParseRefDate(" 2025-02-03 ")
	require.NoError(t, err)
	assert.Equal(t, date(2025, time.February, 3), got)

	_, err = ParseRefDate("")
	assert.Error(t, err)

	_, err = ParseRefDate("2025-13-45")
	assert.Error(t, err)
}

func TestMonthEnd(t *testing.T) {
	assert.Equal(t, date(2024, time.February, 29), MonthEnd(date(2024, time.February, 10)))
	assert.Equal(t, date(2025, time.February, 28), MonthEnd(date(2025, time.February, 1)))
	assert.Equal(t, date(2025, time.December, 31), MonthEnd(date(2025, time.December, 31)))
}

func TestBuildDailySeries(t *testing.T) {
	series, err := BuildDailySeries(dailyDemand("WIDGET", "US01", 30, 10))
	require.NoError(t, err)

	assert.Equal(t, date(2025, time.January, 1), series.Start)
	assert.Equal(t, date(2025, time.January, 31), series.PeriodEnd)
	assert.Equal(t, 30, series.DurationDays)
	assert.Equal(t, 300.0, series.TotalQuantity)
	assert.Equal(t, 10.0, series.AverageDailyQuantity)
	require.Len(t, series.Values, 31)
	assert.Equal(t, 0.0, series.Values[30])

	_, sd := populationStats(series.Values)
	assert.InDelta(t, 1.7668469596940843, sd, 1e-12)
}

func TestBuildDailySeriesSameDayRecords(t *testing.T) {
	records := []DemandRecord{
		{ItemName: "A", OrgCode: "X", RefDate: "01/01/2025", Quantity: 5},
		{ItemName: "A", OrgCode: "X", RefDate: "01/03/2025", Quantity: 4},
		{ItemName: "A", OrgCode: "X", RefDate: "01/01/2025", Quantity: 7},
	}

	series, err := BuildDailySeries(records)
	require.NoError(t, err)

	require.Len(t, series.Values, 32)
	assert.Equal(t, []float64{5, 7, 0, 4, 0}, series.Values[:5])
	assert.Equal(t, 1.0, series.AverageDailyQuantity)

	_, sd := populationStats(series.Values)
	assert.InDelta(t, 1.6007810593582121, sd, 1e-12)
}

func TestBuildDailySeriesSkipsUnparseableDates(t *testing.T) {
	records := append(dailyDemand("A", "X", 30, 10), DemandRecord{ItemName: "A", OrgCode: "X", RefDate: "", Quantity: 1000})

	series, err := BuildDailySeries(records)
	require.NoError(t, err)
	assert.Equal(t, 1, series.SkippedRecords)
	assert.Equal(t, 300.0, series.TotalQuantity)
}

func TestBuildDailySeriesErrors(t *testing.T) {
	series, err := BuildDailySeries([]DemandRecord{{RefDate: ""}, {RefDate: "2025-13-45"}})
	assert.ErrorIs(t, err, ErrNoValidDates)
	assert.Equal(t, 2, series.SkippedRecords)

	_, err = BuildDailySeries([]DemandRecord{{RefDate: "01/31/2025", Quantity: 3}})
	assert.ErrorIs(t, err, ErrDegenerateDuration)
}

func TestPopulationStats(t *testing.T) {
	mean, sd := populationStats([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.Equal(t, 5.0, mean)
	assert.Equal(t, 2.0, sd)

	mean, sd = populationStats(nil)
	assert.Zero(t, mean)
	assert.Zero(t, sd)
}
