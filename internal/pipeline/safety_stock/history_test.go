package safety_stock

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func widgetMaster(serviceLevel float64) ItemMasterRecord {
	return ItemMasterRecord{
		ItemName:              "WIDGET",
		OrgCode:               "US01",
		LeadTimeDays:          7,
		SupplyLeadTimeVarDays: 2,
		ServiceLevel:          serviceLevel,
	}
}

func TestCalculateHistory(t *testing.T) {
	calc := NewCalculator(zerolog.Nop())

	results, skipped, err := calc.CalculateHistory(dailyDemand("WIDGET", "US01", 30, 10), []ItemMasterRecord{widgetMaster(95)})
	require.NoError(t, err)
	assert.Empty(t, skipped)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, "WIDGET", r.ItemName)
	assert.Equal(t, "US01", r.OrgCode)
	assert.Equal(t, 10.0, r.AverageDailyQty)
	assert.InDelta(t, 1.7668469596940843, r.StdDev, 1e-12)
	assert.Equal(t, 7, r.LeadTime)
	assert.Equal(t, 2, r.SupplyLeadTimeVarDays)
	assert.Equal(t, 95.0, r.ServiceLevel)
	assert.InDelta(t, 1.644853625133699, r.ServiceFactor, 1e-9)
	assert.Equal(t, 20.0, r.SSSupply)
	assert.Equal(t, 9.0, r.SSDemand)
	assert.Equal(t, 29.0, r.TotalSS)
	assert.InDelta(t, 2.9, r.DaysOfCover, 1e-12)
}

func TestCalculateHistoryMissingMaster(t *testing.T) {
	calc := NewCalculator(zerolog.Nop())

	history := append(dailyDemand("WIDGET", "US01", 30, 10), dailyDemand("GADGET", "US01", 10, 3)...)
	results, skipped, err := calc.CalculateHistory(history, []ItemMasterRecord{widgetMaster(95)})
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, "WIDGET", results[0].ItemName)
	assert.Equal(t, []SkippedGroup{{Key: GroupKey{ItemName: "GADGET", OrgCode: "US01"}, Reason: SkipMissingItemMaster}}, skipped)
}

func TestCalculateHistoryIgnoresUnparseableDates(t *testing.T) {
	calc := NewCalculator(zerolog.Nop())
	master := []ItemMasterRecord{widgetMaster(95)}

	clean, _, err := calc.CalculateHistory(dailyDemand("WIDGET", "US01", 30, 10), master)
	require.NoError(t, err)

	dirty := append(dailyDemand("WIDGET", "US01", 30, 10),
		DemandRecord{ItemName: "WIDGET", OrgCode: "US01", RefDate: "2025-13-45", Quantity: 500},
		DemandRecord{ItemName: "WIDGET", OrgCode: "US01", RefDate: "", Quantity: 500},
	)
	got, _, err := calc.CalculateHistory(dirty, master)
	require.NoError(t, err)

	assert.Equal(t, clean, got)
}

func TestCalculateHistoryIsDeterministic(t *testing.T) {
	calc := NewCalculator(zerolog.Nop())
	history := append(dailyDemand("B", "X", 20, 4), dailyDemand("A", "X", 12, 9)...)
	master := []ItemMasterRecord{
		{ItemName: "A", OrgCode: "X", LeadTimeDays: 3, SupplyLeadTimeVarDays: 1, ServiceLevel: 90},
		{ItemName: "B", OrgCode: "X", LeadTimeDays: 5, SupplyLeadTimeVarDays: 0, ServiceLevel: 99},
	}

	first, _, err := calc.CalculateHistory(history, master)
	require.NoError(t, err)
	second, _, err := calc.CalculateHistory(history, master)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	require.Len(t, first, 2)
	assert.Equal(t, "B", first[0].ItemName)
	assert.Equal(t, "A", first[1].ItemName)
}

func TestCalculateHistoryNonNegative(t *testing.T) {
	calc := NewCalculator(zerolog.Nop())

	results, _, err := calc.CalculateHistory(dailyDemand("WIDGET", "US01", 30, 10), []ItemMasterRecord{widgetMaster(30)})
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Less(t, r.ServiceFactor, 0.0)
	assert.Equal(t, 0.0, r.SSDemand)
	assert.Equal(t, 20.0, r.SSSupply)
	assert.Equal(t, 20.0, r.TotalSS)
	assert.GreaterOrEqual(t, r.DaysOfCover, 0.0)
}

func TestCalculateHistoryZeroDemand(t *testing.T) {
	calc := NewCalculator(zerolog.Nop())

	results, _, err := calc.CalculateHistory(dailyDemand("WIDGET", "US01", 5, 0), []ItemMasterRecord{widgetMaster(95)})
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Zero(t, results[0].AverageDailyQty)
	assert.Zero(t, results[0].TotalSS)
	assert.Zero(t, results[0].DaysOfCover)
}

func TestCalculateHistoryServiceLevelBounds(t *testing.T) {
	calc := NewCalculator(zerolog.Nop())
	history := dailyDemand("WIDGET", "US01", 30, 10)

	for _, sl := range []float64{0, 100} {
		results, skipped, err := calc.CalculateHistory(history, []ItemMasterRecord{widgetMaster(sl)})
		require.NoError(t, err)
		assert.Empty(t, results)
		require.Len(t, skipped, 1)
		assert.Equal(t, SkipUndefinedServiceLevel, skipped[0].Reason)
	}

	_, _, err := calc.CalculateHistory(history, []ItemMasterRecord{widgetMaster(150)})
	assert.ErrorIs(t, err, ErrDomain)
}

func TestCalculateHistoryDuplicateMasterFirstWins(t *testing.T) {
	calc := NewCalculator(zerolog.Nop())
	second := widgetMaster(95)
	second.SupplyLeadTimeVarDays = 10

	results, _, err := calc.CalculateHistory(dailyDemand("WIDGET", "US01", 30, 10), []ItemMasterRecord{widgetMaster(95), second})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 2, results[0].SupplyLeadTimeVarDays)
}

func TestCalculateHistorySkipsGroupsWithoutDates(t *testing.T) {
	calc := NewCalculator(zerolog.Nop())
	history := []DemandRecord{
		{ItemName: "WIDGET", OrgCode: "US01", RefDate: "", Quantity: 5},
		{ItemName: "LATE", OrgCode: "US01", RefDate: "01/31/2025", Quantity: 5},
	}
	master := []ItemMasterRecord{widgetMaster(95), {ItemName: "LATE", OrgCode: "US01", LeadTimeDays: 1, ServiceLevel: 95}}

	results, skipped, err := calc.CalculateHistory(history, master)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, []SkippedGroup{
		{Key: GroupKey{ItemName: "WIDGET", OrgCode: "US01"}, Reason: SkipNoValidDates},
		{Key: GroupKey{ItemName: "LATE", OrgCode: "US01"}, Reason: SkipDegenerateDuration},
	}, skipped)
}

func TestCalculateHistoryKeysContainingSeparator(t *testing.T) {
	calc := NewCalculator(zerolog.Nop())
	history := append(dailyDemand("A/B", "C", 30, 10), dailyDemand("A", "B/C", 30, 20)...)
	master := []ItemMasterRecord{
		{ItemName: "A/B", OrgCode: "C", LeadTimeDays: 7, SupplyLeadTimeVarDays: 2, ServiceLevel: 95},
		{ItemName: "A", OrgCode: "B/C", LeadTimeDays: 7, SupplyLeadTimeVarDays: 4, ServiceLevel: 95},
	}

	results, skipped, err := calc.CalculateHistory(history, master)
	require.NoError(t, err)
	assert.Empty(t, skipped)
	require.Len(t, results, 2)

	assert.Equal(t, "A/B", results[0].ItemName)
	assert.Equal(t, "C", results[0].OrgCode)
	assert.Equal(t, 2, results[0].SupplyLeadTimeVarDays)
	assert.Equal(t, 10.0, results[0].AverageDailyQty)

	assert.Equal(t, "A", results[1].ItemName)
	assert.Equal(t, "B/C", results[1].OrgCode)
	assert.Equal(t, 4, results[1].SupplyLeadTimeVarDays)
	assert.Equal(t, 20.0, results[1].AverageDailyQty)
}

func TestCalculateHistoryServiceLevelCheckedBeforeDates(t *testing.T) {
	calc := NewCalculator(zerolog.Nop())
	history := []DemandRecord{{ItemName: "WIDGET", OrgCode: "US01", RefDate: "not a date", Quantity: 5}}

	_, _, err := calc.CalculateHistory(history, []ItemMasterRecord{widgetMaster(150)})
	assert.ErrorIs(t, err, ErrDomain)
}
