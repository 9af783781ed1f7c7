package safety_stock

import (
	"fmt"
	"math"
)

// forecastErrorMultiplier and forecastHorizonDays are the fixed terms of
// the forecast-based formula.
const (
	forecastErrorMultiplier = 1.25
	forecastHorizonDays     = 30
)

// CalculateForecast computes the forecast-based safety stock of every
// item-org group in forecast that has an item master row.
//
//	AVG_DAILY_FCST = round(sum(qty) / sum(days to month end))
//	SAFETY_STOCK   = round(1.25 * z * minErr/100 * sqrt(30) * avg * sqrt(leadTime))
//	DAYS_OF_COVER  = round(SAFETY_STOCK / avg)
//
// The forecast error used is the smallest FORECAST_ERR_PERCENT in the group.
func (c *Calculator) CalculateForecast(forecast []ForecastRecord, master []ItemMasterRecord) ([]ForecastResult, []SkippedGroup, error) {
	index := c.indexMaster(master)
	order, groups := GroupForecast(forecast)

	results := make([]ForecastResult, 0, len(order))
	var skipped []SkippedGroup

	for _, key := range order {
		m, ok := c.lookupMaster(index, key)
		if !ok {
			skipped = append(skipped, SkippedGroup{Key: key, Reason: SkipMissingItemMaster})
			continue
		}

		factor, ok, err := serviceFactor(m.ServiceLevel)
		if err != nil {
			return nil, nil, fmt.Errorf("forecast %s: %w", key, err)
		}
		if !ok {
			c.warnSkip(key, SkipUndefinedServiceLevel, nil)
			skipped = append(skipped, SkippedGroup{Key: key, Reason: SkipUndefinedServiceLevel})
			continue
		}

		var (
			totalQty       float64
			totalRemaining int
			minErr         float64
			valid          int
			invalid        int
		)
		for _, rec := range groups[key] {
			day, err := ParseRefDate(rec.RefDate)
			if err != nil {
				invalid++
				continue
			}
			totalQty += rec.Quantity
			totalRemaining += daysBetween(day, MonthEnd(day))
			if valid == 0 || rec.ForecastErrorPercent < minErr {
				minErr = rec.ForecastErrorPercent
			}
			valid++
		}

		if invalid > 0 {
			c.log.Warn().
				Str("item", key.ItemName).
				Str("org", key.OrgCode).
				Int("records", invalid).
				Msg("forecast records with unparseable REF_DATE skipped")
		}
		if valid == 0 {
			c.warnSkip(key, SkipNoValidDates, nil)
			skipped = append(skipped, SkippedGroup{Key: key, Reason: SkipNoValidDates})
			continue
		}
		if totalRemaining <= 0 {
			c.warnSkip(key, SkipDegenerateDuration, nil)
			skipped = append(skipped, SkippedGroup{Key: key, Reason: SkipDegenerateDuration})
			continue
		}

		avg := int(math.RoundToEven(totalQty / float64(totalRemaining)))

		safetyStock := roundNonNegative(forecastErrorMultiplier * factor * (minErr / 100) *
			math.Sqrt(forecastHorizonDays) * float64(avg) * math.Sqrt(float64(m.LeadTimeDays)))

		daysOfCover := 0
		if avg != 0 {
			daysOfCover = int(math.RoundToEven(float64(safetyStock) / float64(avg)))
		}

		results = append(results, ForecastResult{
			ItemName:           key.ItemName,
			OrgCode:            key.OrgCode,
			ForecastErrPercent: minErr,
			AvgDailyForecast:   avg,
			LeadTime:           m.LeadTimeDays,
			ServiceLevel:       m.ServiceLevel,
			ServiceFactor:      factor,
			SafetyStock:        safetyStock,
			DaysOfCover:        daysOfCover,
		})
	}

	return results, skipped, nil
}
