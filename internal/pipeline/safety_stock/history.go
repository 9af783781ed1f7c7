package safety_stock

import (
	"errors"
	"fmt"
	"math"
)

// CalculateHistory computes the history-based safety stock of every
// item-org group in history that has an item master row.
//
//	SS_SUP      = ceil(avgDaily * supplyVar)
//	SS_DEMAND   = ceil(stdDev * z * sqrt(leadTime + supplyVar))
//	TOTAL_SS    = SS_SUP + SS_DEMAND
//	DAYS_COVER  = TOTAL_SS / avgDaily
//
// Groups that cannot be computed are returned in skipped. The error is
// non-nil only when a service level lies outside [0, 100].
func (c *Calculator) CalculateHistory(history []DemandRecord, master []ItemMasterRecord) ([]HistoryResult, []SkippedGroup, error) {
	index := c.indexMaster(master)
	order, groups := GroupDemand(history)

	results := make([]HistoryResult, 0, len(order))
	var skipped []SkippedGroup

	for _, key := range order {
		m, ok := c.lookupMaster(index, key)
		if !ok {
			skipped = append(skipped, SkippedGroup{Key: key, Reason: SkipMissingItemMaster})
			continue
		}

		factor, ok, err := serviceFactor(m.ServiceLevel)
		if err != nil {
			return nil, nil, fmt.Errorf("history %s: %w", key, err)
		}
		if !ok {
			c.warnSkip(key, SkipUndefinedServiceLevel, nil)
			skipped = append(skipped, SkippedGroup{Key: key, Reason: SkipUndefinedServiceLevel})
			continue
		}

		series, err := BuildDailySeries(groups[key])
		if series.SkippedRecords > 0 {
			c.log.Warn().
				Str("item", key.ItemName).
				Str("org", key.OrgCode).
				Int("records", series.SkippedRecords).
				Msg("history records with unparseable REF_DATE skipped")
		}
		if err != nil {
			reason := SkipNoValidDates
			if errors.Is(err, ErrDegenerateDuration) {
				reason = SkipDegenerateDuration
			}
			c.warnSkip(key, reason, err)
			skipped = append(skipped, SkippedGroup{Key: key, Reason: reason})
			continue
		}

		_, stdDev := populationStats(series.Values)
		avg := series.AverageDailyQuantity

		ssSupply := ceilNonNegative(avg * float64(m.SupplyLeadTimeVarDays))
		ssDemand := ceilNonNegative(stdDev * factor * math.Sqrt(float64(m.LeadTimeDays+m.SupplyLeadTimeVarDays)))
		total := ssSupply + ssDemand

		var daysOfCover float64
		if avg != 0 {
			daysOfCover = total / avg
		}

		results = append(results, HistoryResult{
			ItemName:              key.ItemName,
			OrgCode:               key.OrgCode,
			AverageDailyQty:       avg,
			StdDev:                stdDev,
			LeadTime:              m.LeadTimeDays,
			SupplyLeadTimeVarDays: m.SupplyLeadTimeVarDays,
			ServiceLevel:          m.ServiceLevel,
			ServiceFactor:         factor,
			SSSupply:              ssSupply,
			SSDemand:              ssDemand,
			TotalSS:               total,
			DaysOfCover:           daysOfCover,
		})
	}

	return results, skipped, nil
}
