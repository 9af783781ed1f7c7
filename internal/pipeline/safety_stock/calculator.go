package safety_stock

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Calculator runs the history-based and forecast-based safety stock
// estimators over one upload batch. It holds no state between calls.
type Calculator struct {
	log zerolog.Logger
}

// NewCalculator creates a calculator that reports skipped records and
// groups to log.
func NewCalculator(log zerolog.Logger) *Calculator {
	return &Calculator{log: log.With().Str("component", "safety_stock").Logger()}
}

// serviceFactor converts a service level percentage into a z-score.
// ok is false for exactly 0 or 100, where the factor is unbounded.
func serviceFactor(serviceLevel float64) (factor float64, ok bool, err error) {
	if serviceLevel == 0 || serviceLevel == 100 {
		return 0, false, nil
	}
	factor, err = NormInv(serviceLevel / 100)
	if err != nil {
		return 0, false, fmt.Errorf("service level %v: %w", serviceLevel, err)
	}
	return factor, true, nil
}

func (c *Calculator) lookupMaster(index map[GroupKey]ItemMasterRecord, key GroupKey) (ItemMasterRecord, bool) {
	m, ok := index[key]
	if !ok {
		c.log.Debug().Str("item", key.ItemName).Str("org", key.OrgCode).Msg("no item master row, group skipped")
	}
	return m, ok
}

func (c *Calculator) indexMaster(master []ItemMasterRecord) map[GroupKey]ItemMasterRecord {
	index, duplicates := IndexItemMaster(master)
	if duplicates > 0 {
		c.log.Warn().Int("duplicates", duplicates).Msg("duplicate item master rows ignored")
	}
	return index
}

func (c *Calculator) warnSkip(key GroupKey, reason SkipReason, err error) {
	ev := c.log.Warn().Str("item", key.ItemName).Str("org", key.OrgCode).Str("reason", string(reason))
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Msg("group skipped")
}
