package safety_stock

import (
	"errors"
	"time"
)

var (
	// ErrDomain is returned by NormInv for probabilities outside [0, 1].
	ErrDomain = errors.New("probability outside [0, 1]")
	// ErrNoValidDates means none of a group's records carried a parseable REF_DATE.
	ErrNoValidDates = errors.New("no parseable reference dates")
	// ErrDegenerateDuration means the demand window spans zero or fewer days.
	ErrDegenerateDuration = errors.New("non-positive duration")
	// ErrMissingColumn is returned by the CSV readers when a required header is absent.
	ErrMissingColumn = errors.New("missing required column")
)

// GroupKey identifies one calculation unit.
type GroupKey struct {
	ItemName string `json:"item_name"`
	OrgCode  string `json:"org_code"`
}

func (k GroupKey) String() string {
	return k.ItemName + "/" + k.OrgCode
}

// DemandRecord is a single HISTORY_DATA row. RefDate is kept as uploaded
// and parsed by the series builder.
type DemandRecord struct {
	ItemName string
	OrgCode  string
	RefDate  string
	Quantity float64
}

func (r DemandRecord) Key() GroupKey {
	return GroupKey{ItemName: r.ItemName, OrgCode: r.OrgCode}
}

// ForecastRecord is a single FORECAST_DATA row.
type ForecastRecord struct {
	DemandRecord
	ErrorType            string
	ForecastErrorPercent float64
}

// ItemMasterRecord holds the replenishment parameters for one item-org pair.
type ItemMasterRecord struct {
	ItemName              string
	OrgCode               string
	LeadTimeDays          int
	SupplyLeadTimeVarDays int
	ServiceLevel          float64 // percentage, 0-100
}

func (r ItemMasterRecord) Key() GroupKey {
	return GroupKey{ItemName: r.ItemName, OrgCode: r.OrgCode}
}

// DailySeries is the per-day demand sequence of one group.
type DailySeries struct {
	Start                time.Time
	PeriodEnd            time.Time
	DurationDays         int
	TotalQuantity        float64
	AverageDailyQuantity float64
	Values               []float64
	SkippedRecords       int // records dropped for an unparseable date
}

// HistoryResult is one row of SAFETY_STOCK_DATA.
type HistoryResult struct {
	ItemName              string  `json:"item_name" db:"item_name"`
	OrgCode               string  `json:"org_code" db:"org_code"`
	AverageDailyQty       float64 `json:"average_daily_qty" db:"average_daily_qty"`
	StdDev                float64 `json:"std_dev" db:"std_dev"`
	LeadTime              int     `json:"lead_time" db:"lead_time"`
	SupplyLeadTimeVarDays int     `json:"supply_lead_time_var_days" db:"supply_lead_time_var_days"`
	ServiceLevel          float64 `json:"service_level" db:"service_level"`
	ServiceFactor         float64 `json:"service_factor" db:"service_factor"`
	SSSupply              float64 `json:"ss_sup" db:"ss_sup"`
	SSDemand              float64 `json:"ss_demand" db:"ss_demand"`
	TotalSS               float64 `json:"total_ss" db:"total_ss"`
	DaysOfCover           float64 `json:"days_of_cover" db:"days_of_cover"`
}

// ForecastResult is one row of SAFETY_STOCK_FCST_BASED.
type ForecastResult struct {
	ItemName           string  `json:"item_name" db:"item_name"`
	OrgCode            string  `json:"org_code" db:"org_code"`
	ForecastErrPercent float64 `json:"forecast_err_percent" db:"forecast_err_percent"`
	AvgDailyForecast   int     `json:"avg_daily_fcst" db:"avg_daily_fcst"`
	LeadTime           int     `json:"lead_time" db:"lead_time"`
	ServiceLevel       float64 `json:"service_level" db:"service_level"`
	ServiceFactor      float64 `json:"service_factor" db:"service_factor"`
	SafetyStock        int     `json:"safety_stock" db:"safety_stock"`
	DaysOfCover        int     `json:"days_of_cover" db:"days_of_cover"`
}

// SkipReason explains why a group produced no result row.
type SkipReason string

const (
	SkipMissingItemMaster     SkipReason = "missing_item_master"
	SkipNoValidDates          SkipReason = "no_valid_dates"
	SkipDegenerateDuration    SkipReason = "degenerate_duration"
	SkipUndefinedServiceLevel SkipReason = "undefined_service_level"
)

// SkippedGroup records a group dropped from the output. Skips are not errors.
type SkippedGroup struct {
	Key    GroupKey   `json:"key"`
	Reason SkipReason `json:"reason"`
}
