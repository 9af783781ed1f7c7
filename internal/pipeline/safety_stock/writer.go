package safety_stock

import (
	"encoding/csv"
	"fmt"
	"io"
)

// Upload and result file names as used by the calculation folder layout.
const (
	HistoryDataFile    = "HISTORY_DATA.csv"
	ItemMasterFile     = "ITEM_MASTER.csv"
	ForecastDataFile   = "FORECAST_DATA.csv"
	HistoryResultFile  = "SAFETY_STOCK_DATA.csv"
	ForecastResultFile = "SAFETY_STOCK_FCST_BASED.csv"
)

var historyResultHeader = []string{
	"ITEM_NAME",
	"ORG_CODE",
	"AVERAGE_DAILY_QTY",
	"STD_DEV",
	"LEAD_TIME",
	"SUPPLY_LEAD_TIME_VAR_DAYS",
	"SERVICE_LEVEL",
	"SERVICE_FACTOR",
	"SS_SUP",
	"SS_DEMAND",
	"TOTAL_SS",
	"DAYS_OF_COVER",
}

var forecastResultHeader = []string{
	"ITEM_NAME",
	"ORG_CODE",
	"FORECAST_ERR_PERCENT",
	"AVG_DAILY_FCST",
	"LEAD_TIME",
	"SERVICE_LEVEL",
	"SERVICE_FACTOR",
	"SAFETY_STOCK",
	"DAYS_OF_COVER",
}

// WriteHistoryCSV writes rows as SAFETY_STOCK_DATA with two-decimal floats.
func WriteHistoryCSV(w io.Writer, rows []HistoryResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(historyResultHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, r := range rows {
		record := []string{
			r.ItemName,
			r.OrgCode,
			formatFixed(r.AverageDailyQty, 2),
			formatFixed(r.StdDev, 2),
			formatInt(r.LeadTime),
			formatInt(r.SupplyLeadTimeVarDays),
			formatFixed(r.ServiceLevel, 2),
			formatFixed(r.ServiceFactor, 2),
			formatFixed(r.SSSupply, 2),
			formatFixed(r.SSDemand, 2),
			formatFixed(r.TotalSS, 2),
			formatFixed(r.DaysOfCover, 2),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write row %s/%s: %w", r.ItemName, r.OrgCode, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteForecastCSV writes rows as SAFETY_STOCK_FCST_BASED.
func WriteForecastCSV(w io.Writer, rows []ForecastResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(forecastResultHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, r := range rows {
		record := []string{
			r.ItemName,
			r.OrgCode,
			formatFixed(r.ForecastErrPercent, 2),
			formatInt(r.AvgDailyForecast),
			formatInt(r.LeadTime),
			formatFixed(r.ServiceLevel, 2),
			formatFixed(r.ServiceFactor, 2),
			formatInt(r.SafetyStock),
			formatInt(r.DaysOfCover),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write row %s/%s: %w", r.ItemName, r.OrgCode, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
