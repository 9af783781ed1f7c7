package safety_stock

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// Column names of the three upload files.
const (
	ColItemName           = "ITEM_NAME"
	ColOrgCode            = "ORG_CODE"
	ColRefDate            = "REF_DATE"
	ColRefQty             = "REF_QTY"
	ColLeadTime           = "LEAD_TIME"
	ColSupplyLeadTimeVar  = "SUPPLY_LEAD_TIME_VAR_DAYS"
	ColServiceLevel       = "SERVICE_LEVEL"
	ColErrorType          = "ERROR_TYPE"
	ColForecastErrPercent = "FORECAST_ERR_PERCENT"
)

var (
	HistoryColumns    = []string{ColItemName, ColOrgCode, ColRefDate, ColRefQty}
	ItemMasterColumns = []string{ColItemName, ColOrgCode, ColLeadTime, ColSupplyLeadTimeVar, ColServiceLevel}
	ForecastColumns   = []string{ColItemName, ColOrgCode, ColRefDate, ColRefQty, ColErrorType, ColForecastErrPercent}
)

var columnNameSanitizer = strings.NewReplacer(" ", "", "_", "", ".", "", "-", "", "/", "", "\ufeff", "")

func normalizeColumnName(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	return columnNameSanitizer.Replace(name)
}

// Reader parses the upload CSVs into typed records. Rows with malformed
// numbers, negative quantities or an empty key are dropped with a warning;
// a file missing a required column is rejected.
type Reader struct {
	log zerolog.Logger
}

func NewReader(log zerolog.Logger) *Reader {
	return &Reader{log: log.With().Str("component", "csv_reader").Logger()}
}

// table wraps a csv.Reader whose header has been mapped to column indices.
type table struct {
	reader *csv.Reader
	index  map[string]int
	line   int
}

func openTable(r io.Reader, required []string) (*table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty file: %w", ErrMissingColumn)
		}
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	byName := make(map[string]int, len(header))
	for i, h := range header {
		key := normalizeColumnName(h)
		if _, ok := byName[key]; !ok {
			byName[key] = i
		}
	}

	index := make(map[string]int, len(required))
	for _, col := range required {
		i, ok := byName[normalizeColumnName(col)]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
		index[col] = i
	}

	return &table{reader: reader, index: index, line: 1}, nil
}

// next returns the following record, or io.EOF.
func (t *table) next() (row, error) {
	record, err := t.reader.Read()
	if err != nil {
		return row{}, err
	}
	t.line++
	return row{record: record, index: t.index, line: t.line}, nil
}

type row struct {
	record []string
	index  map[string]int
	line   int
}

func (r row) get(col string) string {
	idx, ok := r.index[col]
	if !ok || idx >= len(r.record) {
		return ""
	}
	return strings.TrimSpace(r.record[idx])
}

func (r row) float(col string) (float64, error) {
	v := strings.ReplaceAll(r.get(col), ",", "")
	if v == "" {
		return 0, fmt.Errorf("line %d: %s is empty", r.line, col)
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("line %d: %s: %w", r.line, col, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("line %d: %s is not a finite number", r.line, col)
	}
	return f, nil
}

// int accepts float notation such as "7.0" but not a fractional part.
func (r row) int(col string) (int, error) {
	f, err := r.float(col)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("line %d: %s %v is not a whole number of days", r.line, col, f)
	}
	return int(f), nil
}

func (rd *Reader) skip(file string, r row, err error) {
	rd.log.Warn().Str("file", file).Int("line", r.line).Err(err).Msg("row skipped")
}

// ReadHistory parses HISTORY_DATA.
func (rd *Reader) ReadHistory(r io.Reader) ([]DemandRecord, error) {
	t, err := openTable(r, HistoryColumns)
	if err != nil {
		return nil, fmt.Errorf("history data: %w", err)
	}

	var records []DemandRecord
	for {
		rw, err := t.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("history data: %w", err)
		}

		rec, err := parseDemand(rw)
		if err != nil {
			rd.skip("history", rw, err)
			continue
		}
		records = append(records, rec)
	}

	return records, nil
}

// ReadItemMaster parses ITEM_MASTER.
func (rd *Reader) ReadItemMaster(r io.Reader) ([]ItemMasterRecord, error) {
	t, err := openTable(r, ItemMasterColumns)
	if err != nil {
		return nil, fmt.Errorf("item master: %w", err)
	}

	var records []ItemMasterRecord
	for {
		rw, err := t.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("item master: %w", err)
		}

		rec, err := parseItemMaster(rw)
		if err != nil {
			rd.skip("item_master", rw, err)
			continue
		}
		records = append(records, rec)
	}

	return records, nil
}

// ReadForecast parses FORECAST_DATA.
func (rd *Reader) ReadForecast(r io.Reader) ([]ForecastRecord, error) {
	t, err := openTable(r, ForecastColumns)
	if err != nil {
		return nil, fmt.Errorf("forecast data: %w", err)
	}

	var records []ForecastRecord
	for {
		rw, err := t.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("forecast data: %w", err)
		}

		demand, err := parseDemand(rw)
		if err != nil {
			rd.skip("forecast", rw, err)
			continue
		}
		errPct, err := rw.float(ColForecastErrPercent)
		if err != nil {
			rd.skip("forecast", rw, err)
			continue
		}

		records = append(records, ForecastRecord{
			DemandRecord:         demand,
			ErrorType:            rw.get(ColErrorType),
			ForecastErrorPercent: errPct,
		})
	}

	return records, nil
}

func parseKey(r row) (string, string, error) {
	item, org := r.get(ColItemName), r.get(ColOrgCode)
	if item == "" || org == "" {
		return "", "", fmt.Errorf("line %d: empty %s or %s", r.line, ColItemName, ColOrgCode)
	}
	return item, org, nil
}

func parseDemand(r row) (DemandRecord, error) {
	item, org, err := parseKey(r)
	if err != nil {
		return DemandRecord{}, err
	}
	qty, err := r.float(ColRefQty)
	if err != nil {
		return DemandRecord{}, err
	}
	if qty < 0 {
		return DemandRecord{}, fmt.Errorf("line %d: negative %s %v", r.line, ColRefQty, qty)
	}

	return DemandRecord{
		ItemName: item,
		OrgCode:  org,
		RefDate:  r.get(ColRefDate),
		Quantity: qty,
	}, nil
}

func parseItemMaster(r row) (ItemMasterRecord, error) {
	item, org, err := parseKey(r)
	if err != nil {
		return ItemMasterRecord{}, err
	}
	leadTime, err := r.int(ColLeadTime)
	if err != nil {
		return ItemMasterRecord{}, err
	}
	supplyVar, err := r.int(ColSupplyLeadTimeVar)
	if err != nil {
		return ItemMasterRecord{}, err
	}
	if leadTime < 0 || supplyVar < 0 {
		return ItemMasterRecord{}, fmt.Errorf("line %d: negative lead time", r.line)
	}
	serviceLevel, err := r.float(ColServiceLevel)
	if err != nil {
		return ItemMasterRecord{}, err
	}

	return ItemMasterRecord{
		ItemName:              item,
		OrgCode:               org,
		LeadTimeDays:          leadTime,
		SupplyLeadTimeVarDays: supplyVar,
		ServiceLevel:          serviceLevel,
	}, nil
}
