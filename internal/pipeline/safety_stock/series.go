package safety_stock

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// RefDateLayout is the layout REF_DATE values are expected in.
const RefDateLayout = "01/02/2006"

// ParseRefDate parses a REF_DATE value as MM/DD/YYYY, falling back to a
// generic parse. The result is a UTC calendar date.
func ParseRefDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty reference date")
	}

	t, err := time.Parse(RefDateLayout, value)
	if err != nil {
		t, err = dateparse.ParseIn(value, time.UTC)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse reference date %q: %w", value, err)
		}
	}

	return truncateDay(t), nil
}

// MonthEnd returns the last calendar day of the month containing t.
func MonthEnd(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC)
}

// daysBetween is the whole-day span from a to b, both calendar dates.
func daysBetween(a, b time.Time) int {
	return int(math.Floor(b.Sub(a).Hours() / 24))
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// BuildDailySeries turns one group's records into a day-by-day series that
// runs from the earliest record date to the end of the month of the latest
// one. Days without records contribute a single zero; a day with several
// records contributes one entry per record.
func BuildDailySeries(records []DemandRecord) (DailySeries, error) {
	series := DailySeries{}

	byDay := make(map[time.Time][]float64, len(records))
	var minDate, maxDate time.Time
	valid := 0

	for _, rec := range records {
		day, err := ParseRefDate(rec.RefDate)
		if err != nil {
			series.SkippedRecords++
			continue
		}

		if valid == 0 || day.Before(minDate) {
			minDate = day
		}
		if valid == 0 || day.After(maxDate) {
			maxDate = day
		}
		valid++

		series.TotalQuantity += rec.Quantity
		byDay[day] = append(byDay[day], rec.Quantity)
	}

	if valid == 0 {
		return series, ErrNoValidDates
	}

	series.Start = minDate
	series.PeriodEnd = MonthEnd(maxDate)
	series.DurationDays = daysBetween(minDate, series.PeriodEnd)
	if series.DurationDays <= 0 {
		return series, fmt.Errorf("%d days from %s to %s: %w",
			series.DurationDays, minDate.Format("2006-01-02"), series.PeriodEnd.Format("2006-01-02"), ErrDegenerateDuration)
	}

	series.AverageDailyQuantity = math.Ceil(series.TotalQuantity / float64(series.DurationDays))

	series.Values = make([]float64, 0, series.DurationDays+1+valid)
	for day := minDate; !day.After(series.PeriodEnd); day = day.AddDate(0, 0, 1) {
		qtys, ok := byDay[day]
		if !ok {
			series.Values = append(series.Values, 0)
			continue
		}
		series.Values = append(series.Values, qtys...)
	}

	return series, nil
}

// populationStats returns the mean and the population (divide by N)
// standard deviation of values.
func populationStats(values []float64) (mean, stdDev float64) {
	if len(values) == 0 {
		return 0, 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean = sum / float64(len(values))

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}

	return mean, math.Sqrt(sq / float64(len(values)))
}
