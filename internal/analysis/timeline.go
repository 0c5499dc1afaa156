package analysis

import (
	"math"
	"strconv"
	"time"

	"github.com/KaramelBytes/edaloom-cli/internal/dataset"
)

// MonthCount is the number of intervals active during one calendar month.
type MonthCount struct {
	Month  time.Time `json:"month"`
	Active int       `json:"active"`
}

// Label formats the month as YYYY-MM.
func (m MonthCount) Label() string { return m.Month.Format("2006-01") }

func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// ActiveByMonthTimes counts, for each calendar month between the earliest
// start and the latest effective end, the intervals with start <= month end
// and effective end >= month start. A zero start excludes the interval; a
// zero end means still open at now. Comparison is by calendar day.
func ActiveByMonthTimes(starts, ends []time.Time, now time.Time) []MonthCount {
	type span struct{ from, to time.Time }
	var spans []span
	var lo, hi time.Time
	for i, s := range starts {
		if s.IsZero() {
			continue
		}
		e := now
		if i < len(ends) && !ends[i].IsZero() {
			e = ends[i]
		}
		sp := span{from: day(s), to: day(e)}
		spans = append(spans, sp)
		if lo.IsZero() || sp.from.Before(lo) {
			lo = sp.from
		}
		if hi.IsZero() || sp.to.After(hi) {
			hi = sp.to
		}
	}
	if len(spans) == 0 {
		return nil
	}
	var out []MonthCount
	last := monthStart(hi)
	for m := monthStart(lo); !m.After(last); m = m.AddDate(0, 1, 0) {
		end := m.AddDate(0, 1, -1)
		mc := MonthCount{Month: m}
		for _, sp := range spans {
			if !sp.from.After(end) && !sp.to.Before(m) {
				mc.Active++
			}
		}
		out = append(out, mc)
	}
	return out
}

// ActiveByMonth parses the start and end columns and counts active records
// per month. Unparsable dates are treated as absent. An empty end column
// name means every interval is open.
func ActiveByMonth(d *dataset.Dataset, startCol, endCol string, now time.Time) ([]MonthCount, error) {
	starts, err := d.Times(startCol)
	if err != nil {
		return nil, err
	}
	ends := make([]time.Time, len(starts))
	if endCol != "" {
		if ends, err = d.Times(endCol); err != nil {
			return nil, err
		}
	}
	return ActiveByMonthTimes(starts, ends, now), nil
}

// DurationDays returns whole days from start to end (or now when end is
// absent) for every row. Rows without a start get an empty cell.
func DurationDays(d *dataset.Dataset, startCol, endCol string, now time.Time) ([]string, error) {
	starts, err := d.Times(startCol)
	if err != nil {
		return nil, err
	}
	ends, err := d.Times(endCol)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(starts))
	for i, s := range starts {
		if s.IsZero() {
			continue
		}
		e := now
		if !ends[i].IsZero() {
			e = ends[i]
		}
		out[i] = strconv.Itoa(daysBetween(s, e))
	}
	return out, nil
}

// AgeYears returns floor(days/365) between the date in col and now. Rows
// without a date get an empty cell.
func AgeYears(d *dataset.Dataset, col string, now time.Time) ([]string, error) {
	dob, err := d.Times(col)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(dob))
	for i, t := range dob {
		if t.IsZero() {
			continue
		}
		days := daysBetween(t, now)
		out[i] = strconv.Itoa(int(math.Floor(float64(days) / 365)))
	}
	return out, nil
}

// daysBetween counts calendar days from a to b, each read in its own zone.
func daysBetween(a, b time.Time) int {
	return int(math.Floor(day(b).Sub(day(a)).Hours() / 24))
}
