package availability

import (
	"fmt"
	"time"
)

// Verdict says whether a previously offered start time is still bookable and, if not, the
// most specific navigation level that still has something to offer.
type Verdict uint8

const (
	OK Verdict = iota
	// TimeGone: the day still has other start times.
	TimeGone
	// DayGone: the month still has other days.
	DayGone
	// MonthGone: the year still has other months.
	MonthGone
	// YearGone: the year has nothing left; start over from the list of years.
	YearGone
)

var verdictNames = [...]string{
	OK:        "ok",
	TimeGone:  "time_gone",
	DayGone:   "day_gone",
	MonthGone: "month_gone",
	YearGone:  "year_gone",
}

func (v Verdict) String() string {
	if int(v) < len(verdictNames) {
		return verdictNames[v]
	}
	return fmt.Sprintf("verdict(%d)", uint8(v))
}

func (v Verdict) MarshalText() ([]byte, error) { return []byte(v.String()), nil }

// Level is the navigation step the client should be sent back to.
func (v Verdict) Level() string {
	switch v {
	case OK:
		return "confirm"
	case TimeGone:
		return "time"
	case DayGone:
		return "day"
	case MonthGone:
		return "month"
	default:
		return "year"
	}
}

// Check re-validates start against a freshly built tree.
func Check(t Tree, start time.Time) Verdict {
	local := start.In(t.Location())
	months, ok := t.years[local.Year()]
	if !ok {
		return YearGone
	}
	days, ok := months[local.Month()]
	if !ok {
		return MonthGone
	}
	times, ok := days[local.Day()]
	if !ok {
		return DayGone
	}
	for _, s := range times {
		if s.Equal(start) {
			return OK
		}
	}
	return TimeGone
}

// Options returns what the client can pick from at the level v sends them back to.
func Options(t Tree, start time.Time, v Verdict) []string {
	local := start.In(t.Location())
	var out []string
	switch v {
	case TimeGone:
		for _, s := range t.Times(local.Year(), local.Month(), local.Day()) {
			out = append(out, s.Format(time.RFC3339))
		}
	case DayGone:
		for _, d := range t.Days(local.Year(), local.Month()) {
			out = append(out, fmt.Sprintf("%04d-%02d-%02d", local.Year(), int(local.Month()), d))
		}
	case MonthGone:
		for _, m := range t.Months(local.Year()) {
			out = append(out, fmt.Sprintf("%04d-%02d", local.Year(), int(m)))
		}
	case YearGone:
		for _, y := range t.Years() {
			out = append(out, fmt.Sprintf("%04d", y))
		}
	}
	return out
}
