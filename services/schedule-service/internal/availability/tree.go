package availability

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/md-rashed-zaman/workhours/services/schedule-service/internal/schedule"
)

// Tree groups valid start times by calendar date in the business timezone. Years, months and
// days without any start time are never present.
type Tree struct {
	loc   *time.Location
	years map[int]map[time.Month]map[int][]time.Time
}

// BuildTree computes valid start times per local day for a service of the given length.
func BuildTree(cfg schedule.Config, open []time.Time, duration time.Duration) (Tree, error) {
	loc := cfg.Loc()
	byDay := make(map[schedule.Date][]time.Time)
	for _, t := range open {
		d := schedule.DateOf(t.In(loc))
		byDay[d] = append(byDay[d], t)
	}

	tree := Tree{loc: loc, years: make(map[int]map[time.Month]map[int][]time.Time)}
	for d, slots := range byDay {
		starts, err := ValidStartTimes(cfg, slots, duration)
		if err != nil {
			return Tree{}, err
		}
		if len(starts) == 0 {
			continue
		}
		months, ok := tree.years[d.Year]
		if !ok {
			months = make(map[time.Month]map[int][]time.Time)
			tree.years[d.Year] = months
		}
		days, ok := months[d.Month]
		if !ok {
			days = make(map[int][]time.Time)
			months[d.Month] = days
		}
		for _, s := range starts {
			days[d.Day] = append(days[d.Day], s.In(loc))
		}
	}
	return tree, nil
}

func (t Tree) Empty() bool { return len(t.years) == 0 }

func (t Tree) Location() *time.Location {
	if t.loc == nil {
		return time.UTC
	}
	return t.loc
}

func (t Tree) Years() []int {
	return sortedKeys(t.years)
}

func (t Tree) Months(year int) []time.Month {
	return sortedKeys(t.years[year])
}

func (t Tree) Days(year int, month time.Month) []int {
	return sortedKeys(t.years[year][month])
}

// Times returns the start times offered on one day, in the tree's location.
func (t Tree) Times(year int, month time.Month, day int) []time.Time {
	return t.years[year][month][day]
}

// Contains reports whether start is still offered.
func (t Tree) Contains(start time.Time) bool {
	return Check(t, start) == OK
}

// MarshalJSON renders {"2026": {"10": {"17": ["2026-10-17T09:00:00+03:00", ...]}}}.
func (t Tree) MarshalJSON() ([]byte, error) {
	if t.years == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(t.years)
}

func sortedKeys[K ~int, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
