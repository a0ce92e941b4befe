// Package availability turns open slots into bookable start times and the year/month/day
// navigation tree offered to clients.
package availability

import (
	"sort"
	"time"

	"github.com/md-rashed-zaman/workhours/services/schedule-service/internal/schedule"
)

// ValidStartTimes returns every t in open such that t, t+G, ..., t+duration-G are all open.
// The result is sorted; duplicate input slots are ignored.
func ValidStartTimes(cfg schedule.Config, open []time.Time, duration time.Duration) ([]time.Time, error) {
	need, err := cfg.SlotsNeeded(duration)
	if err != nil {
		return nil, err
	}
	slots := sortedUnique(open)
	step := cfg.Granularity()

	var starts []time.Time
	runStart := 0
	for i := 1; i <= len(slots); i++ {
		if i < len(slots) && slots[i].Sub(slots[i-1]) == step {
			continue
		}
		// slots[runStart:i] is a maximal contiguous run.
		for j := runStart; j+need <= i; j++ {
			starts = append(starts, slots[j])
		}
		runStart = i
	}
	return starts, nil
}

func sortedUnique(in []time.Time) []time.Time {
	out := make([]time.Time, len(in))
	copy(out, in)
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	n := 0
	for i, t := range out {
		if i > 0 && t.Equal(out[n-1]) {
			continue
		}
		out[n] = t
		n++
	}
	return out[:n]
}

// Covering returns the slot start times an appointment at start of the given length consumes.
func Covering(cfg schedule.Config, start time.Time, duration time.Duration) ([]time.Time, error) {
	need, err := cfg.SlotsNeeded(duration)
	if err != nil {
		return nil, err
	}
	out := make([]time.Time, need)
	for i := range out {
		out[i] = start.Add(time.Duration(i) * cfg.Granularity()).UTC()
	}
	return out, nil
}
