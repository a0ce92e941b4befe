// Package schedule holds the values shared by the day grid, the time line, the slot matcher
// and the committer: the slot granularity, the business timezone and calendar dates.
package schedule

import (
	"errors"
	"fmt"
	"time"
)

const (
	DefaultGranularityMinutes = 30
	minutesPerDay             = 24 * 60
)

var ErrInvalidConfig = errors.New("invalid schedule config")

// Config is the process-wide slot configuration. The same value must be passed to every
// resolver, matcher and committer call.
type Config struct {
	GranularityMinutes int
	// Location is the business timezone; nil means UTC.
	Location *time.Location
}

// NewConfig validates granularity and returns a Config.
func NewConfig(granularityMinutes int, loc *time.Location) (Config, error) {
	cfg := Config{GranularityMinutes: granularityMinutes, Location: loc}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	g := c.GranularityMinutes
	if g <= 0 || g > minutesPerDay || minutesPerDay%g != 0 {
		return fmt.Errorf("%w: granularity %d must divide 1440", ErrInvalidConfig, g)
	}
	return nil
}

func (c Config) Granularity() time.Duration {
	return time.Duration(c.GranularityMinutes) * time.Minute
}

func (c Config) Loc() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

// Points is the length of a day's time line: one point per granularity step from 00:00
// through 24:00 inclusive.
func (c Config) Points() int {
	return minutesPerDay/c.GranularityMinutes + 1
}

// PointLabel renders point i as "HH:MM"; the last point is "24:00".
func (c Config) PointLabel(i int) string {
	mins := i * c.GranularityMinutes
	return fmt.Sprintf("%02d:%02d", mins/60, mins%60)
}

// SlotsNeeded is how many contiguous slots a service of the given length consumes.
func (c Config) SlotsNeeded(d time.Duration) (int, error) {
	g := c.Granularity()
	if d <= 0 || d%g != 0 {
		return 0, fmt.Errorf("%w: duration %s is not a positive multiple of %s", ErrInvalidConfig, d, g)
	}
	return int(d / g), nil
}

// PointRange is a closed run of selected time-line points [Start, End]. As working hours it
// means the half-open interval [Start*G, End*G).
type PointRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// SlotsFor converts working ranges on date into UTC slot start times. Each range yields
// one slot per point in [Start, End).
func (c Config) SlotsFor(date Date, ranges []PointRange) []time.Time {
	loc := c.Loc()
	var out []time.Time
	seen := make(map[time.Time]struct{})
	for _, r := range ranges {
		for p := r.Start; p < r.End; p++ {
			t := time.Date(date.Year, date.Month, date.Day, 0, p*c.GranularityMinutes, 0, 0, loc).UTC()
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}
