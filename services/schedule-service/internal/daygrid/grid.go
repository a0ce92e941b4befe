// Package daygrid implements the operator's month calendar: a state array of aggregate and
// day cells where clicking an aggregate cascades to its member days.
//
// Layout, for W week rows (4 <= W <= 6):
//
//	[0]      all
//	[1..7]   monday .. sunday column aggregates
//	[8k]     week{k} row aggregate, k = 1..W
//	[8k+1..] the seven days of that row, Monday first
package daygrid

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/workhours/services/schedule-service/internal/schedule"
)

const (
	rowWidth = 8
	minWeeks = 4
	maxWeeks = 6
	allIndex = 0
)

var (
	ErrInvalidGrid  = errors.New("invalid day grid")
	ErrInvalidClick = errors.New("invalid day grid click")
	ErrMonthInPast  = errors.New("month is entirely in the past")
)

// Grid is a month view. It is derived from the selected date set and can be rebuilt at any
// time.
type Grid []Cell

func (g Grid) weeks() int { return len(g)/rowWidth - 1 }

func weekdayIndex(col int) int     { return 1 + col }
func weekIndex(row int) int        { return rowWidth * (row + 1) }
func dayIndex(row, col int) int    { return weekIndex(row) + 1 + col }
func columnOf(wd time.Weekday) int { return (int(wd) + 6) % 7 }

// Decode parses a persisted state array and checks every grid invariant.
func Decode(data []byte) (Grid, error) {
	var g Grid
	if err := json.Unmarshal(data, &g); err != nil {
		if errors.Is(err, ErrInvalidGrid) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidGrid, err)
	}
	if err := Validate(g); err != nil {
		return nil, err
	}
	return g, nil
}

// Rebuild lays out the month (year, month) from the global selection. Days before today are
// not available; a zero year means the month containing today.
func Rebuild(selected schedule.DateSet, today schedule.Date, year int, month time.Month) (Grid, error) {
	if year == 0 {
		year, month = today.Year, today.Month
	}
	if month < time.January || month > time.December {
		return nil, fmt.Errorf("%w: month %d", ErrInvalidGrid, month)
	}

	first := schedule.Date{Year: year, Month: month, Day: 1}
	days := daysIn(year, month)
	last := schedule.Date{Year: year, Month: month, Day: days}
	if last.Before(today) {
		return nil, fmt.Errorf("%w: %04d-%02d", ErrMonthInPast, year, int(month))
	}

	offset := columnOf(first.Weekday())
	weeks := (offset + days + 6) / 7

	g := make(Grid, rowWidth*(1+weeks))
	g[allIndex] = Cell{ID: GroupIdentity(All)}
	for col := 0; col < 7; col++ {
		g[weekdayIndex(col)] = Cell{ID: GroupIdentity(weekdayGroup(col))}
	}
	for row := 0; row < weeks; row++ {
		g[weekIndex(row)] = Cell{ID: GroupIdentity(weekGroup(row))}
		for col := 0; col < 7; col++ {
			n := row*7 + col - offset + 1
			if n < 1 || n > days {
				g[dayIndex(row, col)] = padding()
				continue
			}
			d := schedule.Date{Year: year, Month: month, Day: n}
			status := NotSelected
			switch {
			case d.Before(today):
				status = NotAvailable
			case selected.Has(d):
				status = Selected
			}
			g[dayIndex(row, col)] = Cell{Status: status, ID: DateIdentity(d)}
		}
	}
	g.recompute()
	mustValid(g)
	return g, nil
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// IndexOf returns the position of the cell with the given identity, or -1.
func (g Grid) IndexOf(id Identity) int {
	for i, c := range g {
		if !id.IsZero() && c.ID == id {
			return i
		}
	}
	return -1
}

// Dates returns the dates currently shown with the given status.
func (g Grid) Dates(status Status) []schedule.Date {
	var out []schedule.Date
	g.eachDay(func(_, _ int, c Cell) {
		if d, ok := c.ID.Date(); ok && c.Status == status {
			out = append(out, d)
		}
	})
	return out
}

// Diff reports the dates that entered and left Selected between two views of the same month.
func Diff(before, after Grid) (added, removed []schedule.Date) {
	was := make(map[schedule.Date]Status, len(before))
	before.eachDay(func(_, _ int, c Cell) {
		if d, ok := c.ID.Date(); ok {
			was[d] = c.Status
		}
	})
	after.eachDay(func(_, _ int, c Cell) {
		d, ok := c.ID.Date()
		if !ok {
			return
		}
		prev := was[d]
		switch {
		case c.Status == Selected && prev != Selected:
			added = append(added, d)
		case c.Status != Selected && prev == Selected:
			removed = append(removed, d)
		}
	})
	return added, removed
}

func (g Grid) clone() Grid {
	out := make(Grid, len(g))
	copy(out, g)
	return out
}

func (g Grid) eachDay(fn func(row, col int, c Cell)) {
	for row := 0; row < g.weeks(); row++ {
		for col := 0; col < 7; col++ {
			fn(row, col, g[dayIndex(row, col)])
		}
	}
}
