package daygrid

import (
	"fmt"

	"github.com/md-rashed-zaman/workhours/services/schedule-service/internal/schedule"
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidGrid}, args...)...)
}

func mustValid(g Grid) {
	if err := Validate(g); err != nil {
		panic(fmt.Sprintf("daygrid: post-condition violated: %v", err))
	}
}

// Validate checks that g is a well formed month view:
//   - length is 8*(1+W) with W in [4,6];
//   - aggregate cells sit at their fixed positions in order (all, monday..sunday, week1..weekW);
//   - day cells carry a date in their weekday column, padding cells carry nothing;
//   - the dates are the consecutive days 1..N of a single month with no padding between them;
//   - no row and no column is padding only;
//   - not-available days form a prefix of the month;
//   - every aggregate equals the reduction of its members;
//   - at least one day is togglable.
func Validate(g Grid) error {
	if len(g)%rowWidth != 0 || len(g) < rowWidth*(1+minWeeks) || len(g) > rowWidth*(1+maxWeeks) {
		return invalid("length %d", len(g))
	}
	if err := checkLayout(g); err != nil {
		return err
	}
	if err := checkDays(g); err != nil {
		return err
	}
	return checkAggregates(g)
}

func checkLayout(g Grid) error {
	expectGroup := func(i int, want Group) error {
		c := g[i]
		got, ok := c.ID.Group()
		if !ok || got != want {
			return invalid("cell %d must be %s, got %q", i, want, c.ID.String())
		}
		if c.Status == Ignore {
			return invalid("aggregate %s cannot be padding", want)
		}
		return nil
	}
	if err := expectGroup(allIndex, All); err != nil {
		return err
	}
	for col := 0; col < 7; col++ {
		if err := expectGroup(weekdayIndex(col), weekdayGroup(col)); err != nil {
			return err
		}
	}
	for row := 0; row < g.weeks(); row++ {
		if err := expectGroup(weekIndex(row), weekGroup(row)); err != nil {
			return err
		}
	}

	var err error
	g.eachDay(func(row, col int, c Cell) {
		if err != nil {
			return
		}
		if _, isGroup := c.ID.Group(); isGroup {
			err = invalid("aggregate %q in day position %d", c.ID.String(), dayIndex(row, col))
			return
		}
		d, isDate := c.ID.Date()
		switch {
		case c.Status == Ignore && !c.ID.IsZero():
			err = invalid("padding cell %d carries %q", dayIndex(row, col), c.ID.String())
		case c.Status != Ignore && !isDate:
			err = invalid("day cell %d has no date", dayIndex(row, col))
		case isDate && columnOf(d.Weekday()) != col:
			err = invalid("%s is a %s but sits in the %s column", d, d.Weekday(), weekdayGroup(col))
		}
	})
	return err
}

func checkDays(g Grid) error {
	weeks := g.weeks()
	rowHasDay := make([]bool, weeks)
	colHasDay := make([]bool, 7)

	var (
		prev      schedule.Date
		prevPos   = -1
		first     schedule.Date
		seenOpen  bool
		togglable bool
		err       error
	)
	g.eachDay(func(row, col int, c Cell) {
		if err != nil || c.Status == Ignore {
			return
		}
		d, _ := c.ID.Date()
		pos := row*7 + col
		rowHasDay[row] = true
		colHasDay[col] = true

		if prevPos < 0 {
			first = d
		} else {
			if pos != prevPos+1 {
				err = invalid("padding between %s and %s", prev, d)
				return
			}
			if d != prev.AddDays(1) {
				err = invalid("%s does not follow %s", d, prev)
				return
			}
		}
		if c.Status == NotAvailable && seenOpen {
			err = invalid("%s is not available after an available day", d)
			return
		}
		if c.Status.Togglable() {
			seenOpen = true
			togglable = true
		}
		prev, prevPos = d, pos
	})
	if err != nil {
		return err
	}
	if prevPos < 0 {
		return invalid("no days")
	}
	if first.Day != 1 || prev.Month != first.Month || prev.Year != first.Year || prev.Day != daysIn(first.Year, first.Month) {
		return invalid("days %s..%s are not one whole month", first, prev)
	}
	for row, ok := range rowHasDay {
		if !ok {
			return invalid("%s is padding only", weekGroup(row))
		}
	}
	for col, ok := range colHasDay {
		if !ok {
			return invalid("%s column is padding only", weekdayGroup(col))
		}
	}
	if !togglable {
		return invalid("no togglable day")
	}
	return nil
}

func checkAggregates(g Grid) error {
	want := g.clone()
	want.recompute()
	for i, c := range g {
		if c.Status != want[i].Status {
			return invalid("%s is %s, members reduce to %s", c.ID.String(), c.Status, want[i].Status)
		}
	}
	return nil
}
