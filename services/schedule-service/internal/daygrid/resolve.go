package daygrid

import "fmt"

// Resolve toggles the clicked cell between Selected and NotSelected, cascades the new status
// to the togglable days under an aggregate, and recomputes every aggregate bottom-up.
func Resolve(g Grid, index int) (Grid, error) {
	if err := Validate(g); err != nil {
		return nil, err
	}
	if index < 0 || index >= len(g) {
		return nil, fmt.Errorf("%w: index %d out of range [0,%d)", ErrInvalidClick, index, len(g))
	}
	clicked := g[index]
	if !clicked.Status.Togglable() {
		return nil, fmt.Errorf("%w: cell %d is %s", ErrInvalidClick, index, clicked.Status)
	}
	next := clicked.Status.toggled()

	out := g.clone()
	set := func(i int) {
		if out[i].Status.Togglable() {
			out[i].Status = next
		}
	}
	switch {
	case index == allIndex:
		out.eachDay(func(row, col int, _ Cell) { set(dayIndex(row, col)) })
	case index < rowWidth:
		col := index - 1
		for row := 0; row < out.weeks(); row++ {
			set(dayIndex(row, col))
		}
	case index%rowWidth == 0:
		row := index/rowWidth - 1
		for col := 0; col < 7; col++ {
			set(dayIndex(row, col))
		}
	default:
		set(index)
	}

	out.recompute()
	mustValid(out)
	return out, nil
}

// recompute derives every aggregate from the day cells.
func (g Grid) recompute() {
	weeks := g.weeks()
	for row := 0; row < weeks; row++ {
		var r reduction
		for col := 0; col < 7; col++ {
			r.add(g[dayIndex(row, col)].Status)
		}
		g[weekIndex(row)].Status = r.status()
	}
	var all reduction
	for col := 0; col < 7; col++ {
		var r reduction
		for row := 0; row < weeks; row++ {
			st := g[dayIndex(row, col)].Status
			r.add(st)
			all.add(st)
		}
		g[weekdayIndex(col)].Status = r.status()
	}
	g[allIndex].Status = all.status()
}

// reduction folds member day statuses into an aggregate status: no togglable member means
// NotAvailable, any Selected member means Selected, otherwise NotSelected.
type reduction struct {
	togglable bool
	selected  bool
}

func (r *reduction) add(s Status) {
	if s.Togglable() {
		r.togglable = true
	}
	if s == Selected {
		r.selected = true
	}
}

func (r reduction) status() Status {
	switch {
	case !r.togglable:
		return NotAvailable
	case r.selected:
		return Selected
	default:
		return NotSelected
	}
}
