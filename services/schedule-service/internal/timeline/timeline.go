// Package timeline implements the operator's working-hours picker: one cell per granularity
// point of a day, where two clicks close a range and clicking a selected point trims the run.
package timeline

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/md-rashed-zaman/workhours/services/schedule-service/internal/schedule"
)

var (
	ErrInvalidLine  = errors.New("invalid time line")
	ErrInvalidClick = errors.New("invalid time line click")
)

type Cell uint8

const (
	NotSelected Cell = iota
	Selected
	// Edge is the pending first endpoint of a range that has not been closed yet.
	Edge
)

var cellNames = [...]string{
	NotSelected: "not_selected",
	Selected:    "selected",
	Edge:        "edge",
}

func (c Cell) String() string {
	if int(c) < len(cellNames) {
		return cellNames[c]
	}
	return fmt.Sprintf("cell(%d)", uint8(c))
}

func (c Cell) MarshalText() ([]byte, error) {
	if int(c) >= len(cellNames) {
		return nil, fmt.Errorf("%w: unknown cell %d", ErrInvalidLine, uint8(c))
	}
	return []byte(cellNames[c]), nil
}

func (c *Cell) UnmarshalText(b []byte) error {
	for i, name := range cellNames {
		if string(b) == name {
			*c = Cell(i)
			return nil
		}
	}
	return fmt.Errorf("%w: unknown cell %q", ErrInvalidLine, b)
}

// Line is the state of one day's points 00:00..24:00.
type Line []Cell

// Initial returns an empty line sized for cfg.
func Initial(cfg schedule.Config) Line {
	return make(Line, cfg.Points())
}

// Decode parses a persisted line and checks it against cfg.
func Decode(cfg schedule.Config, data []byte) (Line, error) {
	var l Line
	if err := json.Unmarshal(data, &l); err != nil {
		if errors.Is(err, ErrInvalidLine) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidLine, err)
	}
	if err := Validate(cfg, l); err != nil {
		return nil, err
	}
	return l, nil
}

// Validate checks the line length for cfg, that there is at most one edge, that every
// selected point has a selected neighbour and that the edge touches no selected point.
func Validate(cfg schedule.Config, l Line) error {
	if len(l) != cfg.Points() {
		return fmt.Errorf("%w: length %d, want %d", ErrInvalidLine, len(l), cfg.Points())
	}
	edges := 0
	for i, c := range l {
		switch c {
		case NotSelected:
		case Edge:
			edges++
			if l.at(i-1) == Selected || l.at(i+1) == Selected {
				return fmt.Errorf("%w: edge at %d touches a selected point", ErrInvalidLine, i)
			}
		case Selected:
			if l.at(i-1) != Selected && l.at(i+1) != Selected {
				return fmt.Errorf("%w: isolated selected point %d", ErrInvalidLine, i)
			}
		default:
			return fmt.Errorf("%w: unknown cell %d at %d", ErrInvalidLine, uint8(c), i)
		}
	}
	if edges > 1 {
		return fmt.Errorf("%w: %d edges", ErrInvalidLine, edges)
	}
	return nil
}

// at treats positions outside the line as not selected.
func (l Line) at(i int) Cell {
	if i < 0 || i >= len(l) {
		return NotSelected
	}
	return l[i]
}

func (l Line) edge() int {
	for i, c := range l {
		if c == Edge {
			return i
		}
	}
	return -1
}

// Resolve applies a click on point index and returns the new line.
func Resolve(cfg schedule.Config, l Line, index int) (Line, error) {
	if err := Validate(cfg, l); err != nil {
		return nil, err
	}
	if index < 0 || index >= len(l) {
		return nil, fmt.Errorf("%w: index %d out of range [0,%d)", ErrInvalidClick, index, len(l))
	}

	out := make(Line, len(l))
	copy(out, l)

	if e := out.edge(); e >= 0 {
		switch {
		case index == e:
			out[e] = NotSelected
		case index < e:
			out.fill(index, e)
		default:
			out.fill(e, index)
		}
		mustValid(cfg, out)
		return out, nil
	}

	switch out[index] {
	case NotSelected:
		if out.at(index-1) == Selected || out.at(index+1) == Selected {
			out[index] = Selected
		} else {
			out[index] = Edge
		}
	case Selected:
		for i := index; i < len(out) && out[i] == Selected; i++ {
			out[i] = NotSelected
		}
		// A single selected point left behind becomes the new pending endpoint.
		if out.at(index-1) == Selected && out.at(index-2) != Selected {
			out[index-1] = Edge
		}
	}
	mustValid(cfg, out)
	return out, nil
}

func (l Line) fill(from, to int) {
	for i := from; i <= to; i++ {
		l[i] = Selected
	}
}

func mustValid(cfg schedule.Config, l Line) {
	if err := Validate(cfg, l); err != nil {
		panic(fmt.Sprintf("timeline: post-condition violated: %v", err))
	}
}

// Intervals returns every maximal run of selected points. A pending edge is not a range.
func Intervals(l Line) []schedule.PointRange {
	var out []schedule.PointRange
	start := -1
	for i := 0; i <= len(l); i++ {
		sel := i < len(l) && l[i] == Selected
		switch {
		case sel && start < 0:
			start = i
		case !sel && start >= 0:
			out = append(out, schedule.PointRange{Start: start, End: i - 1})
			start = -1
		}
	}
	return out
}

// Labels renders ranges as "HH:MM-HH:MM" for display.
func Labels(cfg schedule.Config, ranges []schedule.PointRange) []string {
	out := make([]string, 0, len(ranges))
	for _, r := range ranges {
		out = append(out, cfg.PointLabel(r.Start)+"-"+cfg.PointLabel(r.End))
	}
	return out
}
