package daygrid

import (
	"fmt"
	"strings"

	"github.com/md-rashed-zaman/workhours/services/schedule-service/internal/schedule"
)

type Status uint8

const (
	// Ignore marks padding cells from the neighbouring months.
	Ignore Status = iota
	NotAvailable
	NotSelected
	Selected
)

var statusNames = map[Status]string{
	Ignore:       "ignore",
	NotAvailable: "not_available",
	NotSelected:  "not_selected",
	Selected:     "selected",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// Togglable reports whether a cell with this status reacts to clicks.
func (s Status) Togglable() bool {
	return s == NotSelected || s == Selected
}

func (s Status) toggled() Status {
	if s == Selected {
		return NotSelected
	}
	return Selected
}

// Group identifies an aggregate cell.
type Group uint8

const (
	noGroup Group = iota
	All
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
	Week1
	Week2
	Week3
	Week4
	Week5
	Week6
)

var groupNames = [...]string{
	All:       "all",
	Monday:    "monday",
	Tuesday:   "tuesday",
	Wednesday: "wednesday",
	Thursday:  "thursday",
	Friday:    "friday",
	Saturday:  "saturday",
	Sunday:    "sunday",
	Week1:     "week1",
	Week2:     "week2",
	Week3:     "week3",
	Week4:     "week4",
	Week5:     "week5",
	Week6:     "week6",
}

func (g Group) String() string {
	if g > noGroup && int(g) < len(groupNames) {
		return groupNames[g]
	}
	return fmt.Sprintf("group(%d)", uint8(g))
}

func weekdayGroup(col int) Group { return Monday + Group(col) }
func weekGroup(row int) Group    { return Week1 + Group(row) }

// Identity is either an aggregate group or a calendar date. The zero Identity belongs to
// padding cells only.
type Identity struct {
	group Group
	date  schedule.Date
}

func GroupIdentity(g Group) Identity        { return Identity{group: g} }
func DateIdentity(d schedule.Date) Identity { return Identity{date: d} }

func (id Identity) Group() (Group, bool) {
	return id.group, id.group != noGroup
}

func (id Identity) Date() (schedule.Date, bool) {
	return id.date, id.group == noGroup && !id.date.IsZero()
}

func (id Identity) IsZero() bool { return id == Identity{} }

func (id Identity) String() string {
	if g, ok := id.Group(); ok {
		return g.String()
	}
	if d, ok := id.Date(); ok {
		return d.String()
	}
	return ""
}

// ParseIdentity accepts a group name or an ISO date.
func ParseIdentity(s string) (Identity, error) {
	for g := All; g <= Week6; g++ {
		if groupNames[g] == s {
			return GroupIdentity(g), nil
		}
	}
	d, err := schedule.ParseDate(s)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: unknown cell identity %q", ErrInvalidGrid, s)
	}
	return DateIdentity(d), nil
}

// Cell is one entry of a day grid state array.
type Cell struct {
	Status Status
	ID     Identity
}

func padding() Cell { return Cell{Status: Ignore} }

// MarshalText renders "<status>_<identity>", or "ignore" for padding.
func (c Cell) MarshalText() ([]byte, error) {
	if c.Status == Ignore {
		return []byte(statusNames[Ignore]), nil
	}
	if c.ID.IsZero() {
		return nil, fmt.Errorf("%w: %s cell without identity", ErrInvalidGrid, c.Status)
	}
	return []byte(c.Status.String() + "_" + c.ID.String()), nil
}

// statuses with an identity suffix; "not_" forms go first so "selected_" does not
// match their tail.
var prefixed = []Status{NotAvailable, NotSelected, Selected}

func (c *Cell) UnmarshalText(b []byte) error {
	s := string(b)
	if s == statusNames[Ignore] {
		*c = padding()
		return nil
	}
	for _, st := range prefixed {
		rest, ok := strings.CutPrefix(s, statusNames[st]+"_")
		if !ok {
			continue
		}
		id, err := ParseIdentity(rest)
		if err != nil {
			return err
		}
		*c = Cell{Status: st, ID: id}
		return nil
	}
	return fmt.Errorf("%w: malformed cell %q", ErrInvalidGrid, s)
}
