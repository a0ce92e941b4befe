package daygrid

import (
	"encoding/json"
	"math/rand"
	"testing"
	"time"

	"github.com/md-rashed-zaman/workhours/services/schedule-service/internal/schedule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var today = schedule.Date{Year: 2026, Month: time.October, Day: 17}

func date(day int) schedule.Date {
	return schedule.Date{Year: 2026, Month: time.October, Day: day}
}

func october(t *testing.T, selected ...schedule.Date) Grid {
	t.Helper()
	g, err := Rebuild(schedule.NewDateSet(selected...), today, 2026, time.October)
	require.NoError(t, err)
	return g
}

func statusOf(t *testing.T, g Grid, id Identity) Status {
	t.Helper()
	i := g.IndexOf(id)
	require.GreaterOrEqual(t, i, 0, "cell %s not found", id)
	return g[i].Status
}

func TestRebuildLayout(t *testing.T) {
	g := october(t)

	// October 2026 starts on a Thursday and spans five week rows.
	require.Len(t, g, 48)
	assert.Equal(t, Cell{Status: Ignore}, g[9], "Monday of week1 is padding")
	assert.Equal(t, DateIdentity(date(1)), g[12].ID)
	assert.Equal(t, NotAvailable, g[12].Status)
	assert.Equal(t, DateIdentity(today), g[30].ID)
	assert.Equal(t, NotSelected, g[30].Status)

	assert.Equal(t, NotAvailable, statusOf(t, g, GroupIdentity(Week1)))
	assert.Equal(t, NotAvailable, statusOf(t, g, GroupIdentity(Week2)))
	assert.Equal(t, NotSelected, statusOf(t, g, GroupIdentity(Week3)))
	assert.Equal(t, NotSelected, statusOf(t, g, GroupIdentity(Monday)))
	assert.Equal(t, NotSelected, statusOf(t, g, GroupIdentity(All)))
}

func TestRebuildRowCounts(t *testing.T) {
	// February 2027 starts on a Monday and has exactly four rows, no padding.
	feb, err := Rebuild(nil, today, 2027, time.February)
	require.NoError(t, err)
	assert.Len(t, feb, 40)
	for i, c := range feb {
		assert.NotEqual(t, Ignore, c.Status, "cell %d", i)
	}

	// August 2026 starts on a Saturday and needs six rows.
	aug, err := Rebuild(nil, schedule.Date{Year: 2026, Month: time.August, Day: 1}, 2026, time.August)
	require.NoError(t, err)
	assert.Len(t, aug, 56)
}

func TestRebuildDefaultsToCurrentMonthAndKeepsSelection(t *testing.T) {
	g, err := Rebuild(schedule.NewDateSet(date(20), date(3)), today, 0, 0)
	require.NoError(t, err)

	assert.Equal(t, Selected, statusOf(t, g, DateIdentity(date(20))))
	// Past days are never shown as selected even when still in the set.
	assert.Equal(t, NotAvailable, statusOf(t, g, DateIdentity(date(3))))
	assert.Equal(t, Selected, statusOf(t, g, GroupIdentity(Tuesday)))
	assert.Equal(t, Selected, statusOf(t, g, GroupIdentity(Week4)))
	assert.Equal(t, Selected, statusOf(t, g, GroupIdentity(All)))
}

func TestRebuildRejectsPastMonth(t *testing.T) {
	_, err := Rebuild(nil, today, 2026, time.September)
	assert.ErrorIs(t, err, ErrMonthInPast)

	_, err = Rebuild(nil, today, 2026, 13)
	assert.ErrorIs(t, err, ErrInvalidGrid)
}

func TestResolveAllCascadesToEveryTogglableCell(t *testing.T) {
	g := october(t)
	out, err := Resolve(g, g.IndexOf(GroupIdentity(All)))
	require.NoError(t, err)

	for i, c := range out {
		switch g[i].Status {
		case NotSelected:
			assert.Equal(t, Selected, c.Status, "cell %d (%s)", i, c.ID)
		default:
			assert.Equal(t, g[i].Status, c.Status, "cell %d (%s) must not change", i, c.ID)
		}
	}
	assert.Len(t, out.Dates(Selected), 15) // October 17..31
}

func TestResolveWeekAndWeekday(t *testing.T) {
	g := october(t)

	g, err := Resolve(g, g.IndexOf(GroupIdentity(Week3)))
	require.NoError(t, err)
	assert.ElementsMatch(t, []schedule.Date{date(17), date(18)}, g.Dates(Selected))
	assert.Equal(t, Selected, statusOf(t, g, GroupIdentity(Saturday)))
	assert.Equal(t, Selected, statusOf(t, g, GroupIdentity(Sunday)))
	assert.Equal(t, NotSelected, statusOf(t, g, GroupIdentity(Monday)))

	g, err = Resolve(g, g.IndexOf(GroupIdentity(Monday)))
	require.NoError(t, err)
	assert.ElementsMatch(t, []schedule.Date{date(17), date(18), date(19), date(26)}, g.Dates(Selected))
	assert.Equal(t, Selected, statusOf(t, g, GroupIdentity(Week4)))

	// Clicking a selected aggregate clears all of its members.
	g, err = Resolve(g, g.IndexOf(GroupIdentity(All)))
	require.NoError(t, err)
	assert.Empty(t, g.Dates(Selected))
	assert.Equal(t, NotSelected, statusOf(t, g, GroupIdentity(All)))
}

func TestResolveDayIsInvolution(t *testing.T) {
	g := october(t, date(21))
	i := g.IndexOf(DateIdentity(date(22)))

	once, err := Resolve(g, i)
	require.NoError(t, err)
	assert.Equal(t, Selected, once[i].Status)

	twice, err := Resolve(once, i)
	require.NoError(t, err)
	assert.Equal(t, g, twice)
}

func TestResolveRejectsUntogglableClicks(t *testing.T) {
	g := october(t)

	for _, i := range []int{
		-1,
		len(g),
		9,  // padding
		12, // October 1st, in the past
		g.IndexOf(GroupIdentity(Week1)),
	} {
		_, err := Resolve(g, i)
		assert.ErrorIs(t, err, ErrInvalidClick, "index %d", i)
	}
}

func TestCodecRoundTrip(t *testing.T) {
	g, err := Resolve(october(t), 30)
	require.NoError(t, err)

	raw, err := json.Marshal(g)
	require.NoError(t, err)

	var tags []string
	require.NoError(t, json.Unmarshal(raw, &tags))
	assert.Equal(t, "selected_all", tags[0])
	assert.Equal(t, "not_available_week1", tags[8])
	assert.Equal(t, "ignore", tags[9])
	assert.Equal(t, "not_available_2026-10-01", tags[12])
	assert.Equal(t, "selected_2026-10-17", tags[30])

	back, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, g, back)
}

func TestDecodeRejectsInconsistentState(t *testing.T) {
	g := october(t)
	raw, err := json.Marshal(g)
	require.NoError(t, err)
	var tags []string
	require.NoError(t, json.Unmarshal(raw, &tags))

	cases := map[string]func([]string) []string{
		"aggregate out of sync": func(s []string) []string { s[0] = "selected_all"; return s },
		"unknown tag":           func(s []string) []string { s[5] = "maybe_friday"; return s },
		"swapped weekdays":      func(s []string) []string { s[1], s[2] = s[2], s[1]; return s },
		"last row dropped":      func(s []string) []string { return s[:len(s)-8] },
		"date in wrong column":  func(s []string) []string { s[30], s[31] = s[31], s[30]; return s },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			s := mutate(append([]string(nil), tags...))
			b, err := json.Marshal(s)
			require.NoError(t, err)
			_, err = Decode(b)
			assert.ErrorIs(t, err, ErrInvalidGrid)
		})
	}
}

func TestValidateAvailabilityIsPrefix(t *testing.T) {
	g := october(t)
	g[g.IndexOf(DateIdentity(date(25)))].Status = NotAvailable
	g.recompute()
	assert.ErrorIs(t, Validate(g), ErrInvalidGrid)
}

func TestDiff(t *testing.T) {
	before := october(t, date(20), date(21))
	after, err := Resolve(before, before.IndexOf(DateIdentity(date(21))))
	require.NoError(t, err)
	after, err = Resolve(after, after.IndexOf(DateIdentity(date(30))))
	require.NoError(t, err)

	added, removed := Diff(before, after)
	assert.Equal(t, []schedule.Date{date(30)}, added)
	assert.Equal(t, []schedule.Date{date(21)}, removed)
}

// Random click sequences must always produce valid grids, and clicking the same day twice
// must restore the grid.
func TestResolvePreservesInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	months := []struct {
		year  int
		month time.Month
	}{{2026, time.October}, {2026, time.November}, {2027, time.February}, {2027, time.August}}

	for _, m := range months {
		g, err := Rebuild(nil, today, m.year, m.month)
		require.NoError(t, err)

		for step := 0; step < 200; step++ {
			var togglable []int
			for i, c := range g {
				if c.Status.Togglable() {
					togglable = append(togglable, i)
				}
			}
			require.NotEmpty(t, togglable)
			i := togglable[rng.Intn(len(togglable))]

			next, err := Resolve(g, i)
			require.NoError(t, err)
			require.NoError(t, Validate(next))

			if _, isDay := g[i].ID.Date(); isDay {
				back, err := Resolve(next, i)
				require.NoError(t, err)
				require.Equal(t, g, back)
			}
			g = next
		}
	}
}
