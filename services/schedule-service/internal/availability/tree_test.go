package availability

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/md-rashed-zaman/workhours/services/schedule-service/internal/schedule"
)

func TestBuildTree_GroupsByLocalDayAndOmitsEmptyBranches(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	c := schedule.Config{GranularityMinutes: 30, Location: loc}

	open := []time.Time{
		// 2026-10-20 09:00 and 09:30 local.
		time.Date(2026, 10, 20, 6, 0, 0, 0, time.UTC),
		time.Date(2026, 10, 20, 6, 30, 0, 0, time.UTC),
		// 2026-10-21 00:00 and 00:30 local, still the 20th in UTC.
		time.Date(2026, 10, 20, 21, 0, 0, 0, time.UTC),
		time.Date(2026, 10, 20, 21, 30, 0, 0, time.UTC),
		// A lone slot in November cannot host an hour.
		time.Date(2026, 11, 2, 7, 0, 0, 0, time.UTC),
		// 2027-01-04 10:00 and 10:30 local.
		time.Date(2027, 1, 4, 7, 0, 0, 0, time.UTC),
		time.Date(2027, 1, 4, 7, 30, 0, 0, time.UTC),
	}
	tree, err := BuildTree(c, open, time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if years := tree.Years(); len(years) != 2 || years[0] != 2026 || years[1] != 2027 {
		t.Fatalf("expected years [2026 2027], got %v", years)
	}
	if months := tree.Months(2026); len(months) != 1 || months[0] != time.October {
		t.Fatalf("expected only October 2026, got %v", months)
	}
	if days := tree.Days(2026, time.October); len(days) != 2 || days[0] != 20 || days[1] != 21 {
		t.Fatalf("expected days [20 21], got %v", days)
	}
	times := tree.Times(2026, time.October, 21)
	if len(times) != 1 || times[0].Hour() != 0 || times[0].Location() != loc {
		t.Fatalf("expected a single local 00:00 start, got %v", times)
	}
	if got := tree.Days(2026, time.November); len(got) != 0 {
		t.Fatalf("expected November to be absent, got %v", got)
	}

	raw, err := json.Marshal(tree)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]map[string]map[string][]string
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal %s: %v", raw, err)
	}
	if _, ok := decoded["2026"]["11"]; ok {
		t.Fatalf("November should not be rendered: %s", raw)
	}
	if got := decoded["2027"]["1"]["4"]; len(got) != 1 || got[0] != "2027-01-04T10:00:00+03:00" {
		t.Fatalf("unexpected January leaf %v", got)
	}
}

func TestCheck_MostSpecificLevel(t *testing.T) {
	open := []time.Time{
		at(10, 0), at(10, 30),
		at(14, 0), at(14, 30),
		time.Date(2026, 10, 28, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 10, 28, 9, 30, 0, 0, time.UTC),
		time.Date(2026, 12, 1, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 12, 1, 9, 30, 0, 0, time.UTC),
	}
	tree, err := BuildTree(cfg, open, time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cases := []struct {
		start time.Time
		want  Verdict
	}{
		{at(10, 0), OK},
		{at(10, 30), TimeGone},
		{time.Date(2026, 10, 21, 10, 0, 0, 0, time.UTC), DayGone},
		{time.Date(2026, 11, 3, 10, 0, 0, 0, time.UTC), MonthGone},
		{time.Date(2027, 2, 1, 10, 0, 0, 0, time.UTC), YearGone},
	}
	for _, tc := range cases {
		if got := Check(tree, tc.start); got != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.start.Format(time.RFC3339), tc.want, got)
		}
	}

	opts := Options(tree, at(10, 30), TimeGone)
	if len(opts) != 2 || opts[1] != "2026-10-20T14:00:00Z" {
		t.Fatalf("unexpected time options %v", opts)
	}
	opts = Options(tree, time.Date(2026, 11, 3, 10, 0, 0, 0, time.UTC), MonthGone)
	if len(opts) != 2 || opts[0] != "2026-10" || opts[1] != "2026-12" {
		t.Fatalf("unexpected month options %v", opts)
	}
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7}

	p := Paginate(items, 1, 3)
	if p.Pages != 3 || p.Page != 1 || len(p.Items) != 3 || p.Items[0] != 4 {
		t.Fatalf("unexpected page %+v", p)
	}
	p = Paginate(items, 9, 3)
	if p.Page != 2 || len(p.Items) != 1 || p.Items[0] != 7 {
		t.Fatalf("expected clamped last page, got %+v", p)
	}
	p = Paginate([]int{}, 0, 3)
	if p.Pages != 0 || len(p.Items) != 0 {
		t.Fatalf("expected empty page, got %+v", p)
	}
}
