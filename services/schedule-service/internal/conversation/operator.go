package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/workhours/services/schedule-service/internal/committer"
	"github.com/md-rashed-zaman/workhours/services/schedule-service/internal/daygrid"
	"github.com/md-rashed-zaman/workhours/services/schedule-service/internal/schedule"
	"github.com/md-rashed-zaman/workhours/services/schedule-service/internal/timeline"
)

var (
	ErrNothingToSave  = errors.New("no dates were added or removed")
	ErrNoWorkingHours = errors.New("working hours must be selected before saving")
)

// OperatorSession is the operator's working copy of the calendar. Selected starts as the
// stored schedule, so the grid shows what exists and saving writes only the difference.
type OperatorSession struct {
	Today    schedule.Date    `json:"today"`
	Year     int              `json:"year"`
	Month    time.Month       `json:"month"`
	Grid     daygrid.Grid     `json:"grid"`
	Times    timeline.Line    `json:"times"`
	Selected schedule.DateSet `json:"selected"`
	// Scheduled is the set of dates that had slots when the session started.
	Scheduled schedule.DateSet `json:"scheduled"`
}

// Added are upcoming dates selected now that had no slots when the session started.
func (s *OperatorSession) Added() []schedule.Date {
	return upcoming(s.Selected, s.Scheduled, s.Today)
}

// Removed are upcoming dates that had slots when the session started and are deselected now.
func (s *OperatorSession) Removed() []schedule.Date {
	return upcoming(s.Scheduled, s.Selected, s.Today)
}

// Intervals are the currently selected working hours.
func (s *OperatorSession) Intervals() []schedule.PointRange {
	return timeline.Intervals(s.Times)
}

// IndexOf resolves a cell token such as "week2" or "2026-10-20" to its grid index.
func (s *OperatorSession) IndexOf(token string) (int, error) {
	id, err := daygrid.ParseIdentity(token)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", daygrid.ErrInvalidClick, err)
	}
	i := s.Grid.IndexOf(id)
	if i < 0 {
		return 0, fmt.Errorf("%w: %s is not in %04d-%02d", daygrid.ErrInvalidClick, token, s.Year, int(s.Month))
	}
	return i, nil
}

type Scheduler interface {
	Today() schedule.Date
	Scheduled(ctx context.Context, from schedule.Date) ([]schedule.Date, error)
	Save(ctx context.Context, selected, cleared []schedule.Date, ranges []schedule.PointRange) (committer.SaveReport, error)
}

// Operator runs the operator's schedule editing conversation.
type Operator struct {
	cfg    schedule.Config
	store  Store
	sched  Scheduler
	logger *slog.Logger
}

func NewOperator(cfg schedule.Config, store Store, sched Scheduler, logger *slog.Logger) *Operator {
	return &Operator{cfg: cfg, store: store, sched: sched, logger: logger}
}

func sessionKey(operatorID string) string { return "operator:" + operatorID }

// Session returns the operator's current state, starting a new one if needed.
func (o *Operator) Session(ctx context.Context, operatorID string) (*OperatorSession, error) {
	s, err := o.load(ctx, operatorID)
	if err != nil {
		return nil, err
	}
	return s, o.persist(ctx, operatorID, s)
}

// ShowMonth switches the day grid to another month, keeping the selection.
func (o *Operator) ShowMonth(ctx context.Context, operatorID string, year int, month time.Month) (*OperatorSession, error) {
	s, err := o.load(ctx, operatorID)
	if err != nil {
		return nil, err
	}
	if year == 0 {
		year, month = s.Today.Year, s.Today.Month
	}
	g, err := daygrid.Rebuild(s.Selected, s.Today, year, month)
	if err != nil {
		return nil, err
	}
	s.Grid, s.Year, s.Month = g, year, month
	return s, o.persist(ctx, operatorID, s)
}

func (o *Operator) ClickDay(ctx context.Context, operatorID string, index int) (*OperatorSession, error) {
	s, err := o.load(ctx, operatorID)
	if err != nil {
		return nil, err
	}
	next, err := daygrid.Resolve(s.Grid, index)
	if err != nil {
		return nil, err
	}
	added, removed := daygrid.Diff(s.Grid, next)
	for _, d := range added {
		s.Selected.Add(d)
	}
	for _, d := range removed {
		s.Selected.Remove(d)
	}
	s.Grid = next
	return s, o.persist(ctx, operatorID, s)
}

func (o *Operator) ClickTime(ctx context.Context, operatorID string, index int) (*OperatorSession, error) {
	s, err := o.load(ctx, operatorID)
	if err != nil {
		return nil, err
	}
	next, err := timeline.Resolve(o.cfg, s.Times, index)
	if err != nil {
		return nil, err
	}
	s.Times = next
	return s, o.persist(ctx, operatorID, s)
}

// Commit gives the newly selected dates the selected hours and clears the dates that were
// deselected. Dates whose state ends where it started are not touched. The session ends on
// success and is kept for a retry otherwise.
func (o *Operator) Commit(ctx context.Context, operatorID string) (committer.SaveReport, error) {
	s, err := o.load(ctx, operatorID)
	if err != nil {
		return committer.SaveReport{}, err
	}
	selected, cleared := s.Added(), s.Removed()
	ranges := s.Intervals()
	switch {
	case len(selected) == 0 && len(cleared) == 0:
		return committer.SaveReport{}, ErrNothingToSave
	case len(selected) > 0 && len(ranges) == 0:
		return committer.SaveReport{}, ErrNoWorkingHours
	}

	report, err := o.sched.Save(ctx, selected, cleared, ranges)
	if err != nil {
		return report, err
	}
	return report, o.store.Delete(ctx, sessionKey(operatorID))
}

func (o *Operator) Reset(ctx context.Context, operatorID string) error {
	return o.store.Delete(ctx, sessionKey(operatorID))
}

// upcoming lists the dates of set that are not in minus and not before today.
func upcoming(set, minus schedule.DateSet, today schedule.Date) []schedule.Date {
	var out []schedule.Date
	for _, d := range set.Sorted() {
		if !d.Before(today) && !minus.Has(d) {
			out = append(out, d)
		}
	}
	return out
}

func (o *Operator) fresh(ctx context.Context) (*OperatorSession, error) {
	today := o.sched.Today()
	dates, err := o.sched.Scheduled(ctx, today)
	if err != nil {
		return nil, err
	}
	g, err := daygrid.Rebuild(schedule.NewDateSet(dates...), today, 0, 0)
	if err != nil {
		return nil, err
	}
	return &OperatorSession{
		Today:     today,
		Year:      today.Year,
		Month:     today.Month,
		Grid:      g,
		Times:     timeline.Initial(o.cfg),
		Selected:  schedule.NewDateSet(dates...),
		Scheduled: schedule.NewDateSet(dates...),
	}, nil
}

// load reads the session and brings it up to date. A stored state that no longer decodes
// or validates is discarded.
func (o *Operator) load(ctx context.Context, operatorID string) (*OperatorSession, error) {
	raw, err := o.store.Get(ctx, sessionKey(operatorID))
	if errors.Is(err, ErrNotFound) {
		return o.fresh(ctx)
	}
	if err != nil {
		return nil, err
	}

	var s OperatorSession
	if err := o.decode(raw, &s); err != nil {
		o.logger.Warn("discarding invalid operator session", "operator_id", operatorID, "err", err)
		return o.fresh(ctx)
	}
	if s.Selected == nil {
		s.Selected = schedule.NewDateSet()
	}
	if s.Scheduled == nil {
		s.Scheduled = schedule.NewDateSet()
	}

	// Days that passed since the last turn become unavailable.
	if today := o.sched.Today(); s.Today != today {
		s.Today = today
		g, err := daygrid.Rebuild(s.Selected, today, s.Year, s.Month)
		if errors.Is(err, daygrid.ErrMonthInPast) {
			s.Year, s.Month = today.Year, today.Month
			g, err = daygrid.Rebuild(s.Selected, today, s.Year, s.Month)
		}
		if err != nil {
			return nil, err
		}
		s.Grid = g
	}
	return &s, nil
}

func (o *Operator) decode(raw []byte, s *OperatorSession) error {
	if err := json.Unmarshal(raw, s); err != nil {
		return err
	}
	if err := daygrid.Validate(s.Grid); err != nil {
		return err
	}
	return timeline.Validate(o.cfg, s.Times)
}

func (o *Operator) persist(ctx context.Context, operatorID string, s *OperatorSession) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return o.store.Set(ctx, sessionKey(operatorID), raw)
}
