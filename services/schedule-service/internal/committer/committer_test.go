package committer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/md-rashed-zaman/workhours/services/schedule-service/internal/availability"
	"github.com/md-rashed-zaman/workhours/services/schedule-service/internal/model"
	"github.com/md-rashed-zaman/workhours/services/schedule-service/internal/outbox"
	"github.com/md-rashed-zaman/workhours/services/schedule-service/internal/schedule"
	"github.com/md-rashed-zaman/workhours/services/schedule-service/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	loc      = time.FixedZone("UTC+2", 2*60*60)
	cfg      = schedule.Config{GranularityMinutes: 30, Location: loc}
	tuesday  = schedule.Date{Year: 2026, Month: time.October, Day: 20}
	thursday = schedule.Date{Year: 2026, Month: time.October, Day: 22}
	// 09:00-11:00 local.
	morning = []schedule.PointRange{{Start: 18, End: 22}}
)

func local(d schedule.Date, hour, minute int) time.Time {
	return time.Date(d.Year, d.Month, d.Day, hour, minute, 0, 0, loc)
}

func newCommitter(t *testing.T, store Store) *Committer {
	t.Helper()
	c := New(cfg, store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.now = func() time.Time { return time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC) }
	return c
}

func service(t *testing.T, store *storage.Memory, minutes int) model.Service {
	t.Helper()
	svc := model.Service{
		ID:       fmt.Sprintf("svc-%d", minutes),
		Name:     fmt.Sprintf("%d minutes", minutes),
		Duration: time.Duration(minutes) * time.Minute,
	}
	require.NoError(t, store.CreateService(context.Background(), svc))
	return svc
}

func TestSaveWritesSlotsPerDateAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	c := newCommitter(t, store)

	report, err := c.Save(ctx, []schedule.Date{tuesday, thursday}, nil, morning)
	require.NoError(t, err)
	assert.Equal(t, storage.DayResult{Inserted: 4}, report.Saved["2026-10-20"])
	assert.Equal(t, storage.DayResult{Inserted: 4}, report.Saved["2026-10-22"])

	open, err := store.ListOpenSlots(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, open, 8)
	assert.True(t, open[0].Equal(local(tuesday, 9, 0)), "first slot %s", open[0])
	assert.True(t, open[3].Equal(local(tuesday, 10, 30)), "11:00 is the end, not a slot")

	report, err = c.Save(ctx, []schedule.Date{tuesday}, []schedule.Date{thursday}, morning)
	require.NoError(t, err)
	assert.Equal(t, storage.DayResult{Deleted: 4, Inserted: 4}, report.Saved["2026-10-20"])
	assert.EqualValues(t, 4, report.Cleared["2026-10-22"])

	open, err = store.ListOpenSlots(ctx, time.Time{})
	require.NoError(t, err)
	assert.Len(t, open, 4)

	types := map[string]int{}
	for _, e := range store.Events() {
		types[e.EventType]++
	}
	assert.Equal(t, 4, types[outbox.EventSlotsSaved])
}

func TestBookClaimsContiguousSlots(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	c := newCommitter(t, store)
	svc := service(t, store, 60)
	_, err := c.Save(ctx, []schedule.Date{tuesday}, nil, morning)
	require.NoError(t, err)

	tree, err := c.Availability(ctx, svc)
	require.NoError(t, err)
	times := tree.Times(2026, time.October, 20)
	require.Len(t, times, 3) // 09:00, 09:30, 10:00

	appt, err := c.Book(ctx, Booking{ClientID: "client-1", ClientName: "Ann", Service: svc, Start: local(tuesday, 9, 30)})
	require.NoError(t, err)
	assert.True(t, appt.EndTime.Equal(local(tuesday, 10, 30)))

	open, err := store.ListOpenSlots(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.True(t, open[0].Equal(local(tuesday, 9, 0)))
	assert.True(t, open[1].Equal(local(tuesday, 10, 30)))

	tree, err = c.Availability(ctx, svc)
	require.NoError(t, err)
	assert.True(t, tree.Empty(), "no hour-long gap is left")

	var booked int
	for _, e := range store.Events() {
		if e.EventType == outbox.EventAppointmentBooked {
			booked++
			assert.Equal(t, appt.ID, e.AggregateID)
		}
	}
	assert.Equal(t, 1, booked)
}

func TestBookRejectsExpiredOffer(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	c := newCommitter(t, store)
	svc := service(t, store, 30)
	_, err := c.Save(ctx, []schedule.Date{tuesday}, nil, morning)
	require.NoError(t, err)

	_, err = c.Book(ctx, Booking{ClientID: "client-1", Service: svc, Start: local(tuesday, 14, 0)})
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, ReasonExpired, conflict.Reason)
	assert.Equal(t, availability.TimeGone, conflict.Verdict)
	assert.Len(t, conflict.Options(), 4)

	_, err = c.Book(ctx, Booking{ClientID: "client-1", Service: svc, Start: local(thursday, 9, 0)})
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, availability.DayGone, conflict.Verdict)
	assert.Equal(t, []string{"2026-10-20"}, conflict.Options())
}

// racingStore lets a competitor claim the slot between the freshness check and the
// reservation.
type racingStore struct {
	*storage.Memory
	once       sync.Once
	competitor model.Appointment
	slots      []time.Time
}

func (s *racingStore) ReserveSlots(ctx context.Context, appt model.Appointment, slots []time.Time, evt outbox.Event) error {
	s.once.Do(func() {
		if err := s.Memory.ReserveSlots(ctx, s.competitor, s.slots, outbox.Event{}); err != nil {
			panic(err)
		}
	})
	return s.Memory.ReserveSlots(ctx, appt, slots, evt)
}

func TestBookReportsLostRaceWithFreshTree(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	svc := service(t, mem, 30)
	start := local(tuesday, 9, 0)
	store := &racingStore{
		Memory:     mem,
		competitor: model.Appointment{ID: "other", ServiceID: svc.ID, StartTime: start},
		slots:      []time.Time{start},
	}
	c := newCommitter(t, store)
	_, err := c.Save(ctx, []schedule.Date{tuesday}, nil, morning)
	require.NoError(t, err)

	_, err = c.Book(ctx, Booking{ClientID: "client-1", Service: svc, Start: start})
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, ReasonTaken, conflict.Reason)
	assert.Equal(t, availability.TimeGone, conflict.Verdict)
	assert.False(t, conflict.Tree.Contains(start))
	assert.Len(t, conflict.Tree.Times(2026, time.October, 20), 3)
}

func TestConcurrentBookingsOnSameSlot(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	c := newCommitter(t, store)
	svc := service(t, store, 30)
	// A single slot: 09:00-09:30.
	_, err := c.Save(ctx, []schedule.Date{tuesday}, nil, []schedule.PointRange{{Start: 18, End: 19}})
	require.NoError(t, err)
	start := local(tuesday, 9, 0)

	const clients = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts []*ConflictError
	)
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Book(ctx, Booking{ClientID: "client", Service: svc, Start: start})
			mu.Lock()
			defer mu.Unlock()
			var conflict *ConflictError
			switch {
			case err == nil:
				wins++
			case errors.As(err, &conflict):
				conflicts = append(conflicts, conflict)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	require.Len(t, conflicts, clients-1)
	for _, conflict := range conflicts {
		assert.False(t, conflict.Tree.Contains(start))
		assert.True(t, conflict.Tree.Empty())
		assert.Equal(t, availability.YearGone, conflict.Verdict)
	}
}
