package scheduling

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirado-dev/delestage/internal/adapter/sqlite"
	"github.com/mirado-dev/delestage/internal/domain"
	"github.com/mirado-dev/delestage/internal/observability"
)

// capturePublisher records events instead of sending them anywhere.
type capturePublisher struct {
	events []OutageEvent
	err    error
}

func (p *capturePublisher) PublishOutageChange(_ context.Context, e OutageEvent) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func newTestService(t *testing.T) (*Service, *sqlite.Store, *capturePublisher) {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	pub := &capturePublisher{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := New(store, pub, logger, observability.NewMetricsForTesting())
	return svc, store, pub
}

func seedNeighborhood(t *testing.T, store *sqlite.Store, name, district string) domain.Neighborhood {
	t.Helper()
	n, err := store.CreateNeighborhood(context.Background(), domain.Neighborhood{Name: name, District: district})
	require.NoError(t, err)
	return n
}

func TestCreate_PlainInsert(t *testing.T) {
	svc, store, pub := newTestService(t)
	ctx := context.Background()
	n := seedNeighborhood(t, store, "Analakely", "1er Arrondissement")

	first, err := svc.Create(ctx, domain.Outage{
		NeighborhoodID: n.ID, Date: "2026-08-28", StartHour: 6, EndHour: 9, Reason: "load shedding",
	})
	require.NoError(t, err)
	assert.NotZero(t, first.ID)

	// Touching windows stay distinct.
	second, err := svc.Create(ctx, domain.Outage{
		NeighborhoodID: n.ID, Date: "2026-08-28", StartHour: 9, EndHour: 12,
	})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	stored, err := store.ListOutagesByNeighborhood(ctx, n.ID, "2026-08-28")
	require.NoError(t, err)
	assert.Len(t, stored, 2)

	require.Len(t, pub.events, 2)
	assert.Equal(t, "created", pub.events[0].Action)
	assert.Empty(t, pub.events[0].SupersededIDs)
}

func TestCreate_MergesOverlappingRows(t *testing.T) {
	svc, store, pub := newTestService(t)
	ctx := context.Background()
	n := seedNeighborhood(t, store, "Isotry", "1er Arrondissement")

	a, err := store.InsertOutage(ctx, domain.Outage{
		NeighborhoodID: n.ID, Date: "2026-08-28", StartHour: 6, EndHour: 8, Reason: "load shedding",
	})
	require.NoError(t, err)
	b, err := store.InsertOutage(ctx, domain.Outage{
		NeighborhoodID: n.ID, Date: "2026-08-28", StartHour: 9, EndHour: 12, Reason: "grid fault",
	})
	require.NoError(t, err)

	// The new window bridges both stored rows.
	merged, err := svc.Create(ctx, domain.Outage{
		NeighborhoodID: n.ID, Date: "2026-08-28", StartHour: 7, EndHour: 10, Reason: "load shedding",
	})
	require.NoError(t, err)

	assert.Equal(t, 6.0, merged.StartHour)
	assert.Equal(t, 12.0, merged.EndHour)
	assert.Equal(t, "load shedding; grid fault", merged.Reason)
	assert.NotEqual(t, a.ID, merged.ID)
	assert.NotEqual(t, b.ID, merged.ID)

	stored, err := store.ListOutagesByNeighborhood(ctx, n.ID, "2026-08-28")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, merged, stored[0])

	require.Len(t, pub.events, 1)
	assert.Equal(t, "merged", pub.events[0].Action)
	assert.ElementsMatch(t, []int64{a.ID, b.ID}, pub.events[0].SupersededIDs)
}

func TestCreate_ScopeIsolation(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	n1 := seedNeighborhood(t, store, "Ankorondrano", "4e Arrondissement")
	n2 := seedNeighborhood(t, store, "Andraharo", "4e Arrondissement")

	_, err := store.InsertOutage(ctx, domain.Outage{NeighborhoodID: n1.ID, Date: "2026-08-28", StartHour: 6, EndHour: 9})
	require.NoError(t, err)
	_, err = store.InsertOutage(ctx, domain.Outage{NeighborhoodID: n1.ID, Date: "2026-08-29", StartHour: 6, EndHour: 9})
	require.NoError(t, err)

	// Same hours, different neighborhood and different date: nothing merges.
	_, err = svc.Create(ctx, domain.Outage{NeighborhoodID: n2.ID, Date: "2026-08-28", StartHour: 7, EndHour: 10})
	require.NoError(t, err)

	for _, tc := range []struct {
		id   int64
		date string
	}{{n1.ID, "2026-08-28"}, {n1.ID, "2026-08-29"}, {n2.ID, "2026-08-28"}} {
		stored, err := store.ListOutagesByNeighborhood(ctx, tc.id, tc.date)
		require.NoError(t, err)
		assert.Len(t, stored, 1)
	}
}

func TestCreate_InvalidInterval(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	n := seedNeighborhood(t, store, "Ambohipo", "3e Arrondissement")

	for _, tc := range []struct {
		name       string
		start, end float64
	}{
		{"zero length", 6, 6},
		{"inverted", 9, 6},
		{"negative start", -1, 5},
		{"start past midnight", 24, 26},
		{"end beyond next day", 23, 50},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, domain.Outage{
				NeighborhoodID: n.ID, Date: "2026-08-28", StartHour: tc.start, EndHour: tc.end,
			})
			assert.ErrorIs(t, err, ErrInvalidInterval)
		})
	}
}

func TestUpdate_InPlace(t *testing.T) {
	svc, store, pub := newTestService(t)
	ctx := context.Background()
	n := seedNeighborhood(t, store, "Tsaralalana", "1er Arrondissement")

	o, err := store.InsertOutage(ctx, domain.Outage{
		NeighborhoodID: n.ID, Date: "2026-08-28", StartHour: 6, EndHour: 9, Reason: "load shedding",
	})
	require.NoError(t, err)

	reason := "maintenance"
	updated, err := svc.Update(ctx, o.ID, OutageUpdate{Reason: &reason})
	require.NoError(t, err)

	assert.Equal(t, o.ID, updated.ID)
	assert.Equal(t, "maintenance", updated.Reason)
	assert.Equal(t, 6.0, updated.StartHour)

	require.Len(t, pub.events, 1)
	assert.Equal(t, "updated", pub.events[0].Action)
}

func TestUpdate_CollapsesIntoNeighbor(t *testing.T) {
	svc, store, pub := newTestService(t)
	ctx := context.Background()
	n := seedNeighborhood(t, store, "Behoririka", "2e Arrondissement")

	a, err := store.InsertOutage(ctx, domain.Outage{NeighborhoodID: n.ID, Date: "2026-08-28", StartHour: 6, EndHour: 8})
	require.NoError(t, err)
	b, err := store.InsertOutage(ctx, domain.Outage{NeighborhoodID: n.ID, Date: "2026-08-28", StartHour: 10, EndHour: 12})
	require.NoError(t, err)

	// Widening b's start makes it overlap a; both rows must collapse into one.
	start := 7.0
	merged, err := svc.Update(ctx, b.ID, OutageUpdate{StartHour: &start})
	require.NoError(t, err)

	assert.Equal(t, 6.0, merged.StartHour)
	assert.Equal(t, 12.0, merged.EndHour)
	assert.NotEqual(t, a.ID, merged.ID)
	assert.NotEqual(t, b.ID, merged.ID)

	stored, err := store.ListOutagesByNeighborhood(ctx, n.ID, "2026-08-28")
	require.NoError(t, err)
	require.Len(t, stored, 1)

	require.Len(t, pub.events, 1)
	assert.Equal(t, "merged", pub.events[0].Action)
	assert.ElementsMatch(t, []int64{a.ID, b.ID}, pub.events[0].SupersededIDs)
}

func TestUpdate_MoveToOtherDate(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	n := seedNeighborhood(t, store, "Ankadifotsy", "2e Arrondissement")

	o, err := store.InsertOutage(ctx, domain.Outage{NeighborhoodID: n.ID, Date: "2026-08-28", StartHour: 6, EndHour: 9})
	require.NoError(t, err)
	_, err = store.InsertOutage(ctx, domain.Outage{NeighborhoodID: n.ID, Date: "2026-08-29", StartHour: 8, EndHour: 11})
	require.NoError(t, err)

	// Moving the row to the next day lands it on the existing window there.
	date := "2026-08-29"
	merged, err := svc.Update(ctx, o.ID, OutageUpdate{Date: &date})
	require.NoError(t, err)
	assert.Equal(t, "2026-08-29", merged.Date)
	assert.Equal(t, 6.0, merged.StartHour)
	assert.Equal(t, 11.0, merged.EndHour)

	old, err := store.ListOutagesByNeighborhood(ctx, n.ID, "2026-08-28")
	require.NoError(t, err)
	assert.Empty(t, old)

	moved, err := store.ListOutagesByNeighborhood(ctx, n.ID, "2026-08-29")
	require.NoError(t, err)
	assert.Len(t, moved, 1)
}

func TestUpdate_NotFound(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Update(context.Background(), 9999, OutageUpdate{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdate_InvalidInterval(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	n := seedNeighborhood(t, store, "Ampefiloha", "1er Arrondissement")

	o, err := store.InsertOutage(ctx, domain.Outage{NeighborhoodID: n.ID, Date: "2026-08-28", StartHour: 6, EndHour: 9})
	require.NoError(t, err)

	end := 5.0
	_, err = svc.Update(ctx, o.ID, OutageUpdate{EndHour: &end})
	assert.ErrorIs(t, err, ErrInvalidInterval)

	// The stored row is untouched after the rejected update.
	current, err := store.GetOutage(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o, current)
}

func TestBulkUpdate_PartialFailure(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	n := seedNeighborhood(t, store, "Andravoahangy", "2e Arrondissement")

	a, err := store.InsertOutage(ctx, domain.Outage{NeighborhoodID: n.ID, Date: "2026-08-28", StartHour: 6, EndHour: 8})
	require.NoError(t, err)
	b, err := store.InsertOutage(ctx, domain.Outage{NeighborhoodID: n.ID, Date: "2026-08-28", StartHour: 14, EndHour: 16})
	require.NoError(t, err)

	reason := "maintenance"
	results := svc.BulkUpdate(ctx, []int64{a.ID, 9999, b.ID}, OutageUpdate{Reason: &reason})
	require.Len(t, results, 3)

	assert.NoError(t, results[0].Err)
	assert.Equal(t, "maintenance", results[0].Outage.Reason)

	assert.ErrorIs(t, results[1].Err, domain.ErrNotFound)
	assert.Nil(t, results[1].Outage)

	// The failure in the middle does not stop or roll back the rest.
	assert.NoError(t, results[2].Err)
	assert.Equal(t, "maintenance", results[2].Outage.Reason)
}

func TestDelete(t *testing.T) {
	svc, store, pub := newTestService(t)
	ctx := context.Background()
	n := seedNeighborhood(t, store, "Soanierana", "1er Arrondissement")

	o, err := store.InsertOutage(ctx, domain.Outage{NeighborhoodID: n.ID, Date: "2026-08-28", StartHour: 6, EndHour: 9})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, o.ID))
	_, err = store.GetOutage(ctx, o.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.Len(t, pub.events, 1)
	assert.Equal(t, "deleted", pub.events[0].Action)
	assert.Equal(t, o.ID, pub.events[0].Outage.ID)

	assert.ErrorIs(t, svc.Delete(ctx, o.ID), domain.ErrNotFound)
}

func TestPublishFailureDoesNotFailWrite(t *testing.T) {
	svc, store, pub := newTestService(t)
	pub.err = assert.AnError
	ctx := context.Background()
	n := seedNeighborhood(t, store, "Anosy", "1er Arrondissement")

	o, err := svc.Create(ctx, domain.Outage{NeighborhoodID: n.ID, Date: "2026-08-28", StartHour: 6, EndHour: 9})
	require.NoError(t, err)
	assert.NotZero(t, o.ID)
}

func TestSchedules_DefaultsToToday(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	fake := clockwork.NewFakeClockAt(time.Date(2026, 8, 28, 15, 0, 0, 0, time.UTC))
	domain.SetClock(fake)
	t.Cleanup(func() { domain.SetClock(clockwork.NewRealClock()) })

	n := seedNeighborhood(t, store, "Ambanidia", "3e Arrondissement")
	_, err := store.InsertOutage(ctx, domain.Outage{NeighborhoodID: n.ID, Date: "2026-08-28", StartHour: 6, EndHour: 9})
	require.NoError(t, err)
	_, err = store.InsertOutage(ctx, domain.Outage{NeighborhoodID: n.ID, Date: "2026-08-27", StartHour: 6, EndHour: 9})
	require.NoError(t, err)

	schedules, err := svc.Schedules(ctx, "")
	require.NoError(t, err)
	require.Len(t, schedules, 1)
	require.Len(t, schedules[0].Outages, 1)
	assert.Equal(t, "2026-08-28", schedules[0].Outages[0].Date)
}

func TestSchedules_FoldsDuplicateNeighborhoods(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	rep := seedNeighborhood(t, store, "Analakely", "1er Arrondissement")
	dup := seedNeighborhood(t, store, "analakely", "1er  Arrondissement")
	other := seedNeighborhood(t, store, "Isotry", "1er Arrondissement")

	_, err := store.InsertOutage(ctx, domain.Outage{NeighborhoodID: rep.ID, Date: "2026-08-28", StartHour: 6, EndHour: 9})
	require.NoError(t, err)
	_, err = store.InsertOutage(ctx, domain.Outage{NeighborhoodID: dup.ID, Date: "2026-08-28", StartHour: 8, EndHour: 12})
	require.NoError(t, err)

	schedules, err := svc.Schedules(ctx, "2026-08-28")
	require.NoError(t, err)
	require.Len(t, schedules, 2)

	byID := map[int64]domain.Schedule{}
	for _, s := range schedules {
		byID[s.Neighborhood.ID] = s
	}
	merged := byID[rep.ID]
	require.Len(t, merged.Outages, 1)
	assert.Equal(t, 6.0, merged.Outages[0].StartHour)
	assert.Equal(t, 12.0, merged.Outages[0].EndHour)

	// The neighborhood with no outage still appears, with an empty list.
	assert.NotNil(t, byID[other.ID].Outages)
	assert.Empty(t, byID[other.ID].Outages)
}

func TestStats_RangeFilter(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	n := seedNeighborhood(t, store, "Ankazomanga", "4e Arrondissement")

	for _, o := range []domain.Outage{
		{NeighborhoodID: n.ID, Date: "2026-08-26", StartHour: 6, EndHour: 9},
		{NeighborhoodID: n.ID, Date: "2026-08-27", StartHour: 6, EndHour: 10},
		{NeighborhoodID: n.ID, Date: "2026-08-28", StartHour: 6, EndHour: 8},
	} {
		_, err := store.InsertOutage(ctx, o)
		require.NoError(t, err)
	}

	stats, err := svc.Stats(ctx, "2026-08-27", "2026-08-28")
	require.NoError(t, err)
	assert.Equal(t, 6.0, stats.TotalOutageHours)
	require.Len(t, stats.DailyStats, 2)
	assert.Equal(t, "2026-08-27", stats.DailyStats[0].Date)
}

func TestDates(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	dates, err := svc.Dates(ctx)
	require.NoError(t, err)
	assert.NotNil(t, dates)
	assert.Empty(t, dates)

	n := seedNeighborhood(t, store, "Mahamasina", "1er Arrondissement")
	for _, d := range []string{"2026-08-28", "2026-08-26", "2026-08-28"} {
		_, err := store.InsertOutage(ctx, domain.Outage{NeighborhoodID: n.ID, Date: d, StartHour: 6, EndHour: 9})
		require.NoError(t, err)
	}

	dates, err = svc.Dates(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-08-26", "2026-08-28"}, dates)
}
