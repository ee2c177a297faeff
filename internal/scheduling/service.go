// Package scheduling implements the write path that keeps every
// (neighborhood, date) outage set coalesced, and the read path that assembles
// per-neighborhood schedules.
package scheduling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mirado-dev/delestage/internal/domain"
	"github.com/mirado-dev/delestage/internal/observability"
)

// ErrInvalidInterval is returned for windows with start >= end or bounds
// outside the accepted range.
var ErrInvalidInterval = errors.New("invalid outage interval")

const (
	// Start hours are hours of day; end hours may run past midnight into the
	// following day but no further.
	maxStartHour = 24
	maxEndHour   = 48
)

// Storage is the persistence surface the service depends on.
type Storage interface {
	ListNeighborhoods(ctx context.Context) ([]domain.Neighborhood, error)
	ListOutagesByNeighborhood(ctx context.Context, neighborhoodID int64, date string) ([]domain.Outage, error)
	ListOutagesBetween(ctx context.Context, startDate, endDate string) ([]domain.Outage, error)
	ListDates(ctx context.Context) ([]string, error)
	GetOutage(ctx context.Context, id int64) (domain.Outage, error)
	InsertOutage(ctx context.Context, o domain.Outage) (domain.Outage, error)
	UpdateOutage(ctx context.Context, o domain.Outage) (domain.Outage, error)
	DeleteOutage(ctx context.Context, id int64) error
	ReplaceOutages(ctx context.Context, supersededIDs []int64, merged domain.Outage) (domain.Outage, error)
	Health(ctx context.Context) error
}

// EventPublisher broadcasts outage mutations to the change feed.
type EventPublisher interface {
	PublishOutageChange(ctx context.Context, event OutageEvent) error
}

// OutageEvent describes one outage mutation for downstream consumers.
// SupersededIDs lists the stored rows a merge deleted; they are invalid from
// this event on.
type OutageEvent struct {
	Action        string        `json:"action"` // "created", "updated", "merged", "deleted"
	Outage        domain.Outage `json:"outage"`
	SupersededIDs []int64       `json:"supersededIds,omitempty"`
}

// OutageUpdate carries the fields of a partial outage update; nil means
// "leave unchanged".
type OutageUpdate struct {
	NeighborhoodID *int64
	Date           *string
	StartHour      *float64
	EndHour        *float64
	Reason         *string
}

// BulkResult is the per-id outcome of a bulk update. Exactly one of Outage
// and Err is set.
type BulkResult struct {
	ID     int64
	Outage *domain.Outage
	Err    error
}

// Service coordinates merge-on-write reconciliation and schedule assembly.
type Service struct {
	store   Storage
	events  EventPublisher // nil when the change feed is disabled
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates a Service. Pass a nil publisher to disable the change feed.
func New(store Storage, events EventPublisher, logger *slog.Logger, metrics *observability.Metrics) *Service {
	return &Service{store: store, events: events, logger: logger, metrics: metrics}
}

// CheckReadiness reports whether the backing store is reachable.
func (s *Service) CheckReadiness(ctx context.Context) error {
	return s.store.Health(ctx)
}

// ── Write path ──

// Create stores a new outage window, coalescing it with any overlapping
// stored windows in the same (neighborhood, date) scope. The returned record
// supersedes every previously known id in that scope.
func (s *Service) Create(ctx context.Context, o domain.Outage) (domain.Outage, error) {
	if err := validateInterval(o.StartHour, o.EndHour); err != nil {
		s.countWrite("create", "invalid")
		return domain.Outage{}, err
	}
	o.ID = 0 // candidate has no identity until persisted

	existing, err := s.store.ListOutagesByNeighborhood(ctx, o.NeighborhoodID, o.Date)
	if err != nil {
		s.countWrite("create", "error")
		return domain.Outage{}, fmt.Errorf("load existing outages: %w", err)
	}

	run, superseded := reconcile(existing, o)
	if len(superseded) == 0 {
		saved, err := s.store.InsertOutage(ctx, o)
		if err != nil {
			s.countWrite("create", "error")
			return domain.Outage{}, err
		}
		s.countWrite("create", "ok")
		s.publish(ctx, OutageEvent{Action: "created", Outage: saved})
		return saved, nil
	}

	saved, err := s.store.ReplaceOutages(ctx, superseded, run)
	if err != nil {
		s.countWrite("create", "error")
		return domain.Outage{}, err
	}
	s.recordMerge(len(superseded))
	s.countWrite("create", "ok")
	s.publish(ctx, OutageEvent{Action: "merged", Outage: saved, SupersededIDs: superseded})
	s.logger.Info("outage merged on create",
		"neighborhood_id", saved.NeighborhoodID, "date", saved.Date,
		"superseded", len(superseded), "start", saved.StartHour, "end", saved.EndHour)
	return saved, nil
}

// Update modifies one outage and re-establishes the no-overlap invariant for
// its (possibly new) scope. If the change makes the row collide with others,
// the original row and its overlaps are replaced by one fresh merged row.
// A missing id returns the store's not-found error untouched.
func (s *Service) Update(ctx context.Context, id int64, upd OutageUpdate) (domain.Outage, error) {
	current, err := s.store.GetOutage(ctx, id)
	if err != nil {
		s.countWrite("update", writeOutcome(err))
		return domain.Outage{}, err
	}

	updated := applyUpdate(current, upd)
	if err := validateInterval(updated.StartHour, updated.EndHour); err != nil {
		s.countWrite("update", "invalid")
		return domain.Outage{}, err
	}

	existing, err := s.store.ListOutagesByNeighborhood(ctx, updated.NeighborhoodID, updated.Date)
	if err != nil {
		s.countWrite("update", "error")
		return domain.Outage{}, fmt.Errorf("load existing outages: %w", err)
	}

	// The row being updated must not merge with its own stored copy.
	others := existing[:0:0]
	for _, e := range existing {
		if e.ID != id {
			others = append(others, e)
		}
	}

	run, superseded := reconcile(others, updated)
	if len(superseded) == 0 {
		saved, err := s.store.UpdateOutage(ctx, updated)
		if err != nil {
			s.countWrite("update", writeOutcome(err))
			return domain.Outage{}, err
		}
		s.countWrite("update", "ok")
		s.publish(ctx, OutageEvent{Action: "updated", Outage: saved})
		return saved, nil
	}

	// The updated row collapsed into neighbors: its old identity dies with
	// the superseded rows and one fresh merged row takes over.
	superseded = append(superseded, id)
	saved, err := s.store.ReplaceOutages(ctx, superseded, run)
	if err != nil {
		s.countWrite("update", "error")
		return domain.Outage{}, err
	}
	s.recordMerge(len(superseded))
	s.countWrite("update", "ok")
	s.publish(ctx, OutageEvent{Action: "merged", Outage: saved, SupersededIDs: superseded})
	s.logger.Info("outage merged on update",
		"outage_id", id, "neighborhood_id", saved.NeighborhoodID, "date", saved.Date,
		"superseded", len(superseded))
	return saved, nil
}

// BulkUpdate applies Update independently and sequentially for each id. A
// failure on one id never rolls back earlier successes; the caller gets a
// per-id outcome.
func (s *Service) BulkUpdate(ctx context.Context, ids []int64, upd OutageUpdate) []BulkResult {
	results := make([]BulkResult, 0, len(ids))
	for _, id := range ids {
		saved, err := s.Update(ctx, id, upd)
		if err != nil {
			results = append(results, BulkResult{ID: id, Err: err})
			continue
		}
		results = append(results, BulkResult{ID: id, Outage: &saved})
	}
	return results
}

// Delete removes one outage by id.
func (s *Service) Delete(ctx context.Context, id int64) error {
	o, err := s.store.GetOutage(ctx, id)
	if err != nil {
		s.countWrite("delete", writeOutcome(err))
		return err
	}
	if err := s.store.DeleteOutage(ctx, id); err != nil {
		s.countWrite("delete", writeOutcome(err))
		return err
	}
	s.countWrite("delete", "ok")
	s.publish(ctx, OutageEvent{Action: "deleted", Outage: o})
	return nil
}

// ── Read path ──

// Schedules returns one entry per logical neighborhood for the date
// (defaulting to today), duplicates folded and windows merged.
func (s *Service) Schedules(ctx context.Context, date string) ([]domain.Schedule, error) {
	if date == "" {
		date = domain.Today()
	}
	neighborhoods, err := s.store.ListNeighborhoods(ctx)
	if err != nil {
		return nil, fmt.Errorf("list neighborhoods: %w", err)
	}

	fetch := func(neighborhoodID int64, d string) ([]domain.Outage, error) {
		return s.store.ListOutagesByNeighborhood(ctx, neighborhoodID, d)
	}
	schedules, err := domain.AssembleSchedules(neighborhoods, fetch, date)
	if err != nil {
		return nil, err
	}
	s.metrics.SchedulesAssembled.Inc()
	return schedules, nil
}

// Stats aggregates outage history over an inclusive date range; empty bounds
// are unbounded.
func (s *Service) Stats(ctx context.Context, startDate, endDate string) (domain.HistoricalStats, error) {
	neighborhoods, err := s.store.ListNeighborhoods(ctx)
	if err != nil {
		return domain.HistoricalStats{}, fmt.Errorf("list neighborhoods: %w", err)
	}
	outages, err := s.store.ListOutagesBetween(ctx, startDate, endDate)
	if err != nil {
		return domain.HistoricalStats{}, fmt.Errorf("list outages: %w", err)
	}
	return domain.ComputeStats(neighborhoods, outages), nil
}

// Dates returns every date that has at least one outage, ascending. The
// result is empty (never nil) when the store is empty.
func (s *Service) Dates(ctx context.Context) ([]string, error) {
	dates, err := s.store.ListDates(ctx)
	if err != nil {
		return nil, fmt.Errorf("list dates: %w", err)
	}
	if dates == nil {
		dates = []string{}
	}
	return dates, nil
}

// ── Internals ──

// reconcile merges the candidate against the existing stored rows and
// returns the surviving run covering the candidate plus the ids of stored
// rows that run absorbed. An empty id list means the candidate fits as-is.
func reconcile(existing []domain.Outage, candidate domain.Outage) (domain.Outage, []int64) {
	all := make([]domain.Outage, 0, len(existing)+1)
	all = append(all, existing...)
	all = append(all, candidate)

	merged := domain.Merge(all)

	// Find the run covering the candidate's span; the candidate always ends
	// up inside exactly one run.
	var run domain.Outage
	for _, r := range merged {
		if r.StartHour <= candidate.StartHour && r.EndHour >= candidate.EndHour {
			run = r
			break
		}
	}

	var superseded []int64
	for _, e := range existing {
		if domain.Overlaps(e.StartHour, e.EndHour, run.StartHour, run.EndHour) {
			superseded = append(superseded, e.ID)
		}
	}

	run.ID = 0
	run.NeighborhoodID = candidate.NeighborhoodID
	run.Date = candidate.Date
	return run, superseded
}

func applyUpdate(o domain.Outage, upd OutageUpdate) domain.Outage {
	if upd.NeighborhoodID != nil {
		o.NeighborhoodID = *upd.NeighborhoodID
	}
	if upd.Date != nil {
		o.Date = *upd.Date
	}
	if upd.StartHour != nil {
		o.StartHour = *upd.StartHour
	}
	if upd.EndHour != nil {
		o.EndHour = *upd.EndHour
	}
	if upd.Reason != nil {
		o.Reason = *upd.Reason
	}
	return o
}

func validateInterval(start, end float64) error {
	if start < 0 || start >= maxStartHour || end <= start || end > maxEndHour {
		return fmt.Errorf("%w: [%g, %g)", ErrInvalidInterval, start, end)
	}
	return nil
}

// publish sends a change event when the feed is enabled. Publish failures are
// reported but never fail the write that triggered them.
func (s *Service) publish(ctx context.Context, event OutageEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishOutageChange(ctx, event); err != nil {
		s.metrics.EventPublishErrors.Inc()
		s.logger.Warn("publish outage event failed", "action", event.Action, "error", err)
		return
	}
	s.metrics.EventsPublished.Inc()
}

func (s *Service) countWrite(op, outcome string) {
	s.metrics.OutageWrites.WithLabelValues(op, outcome).Inc()
}

func (s *Service) recordMerge(superseded int) {
	s.metrics.MergesPerformed.Inc()
	s.metrics.RowsSuperseded.Add(float64(superseded))
}

// writeOutcome maps an error to a metrics outcome label.
func writeOutcome(err error) string {
	if errors.Is(err, domain.ErrNotFound) {
		return "not_found"
	}
	return "error"
}
