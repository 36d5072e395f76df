package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"qcdash/internal/aggregate"
	"qcdash/internal/cache"
	"qcdash/internal/core"
)

const refreshKey = "inspections"

// Fetcher loads the full inspection list from upstream.
type Fetcher interface {
	List(ctx context.Context) ([]core.InspectionRecord, error)
}

// Status describes the snapshot currently served.
type Status struct {
	Generation  uint64    `json:"generation"`
	FetchedAt   time.Time `json:"fetchedAt"`
	Count       int       `json:"count"`
	LastError   string    `json:"lastError,omitempty"`
	LastErrorAt time.Time `json:"lastErrorAt"`
	Refreshes   uint64    `json:"refreshes"`
	Failures    uint64    `json:"failures"`
	Stale       uint64    `json:"stale"`
}

// Ready reports whether at least one fetch has been applied.
func (s Status) Ready() bool { return s.Generation > 0 }

// DashboardService keeps the last valid record snapshot and serves
// aggregated views over it. Fetches are collapsed and ordered so that the
// most recently started one wins.
type DashboardService struct {
	fetcher Fetcher
	views   cache.Cache[aggregate.Dashboard]
	logger  *slog.Logger
	now     func() time.Time

	group  singleflight.Group
	issued atomic.Uint64

	mu          sync.RWMutex
	records     []core.InspectionRecord
	generation  uint64
	fetchedAt   time.Time
	applied     uint64
	lastErr     error
	lastErrAt   time.Time
	refreshes   uint64
	failures    uint64
	staleDrops  uint64
	listenersMu sync.Mutex
	listeners   []func(Status)
}

// NewDashboardService wires a fetcher and the per-filter view cache.
func NewDashboardService(fetcher Fetcher, views cache.Cache[aggregate.Dashboard], logger *slog.Logger) *DashboardService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DashboardService{
		fetcher: fetcher,
		views:   views,
		logger:  logger,
		now:     time.Now,
	}
}

// OnRefresh registers fn to run after every applied snapshot.
func (s *DashboardService) OnRefresh(fn func(Status)) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Refresh fetches the record list, sharing any fetch already in flight.
// On failure the previous snapshot is kept and the error returned.
func (s *DashboardService) Refresh(ctx context.Context) (Status, error) {
	// The shared fetch outlives any single caller's cancellation.
	fetchCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(refreshKey, func() (any, error) {
		return nil, s.fetch(fetchCtx)
	})

	select {
	case res := <-ch:
		return s.Status(), res.Err
	case <-ctx.Done():
		return s.Status(), ctx.Err()
	}
}

// Invalidate starts a fresh fetch even if one is already running. Used when
// upstream announces a change the in-flight fetch may have missed.
func (s *DashboardService) Invalidate(ctx context.Context) (Status, error) {
	s.group.Forget(refreshKey)
	return s.Refresh(ctx)
}

func (s *DashboardService) fetch(ctx context.Context) error {
	ticket := s.issued.Add(1)
	start := s.now()
	records, err := s.fetcher.List(ctx)

	s.mu.Lock()
	if ticket < s.applied {
		s.staleDrops++
		s.mu.Unlock()
		s.logger.DebugContext(ctx, "Discarded stale fetch result", "ticket", ticket)
		return nil
	}
	if err != nil {
		s.failures++
		s.lastErr = err
		s.lastErrAt = s.now()
		s.mu.Unlock()
		s.logger.WarnContext(ctx, "Inspection refresh failed, keeping previous snapshot",
			"error", err, "ticket", ticket)
		return fmt.Errorf("refresh inspections: %w", err)
	}
	s.applied = ticket
	s.records = records
	s.generation++
	s.fetchedAt = s.now()
	s.lastErr = nil
	s.lastErrAt = time.Time{}
	s.refreshes++
	st := s.statusLocked()
	s.mu.Unlock()

	if s.views != nil {
		s.views.Purge()
	}
	s.logger.InfoContext(ctx, "Inspection snapshot refreshed",
		"generation", st.Generation,
		"count", st.Count,
		"duration_ms", time.Since(start).Milliseconds())

	s.listenersMu.Lock()
	listeners := slices.Clone(s.listeners)
	s.listenersMu.Unlock()
	for _, fn := range listeners {
		fn(st)
	}
	return nil
}

// Status returns a copy of the snapshot bookkeeping.
func (s *DashboardService) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.statusLocked()
}

func (s *DashboardService) statusLocked() Status {
	st := Status{
		Generation: s.generation,
		FetchedAt:  s.fetchedAt,
		Count:      len(s.records),
		Refreshes:  s.refreshes,
		Failures:   s.failures,
		Stale:      s.staleDrops,
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
		st.LastErrorAt = s.lastErrAt
	}
	return st
}

func (s *DashboardService) snapshot() ([]core.InspectionRecord, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records, s.generation
}

// Dashboard computes every view for filter over the current snapshot.
// Results are cached per snapshot generation.
func (s *DashboardService) Dashboard(filter core.FilterSpec) aggregate.Dashboard {
	records, gen := s.snapshot()
	key := strconv.FormatUint(gen, 10) + "|" + filter.Key()

	if s.views != nil {
		if d, ok := s.views.Get(key); ok {
			return d
		}
	}
	d := aggregate.Build(records, filter)
	if s.views != nil {
		s.views.Set(key, d)
	}
	return d
}

// FilterOptions lists the values each filter dropdown offers.
func (s *DashboardService) FilterOptions() aggregate.FilterOptions {
	records, _ := s.snapshot()
	return aggregate.Options(records)
}

// Records returns a copy of the current snapshot's records.
func (s *DashboardService) Records() []core.InspectionRecord {
	records, _ := s.snapshot()
	return append([]core.InspectionRecord(nil), records...)
}

// Record looks up a single record by its identifier.
func (s *DashboardService) Record(id string) (core.InspectionRecord, bool) {
	records, _ := s.snapshot()
	for _, r := range records {
		if r.ID == id {
			return r, true
		}
	}
	return core.InspectionRecord{}, false
}

// Run refreshes every interval until ctx is done.
func (s *DashboardService) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
				s.logger.WarnContext(ctx, "Periodic refresh failed", "error", err)
			}
		}
	}
}
