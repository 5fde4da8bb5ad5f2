package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/okian/cubetrics/internal/adapters/repository"
	"github.com/okian/cubetrics/internal/domain/model"
	"github.com/okian/cubetrics/pkg/logger"
	"github.com/okian/cubetrics/pkg/metrics"
)

// snapshotPageSize is how many solves a refresh reads per page while
// rebuilding the trend series.
const snapshotPageSize = 200

// dayFormat buckets snapshot keys and trend points by UTC day.
const dayFormat = "2006-01-02"

// allRanges returns every dashboard range a new solve can affect.
func allRanges() []model.RangeID {
	return []model.RangeID{model.Range7d, model.Range30d, model.Range90d, model.RangeAll}
}

// DashboardSummary serves the precomputed snapshot for (user, range). A
// cache miss computes one synchronously so the first dashboard view after
// startup still gets data.
func (s *Service) DashboardSummary(ctx context.Context, userID string, rangeID model.RangeID) (*model.DashboardSnapshot, error) {
	if !rangeID.Valid() {
		return nil, ErrUnknownRange
	}

	snap, err := s.repo.Get(ctx, userID, rangeID)
	if err == nil {
		return snap, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	s.RefreshSnapshots(ctx, userID, []model.RangeID{rangeID})
	return s.repo.Get(ctx, userID, rangeID)
}

// refreshState coalesces concurrent rebuilds of one (user, range) key.
// The first trigger becomes the owner and runs the rebuild; triggers
// arriving mid-flight mark the key dirty and wait. The owner keeps
// re-running until no trigger landed during its last pass, so every
// waiter is released only after a rebuild that started at or after its
// own trigger.
type refreshState struct {
	mu      sync.Mutex
	running bool
	dirty   bool
	done    chan struct{}
}

// RefreshSnapshots rebuilds the snapshots for the affected ranges,
// write-through with the mutation that triggered it. The stored value
// always reflects all data that existed at trigger time: a refresh that
// cannot join a rebuild started after its trigger forces a re-run instead
// of sharing the in-flight result.
func (s *Service) RefreshSnapshots(ctx context.Context, userID string, ranges []model.RangeID) {
	for _, rangeID := range ranges {
		key := userID + "|" + string(rangeID)
		v, _ := s.refreshStates.LoadOrStore(key, &refreshState{})
		st := v.(*refreshState)

		st.mu.Lock()
		if st.running {
			// The in-flight rebuild may have read the database before
			// this trigger's data committed. Mark dirty and wait for
			// the owner's covering re-run.
			st.dirty = true
			done := st.done
			st.mu.Unlock()
			<-done
			continue
		}
		st.running = true
		st.done = make(chan struct{})
		done := st.done
		st.mu.Unlock()

		for {
			s.refreshOne(ctx, userID, rangeID)
			st.mu.Lock()
			if !st.dirty {
				st.running = false
				close(done)
				st.mu.Unlock()
				break
			}
			st.dirty = false
			st.mu.Unlock()
		}
	}
}

// refreshOne rebuilds one (user, range) snapshot. A stale write, meaning
// another refresh with a newer trigger time already applied, is discarded
// rather than overwriting newer data.
func (s *Service) refreshOne(ctx context.Context, userID string, rangeID model.RangeID) {
	start := time.Now()
	snap, err := s.buildSnapshot(ctx, userID, rangeID, start.UTC())
	if err != nil {
		s.logger.Error(ctx, "snapshot rebuild failed",
			logger.String("userID", userID),
			logger.String("range", string(rangeID)),
			logger.Error(err),
		)
		return
	}

	err = s.repo.Put(ctx, snap)
	switch {
	case errors.Is(err, repository.ErrStaleSnapshot):
		metrics.RecordSnapshotStaleDiscard()
		s.logger.Debug(ctx, "stale snapshot refresh discarded",
			logger.String("userID", userID),
			logger.String("range", string(rangeID)),
		)
	case err != nil:
		s.logger.Error(ctx, "snapshot write failed",
			logger.String("userID", userID),
			logger.String("range", string(rangeID)),
			logger.Error(err),
		)
	default:
		metrics.RecordSnapshotRefresh(float64(time.Since(start).Milliseconds()))
	}
}

// buildSnapshot aggregates the user's solves for the range by paging the
// solve list with the keyset cursor, so inserts landing mid-rebuild cannot
// duplicate or skip rows that existed at trigger time.
func (s *Service) buildSnapshot(ctx context.Context, userID string, rangeID model.RangeID, triggeredAt time.Time) (*model.DashboardSnapshot, error) {
	var since *time.Time
	if days := rangeID.Days(); days > 0 {
		cutoff := triggeredAt.AddDate(0, 0, -days)
		since = &cutoff
	}

	snap := &model.DashboardSnapshot{
		UserID:     userID,
		RangeID:    rangeID,
		AsOfBucket: triggeredAt.Format(dayFormat),
		ComputedAt: triggeredAt,
	}

	var (
		sumMs    int64
		numTimes int64
		sumScore float64
		numScore int64
		byDay    = map[string]*model.TrendPoint{}
		daySums  = map[string]*trendAccum{}
		cursor   repository.Cursor
	)

	for {
		page, next, err := s.repo.List(ctx, userID, cursor, snapshotPageSize, repository.Filters{Since: since})
		if err != nil {
			return nil, err
		}

		ids := make([]uuid.UUID, 0, len(page))
		for i := range page {
			ids = append(ids, page[i].ID)
		}
		scoreByID, err := s.repo.LatestScores(ctx, ids)
		if err != nil {
			return nil, err
		}

		for i := range page {
			solve := &page[i]
			snap.Count++
			if solve.CreatedAt.After(snap.LastSolveAt) {
				snap.LastSolveAt = solve.CreatedAt
			}

			day := solve.CreatedAt.UTC().Format(dayFormat)
			point, okDay := byDay[day]
			if !okDay {
				point = &model.TrendPoint{Date: day}
				byDay[day] = point
				daySums[day] = &trendAccum{}
			}
			point.Count++
			acc := daySums[day]

			switch solve.Penalty {
			case model.PenaltyDNF:
				snap.DNFCount++
			case model.PenaltyPlus:
				snap.Plus2Count++
			}

			if eff, ok := solve.Effective(); ok {
				if snap.BestMs == nil || eff < *snap.BestMs {
					v := eff
					snap.BestMs = &v
				}
				if snap.WorstMs == nil || eff > *snap.WorstMs {
					v := eff
					snap.WorstMs = &v
				}
				sumMs += eff
				numTimes++
				acc.sumMs += eff
				acc.numTimes++
			}
			if sc, ok := scoreByID[solve.ID]; ok {
				sumScore += sc
				numScore++
				acc.sumScore += sc
				acc.numScore++
			}
		}

		if next.IsZero() {
			break
		}
		cursor = next
	}

	if numTimes > 0 {
		avg := sumMs / numTimes
		snap.AvgMs = &avg
	}
	if numScore > 0 {
		mean := sumScore / float64(numScore)
		snap.AvgScore = &mean
	}

	trend := make([]model.TrendPoint, 0, len(byDay))
	for day, point := range byDay {
		acc := daySums[day]
		if acc.numTimes > 0 {
			avg := acc.sumMs / acc.numTimes
			point.AvgMs = &avg
		}
		if acc.numScore > 0 {
			mean := acc.sumScore / float64(acc.numScore)
			point.AvgSco = &mean
		}
		trend = append(trend, *point)
	}
	sort.Slice(trend, func(i, j int) bool { return trend[i].Date < trend[j].Date })

	raw, err := json.Marshal(trend)
	if err != nil {
		return nil, err
	}
	snap.Trend = datatypes.JSON(raw)

	return snap, nil
}

// trendAccum accumulates per-day sums while a snapshot is being rebuilt.
type trendAccum struct {
	sumMs    int64
	numTimes int64
	sumScore float64
	numScore int64
}
