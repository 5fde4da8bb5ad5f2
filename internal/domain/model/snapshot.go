package model

import (
	"time"

	"gorm.io/datatypes"
)

// RangeID identifies a dashboard time range.
type RangeID string

// Dashboard ranges.
const (
	Range7d  RangeID = "7d"
	Range30d RangeID = "30d"
	Range90d RangeID = "90d"
	RangeAll RangeID = "all"
)

// Valid reports whether r is a known range.
func (r RangeID) Valid() bool {
	switch r {
	case Range7d, Range30d, Range90d, RangeAll:
		return true
	}
	return false
}

// Days returns the range length in days; 0 means unbounded.
func (r RangeID) Days() int {
	switch r {
	case Range7d:
		return 7
	case Range30d:
		return 30
	case Range90d:
		return 90
	default:
		return 0
	}
}

// TrendPoint is one day in the dashboard trend series.
type TrendPoint struct {
	Date   string   `json:"date"` // YYYY-MM-DD
	Count  int64    `json:"count"`
	AvgMs  *int64   `json:"avgMs"`
	AvgSco *float64 `json:"avgScore"`
}

// DashboardSnapshot is the eagerly materialized aggregate served to the
// dashboard. Keyed by (user, range, as-of bucket); writers replace the row
// atomically so readers never see a partial update.
type DashboardSnapshot struct {
	UserID      string         `gorm:"column:user_id;uniqueIndex:uq_snap_user_range_bucket,priority:1;not null" json:"userId"`
	RangeID     RangeID        `gorm:"column:range_id;size:8;uniqueIndex:uq_snap_user_range_bucket,priority:2;not null" json:"rangeId"`
	AsOfBucket  string         `gorm:"column:as_of_bucket;size:16;uniqueIndex:uq_snap_user_range_bucket,priority:3;not null" json:"asOfBucket"`
	Count       int64          `gorm:"column:count" json:"count"`
	DNFCount    int64          `gorm:"column:dnf_count" json:"dnfCount"`
	Plus2Count  int64          `gorm:"column:plus2_count" json:"plus2Count"`
	BestMs      *int64         `gorm:"column:best_ms" json:"bestMs"`
	WorstMs     *int64         `gorm:"column:worst_ms" json:"worstMs"`
	AvgMs       *int64         `gorm:"column:avg_ms" json:"avgMs"`
	AvgScore    *float64       `gorm:"column:avg_score" json:"avgScore"`
	Trend       datatypes.JSON `gorm:"column:trend" json:"trend"`
	LastSolveAt time.Time      `gorm:"column:last_solve_at" json:"lastSolveAt"`
	ComputedAt  time.Time      `gorm:"column:computed_at" json:"computedAt"`
}

// TableName returns the snapshots table name.
func (*DashboardSnapshot) TableName() string { return "dashboard_snapshots" }
