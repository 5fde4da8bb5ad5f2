package model

import (
	"time"

	"github.com/google/uuid"
)

// ScoreRecord is one scoring outcome for a solve under one score version.
// Re-scoring under a new version appends a new record; history is never
// overwritten so old scores stay reproducible.
type ScoreRecord struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	SolveID        uuid.UUID `gorm:"column:solve_id;type:uuid;uniqueIndex:uq_scores_solve_version,priority:1;not null" json:"solveId"`
	UserID         string    `gorm:"column:user_id;index;not null" json:"userId"`
	Score          float64   `gorm:"column:score;not null" json:"score"`
	ScoreVersion   string    `gorm:"column:score_version;size:64;uniqueIndex:uq_scores_solve_version,priority:2;not null" json:"scoreVersion"`
	ExpectedTimeMs *int64    `gorm:"column:expected_time_ms" json:"expectedTimeMs"`
	DNFRisk        float64   `gorm:"column:dnf_risk" json:"dnfRisk"`
	Plus2Risk      float64   `gorm:"column:plus2_risk" json:"plus2Risk"`
	ComputedAt     time.Time `gorm:"column:computed_at" json:"computedAt"`
}

// TableName returns the score records table name.
func (*ScoreRecord) TableName() string { return "score_records" }
