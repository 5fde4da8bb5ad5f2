package model

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of a training job.
type JobStatus string

// Job statuses. Done and failed are terminal; failed jobs are not retried
// automatically so a broken training routine cannot loop silently.
const (
	JobQueued  JobStatus = "queued"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// TrainingJob is a durable "retrain requested" record. Created by the
// ingestion gateway's threshold trigger, transitioned only by the worker.
type TrainingJob struct {
	ID           uuid.UUID  `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID       string     `gorm:"column:user_id;index;not null" json:"userId"`
	Reason       string     `gorm:"column:reason;size:128" json:"reason"`
	TriggerKey   string     `gorm:"column:trigger_key;size:128;uniqueIndex" json:"triggerKey"`
	Status       JobStatus  `gorm:"column:status;size:16;index;not null" json:"status"`
	RequestedAt  time.Time  `gorm:"column:requested_at" json:"requestedAt"`
	StartedAt    *time.Time `gorm:"column:started_at" json:"startedAt"`
	FinishedAt   *time.Time `gorm:"column:finished_at" json:"finishedAt"`
	ErrorMessage string     `gorm:"column:error_message" json:"errorMessage,omitempty"`
}

// TableName returns the training jobs table name.
func (*TrainingJob) TableName() string { return "training_jobs" }
