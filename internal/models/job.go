package models

import "time"

// JobStatus is the lifecycle state of a [JobRun].
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// JobTrigger records what started a run.
type JobTrigger string

const (
	TriggerSchedule JobTrigger = "schedule"
	TriggerManual   JobTrigger = "manual"
)

// JobOutcome carries the counts a job reports when it finishes.
type JobOutcome struct {
	Added     int
	Updated   int
	Processed int
}

// JobRun is a single invocation of a scheduled job.
type JobRun struct {
	ID         string
	Job        string
	Trigger    JobTrigger
	Status     JobStatus
	Outcome    JobOutcome
	Error      string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// Duration returns the elapsed time of a finished run, or zero while it is running.
func (r *JobRun) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
