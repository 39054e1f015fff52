// Package tracker implements the Job Tracker (C5): persisting job state
// transitions, parsing result XML, storing artifacts, publishing a
// metadata event, and feeding metrics — the central convergence point of
// a job's lifecycle (§4.5).
package tracker

import (
	"errors"
	"time"
)

// Status is a TestJob's lifecycle state.
type Status string

const (
	StatusRunning   Status = "Running"
	StatusSucceeded Status = "Succeeded"
	StatusFailed    Status = "Failed"
)

// ResultStatus is one TestResult's outcome.
type ResultStatus string

const (
	ResultPassed  ResultStatus = "Passed"
	ResultFailed  ResultStatus = "Failed"
	ResultSkipped ResultStatus = "Skipped"
	ResultUnknown ResultStatus = "Unknown"
)

// TestJob is one invocation of a test runner image against one
// repository — the unit of scheduling. It is created in Running at
// submission and transitions to a terminal state exactly once.
type TestJob struct {
	ID             string
	LobID          string
	TeamID         string
	RepoURL        string
	TestImageType  string
	Status         Status
	StartTime      time.Time
	EndTime        *time.Time
	TestsPassed    int
	TestsFailed    int
	TestsSkipped   int
	CreatedBy      string
	ScheduleID     *string
	// ClusterJobName correlates this row back to the workload the Job
	// Orchestrator created for it. It is set once, right after the
	// orchestrator call succeeds, via AttachClusterJob.
	ClusterJobName string
}

// TestResult is one parsed test row, a child of a TestJob.
type TestResult struct {
	ID              string
	JobID           string
	TestName        string
	Status          ResultStatus
	DurationSeconds float64
	ErrorMessage    string
	StackTrace      string
}

// ErrJobNotFound is returned when CompleteJob/UpdateJobStatus target a
// job id that does not exist.
var ErrJobNotFound = errors.New("tracker: job not found")
