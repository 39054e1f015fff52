package tracker

import (
	"context"
	"time"
)

// Repository is the relational persistence contract the Job Tracker
// depends on (§1: the relational store is an external collaborator).
type Repository interface {
	// CreateJob inserts a new Running job row; the caller supplies the
	// id so CreateJob and the generated job name can share one
	// identifier.
	CreateJob(ctx context.Context, job TestJob) error

	// GetJob returns ErrJobNotFound if no row with this id exists.
	GetJob(ctx context.Context, jobID string) (TestJob, error)

	// UpdateJobStatus performs a non-terminal status transition, exposed
	// for external signals; currently unused by the tracker itself.
	UpdateJobStatus(ctx context.Context, jobID string, status Status) error

	// SetClusterJobName records the cluster workload name created for
	// jobID, once the Job Orchestrator has confirmed its creation.
	SetClusterJobName(ctx context.Context, jobID, clusterJobName string) error

	// CompleteJobTx atomically updates the job row to a terminal status
	// with its end time and counters, and inserts results, inside a
	// single transaction. It returns ErrJobNotFound if the job does not
	// exist.
	CompleteJobTx(ctx context.Context, jobID string, status Status, passed, failed, skipped int, endTime time.Time, results []TestResult) error

	// CountRunningJobs returns how many jobs are currently Running for
	// the given lob/team, for the concurrency-cap check in §5.
	CountRunningJobs(ctx context.Context, lobID, teamID string) (int, error)

	// CountRunningJobsForLob returns how many jobs are currently Running
	// anywhere in the given lob, across all of its teams.
	CountRunningJobsForLob(ctx context.Context, lobID string) (int, error)

	// ListResultsForJob returns every TestResult row belonging to jobID.
	ListResultsForJob(ctx context.Context, jobID string) ([]TestResult, error)

	// ListJobsEndedBefore returns every terminal job whose end_time
	// precedes cutoff, for the `cleanup-old-test-results` retention
	// sweep (§6, §3's JobHistoryRetentionDays).
	ListJobsEndedBefore(ctx context.Context, cutoff time.Time) ([]TestJob, error)

	// DeleteResultsForJobsEndedBefore deletes every TestResult row whose
	// parent job ended before cutoff, leaving the TestJob row itself
	// intact (§3: retention prunes results/artifacts, never the job
	// row). It returns the number of rows deleted.
	DeleteResultsForJobsEndedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
