// Package reporting implements the Reporting Read-Side (C8):
// aggregation queries over persisted jobs and results, built with
// Masterminds/squirrel so every predicate binds through a placeholder
// rather than string concatenation (§9's flagged SQL-injection fix).
package reporting

import "time"

// Filter narrows GetJobs/GetExecutionSummary/GetTopFailingTests by the
// optional dimensions §4.8 lists; zero values mean "no filter".
type Filter struct {
	LobID  string
	TeamID string
	JobID  string
	Start  *time.Time
	End    *time.Time
	Status string
}

// ExecutionSummary is GetExecutionSummary's result shape: counts by
// status plus average duration in seconds.
type ExecutionSummary struct {
	TotalJobs          int
	SucceededCount     int
	FailedCount        int
	RunningCount       int
	AverageDurationSec float64
}

// LobExecutionSummary is one row of GetLobExecutionSummary, grouped by
// lob_id and ordered by total jobs desc.
type LobExecutionSummary struct {
	LobID string
	ExecutionSummary
}

// JobListItem is one row of GetJobs.
type JobListItem struct {
	ID            string     `db:"id"`
	LobID         string     `db:"lob_id"`
	TeamID        string     `db:"team_id"`
	RepoURL       string     `db:"repo_url"`
	TestImageType string     `db:"test_image_type"`
	Status        string     `db:"status"`
	StartTime     time.Time  `db:"start_time"`
	EndTime       *time.Time `db:"end_time"`
	TestsPassed   int        `db:"tests_passed"`
	TestsFailed   int        `db:"tests_failed"`
	TestsSkipped  int        `db:"tests_skipped"`
}

// FailingTest is one row of GetTopFailingTests.
type FailingTest struct {
	TestName    string
	FailureCount int
}
