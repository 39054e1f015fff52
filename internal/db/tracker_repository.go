package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/contoso-cloud/testexec-controlplane/internal/tracker"
)

// TrackerRepository implements tracker.Repository against the embedded
// sqlite schema.
type TrackerRepository struct {
	db *sqlx.DB
}

// NewTrackerRepository builds a TrackerRepository over db.
func NewTrackerRepository(db *sqlx.DB) *TrackerRepository {
	return &TrackerRepository{db: db}
}

type testJobRow struct {
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
	CreatedBy     string     `db:"created_by"`
	ScheduleID    *string    `db:"schedule_id"`
	ClusterJobName string    `db:"cluster_job_name"`
}

func (r testJobRow) toJob() tracker.TestJob {
	return tracker.TestJob{
		ID:            r.ID,
		LobID:         r.LobID,
		TeamID:        r.TeamID,
		RepoURL:       r.RepoURL,
		TestImageType: r.TestImageType,
		Status:        tracker.Status(r.Status),
		StartTime:     r.StartTime,
		EndTime:       r.EndTime,
		TestsPassed:   r.TestsPassed,
		TestsFailed:   r.TestsFailed,
		TestsSkipped:  r.TestsSkipped,
		CreatedBy:     r.CreatedBy,
		ScheduleID:    r.ScheduleID,
		ClusterJobName: r.ClusterJobName,
	}
}

func (repo *TrackerRepository) CreateJob(ctx context.Context, job tracker.TestJob) error {
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO TestJobs (id, lob_id, team_id, repo_url, test_image_type, status, start_time, created_by, schedule_id, cluster_job_name)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.LobID, job.TeamID, job.RepoURL, job.TestImageType, string(job.Status), job.StartTime, job.CreatedBy, job.ScheduleID, job.ClusterJobName,
	)
	if err != nil {
		return fmt.Errorf("db: inserting test job: %w", err)
	}
	return nil
}

func (repo *TrackerRepository) GetJob(ctx context.Context, jobID string) (tracker.TestJob, error) {
	var row testJobRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM TestJobs WHERE id = ?`, jobID)
	if errors.Is(err, sql.ErrNoRows) {
		return tracker.TestJob{}, tracker.ErrJobNotFound
	}
	if err != nil {
		return tracker.TestJob{}, fmt.Errorf("db: loading test job %s: %w", jobID, err)
	}
	return row.toJob(), nil
}

func (repo *TrackerRepository) UpdateJobStatus(ctx context.Context, jobID string, status tracker.Status) error {
	result, err := repo.db.ExecContext(ctx, `UPDATE TestJobs SET status = ? WHERE id = ?`, string(status), jobID)
	if err != nil {
		return fmt.Errorf("db: updating test job status: %w", err)
	}
	return requireRowAffected(result, tracker.ErrJobNotFound)
}

func (repo *TrackerRepository) SetClusterJobName(ctx context.Context, jobID, clusterJobName string) error {
	result, err := repo.db.ExecContext(ctx, `UPDATE TestJobs SET cluster_job_name = ? WHERE id = ?`, clusterJobName, jobID)
	if err != nil {
		return fmt.Errorf("db: setting cluster job name: %w", err)
	}
	return requireRowAffected(result, tracker.ErrJobNotFound)
}

func (repo *TrackerRepository) CompleteJobTx(ctx context.Context, jobID string, status tracker.Status, passed, failed, skipped int, endTime time.Time, results []tracker.TestResult) error {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("db: beginning completion transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE TestJobs SET status = ?, end_time = ?, tests_passed = ?, tests_failed = ?, tests_skipped = ?
		WHERE id = ?`,
		string(status), endTime, passed, failed, skipped, jobID,
	)
	if err != nil {
		return fmt.Errorf("db: updating test job on completion: %w", err)
	}
	if err := requireRowAffected(result, tracker.ErrJobNotFound); err != nil {
		return err
	}

	for _, res := range results {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO TestResults (id, job_id, test_name, status, duration_seconds, error_message, stack_trace)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			res.ID, res.JobID, res.TestName, string(res.Status), res.DurationSeconds, res.ErrorMessage, res.StackTrace,
		)
		if err != nil {
			return fmt.Errorf("db: inserting test result for job %s: %w", jobID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("db: committing job completion: %w", err)
	}
	return nil
}

func (repo *TrackerRepository) ListResultsForJob(ctx context.Context, jobID string) ([]tracker.TestResult, error) {
	var rows []struct {
		ID              string  `db:"id"`
		JobID           string  `db:"job_id"`
		TestName        string  `db:"test_name"`
		Status          string  `db:"status"`
		DurationSeconds float64 `db:"duration_seconds"`
		ErrorMessage    string  `db:"error_message"`
		StackTrace      string  `db:"stack_trace"`
	}
	err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM TestResults WHERE job_id = ?`, jobID)
	if err != nil {
		return nil, fmt.Errorf("db: listing results for job %s: %w", jobID, err)
	}
	out := make([]tracker.TestResult, 0, len(rows))
	for _, row := range rows {
		out = append(out, tracker.TestResult{
			ID: row.ID, JobID: row.JobID, TestName: row.TestName,
			Status: tracker.ResultStatus(row.Status), DurationSeconds: row.DurationSeconds,
			ErrorMessage: row.ErrorMessage, StackTrace: row.StackTrace,
		})
	}
	return out, nil
}

func (repo *TrackerRepository) CountRunningJobs(ctx context.Context, lobID, teamID string) (int, error) {
	var count int
	err := repo.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM TestJobs WHERE lob_id = ? AND team_id = ? AND status = ?`,
		lobID, teamID, string(tracker.StatusRunning),
	)
	if err != nil {
		return 0, fmt.Errorf("db: counting running jobs: %w", err)
	}
	return count, nil
}

func (repo *TrackerRepository) CountRunningJobsForLob(ctx context.Context, lobID string) (int, error) {
	var count int
	err := repo.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM TestJobs WHERE lob_id = ? AND status = ?`,
		lobID, string(tracker.StatusRunning),
	)
	if err != nil {
		return 0, fmt.Errorf("db: counting running jobs for lob: %w", err)
	}
	return count, nil
}

func (repo *TrackerRepository) ListJobsEndedBefore(ctx context.Context, cutoff time.Time) ([]tracker.TestJob, error) {
	var rows []testJobRow
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT * FROM TestJobs WHERE end_time IS NOT NULL AND end_time < ?`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("db: listing jobs ended before %s: %w", cutoff, err)
	}
	out := make([]tracker.TestJob, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toJob())
	}
	return out, nil
}

func (repo *TrackerRepository) DeleteResultsForJobsEndedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := repo.db.ExecContext(ctx, `
		DELETE FROM TestResults WHERE job_id IN (
			SELECT id FROM TestJobs WHERE end_time IS NOT NULL AND end_time < ?
		)`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("db: deleting test results ended before %s: %w", cutoff, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db: checking rows affected: %w", err)
	}
	return n, nil
}

func requireRowAffected(result sql.Result, notFoundErr error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("db: checking rows affected: %w", err)
	}
	if n == 0 {
		return notFoundErr
	}
	return nil
}

var _ tracker.Repository = (*TrackerRepository)(nil)
