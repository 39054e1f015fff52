package reporting

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

const defaultPageSize = 50

// Reader runs the Reporting Read-Side's aggregation queries against the
// relational store. Every query goes through squirrel's builder so
// every bound value travels as a placeholder parameter, never as
// interpolated query text.
type Reader struct {
	db      *sqlx.DB
	builder sq.StatementBuilderType
}

// NewReader builds a Reader over db, an embeddable-sqlite-flavored
// *sqlx.DB by default (§3's persistence contract); the placeholder
// format is "?" to match sqlite/mysql-style drivers.
func NewReader(db *sqlx.DB) *Reader {
	return &Reader{db: db, builder: sq.StatementBuilder.PlaceholderFormat(sq.Question)}
}

func (r *Reader) jobsFilterConditions(f Filter) sq.And {
	cond := sq.And{}
	if f.LobID != "" {
		cond = append(cond, sq.Eq{"lob_id": f.LobID})
	}
	if f.TeamID != "" {
		cond = append(cond, sq.Eq{"team_id": f.TeamID})
	}
	if f.JobID != "" {
		cond = append(cond, sq.Eq{"id": f.JobID})
	}
	if f.Status != "" {
		cond = append(cond, sq.Eq{"status": f.Status})
	}
	if f.Start != nil {
		cond = append(cond, sq.GtOrEq{"start_time": *f.Start})
	}
	if f.End != nil {
		cond = append(cond, sq.LtOrEq{"start_time": *f.End})
	}
	return cond
}

// GetExecutionSummary counts jobs by status and averages
// end_time-start_time in seconds, optionally filtered by lob/time range.
func (r *Reader) GetExecutionSummary(ctx context.Context, f Filter) (ExecutionSummary, error) {
	query := r.builder.Select(
		"COUNT(*) AS total_jobs",
		"SUM(CASE WHEN status = 'Succeeded' THEN 1 ELSE 0 END) AS succeeded_count",
		"SUM(CASE WHEN status = 'Failed' THEN 1 ELSE 0 END) AS failed_count",
		"SUM(CASE WHEN status = 'Running' THEN 1 ELSE 0 END) AS running_count",
		"AVG(CASE WHEN end_time IS NOT NULL THEN (julianday(end_time) - julianday(start_time)) * 86400.0 END) AS average_duration_sec",
	).From("TestJobs").Where(r.jobsFilterConditions(f))

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return ExecutionSummary{}, fmt.Errorf("reporting: building execution summary query: %w", err)
	}

	var row struct {
		TotalJobs          int     `db:"total_jobs"`
		SucceededCount     int     `db:"succeeded_count"`
		FailedCount        int     `db:"failed_count"`
		RunningCount       int     `db:"running_count"`
		AverageDurationSec float64 `db:"average_duration_sec"`
	}
	if err := r.db.GetContext(ctx, &row, sqlStr, args...); err != nil {
		return ExecutionSummary{}, fmt.Errorf("reporting: querying execution summary: %w", err)
	}

	return ExecutionSummary{
		TotalJobs:          row.TotalJobs,
		SucceededCount:     row.SucceededCount,
		FailedCount:        row.FailedCount,
		RunningCount:       row.RunningCount,
		AverageDurationSec: row.AverageDurationSec,
	}, nil
}

// GetLobExecutionSummary groups the same aggregation by lob_id, ordered
// by total jobs desc.
func (r *Reader) GetLobExecutionSummary(ctx context.Context, f Filter) ([]LobExecutionSummary, error) {
	query := r.builder.Select(
		"lob_id",
		"COUNT(*) AS total_jobs",
		"SUM(CASE WHEN status = 'Succeeded' THEN 1 ELSE 0 END) AS succeeded_count",
		"SUM(CASE WHEN status = 'Failed' THEN 1 ELSE 0 END) AS failed_count",
		"SUM(CASE WHEN status = 'Running' THEN 1 ELSE 0 END) AS running_count",
		"AVG(CASE WHEN end_time IS NOT NULL THEN (julianday(end_time) - julianday(start_time)) * 86400.0 END) AS average_duration_sec",
	).From("TestJobs").Where(r.jobsFilterConditions(f)).GroupBy("lob_id").OrderBy("total_jobs DESC")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("reporting: building lob execution summary query: %w", err)
	}

	var rows []struct {
		LobID              string  `db:"lob_id"`
		TotalJobs          int     `db:"total_jobs"`
		SucceededCount     int     `db:"succeeded_count"`
		FailedCount        int     `db:"failed_count"`
		RunningCount       int     `db:"running_count"`
		AverageDurationSec float64 `db:"average_duration_sec"`
	}
	if err := r.db.SelectContext(ctx, &rows, sqlStr, args...); err != nil {
		return nil, fmt.Errorf("reporting: querying lob execution summary: %w", err)
	}

	out := make([]LobExecutionSummary, 0, len(rows))
	for _, row := range rows {
		out = append(out, LobExecutionSummary{
			LobID: row.LobID,
			ExecutionSummary: ExecutionSummary{
				TotalJobs:          row.TotalJobs,
				SucceededCount:     row.SucceededCount,
				FailedCount:        row.FailedCount,
				RunningCount:       row.RunningCount,
				AverageDurationSec: row.AverageDurationSec,
			},
		})
	}
	return out, nil
}

// GetJobs returns one page of jobs matching f, newest first.
func (r *Reader) GetJobs(ctx context.Context, f Filter, page, pageSize int) ([]JobListItem, error) {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if page <= 0 {
		page = 1
	}
	offset := uint64((page - 1) * pageSize)

	query := r.builder.Select(
		"id", "lob_id", "team_id", "repo_url", "test_image_type", "status",
		"start_time", "end_time", "tests_passed", "tests_failed", "tests_skipped",
	).From("TestJobs").Where(r.jobsFilterConditions(f)).
		OrderBy("start_time DESC").Limit(uint64(pageSize)).Offset(offset)

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("reporting: building jobs query: %w", err)
	}

	var rows []JobListItem
	if err := r.db.SelectContext(ctx, &rows, sqlStr, args...); err != nil {
		return nil, fmt.Errorf("reporting: querying jobs: %w", err)
	}
	return rows, nil
}

// GetJobsCount returns the total row count GetJobs would page over.
func (r *Reader) GetJobsCount(ctx context.Context, f Filter) (int, error) {
	query := r.builder.Select("COUNT(*) AS total").From("TestJobs").Where(r.jobsFilterConditions(f))
	sqlStr, args, err := query.ToSql()
	if err != nil {
		return 0, fmt.Errorf("reporting: building jobs count query: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, sqlStr, args...); err != nil {
		return 0, fmt.Errorf("reporting: querying jobs count: %w", err)
	}
	return total, nil
}

// GetTopFailingTests joins TestResults to TestJobs, filters to failed
// results, groups by test name, and orders by failure count desc.
func (r *Reader) GetTopFailingTests(ctx context.Context, f Filter, limit int) ([]FailingTest, error) {
	if limit <= 0 {
		limit = 10
	}

	cond := sq.And{sq.Eq{"r.status": "Failed"}}
	if f.LobID != "" {
		cond = append(cond, sq.Eq{"j.lob_id": f.LobID})
	}
	if f.TeamID != "" {
		cond = append(cond, sq.Eq{"j.team_id": f.TeamID})
	}
	if f.Start != nil {
		cond = append(cond, sq.GtOrEq{"j.start_time": *f.Start})
	}
	if f.End != nil {
		cond = append(cond, sq.LtOrEq{"j.start_time": *f.End})
	}

	query := r.builder.Select("r.test_name AS test_name", "COUNT(*) AS failure_count").
		From("TestResults r").
		Join("TestJobs j ON j.id = r.job_id").
		Where(cond).
		GroupBy("r.test_name").
		OrderBy("failure_count DESC").
		Limit(uint64(limit))

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("reporting: building top failing tests query: %w", err)
	}

	var rows []struct {
		TestName     string `db:"test_name"`
		FailureCount int    `db:"failure_count"`
	}
	if err := r.db.SelectContext(ctx, &rows, sqlStr, args...); err != nil {
		return nil, fmt.Errorf("reporting: querying top failing tests: %w", err)
	}

	out := make([]FailingTest, 0, len(rows))
	for _, row := range rows {
		out = append(out, FailingTest{TestName: row.TestName, FailureCount: row.FailureCount})
	}
	return out, nil
}
