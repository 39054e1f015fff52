package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/contoso-cloud/testexec-controlplane/internal/schedule"
)

// ScheduleRepository implements schedule.Repository against the
// embedded sqlite schema. DaysOfWeek/DaysOfMonth round-trip through
// schedule.FormatDaySet/ParseDaySet rather than the teacher's
// write-only comma column (§9).
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository builds a ScheduleRepository over db.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

type scheduleRow struct {
	ID              string     `db:"id"`
	Name            string     `db:"name"`
	LobID           string     `db:"lob_id"`
	TeamID          string     `db:"team_id"`
	RepoURL         string     `db:"repo_url"`
	TestImageType   string     `db:"test_image_type"`
	ScheduleType    string     `db:"schedule_type"`
	IntervalMinutes *int       `db:"interval_minutes"`
	DaysOfWeek      string     `db:"days_of_week"`
	DaysOfMonth     string     `db:"days_of_month"`
	TimeOfDay       *string    `db:"time_of_day"`
	ScheduledTime   *time.Time `db:"scheduled_time"`
	MaxRuns         *int       `db:"max_runs"`
	RunCount        int        `db:"run_count"`
	IsActive        bool       `db:"is_active"`
	CreatedAt       time.Time  `db:"created_at"`
	LastRunTime     *time.Time `db:"last_run_time"`
	CreatedBy       string     `db:"created_by"`
}

func (r scheduleRow) toSchedule() schedule.TestJobSchedule {
	interval := 0
	if r.IntervalMinutes != nil {
		interval = *r.IntervalMinutes
	}
	return schedule.TestJobSchedule{
		ID:              r.ID,
		Name:            r.Name,
		LobID:           r.LobID,
		TeamID:          r.TeamID,
		RepoURL:         r.RepoURL,
		TestImageType:   r.TestImageType,
		ScheduleType:    schedule.Type(r.ScheduleType),
		IntervalMinutes: interval,
		DaysOfWeek:      schedule.ParseDaySet(r.DaysOfWeek),
		DaysOfMonth:     schedule.ParseDaySet(r.DaysOfMonth),
		TimeOfDay:       parseTimeOfDay(r.TimeOfDay),
		ScheduledTime:   r.ScheduledTime,
		MaxRuns:         r.MaxRuns,
		RunCount:        r.RunCount,
		IsActive:        r.IsActive,
		CreatedAt:       r.CreatedAt,
		LastRunTime:     r.LastRunTime,
		CreatedBy:       r.CreatedBy,
	}
}

func fromSchedule(s schedule.TestJobSchedule) scheduleRow {
	var intervalMinutes *int
	if s.ScheduleType == schedule.TypeInterval {
		v := s.IntervalMinutes
		intervalMinutes = &v
	}
	return scheduleRow{
		ID:              s.ID,
		Name:            s.Name,
		LobID:           s.LobID,
		TeamID:          s.TeamID,
		RepoURL:         s.RepoURL,
		TestImageType:   s.TestImageType,
		ScheduleType:    string(s.ScheduleType),
		IntervalMinutes: intervalMinutes,
		DaysOfWeek:      schedule.FormatDaySet(s.DaysOfWeek),
		DaysOfMonth:     schedule.FormatDaySet(s.DaysOfMonth),
		TimeOfDay:       formatTimeOfDay(s.TimeOfDay),
		ScheduledTime:   s.ScheduledTime,
		MaxRuns:         s.MaxRuns,
		RunCount:        s.RunCount,
		IsActive:        s.IsActive,
		CreatedAt:       s.CreatedAt,
		LastRunTime:     s.LastRunTime,
		CreatedBy:       s.CreatedBy,
	}
}

func formatTimeOfDay(t *schedule.TimeOfDay) *string {
	if t == nil {
		return nil
	}
	s := fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
	return &s
}

func parseTimeOfDay(raw *string) *schedule.TimeOfDay {
	if raw == nil || *raw == "" {
		return nil
	}
	var hour, minute int
	if _, err := fmt.Sscanf(*raw, "%d:%d", &hour, &minute); err != nil {
		return nil
	}
	return &schedule.TimeOfDay{Hour: hour, Minute: minute}
}

func (repo *ScheduleRepository) Create(ctx context.Context, s schedule.TestJobSchedule) error {
	row := fromSchedule(s)
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO TestJobSchedules (
			id, name, lob_id, team_id, repo_url, test_image_type, schedule_type,
			interval_minutes, days_of_week, days_of_month, time_of_day, scheduled_time,
			max_runs, run_count, is_active, created_at, last_run_time, created_by
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.ID, row.Name, row.LobID, row.TeamID, row.RepoURL, row.TestImageType, row.ScheduleType,
		row.IntervalMinutes, row.DaysOfWeek, row.DaysOfMonth, row.TimeOfDay, row.ScheduledTime,
		row.MaxRuns, row.RunCount, row.IsActive, row.CreatedAt, row.LastRunTime, row.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("db: inserting schedule: %w", err)
	}
	return nil
}

func (repo *ScheduleRepository) Get(ctx context.Context, id, lobID string) (schedule.TestJobSchedule, error) {
	var row scheduleRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM TestJobSchedules WHERE id = ? AND lob_id = ?`, id, lobID)
	if errors.Is(err, sql.ErrNoRows) {
		return schedule.TestJobSchedule{}, schedule.ErrScheduleNotFound
	}
	if err != nil {
		return schedule.TestJobSchedule{}, fmt.Errorf("db: loading schedule %s: %w", id, err)
	}
	return row.toSchedule(), nil
}

func (repo *ScheduleRepository) Update(ctx context.Context, s schedule.TestJobSchedule) error {
	row := fromSchedule(s)
	result, err := repo.db.ExecContext(ctx, `
		UPDATE TestJobSchedules SET
			name = ?, repo_url = ?, test_image_type = ?, schedule_type = ?,
			interval_minutes = ?, days_of_week = ?, days_of_month = ?, time_of_day = ?,
			scheduled_time = ?, max_runs = ?, run_count = ?, is_active = ?, last_run_time = ?
		WHERE id = ? AND lob_id = ?`,
		row.Name, row.RepoURL, row.TestImageType, row.ScheduleType,
		row.IntervalMinutes, row.DaysOfWeek, row.DaysOfMonth, row.TimeOfDay,
		row.ScheduledTime, row.MaxRuns, row.RunCount, row.IsActive, row.LastRunTime,
		row.ID, row.LobID,
	)
	if err != nil {
		return fmt.Errorf("db: updating schedule: %w", err)
	}
	return requireRowAffected(result, schedule.ErrScheduleNotFound)
}

func (repo *ScheduleRepository) Delete(ctx context.Context, id, lobID string) error {
	result, err := repo.db.ExecContext(ctx, `DELETE FROM TestJobSchedules WHERE id = ? AND lob_id = ?`, id, lobID)
	if err != nil {
		return fmt.Errorf("db: deleting schedule: %w", err)
	}
	return requireRowAffected(result, schedule.ErrScheduleNotFound)
}

func (repo *ScheduleRepository) List(ctx context.Context, lobID, teamID string) ([]schedule.TestJobSchedule, error) {
	var rows []scheduleRow
	err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM TestJobSchedules WHERE lob_id = ? AND team_id = ?`, lobID, teamID)
	if err != nil {
		return nil, fmt.Errorf("db: listing schedules: %w", err)
	}
	return toSchedules(rows), nil
}

func (repo *ScheduleRepository) ListActive(ctx context.Context) ([]schedule.TestJobSchedule, error) {
	var rows []scheduleRow
	err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM TestJobSchedules WHERE is_active = 1`)
	if err != nil {
		return nil, fmt.Errorf("db: listing active schedules: %w", err)
	}
	return toSchedules(rows), nil
}

func toSchedules(rows []scheduleRow) []schedule.TestJobSchedule {
	out := make([]schedule.TestJobSchedule, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toSchedule())
	}
	return out
}

var _ schedule.Repository = (*ScheduleRepository)(nil)
