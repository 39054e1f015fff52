package db_test

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contoso-cloud/testexec-controlplane/internal/db"
	"github.com/contoso-cloud/testexec-controlplane/internal/schedule"
	"github.com/contoso-cloud/testexec-controlplane/internal/tracker"
)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	conn, err := db.Open("file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestTrackerRepository_CreateGetCompleteRoundTrip(t *testing.T) {
	conn := openTestDB(t)
	repo := db.NewTrackerRepository(conn)
	ctx := context.Background()

	job := tracker.TestJob{
		ID: "j1", LobID: "acme", TeamID: "pay", RepoURL: "https://example/r.git",
		TestImageType: "DotNet", Status: tracker.StatusRunning, StartTime: time.Now().UTC(), CreatedBy: "u1",
	}
	require.NoError(t, repo.CreateJob(ctx, job))

	got, err := repo.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, tracker.StatusRunning, got.Status)

	n, err := repo.CountRunningJobs(ctx, "acme", "pay")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	end := job.StartTime.Add(time.Minute)
	results := []tracker.TestResult{{ID: "r1", JobID: "j1", TestName: "t1", Status: tracker.ResultPassed, DurationSeconds: 0.5}}
	require.NoError(t, repo.CompleteJobTx(ctx, "j1", tracker.StatusSucceeded, 1, 0, 0, end, results))

	got, err = repo.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, tracker.StatusSucceeded, got.Status)
	assert.Equal(t, 1, got.TestsPassed)

	_, err = repo.GetJob(ctx, "missing")
	assert.ErrorIs(t, err, tracker.ErrJobNotFound)
}

func TestScheduleRepository_DaysOfWeekRoundTrip(t *testing.T) {
	conn := openTestDB(t)
	repo := db.NewScheduleRepository(conn)
	ctx := context.Background()

	s := schedule.TestJobSchedule{
		ID: "s1", Name: "nightly", LobID: "acme", TeamID: "pay",
		RepoURL: "https://example/r.git", TestImageType: "DotNet",
		ScheduleType: schedule.TypeWeekly,
		DaysOfWeek:   map[int]struct{}{1: {}, 3: {}, 5: {}},
		TimeOfDay:    &schedule.TimeOfDay{Hour: 9, Minute: 30},
		IsActive:     true, CreatedAt: time.Now().UTC(), CreatedBy: "u1",
	}
	require.NoError(t, repo.Create(ctx, s))

	got, err := repo.Get(ctx, "s1", "acme")
	require.NoError(t, err)
	assert.Equal(t, s.DaysOfWeek, got.DaysOfWeek)
	require.NotNil(t, got.TimeOfDay)
	assert.Equal(t, 9, got.TimeOfDay.Hour)
	assert.Equal(t, 30, got.TimeOfDay.Minute)

	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}
