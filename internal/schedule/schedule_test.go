package schedule_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contoso-cloud/testexec-controlplane/internal/clock"
	"github.com/contoso-cloud/testexec-controlplane/internal/schedule"
)

type fakeQueue struct {
	requests []schedule.JobRequest
}

func (q *fakeQueue) Enqueue(ctx context.Context, req schedule.JobRequest) error {
	q.requests = append(q.requests, req)
	return nil
}

func TestFormatAndParseDaySet_RoundTrip(t *testing.T) {
	days := map[int]struct{}{1: {}, 3: {}, 5: {}}
	formatted := schedule.FormatDaySet(days)
	assert.Equal(t, "1,3,5", formatted)
	assert.Equal(t, days, schedule.ParseDaySet(formatted))

	assert.Equal(t, map[int]struct{}{}, schedule.ParseDaySet(""))
	assert.Equal(t, "", schedule.FormatDaySet(map[int]struct{}{}))
}

func TestIsDue_IntervalSchedule_DueAfterElapsed(t *testing.T) {
	now := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	lastRun := now.Add(-31 * time.Minute)

	s := schedule.TestJobSchedule{
		ScheduleType:    schedule.TypeInterval,
		IntervalMinutes: 30,
		IsActive:        true,
		LastRunTime:     &lastRun,
	}
	assert.True(t, schedule.IsDue(s, now))
}

func TestIsDue_EarlyOuts(t *testing.T) {
	now := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	maxRuns := 1

	notActive := schedule.TestJobSchedule{ScheduleType: schedule.TypeInterval, IntervalMinutes: 1, IsActive: false}
	assert.False(t, schedule.IsDue(notActive, now))

	exhausted := schedule.TestJobSchedule{
		ScheduleType: schedule.TypeInterval, IntervalMinutes: 1, IsActive: true,
		MaxRuns: &maxRuns, RunCount: 1,
	}
	assert.False(t, schedule.IsDue(exhausted, now))
}

func TestIsDue_Weekly_RequiresWeekdayAndElapsedTimeOfDay(t *testing.T) {
	now := time.Date(2026, 3, 5, 9, 30, 0, 0, time.UTC) // Thursday
	s := schedule.TestJobSchedule{
		ScheduleType: schedule.TypeWeekly,
		IsActive:     true,
		DaysOfWeek:   map[int]struct{}{int(time.Thursday): {}},
		TimeOfDay:    &schedule.TimeOfDay{Hour: 9, Minute: 0},
	}
	assert.True(t, schedule.IsDue(s, now), "weekday matches and time of day has elapsed")

	notYet := s
	notYet.TimeOfDay = &schedule.TimeOfDay{Hour: 10, Minute: 0}
	assert.False(t, schedule.IsDue(notYet, now), "time of day has not elapsed yet")

	wrongDay := s
	wrongDay.DaysOfWeek = map[int]struct{}{int(time.Friday): {}}
	assert.False(t, schedule.IsDue(wrongDay, now))

	alreadyRanToday := now.Add(-15 * time.Minute)
	ranToday := s
	ranToday.LastRunTime = &alreadyRanToday
	assert.False(t, schedule.IsDue(ranToday, now), "already ran today at/after time_of_day")

	ranYesterday := now.AddDate(0, 0, -1)
	ranPriorDay := s
	ranPriorDay.LastRunTime = &ranYesterday
	assert.True(t, schedule.IsDue(ranPriorDay, now), "last run was a previous calendar day")
}

func TestIsDue_Monotone_WithinATick(t *testing.T) {
	// Property: if due at t, still due at t+epsilon until UpdateScheduleLastRun runs.
	t0 := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	lastRun := t0.Add(-31 * time.Minute)
	s := schedule.TestJobSchedule{
		ScheduleType: schedule.TypeInterval, IntervalMinutes: 30, IsActive: true, LastRunTime: &lastRun,
	}
	require.True(t, schedule.IsDue(s, t0))
	assert.True(t, schedule.IsDue(s, t0.Add(time.Second)))
	assert.True(t, schedule.IsDue(s, t0.Add(time.Hour)))
}

func TestProcessDueSchedules_IntervalSchedule_EnqueuesAndUpdatesBookkeeping(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	clk := clock.NewFixed(now)

	repo := schedule.NewFakeRepository()
	lastRun := now.Add(-31 * time.Minute)
	require.NoError(t, repo.Create(ctx, schedule.TestJobSchedule{
		ID: "s1", LobID: "acme", TeamID: "pay", RepoURL: "https://example/r.git",
		TestImageType: "DotNet", ScheduleType: schedule.TypeInterval, IntervalMinutes: 30,
		IsActive: true, LastRunTime: &lastRun,
	}))

	queue := &fakeQueue{}
	engine := schedule.New(repo, queue, clk)

	fired, err := engine.ProcessDueSchedules(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, fired)
	require.Len(t, queue.requests, 1)
	assert.Equal(t, "s1", queue.requests[0].ScheduleID)

	updated, err := repo.Get(ctx, "s1", "acme")
	require.NoError(t, err)
	assert.Equal(t, 1, updated.RunCount)
	require.NotNil(t, updated.LastRunTime)
	assert.True(t, updated.LastRunTime.Equal(now))
}

func TestProcessDueSchedules_ExhaustionClearsIsActive(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	clk := clock.NewFixed(now)

	repo := schedule.NewFakeRepository()
	maxRuns := 1
	require.NoError(t, repo.Create(ctx, schedule.TestJobSchedule{
		ID: "s1", LobID: "acme", TeamID: "pay", RepoURL: "https://example/r.git",
		TestImageType: "DotNet", ScheduleType: schedule.TypeInterval, IntervalMinutes: 1,
		IsActive: true, MaxRuns: &maxRuns, RunCount: 0, CreatedAt: now.Add(-time.Hour),
	}))

	queue := &fakeQueue{}
	engine := schedule.New(repo, queue, clk)

	fired, err := engine.ProcessDueSchedules(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, fired)

	updated, err := repo.Get(ctx, "s1", "acme")
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	assert.Equal(t, 1, updated.RunCount)

	fired, err = engine.ProcessDueSchedules(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, fired, "exhausted schedule is no longer active, so it is excluded from ListActive")
}

func TestValidate_RejectsMissingRequiredFieldsPerScheduleType(t *testing.T) {
	base := schedule.TestJobSchedule{LobID: "acme", TeamID: "pay", RepoURL: "https://example/r.git", TestImageType: "DotNet"}

	runOnce := base
	runOnce.ScheduleType = schedule.TypeRunOnce
	assert.Error(t, schedule.Validate(runOnce))

	interval := base
	interval.ScheduleType = schedule.TypeInterval
	assert.Error(t, schedule.Validate(interval))

	weekly := base
	weekly.ScheduleType = schedule.TypeWeekly
	assert.Error(t, schedule.Validate(weekly))

	monthly := base
	monthly.ScheduleType = schedule.TypeMonthly
	assert.Error(t, schedule.Validate(monthly))

	valid := base
	valid.ScheduleType = schedule.TypeInterval
	valid.IntervalMinutes = 30
	assert.NoError(t, schedule.Validate(valid))
}
