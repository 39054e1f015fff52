package schedule

import (
	"context"
	"fmt"
	"time"

	"k8s.io/klog/v2"

	"github.com/contoso-cloud/testexec-controlplane/internal/clock"
)

// JobRequest is what a due schedule enqueues for the Job Orchestrator
// (§3's JobRequest shape, schedule-derived fields populated).
type JobRequest struct {
	RepoURL       string
	TestImageType string
	LobID         string
	TeamID        string
	UserID        string
	ScheduleID    string
	Branch        string
}

// Enqueuer is the narrow boundary to the Job Orchestrator; the engine
// never calls cluster/orchestrator code directly.
type Enqueuer interface {
	Enqueue(ctx context.Context, req JobRequest) error
}

// Engine is the Schedule Engine (C6): it reads every active schedule on
// a tick, evaluates IsDue, enqueues due work, and updates run
// bookkeeping. Missed ticks collapse — a schedule fires at most once
// per tick regardless of how many times its pattern should have fired
// since the last one (§4.6).
type Engine struct {
	repo  Repository
	queue Enqueuer
	clock clock.Clock
}

// New builds an Engine.
func New(repo Repository, queue Enqueuer, clk clock.Clock) *Engine {
	return &Engine{repo: repo, queue: queue, clock: clk}
}

// ProcessDueSchedules is the tick entry point (§4.6), invoked every 5
// minutes by the `process-scheduled-jobs` ticker trigger (§6). It
// returns the number of schedules it enqueued work for.
func (e *Engine) ProcessDueSchedules(ctx context.Context) (int, error) {
	now := e.clock.Now()

	schedules, err := e.repo.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("schedule: listing active schedules: %w", err)
	}

	fired := 0
	for _, s := range schedules {
		if !IsDue(s, now) {
			continue
		}

		req := JobRequest{
			RepoURL:       s.RepoURL,
			TestImageType: s.TestImageType,
			LobID:         s.LobID,
			TeamID:        s.TeamID,
			UserID:        s.CreatedBy,
			ScheduleID:    s.ID,
			Branch:        "main",
		}
		if err := e.queue.Enqueue(ctx, req); err != nil {
			klog.Warningf("schedule: enqueueing job for schedule %s: %v", s.ID, err)
			continue
		}

		if err := e.UpdateScheduleLastRun(ctx, s, now); err != nil {
			klog.Warningf("schedule: updating run bookkeeping for schedule %s: %v", s.ID, err)
			continue
		}
		fired++
	}
	return fired, nil
}

// UpdateScheduleLastRun increments run_count, sets last_run_time=now,
// and clears is_active once max_runs is reached (§4.6).
func (e *Engine) UpdateScheduleLastRun(ctx context.Context, s TestJobSchedule, now time.Time) error {
	updated := s
	updated.RunCount++
	updated.LastRunTime = &now
	if updated.MaxRuns != nil && updated.RunCount >= *updated.MaxRuns {
		updated.IsActive = false
	}
	return e.repo.Update(ctx, updated)
}
