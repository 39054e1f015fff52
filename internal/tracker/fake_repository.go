package tracker

import (
	"context"
	"sync"
	"time"
)

// FakeRepository is an in-memory Repository used by tests.
type FakeRepository struct {
	mu      sync.Mutex
	jobs    map[string]TestJob
	results map[string][]TestResult
}

// NewFakeRepository returns an empty FakeRepository.
func NewFakeRepository() *FakeRepository {
	return &FakeRepository{
		jobs:    map[string]TestJob{},
		results: map[string][]TestResult{},
	}
}

func (f *FakeRepository) CreateJob(ctx context.Context, job TestJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[job.ID] = job
	return nil
}

func (f *FakeRepository) GetJob(ctx context.Context, jobID string) (TestJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return TestJob{}, ErrJobNotFound
	}
	return job, nil
}

func (f *FakeRepository) UpdateJobStatus(ctx context.Context, jobID string, status Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	job.Status = status
	f.jobs[jobID] = job
	return nil
}

func (f *FakeRepository) SetClusterJobName(ctx context.Context, jobID, clusterJobName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	job.ClusterJobName = clusterJobName
	f.jobs[jobID] = job
	return nil
}

func (f *FakeRepository) CompleteJobTx(ctx context.Context, jobID string, status Status, passed, failed, skipped int, endTime time.Time, results []TestResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	job.Status = status
	job.EndTime = &endTime
	job.TestsPassed = passed
	job.TestsFailed = failed
	job.TestsSkipped = skipped
	f.jobs[jobID] = job
	f.results[jobID] = append([]TestResult(nil), results...)
	return nil
}

func (f *FakeRepository) CountRunningJobs(ctx context.Context, lobID, teamID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, job := range f.jobs {
		if job.LobID == lobID && job.TeamID == teamID && job.Status == StatusRunning {
			n++
		}
	}
	return n, nil
}

func (f *FakeRepository) CountRunningJobsForLob(ctx context.Context, lobID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, job := range f.jobs {
		if job.LobID == lobID && job.Status == StatusRunning {
			n++
		}
	}
	return n, nil
}

func (f *FakeRepository) ListResultsForJob(ctx context.Context, jobID string) ([]TestResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]TestResult(nil), f.results[jobID]...), nil
}

// ResultsFor returns the TestResult rows recorded for jobID, for test
// assertions.
func (f *FakeRepository) ResultsFor(jobID string) []TestResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]TestResult(nil), f.results[jobID]...)
}

func (f *FakeRepository) ListJobsEndedBefore(ctx context.Context, cutoff time.Time) ([]TestJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []TestJob
	for _, job := range f.jobs {
		if job.EndTime != nil && job.EndTime.Before(cutoff) {
			out = append(out, job)
		}
	}
	return out, nil
}

func (f *FakeRepository) DeleteResultsForJobsEndedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var deleted int64
	for jobID, job := range f.jobs {
		if job.EndTime != nil && job.EndTime.Before(cutoff) {
			deleted += int64(len(f.results[jobID]))
			delete(f.results, jobID)
		}
	}
	return deleted, nil
}

var _ Repository = (*FakeRepository)(nil)
