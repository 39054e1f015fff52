package tracker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"k8s.io/klog/v2"

	"github.com/contoso-cloud/testexec-controlplane/internal/clock"
	"github.com/contoso-cloud/testexec-controlplane/internal/messaging"
	"github.com/contoso-cloud/testexec-controlplane/internal/policy"
	"github.com/contoso-cloud/testexec-controlplane/internal/storage"
)

// ErrArtifactTooLarge is returned from CompleteJob's artifact-upload step
// when the stream exceeds the admin-configured size cap; it is the one
// client-visible failure step 6 permits (§4.5 step 6).
type ErrArtifactTooLarge struct {
	SizeBytes int
	MaxMB     int
}

func (e ErrArtifactTooLarge) Error() string {
	return fmt.Sprintf("tracker: artifact of %d bytes exceeds max_test_result_file_size_mb=%d", e.SizeBytes, e.MaxMB)
}

// IDGenerator mints identifiers for newly created rows and results.
type IDGenerator func() string

// Tracker is the Job Tracker (C5): it persists job lifecycle
// transitions and composes the Storage, Messaging, and Monitoring
// collaborators. Per §9, these are constructed once by the caller and
// passed in; Tracker never mutates their internal state.
type Tracker struct {
	repo    Repository
	store   storage.Store
	bus     messaging.Bus
	alerts  AlertEvaluator
	policy  *policy.Store
	clock   clock.Clock
	newID   IDGenerator
	topic   string
}

// New builds a Tracker. topic is the default message-bus topic result
// metadata is published to.
func New(repo Repository, store storage.Store, bus messaging.Bus, alerts AlertEvaluator, policyStore *policy.Store, clk clock.Clock, newID IDGenerator, topic string) *Tracker {
	if alerts == nil {
		alerts = NoopAlertEvaluator{}
	}
	return &Tracker{
		repo:   repo,
		store:  store,
		bus:    bus,
		alerts: alerts,
		policy: policyStore,
		clock:  clk,
		newID:  newID,
		topic:  topic,
	}
}

// CreateJob inserts a new Running job row and returns its id.
func (t *Tracker) CreateJob(ctx context.Context, lobID, teamID, repoURL, testImageType, createdBy string, scheduleID *string) (string, error) {
	job := TestJob{
		ID:            t.newID(),
		LobID:         lobID,
		TeamID:        teamID,
		RepoURL:       repoURL,
		TestImageType: testImageType,
		Status:        StatusRunning,
		StartTime:     t.clock.Now(),
		CreatedBy:     createdBy,
		ScheduleID:    scheduleID,
	}
	if err := t.repo.CreateJob(ctx, job); err != nil {
		return "", fmt.Errorf("tracker: creating job: %w", err)
	}
	return job.ID, nil
}

// UpdateJobStatus performs a non-terminal status transition for
// external signals (§4.5).
func (t *Tracker) UpdateJobStatus(ctx context.Context, jobID string, status Status) error {
	if err := t.repo.UpdateJobStatus(ctx, jobID, status); err != nil {
		return fmt.Errorf("tracker: updating job status: %w", err)
	}
	return nil
}

// AttachClusterJob records the cluster workload name the Job
// Orchestrator created for jobID, so a later poll can resolve which
// workload to query without re-deriving it.
func (t *Tracker) AttachClusterJob(ctx context.Context, jobID, clusterJobName string) error {
	if err := t.repo.SetClusterJobName(ctx, jobID, clusterJobName); err != nil {
		return fmt.Errorf("tracker: attaching cluster job name: %w", err)
	}
	return nil
}

// CompleteJob is the central convergence point (§4.5): it parses
// resultsXML, commits the job's terminal transition and its TestResult
// children atomically, then best-effort dispatches artifact upload,
// telemetry/alert evaluation, and a bus publish — strictly after the
// transaction has committed, in a code path that can no longer roll it
// back (§9's post-commit hazard fix).
func (t *Tracker) CompleteJob(ctx context.Context, jobID string, status Status, resultsXML string, artifact []byte) error {
	results, parseErr := ParseTestResults(resultsXML)
	if parseErr != nil {
		klog.Warningf("tracker: job %s: results xml did not parse, continuing with zero counts: %v", jobID, parseErr)
		results = nil
	}
	for i := range results {
		results[i].ID = t.newID()
		results[i].JobID = jobID
	}
	passed, failed, skipped := Counts(results)

	job, err := t.repo.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	endTime := t.clock.Now()
	if err := t.repo.CompleteJobTx(ctx, jobID, status, passed, failed, skipped, endTime, results); err != nil {
		return fmt.Errorf("tracker: completing job %s: %w", jobID, err)
	}

	job.Status = status
	job.EndTime = &endTime
	job.TestsPassed = passed
	job.TestsFailed = failed
	job.TestsSkipped = skipped

	var artifactErr error
	if len(artifact) > 0 {
		artifactErr = t.uploadArtifacts(ctx, job, resultsXML, artifact)
	}

	t.emitTelemetry(ctx, job)
	t.publishMetadata(ctx, job)

	return artifactErr
}

// uploadArtifacts implements §4.5 step 6: a size check against the
// admin-configured cap (the one client-visible failure this step
// permits), then two best-effort uploads.
func (t *Tracker) uploadArtifacts(ctx context.Context, job TestJob, resultsXML string, artifact []byte) error {
	admin, err := t.policy.GetAdminConfiguration(ctx, true)
	if err != nil {
		klog.Warningf("tracker: job %s: could not load admin configuration for artifact size check: %v", job.ID, err)
	} else {
		maxBytes := admin.Retention.MaxTestResultFileSizeMB * 1024 * 1024
		if maxBytes > 0 && len(artifact) > maxBytes {
			return ErrArtifactTooLarge{SizeBytes: len(artifact), MaxMB: admin.Retention.MaxTestResultFileSizeMB}
		}
	}

	prefix := fmt.Sprintf("%s/%s/%s", job.LobID, job.TeamID, job.ID)

	if err := t.store.Put(ctx, prefix+"/test-results.xml", []byte(resultsXML), "application/xml"); err != nil {
		klog.Warningf("tracker: job %s: uploading test-results.xml: %v", job.ID, err)
	}

	if err := t.store.Put(ctx, prefix+"/full-log.txt", synthesizeFullLog(job, resultsXML), "text/plain"); err != nil {
		klog.Warningf("tracker: job %s: uploading full-log.txt: %v", job.ID, err)
	}

	return nil
}

func synthesizeFullLog(job TestJob, resultsXML string) []byte {
	results, _ := ParseTestResults(resultsXML)
	var b strings.Builder
	fmt.Fprintf(&b, "job %s (%s/%s) status=%s\n", job.ID, job.LobID, job.TeamID, job.Status)
	fmt.Fprintf(&b, "passed=%d failed=%d skipped=%d\n\n", job.TestsPassed, job.TestsFailed, job.TestsSkipped)
	for _, r := range results {
		fmt.Fprintf(&b, "[%s] %s (%.2fs)\n", r.Status, r.TestName, r.DurationSeconds)
		if r.ErrorMessage != "" {
			fmt.Fprintf(&b, "  %s\n", r.ErrorMessage)
		}
		if r.StackTrace != "" {
			fmt.Fprintf(&b, "%s\n", r.StackTrace)
		}
	}
	return []byte(b.String())
}

// emitTelemetry implements §4.5 step 7.
func (t *Tracker) emitTelemetry(ctx context.Context, job TestJob) {
	total := job.TestsPassed + job.TestsFailed + job.TestsSkipped
	var passRate, failRate float64
	if total > 0 {
		passRate = 100 * float64(job.TestsPassed) / float64(total)
		failRate = 100 * float64(job.TestsFailed) / float64(total)
	}

	duration := 0.0
	if job.EndTime != nil {
		duration = job.EndTime.Sub(job.StartTime).Seconds()
	}

	dims := map[string]string{"lobId": job.LobID, "teamId": job.TeamID}

	klog.Infof("TestExecutionCompleted job=%s lob=%s team=%s durationSeconds=%.2f passed=%d failed=%d skipped=%d passRate=%.1f failRate=%.1f",
		job.ID, job.LobID, job.TeamID, duration, job.TestsPassed, job.TestsFailed, job.TestsSkipped, passRate, failRate)

	t.evaluate(ctx, ExecutionMetric{Name: "TestExecution.Duration", Value: duration, Dimensions: dims})
	t.evaluate(ctx, ExecutionMetric{Name: "TestExecution.FailRate", Value: failRate, Dimensions: dims})

	if job.Status != StatusSucceeded {
		t.evaluate(ctx, ExecutionMetric{Name: "TestExecution.Failed", Value: float64(job.TestsFailed), Dimensions: dims})
	}
}

func (t *Tracker) evaluate(ctx context.Context, metric ExecutionMetric) {
	if err := t.alerts.EvaluateMetric(ctx, metric); err != nil {
		klog.Warningf("tracker: evaluating alert metric %s: %v", metric.Name, err)
	}
}

// publishMetadata implements §4.5 step 8.
func (t *Tracker) publishMetadata(ctx context.Context, job TestJob) {
	msg := ResultMetadataMessage{
		JobID:        job.ID,
		LobID:        job.LobID,
		TeamID:       job.TeamID,
		Status:       job.Status,
		TotalTests:   job.TestsPassed + job.TestsFailed + job.TestsSkipped,
		TestsPassed:  job.TestsPassed,
		TestsFailed:  job.TestsFailed,
		TestsSkipped: job.TestsSkipped,
		StartTime:    job.StartTime,
	}
	if job.EndTime != nil {
		msg.EndTime = *job.EndTime
	}

	body, err := msg.marshal()
	if err != nil {
		klog.Warningf("tracker: job %s: marshaling result metadata message: %v", job.ID, err)
		return
	}
	if err := t.bus.Publish(ctx, t.topic, job.ID, body); err != nil {
		klog.Warningf("tracker: job %s: publishing result metadata: %v", job.ID, err)
	}
}

// CountRunningJobs reports how many jobs are currently Running for the
// given lob/team, for the concurrency-cap check the Job Orchestrator
// enforces before creating new work (§5).
func (t *Tracker) CountRunningJobs(ctx context.Context, lobID, teamID string) (int, error) {
	n, err := t.repo.CountRunningJobs(ctx, lobID, teamID)
	if err != nil {
		return 0, fmt.Errorf("tracker: counting running jobs: %w", err)
	}
	return n, nil
}

// CountRunningJobsForLob reports how many jobs are currently Running
// anywhere in the given lob, across all of its teams.
func (t *Tracker) CountRunningJobsForLob(ctx context.Context, lobID string) (int, error) {
	n, err := t.repo.CountRunningJobsForLob(ctx, lobID)
	if err != nil {
		return 0, fmt.Errorf("tracker: counting running jobs for lob: %w", err)
	}
	return n, nil
}

// GetJob returns the current row for jobID.
func (t *Tracker) GetJob(ctx context.Context, jobID string) (TestJob, error) {
	return t.repo.GetJob(ctx, jobID)
}

// ListResultsForJob returns the parsed TestResult rows for jobID.
func (t *Tracker) ListResultsForJob(ctx context.Context, jobID string) ([]TestResult, error) {
	results, err := t.repo.ListResultsForJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("tracker: listing results for job %s: %w", jobID, err)
	}
	return results, nil
}

// PruneOldTestResults implements the `cleanup-old-test-results` ticker
// trigger (§6): it deletes TestResult rows belonging to jobs that ended
// more than TestResultsRetentionDays ago, then deletes the artifact
// blobs (§6's {lob}/{team}/{job_id}/* layout) of jobs that ended more
// than JobHistoryRetentionDays ago. Per §3, the TestJob row itself is
// never deleted by this sweep.
func (t *Tracker) PruneOldTestResults(ctx context.Context) (prunedResults int64, prunedArtifacts int, err error) {
	admin, err := t.policy.GetAdminConfiguration(ctx, true)
	if err != nil {
		return 0, 0, fmt.Errorf("tracker: loading admin configuration for retention sweep: %w", err)
	}

	now := t.clock.Now()

	if days := admin.Retention.TestResultsRetentionDays; days > 0 {
		cutoff := now.Add(-time.Duration(days) * 24 * time.Hour)
		n, err := t.repo.DeleteResultsForJobsEndedBefore(ctx, cutoff)
		if err != nil {
			klog.Warningf("tracker: pruning test results older than %d days: %v", days, err)
		} else {
			prunedResults = n
		}
	}

	if days := admin.Retention.JobHistoryRetentionDays; days > 0 && t.store != nil {
		cutoff := now.Add(-time.Duration(days) * 24 * time.Hour)
		jobs, err := t.repo.ListJobsEndedBefore(ctx, cutoff)
		if err != nil {
			klog.Warningf("tracker: listing jobs older than %d days for artifact cleanup: %v", days, err)
			return prunedResults, prunedArtifacts, nil
		}
		for _, job := range jobs {
			prefix := fmt.Sprintf("%s/%s/%s", job.LobID, job.TeamID, job.ID)
			objects, err := t.store.List(ctx, prefix)
			if err != nil {
				klog.Warningf("tracker: listing artifacts for job %s: %v", job.ID, err)
				continue
			}
			for _, obj := range objects {
				if err := t.store.Delete(ctx, obj.Key); err != nil {
					klog.Warningf("tracker: deleting artifact %s: %v", obj.Key, err)
					continue
				}
				prunedArtifacts++
			}
		}
	}

	return prunedResults, prunedArtifacts, nil
}
