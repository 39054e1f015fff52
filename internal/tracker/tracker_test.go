package tracker_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contoso-cloud/testexec-controlplane/internal/clock"
	"github.com/contoso-cloud/testexec-controlplane/internal/messaging"
	"github.com/contoso-cloud/testexec-controlplane/internal/policy"
	"github.com/contoso-cloud/testexec-controlplane/internal/storage"
	"github.com/contoso-cloud/testexec-controlplane/internal/tracker"
)

type recordingEvaluator struct {
	metrics []tracker.ExecutionMetric
}

func (r *recordingEvaluator) EvaluateMetric(ctx context.Context, metric tracker.ExecutionMetric) error {
	r.metrics = append(r.metrics, metric)
	return nil
}

func newTestTracker(t *testing.T) (*tracker.Tracker, *tracker.FakeRepository, *storage.Fake, *messaging.Fake, *recordingEvaluator, *clock.Fixed) {
	t.Helper()

	repo := tracker.NewFakeRepository()
	store := storage.NewFake()
	bus := messaging.NewFake()
	evaluator := &recordingEvaluator{}
	clk := clock.NewFixed(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	n := 0
	newID := func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}

	policyStore := policy.NewStore(policy.NewFakeRepository(), clk, newID)

	tr := tracker.New(repo, store, bus, evaluator, policyStore, clk, newID, "test-results")
	return tr, repo, store, bus, evaluator, clk
}

func TestCompleteJob_WithXML_YieldsCountsRowsArtifactsAndMessage(t *testing.T) {
	tr, repo, store, bus, _, clk := newTestTracker(t)
	ctx := context.Background()

	jobID, err := tr.CreateJob(ctx, "acme", "pay", "https://example/r.git", "DotNet", "u1", nil)
	require.NoError(t, err)

	clk.Advance(90 * time.Second)

	resultsXML := `<tests>` +
		`<test name="t1" result="Passed" duration="0.5"/>` +
		`<test name="t2" result="Failed" duration="1.2"><failure><message>boom</message></failure></test>` +
		`</tests>`

	err = tr.CompleteJob(ctx, jobID, tracker.StatusFailed, resultsXML, []byte(resultsXML))
	require.NoError(t, err)

	job, err := tr.GetJob(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, tracker.StatusFailed, job.Status)
	assert.Equal(t, 1, job.TestsPassed)
	assert.Equal(t, 1, job.TestsFailed)
	assert.Equal(t, 0, job.TestsSkipped)
	require.NotNil(t, job.EndTime)

	results := repo.ResultsFor(jobID)
	require.Len(t, results, 2)
	assert.Equal(t, job.TestsPassed+job.TestsFailed+job.TestsSkipped, len(results))

	xmlObj, err := store.Get(ctx, "acme/pay/"+jobID+"/test-results.xml")
	require.NoError(t, err)
	assert.Equal(t, resultsXML, string(xmlObj))

	_, err = store.Get(ctx, "acme/pay/"+jobID+"/full-log.txt")
	require.NoError(t, err)

	messages := bus.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, jobID, messages[0].Key)
	assert.Equal(t, "test-results", messages[0].Topic)
	assert.Contains(t, string(messages[0].Value), `"totalTests":2`)
}

func TestCompleteJob_MalformedXML_CommitsWithZeroCounts(t *testing.T) {
	tr, repo, _, bus, _, _ := newTestTracker(t)
	ctx := context.Background()

	jobID, err := tr.CreateJob(ctx, "acme", "pay", "https://example/r.git", "DotNet", "u1", nil)
	require.NoError(t, err)

	err = tr.CompleteJob(ctx, jobID, tracker.StatusSucceeded, "<not xml", nil)
	require.NoError(t, err)

	job, err := tr.GetJob(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, 0, job.TestsPassed)
	assert.Equal(t, 0, job.TestsFailed)
	assert.Equal(t, 0, job.TestsSkipped)

	assert.Empty(t, repo.ResultsFor(jobID))
	assert.Len(t, bus.Messages(), 1, "metadata is still published even with zero counts")
}

func TestCompleteJob_UnknownJob_ReturnsJobNotFound(t *testing.T) {
	tr, _, _, _, _, _ := newTestTracker(t)
	ctx := context.Background()

	err := tr.CompleteJob(ctx, "missing", tracker.StatusSucceeded, "<tests></tests>", nil)
	assert.ErrorIs(t, err, tracker.ErrJobNotFound)
}

func TestCompleteJob_EvaluatesFailRateAndFailedMetricsWhenNotSucceeded(t *testing.T) {
	tr, _, _, _, evaluator, _ := newTestTracker(t)
	ctx := context.Background()

	jobID, err := tr.CreateJob(ctx, "acme", "pay", "https://example/r.git", "DotNet", "u1", nil)
	require.NoError(t, err)

	resultsXML := `<tests><test name="t1" result="Failed" duration="1"/></tests>`
	require.NoError(t, tr.CompleteJob(ctx, jobID, tracker.StatusFailed, resultsXML, nil))

	var names []string
	for _, m := range evaluator.metrics {
		names = append(names, m.Name)
	}
	assert.Contains(t, names, "TestExecution.Duration")
	assert.Contains(t, names, "TestExecution.FailRate")
	assert.Contains(t, names, "TestExecution.Failed")
}

func TestCountRunningJobs_CountsOnlyRunningForLobAndTeam(t *testing.T) {
	tr, _, _, _, _, _ := newTestTracker(t)
	ctx := context.Background()

	_, err := tr.CreateJob(ctx, "acme", "pay", "https://example/r.git", "DotNet", "u1", nil)
	require.NoError(t, err)
	other, err := tr.CreateJob(ctx, "acme", "pay", "https://example/r.git", "DotNet", "u2", nil)
	require.NoError(t, err)
	_, err = tr.CreateJob(ctx, "acme", "other-team", "https://example/r.git", "DotNet", "u3", nil)
	require.NoError(t, err)

	require.NoError(t, tr.CompleteJob(ctx, other, tracker.StatusSucceeded, "<tests></tests>", nil))

	n, err := tr.CountRunningJobs(ctx, "acme", "pay")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
