package cluster

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeIsJobCompleted_TerminalIsEitherOutcome(t *testing.T) {
	ctx := context.Background()
	f := NewFake()

	_, err := f.CreateTestJob(ctx, CreateJobParams{JobName: "test-job-1", Namespace: "testexec-acme"})
	require.NoError(t, err)

	done, err := f.IsJobCompleted(ctx, "testexec-acme", "test-job-1")
	require.NoError(t, err)
	assert.False(t, done, "a freshly created job must not report complete")

	f.SetJobOutcome("testexec-acme", "test-job-1", 0, 1)
	done, err = f.IsJobCompleted(ctx, "testexec-acme", "test-job-1")
	require.NoError(t, err)
	assert.True(t, done, "failed>0 alone must count as terminal")

	f.SetJobOutcome("testexec-acme", "test-job-1", 1, 0)
	done, err = f.IsJobCompleted(ctx, "testexec-acme", "test-job-1")
	require.NoError(t, err)
	assert.True(t, done, "succeeded>0 alone must count as terminal")
}

func TestFakeGetJobLogs_NoPodSentinel(t *testing.T) {
	f := NewFake()
	logs, err := f.GetJobLogs(context.Background(), "testexec-acme", "missing-job")
	require.NoError(t, err)
	assert.Equal(t, noPodFoundMessage, logs)
}

func TestFakeGetJob_NotFoundIsClassified(t *testing.T) {
	f := NewFake()
	_, err := f.GetJob(context.Background(), "testexec-acme", "missing-job")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestFakeCreateNamespaceIfNotExists_Idempotent(t *testing.T) {
	ctx := context.Background()
	f := NewFake()

	require.NoError(t, f.CreateNamespaceIfNotExists(ctx, "testexec-acme"))
	require.NoError(t, f.CreateNamespaceIfNotExists(ctx, "testexec-acme"))

	namespaces, err := f.ListNamespaces(ctx, "testexec-")
	require.NoError(t, err)
	assert.Len(t, namespaces, 1)
}

func TestFakeCleanupCompletedJobs_OnlyRemovesTerminal(t *testing.T) {
	ctx := context.Background()
	f := NewFake()
	_, _ = f.CreateTestJob(ctx, CreateJobParams{JobName: "running", Namespace: "ns"})
	_, _ = f.CreateTestJob(ctx, CreateJobParams{JobName: "done", Namespace: "ns"})
	f.SetJobOutcome("ns", "done", 1, 0)

	require.NoError(t, f.CleanupCompletedJobs(ctx, "ns", 0))

	jobs, err := f.ListJobs(ctx, "ns", nil)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "running", jobs[0].Name)
}
