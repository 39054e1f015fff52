package orchestrator

import (
	"context"
	"regexp"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contoso-cloud/testexec-controlplane/internal/clock"
	"github.com/contoso-cloud/testexec-controlplane/internal/cluster"
	"github.com/contoso-cloud/testexec-controlplane/internal/namespace"
	"github.com/contoso-cloud/testexec-controlplane/internal/policy"
)

var jobNamePattern = regexp.MustCompile(`^test-job-[0-9a-f]{32}$`)

func newTestOrchestrator() (*Orchestrator, *cluster.Fake) {
	backend := cluster.NewFake()
	store := policy.NewStore(policy.NewFakeRepository(), clock.Real{}, func() string { return "id-1" })
	resolver := namespace.NewResolver(backend, store)
	metrics := NewMetrics(prometheus.NewRegistry())
	return New(backend, resolver, store, "registry.contoso.example", metrics), backend
}

func TestCreateTestJob_HappyPath(t *testing.T) {
	o, backend := newTestOrchestrator()
	ctx := context.Background()

	jobName, ns, err := o.CreateTestJob(ctx, "https://example/r.git", "DotNet", "acme")
	require.NoError(t, err)
	assert.Equal(t, "testexec-acme", ns)
	assert.Regexp(t, jobNamePattern, jobName)

	jobs, err := backend.ListJobs(ctx, ns, nil)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, jobName, jobs[0].Name)
}

func TestIsJobCompleted_DelegatesThroughNamespace(t *testing.T) {
	o, backend := newTestOrchestrator()
	ctx := context.Background()

	jobName, ns, err := o.CreateTestJob(ctx, "https://example/r.git", "DotNet", "acme")
	require.NoError(t, err)

	done, err := o.IsJobCompleted(ctx, jobName, "acme")
	require.NoError(t, err)
	assert.False(t, done)

	backend.SetJobOutcome(ns, jobName, 0, 1)
	done, err = o.IsJobCompleted(ctx, jobName, "acme")
	require.NoError(t, err)
	assert.True(t, done)
}

func TestCleanupTestJob_DeletesFromBackend(t *testing.T) {
	o, backend := newTestOrchestrator()
	ctx := context.Background()

	jobName, ns, err := o.CreateTestJob(ctx, "https://example/r.git", "DotNet", "acme")
	require.NoError(t, err)

	require.NoError(t, o.CleanupTestJob(ctx, jobName, "acme"))

	jobs, err := backend.ListJobs(ctx, ns, nil)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}
