// Package orchestrator implements the Job Orchestrator (C4): translating
// a validated job request into a cluster workload, tracking it to
// completion by polling, and tearing it down.
package orchestrator

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"k8s.io/klog/v2"

	"github.com/contoso-cloud/testexec-controlplane/internal/cluster"
	"github.com/contoso-cloud/testexec-controlplane/internal/namespace"
	"github.com/contoso-cloud/testexec-controlplane/internal/policy"
)

const jobNameHexLength = 32

// Metrics are the Prometheus collectors the orchestrator publishes to;
// the composition root registers them once and passes the struct by
// reference so every orchestrator call updates the same series.
type Metrics struct {
	JobsCreated     *prometheus.CounterVec
	CreateDuration  *prometheus.HistogramVec
}

// NewMetrics builds and registers the orchestrator's Prometheus
// collectors against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		JobsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "testexec_jobs_created_total",
			Help: "Number of test jobs submitted to the cluster.",
		}, []string{"namespace", "image_type", "lob_id"}),
		CreateDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "testexec_job_create_duration_seconds",
			Help: "Time spent creating a cluster workload for a test job.",
		}, []string{"namespace", "image_type"}),
	}
	reg.MustRegister(m.JobsCreated, m.CreateDuration)
	return m
}

// Orchestrator is the Job Orchestrator (C4). It does not cache job
// state: every query re-derives status from the cluster.
type Orchestrator struct {
	backend      cluster.Backend
	resolver     *namespace.Resolver
	policyStore  *policy.Store
	registry     string
	metrics      *Metrics
}

// New builds an Orchestrator. registry is the container registry prefix
// used to compute image names ("{registry}/{lowercase(testImageType)}:latest").
func New(backend cluster.Backend, resolver *namespace.Resolver, policyStore *policy.Store, registry string, metrics *Metrics) *Orchestrator {
	return &Orchestrator{backend: backend, resolver: resolver, policyStore: policyStore, registry: registry, metrics: metrics}
}

// CreateTestJob resolves the LOB namespace, computes the image name and a
// random job name, and delegates workload creation to the cluster
// backend. On backend failure, the error is annotated with the same
// telemetry dimensions and returned; no database state is mutated here —
// that is the Job Tracker's responsibility at the caller.
func (o *Orchestrator) CreateTestJob(ctx context.Context, repoURL, testImageType, lobID string) (jobName, namespaceName string, err error) {
	start := time.Now()

	namespaceName, err = o.resolver.EnsureNamespaceExists(ctx, lobID)
	if err != nil {
		return "", "", fmt.Errorf("orchestrator: ensuring namespace for lob %q: %w", lobID, err)
	}

	admin, err := o.policyStore.GetAdminConfiguration(ctx, true)
	if err != nil {
		return "", "", fmt.Errorf("orchestrator: loading admin configuration: %w", err)
	}

	jobName, err = newJobName()
	if err != nil {
		return "", "", fmt.Errorf("orchestrator: generating job name: %w", err)
	}

	imageName := fmt.Sprintf("%s/%s:latest", o.registry, strings.ToLower(testImageType))
	limits := admin.ResourceManagement.DefaultContainerLimits

	_, err = o.backend.CreateTestJob(ctx, cluster.CreateJobParams{
		JobName:   jobName,
		Namespace: namespaceName,
		Image:     imageName,
		RepoURL:   repoURL,
		Env:       map[string]string{"REPO_URL": repoURL},
		Limits: cluster.ResourceLimits{
			CPULimit:      limits.CPULimit,
			MemoryLimit:   limits.MemoryLimit,
			CPURequest:    limits.CPURequest,
			MemoryRequest: limits.MemoryRequest,
		},
		TimeoutSeconds: int64(admin.ResourceManagement.DefaultJobTimeoutMinutes) * 60,
		Labels:         map[string]string{"lob-id": strings.ToLower(lobID)},
	})
	if err != nil {
		return "", "", fmt.Errorf("orchestrator: creating job %q in namespace %q for lob %q, image type %q: %w",
			jobName, namespaceName, lobID, testImageType, err)
	}

	if o.metrics != nil {
		o.metrics.JobsCreated.WithLabelValues(namespaceName, testImageType, lobID).Inc()
		o.metrics.CreateDuration.WithLabelValues(namespaceName, testImageType).Observe(time.Since(start).Seconds())
	}
	klog.Infof("orchestrator: TestJobCreated namespace=%s image_type=%s lob_id=%s job_name=%s", namespaceName, testImageType, lobID, jobName)

	return jobName, namespaceName, nil
}

// IsJobCompleted resolves the LOB namespace and delegates to the backend.
func (o *Orchestrator) IsJobCompleted(ctx context.Context, jobName, lobID string) (bool, error) {
	ns := o.resolver.GetNamespaceForLob(lobID)
	return o.backend.IsJobCompleted(ctx, ns, jobName)
}

// GetJobPhase resolves the LOB namespace and returns the workload's raw
// completion counters, so a caller that has already seen IsJobCompleted
// return true can distinguish a succeeded run from a failed one.
func (o *Orchestrator) GetJobPhase(ctx context.Context, jobName, lobID string) (cluster.JobPhase, error) {
	ns := o.resolver.GetNamespaceForLob(lobID)
	return o.backend.GetJob(ctx, ns, jobName)
}

// GetTestResults resolves the LOB namespace and returns the job's raw log
// output, which callers parse as the test report.
func (o *Orchestrator) GetTestResults(ctx context.Context, jobName, lobID string) (string, error) {
	ns := o.resolver.GetNamespaceForLob(lobID)
	return o.backend.GetJobLogs(ctx, ns, jobName)
}

// CleanupTestJob resolves the LOB namespace and deletes the workload.
func (o *Orchestrator) CleanupTestJob(ctx context.Context, jobName, lobID string) error {
	ns := o.resolver.GetNamespaceForLob(lobID)
	return o.backend.DeleteJob(ctx, ns, jobName)
}

// CleanupCompletedJobsAcrossLobs implements the `cleanup-completed-jobs`
// ticker trigger (§6): it lists every LOB namespace and delegates to
// C1.CleanupCompletedJobs in each, skipping entirely when
// AutoCleanupJobs is disabled (§4.1). It returns the number of
// namespaces swept.
func (o *Orchestrator) CleanupCompletedJobsAcrossLobs(ctx context.Context) (int, error) {
	admin, err := o.policyStore.GetAdminConfiguration(ctx, true)
	if err != nil {
		return 0, fmt.Errorf("orchestrator: loading admin configuration for cleanup sweep: %w", err)
	}
	if !admin.ResourceManagement.AutoCleanupJobs {
		return 0, nil
	}

	namespaces, err := o.backend.ListNamespaces(ctx, admin.Cluster.LobNamespacePrefix)
	if err != nil {
		return 0, fmt.Errorf("orchestrator: listing lob namespaces for cleanup: %w", err)
	}

	swept := 0
	for _, ns := range namespaces {
		if err := o.backend.CleanupCompletedJobs(ctx, ns.Name, admin.ResourceManagement.CleanupAfterHours); err != nil {
			klog.Warningf("orchestrator: cleaning up completed jobs in namespace %s: %v", ns.Name, err)
			continue
		}
		swept++
	}
	return swept, nil
}

func newJobName() (string, error) {
	buf := make([]byte, jobNameHexLength/2)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "test-job-" + hex.EncodeToString(buf), nil
}
