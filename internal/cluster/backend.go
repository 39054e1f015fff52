// Package cluster abstracts the container-orchestration cluster behind a
// single capability set (§4.1) so the rest of the control plane never
// imports a provider-specific client. Two concrete variants are provided,
// NewAKSBackend and NewOpenShiftBackend, both backed by k8s.io/client-go;
// they authenticate the same way (in-cluster config, else kubeconfig) and
// differ only in provider-specific annotations, never in the contract below.
package cluster

import "context"

// Backend is the uniform capability set every cluster provider must
// implement. Every method is a suspension point and must honor ctx
// cancellation/deadline per §5.
type Backend interface {
	// CreateTestJob creates a one-shot workload running the test runner
	// image described by p. Pod restart policy is Never; the job's
	// ActiveDeadlineSeconds is p.TimeoutSeconds.
	CreateTestJob(ctx context.Context, p CreateJobParams) (jobName string, err error)

	// GetJob returns the current phase of jobName in namespace.
	GetJob(ctx context.Context, namespace, jobName string) (JobPhase, error)

	// IsJobCompleted reports whether the job reached a terminal state,
	// i.e. succeeded>0 OR failed>0.
	IsJobCompleted(ctx context.Context, namespace, jobName string) (bool, error)

	// GetJobLogs returns the full log stream of the first pod labeled
	// job-name=jobName. It never fails on a missing pod: it returns a
	// sentinel message instead.
	GetJobLogs(ctx context.Context, namespace, jobName string) (string, error)

	// DeleteJob deletes jobName and cascades to its pods (background
	// propagation).
	DeleteJob(ctx context.Context, namespace, jobName string) error

	// CreateNamespaceIfNotExists is idempotent: a not-found read
	// followed by create. Any other failure propagates.
	CreateNamespaceIfNotExists(ctx context.Context, name string) error

	// ListNamespaces returns namespaces whose name has the given prefix
	// (empty prefix lists all).
	ListNamespaces(ctx context.Context, prefix string) ([]NamespaceInfo, error)

	// ListPods lists pods in namespace, optionally filtered by an exact
	// label-value selector.
	ListPods(ctx context.Context, namespace string, labelSelector map[string]string) ([]PodInfo, error)

	// ListJobs lists jobs in namespace, optionally filtered by an exact
	// label-value selector.
	ListJobs(ctx context.Context, namespace string, labelSelector map[string]string) ([]JobPhase, error)

	// ListNodes lists all cluster nodes.
	ListNodes(ctx context.Context) ([]NodeInfo, error)

	// CleanupCompletedJobs deletes jobs in namespace that finished more
	// than olderThanHours ago. Callers must skip calling this entirely
	// when AutoCleanupJobs is disabled; the backend does not consult
	// policy itself.
	CleanupCompletedJobs(ctx context.Context, namespace string, olderThanHours int) error
}
