package cluster

import "time"

// ResourceLimits mirrors the admin-configurable container resource shape;
// values are Kubernetes resource-quantity strings ("500m", "512Mi", ...).
type ResourceLimits struct {
	CPULimit      string
	MemoryLimit   string
	CPURequest    string
	MemoryRequest string
}

// CreateJobParams describes a one-shot test-runner workload to create.
type CreateJobParams struct {
	JobName   string
	Namespace string
	Image     string
	RepoURL   string
	Command   []string
	Env       map[string]string
	Limits    ResourceLimits
	// TimeoutSeconds becomes the Job's ActiveDeadlineSeconds.
	TimeoutSeconds int64
	Labels         map[string]string
}

// JobPhase summarizes a workload's completion state without leaking the
// backend's native object model past the Backend boundary.
type JobPhase struct {
	Name      string
	Namespace string
	Active    int32
	Succeeded int32
	Failed    int32
	// CompletionTime is nil while the job has not finished.
	CompletionTime *time.Time
}

// Completed reports whether the job reached a terminal outcome. Terminal
// means either Succeeded or Failed is non-zero — never Succeeded alone.
func (j JobPhase) Completed() bool {
	return j.Succeeded > 0 || j.Failed > 0
}

// PodInfo is a minimal projection of pod state used for listing and for
// locating the pod that backs a given job.
type PodInfo struct {
	Name      string
	Namespace string
	Phase     string
	Labels    map[string]string
}

// NodeInfo is a minimal projection of cluster node state.
type NodeInfo struct {
	Name  string
	Ready bool
}

// NamespaceInfo is a minimal projection of namespace state.
type NamespaceInfo struct {
	Name string
}
