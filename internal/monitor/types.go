// Package monitor implements Monitoring & Alerting (C7):
// CollectClusterMetrics, the ClusterLoad heuristic, alert-rule
// evaluation with storm deduplication, and notification dispatch (§4.7).
package monitor

// NamespaceMetrics tallies pod and job state within one namespace.
type NamespaceMetrics struct {
	Namespace       string
	PodsRunning     int
	PodsPending     int
	PodsFailed      int
	JobsActive      int
	JobsSucceeded   int
	JobsFailed      int
}

// ClusterMetrics is the full snapshot a single CollectClusterMetrics
// tick produces.
type ClusterMetrics struct {
	Namespaces  []NamespaceMetrics
	ReadyNodes  int
	TotalNodes  int
	RunningPods int
	Load        float64
}
