package monitor

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus gauges CollectClusterMetrics keeps
// up to date, so the same tick is both alert-actionable (through the
// Evaluator) and dashboard-scrapable.
type Metrics struct {
	clusterLoad   prometheus.Gauge
	readyNodes    prometheus.Gauge
	runningPods   prometheus.Gauge
	namespacePods *prometheus.GaugeVec
	namespaceJobs *prometheus.GaugeVec
}

// NewMetrics registers the cluster monitoring gauges against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		clusterLoad: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "testexec_cluster_load",
			Help: "Coarse cluster utilization heuristic: running pods / (ready nodes * 10).",
		}),
		readyNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "testexec_cluster_nodes_ready",
			Help: "Number of cluster nodes in Ready condition.",
		}),
		runningPods: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "testexec_cluster_pods_running",
			Help: "Total running pods across monitored namespaces.",
		}),
		namespacePods: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "testexec_namespace_pods",
			Help: "Pods per namespace by phase.",
		}, []string{"namespace", "phase"}),
		namespaceJobs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "testexec_namespace_jobs",
			Help: "Jobs per namespace by terminal/active state.",
		}, []string{"namespace", "state"}),
	}

	reg.MustRegister(m.clusterLoad, m.readyNodes, m.runningPods, m.namespacePods, m.namespaceJobs)
	return m
}

func (m *Metrics) observe(result ClusterMetrics) {
	m.clusterLoad.Set(result.Load)
	m.readyNodes.Set(float64(result.ReadyNodes))
	m.runningPods.Set(float64(result.RunningPods))

	for _, nm := range result.Namespaces {
		m.namespacePods.WithLabelValues(nm.Namespace, "Running").Set(float64(nm.PodsRunning))
		m.namespacePods.WithLabelValues(nm.Namespace, "Pending").Set(float64(nm.PodsPending))
		m.namespacePods.WithLabelValues(nm.Namespace, "Failed").Set(float64(nm.PodsFailed))

		m.namespaceJobs.WithLabelValues(nm.Namespace, "Active").Set(float64(nm.JobsActive))
		m.namespaceJobs.WithLabelValues(nm.Namespace, "Succeeded").Set(float64(nm.JobsSucceeded))
		m.namespaceJobs.WithLabelValues(nm.Namespace, "Failed").Set(float64(nm.JobsFailed))
	}
}
