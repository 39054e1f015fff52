package monitor

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/contoso-cloud/testexec-controlplane/internal/cluster"
)

// Collector runs CollectClusterMetrics (§4.7): it lists namespaces
// matching the configured LOB prefix, fans out per-namespace pod/job
// aggregation with errgroup, lists nodes, and computes the coarse
// ClusterLoad heuristic.
type Collector struct {
	backend  cluster.Backend
	metrics  *Metrics
	evaluate func(ctx context.Context, name string, value float64, dimensions map[string]string)
}

// NewCollector builds a Collector. evaluate is invoked for every
// emitted metric, wiring into the alert Evaluator.
func NewCollector(backend cluster.Backend, metrics *Metrics, evaluate func(ctx context.Context, name string, value float64, dimensions map[string]string)) *Collector {
	return &Collector{backend: backend, metrics: metrics, evaluate: evaluate}
}

// CollectClusterMetrics lists namespaces with the given prefix, sums
// pods and jobs per namespace concurrently, lists nodes, and computes
// ClusterLoad = running_pods / max(1, ready_nodes * 10).
func (c *Collector) CollectClusterMetrics(ctx context.Context, namespacePrefix string) (ClusterMetrics, error) {
	namespaces, err := c.backend.ListNamespaces(ctx, namespacePrefix)
	if err != nil {
		return ClusterMetrics{}, fmt.Errorf("monitor: listing namespaces: %w", err)
	}

	var mu sync.Mutex
	perNamespace := make([]NamespaceMetrics, len(namespaces))

	g, gctx := errgroup.WithContext(ctx)
	for i, ns := range namespaces {
		i, ns := i, ns
		g.Go(func() error {
			nm, err := c.collectNamespace(gctx, ns.Name)
			if err != nil {
				return err
			}
			mu.Lock()
			perNamespace[i] = nm
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ClusterMetrics{}, fmt.Errorf("monitor: collecting namespace metrics: %w", err)
	}

	nodes, err := c.backend.ListNodes(ctx)
	if err != nil {
		return ClusterMetrics{}, fmt.Errorf("monitor: listing nodes: %w", err)
	}

	readyNodes := 0
	for _, n := range nodes {
		if n.Ready {
			readyNodes++
		}
	}

	runningPods := 0
	for _, nm := range perNamespace {
		runningPods += nm.PodsRunning
	}

	load := ClusterLoad(runningPods, readyNodes)

	result := ClusterMetrics{
		Namespaces:  perNamespace,
		ReadyNodes:  readyNodes,
		TotalNodes:  len(nodes),
		RunningPods: runningPods,
		Load:        load,
	}

	c.emit(ctx, result)
	return result, nil
}

// ClusterLoad is the coarse utilization heuristic §4.7 defines:
// running_pods / max(1, ready_nodes * 10).
func ClusterLoad(runningPods, readyNodes int) float64 {
	denominator := readyNodes * 10
	if denominator < 1 {
		denominator = 1
	}
	return float64(runningPods) / float64(denominator)
}

func (c *Collector) collectNamespace(ctx context.Context, namespace string) (NamespaceMetrics, error) {
	nm := NamespaceMetrics{Namespace: namespace}

	pods, err := c.backend.ListPods(ctx, namespace, nil)
	if err != nil {
		return NamespaceMetrics{}, fmt.Errorf("listing pods in %s: %w", namespace, err)
	}
	for _, p := range pods {
		switch p.Phase {
		case "Running":
			nm.PodsRunning++
		case "Pending":
			nm.PodsPending++
		case "Failed":
			nm.PodsFailed++
		}
	}

	jobs, err := c.backend.ListJobs(ctx, namespace, nil)
	if err != nil {
		return NamespaceMetrics{}, fmt.Errorf("listing jobs in %s: %w", namespace, err)
	}
	for _, j := range jobs {
		switch {
		case j.Failed > 0:
			nm.JobsFailed++
		case j.Succeeded > 0:
			nm.JobsSucceeded++
		case j.Active > 0:
			nm.JobsActive++
		}
	}

	return nm, nil
}

func (c *Collector) emit(ctx context.Context, result ClusterMetrics) {
	c.metrics.observe(result)

	c.evaluate(ctx, "Cluster.Load", result.Load, nil)
	c.evaluate(ctx, "Cluster.ReadyNodes", float64(result.ReadyNodes), nil)
	c.evaluate(ctx, "Cluster.RunningPods", float64(result.RunningPods), nil)
	for _, nm := range result.Namespaces {
		dims := map[string]string{"namespace": nm.Namespace}
		c.evaluate(ctx, "Cluster.PodsRunning", float64(nm.PodsRunning), dims)
		c.evaluate(ctx, "Cluster.PodsPending", float64(nm.PodsPending), dims)
		c.evaluate(ctx, "Cluster.PodsFailed", float64(nm.PodsFailed), dims)
		c.evaluate(ctx, "Cluster.JobsActive", float64(nm.JobsActive), dims)
		c.evaluate(ctx, "Cluster.JobsSucceeded", float64(nm.JobsSucceeded), dims)
		c.evaluate(ctx, "Cluster.JobsFailed", float64(nm.JobsFailed), dims)
	}
}
