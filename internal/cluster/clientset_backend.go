package cluster

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/klog/v2"
)

// provider tags which cloud/distribution flavor a clientsetBackend speaks
// for, so the provider-specific workload annotations can live in one
// struct instead of two near-duplicate types. Both providers share the
// same authentication path.
type provider string

const (
	providerAKS        provider = "aks"
	providerOpenShift  provider = "openshift"
	runnerScriptCommand         = "/opt/testrunner/run.sh"
)

// clientsetBackend implements Backend on top of k8s.io/client-go. AKS and
// OpenShift backends are both this struct configured differently; neither
// variant type is exported, so callers can only see the Backend interface.
type clientsetBackend struct {
	clientset *kubernetes.Clientset
	provider  provider
}

// newClientsetBackend builds a client-go clientset the same way the
// teacher library does: prefer in-cluster config, fall back to
// kubeconfig at the given path (or the client-go default location).
func newClientsetBackend(p provider, kubeconfigPath string) (*clientsetBackend, error) {
	config, err := rest.InClusterConfig()
	if err != nil {
		path := kubeconfigPath
		if path == "" {
			if envPath := os.Getenv(clientcmd.RecommendedConfigPathEnvVar); len(envPath) > 0 {
				path = envPath
			} else {
				path = clientcmd.RecommendedHomeFile
			}
		}
		config, err = clientcmd.BuildConfigFromFlags("", path)
	}
	if err != nil {
		return nil, fmt.Errorf("cluster: building kubeconfig: %w", err)
	}

	cs, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("cluster: creating clientset: %w", err)
	}

	return &clientsetBackend{clientset: cs, provider: p}, nil
}

// NewAKSBackend builds a Backend talking to an AKS-style cluster.
// kubeconfigPath may be empty to use in-cluster config or the default
// kubeconfig location.
func NewAKSBackend(kubeconfigPath string) (Backend, error) {
	return newClientsetBackend(providerAKS, kubeconfigPath)
}

// NewOpenShiftBackend builds a Backend talking to an OpenShift-style
// cluster. kubeconfigPath may be empty to use in-cluster config or the
// default kubeconfig location.
func NewOpenShiftBackend(kubeconfigPath string) (Backend, error) {
	return newClientsetBackend(providerOpenShift, kubeconfigPath)
}

func (b *clientsetBackend) annotations() map[string]string {
	if b.provider == providerOpenShift {
		return map[string]string{"openshift.io/scc": "restricted-v2"}
	}
	return nil
}

func (b *clientsetBackend) CreateTestJob(ctx context.Context, p CreateJobParams) (string, error) {
	env := make([]corev1.EnvVar, 0, len(p.Env)+1)
	env = append(env, corev1.EnvVar{Name: "REPO_URL", Value: p.RepoURL})
	for k, v := range p.Env {
		if k == "REPO_URL" {
			continue
		}
		env = append(env, corev1.EnvVar{Name: k, Value: v})
	}

	command := p.Command
	if len(command) == 0 {
		command = []string{runnerScriptCommand}
	}

	limits, requests := resourceLists(p.Limits)

	var activeDeadline *int64
	if p.TimeoutSeconds > 0 {
		d := p.TimeoutSeconds
		activeDeadline = &d
	}

	backoffLimit := int32(0)
	job := &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name:        p.JobName,
			Namespace:   p.Namespace,
			Labels:      p.Labels,
			Annotations: b.annotations(),
		},
		Spec: batchv1.JobSpec{
			ActiveDeadlineSeconds: activeDeadline,
			BackoffLimit:          &backoffLimit,
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{
					Labels: map[string]string{"job-name": p.JobName},
				},
				Spec: corev1.PodSpec{
					RestartPolicy: corev1.RestartPolicyNever,
					Containers: []corev1.Container{
						{
							Name:    "test-runner",
							Image:   p.Image,
							Command: command,
							Env:     env,
							Resources: corev1.ResourceRequirements{
								Limits:   limits,
								Requests: requests,
							},
						},
					},
				},
			},
		},
	}

	created, err := b.clientset.BatchV1().Jobs(p.Namespace).Create(ctx, job, metav1.CreateOptions{})
	if err != nil {
		return "", b.classify(err, "Job", p.Namespace, p.JobName)
	}
	return created.Name, nil
}

func resourceLists(l ResourceLimits) (corev1.ResourceList, corev1.ResourceList) {
	limits := corev1.ResourceList{}
	requests := corev1.ResourceList{}
	if l.CPULimit != "" {
		if q, err := resource.ParseQuantity(l.CPULimit); err == nil {
			limits[corev1.ResourceCPU] = q
		}
	}
	if l.MemoryLimit != "" {
		if q, err := resource.ParseQuantity(l.MemoryLimit); err == nil {
			limits[corev1.ResourceMemory] = q
		}
	}
	if l.CPURequest != "" {
		if q, err := resource.ParseQuantity(l.CPURequest); err == nil {
			requests[corev1.ResourceCPU] = q
		}
	}
	if l.MemoryRequest != "" {
		if q, err := resource.ParseQuantity(l.MemoryRequest); err == nil {
			requests[corev1.ResourceMemory] = q
		}
	}
	return limits, requests
}

func (b *clientsetBackend) GetJob(ctx context.Context, namespace, jobName string) (JobPhase, error) {
	job, err := b.clientset.BatchV1().Jobs(namespace).Get(ctx, jobName, metav1.GetOptions{})
	if err != nil {
		return JobPhase{}, b.classify(err, "Job", namespace, jobName)
	}
	return toJobPhase(job), nil
}

func toJobPhase(job *batchv1.Job) JobPhase {
	phase := JobPhase{
		Name:      job.Name,
		Namespace: job.Namespace,
		Active:    job.Status.Active,
		Succeeded: job.Status.Succeeded,
		Failed:    job.Status.Failed,
	}
	if job.Status.CompletionTime != nil {
		t := job.Status.CompletionTime.Time
		phase.CompletionTime = &t
	}
	return phase
}

func (b *clientsetBackend) IsJobCompleted(ctx context.Context, namespace, jobName string) (bool, error) {
	phase, err := b.GetJob(ctx, namespace, jobName)
	if err != nil {
		return false, err
	}
	// Terminal means either outcome, never succeeded-only: an AKS-only
	// implementation that checked Succeeded>0 alone would hang forever
	// on a failing job.
	return phase.Completed(), nil
}

const noPodFoundMessage = "no logs available: no pod found for job"

func (b *clientsetBackend) GetJobLogs(ctx context.Context, namespace, jobName string) (string, error) {
	pods, err := b.clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{
		LabelSelector: labels.Set{"job-name": jobName}.AsSelector().String(),
	})
	if err != nil {
		return "", b.classify(err, "Pod", namespace, jobName)
	}
	if len(pods.Items) == 0 {
		return noPodFoundMessage, nil
	}

	podName := pods.Items[0].Name
	req := b.clientset.CoreV1().Pods(namespace).GetLogs(podName, &corev1.PodLogOptions{})
	stream, err := req.Stream(ctx)
	if err != nil {
		// A pod that exists but has no logs yet (ContainerCreating) is
		// not an error condition for this call; report the sentinel.
		klog.V(4).Infof("cluster: streaming logs for pod %s/%s: %v", namespace, podName, err)
		return noPodFoundMessage, nil
	}
	defer stream.Close()

	var sb strings.Builder
	reader := bufio.NewReader(stream)
	for {
		line, err := reader.ReadString('\n')
		sb.WriteString(line)
		if err != nil {
			if err == io.EOF {
				break
			}
			return sb.String(), fmt.Errorf("cluster: reading log stream for pod %s/%s: %w", namespace, podName, err)
		}
	}
	return sb.String(), nil
}

func (b *clientsetBackend) DeleteJob(ctx context.Context, namespace, jobName string) error {
	policy := metav1.DeletePropagationBackground
	err := b.clientset.BatchV1().Jobs(namespace).Delete(ctx, jobName, metav1.DeleteOptions{
		PropagationPolicy: &policy,
	})
	if err != nil && !k8serrors.IsNotFound(err) {
		return b.classify(err, "Job", namespace, jobName)
	}
	return nil
}

func (b *clientsetBackend) CreateNamespaceIfNotExists(ctx context.Context, name string) error {
	_, err := b.clientset.CoreV1().Namespaces().Get(ctx, name, metav1.GetOptions{})
	if err == nil {
		return nil
	}
	if !k8serrors.IsNotFound(err) {
		return b.classify(err, "Namespace", "", name)
	}

	ns := &corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{Name: name, Annotations: b.annotations()},
	}
	_, err = b.clientset.CoreV1().Namespaces().Create(ctx, ns, metav1.CreateOptions{})
	if err != nil && !k8serrors.IsAlreadyExists(err) {
		return b.classify(err, "Namespace", "", name)
	}
	return nil
}

func (b *clientsetBackend) ListNamespaces(ctx context.Context, prefix string) ([]NamespaceInfo, error) {
	list, err := b.clientset.CoreV1().Namespaces().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, b.classify(err, "Namespace", "", "")
	}
	out := make([]NamespaceInfo, 0, len(list.Items))
	for _, ns := range list.Items {
		if prefix != "" && !strings.HasPrefix(ns.Name, prefix) {
			continue
		}
		out = append(out, NamespaceInfo{Name: ns.Name})
	}
	return out, nil
}

func (b *clientsetBackend) ListPods(ctx context.Context, namespace string, selector map[string]string) ([]PodInfo, error) {
	list, err := b.clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{
		LabelSelector: labels.Set(selector).AsSelector().String(),
	})
	if err != nil {
		return nil, b.classify(err, "Pod", namespace, "")
	}
	out := make([]PodInfo, 0, len(list.Items))
	for _, pod := range list.Items {
		out = append(out, PodInfo{
			Name:      pod.Name,
			Namespace: pod.Namespace,
			Phase:     string(pod.Status.Phase),
			Labels:    pod.Labels,
		})
	}
	return out, nil
}

func (b *clientsetBackend) ListJobs(ctx context.Context, namespace string, selector map[string]string) ([]JobPhase, error) {
	list, err := b.clientset.BatchV1().Jobs(namespace).List(ctx, metav1.ListOptions{
		LabelSelector: labels.Set(selector).AsSelector().String(),
	})
	if err != nil {
		return nil, b.classify(err, "Job", namespace, "")
	}
	out := make([]JobPhase, 0, len(list.Items))
	for i := range list.Items {
		out = append(out, toJobPhase(&list.Items[i]))
	}
	return out, nil
}

func (b *clientsetBackend) ListNodes(ctx context.Context) ([]NodeInfo, error) {
	list, err := b.clientset.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, b.classify(err, "Node", "", "")
	}
	out := make([]NodeInfo, 0, len(list.Items))
	for _, node := range list.Items {
		out = append(out, NodeInfo{Name: node.Name, Ready: nodeReady(node)})
	}
	return out, nil
}

func nodeReady(node corev1.Node) bool {
	for _, cond := range node.Status.Conditions {
		if cond.Type == corev1.NodeReady {
			return cond.Status == corev1.ConditionTrue
		}
	}
	return false
}

func (b *clientsetBackend) CleanupCompletedJobs(ctx context.Context, namespace string, olderThanHours int) error {
	jobs, err := b.clientset.BatchV1().Jobs(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return b.classify(err, "Job", namespace, "")
	}

	cutoff := time.Duration(olderThanHours) * time.Hour
	now := time.Now()
	policy := metav1.DeletePropagationBackground

	for _, job := range jobs.Items {
		if job.Status.Succeeded == 0 && job.Status.Failed == 0 {
			continue
		}
		if job.Status.CompletionTime == nil {
			continue
		}
		if now.Sub(job.Status.CompletionTime.Time) < cutoff {
			continue
		}
		if err := b.clientset.BatchV1().Jobs(namespace).Delete(ctx, job.Name, metav1.DeleteOptions{
			PropagationPolicy: &policy,
		}); err != nil && !k8serrors.IsNotFound(err) {
			return b.classify(err, "Job", namespace, job.Name)
		}
	}
	return nil
}

func (b *clientsetBackend) classify(err error, resourceKind, namespace, name string) *Error {
	kind := KindOther
	switch {
	case k8serrors.IsNotFound(err):
		kind = KindNotFound
	case k8serrors.IsConflict(err), k8serrors.IsAlreadyExists(err):
		kind = KindConflict
	case k8serrors.IsServiceUnavailable(err), k8serrors.IsTimeout(err), k8serrors.IsServerTimeout(err):
		kind = KindUnavailable
	}
	return &Error{Kind: kind, Namespace: namespace, Resource: resourceKind, Name: name, Err: err}
}

var _ Backend = (*clientsetBackend)(nil)
