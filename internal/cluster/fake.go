package cluster

import (
	"context"
	"fmt"
	"sync"
)

// Fake is an in-memory Backend used by unit tests across the control
// plane; it never talks to a real API server. Tests drive job outcomes
// with SetJobOutcome instead of waiting on a real cluster to schedule
// pods.
type Fake struct {
	mu         sync.Mutex
	namespaces map[string]struct{}
	jobs       map[string]JobPhase // key: namespace/jobName
	logs       map[string]string   // key: namespace/jobName
	nodes      []NodeInfo
}

// NewFake returns an empty Fake backend.
func NewFake() *Fake {
	return &Fake{
		namespaces: map[string]struct{}{},
		jobs:       map[string]JobPhase{},
		logs:       map[string]string{},
	}
}

func key(namespace, name string) string { return namespace + "/" + name }

func (f *Fake) CreateTestJob(ctx context.Context, p CreateJobParams) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[key(p.Namespace, p.JobName)] = JobPhase{Name: p.JobName, Namespace: p.Namespace, Active: 1}
	return p.JobName, nil
}

func (f *Fake) GetJob(ctx context.Context, namespace, jobName string) (JobPhase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	phase, ok := f.jobs[key(namespace, jobName)]
	if !ok {
		return JobPhase{}, &Error{Kind: KindNotFound, Namespace: namespace, Resource: "Job", Name: jobName, Err: fmt.Errorf("not found")}
	}
	return phase, nil
}

func (f *Fake) IsJobCompleted(ctx context.Context, namespace, jobName string) (bool, error) {
	phase, err := f.GetJob(ctx, namespace, jobName)
	if err != nil {
		return false, err
	}
	return phase.Completed(), nil
}

func (f *Fake) GetJobLogs(ctx context.Context, namespace, jobName string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if logs, ok := f.logs[key(namespace, jobName)]; ok {
		return logs, nil
	}
	return noPodFoundMessage, nil
}

func (f *Fake) DeleteJob(ctx context.Context, namespace, jobName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.jobs, key(namespace, jobName))
	delete(f.logs, key(namespace, jobName))
	return nil
}

func (f *Fake) CreateNamespaceIfNotExists(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.namespaces[name] = struct{}{}
	return nil
}

func (f *Fake) ListNamespaces(ctx context.Context, prefix string) ([]NamespaceInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]NamespaceInfo, 0, len(f.namespaces))
	for ns := range f.namespaces {
		if prefix == "" || len(ns) >= len(prefix) && ns[:len(prefix)] == prefix {
			out = append(out, NamespaceInfo{Name: ns})
		}
	}
	return out, nil
}

func (f *Fake) ListPods(ctx context.Context, namespace string, labelSelector map[string]string) ([]PodInfo, error) {
	return nil, nil
}

func (f *Fake) ListJobs(ctx context.Context, namespace string, labelSelector map[string]string) ([]JobPhase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]JobPhase, 0)
	for _, phase := range f.jobs {
		if phase.Namespace == namespace {
			out = append(out, phase)
		}
	}
	return out, nil
}

func (f *Fake) ListNodes(ctx context.Context) ([]NodeInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]NodeInfo(nil), f.nodes...), nil
}

func (f *Fake) CleanupCompletedJobs(ctx context.Context, namespace string, olderThanHours int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, phase := range f.jobs {
		if phase.Namespace == namespace && phase.Completed() {
			delete(f.jobs, k)
		}
	}
	return nil
}

// SetJobOutcome lets a test drive a job straight to a terminal state
// without waiting on CreateTestJob + a real scheduler.
func (f *Fake) SetJobOutcome(namespace, jobName string, succeeded, failed int32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[key(namespace, jobName)] = JobPhase{Name: jobName, Namespace: namespace, Succeeded: succeeded, Failed: failed}
}

// SetJobLogs seeds the logs a subsequent GetJobLogs call returns.
func (f *Fake) SetJobLogs(namespace, jobName, logs string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs[key(namespace, jobName)] = logs
}

// SetNodes seeds the node list ListNodes returns.
func (f *Fake) SetNodes(nodes []NodeInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nodes = nodes
}

var _ Backend = (*Fake)(nil)
