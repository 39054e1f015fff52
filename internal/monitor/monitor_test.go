package monitor_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contoso-cloud/testexec-controlplane/internal/clock"
	"github.com/contoso-cloud/testexec-controlplane/internal/cluster"
	"github.com/contoso-cloud/testexec-controlplane/internal/email"
	"github.com/contoso-cloud/testexec-controlplane/internal/monitor"
	"github.com/contoso-cloud/testexec-controlplane/internal/policy"
	"github.com/contoso-cloud/testexec-controlplane/internal/webhook"
)

func TestClusterLoad_Heuristic(t *testing.T) {
	assert.Equal(t, 0.5, monitor.ClusterLoad(5, 1))
	assert.Equal(t, 5.0, monitor.ClusterLoad(5, 0), "max(1, readyNodes*10) floors the denominator at 1")
	assert.Equal(t, 0.0, monitor.ClusterLoad(0, 10))
}

func TestCollectClusterMetrics_AggregatesAcrossNamespacesAndNodes(t *testing.T) {
	backend := cluster.NewFake()
	ctx := context.Background()

	require.NoError(t, backend.CreateNamespaceIfNotExists(ctx, "testexec-acme"))
	require.NoError(t, backend.CreateNamespaceIfNotExists(ctx, "testexec-globex"))
	backend.SetNodes([]cluster.NodeInfo{{Name: "n1", Ready: true}, {Name: "n2", Ready: false}})

	_, err := backend.CreateTestJob(ctx, cluster.CreateJobParams{JobName: "j1", Namespace: "testexec-acme"})
	require.NoError(t, err)
	backend.SetJobOutcome("testexec-acme", "j1", 1, 0)

	_, err = backend.CreateTestJob(ctx, cluster.CreateJobParams{JobName: "j2", Namespace: "testexec-globex"})
	require.NoError(t, err)
	backend.SetJobOutcome("testexec-globex", "j2", 0, 1)

	reg := prometheus.NewRegistry()
	metrics := monitor.NewMetrics(reg)

	var evaluated []string
	evaluate := func(ctx context.Context, name string, value float64, dimensions map[string]string) {
		evaluated = append(evaluated, name)
	}

	collector := monitor.NewCollector(backend, metrics, evaluate)
	result, err := collector.CollectClusterMetrics(ctx, "testexec-")
	require.NoError(t, err)

	assert.Equal(t, 1, result.ReadyNodes)
	assert.Equal(t, 2, result.TotalNodes)
	assert.Len(t, result.Namespaces, 2)
	assert.Contains(t, evaluated, "Cluster.Load")
}

func TestEvaluator_DeduplicatesWithinCooldownAndFiresAgainAfter(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFixed(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	repo := policy.NewFakeRepository()
	n := 0
	newID := func() string { n++; return "id" }
	policyStore := policy.NewStore(repo, clk, newID)

	admin := policy.Default()
	admin.Alerts.Rules = []policy.AlertRule{
		{ID: "fail-rate", Metric: "TestExecution.FailRate", Threshold: 50, Operator: policy.OperatorGreaterThan, TimeWindowMinutes: 10, Severity: policy.SeverityWarning, Enabled: true},
	}
	admin.Alerts.Notifications = policy.NotificationSettings{
		EmailEnabledForSeverity: map[policy.AlertSeverity]bool{policy.SeverityWarning: true},
	}
	require.NoError(t, policyStore.SaveAdminConfiguration(ctx, admin))

	emailSender := email.NewFake()
	webhookSender := webhook.NewFake()
	notifier := monitor.NewNotifier(emailSender, webhookSender)
	evaluator := monitor.NewEvaluator(policyStore, notifier, clk)

	require.NoError(t, evaluator.Evaluate(ctx, "TestExecution.FailRate", 75, nil))
	assert.Len(t, emailSender.Sent(), 1)

	// Within the cooldown window (time_window_minutes/2 = 5m), a second
	// violation is suppressed.
	clk.Advance(2 * time.Minute)
	require.NoError(t, evaluator.Evaluate(ctx, "TestExecution.FailRate", 90, nil))
	assert.Len(t, emailSender.Sent(), 1, "still within cooldown")

	// Past the cooldown, it fires again.
	clk.Advance(4 * time.Minute)
	require.NoError(t, evaluator.Evaluate(ctx, "TestExecution.FailRate", 90, nil))
	assert.Len(t, emailSender.Sent(), 2)
}

func TestEvaluator_IgnoresBelowThresholdAndDisabledRules(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFixed(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	repo := policy.NewFakeRepository()
	policyStore := policy.NewStore(repo, clk, func() string { return "id" })

	admin := policy.Default()
	admin.Alerts.Rules = []policy.AlertRule{
		{ID: "fail-rate", Metric: "TestExecution.FailRate", Threshold: 50, Operator: policy.OperatorGreaterThan, TimeWindowMinutes: 10, Severity: policy.SeverityWarning, Enabled: true},
		{ID: "disabled", Metric: "TestExecution.FailRate", Threshold: 0, Operator: policy.OperatorGreaterThan, TimeWindowMinutes: 10, Severity: policy.SeverityCritical, Enabled: false},
	}
	require.NoError(t, policyStore.SaveAdminConfiguration(ctx, admin))

	emailSender := email.NewFake()
	notifier := monitor.NewNotifier(emailSender, webhook.NewFake())
	evaluator := monitor.NewEvaluator(policyStore, notifier, clk)

	require.NoError(t, evaluator.Evaluate(ctx, "TestExecution.FailRate", 10, nil))
	assert.Empty(t, emailSender.Sent(), "below threshold and disabled rules never fire")
}
