package monitor

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/contoso-cloud/testexec-controlplane/internal/clock"
	"github.com/contoso-cloud/testexec-controlplane/internal/policy"
	"github.com/contoso-cloud/testexec-controlplane/internal/tracker"
)

const equalityEpsilon = 1e-4

// staleAlertAge is how long an entry stays in the dedup map before a
// prune sweep drops it (§4.7 step 3).
const staleAlertAge = 24 * time.Hour

// Evaluator runs EvaluateMetric (§4.7): it selects matching enabled
// alert rules, tests the violation condition, deduplicates storms by a
// cooldown window, and dispatches via Notifier. It also satisfies
// tracker.AlertEvaluator, the hook the Job Tracker calls post-commit.
type Evaluator struct {
	policyStore *policy.Store
	notifier    *Notifier
	clock       clock.Clock

	mu           sync.Mutex
	recentAlerts map[string]time.Time
}

// NewEvaluator builds an Evaluator.
func NewEvaluator(policyStore *policy.Store, notifier *Notifier, clk clock.Clock) *Evaluator {
	return &Evaluator{
		policyStore:  policyStore,
		notifier:     notifier,
		clock:        clk,
		recentAlerts: map[string]time.Time{},
	}
}

// EvaluateMetric implements tracker.AlertEvaluator, adapting the Job
// Tracker's ExecutionMetric shape onto the monitor's evaluation path.
func (e *Evaluator) EvaluateMetric(ctx context.Context, metric tracker.ExecutionMetric) error {
	return e.Evaluate(ctx, metric.Name, metric.Value, metric.Dimensions)
}

// Evaluate is the §4.7 EvaluateMetric algorithm: it selects every
// enabled rule whose metric matches name and whose declared dimensions
// (if any) are all present and equal in the supplied dimensions, tests
// the violation condition, deduplicates storms, and dispatches.
func (e *Evaluator) Evaluate(ctx context.Context, name string, value float64, dimensions map[string]string) error {
	admin, err := e.policyStore.GetAdminConfiguration(ctx, true)
	if err != nil {
		return fmt.Errorf("monitor: loading admin configuration: %w", err)
	}

	e.pruneStale()

	for _, rule := range admin.Alerts.Rules {
		if !rule.Enabled || rule.Metric != name {
			continue
		}
		if !dimensionsMatch(rule.Dimensions, dimensions) {
			continue
		}
		if !violated(value, rule.Threshold, rule.Operator) {
			continue
		}

		key := alertKey(rule.ID, dimensions)
		if e.recentlyFired(key, rule.TimeWindowMinutes) {
			continue
		}
		e.recordFired(key)

		title := fmt.Sprintf("%s: %s", rule.Severity, rule.Name)
		message := fmt.Sprintf("%s is %.4f, threshold %s %.4f", rule.Metric, value, rule.Operator, rule.Threshold)
		e.notifier.SendNotification(ctx, title, message, rule.Severity, dimensions, admin.Alerts.Notifications)
	}
	return nil
}

// SendTestNotification dispatches title/message/severity through the
// same notifier EvaluateMetric uses, bypassing rule matching and the
// cooldown dedup — it backs the admin "send a test alert" operation,
// which is an explicit one-off action, not a metric observation.
func (e *Evaluator) SendTestNotification(ctx context.Context, title, message string, severity policy.AlertSeverity) error {
	admin, err := e.policyStore.GetAdminConfiguration(ctx, true)
	if err != nil {
		return fmt.Errorf("monitor: loading admin configuration: %w", err)
	}
	e.notifier.SendNotification(ctx, title, message, severity, nil, admin.Alerts.Notifications)
	return nil
}

func violated(value, threshold float64, op policy.AlertOperator) bool {
	switch op {
	case policy.OperatorGreaterThan:
		return value > threshold
	case policy.OperatorLessThan:
		return value < threshold
	case policy.OperatorEquals:
		return math.Abs(value-threshold) < equalityEpsilon
	default:
		return false
	}
}

func dimensionsMatch(required, actual map[string]string) bool {
	for k, v := range required {
		if actual[k] != v {
			return false
		}
	}
	return true
}

func alertKey(ruleID string, dimensions map[string]string) string {
	if len(dimensions) == 0 {
		return ruleID
	}
	keys := make([]string, 0, len(dimensions))
	for k := range dimensions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(ruleID)
	for _, k := range keys {
		fmt.Fprintf(&b, "|%s=%s", k, dimensions[k])
	}
	return b.String()
}

func (e *Evaluator) recentlyFired(key string, timeWindowMinutes int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	last, ok := e.recentAlerts[key]
	if !ok {
		return false
	}
	cooldown := time.Duration(timeWindowMinutes/2) * time.Minute
	return e.clock.Now().Sub(last) < cooldown
}

func (e *Evaluator) recordFired(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.recentAlerts[key] = e.clock.Now()
}

func (e *Evaluator) pruneStale() {
	now := e.clock.Now()
	e.mu.Lock()
	defer e.mu.Unlock()
	for key, firedAt := range e.recentAlerts {
		if now.Sub(firedAt) > staleAlertAge {
			delete(e.recentAlerts, key)
		}
	}
}

var _ tracker.AlertEvaluator = (*Evaluator)(nil)
