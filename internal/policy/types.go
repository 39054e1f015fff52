// Package policy implements the admin-owned global configuration and the
// per-tenant configuration overrides that bound it (§4.3), including the
// YAML round-trip contract and the CPU/memory resource-string parser.
package policy

import "time"

// ContainerLimits is the default (or override) container resource shape,
// expressed as Kubernetes-style resource-quantity strings.
type ContainerLimits struct {
	CPULimit      string `yaml:"cpuLimit"`
	MemoryLimit   string `yaml:"memoryLimit"`
	CPURequest    string `yaml:"cpuRequest"`
	MemoryRequest string `yaml:"memoryRequest"`
}

// ResourceManagement is the admin-owned concurrency and default-shape policy.
type ResourceManagement struct {
	MaxConcurrentJobsPerLob  int             `yaml:"maxConcurrentJobsPerLob"`
	MaxConcurrentJobsPerTeam int             `yaml:"maxConcurrentJobsPerTeam"`
	DefaultJobTimeoutMinutes int             `yaml:"defaultJobTimeoutMinutes"`
	DefaultContainerLimits   ContainerLimits `yaml:"defaultContainerLimits"`
	AutoCleanupJobs          bool            `yaml:"autoCleanupJobs"`
	CleanupAfterHours        int             `yaml:"cleanupAfterHours"`
}

// Retention bounds how long persisted data and artifacts are kept.
type Retention struct {
	TestResultsRetentionDays int `yaml:"testResultsRetentionDays"`
	JobHistoryRetentionDays  int `yaml:"jobHistoryRetentionDays"`
	MaxTestResultFileSizeMB  int `yaml:"maxTestResultFileSizeMb"`
}

// NodePool describes one cluster node pool, surfaced for reporting only.
type NodePool struct {
	Name string `yaml:"name"`
}

// ClusterPolicy configures namespace derivation and node-pool metadata.
type ClusterPolicy struct {
	SystemNamespace    string     `yaml:"systemNamespace"`
	LobNamespacePrefix string     `yaml:"lobNamespacePrefix"`
	NodePools          []NodePool `yaml:"nodePools"`
}

// RateLimits bounds request rates; the HTTP layer (out of scope here)
// consumes this, the core only carries it through the round trip.
type RateLimits struct {
	RequestsPerMinute int `yaml:"requestsPerMinute"`
}

// AlertOperator is the comparison operator an AlertRule evaluates with.
type AlertOperator string

const (
	OperatorGreaterThan AlertOperator = "GreaterThan"
	OperatorLessThan    AlertOperator = "LessThan"
	OperatorEquals      AlertOperator = "Equals"
)

// AlertSeverity classifies how loudly a violated rule should be raised.
type AlertSeverity string

const (
	SeverityInformation AlertSeverity = "Information"
	SeverityWarning     AlertSeverity = "Warning"
	SeverityCritical    AlertSeverity = "Critical"
)

// AlertRule is a (metric, operator, threshold, dimensions, severity)
// tuple that emits a notification when satisfied, subject to cooldown.
type AlertRule struct {
	ID                 string            `yaml:"id"`
	Name                string            `yaml:"name"`
	Description         string            `yaml:"description"`
	Metric              string            `yaml:"metric"`
	Threshold           float64           `yaml:"threshold"`
	Operator            AlertOperator     `yaml:"operator"`
	TimeWindowMinutes   int               `yaml:"timeWindowMinutes"`
	Severity            AlertSeverity     `yaml:"severity"`
	Enabled             bool              `yaml:"enabled"`
	Dimensions          map[string]string `yaml:"dimensions,omitempty"`
}

// NotificationSettings configures which transports alerts go out on.
type NotificationSettings struct {
	EmailEnabledForSeverity   map[AlertSeverity]bool `yaml:"emailEnabledForSeverity"`
	WebhookURLs               []string               `yaml:"webhookUrls"`
	WebhookEnabled            bool                   `yaml:"webhookEnabled"`
}

// Alerts bundles every alert rule and the notification fan-out settings.
type Alerts struct {
	Rules         []AlertRule           `yaml:"rules"`
	Notifications NotificationSettings `yaml:"notifications"`
}

// AdminConfiguration is the singleton-per-deployment policy document that
// bounds every tenant's job shape and is round-tripped as a YAML blob.
type AdminConfiguration struct {
	ID                 string             `yaml:"-"`
	Name                string             `yaml:"-"`
	ResourceManagement ResourceManagement `yaml:"resourceManagement"`
	Retention           Retention          `yaml:"retention"`
	Cluster             ClusterPolicy      `yaml:"cluster"`
	RateLimits          RateLimits         `yaml:"rateLimits"`
	Alerts              Alerts             `yaml:"alerts"`
	CreatedAt           time.Time          `yaml:"-"`
	UpdatedAt           time.Time          `yaml:"-"`
}

// UserConfiguration is a per-(lob,team,user) override of job shape,
// bounded by the admin configuration's caps.
type UserConfiguration struct {
	ID        string            `yaml:"-"`
	LobID     string            `yaml:"-"`
	TeamID    string            `yaml:"-"`
	UserID    string            `yaml:"-"`
	CreatedAt time.Time         `yaml:"-"`
	EnvVars   map[string]string `yaml:"envVars,omitempty"`
	Limits    ContainerLimits   `yaml:"limits"`
	// ScheduleStub carries a lightweight preferred-run-time hint; the
	// authoritative schedule record lives in the schedule package.
	ScheduleStub string `yaml:"scheduleStub,omitempty"`
}

// Default returns the self-healing first-boot configuration written when
// no AdminConfiguration row exists yet.
func Default() AdminConfiguration {
	return AdminConfiguration{
		Name: "default",
		ResourceManagement: ResourceManagement{
			MaxConcurrentJobsPerLob:  20,
			MaxConcurrentJobsPerTeam: 5,
			DefaultJobTimeoutMinutes: 30,
			DefaultContainerLimits: ContainerLimits{
				CPULimit:      "1",
				MemoryLimit:   "1Gi",
				CPURequest:    "100m",
				MemoryRequest: "256Mi",
			},
			AutoCleanupJobs:   true,
			CleanupAfterHours: 24,
		},
		Retention: Retention{
			TestResultsRetentionDays: 90,
			JobHistoryRetentionDays:  365,
			MaxTestResultFileSizeMB:  25,
		},
		Cluster: ClusterPolicy{
			SystemNamespace:    "testexec-system",
			LobNamespacePrefix: "testexec-",
		},
		RateLimits: RateLimits{RequestsPerMinute: 120},
		Alerts: Alerts{
			Rules: defaultAlertRules(),
			Notifications: NotificationSettings{
				EmailEnabledForSeverity: map[AlertSeverity]bool{
					SeverityCritical: true,
					SeverityWarning:  false,
				},
			},
		},
	}
}

func defaultAlertRules() []AlertRule {
	return []AlertRule{
		{
			ID: "default-fail-rate", Name: "High test failure rate",
			Metric: "TestExecution.FailRate", Threshold: 50, Operator: OperatorGreaterThan,
			TimeWindowMinutes: 15, Severity: SeverityWarning, Enabled: true,
		},
		{
			ID: "default-cluster-load", Name: "Cluster overloaded",
			Metric: "Cluster.Load", Threshold: 0.8, Operator: OperatorGreaterThan,
			TimeWindowMinutes: 10, Severity: SeverityCritical, Enabled: true,
		},
	}
}
