// Command controlplane is the composition root (§9): it constructs every
// concrete collaborator exactly once, wires them into the C1-C8 cores,
// and runs the gorilla/mux HTTP surface and the go-co-op/gocron/v2
// ticker triggers concurrently until signaled to stop.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"k8s.io/klog/v2"

	"github.com/contoso-cloud/testexec-controlplane/internal/clock"
	"github.com/contoso-cloud/testexec-controlplane/internal/cluster"
	"github.com/contoso-cloud/testexec-controlplane/internal/config"
	"github.com/contoso-cloud/testexec-controlplane/internal/db"
	"github.com/contoso-cloud/testexec-controlplane/internal/email"
	"github.com/contoso-cloud/testexec-controlplane/internal/httpapi"
	"github.com/contoso-cloud/testexec-controlplane/internal/messaging"
	"github.com/contoso-cloud/testexec-controlplane/internal/monitor"
	"github.com/contoso-cloud/testexec-controlplane/internal/namespace"
	"github.com/contoso-cloud/testexec-controlplane/internal/orchestrator"
	"github.com/contoso-cloud/testexec-controlplane/internal/policy"
	"github.com/contoso-cloud/testexec-controlplane/internal/reporting"
	"github.com/contoso-cloud/testexec-controlplane/internal/schedule"
	"github.com/contoso-cloud/testexec-controlplane/internal/storage"
	"github.com/contoso-cloud/testexec-controlplane/internal/tracker"
	"github.com/contoso-cloud/testexec-controlplane/internal/webhook"
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	cfg := config.FromEnv()

	if err := run(cfg); err != nil {
		klog.Fatalf("controlplane: %v", err)
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sqlDB, err := db.Open(cfg.SQLConnectionString)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer sqlDB.Close()

	backend, err := newClusterBackend(cfg)
	if err != nil {
		return fmt.Errorf("building cluster backend: %w", err)
	}

	bus := newMessagingBus(cfg)
	defer bus.Close()

	store := newObjectStore(cfg)
	emailSender := newEmailSender(cfg)
	webhookSender := newWebhookSender(cfg)

	clk := clock.Real{}
	newID := func() string { return uuid.NewString() }

	registry := prometheus.NewRegistry()

	policyRepo := db.NewPolicyRepository(sqlDB)
	policyStore := policy.NewStore(policyRepo, clk, newID)

	resolver := namespace.NewResolver(backend, policyStore)
	resolver.Start(ctx, time.Minute)
	defer resolver.Stop()

	notifier := monitor.NewNotifier(emailSender, webhookSender)
	evaluator := monitor.NewEvaluator(policyStore, notifier, clk)

	trackerRepo := db.NewTrackerRepository(sqlDB)
	trk := tracker.New(trackerRepo, store, bus, evaluator, policyStore, clk, newID, cfg.KafkaTestResultsTopic)

	orchMetrics := orchestrator.NewMetrics(registry)
	orch := orchestrator.New(backend, resolver, policyStore, cfg.ContainerRegistry, orchMetrics)

	scheduleRepo := db.NewScheduleRepository(sqlDB)
	engine := schedule.New(scheduleRepo, &pipelineEnqueuer{tracker: trk, orchestrator: orch, policy: policyStore}, clk)

	reportReader := reporting.NewReader(sqlDB)

	monitorMetrics := monitor.NewMetrics(registry)
	collector := monitor.NewCollector(backend, monitorMetrics, func(ctx context.Context, name string, value float64, dimensions map[string]string) {
		if err := evaluator.Evaluate(ctx, name, value, dimensions); err != nil {
			klog.Warningf("controlplane: evaluating alert metric %s: %v", name, err)
		}
	})

	healthCheckers := []httpapi.HealthChecker{
		pingDB{db: sqlDB},
		pingCluster{backend: backend},
	}

	server := httpapi.NewServer(trk, orch, resolver, policyStore, scheduleRepo, reportReader, evaluator, newID, healthCheckers, registry)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: server.Router(),
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("building ticker scheduler: %w", err)
	}
	if err := registerTickers(scheduler, policyStore, orch, trk, engine, collector, evaluator); err != nil {
		return fmt.Errorf("registering ticker triggers: %w", err)
	}
	scheduler.Start()
	defer func() {
		if err := scheduler.Shutdown(); err != nil {
			klog.Warningf("controlplane: shutting down ticker scheduler: %v", err)
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		klog.Infof("controlplane: listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		klog.Info("controlplane: shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// registerTickers wires §6's five ticker triggers onto scheduler.
func registerTickers(
	scheduler gocron.Scheduler,
	policyStore *policy.Store,
	orch *orchestrator.Orchestrator,
	trk *tracker.Tracker,
	engine *schedule.Engine,
	collector *monitor.Collector,
	evaluator *monitor.Evaluator,
) error {
	tasks := []struct {
		name string
		def  gocron.JobDefinition
		fn   func()
	}{
		{
			name: "collect-cluster-metrics",
			def:  gocron.DurationJob(5 * time.Minute),
			fn: func() {
				ctx, cancel := context.WithTimeout(context.Background(), 150*time.Second)
				defer cancel()
				admin, err := policyStore.GetAdminConfiguration(ctx, true)
				if err != nil {
					klog.Warningf("ticker collect-cluster-metrics: loading admin configuration: %v", err)
					return
				}
				if _, err := collector.CollectClusterMetrics(ctx, admin.Cluster.LobNamespacePrefix); err != nil {
					klog.Warningf("ticker collect-cluster-metrics: %v", err)
				}
			},
		},
		{
			name: "cleanup-completed-jobs",
			def:  gocron.DurationJob(4 * time.Hour),
			fn: func() {
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Hour)
				defer cancel()
				if _, err := orch.CleanupCompletedJobsAcrossLobs(ctx); err != nil {
					klog.Warningf("ticker cleanup-completed-jobs: %v", err)
				}
			},
		},
		{
			name: "cleanup-old-test-results",
			def:  gocron.CronJob("0 0 * * *", false),
			fn: func() {
				ctx, cancel := context.WithTimeout(context.Background(), 12*time.Hour)
				defer cancel()
				if _, _, err := trk.PruneOldTestResults(ctx); err != nil {
					klog.Warningf("ticker cleanup-old-test-results: %v", err)
				}
			},
		},
		{
			name: "process-scheduled-jobs",
			def:  gocron.DurationJob(5 * time.Minute),
			fn: func() {
				ctx, cancel := context.WithTimeout(context.Background(), 150*time.Second)
				defer cancel()
				if _, err := engine.ProcessDueSchedules(ctx); err != nil {
					klog.Warningf("ticker process-scheduled-jobs: %v", err)
				}
			},
		},
		{
			name: "send-test-notification",
			def:  gocron.CronJob("0 8 * * *", false),
			fn: func() {
				ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
				defer cancel()
				err := evaluator.SendTestNotification(ctx, "TestExec daily heartbeat",
					"Scheduled alert-transport check: notifications are flowing.", policy.SeverityInformation)
				if err != nil {
					klog.Warningf("ticker send-test-notification: %v", err)
				}
			},
		},
	}

	for _, t := range tasks {
		if _, err := scheduler.NewJob(t.def, gocron.NewTask(t.fn), gocron.WithName(t.name)); err != nil {
			return fmt.Errorf("registering ticker %q: %w", t.name, err)
		}
	}
	return nil
}

// pipelineEnqueuer adapts the Job Tracker and Job Orchestrator into a
// schedule.Enqueuer, so due schedules feed the exact same
// create-row/submit-workload pipeline a user's POST /jobs does (§4.6).
type pipelineEnqueuer struct {
	tracker      *tracker.Tracker
	orchestrator *orchestrator.Orchestrator
	policy       *policy.Store
}

func (e *pipelineEnqueuer) Enqueue(ctx context.Context, req schedule.JobRequest) error {
	admin, err := e.policy.GetAdminConfiguration(ctx, true)
	if err != nil {
		return fmt.Errorf("enqueuer: loading admin configuration: %w", err)
	}
	runningInLob, err := e.tracker.CountRunningJobsForLob(ctx, req.LobID)
	if err != nil {
		return fmt.Errorf("enqueuer: counting running jobs for lob: %w", err)
	}
	runningInTeam, err := e.tracker.CountRunningJobs(ctx, req.LobID, req.TeamID)
	if err != nil {
		return fmt.Errorf("enqueuer: counting running jobs for team: %w", err)
	}
	if err := policy.CheckConcurrencyQuota(admin, req.LobID, req.TeamID, runningInLob, runningInTeam); err != nil {
		klog.Warningf("enqueuer: schedule %s skipped: %v", req.ScheduleID, err)
		return nil
	}

	scheduleID := req.ScheduleID
	jobID, err := e.tracker.CreateJob(ctx, req.LobID, req.TeamID, req.RepoURL, req.TestImageType, req.UserID, &scheduleID)
	if err != nil {
		return fmt.Errorf("enqueuer: creating job row: %w", err)
	}

	jobName, _, err := e.orchestrator.CreateTestJob(ctx, req.RepoURL, req.TestImageType, req.LobID)
	if err != nil {
		if updateErr := e.tracker.UpdateJobStatus(ctx, jobID, tracker.StatusFailed); updateErr != nil {
			klog.Warningf("enqueuer: job %s: marking Failed after orchestrator error: %v", jobID, updateErr)
		}
		return fmt.Errorf("enqueuer: creating cluster workload: %w", err)
	}

	if err := e.tracker.AttachClusterJob(ctx, jobID, jobName); err != nil {
		klog.Warningf("enqueuer: job %s: attaching cluster job name %s: %v", jobID, jobName, err)
	}
	return nil
}

func newClusterBackend(cfg config.Config) (cluster.Backend, error) {
	if cfg.KubernetesProvider == "openshift" {
		return cluster.NewOpenShiftBackend(cfg.KubernetesKubeconfig)
	}
	return cluster.NewAKSBackend(cfg.KubernetesKubeconfig)
}

func newMessagingBus(cfg config.Config) messaging.Bus {
	if cfg.MessagingProvider == "kafka" && len(cfg.KafkaBootstrapServers) > 0 {
		return messaging.NewKafkaBus(cfg.KafkaBootstrapServers, cfg.KafkaTestResultsTopic)
	}
	klog.Info("controlplane: no Kafka brokers configured, using in-memory message bus")
	return messaging.NewFake()
}

func newObjectStore(cfg config.Config) storage.Store {
	if cfg.StorageProvider == "azureblob" && cfg.StorageConnectionString != "" {
		s, err := storage.NewAzureBlobStore(cfg.StorageConnectionString, cfg.StorageTestResultsContainer)
		if err != nil {
			klog.Warningf("controlplane: building azure blob store: %v, falling back to in-memory store", err)
			return storage.NewFake()
		}
		return s
	}
	klog.Info("controlplane: no object storage configured, using in-memory store")
	return storage.NewFake()
}

func newEmailSender(cfg config.Config) email.Sender {
	if cfg.SendGridAPIKey == "" {
		return email.NewFake()
	}
	return email.NewSendGridSender(cfg.SendGridAPIKey, cfg.SendGridSenderEmail, cfg.SendGridSenderName)
}

func newWebhookSender(cfg config.Config) webhook.Sender {
	if !cfg.WebhookEnabled {
		return webhook.NewFake()
	}
	return webhook.NewHTTPSender(nil)
}

// pingDB is a HealthChecker that verifies the database connection.
type pingDB struct {
	db interface {
		PingContext(ctx context.Context) error
	}
}

func (pingDB) Name() string { return "database" }

func (p pingDB) Check(ctx context.Context) error { return p.db.PingContext(ctx) }

// pingCluster is a HealthChecker that verifies the cluster backend can
// list namespaces.
type pingCluster struct {
	backend cluster.Backend
}

func (pingCluster) Name() string { return "cluster" }

func (p pingCluster) Check(ctx context.Context) error {
	_, err := p.backend.ListNamespaces(ctx, "")
	return err
}
