// Package httpapi implements the external HTTP surface (§6): routing,
// claims extraction, request/response shaping, and the error-to-status
// mapping every handler shares. It composes the C3-C8 collaborators but
// owns none of their state.
package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/contoso-cloud/testexec-controlplane/internal/monitor"
	"github.com/contoso-cloud/testexec-controlplane/internal/namespace"
	"github.com/contoso-cloud/testexec-controlplane/internal/orchestrator"
	"github.com/contoso-cloud/testexec-controlplane/internal/policy"
	"github.com/contoso-cloud/testexec-controlplane/internal/reporting"
	"github.com/contoso-cloud/testexec-controlplane/internal/schedule"
	"github.com/contoso-cloud/testexec-controlplane/internal/tracker"
)

// IDGenerator mints identifiers for newly created rows.
type IDGenerator func() string

// Server holds every collaborator the HTTP surface dispatches to. It is
// built once at the composition root and never mutated afterward.
type Server struct {
	tracker      *tracker.Tracker
	orchestrator *orchestrator.Orchestrator
	resolver     *namespace.Resolver
	policyStore  *policy.Store
	scheduleRepo schedule.Repository
	reportReader *reporting.Reader
	evaluator    *monitor.Evaluator
	newID        IDGenerator

	healthCheckers []HealthChecker
	metricsReg     *prometheus.Registry
}

// NewServer builds a Server over its collaborators. metricsReg may be
// nil, in which case /metrics is not mounted.
func NewServer(
	trk *tracker.Tracker,
	orch *orchestrator.Orchestrator,
	resolver *namespace.Resolver,
	policyStore *policy.Store,
	scheduleRepo schedule.Repository,
	reportReader *reporting.Reader,
	evaluator *monitor.Evaluator,
	newID IDGenerator,
	healthCheckers []HealthChecker,
	metricsReg *prometheus.Registry,
) *Server {
	return &Server{
		tracker:        trk,
		orchestrator:   orch,
		resolver:       resolver,
		policyStore:    policyStore,
		scheduleRepo:   scheduleRepo,
		reportReader:   reportReader,
		evaluator:      evaluator,
		newID:          newID,
		healthCheckers: healthCheckers,
		metricsReg:     metricsReg,
	}
}

// Router builds the gorilla/mux router implementing §6's routing table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(HeaderClaimsMiddleware)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	if s.metricsReg != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.metricsReg, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	r.HandleFunc("/jobs", s.handleCreateJob).Methods(http.MethodPost)
	r.HandleFunc("/jobs/{jobId}", s.handleGetJob).Methods(http.MethodGet)
	r.HandleFunc("/jobs/{jobId}/results", s.handleGetJobResults).Methods(http.MethodGet)
	r.HandleFunc("/jobs/{jobId}/cleanup", s.handleCleanupJob).Methods(http.MethodPost)

	r.HandleFunc("/schedules", s.handleCreateSchedule).Methods(http.MethodPost)
	r.HandleFunc("/schedules", s.handleListSchedules).Methods(http.MethodGet)
	r.HandleFunc("/schedules/{id}", s.handleGetSchedule).Methods(http.MethodGet)
	r.HandleFunc("/schedules/{id}", s.handleUpdateSchedule).Methods(http.MethodPut)
	r.HandleFunc("/schedules/{id}", s.handleDeleteSchedule).Methods(http.MethodDelete)

	r.HandleFunc("/configurations", s.handleCreateConfiguration).Methods(http.MethodPost)
	r.HandleFunc("/configurations", s.handleListConfigurations).Methods(http.MethodGet)
	r.HandleFunc("/configurations/{userId}", s.handleGetConfiguration).Methods(http.MethodGet)
	r.HandleFunc("/configurations/{userId}", s.handleUpdateConfiguration).Methods(http.MethodPut)
	r.HandleFunc("/configurations/{userId}", s.handleDeleteConfiguration).Methods(http.MethodDelete)

	r.HandleFunc("/admin/configuration", s.handleGetAdminConfiguration).Methods(http.MethodGet)
	r.HandleFunc("/admin/configuration", s.handlePutAdminConfiguration).Methods(http.MethodPut)
	r.HandleFunc("/admin/jobs", s.handleAdminJobs).Methods(http.MethodGet)
	r.HandleFunc("/admin/jobs/summary", s.handleAdminJobsSummary).Methods(http.MethodGet)
	r.HandleFunc("/admin/lobs/summary", s.handleAdminLobsSummary).Methods(http.MethodGet)
	r.HandleFunc("/admin/tests/failing", s.handleAdminFailingTests).Methods(http.MethodGet)
	r.HandleFunc("/admin/alerts/test", s.handleAdminAlertsTest).Methods(http.MethodPost)

	return r
}
