package httpapi_test

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	"github.com/contoso-cloud/testexec-controlplane/internal/clock"
	"github.com/contoso-cloud/testexec-controlplane/internal/cluster"
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

// testHarness wires every httpapi collaborator against in-memory fakes,
// mirroring how the composition root wires the real ones.
type testHarness struct {
	server       *httpapi.Server
	tracker      *tracker.Tracker
	trackerRepo  *tracker.FakeRepository
	orchestrator *orchestrator.Orchestrator
	backend      *cluster.Fake
	policyStore  *policy.Store
	policyRepo   *policy.FakeRepository
	scheduleRepo *schedule.FakeRepository
	clk          *clock.Fixed
	resolver     *namespace.Resolver
	counter      uint64
}

func (h *testHarness) newID() string {
	n := atomic.AddUint64(&h.counter, 1)
	return fmt.Sprintf("id-%d", n)
}

func newTestHarness() *testHarness {
	h := &testHarness{}
	h.clk = clock.NewFixed(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	h.policyRepo = policy.NewFakeRepository()
	h.policyStore = policy.NewStore(h.policyRepo, h.clk, h.newID)

	h.backend = cluster.NewFake()
	h.resolver = namespace.NewResolver(h.backend, h.policyStore)

	h.trackerRepo = tracker.NewFakeRepository()
	bus := messaging.NewFake()
	store := storage.NewFake()

	notifier := monitor.NewNotifier(email.NewFake(), webhook.NewFake())
	evaluator := monitor.NewEvaluator(h.policyStore, notifier, h.clk)

	h.tracker = tracker.New(h.trackerRepo, store, bus, evaluator, h.policyStore, h.clk, h.newID, "test-results")
	h.orchestrator = orchestrator.New(h.backend, h.resolver, h.policyStore, "registry.example.com", nil)
	h.scheduleRepo = schedule.NewFakeRepository()
	reportReader := (*reporting.Reader)(nil)

	h.server = httpapi.NewServer(
		h.tracker, h.orchestrator, h.resolver, h.policyStore, h.scheduleRepo,
		reportReader, evaluator, h.newID, nil, nil,
	)
	return h
}

func (h *testHarness) handler() http.Handler {
	return h.server.Router()
}

func newRequest(method, path string, body io.Reader, claims httpapi.Claims) *http.Request {
	r := httptest.NewRequest(method, path, body)
	if claims.LobID != "" {
		r.Header.Set("X-Lob-Id", claims.LobID)
	}
	if claims.TeamID != "" {
		r.Header.Set("X-Team-Id", claims.TeamID)
	}
	if claims.UserID != "" {
		r.Header.Set("X-User-Id", claims.UserID)
	}
	if claims.Role != "" {
		r.Header.Set("X-Role", claims.Role)
	}
	return r
}
