package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"k8s.io/klog/v2"

	"github.com/contoso-cloud/testexec-controlplane/internal/cluster"
	"github.com/contoso-cloud/testexec-controlplane/internal/policy"
	"github.com/contoso-cloud/testexec-controlplane/internal/tracker"
)

type createJobRequest struct {
	RepoURL       string `json:"repoUrl"`
	TestImageType string `json:"testImageType"`
}

type createJobResponse struct {
	JobID   string `json:"jobId"`
	Message string `json:"message"`
}

// handleCreateJob implements POST /jobs (§6 scenario 1): it persists the
// Running row, submits the cluster workload, and attaches the cluster
// job name to the row so a later poll can resolve it. The two writes are
// not transactional across services — if the cluster submission fails,
// the row is marked Failed rather than left orphaned Running.
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	claims, err := requireLobTeam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, policy.ErrInvalidRequest("malformed request body"))
		return
	}
	if req.RepoURL == "" || req.TestImageType == "" {
		writeError(w, r, policy.ErrInvalidRequest("repoUrl and testImageType are required"))
		return
	}

	ctx := r.Context()
	admin, err := s.policyStore.GetAdminConfiguration(ctx, true)
	if err != nil {
		writeError(w, r, err)
		return
	}

	runningInLob, err := s.tracker.CountRunningJobsForLob(ctx, claims.LobID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	runningInTeam, err := s.tracker.CountRunningJobs(ctx, claims.LobID, claims.TeamID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := policy.CheckConcurrencyQuota(admin, claims.LobID, claims.TeamID, runningInLob, runningInTeam); err != nil {
		writeError(w, r, err)
		return
	}

	jobID, err := s.tracker.CreateJob(ctx, claims.LobID, claims.TeamID, req.RepoURL, req.TestImageType, claims.UserID, nil)
	if err != nil {
		writeError(w, r, err)
		return
	}

	jobName, _, err := s.orchestrator.CreateTestJob(ctx, req.RepoURL, req.TestImageType, claims.LobID)
	if err != nil {
		if updateErr := s.tracker.UpdateJobStatus(ctx, jobID, tracker.StatusFailed); updateErr != nil {
			klog.Warningf("httpapi: job %s: marking Failed after orchestrator error: %v", jobID, updateErr)
		}
		writeError(w, r, err)
		return
	}

	if err := s.tracker.AttachClusterJob(ctx, jobID, jobName); err != nil {
		klog.Warningf("httpapi: job %s: attaching cluster job name %s: %v", jobID, jobName, err)
	}

	writeJSON(w, http.StatusCreated, createJobResponse{
		JobID:   jobID,
		Message: fmt.Sprintf("Test job created and running: %s", jobName),
	})
}

type jobStatusResponse struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
}

// handleGetJob implements GET /jobs/{jobId}. If the job is still Running
// it polls the cluster once; a completed workload is converged into a
// terminal TestJob row before the status is returned — matching §1's
// "the HTTP layer also polls ... upon completion ... invokes Complete"
// data flow.
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	claims, err := requireLob(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	jobID := mux.Vars(r)["jobId"]
	job, err := s.pollAndConverge(r.Context(), jobID, claims.LobID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, jobStatusResponse{JobID: job.ID, Status: string(job.Status)})
}

type testResultView struct {
	TestName        string  `json:"testName"`
	Status          string  `json:"status"`
	DurationSeconds float64 `json:"durationSeconds"`
	ErrorMessage    string  `json:"errorMessage,omitempty"`
}

type jobResultsResponse struct {
	JobID   string            `json:"jobId"`
	Status  string            `json:"status"`
	Results []testResultView `json:"results,omitempty"`
}

// handleGetJobResults implements GET /jobs/{jobId}/results: same
// converge-on-poll behavior as handleGetJob, plus the parsed per-test
// results once the job has reached a terminal state.
func (s *Server) handleGetJobResults(w http.ResponseWriter, r *http.Request) {
	claims, err := requireLob(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	jobID := mux.Vars(r)["jobId"]
	job, err := s.pollAndConverge(r.Context(), jobID, claims.LobID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := jobResultsResponse{JobID: job.ID, Status: string(job.Status)}
	if job.Status != tracker.StatusRunning {
		results, err := s.tracker.ListResultsForJob(r.Context(), job.ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		for _, res := range results {
			resp.Results = append(resp.Results, testResultView{
				TestName: res.TestName, Status: string(res.Status),
				DurationSeconds: res.DurationSeconds, ErrorMessage: res.ErrorMessage,
			})
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type cleanupResponse struct {
	JobID   string `json:"jobId"`
	Message string `json:"message"`
}

// handleCleanupJob implements POST /jobs/{jobId}/cleanup: it deletes the
// cluster workload regardless of the job's tracked status. A not_found
// from the cluster is an idempotent success (§7).
func (s *Server) handleCleanupJob(w http.ResponseWriter, r *http.Request) {
	claims, err := requireLob(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	jobID := mux.Vars(r)["jobId"]
	job, err := s.tracker.GetJob(r.Context(), jobID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if job.LobID != claims.LobID {
		writeError(w, r, tracker.ErrJobNotFound)
		return
	}

	if job.ClusterJobName != "" {
		if err := s.orchestrator.CleanupTestJob(r.Context(), job.ClusterJobName, job.LobID); err != nil && !cluster.IsNotFound(err) {
			writeError(w, r, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, cleanupResponse{JobID: job.ID, Message: "cleanup complete"})
}

// pollAndConverge loads jobID, verifies it belongs to lobID, and if it
// is still Running, checks the cluster for completion and converges it
// into a terminal state before returning.
func (s *Server) pollAndConverge(ctx context.Context, jobID, lobID string) (tracker.TestJob, error) {
	job, err := s.tracker.GetJob(ctx, jobID)
	if err != nil {
		return tracker.TestJob{}, err
	}
	if job.LobID != lobID {
		return tracker.TestJob{}, tracker.ErrJobNotFound
	}
	if job.Status != tracker.StatusRunning || job.ClusterJobName == "" {
		return job, nil
	}

	done, err := s.orchestrator.IsJobCompleted(ctx, job.ClusterJobName, job.LobID)
	if err != nil {
		klog.Warningf("httpapi: job %s: polling cluster completion: %v", job.ID, err)
		return job, nil
	}
	if !done {
		return job, nil
	}

	phase, err := s.orchestrator.GetJobPhase(ctx, job.ClusterJobName, job.LobID)
	if err != nil {
		klog.Warningf("httpapi: job %s: reading cluster job phase: %v", job.ID, err)
		return job, nil
	}
	status := tracker.StatusSucceeded
	if phase.Failed > 0 {
		status = tracker.StatusFailed
	}

	logs, err := s.orchestrator.GetTestResults(ctx, job.ClusterJobName, job.LobID)
	if err != nil {
		klog.Warningf("httpapi: job %s: reading cluster logs: %v", job.ID, err)
		logs = ""
	}

	if err := s.tracker.CompleteJob(ctx, job.ID, status, logs, nil); err != nil {
		return tracker.TestJob{}, err
	}
	return s.tracker.GetJob(ctx, job.ID)
}
