package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/contoso-cloud/testexec-controlplane/internal/policy"
	"github.com/contoso-cloud/testexec-controlplane/internal/reporting"
)

func (s *Server) handleGetAdminConfiguration(w http.ResponseWriter, r *http.Request) {
	if _, err := requireAdmin(r); err != nil {
		writeError(w, r, err)
		return
	}
	cfg, err := s.policyStore.GetAdminConfiguration(r.Context(), true)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeYAML(w, http.StatusOK, cfg)
}

func (s *Server) handlePutAdminConfiguration(w http.ResponseWriter, r *http.Request) {
	if _, err := requireAdmin(r); err != nil {
		writeError(w, r, err)
		return
	}
	body, err := readBody(r)
	if err != nil {
		writeError(w, r, policy.ErrInvalidRequest("could not read request body"))
		return
	}
	var cfg policy.AdminConfiguration
	if err := yaml.Unmarshal(body, &cfg); err != nil {
		writeError(w, r, policy.ErrInvalidRequest("invalid configuration yaml: "+err.Error()))
		return
	}
	if err := s.policyStore.SaveAdminConfiguration(r.Context(), cfg); err != nil {
		writeError(w, r, err)
		return
	}
	writeYAML(w, http.StatusOK, cfg)
}

func parseReportFilter(r *http.Request) reporting.Filter {
	q := r.URL.Query()
	f := reporting.Filter{
		LobID:  q.Get("lobId"),
		TeamID: q.Get("teamId"),
		JobID:  q.Get("jobId"),
		Status: q.Get("status"),
	}
	if start := q.Get("start"); start != "" {
		if t, err := time.Parse(time.RFC3339, start); err == nil {
			f.Start = &t
		}
	}
	if end := q.Get("end"); end != "" {
		if t, err := time.Parse(time.RFC3339, end); err == nil {
			f.End = &t
		}
	}
	return f
}

func parsePaging(r *http.Request) (page, pageSize int) {
	q := r.URL.Query()
	page, _ = strconv.Atoi(q.Get("page"))
	pageSize, _ = strconv.Atoi(q.Get("pageSize"))
	return page, pageSize
}

type jobsPageResponse struct {
	Jobs  []reporting.JobListItem `json:"jobs"`
	Total int                     `json:"total"`
}

// handleAdminJobs implements GET /admin/jobs (§4.8): a paged, filtered
// view across every tenant, admin-only.
func (s *Server) handleAdminJobs(w http.ResponseWriter, r *http.Request) {
	if _, err := requireAdmin(r); err != nil {
		writeError(w, r, err)
		return
	}
	f := parseReportFilter(r)
	page, pageSize := parsePaging(r)

	jobs, err := s.reportReader.GetJobs(r.Context(), f, page, pageSize)
	if err != nil {
		writeError(w, r, err)
		return
	}
	total, err := s.reportReader.GetJobsCount(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jobsPageResponse{Jobs: jobs, Total: total})
}

func (s *Server) handleAdminJobsSummary(w http.ResponseWriter, r *http.Request) {
	if _, err := requireAdmin(r); err != nil {
		writeError(w, r, err)
		return
	}
	summary, err := s.reportReader.GetExecutionSummary(r.Context(), parseReportFilter(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleAdminLobsSummary(w http.ResponseWriter, r *http.Request) {
	if _, err := requireAdmin(r); err != nil {
		writeError(w, r, err)
		return
	}
	summaries, err := s.reportReader.GetLobExecutionSummary(r.Context(), parseReportFilter(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleAdminFailingTests(w http.ResponseWriter, r *http.Request) {
	if _, err := requireAdmin(r); err != nil {
		writeError(w, r, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	tests, err := s.reportReader.GetTopFailingTests(r.Context(), parseReportFilter(r), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tests)
}

type testAlertRequest struct {
	Title    string `json:"title"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

// handleAdminAlertsTest implements POST /admin/alerts/test: an explicit
// admin-triggered notification dispatch, bypassing rule matching.
func (s *Server) handleAdminAlertsTest(w http.ResponseWriter, r *http.Request) {
	if _, err := requireAdmin(r); err != nil {
		writeError(w, r, err)
		return
	}
	var req testAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, policy.ErrInvalidRequest("malformed request body"))
		return
	}
	if req.Title == "" || req.Message == "" {
		writeError(w, r, policy.ErrInvalidRequest("title and message are required"))
		return
	}
	severity := policy.AlertSeverity(req.Severity)
	switch severity {
	case policy.SeverityInformation, policy.SeverityWarning, policy.SeverityCritical:
	default:
		severity = policy.SeverityInformation
	}

	if err := s.evaluator.SendTestNotification(r.Context(), req.Title, req.Message, severity); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}
