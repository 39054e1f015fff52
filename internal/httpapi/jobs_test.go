package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contoso-cloud/testexec-controlplane/internal/httpapi"
)

func TestHandleCreateJob_HappyPath(t *testing.T) {
	h := newTestHarness()
	claims := httpapi.Claims{LobID: "Acme", TeamID: "platform", UserID: "u1"}

	body, _ := json.Marshal(map[string]string{"repoUrl": "https://example.com/repo.git", "testImageType": "go"})
	req := newRequest(http.MethodPost, "/jobs", bytes.NewReader(body), claims)
	rec := httptest.NewRecorder()
	h.handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		JobID   string `json:"jobId"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.JobID)
	assert.Contains(t, resp.Message, "test-job-")

	job, err := h.tracker.GetJob(req.Context(), resp.JobID)
	require.NoError(t, err)
	assert.NotEmpty(t, job.ClusterJobName)
	assert.Contains(t, resp.Message, job.ClusterJobName)
}

func TestHandleCreateJob_MissingClaims(t *testing.T) {
	h := newTestHarness()
	body, _ := json.Marshal(map[string]string{"repoUrl": "x", "testImageType": "go"})
	req := newRequest(http.MethodPost, "/jobs", bytes.NewReader(body), httpapi.Claims{})
	rec := httptest.NewRecorder()
	h.handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleCreateJob_InvalidBody(t *testing.T) {
	h := newTestHarness()
	claims := httpapi.Claims{LobID: "Acme", TeamID: "platform", UserID: "u1"}
	req := newRequest(http.MethodPost, "/jobs", bytes.NewReader([]byte(`{"repoUrl":""}`)), claims)
	rec := httptest.NewRecorder()
	h.handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCreateJob_QuotaExceeded(t *testing.T) {
	h := newTestHarness()
	claims := httpapi.Claims{LobID: "Acme", TeamID: "platform", UserID: "u1"}

	ctx := context.Background()
	admin, err := h.policyStore.GetAdminConfiguration(ctx, true)
	require.NoError(t, err)
	admin.ResourceManagement.MaxConcurrentJobsPerTeam = 1
	require.NoError(t, h.policyStore.SaveAdminConfiguration(ctx, admin))

	body, _ := json.Marshal(map[string]string{"repoUrl": "https://example.com/repo.git", "testImageType": "go"})

	req1 := newRequest(http.MethodPost, "/jobs", bytes.NewReader(body), claims)
	rec1 := httptest.NewRecorder()
	h.handler().ServeHTTP(rec1, req1)
	require.Equal(t, http.StatusCreated, rec1.Code)

	req2 := newRequest(http.MethodPost, "/jobs", bytes.NewReader(body), claims)
	rec2 := httptest.NewRecorder()
	h.handler().ServeHTTP(rec2, req2)
	assert.Equal(t, http.StatusTooManyRequests, rec2.Code)
}

func TestHandleGetJob_ConvergesOnCompletion(t *testing.T) {
	h := newTestHarness()
	claims := httpapi.Claims{LobID: "Acme", TeamID: "platform", UserID: "u1"}

	body, _ := json.Marshal(map[string]string{"repoUrl": "https://example.com/repo.git", "testImageType": "go"})
	createReq := newRequest(http.MethodPost, "/jobs", bytes.NewReader(body), claims)
	createRec := httptest.NewRecorder()
	h.handler().ServeHTTP(createRec, createReq)
	require.Equal(t, http.StatusCreated, createRec.Code)

	var created struct {
		JobID string `json:"jobId"`
	}
	require.NoError(t, json.Unmarshal(createRec.Body.Bytes(), &created))

	job, err := h.tracker.GetJob(createReq.Context(), created.JobID)
	require.NoError(t, err)
	ns := h.resolver.GetNamespaceForLob(claims.LobID)
	h.backend.SetJobOutcome(ns, job.ClusterJobName, 1, 0)
	h.backend.SetJobLogs(ns, job.ClusterJobName, `<testsuite><testcase name="T" status="Passed" time="1.0"/></testsuite>`)

	getReq := newRequest(http.MethodGet, "/jobs/"+created.JobID, nil, claims)
	getRec := httptest.NewRecorder()
	h.handler().ServeHTTP(getRec, getReq)
	require.Equal(t, http.StatusOK, getRec.Code)

	var status struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(getRec.Body.Bytes(), &status))
	assert.Equal(t, "Succeeded", status.Status)
}

func TestHandleGetJob_WrongLobIsNotFound(t *testing.T) {
	h := newTestHarness()
	claims := httpapi.Claims{LobID: "Acme", TeamID: "platform", UserID: "u1"}
	body, _ := json.Marshal(map[string]string{"repoUrl": "https://example.com/repo.git", "testImageType": "go"})
	createReq := newRequest(http.MethodPost, "/jobs", bytes.NewReader(body), claims)
	createRec := httptest.NewRecorder()
	h.handler().ServeHTTP(createRec, createReq)
	var created struct {
		JobID string `json:"jobId"`
	}
	require.NoError(t, json.Unmarshal(createRec.Body.Bytes(), &created))

	other := httpapi.Claims{LobID: "Globex", TeamID: "platform", UserID: "u2"}
	getReq := newRequest(http.MethodGet, "/jobs/"+created.JobID, nil, other)
	getRec := httptest.NewRecorder()
	h.handler().ServeHTTP(getRec, getReq)
	assert.Equal(t, http.StatusNotFound, getRec.Code)
}
