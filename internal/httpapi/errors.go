package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"gopkg.in/yaml.v2"
	"k8s.io/klog/v2"

	"github.com/contoso-cloud/testexec-controlplane/internal/cluster"
	"github.com/contoso-cloud/testexec-controlplane/internal/policy"
	"github.com/contoso-cloud/testexec-controlplane/internal/schedule"
	"github.com/contoso-cloud/testexec-controlplane/internal/tracker"
)

// ErrUnauthenticated marks a request missing the claims a handler needs.
type ErrUnauthenticated string

func (e ErrUnauthenticated) Error() string { return string(e) }

// ErrForbidden marks a request whose claims lack the required role.
type ErrForbidden string

func (e ErrForbidden) Error() string { return string(e) }

type errorBody struct {
	Error string `json:"error"`
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		klog.Warningf("httpapi: encoding response body: %v", err)
	}
}

// writeYAML encodes v as a YAML response body, for the configuration
// endpoints that round-trip the admin/user policy documents verbatim.
func writeYAML(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/x-yaml")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := yaml.NewEncoder(w).Encode(v); err != nil {
		klog.Warningf("httpapi: encoding yaml response body: %v", err)
	}
}

// readBody drains r.Body for handlers that hand the raw bytes to a YAML
// unmarshaler downstream rather than decoding here.
func readBody(r *http.Request) ([]byte, error) {
	return io.ReadAll(r.Body)
}

// writeError maps err to the HTTP status the taxonomy in §7 assigns it,
// via a single errors.As/errors.Is switch — never by matching error text.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}

	status, msg := classify(err)
	if status >= 500 {
		klog.Errorf("httpapi: %s %s: %v", r.Method, r.URL.Path, err)
	}
	writeJSON(w, status, errorBody{Error: msg})
}

func classify(err error) (int, string) {
	var invalid policy.ErrInvalidRequest
	if errors.As(err, &invalid) {
		return http.StatusBadRequest, invalid.Error()
	}

	var unauth ErrUnauthenticated
	if errors.As(err, &unauth) {
		return http.StatusUnauthorized, unauth.Error()
	}

	var forbidden ErrForbidden
	if errors.As(err, &forbidden) {
		return http.StatusForbidden, forbidden.Error()
	}

	var quota policy.ErrQuotaExceeded
	if errors.As(err, &quota) {
		return http.StatusTooManyRequests, quota.Error()
	}

	if errors.Is(err, tracker.ErrJobNotFound) {
		return http.StatusNotFound, "job not found"
	}
	if errors.Is(err, schedule.ErrScheduleNotFound) {
		return http.StatusNotFound, "schedule not found"
	}
	if errors.Is(err, policy.ErrConfigNotFound) {
		return http.StatusNotFound, "configuration not found"
	}

	var invalidSchedule schedule.ErrInvalidSchedule
	if errors.As(err, &invalidSchedule) {
		return http.StatusBadRequest, invalidSchedule.Error()
	}

	var clusterErr *cluster.Error
	if errors.As(err, &clusterErr) {
		switch clusterErr.Kind {
		case cluster.KindNotFound:
			return http.StatusNotFound, "resource not found"
		case cluster.KindUnavailable:
			return http.StatusServiceUnavailable, "cluster unavailable"
		default:
			return http.StatusInternalServerError, "cluster error"
		}
	}

	var artifactTooLarge tracker.ErrArtifactTooLarge
	if errors.As(err, &artifactTooLarge) {
		return http.StatusBadRequest, artifactTooLarge.Error()
	}

	return http.StatusInternalServerError, "internal error"
}
