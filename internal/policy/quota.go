package policy

import "fmt"

// ErrQuotaExceeded marks a request rejected because accepting it would
// push a lob or team over its configured concurrency cap. Callers map
// this to HTTP 429.
type ErrQuotaExceeded string

func (e ErrQuotaExceeded) Error() string { return string(e) }

// CheckConcurrencyQuota enforces §5's per-lob/per-team concurrent job
// caps. The source system never checked these; callers are expected to
// ask tracker.CountRunningJobs for the current counts and pass them in
// here before creating a new job.
func CheckConcurrencyQuota(admin AdminConfiguration, lobID, teamID string, runningInLob, runningInTeam int) error {
	maxLob := admin.ResourceManagement.MaxConcurrentJobsPerLob
	if maxLob > 0 && runningInLob >= maxLob {
		return ErrQuotaExceeded(fmt.Sprintf(
			"lob %q has reached its concurrent job limit (%d)", lobID, maxLob))
	}
	maxTeam := admin.ResourceManagement.MaxConcurrentJobsPerTeam
	if maxTeam > 0 && runningInTeam >= maxTeam {
		return ErrQuotaExceeded(fmt.Sprintf(
			"team %q has reached its concurrent job limit (%d)", teamID, maxTeam))
	}
	return nil
}
