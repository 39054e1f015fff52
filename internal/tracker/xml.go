package tracker

import (
	"encoding/xml"
	"strconv"
	"strings"
)

// rawReport mirrors the flat <tests><test/></tests> shape the runner
// image emits. encoding/xml is stdlib-only here deliberately: this
// corpus has no XML library that improves on decoding a shape this flat
// and there's no schema validation need beyond what Go's decoder gives
// for free (see DESIGN.md).
type rawReport struct {
	Tests []rawTest `xml:"test"`
}

type rawTest struct {
	Name     string     `xml:"name,attr"`
	Result   string     `xml:"result,attr"`
	Duration string     `xml:"duration,attr"`
	Failure  *rawFailure `xml:"failure"`
}

type rawFailure struct {
	Message    string `xml:"message"`
	StackTrace string `xml:"stack-trace"`
}

// ParseTestResults parses reportXML into TestResult rows. A malformed
// document is not fatal: it returns an empty slice and the parse error,
// and callers continue with zero counts rather than aborting the job
// completion (§4.5 step 1).
func ParseTestResults(reportXML string) ([]TestResult, error) {
	var report rawReport
	if err := xml.Unmarshal([]byte(reportXML), &report); err != nil {
		return nil, err
	}

	results := make([]TestResult, 0, len(report.Tests))
	for _, t := range report.Tests {
		duration, err := strconv.ParseFloat(strings.TrimSpace(t.Duration), 64)
		if err != nil {
			duration = 0
		}

		result := TestResult{
			TestName:        t.Name,
			Status:          normalizeResult(t.Result),
			DurationSeconds: duration,
		}
		if t.Failure != nil {
			result.ErrorMessage = t.Failure.Message
			result.StackTrace = t.Failure.StackTrace
		}
		results = append(results, result)
	}
	return results, nil
}

func normalizeResult(raw string) ResultStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pass", "passed":
		return ResultPassed
	case "fail", "failed":
		return ResultFailed
	case "skip", "skipped", "ignored":
		return ResultSkipped
	default:
		return ResultUnknown
	}
}

// Counts tallies a parsed result set by status.
func Counts(results []TestResult) (passed, failed, skipped int) {
	for _, r := range results {
		switch r.Status {
		case ResultPassed:
			passed++
		case ResultFailed:
			failed++
		case ResultSkipped:
			skipped++
		}
	}
	return
}
