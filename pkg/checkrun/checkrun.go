// Package checkrun defines the CI check-run data model and batch loaders.
//
// A check run is one execution of a named CI check (build, test suite,
// linter) against a repository. The analytics layers only look at completed
// runs with both timestamps present; loaders therefore classify and filter
// rows up front so downstream grouping never sees partial data.
package checkrun

import (
	"time"
)

// Check suite / run status values as reported by the CI provider.
const (
	StatusCompleted = "COMPLETED"
	StatusSuccess   = "SUCCESS"
	StatusFailure   = "FAILURE"
	StatusError     = "ERROR"
)

// Check run conclusion values.
const (
	ConclusionSuccess = "SUCCESS"
	ConclusionNeutral = "NEUTRAL"
	ConclusionFailure = "FAILURE"
	ConclusionStale   = "STALE"
)

// CheckRun is one execution of a CI check.
type CheckRun struct {
	Repository  string    `json:"repository"`
	Name        string    `json:"name"`
	Status      string    `json:"status"`
	Conclusion  string    `json:"conclusion,omitempty"`
	URL         string    `json:"url,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// Elapsed returns the execution time of the run.
func (cr *CheckRun) Elapsed() time.Duration {
	return cr.CompletedAt.Sub(cr.StartedAt)
}

// Completed reports whether the run reached a terminal state with both
// timestamps present. Only completed runs enter the analytics.
func (cr *CheckRun) Completed() bool {
	switch cr.Status {
	case StatusCompleted, StatusSuccess, StatusFailure:
	default:
		return false
	}

	return !cr.StartedAt.IsZero() && !cr.CompletedAt.IsZero() &&
		!cr.CompletedAt.Before(cr.StartedAt)
}

// Succeeded reports whether the run finished successfully.
func (cr *CheckRun) Succeeded() bool {
	return cr.Status == StatusSuccess || cr.Conclusion == ConclusionSuccess
}

// Skipped reports whether the run was skipped (neutral conclusion).
func (cr *CheckRun) Skipped() bool {
	return cr.Conclusion == ConclusionNeutral
}

// Failed reports whether the run finished with a failure.
func (cr *CheckRun) Failed() bool {
	switch {
	case cr.Status == StatusFailure, cr.Status == StatusError:
		return true
	case cr.Conclusion == ConclusionFailure, cr.Conclusion == ConclusionStale:
		return true
	default:
		return false
	}
}

// FilterCompleted returns the completed runs, preserving order.
func FilterCompleted(runs []CheckRun) []CheckRun {
	completed := make([]CheckRun, 0, len(runs))

	for _, run := range runs {
		if run.Completed() {
			completed = append(completed, run)
		}
	}

	return completed
}
