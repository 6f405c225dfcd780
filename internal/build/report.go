package build

import (
	"fmt"
	"time"

	werrors "github.com/ecspool/weaver/internal/errors"
)

// Report describes one weave run
type Report struct {
	RunID     string        `json:"run_id"`
	Success   bool          `json:"success"`
	DryRun    bool          `json:"dry_run"`
	Scanned   int           `json:"scanned"`
	Woven     int           `json:"woven"`
	Unchanged int           `json:"unchanged"`
	Written   []string      `json:"written,omitempty"`
	Changed   []string      `json:"changed,omitempty"`
	Classes   []ClassReport `json:"classes"`
	Duration  time.Duration `json:"duration"`

	// Warnings are non-fatal problems the run recovered from
	Warnings []string              `json:"warnings,omitempty"`
	Errors   []*werrors.WeaveError `json:"errors,omitempty"`
}

// ClassReport is the per-class outcome of a run
type ClassReport struct {
	Class   string   `json:"class"`
	Path    string   `json:"path"`
	Woven   bool     `json:"woven"`
	Root    bool     `json:"root"`
	Changes []string `json:"changes,omitempty"`
}

// VerifyReport describes a verification pass over an already-woven tree
type VerifyReport struct {
	RunID      string                `json:"run_id"`
	Checked    int                   `json:"checked"`
	Pooled     int                   `json:"pooled"`
	Violations []*werrors.WeaveError `json:"violations,omitempty"`
	Duration   time.Duration         `json:"duration"`
}

// OK reports whether verification found no violations
func (r *VerifyReport) OK() bool {
	return len(r.Violations) == 0
}

func (r *Report) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// fail records err on the report and returns both for the caller
func (r *Report) fail(err error, phase werrors.Phase, start time.Time) (*Report, error) {
	r.Success = false
	r.Errors = werrors.Collect(err, phase)
	r.Duration = time.Since(start)
	return r, err
}
