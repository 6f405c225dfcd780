package build

import (
	"fmt"
	"runtime"

	"github.com/ecspool/weaver/internal/metadata"
)

// Options configures a weaving run
type Options struct {
	// InputDir is scanned recursively for class files
	InputDir string
	// OutputDir mirrors the input tree; empty means rewrite in place
	OutputDir  string
	Convention metadata.Convention
	Jobs       int
	DryRun     bool
	// StateDir holds .weaver/state.cbor; defaults to InputDir
	StateDir string
	// Version is recorded in run state
	Version string
	// ProgressFunc is called from worker goroutines and must be safe for
	// concurrent use
	ProgressFunc func(current, total int, message string)
}

// DefaultOptions returns sensible defaults
func DefaultOptions() *Options {
	return &Options{
		InputDir:   ".",
		Convention: metadata.DefaultConvention(),
		Jobs:       runtime.NumCPU(),
		Version:    "dev",
	}
}

func (o *Options) validate() error {
	if o.InputDir == "" {
		return fmt.Errorf("input directory is required")
	}
	if o.Jobs <= 0 {
		o.Jobs = runtime.NumCPU()
	}
	if o.StateDir == "" {
		o.StateDir = o.InputDir
	}
	return o.Convention.Validate()
}

func (o *Options) progress(current, total int, message string) {
	if o.ProgressFunc != nil {
		o.ProgressFunc(current, total, message)
	}
}
