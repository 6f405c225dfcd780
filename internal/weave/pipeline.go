// Package weave rewrites poolable classes onto the pooled base.
//
// A Pipeline runs an ordered list of stages over one class at a time. Each
// stage performs a single rewrite on the parsed class held by a Context.
// Classes that are not poolable never reach the stages: their input bytes
// are returned as-is.
package weave

import (
	"fmt"

	"go.uber.org/zap"

	werrors "github.com/ecspool/weaver/internal/errors"
	"github.com/ecspool/weaver/internal/metadata"
)

// Stage is one rewrite step
type Stage interface {
	Name() string
	Apply(ctx *Context) error
}

// DefaultStages returns the stages in the order they must run
func DefaultStages() []Stage {
	return []Stage{
		&ValidateStage{},
		&SuperclassStage{},
		&ConstructorStage{},
		&ResetStage{},
		&MarkerStage{},
	}
}

// Result is the outcome of weaving one class
type Result struct {
	Path    string   `json:"path"`
	Class   string   `json:"class"`
	Data    []byte   `json:"-"`
	Woven   bool     `json:"woven"`
	Changes []string `json:"changes,omitempty"`
}

// Pipeline applies stages to classes of one snapshot. It holds no per-class
// state and may be shared between goroutines.
type Pipeline struct {
	snapshot *metadata.Snapshot
	stages   []Stage
	logger   *zap.Logger
}

// NewPipeline creates a pipeline with the default stages
func NewPipeline(snapshot *metadata.Snapshot, logger *zap.Logger) *Pipeline {
	return NewPipelineWithStages(snapshot, logger, DefaultStages()...)
}

// NewPipelineWithStages creates a pipeline running the given stages in order
func NewPipelineWithStages(snapshot *metadata.Snapshot, logger *zap.Logger, stages ...Stage) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{snapshot: snapshot, stages: stages, logger: logger}
}

// Stages returns the stage names in execution order
func (p *Pipeline) Stages() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name()
	}
	return names
}

// Weave transforms the class described by meta whose bytes are data. The
// returned Data aliases data when the class is not poolable. A stage failure
// fails the whole class and no bytes are returned.
func (p *Pipeline) Weave(meta *metadata.ClassMetadata, data []byte) (*Result, error) {
	res := &Result{Path: meta.Path, Class: meta.QualifiedName, Data: data}
	if !meta.NeedsWeaving() {
		return res, nil
	}

	ctx, err := NewContext(meta, p.snapshot, data)
	if err != nil {
		return nil, err
	}

	for _, stage := range p.stages {
		before := len(ctx.Changes)
		if err := stage.Apply(ctx); err != nil {
			if _, ok := werrors.As(err); ok {
				return nil, err
			}
			return nil, werrors.NewUnsupportedConstruct(meta.QualifiedName, stage.Name(), err).WithFile(meta.Path)
		}
		for _, change := range ctx.Changes[before:] {
			p.logger.Debug("applied stage",
				zap.String("class", meta.QualifiedName),
				zap.String("stage", stage.Name()),
				zap.String("change", change))
		}
	}

	out, err := ctx.Class.Bytes()
	if err != nil {
		return nil, werrors.NewUnsupportedConstruct(meta.QualifiedName, "encoding woven class", err).WithFile(meta.Path)
	}

	res.Data = out
	res.Woven = true
	res.Changes = ctx.Changes
	return res, nil
}

// Summary renders the change list on one line
func (r *Result) Summary() string {
	if !r.Woven {
		return "unchanged"
	}
	return fmt.Sprintf("%d changes", len(r.Changes))
}
