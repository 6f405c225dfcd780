package weave

import (
	"fmt"

	"github.com/ecspool/weaver/classfile"
	werrors "github.com/ecspool/weaver/internal/errors"
	"github.com/ecspool/weaver/internal/metadata"
)

// ValidateStage rejects poolable classes the other stages cannot rewrite
type ValidateStage struct{}

func (s *ValidateStage) Name() string { return "validate" }

func (s *ValidateStage) Apply(ctx *Context) error {
	meta := ctx.Meta
	const notClass = classfile.AccInterface | classfile.AccAnnotation | classfile.AccEnum | classfile.AccModule
	if meta.AccessFlags&notClass != 0 {
		return werrors.NewMarkerTarget(meta.QualifiedName, meta.Kind()).WithFile(meta.Path)
	}
	if meta.Annotated && meta.SuperclassName == ctx.Convention.PooledBase {
		return werrors.NewMarkerInconsistency(meta.QualifiedName, ctx.Convention.PooledBase).WithFile(meta.Path)
	}
	if meta.QualifiedName == ctx.Convention.PooledBase {
		return werrors.NewMarkerTarget(meta.QualifiedName, "the pooled base itself").WithFile(meta.Path)
	}
	if meta.HasReset && !meta.ResetOverridable() {
		return werrors.NewUnsupportedConstruct(meta.QualifiedName,
			fmt.Sprintf("%s%s is private or static", ctx.Convention.ResetMethod, metadata.ResetDescriptor), nil).WithFile(meta.Path)
	}
	return nil
}

// SuperclassStage re-parents root classes onto the pooled base
type SuperclassStage struct{}

func (s *SuperclassStage) Name() string { return "superclass" }

func (s *SuperclassStage) Apply(ctx *Context) error {
	if !ctx.Meta.Root {
		return nil
	}
	idx, err := ctx.Class.Pool.FindOrAddClass(ctx.Meta.EffectiveSuperclassName)
	if err != nil {
		return err
	}
	ctx.Class.SuperClass = idx
	ctx.Record("superclass %s -> %s", ctx.Meta.SuperclassName, ctx.Meta.EffectiveSuperclassName)
	return nil
}

// MarkerStage removes the pooling marker annotation. A marker interface is
// part of the type hierarchy and stays in place.
type MarkerStage struct{}

func (s *MarkerStage) Name() string { return "marker" }

func (s *MarkerStage) Apply(ctx *Context) error {
	conv := ctx.Convention
	removed, err := ctx.Class.RemoveAnnotation(conv.MarkerAnnotation)
	if err != nil {
		return fmt.Errorf("removing %s: %w", conv.MarkerAnnotation, err)
	}
	if removed > 0 {
		ctx.Record("removed annotation %s", conv.MarkerAnnotation)
	}
	return nil
}
