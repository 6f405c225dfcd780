package output

import (
	"bytes"
	"fmt"

	"github.com/ecspool/weaver/classfile"
	werrors "github.com/ecspool/weaver/internal/errors"
	"github.com/ecspool/weaver/internal/metadata"
	"github.com/ecspool/weaver/internal/weave"
)

// Validate re-parses a woven class and checks that it has the expected
// superclass, no marker annotation and a reset method. Untouched results must
// still carry the original bytes.
func Validate(res *weave.Result, meta *metadata.ClassMetadata, conv metadata.Convention, original []byte) error {
	if !res.Woven {
		if !bytes.Equal(res.Data, original) {
			return werrors.NewValidationFailed(meta.QualifiedName, "unwoven class bytes differ from input").WithFile(meta.Path)
		}
		return nil
	}

	cf, err := classfile.Parse(res.Data)
	if err != nil {
		return werrors.NewValidationFailed(meta.QualifiedName, fmt.Sprintf("woven class does not parse: %v", err)).WithFile(meta.Path)
	}
	return Check(cf, meta.QualifiedName, meta.EffectiveSuperclassName, conv)
}

// Check verifies the woven-class properties on a parsed class
func Check(cf *classfile.ClassFile, class, wantSuper string, conv metadata.Convention) error {
	name, err := cf.Name()
	if err != nil {
		return werrors.NewValidationFailed(class, err.Error())
	}
	if name != class {
		return werrors.NewValidationFailed(class, fmt.Sprintf("woven class is named %s", name))
	}

	super, err := cf.SuperName()
	if err != nil {
		return werrors.NewValidationFailed(class, err.Error())
	}
	if super != wantSuper {
		return werrors.NewValidationFailed(class, fmt.Sprintf("superclass is %s, expected %s", super, wantSuper))
	}

	marked, err := cf.HasAnnotation(conv.MarkerAnnotation)
	if err != nil {
		return werrors.NewValidationFailed(class, err.Error())
	}
	if marked {
		return werrors.NewMarkerObservable(class, conv.MarkerAnnotation)
	}

	if cf.FindMethod(conv.ResetMethod, metadata.ResetDescriptor) < 0 {
		return werrors.NewValidationFailed(class, fmt.Sprintf("missing %s%s", conv.ResetMethod, metadata.ResetDescriptor))
	}
	return nil
}
