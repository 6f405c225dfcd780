package weave

import (
	"fmt"

	"github.com/ecspool/weaver/classfile"
	werrors "github.com/ecspool/weaver/internal/errors"
	"github.com/ecspool/weaver/internal/metadata"
)

// Context is the transformation session for one class. It is owned by a
// single pipeline run and never shared.
type Context struct {
	Meta       *metadata.ClassMetadata
	Snapshot   *metadata.Snapshot
	Convention metadata.Convention
	Class      *classfile.ClassFile
	Changes    []string
}

// NewContext parses data into a fresh class structure for meta
func NewContext(meta *metadata.ClassMetadata, snapshot *metadata.Snapshot, data []byte) (*Context, error) {
	cf, err := classfile.Parse(data)
	if err != nil {
		return nil, werrors.NewMalformedClass(meta.Path, err)
	}
	name, err := cf.Name()
	if err != nil {
		return nil, werrors.NewMalformedClass(meta.Path, err)
	}
	if name != meta.QualifiedName {
		return nil, werrors.NewMalformedClass(meta.Path,
			fmt.Errorf("class %s does not match extracted metadata for %s", name, meta.QualifiedName))
	}
	return &Context{
		Meta:       meta,
		Snapshot:   snapshot,
		Convention: snapshot.Convention(),
		Class:      cf,
	}, nil
}

// Record notes a change made by a stage
func (c *Context) Record(format string, args ...interface{}) {
	c.Changes = append(c.Changes, fmt.Sprintf(format, args...))
}
