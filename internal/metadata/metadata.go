// Package metadata builds the read-only view of every class in a weaving run.
//
// Extraction reads each class file once, records its name, superclass,
// fields and marker, then resolves the derived pooling facts for the whole
// set before any class is rewritten. A subclass's rewrite depends on whether
// its superclass is poolable, so nothing downstream may start until the
// Snapshot exists.
package metadata

import (
	"fmt"
	"strings"

	"github.com/ecspool/weaver/classfile"
)

// Default naming convention shared with the ECS runtime
const (
	DefaultMarkerAnnotation = "Lecs/annotations/Pooled;"
	DefaultPooledBase       = "ecs/PooledComponent"
	DefaultResetMethod      = "reset"
)

// ResetDescriptor is the descriptor of the injected reset method
const ResetDescriptor = "()V"

// Convention names the marker, the pooled base and the reset method
type Convention struct {
	// MarkerAnnotation is the annotation type descriptor, e.g. Lecs/annotations/Pooled;
	MarkerAnnotation string `json:"marker_annotation"`
	// MarkerInterface is an optional interface internal name that also marks a class
	MarkerInterface string `json:"marker_interface,omitempty"`
	PooledBase      string `json:"pooled_base"`
	ResetMethod     string `json:"reset_method"`
}

// DefaultConvention returns the runtime's default names
func DefaultConvention() Convention {
	return Convention{
		MarkerAnnotation: DefaultMarkerAnnotation,
		PooledBase:       DefaultPooledBase,
		ResetMethod:      DefaultResetMethod,
	}
}

// Validate checks that every name is well formed
func (c Convention) Validate() error {
	if len(c.MarkerAnnotation) < 3 || !strings.HasPrefix(c.MarkerAnnotation, "L") || !strings.HasSuffix(c.MarkerAnnotation, ";") {
		return fmt.Errorf("marker annotation must be a type descriptor like %s, got %q", DefaultMarkerAnnotation, c.MarkerAnnotation)
	}
	if c.PooledBase == "" {
		return fmt.Errorf("pooled base class is required")
	}
	if strings.ContainsAny(c.PooledBase, ".;[") {
		return fmt.Errorf("pooled base must be an internal name like %s, got %q", DefaultPooledBase, c.PooledBase)
	}
	if strings.ContainsAny(c.MarkerInterface, ".;[") {
		return fmt.Errorf("marker interface must be an internal name, got %q", c.MarkerInterface)
	}
	if c.ResetMethod == "" || strings.ContainsAny(c.ResetMethod, "<>/.;[") {
		return fmt.Errorf("invalid reset method name %q", c.ResetMethod)
	}
	return nil
}

// Field is a declared non-static field
type Field struct {
	Name        string `json:"name"`
	Descriptor  string `json:"descriptor"`
	AccessFlags uint16 `json:"access_flags"`
}

// Resettable reports whether reset() assigns the field
func (f Field) Resettable() bool {
	return f.AccessFlags&(classfile.AccStatic|classfile.AccFinal) == 0
}

// ClassMetadata describes one class under transformation
type ClassMetadata struct {
	QualifiedName  string   `json:"name"`
	SuperclassName string   `json:"superclass"`
	Interfaces     []string `json:"interfaces,omitempty"`
	Fields         []Field  `json:"fields"`
	AccessFlags    uint16   `json:"access_flags"`
	HasReset       bool     `json:"has_reset"`
	ResetAccess    uint16   `json:"reset_access,omitempty"`
	Path           string   `json:"path"`
	Hash           string   `json:"hash"`

	// Annotated is true when the marker annotation itself is present;
	// Marked also covers the marker interface
	Annotated               bool   `json:"annotated"`
	Marked                  bool   `json:"marked"`
	Poolable                bool   `json:"poolable"`
	AlreadyPooled           bool   `json:"already_pooled"`
	Root                    bool   `json:"root"`
	EffectiveSuperclassName string `json:"effective_superclass"`
}

// Kind describes the class declaration kind for diagnostics
func (m *ClassMetadata) Kind() string {
	switch {
	case m.AccessFlags&classfile.AccModule != 0:
		return "a module descriptor"
	case m.AccessFlags&classfile.AccAnnotation != 0:
		return "an annotation type"
	case m.AccessFlags&classfile.AccInterface != 0:
		return "an interface"
	case m.AccessFlags&classfile.AccEnum != 0:
		return "an enum"
	default:
		return "a class"
	}
}

// ResetOverridable reports whether the class declares a reset method the
// runtime's virtual reset call dispatches to
func (m *ClassMetadata) ResetOverridable() bool {
	return m.HasReset && m.ResetAccess&(classfile.AccPrivate|classfile.AccStatic) == 0
}

// NeedsWeaving reports whether the pipeline rewrites the class. Besides
// poolable classes not yet on the pooled base, this covers classes already
// below the pooled base that still lack a usable reset, such as a subclass
// compiled against a base woven by an earlier run, and any class still
// carrying the marker annotation.
func (m *ClassMetadata) NeedsWeaving() bool {
	switch {
	case m.Annotated:
		return true
	case m.AlreadyPooled:
		return !m.ResetOverridable()
	default:
		return m.Poolable
	}
}

// Source is one class file handed to the extractor
type Source struct {
	Path string
	Data []byte
}
