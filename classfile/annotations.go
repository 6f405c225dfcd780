package classfile

import (
	"encoding/binary"
	"fmt"
)

// Annotation attribute names
const (
	AttrRuntimeVisibleAnnotations   = "RuntimeVisibleAnnotations"
	AttrRuntimeInvisibleAnnotations = "RuntimeInvisibleAnnotations"
)

// Annotation is one entry of an annotations attribute. Raw holds the full
// encoded annotation, including its type index and element-value pairs.
type Annotation struct {
	TypeIndex uint16
	Raw       []byte
}

// ParseAnnotations splits the info of a Runtime(In)VisibleAnnotations
// attribute into its annotations.
func ParseAnnotations(info []byte) ([]Annotation, error) {
	r := &reader{buf: info}
	n := int(r.u2())
	anns := make([]Annotation, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		start := r.pos
		typeIndex := skipAnnotation(r, 0)
		if r.err != nil {
			break
		}
		anns = append(anns, Annotation{TypeIndex: typeIndex, Raw: r.slice(start)})
	}
	if r.err != nil {
		return nil, fmt.Errorf("annotations: %w", r.err)
	}
	if r.pos != len(info) {
		return nil, fmt.Errorf("annotations: %d trailing bytes", len(info)-r.pos)
	}
	return anns, nil
}

// EncodeAnnotations is the inverse of ParseAnnotations
func EncodeAnnotations(anns []Annotation) []byte {
	size := 2
	for _, a := range anns {
		size += len(a.Raw)
	}
	out := binary.BigEndian.AppendUint16(make([]byte, 0, size), uint16(len(anns)))
	for _, a := range anns {
		out = append(out, a.Raw...)
	}
	return out
}

// maxAnnotationDepth bounds nested annotation values
const maxAnnotationDepth = 64

func skipAnnotation(r *reader, depth int) uint16 {
	if depth > maxAnnotationDepth {
		r.err = fmt.Errorf("annotation nesting deeper than %d", maxAnnotationDepth)
		return 0
	}
	typeIndex := r.u2()
	pairs := int(r.u2())
	for i := 0; i < pairs && r.err == nil; i++ {
		r.skip(2) // element_name_index
		skipElementValue(r, depth)
	}
	return typeIndex
}

func skipElementValue(r *reader, depth int) {
	tag := r.u1()
	if r.err != nil {
		return
	}
	switch tag {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z', 's', 'c':
		r.skip(2)
	case 'e':
		r.skip(4)
	case '@':
		skipAnnotation(r, depth+1)
	case '[':
		n := int(r.u2())
		for i := 0; i < n && r.err == nil; i++ {
			skipElementValue(r, depth+1)
		}
	default:
		r.err = fmt.Errorf("unknown element value tag %q at offset %d", tag, r.pos-1)
	}
}

// AnnotationTypes returns the type descriptors of every class-level
// annotation, visible and invisible, in attribute order.
func (cf *ClassFile) AnnotationTypes() ([]string, error) {
	var types []string
	for _, a := range cf.Attributes {
		name, err := cf.AttributeName(a)
		if err != nil {
			return nil, err
		}
		if name != AttrRuntimeVisibleAnnotations && name != AttrRuntimeInvisibleAnnotations {
			continue
		}
		anns, err := ParseAnnotations(a.Info)
		if err != nil {
			return nil, err
		}
		for _, ann := range anns {
			desc, err := cf.Pool.UTF8(ann.TypeIndex)
			if err != nil {
				return nil, fmt.Errorf("annotation type: %w", err)
			}
			types = append(types, desc)
		}
	}
	return types, nil
}

// HasAnnotation reports whether the class carries an annotation of the given
// type descriptor.
func (cf *ClassFile) HasAnnotation(descriptor string) (bool, error) {
	types, err := cf.AnnotationTypes()
	if err != nil {
		return false, err
	}
	for _, t := range types {
		if t == descriptor {
			return true, nil
		}
	}
	return false, nil
}

// RemoveAnnotation drops every class-level annotation of the given type
// descriptor. An annotations attribute left empty is removed. It returns the
// number of annotations removed.
func (cf *ClassFile) RemoveAnnotation(descriptor string) (int, error) {
	removed := 0
	kept := cf.Attributes[:0:0]
	for _, a := range cf.Attributes {
		name, err := cf.AttributeName(a)
		if err != nil {
			return 0, err
		}
		if name != AttrRuntimeVisibleAnnotations && name != AttrRuntimeInvisibleAnnotations {
			kept = append(kept, a)
			continue
		}

		anns, err := ParseAnnotations(a.Info)
		if err != nil {
			return 0, err
		}
		filtered := anns[:0:0]
		for _, ann := range anns {
			desc, err := cf.Pool.UTF8(ann.TypeIndex)
			if err != nil {
				return 0, fmt.Errorf("annotation type: %w", err)
			}
			if desc == descriptor {
				removed++
				continue
			}
			filtered = append(filtered, ann)
		}

		switch {
		case len(filtered) == len(anns):
			kept = append(kept, a)
		case len(filtered) > 0:
			kept = append(kept, Attribute{NameIndex: a.NameIndex, Info: EncodeAnnotations(filtered)})
		}
	}
	if removed > 0 {
		cf.Attributes = kept
	}
	return removed, nil
}
