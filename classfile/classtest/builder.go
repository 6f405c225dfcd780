// Package classtest synthesizes small class files for tests.
package classtest

import (
	"encoding/binary"
	"fmt"

	"github.com/ecspool/weaver/classfile"
)

// Java 8 class file version
const (
	MajorVersion = 52
	MinorVersion = 0
)

type field struct {
	access uint16
	name   string
	desc   string
}

type annotation struct {
	desc      string
	visible   bool
	elemName  string
	elemValue string
}

type method struct {
	access    uint16
	name      string
	desc      string
	maxStack  uint16
	maxLocals uint16
	body      func(p *classfile.ConstantPool) ([]byte, error)
}

// Builder assembles a class file with a default constructor
type Builder struct {
	access      uint16
	name        string
	super       string
	interfaces  []string
	fields      []field
	annotations []annotation
	methods     []method
	noCtor      bool
	allocates   string
}

// New starts a public class extending java/lang/Object
func New(name string) *Builder {
	return &Builder{
		access: classfile.AccPublic | classfile.AccSuper,
		name:   name,
		super:  classfile.ObjectClass,
	}
}

// Extends sets the direct superclass
func (b *Builder) Extends(super string) *Builder {
	b.super = super
	return b
}

// Implements adds direct superinterfaces
func (b *Builder) Implements(names ...string) *Builder {
	b.interfaces = append(b.interfaces, names...)
	return b
}

// Access replaces the class access flags
func (b *Builder) Access(flags uint16) *Builder {
	b.access = flags
	return b
}

// Field declares a public instance field
func (b *Builder) Field(name, desc string) *Builder {
	return b.FieldWithAccess(classfile.AccPublic, name, desc)
}

// FieldWithAccess declares a field with explicit access flags
func (b *Builder) FieldWithAccess(access uint16, name, desc string) *Builder {
	b.fields = append(b.fields, field{access: access, name: name, desc: desc})
	return b
}

// Annotate adds a runtime-visible class annotation
func (b *Builder) Annotate(desc string) *Builder {
	b.annotations = append(b.annotations, annotation{desc: desc, visible: true})
	return b
}

// AnnotateInvisible adds a class-file-retention class annotation
func (b *Builder) AnnotateInvisible(desc string) *Builder {
	b.annotations = append(b.annotations, annotation{desc: desc})
	return b
}

// AnnotateWithString adds a runtime-visible annotation carrying one string
// element.
func (b *Builder) AnnotateWithString(desc, elemName, value string) *Builder {
	b.annotations = append(b.annotations, annotation{desc: desc, visible: true, elemName: elemName, elemValue: value})
	return b
}

// WithoutConstructor omits the default constructor
func (b *Builder) WithoutConstructor() *Builder {
	b.noCtor = true
	return b
}

// ConstructorAllocates makes the constructor also instantiate class after
// the super call: new, dup, invokespecial <init>, pop.
func (b *Builder) ConstructorAllocates(class string) *Builder {
	b.allocates = class
	return b
}

// VoidMethod declares a method with an empty body (a single return)
func (b *Builder) VoidMethod(access uint16, name string) *Builder {
	b.methods = append(b.methods, method{
		access:    access,
		name:      name,
		desc:      "()V",
		maxStack:  0,
		maxLocals: 1,
		body: func(*classfile.ConstantPool) ([]byte, error) {
			return []byte{classfile.OpReturn}, nil
		},
	})
	return b
}

// Build assembles the class file
func (b *Builder) Build() (*classfile.ClassFile, error) {
	p := classfile.NewConstantPool()
	cf := &classfile.ClassFile{
		MinorVersion: MinorVersion,
		MajorVersion: MajorVersion,
		Pool:         p,
		AccessFlags:  b.access,
	}

	var err error
	if cf.ThisClass, err = p.FindOrAddClass(b.name); err != nil {
		return nil, err
	}
	if b.super != "" {
		if cf.SuperClass, err = p.FindOrAddClass(b.super); err != nil {
			return nil, err
		}
	}
	for _, iface := range b.interfaces {
		idx, err := p.FindOrAddClass(iface)
		if err != nil {
			return nil, err
		}
		cf.Interfaces = append(cf.Interfaces, idx)
	}

	for _, f := range b.fields {
		ni, err := p.FindOrAddUTF8(f.name)
		if err != nil {
			return nil, err
		}
		di, err := p.FindOrAddUTF8(f.desc)
		if err != nil {
			return nil, err
		}
		cf.Fields = append(cf.Fields, classfile.Member{AccessFlags: f.access, NameIndex: ni, DescriptorIndex: di})
	}

	methods := b.methods
	if !b.noCtor && b.super != "" {
		methods = append([]method{b.constructor()}, methods...)
	}
	for _, m := range methods {
		member, err := buildMethod(p, m)
		if err != nil {
			return nil, fmt.Errorf("method %s: %w", m.name, err)
		}
		cf.Methods = append(cf.Methods, member)
	}

	for _, visible := range []bool{true, false} {
		attr, ok, err := b.annotationAttribute(p, visible)
		if err != nil {
			return nil, err
		}
		if ok {
			cf.Attributes = append(cf.Attributes, attr)
		}
	}

	return cf, nil
}

// MustBytes builds and encodes the class file, panicking on error
func (b *Builder) MustBytes() []byte {
	cf, err := b.Build()
	if err != nil {
		panic(fmt.Sprintf("classtest: build %s: %v", b.name, err))
	}
	data, err := cf.Bytes()
	if err != nil {
		panic(fmt.Sprintf("classtest: encode %s: %v", b.name, err))
	}
	return data
}

func (b *Builder) constructor() method {
	super := b.super
	allocates := b.allocates
	return method{
		access:    classfile.AccPublic,
		name:      classfile.ConstructorName,
		desc:      "()V",
		maxStack:  2,
		maxLocals: 1,
		body: func(p *classfile.ConstantPool) ([]byte, error) {
			superInit, err := p.FindOrAddMethodref(super, classfile.ConstructorName, "()V")
			if err != nil {
				return nil, err
			}
			code := []byte{classfile.OpAload0, classfile.OpInvokespecial}
			code = binary.BigEndian.AppendUint16(code, superInit)
			if allocates != "" {
				cls, err := p.FindOrAddClass(allocates)
				if err != nil {
					return nil, err
				}
				init, err := p.FindOrAddMethodref(allocates, classfile.ConstructorName, "()V")
				if err != nil {
					return nil, err
				}
				code = append(code, classfile.OpNew)
				code = binary.BigEndian.AppendUint16(code, cls)
				code = append(code, 0x59) // dup
				code = append(code, classfile.OpInvokespecial)
				code = binary.BigEndian.AppendUint16(code, init)
				code = append(code, 0x57) // pop
			}
			return append(code, classfile.OpReturn), nil
		},
	}
}

func buildMethod(p *classfile.ConstantPool, m method) (classfile.Member, error) {
	ni, err := p.FindOrAddUTF8(m.name)
	if err != nil {
		return classfile.Member{}, err
	}
	di, err := p.FindOrAddUTF8(m.desc)
	if err != nil {
		return classfile.Member{}, err
	}
	bytecode, err := m.body(p)
	if err != nil {
		return classfile.Member{}, err
	}
	code := &classfile.Code{MaxStack: m.maxStack, MaxLocals: m.maxLocals, Bytecode: bytecode}
	info, err := code.Bytes()
	if err != nil {
		return classfile.Member{}, err
	}
	codeName, err := p.FindOrAddUTF8(classfile.AttrCode)
	if err != nil {
		return classfile.Member{}, err
	}
	return classfile.Member{
		AccessFlags:     m.access,
		NameIndex:       ni,
		DescriptorIndex: di,
		Attributes:      []classfile.Attribute{{NameIndex: codeName, Info: info}},
	}, nil
}

func (b *Builder) annotationAttribute(p *classfile.ConstantPool, visible bool) (classfile.Attribute, bool, error) {
	var anns []classfile.Annotation
	for _, a := range b.annotations {
		if a.visible != visible {
			continue
		}
		ti, err := p.FindOrAddUTF8(a.desc)
		if err != nil {
			return classfile.Attribute{}, false, err
		}
		raw := binary.BigEndian.AppendUint16(nil, ti)
		if a.elemName == "" {
			raw = binary.BigEndian.AppendUint16(raw, 0)
		} else {
			en, err := p.FindOrAddUTF8(a.elemName)
			if err != nil {
				return classfile.Attribute{}, false, err
			}
			ev, err := p.FindOrAddUTF8(a.elemValue)
			if err != nil {
				return classfile.Attribute{}, false, err
			}
			raw = binary.BigEndian.AppendUint16(raw, 1)
			raw = binary.BigEndian.AppendUint16(raw, en)
			raw = append(raw, 's')
			raw = binary.BigEndian.AppendUint16(raw, ev)
		}
		anns = append(anns, classfile.Annotation{TypeIndex: ti, Raw: raw})
	}
	if len(anns) == 0 {
		return classfile.Attribute{}, false, nil
	}

	name := classfile.AttrRuntimeInvisibleAnnotations
	if visible {
		name = classfile.AttrRuntimeVisibleAnnotations
	}
	ni, err := p.FindOrAddUTF8(name)
	if err != nil {
		return classfile.Attribute{}, false, err
	}
	return classfile.Attribute{NameIndex: ni, Info: classfile.EncodeAnnotations(anns)}, true, nil
}
