// Package classfile reads and writes the JVM class file format.
//
// The representation is deliberately shallow: the constant pool, members and
// attributes are decoded only as far as the weaver needs, and everything else
// is carried as raw bytes. Parsing and re-encoding an unmodified class file
// reproduces the input byte for byte.
package classfile

import (
	"bytes"
	"fmt"
)

// Magic is the first four bytes of every class file
const Magic uint32 = 0xCAFEBABE

// Access flags shared by classes, fields and methods
const (
	AccPublic     uint16 = 0x0001
	AccPrivate    uint16 = 0x0002
	AccProtected  uint16 = 0x0004
	AccStatic     uint16 = 0x0008
	AccFinal      uint16 = 0x0010
	AccSuper      uint16 = 0x0020
	AccVolatile   uint16 = 0x0040
	AccTransient  uint16 = 0x0080
	AccInterface  uint16 = 0x0200
	AccAbstract   uint16 = 0x0400
	AccSynthetic  uint16 = 0x1000
	AccAnnotation uint16 = 0x2000
	AccEnum       uint16 = 0x4000
	AccModule     uint16 = 0x8000
)

// Well-known names
const (
	ObjectClass     = "java/lang/Object"
	ConstructorName = "<init>"
	AttrCode        = "Code"
)

// Attribute is an undecoded attribute_info structure
type Attribute struct {
	NameIndex uint16
	Info      []byte
}

// Member is a field_info or method_info structure
type Member struct {
	AccessFlags     uint16
	NameIndex       uint16
	DescriptorIndex uint16
	Attributes      []Attribute
}

// ClassFile is a parsed class file
type ClassFile struct {
	MinorVersion uint16
	MajorVersion uint16
	Pool         *ConstantPool
	AccessFlags  uint16
	ThisClass    uint16
	SuperClass   uint16
	Interfaces   []uint16
	Fields       []Member
	Methods      []Member
	Attributes   []Attribute
}

// Name returns the internal name of the class
func (cf *ClassFile) Name() (string, error) {
	return cf.Pool.ClassName(cf.ThisClass)
}

// SuperName returns the internal name of the direct superclass, or "" when
// the class has none (java/lang/Object and module descriptors).
func (cf *ClassFile) SuperName() (string, error) {
	if cf.SuperClass == 0 {
		return "", nil
	}
	return cf.Pool.ClassName(cf.SuperClass)
}

// InterfaceNames returns the internal names of the direct superinterfaces
func (cf *ClassFile) InterfaceNames() ([]string, error) {
	names := make([]string, 0, len(cf.Interfaces))
	for _, idx := range cf.Interfaces {
		name, err := cf.Pool.ClassName(idx)
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

// MemberName returns the name and descriptor of a field or method
func (cf *ClassFile) MemberName(m Member) (string, string, error) {
	name, err := cf.Pool.UTF8(m.NameIndex)
	if err != nil {
		return "", "", err
	}
	desc, err := cf.Pool.UTF8(m.DescriptorIndex)
	if err != nil {
		return "", "", err
	}
	return name, desc, nil
}

// AttributeName returns the name of an attribute
func (cf *ClassFile) AttributeName(a Attribute) (string, error) {
	return cf.Pool.UTF8(a.NameIndex)
}

// FindMethod returns the index into Methods of the method with the given
// name and descriptor, or -1.
func (cf *ClassFile) FindMethod(name, descriptor string) int {
	for i, m := range cf.Methods {
		n, d, err := cf.MemberName(m)
		if err != nil {
			continue
		}
		if n == name && d == descriptor {
			return i
		}
	}
	return -1
}

// FindAttribute returns the index of the first attribute with the given name
// in attrs, or -1.
func (cf *ClassFile) FindAttribute(attrs []Attribute, name string) int {
	for i, a := range attrs {
		if n, err := cf.AttributeName(a); err == nil && n == name {
			return i
		}
	}
	return -1
}

// Parse decodes a class file. Trailing bytes after the last attribute are
// rejected. The result does not alias data.
func Parse(data []byte) (*ClassFile, error) {
	data = bytes.Clone(data)
	r := &reader{buf: data}

	magic := r.u4()
	if r.err == nil && magic != Magic {
		return nil, fmt.Errorf("bad magic 0x%08X", magic)
	}

	cf := &ClassFile{}
	cf.MinorVersion = r.u2()
	cf.MajorVersion = r.u2()

	pool, err := readConstantPool(r)
	if err != nil {
		return nil, err
	}
	cf.Pool = pool

	cf.AccessFlags = r.u2()
	cf.ThisClass = r.u2()
	cf.SuperClass = r.u2()

	n := int(r.u2())
	if r.err == nil {
		cf.Interfaces = make([]uint16, n)
		for i := range cf.Interfaces {
			cf.Interfaces[i] = r.u2()
		}
	}

	cf.Fields = readMembers(r)
	cf.Methods = readMembers(r)
	cf.Attributes = readAttributes(r)

	if r.err != nil {
		return nil, r.err
	}
	if r.pos != len(data) {
		return nil, fmt.Errorf("%d trailing bytes after class file", len(data)-r.pos)
	}

	if _, err := cf.Name(); err != nil {
		return nil, fmt.Errorf("this_class: %w", err)
	}
	if _, err := cf.SuperName(); err != nil {
		return nil, fmt.Errorf("super_class: %w", err)
	}

	return cf, nil
}

func readConstantPool(r *reader) (*ConstantPool, error) {
	count := int(r.u2())
	if r.err != nil {
		return nil, r.err
	}
	if count == 0 {
		return nil, fmt.Errorf("constant_pool_count is zero")
	}

	pool := &ConstantPool{entries: make([]Constant, 1, count)}
	for len(pool.entries) < count {
		tag := Tag(r.u1())
		if r.err != nil {
			return nil, r.err
		}
		size, ok := payloadSize(tag)
		if !ok {
			return nil, fmt.Errorf("constant pool entry %d: unknown tag %d", len(pool.entries), tag)
		}

		var data []byte
		if size < 0 {
			start := r.pos
			n := int(r.u2())
			r.skip(n)
			data = r.slice(start)
		} else {
			data = r.bytes(size)
		}
		if r.err != nil {
			return nil, fmt.Errorf("constant pool entry %d: %w", len(pool.entries), r.err)
		}

		pool.entries = append(pool.entries, Constant{Tag: tag, Data: data})
		if tag.wide() {
			if len(pool.entries) == count {
				return nil, fmt.Errorf("constant pool entry %d: %s overflows the pool", len(pool.entries)-1, tag)
			}
			pool.entries = append(pool.entries, Constant{})
		}
	}
	return pool, nil
}

func readMembers(r *reader) []Member {
	n := int(r.u2())
	if r.err != nil {
		return nil
	}
	members := make([]Member, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		m := Member{
			AccessFlags:     r.u2(),
			NameIndex:       r.u2(),
			DescriptorIndex: r.u2(),
		}
		m.Attributes = readAttributes(r)
		members = append(members, m)
	}
	return members
}

func readAttributes(r *reader) []Attribute {
	n := int(r.u2())
	if r.err != nil {
		return nil
	}
	attrs := make([]Attribute, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		a := Attribute{NameIndex: r.u2()}
		length := int(r.u4())
		a.Info = r.bytes(length)
		attrs = append(attrs, a)
	}
	return attrs
}

// Bytes encodes the class file
func (cf *ClassFile) Bytes() ([]byte, error) {
	if cf.Pool == nil {
		return nil, fmt.Errorf("class file has no constant pool")
	}
	w := &writer{}
	w.u4(Magic)
	w.u2(cf.MinorVersion)
	w.u2(cf.MajorVersion)

	w.u2(uint16(cf.Pool.Count()))
	for i := 1; i < len(cf.Pool.entries); i++ {
		c := cf.Pool.entries[i]
		if c.Tag == 0 {
			continue
		}
		w.u1(uint8(c.Tag))
		w.raw(c.Data)
	}

	w.u2(cf.AccessFlags)
	w.u2(cf.ThisClass)
	w.u2(cf.SuperClass)

	if err := w.count(len(cf.Interfaces), "interfaces"); err != nil {
		return nil, err
	}
	for _, idx := range cf.Interfaces {
		w.u2(idx)
	}

	if err := writeMembers(w, cf.Fields, "fields"); err != nil {
		return nil, err
	}
	if err := writeMembers(w, cf.Methods, "methods"); err != nil {
		return nil, err
	}
	if err := writeAttributes(w, cf.Attributes); err != nil {
		return nil, err
	}
	return w.buf, nil
}

func writeMembers(w *writer, members []Member, what string) error {
	if err := w.count(len(members), what); err != nil {
		return err
	}
	for _, m := range members {
		w.u2(m.AccessFlags)
		w.u2(m.NameIndex)
		w.u2(m.DescriptorIndex)
		if err := writeAttributes(w, m.Attributes); err != nil {
			return err
		}
	}
	return nil
}

func writeAttributes(w *writer, attrs []Attribute) error {
	if err := w.count(len(attrs), "attributes"); err != nil {
		return err
	}
	for _, a := range attrs {
		w.u2(a.NameIndex)
		w.u4(uint32(len(a.Info)))
		w.raw(a.Info)
	}
	return nil
}
