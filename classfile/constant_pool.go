package classfile

import (
	"encoding/binary"
	"fmt"
)

// Tag identifies the kind of a constant pool entry
type Tag uint8

const (
	TagUTF8               Tag = 1
	TagInteger            Tag = 3
	TagFloat              Tag = 4
	TagLong               Tag = 5
	TagDouble             Tag = 6
	TagClass              Tag = 7
	TagString             Tag = 8
	TagFieldref           Tag = 9
	TagMethodref          Tag = 10
	TagInterfaceMethodref Tag = 11
	TagNameAndType        Tag = 12
	TagMethodHandle       Tag = 15
	TagMethodType         Tag = 16
	TagDynamic            Tag = 17
	TagInvokeDynamic      Tag = 18
	TagModule             Tag = 19
	TagPackage            Tag = 20
)

// maxPoolCount is the largest constant_pool_count the format can express
const maxPoolCount = 0xFFFF

func (t Tag) String() string {
	switch t {
	case TagUTF8:
		return "Utf8"
	case TagInteger:
		return "Integer"
	case TagFloat:
		return "Float"
	case TagLong:
		return "Long"
	case TagDouble:
		return "Double"
	case TagClass:
		return "Class"
	case TagString:
		return "String"
	case TagFieldref:
		return "Fieldref"
	case TagMethodref:
		return "Methodref"
	case TagInterfaceMethodref:
		return "InterfaceMethodref"
	case TagNameAndType:
		return "NameAndType"
	case TagMethodHandle:
		return "MethodHandle"
	case TagMethodType:
		return "MethodType"
	case TagDynamic:
		return "Dynamic"
	case TagInvokeDynamic:
		return "InvokeDynamic"
	case TagModule:
		return "Module"
	case TagPackage:
		return "Package"
	default:
		return fmt.Sprintf("Tag(%d)", uint8(t))
	}
}

// payloadSize returns the fixed payload length for a tag, or -1 for Utf8
// whose payload is length-prefixed.
func payloadSize(t Tag) (int, bool) {
	switch t {
	case TagUTF8:
		return -1, true
	case TagInteger, TagFloat:
		return 4, true
	case TagLong, TagDouble:
		return 8, true
	case TagClass, TagString, TagMethodType, TagModule, TagPackage:
		return 2, true
	case TagFieldref, TagMethodref, TagInterfaceMethodref, TagNameAndType,
		TagDynamic, TagInvokeDynamic:
		return 4, true
	case TagMethodHandle:
		return 3, true
	default:
		return 0, false
	}
}

// wide reports whether an entry occupies two pool slots
func (t Tag) wide() bool {
	return t == TagLong || t == TagDouble
}

// Constant is one constant pool entry. Data holds the bytes that follow the
// tag exactly as they appear in the class file (for Utf8 this includes the
// two-byte length prefix), so an unmodified entry always re-encodes to the
// same bytes.
type Constant struct {
	Tag  Tag
	Data []byte
}

// u2 reads a big-endian index at the given payload offset
func (c Constant) u2(off int) uint16 {
	return binary.BigEndian.Uint16(c.Data[off:])
}

// ConstantPool is the indexed constant table of a class file. Slot 0 and the
// slot following every Long/Double entry are unusable and hold a zero Tag.
type ConstantPool struct {
	entries []Constant
}

// NewConstantPool creates an empty pool containing only the reserved slot 0
func NewConstantPool() *ConstantPool {
	return &ConstantPool{entries: make([]Constant, 1)}
}

// Count returns constant_pool_count as it is written to the class file
func (p *ConstantPool) Count() int {
	return len(p.entries)
}

// Get returns the entry at index i
func (p *ConstantPool) Get(i uint16) (Constant, error) {
	if i == 0 || int(i) >= len(p.entries) {
		return Constant{}, fmt.Errorf("constant pool index %d out of range [1,%d)", i, len(p.entries))
	}
	c := p.entries[i]
	if c.Tag == 0 {
		return Constant{}, fmt.Errorf("constant pool index %d is an unusable slot", i)
	}
	return c, nil
}

func (p *ConstantPool) expect(i uint16, tag Tag) (Constant, error) {
	c, err := p.Get(i)
	if err != nil {
		return Constant{}, err
	}
	if c.Tag != tag {
		return Constant{}, fmt.Errorf("constant pool index %d is %s, expected %s", i, c.Tag, tag)
	}
	return c, nil
}

// UTF8 returns the string value of a Utf8 entry
func (p *ConstantPool) UTF8(i uint16) (string, error) {
	c, err := p.expect(i, TagUTF8)
	if err != nil {
		return "", err
	}
	return string(c.Data[2:]), nil
}

// ClassName returns the internal name referenced by a Class entry
func (p *ConstantPool) ClassName(i uint16) (string, error) {
	c, err := p.expect(i, TagClass)
	if err != nil {
		return "", err
	}
	return p.UTF8(c.u2(0))
}

// NameAndType returns the name and descriptor of a NameAndType entry
func (p *ConstantPool) NameAndType(i uint16) (string, string, error) {
	c, err := p.expect(i, TagNameAndType)
	if err != nil {
		return "", "", err
	}
	name, err := p.UTF8(c.u2(0))
	if err != nil {
		return "", "", err
	}
	desc, err := p.UTF8(c.u2(2))
	if err != nil {
		return "", "", err
	}
	return name, desc, nil
}

// MemberRef is a resolved Fieldref, Methodref or InterfaceMethodref
type MemberRef struct {
	Tag        Tag
	Class      string
	Name       string
	Descriptor string
}

// Member resolves a Fieldref, Methodref or InterfaceMethodref entry
func (p *ConstantPool) Member(i uint16) (MemberRef, error) {
	c, err := p.Get(i)
	if err != nil {
		return MemberRef{}, err
	}
	switch c.Tag {
	case TagFieldref, TagMethodref, TagInterfaceMethodref:
	default:
		return MemberRef{}, fmt.Errorf("constant pool index %d is %s, expected a member reference", i, c.Tag)
	}
	class, err := p.ClassName(c.u2(0))
	if err != nil {
		return MemberRef{}, err
	}
	name, desc, err := p.NameAndType(c.u2(2))
	if err != nil {
		return MemberRef{}, err
	}
	return MemberRef{Tag: c.Tag, Class: class, Name: name, Descriptor: desc}, nil
}

// add appends an entry and returns its index
func (p *ConstantPool) add(c Constant) (uint16, error) {
	slots := 1
	if c.Tag.wide() {
		slots = 2
	}
	if len(p.entries)+slots > maxPoolCount {
		return 0, fmt.Errorf("constant pool is full (%d entries)", len(p.entries))
	}
	idx := uint16(len(p.entries))
	p.entries = append(p.entries, c)
	if slots == 2 {
		p.entries = append(p.entries, Constant{})
	}
	return idx, nil
}

// find returns the first entry equal to (tag, data)
func (p *ConstantPool) find(tag Tag, data []byte) (uint16, bool) {
	for i := 1; i < len(p.entries); i++ {
		c := p.entries[i]
		if c.Tag == tag && string(c.Data) == string(data) {
			return uint16(i), true
		}
	}
	return 0, false
}

func (p *ConstantPool) findOrAdd(tag Tag, data []byte) (uint16, error) {
	if idx, ok := p.find(tag, data); ok {
		return idx, nil
	}
	return p.add(Constant{Tag: tag, Data: data})
}

// FindOrAddUTF8 returns the index of a Utf8 entry for s, appending one if needed
func (p *ConstantPool) FindOrAddUTF8(s string) (uint16, error) {
	if len(s) > 0xFFFF {
		return 0, fmt.Errorf("utf8 constant too long (%d bytes)", len(s))
	}
	data := binary.BigEndian.AppendUint16(make([]byte, 0, 2+len(s)), uint16(len(s)))
	data = append(data, s...)
	return p.findOrAdd(TagUTF8, data)
}

// FindOrAddClass returns the index of a Class entry naming the internal name
func (p *ConstantPool) FindOrAddClass(name string) (uint16, error) {
	ni, err := p.FindOrAddUTF8(name)
	if err != nil {
		return 0, err
	}
	return p.findOrAdd(TagClass, binary.BigEndian.AppendUint16(nil, ni))
}

// FindOrAddNameAndType returns the index of a NameAndType entry
func (p *ConstantPool) FindOrAddNameAndType(name, descriptor string) (uint16, error) {
	ni, err := p.FindOrAddUTF8(name)
	if err != nil {
		return 0, err
	}
	di, err := p.FindOrAddUTF8(descriptor)
	if err != nil {
		return 0, err
	}
	data := binary.BigEndian.AppendUint16(nil, ni)
	data = binary.BigEndian.AppendUint16(data, di)
	return p.findOrAdd(TagNameAndType, data)
}

func (p *ConstantPool) findOrAddRef(tag Tag, class, name, descriptor string) (uint16, error) {
	ci, err := p.FindOrAddClass(class)
	if err != nil {
		return 0, err
	}
	nt, err := p.FindOrAddNameAndType(name, descriptor)
	if err != nil {
		return 0, err
	}
	data := binary.BigEndian.AppendUint16(nil, ci)
	data = binary.BigEndian.AppendUint16(data, nt)
	return p.findOrAdd(tag, data)
}

// FindOrAddFieldref returns the index of a Fieldref entry
func (p *ConstantPool) FindOrAddFieldref(class, name, descriptor string) (uint16, error) {
	return p.findOrAddRef(TagFieldref, class, name, descriptor)
}

// FindOrAddMethodref returns the index of a Methodref entry
func (p *ConstantPool) FindOrAddMethodref(class, name, descriptor string) (uint16, error) {
	return p.findOrAddRef(TagMethodref, class, name, descriptor)
}
