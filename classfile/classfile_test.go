package classfile_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecspool/weaver/classfile"
	"github.com/ecspool/weaver/classfile/classtest"
)

func TestParse_RoundTrip(t *testing.T) {
	inputs := map[string][]byte{
		"plain": classtest.New("game/Position").
			Field("x", "F").
			Field("y", "F").
			MustBytes(),
		"annotated": classtest.New("game/Bullet").
			Annotate("Lecs/annotations/Pooled;").
			AnnotateWithString("Lgame/Tag;", "value", "projectile").
			AnnotateInvisible("Lgame/Internal;").
			Field("damage", "I").
			Field("owner", "Lgame/Entity;").
			MustBytes(),
		"interfaces": classtest.New("game/Velocity").
			Implements("java/io/Serializable", "ecs/Poolable").
			Field("dx", "D").
			Field("dy", "J").
			VoidMethod(classfile.AccPublic, "tick").
			MustBytes(),
	}

	for name, data := range inputs {
		t.Run(name, func(t *testing.T) {
			cf, err := classfile.Parse(data)
			require.NoError(t, err)

			out, err := cf.Bytes()
			require.NoError(t, err)
			assert.Equal(t, data, out)
		})
	}
}

func TestParse_Names(t *testing.T) {
	data := classtest.New("game/HomingBullet").
		Extends("game/Bullet").
		Implements("ecs/Poolable").
		Field("target", "Lgame/Entity;").
		MustBytes()

	cf, err := classfile.Parse(data)
	require.NoError(t, err)

	name, err := cf.Name()
	require.NoError(t, err)
	assert.Equal(t, "game/HomingBullet", name)

	super, err := cf.SuperName()
	require.NoError(t, err)
	assert.Equal(t, "game/Bullet", super)

	ifaces, err := cf.InterfaceNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"ecs/Poolable"}, ifaces)

	require.Len(t, cf.Fields, 1)
	fname, fdesc, err := cf.MemberName(cf.Fields[0])
	require.NoError(t, err)
	assert.Equal(t, "target", fname)
	assert.Equal(t, "Lgame/Entity;", fdesc)

	assert.Equal(t, 0, cf.FindMethod("<init>", "()V"))
	assert.Equal(t, -1, cf.FindMethod("reset", "()V"))
}

func TestParse_DoesNotAliasInput(t *testing.T) {
	data := classtest.New("game/Health").Field("hp", "I").MustBytes()
	original := append([]byte(nil), data...)

	cf, err := classfile.Parse(data)
	require.NoError(t, err)

	cf.Methods[0].Attributes[0].Info[0] = 0xFF
	assert.Equal(t, original, data)
}

func TestParse_Errors(t *testing.T) {
	valid := classtest.New("game/Position").Field("x", "F").MustBytes()

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"bad magic", append([]byte{0xCA, 0xFE, 0xD0, 0x0D}, valid[4:]...)},
		{"truncated", valid[:len(valid)-3]},
		{"trailing bytes", append(append([]byte(nil), valid...), 0x00)},
		{"unknown constant tag", func() []byte {
			b := append([]byte(nil), valid...)
			b[10] = 2 // first constant tag follows magic, version and count
			return b
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := classfile.Parse(tt.data)
			assert.Error(t, err)
		})
	}
}

func TestConstantPool_FindOrAdd(t *testing.T) {
	p := classfile.NewConstantPool()

	a, err := p.FindOrAddClass("game/Bullet")
	require.NoError(t, err)
	b, err := p.FindOrAddClass("game/Bullet")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	name, err := p.ClassName(a)
	require.NoError(t, err)
	assert.Equal(t, "game/Bullet", name)

	ref, err := p.FindOrAddMethodref("ecs/PooledComponent", "<init>", "()V")
	require.NoError(t, err)
	member, err := p.Member(ref)
	require.NoError(t, err)
	assert.Equal(t, classfile.MemberRef{
		Tag:        classfile.TagMethodref,
		Class:      "ecs/PooledComponent",
		Name:       "<init>",
		Descriptor: "()V",
	}, member)

	fref, err := p.FindOrAddFieldref("game/Bullet", "damage", "I")
	require.NoError(t, err)
	field, err := p.Member(fref)
	require.NoError(t, err)
	assert.Equal(t, classfile.TagFieldref, field.Tag)

	_, err = p.UTF8(a)
	assert.Error(t, err, "class entry is not utf8")
	_, err = p.Get(0)
	assert.Error(t, err)
	_, err = p.Get(uint16(p.Count()))
	assert.Error(t, err)
}

func TestConstantPool_WideEntries(t *testing.T) {
	// Long constant at index 1 occupies slots 1 and 2.
	data := []byte{0xCA, 0xFE, 0xBA, 0xBE, 0, 0, 0, 52}
	data = binary.BigEndian.AppendUint16(data, 5)
	data = append(data, byte(classfile.TagLong), 0, 0, 0, 0, 0, 0, 0, 42)
	data = append(data, byte(classfile.TagUTF8), 0, 3, 'a', '/', 'B')
	data = append(data, byte(classfile.TagClass), 0, 3)
	data = binary.BigEndian.AppendUint16(data, classfile.AccPublic)
	data = binary.BigEndian.AppendUint16(data, 4) // this
	data = binary.BigEndian.AppendUint16(data, 0) // super
	data = append(data, 0, 0, 0, 0, 0, 0, 0, 0)   // interfaces, fields, methods, attributes

	cf, err := classfile.Parse(data)
	require.NoError(t, err)

	_, err = cf.Pool.Get(2)
	assert.Error(t, err, "slot after a long is unusable")

	name, err := cf.Name()
	require.NoError(t, err)
	assert.Equal(t, "a/B", name)

	out, err := cf.Bytes()
	require.NoError(t, err)
	assert.Equal(t, data, out)
}
