package metadata

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecspool/weaver/classfile"
	"github.com/ecspool/weaver/classfile/classtest"
	werrors "github.com/ecspool/weaver/internal/errors"
)

func source(path string, b *classtest.Builder) Source {
	return Source{Path: path, Data: b.MustBytes()}
}

func extract(t *testing.T, sources ...Source) (*Snapshot, error) {
	t.Helper()
	return NewExtractor(DefaultConvention(), nil).Extract(context.Background(), sources, 2)
}

func TestExtract_Hierarchy(t *testing.T) {
	snap, err := extract(t,
		source("Bullet.class", classtest.New("game/Bullet").
			Annotate(DefaultMarkerAnnotation).
			Field("damage", "I").
			Field("owner", "Lgame/Entity;").
			FieldWithAccess(classfile.AccStatic, "count", "I")),
		source("HomingBullet.class", classtest.New("game/HomingBullet").
			Extends("game/Bullet").
			Field("target", "Lgame/Entity;")),
		source("Position.class", classtest.New("game/Position").
			Field("x", "F")),
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"game/Bullet", "game/HomingBullet", "game/Position"}, snap.Names())

	bullet, ok := snap.Lookup("game/Bullet")
	require.True(t, ok)
	assert.True(t, bullet.Marked)
	assert.True(t, bullet.Poolable)
	assert.True(t, bullet.Root)
	assert.False(t, bullet.AlreadyPooled)
	assert.Equal(t, classfile.ObjectClass, bullet.SuperclassName)
	assert.Equal(t, DefaultPooledBase, bullet.EffectiveSuperclassName)
	assert.Equal(t, []Field{
		{Name: "damage", Descriptor: "I", AccessFlags: classfile.AccPublic},
		{Name: "owner", Descriptor: "Lgame/Entity;", AccessFlags: classfile.AccPublic},
	}, bullet.Fields, "static fields are excluded, order is declaration order")
	assert.Len(t, bullet.Hash, 64)
	assert.Equal(t, "Bullet.class", bullet.Path)

	homing, _ := snap.Lookup("game/HomingBullet")
	assert.False(t, homing.Marked)
	assert.True(t, homing.Poolable)
	assert.False(t, homing.Root)
	assert.Equal(t, "game/Bullet", homing.EffectiveSuperclassName)

	pos, _ := snap.Lookup("game/Position")
	assert.False(t, pos.Poolable)
	assert.Equal(t, classfile.ObjectClass, pos.EffectiveSuperclassName)

	assert.Equal(t, []string{"game/HomingBullet", "game/Bullet", DefaultPooledBase}, snap.Chain("game/HomingBullet"))
	assert.Equal(t, 1, snap.Substitutions("game/HomingBullet"))
	assert.Equal(t, 0, snap.Substitutions("game/Position"))
	assert.Len(t, snap.Poolable(), 2)
}

func TestExtract_OrderIndependent(t *testing.T) {
	parent := source("a/Base.class", classtest.New("game/Base").Annotate(DefaultMarkerAnnotation))
	mid := source("b/Mid.class", classtest.New("game/Mid").Extends("game/Base"))
	leaf := source("c/Leaf.class", classtest.New("game/Leaf").Extends("game/Mid").Field("hp", "I"))

	forward, err := extract(t, parent, mid, leaf)
	require.NoError(t, err)
	backward, err := extract(t, leaf, mid, parent)
	require.NoError(t, err)

	for _, name := range forward.Names() {
		f, _ := forward.Lookup(name)
		b, _ := backward.Lookup(name)
		assert.Equal(t, f, b, name)
	}
	leafMeta, _ := backward.Lookup("game/Leaf")
	assert.True(t, leafMeta.Poolable)
	assert.Equal(t, 1, backward.Substitutions("game/Leaf"))
}

func TestExtract_ExternalSuperclass(t *testing.T) {
	snap, err := extract(t,
		source("Sprite.class", classtest.New("game/Sprite").
			Extends("lib/Drawable").
			Annotate(DefaultMarkerAnnotation)),
	)
	require.NoError(t, err)

	sprite, _ := snap.Lookup("game/Sprite")
	assert.True(t, sprite.Root)
	assert.Equal(t, "lib/Drawable", sprite.SuperclassName)
	assert.Equal(t, DefaultPooledBase, sprite.EffectiveSuperclassName)
}

func TestExtract_AlreadyPooled(t *testing.T) {
	snap, err := extract(t,
		// output of a previous run: marker gone, base in place
		source("Bullet.class", classtest.New("game/Bullet").
			Extends(DefaultPooledBase).
			VoidMethod(classfile.AccProtected, "reset")),
		source("Shell.class", classtest.New("game/Shell").
			Extends("game/Bullet").
			Annotate(DefaultMarkerAnnotation)),
	)
	require.NoError(t, err)

	bullet, _ := snap.Lookup("game/Bullet")
	assert.False(t, bullet.Poolable)
	assert.True(t, bullet.AlreadyPooled)
	assert.True(t, bullet.HasReset)

	shell, _ := snap.Lookup("game/Shell")
	assert.True(t, shell.Poolable)
	assert.True(t, shell.AlreadyPooled)
	assert.False(t, shell.Root, "ancestry already reaches the pooled base")
	assert.Equal(t, "game/Bullet", shell.EffectiveSuperclassName)
}

func TestExtract_MarkerInterface(t *testing.T) {
	conv := DefaultConvention()
	conv.MarkerInterface = "ecs/Poolable"

	snap, err := NewExtractor(conv, nil).Extract(context.Background(), []Source{
		source("Velocity.class", classtest.New("game/Velocity").Implements("ecs/Poolable")),
	}, 1)
	require.NoError(t, err)

	v, _ := snap.Lookup("game/Velocity")
	assert.True(t, v.Marked)
	assert.False(t, v.Annotated)
	assert.True(t, v.Root)
}

func TestExtract_Cycle(t *testing.T) {
	_, err := extract(t,
		source("A.class", classtest.New("game/A").Extends("game/B")),
		source("B.class", classtest.New("game/B").Extends("game/C")),
		source("C.class", classtest.New("game/C").Extends("game/A")),
	)
	require.Error(t, err)

	we, ok := werrors.As(err)
	require.True(t, ok)
	assert.Equal(t, werrors.ErrCyclicAncestry, we.Code)
	assert.Equal(t, "game/A", we.Class)
	assert.Contains(t, we.Message, "game/A -> game/B -> game/C -> game/A")
}

func TestExtract_SelfCycle(t *testing.T) {
	_, err := extract(t, source("A.class", classtest.New("game/A").Extends("game/A")))
	we, ok := werrors.As(err)
	require.True(t, ok)
	assert.Equal(t, werrors.ErrCyclicAncestry, we.Code)
}

func TestExtract_Duplicate(t *testing.T) {
	_, err := extract(t,
		source("one/Bullet.class", classtest.New("game/Bullet")),
		source("two/Bullet.class", classtest.New("game/Bullet")),
	)
	we, ok := werrors.As(err)
	require.True(t, ok)
	assert.Equal(t, werrors.ErrDuplicateClass, we.Code)
	assert.Equal(t, "two/Bullet.class", we.File)
}

func TestExtract_Malformed(t *testing.T) {
	_, err := extract(t, Source{Path: "junk.class", Data: []byte{0xCA, 0xFE}})
	we, ok := werrors.As(err)
	require.True(t, ok)
	assert.Equal(t, werrors.ErrMalformedClass, we.Code)
	assert.Equal(t, "junk.class", we.File)
}

func TestExtract_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewExtractor(DefaultConvention(), nil).Extract(ctx, []Source{
		source("A.class", classtest.New("game/A")),
	}, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConvention_Validate(t *testing.T) {
	assert.NoError(t, DefaultConvention().Validate())

	tests := map[string]func(c *Convention){
		"bare annotation name": func(c *Convention) { c.MarkerAnnotation = "ecs/annotations/Pooled" },
		"dotted base":          func(c *Convention) { c.PooledBase = "ecs.PooledComponent" },
		"empty base":           func(c *Convention) { c.PooledBase = "" },
		"constructor reset":    func(c *Convention) { c.ResetMethod = "<init>" },
		"descriptor interface": func(c *Convention) { c.MarkerInterface = "Lecs/Poolable;" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			c := DefaultConvention()
			mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}
