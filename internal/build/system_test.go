package build

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecspool/weaver/classfile"
	"github.com/ecspool/weaver/classfile/classtest"
	werrors "github.com/ecspool/weaver/internal/errors"
	"github.com/ecspool/weaver/internal/metadata"
)

const marker = metadata.DefaultMarkerAnnotation

func writeClass(t *testing.T, dir, rel string, b *classtest.Builder) string {
	t.Helper()
	path := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, b.MustBytes(), 0644))
	return path
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func superOf(t *testing.T, path string) string {
	t.Helper()
	cf, err := classfile.Parse(readFile(t, path))
	require.NoError(t, err)
	super, err := cf.SuperName()
	require.NoError(t, err)
	return super
}

// project lays out a subclass-first hierarchy plus an unrelated class
func project(t *testing.T) (dir string, paths map[string]string) {
	dir = t.TempDir()
	paths = map[string]string{
		"HomingBullet": writeClass(t, dir, "game/a/HomingBullet.class", classtest.New("game/HomingBullet").
			Extends("game/Bullet").
			Field("target", "Lgame/Entity;")),
		"Bullet": writeClass(t, dir, "game/b/Bullet.class", classtest.New("game/Bullet").
			Annotate(marker).
			Field("damage", "I")),
		"Position": writeClass(t, dir, "game/Position.class", classtest.New("game/Position").
			Field("x", "F")),
	}
	return dir, paths
}

func newSystem(t *testing.T, opts *Options) *System {
	t.Helper()
	s, err := NewSystem(opts, nil)
	require.NoError(t, err)
	return s
}

func options(dir string) *Options {
	opts := DefaultOptions()
	opts.InputDir = dir
	opts.Jobs = 2
	opts.Version = "test"
	return opts
}

func TestWeave_InPlace(t *testing.T) {
	dir, paths := project(t)
	position := readFile(t, paths["Position"])

	var calls atomic.Int32
	opts := options(dir)
	opts.ProgressFunc = func(current, total int, message string) { calls.Add(1) }

	report, err := newSystem(t, opts).Weave(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Success)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 3, report.Scanned)
	assert.Equal(t, 2, report.Woven)
	assert.Equal(t, 1, report.Unchanged)
	assert.ElementsMatch(t, []string{paths["Bullet"], paths["HomingBullet"]}, report.Written)
	assert.Len(t, report.Changed, 3, "first run sees every file as new")
	assert.Positive(t, calls.Load())

	require.Len(t, report.Classes, 3)
	assert.Equal(t, "game/Bullet", report.Classes[0].Class)
	assert.True(t, report.Classes[0].Root)
	assert.False(t, report.Classes[1].Root)

	assert.Equal(t, metadata.DefaultPooledBase, superOf(t, paths["Bullet"]))
	assert.Equal(t, "game/Bullet", superOf(t, paths["HomingBullet"]))
	assert.Equal(t, position, readFile(t, paths["Position"]), "unrelated class is byte-identical")

	state, err := LoadState(dir)
	require.NoError(t, err)
	assert.Equal(t, report.RunID, state.RunID)
	assert.Equal(t, "test", state.Version)
	assert.Len(t, state.FileHashes, 3)
}

func TestWeave_SecondRunIsNoop(t *testing.T) {
	dir, paths := project(t)
	s := newSystem(t, options(dir))

	_, err := s.Weave(context.Background())
	require.NoError(t, err)
	woven := readFile(t, paths["Bullet"])

	report, err := s.Weave(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Woven)
	assert.Equal(t, 3, report.Unchanged)
	assert.Empty(t, report.Written)
	assert.Empty(t, report.Changed)
	assert.Equal(t, woven, readFile(t, paths["Bullet"]))
}

func TestWeave_DryRun(t *testing.T) {
	dir, paths := project(t)
	before := readFile(t, paths["Bullet"])

	opts := options(dir)
	opts.DryRun = true
	report, err := newSystem(t, opts).Weave(context.Background())
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.Equal(t, 2, report.Woven)
	assert.Empty(t, report.Written)
	assert.Equal(t, before, readFile(t, paths["Bullet"]))

	_, err = os.Stat(StatePath(dir))
	assert.True(t, os.IsNotExist(err))
}

func TestWeave_Mirrored(t *testing.T) {
	dir, paths := project(t)
	out := t.TempDir()
	before := readFile(t, paths["Bullet"])

	opts := options(dir)
	opts.OutputDir = out
	report, err := newSystem(t, opts).Weave(context.Background())
	require.NoError(t, err)
	assert.Len(t, report.Written, 3)

	assert.Equal(t, before, readFile(t, paths["Bullet"]))
	assert.Equal(t, metadata.DefaultPooledBase, superOf(t, filepath.Join(out, "game", "b", "Bullet.class")))
	assert.FileExists(t, filepath.Join(out, "game", "Position.class"))
}

func TestWeave_FatalErrorsWriteNothing(t *testing.T) {
	tests := map[string]struct {
		extra *classtest.Builder
		code  string
	}{
		"cycle": {
			extra: classtest.New("game/Loop").Extends("game/Loop"),
			code:  werrors.ErrCyclicAncestry,
		},
		"marker inconsistency": {
			extra: classtest.New("game/Twice").Extends(metadata.DefaultPooledBase).Annotate(marker),
			code:  werrors.ErrMarkerInconsistency,
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			dir, paths := project(t)
			writeClass(t, dir, "game/Extra.class", tt.extra)
			before := readFile(t, paths["Bullet"])

			report, err := newSystem(t, options(dir)).Weave(context.Background())
			require.Error(t, err)
			require.NotNil(t, report)
			assert.False(t, report.Success)
			require.Len(t, report.Errors, 1)
			assert.Equal(t, tt.code, report.Errors[0].Code)

			assert.Equal(t, before, readFile(t, paths["Bullet"]))
			_, err = os.Stat(StatePath(dir))
			assert.True(t, os.IsNotExist(err))
		})
	}
}

func TestWeave_EmptyDirectory(t *testing.T) {
	report, err := newSystem(t, options(t.TempDir())).Weave(context.Background())
	require.Error(t, err)
	assert.Equal(t, werrors.ErrReadFailed, report.Errors[0].Code)
}

func TestVerify(t *testing.T) {
	dir, _ := project(t)
	s := newSystem(t, options(dir))

	before, err := s.Verify(context.Background())
	require.NoError(t, err)
	assert.False(t, before.OK())
	require.Len(t, before.Violations, 1)
	assert.Equal(t, werrors.ErrMarkerObservable, before.Violations[0].Code)

	_, err = s.Weave(context.Background())
	require.NoError(t, err)

	after, err := s.Verify(context.Background())
	require.NoError(t, err)
	assert.True(t, after.OK(), "%v", after.Violations)
	assert.Equal(t, 3, after.Checked)
	assert.Equal(t, 2, after.Pooled)
}

func TestVerify_MissingReset(t *testing.T) {
	dir := t.TempDir()
	writeClass(t, dir, "Hand.class", classtest.New("game/Hand").Extends(metadata.DefaultPooledBase))

	report, err := newSystem(t, options(dir)).Verify(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Violations, 1)
	assert.Equal(t, werrors.ErrValidationFailed, report.Violations[0].Code)
}

func TestWeave_SubclassAddedAfterWeave(t *testing.T) {
	dir, _ := project(t)
	s := newSystem(t, options(dir))
	_, err := s.Weave(context.Background())
	require.NoError(t, err)

	fast := writeClass(t, dir, "game/FastBullet.class", classtest.New("game/FastBullet").
		Extends("game/Bullet").
		Field("speed", "F"))

	report, err := s.Weave(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Woven)
	assert.Equal(t, "game/Bullet", superOf(t, fast))

	cf, err := classfile.Parse(readFile(t, fast))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, cf.FindMethod("reset", metadata.ResetDescriptor), 0)

	verified, err := s.Verify(context.Background())
	require.NoError(t, err)
	assert.True(t, verified.OK(), "%v", verified.Violations)
	assert.Equal(t, 3, verified.Pooled)
}

func TestWeave_UnreadableStateWarns(t *testing.T) {
	dir, _ := project(t)
	opts := options(dir)
	opts.StateDir = t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Dir(StatePath(opts.StateDir)), 0755))
	require.NoError(t, os.WriteFile(StatePath(opts.StateDir), []byte{0xff, 0x00}, 0644))

	report, err := newSystem(t, opts).Weave(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Success)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "ignoring unreadable run state")

	state, err := LoadState(opts.StateDir)
	require.NoError(t, err)
	assert.Equal(t, report.RunID, state.RunID)
}

func TestVerify_MarkerInterface(t *testing.T) {
	dir := t.TempDir()
	opts := options(dir)
	opts.Convention.MarkerInterface = "game/Poolable"
	writeClass(t, dir, "game/Velocity.class", classtest.New("game/Velocity").
		Implements("game/Poolable").
		Field("dx", "F"))
	s := newSystem(t, opts)

	before, err := s.Verify(context.Background())
	require.NoError(t, err)
	require.Len(t, before.Violations, 1)
	assert.Equal(t, werrors.ErrMarkerObservable, before.Violations[0].Code)
	assert.Contains(t, before.Violations[0].Message, "game/Poolable")
	assert.NotContains(t, before.Violations[0].Message, marker)

	_, err = s.Weave(context.Background())
	require.NoError(t, err)

	after, err := s.Verify(context.Background())
	require.NoError(t, err)
	assert.True(t, after.OK(), "%v", after.Violations)
	assert.Equal(t, 1, after.Pooled)
}

func TestInspect(t *testing.T) {
	dir, _ := project(t)
	snap, err := newSystem(t, options(dir)).Inspect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"game/Bullet", "game/HomingBullet", "game/Position"}, snap.Names())
}

func TestNewSystem_InvalidConvention(t *testing.T) {
	opts := options(t.TempDir())
	opts.Convention.PooledBase = ""
	_, err := NewSystem(opts, nil)
	assert.Error(t, err)
}
