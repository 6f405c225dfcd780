package errors

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeverity_String(t *testing.T) {
	tests := []struct {
		severity Severity
		want     string
	}{
		{Info, "info"},
		{Warning, "warning"},
		{Error, "error"},
		{Fatal, "fatal"},
		{Severity(99), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.severity.String())
	}
}

func TestWeaveError_Error(t *testing.T) {
	err := NewCyclicAncestry([]string{"game/A", "game/B", "game/A"})
	assert.Equal(t, ErrCyclicAncestry, err.Code)
	assert.Equal(t, PhaseExtract, err.Phase)
	assert.Equal(t, "game/A", err.Class)
	assert.Equal(t, "W101 game/A: cyclic inheritance: game/A -> game/B -> game/A", err.Error())

	read := NewReadFailed("out/A.class", fs.ErrPermission)
	assert.Equal(t, "W300 out/A.class: read failed: permission denied", read.Error())
	assert.ErrorIs(t, read, fs.ErrPermission)
}

func TestAs(t *testing.T) {
	inner := NewMarkerInconsistency("game/Bullet", "ecs/PooledComponent")
	wrapped := fmt.Errorf("weaving: %w", inner)

	got, ok := As(wrapped)
	require.True(t, ok)
	assert.Same(t, inner, got)

	_, ok = As(fmt.Errorf("plain"))
	assert.False(t, ok)
}

func TestList(t *testing.T) {
	list := List{
		NewMarkerTarget("game/Zeta", "an interface"),
		NewDuplicateClass("game/Alpha", "a/Alpha.class", "b/Alpha.class"),
		NewMalformedClass("junk.class", fmt.Errorf("bad magic")),
	}
	list.Sort()

	assert.Equal(t, "", list[0].Class)
	assert.Equal(t, "game/Alpha", list[1].Class)
	assert.Equal(t, "game/Zeta", list[2].Class)
	assert.Contains(t, list.Error(), "(and 2 more)")

	collected := Collect(fmt.Errorf("wrap: %w", list), PhaseWeave)
	assert.Len(t, collected, 3)

	collected = Collect(fmt.Errorf("disk full"), PhaseWrite)
	require.Len(t, collected, 1)
	assert.Equal(t, PhaseWrite, collected[0].Phase)
	assert.Nil(t, Collect(nil, PhaseWrite))
}

func TestFormatErrorsAsJSON(t *testing.T) {
	errs := []*WeaveError{
		NewMalformedClass("junk.class", fmt.Errorf("bad magic")),
	}
	out, err := FormatErrorsAsJSON(errs)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "error", decoded["status"])

	list := decoded["errors"].([]interface{})
	require.Len(t, list, 1)
	first := list[0].(map[string]interface{})
	assert.Equal(t, "W100", first["code"])
	assert.Equal(t, "fatal", first["severity"])
	assert.Equal(t, "junk.class", first["file"])
	assert.Equal(t, "bad magic", first["cause"])

	out, err = FormatErrorsAsJSON(nil)
	require.NoError(t, err)
	assert.Contains(t, out, `"status": "success"`)
}

func TestFormatForTerminal(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	err := NewMarkerInconsistency("game/Bullet", "ecs/PooledComponent")
	out := err.FormatForTerminal()
	assert.Contains(t, out, "fatal[W200]")
	assert.Contains(t, out, "--> class game/Bullet")
	assert.Contains(t, out, "during weave")

	all := FormatListForTerminal([]*WeaveError{err, err})
	assert.Contains(t, all, "2 errors, nothing written")
}
