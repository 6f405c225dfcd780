package ui

import (
	"bytes"
	"strings"
	"testing"
)

func TestFormatError(t *testing.T) {
	tests := []struct {
		name     string
		opts     ErrorOptions
		contains []string
		excludes []string
	}{
		{
			name: "with context",
			opts: ErrorOptions{
				Level:   ErrorLevelError,
				Context: "class not found",
				Problem: "game/Bulet",
			},
			contains: []string{"✗ CLASS NOT FOUND: game/Bulet\n"},
			excludes: []string{"Did you mean", "→"},
		},
		{
			name: "without context",
			opts: ErrorOptions{
				Level:   ErrorLevelWarning,
				Problem: "state file ignored",
			},
			contains: []string{"! state file ignored\n"},
		},
		{
			name: "full",
			opts: ErrorOptions{
				Level:        ErrorLevelError,
				Context:      "WEAVE FAILED",
				Problem:      "2 errors",
				Consequence:  "Nothing written.",
				Suggestions:  []string{"a", "b"},
				HelpCommands: []string{"first", "second"},
			},
			contains: []string{
				"   Nothing written.\n",
				"   Did you mean: a, b?\n",
				"   → first\n",
				"   → second\n",
			},
		},
		{
			name:     "info",
			opts:     ErrorOptions{Level: ErrorLevelInfo, Problem: "watching"},
			contains: []string{"i watching"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.NoColor = true
			output := FormatError(tt.opts)
			for _, want := range tt.contains {
				if !strings.Contains(output, want) {
					t.Errorf("output missing %q:\n%s", want, output)
				}
			}
			for _, unwanted := range tt.excludes {
				if strings.Contains(output, unwanted) {
					t.Errorf("output should not contain %q:\n%s", unwanted, output)
				}
			}
		})
	}
}

func TestWriteSuccess(t *testing.T) {
	var buf bytes.Buffer
	WriteSuccess(&buf, "Wove 3 classes", true)

	want := "✓ Wove 3 classes\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestCannedMessages(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   []string
	}{
		{"class not found", ClassNotFoundError("game/Bulet", []string{"game/Bullet"}, true),
			[]string{"CLASS NOT FOUND: game/Bulet", "Did you mean: game/Bullet?", "weaver inspect"}},
		{"weave failed single", WeaveFailedError(1, true), []string{"WEAVE FAILED: 1 error\n", "No class files were modified."}},
		{"weave failed plural", WeaveFailedError(3, true), []string{"WEAVE FAILED: 3 errors\n"}},
		{"verify failed", VerifyFailedError(2, true), []string{"VERIFY FAILED: 2 violation(s)", "weaver weave"}},
		{"config", ConfigError("jobs must not be negative", true), []string{"CONFIGURATION ERROR", "weaver init"}},
		{"warning", Warning("careful", true), []string{"! careful"}},
		{"info", Info("hello", true), []string{"i hello"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, want := range tt.want {
				if !strings.Contains(tt.output, want) {
					t.Errorf("output missing %q:\n%s", want, tt.output)
				}
			}
		})
	}
}
