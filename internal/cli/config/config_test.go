package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ecspool/weaver/internal/metadata"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	oldWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(oldWd) })
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Input != "." {
		t.Errorf("Input = %q, want %q", cfg.Input, ".")
	}
	if cfg.Output != "" {
		t.Errorf("Output = %q, want empty", cfg.Output)
	}
	if cfg.Watch.Debounce != 200*time.Millisecond {
		t.Errorf("Watch.Debounce = %v, want 200ms", cfg.Watch.Debounce)
	}
	if cfg.Log.Format != "console" {
		t.Errorf("Log.Format = %q, want console", cfg.Log.Format)
	}
	if cfg.File != "" {
		t.Errorf("File = %q, want empty", cfg.File)
	}
	if got := cfg.ToConvention(); got != metadata.DefaultConvention() {
		t.Errorf("ToConvention() = %+v, want defaults", got)
	}
}

func TestLoad_FromFile(t *testing.T) {
	tmpDir := t.TempDir()
	chdir(t, tmpDir)

	content := `input: build/classes
output: build/woven
jobs: 4
convention:
  marker_annotation: Lgame/Pool;
  marker_interface: game/Poolable
  pooled_base: game/PooledBase
  reset_method: clear
watch:
  debounce: 1s
  ignore:
    - "*.tmp"
log:
  format: json
`
	if err := os.WriteFile("weaver.yml", []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Input != "build/classes" || cfg.Output != "build/woven" {
		t.Errorf("dirs = %q/%q", cfg.Input, cfg.Output)
	}
	if cfg.Jobs != 4 {
		t.Errorf("Jobs = %d, want 4", cfg.Jobs)
	}
	want := metadata.Convention{
		MarkerAnnotation: "Lgame/Pool;",
		MarkerInterface:  "game/Poolable",
		PooledBase:       "game/PooledBase",
		ResetMethod:      "clear",
	}
	if got := cfg.ToConvention(); got != want {
		t.Errorf("ToConvention() = %+v, want %+v", got, want)
	}
	if cfg.Watch.Debounce != time.Second {
		t.Errorf("Watch.Debounce = %v, want 1s", cfg.Watch.Debounce)
	}
	if len(cfg.Watch.Ignore) != 1 || cfg.Watch.Ignore[0] != "*.tmp" {
		t.Errorf("Watch.Ignore = %v", cfg.Watch.Ignore)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want json", cfg.Log.Format)
	}
	if filepath.Base(cfg.File) != "weaver.yml" {
		t.Errorf("File = %q, want weaver.yml", cfg.File)
	}
}

func TestLoad_ExplicitPath(t *testing.T) {
	tmpDir := t.TempDir()
	chdir(t, tmpDir)

	path := filepath.Join(tmpDir, "custom.yaml")
	if err := os.WriteFile(path, []byte("jobs: 2\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Jobs != 2 {
		t.Errorf("Jobs = %d, want 2", cfg.Jobs)
	}

	if _, err := Load(filepath.Join(tmpDir, "missing.yaml")); err == nil {
		t.Error("Load() of a missing explicit path should fail")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("WEAVER_JOBS", "8")
	t.Setenv("WEAVER_CONVENTION_POOLED_BASE", "game/Base")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Jobs != 8 {
		t.Errorf("Jobs = %d, want 8", cfg.Jobs)
	}
	if cfg.Convention.PooledBase != "game/Base" {
		t.Errorf("PooledBase = %q, want game/Base", cfg.Convention.PooledBase)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"negative jobs", "jobs: -1\n"},
		{"bad log format", "log:\n  format: xml\n"},
		{"bad marker", "convention:\n  marker_annotation: Pooled\n"},
		{"empty reset", "convention:\n  reset_method: \"\"\n"},
		{"broken yaml", "jobs: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chdir(t, t.TempDir())
			if err := os.WriteFile("weaver.yml", []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(""); err == nil {
				t.Error("Load() should have failed")
			}
		})
	}
}

func TestWrite_RoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	chdir(t, tmpDir)

	cfg := Default()
	cfg.Input = "out/classes"
	cfg.Jobs = 3
	cfg.Convention.MarkerInterface = "game/Poolable"
	cfg.Watch.Debounce = 500 * time.Millisecond

	if err := Write("weaver.yml", cfg); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if !InProject() {
		t.Error("InProject() = false after writing weaver.yml")
	}

	loaded, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Input != cfg.Input || loaded.Jobs != cfg.Jobs {
		t.Errorf("loaded = %+v, want %+v", loaded, cfg)
	}
	if loaded.ToConvention() != cfg.ToConvention() {
		t.Errorf("convention = %+v, want %+v", loaded.ToConvention(), cfg.ToConvention())
	}
	if loaded.Watch.Debounce != cfg.Watch.Debounce {
		t.Errorf("debounce = %v, want %v", loaded.Watch.Debounce, cfg.Watch.Debounce)
	}
}

func TestGetProjectRoot(t *testing.T) {
	tmpDir := t.TempDir()
	// macOS temp dirs resolve through /private
	tmpDir, err := filepath.EvalSymlinks(tmpDir)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, "weaver.yaml"), []byte("jobs: 1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(tmpDir, "build", "classes")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	chdir(t, nested)

	root, err := GetProjectRoot()
	if err != nil {
		t.Fatalf("GetProjectRoot() error = %v", err)
	}
	if root != tmpDir {
		t.Errorf("GetProjectRoot() = %q, want %q", root, tmpDir)
	}
	if InProject() {
		t.Error("InProject() should be false in a nested directory")
	}
}
