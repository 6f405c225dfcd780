// Package output validates woven classes and writes them to disk.
package output

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	werrors "github.com/ecspool/weaver/internal/errors"
	"github.com/ecspool/weaver/internal/weave"
)

// tempPattern names staging files; utils.IsClassFile never matches them
const tempPattern = ".weaver-*.tmp"

// Writer writes results in place or mirrored under an output directory
type Writer struct {
	inputDir  string
	outputDir string
	logger    *zap.Logger
}

// NewWriter creates a writer. An empty outputDir writes in place.
func NewWriter(inputDir, outputDir string, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{inputDir: inputDir, outputDir: outputDir, logger: logger}
}

// Target returns the destination of an input file
func (w *Writer) Target(path string) (string, error) {
	if w.outputDir == "" {
		return path, nil
	}
	rel, err := filepath.Rel(w.inputDir, path)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside the input directory %s", path, w.inputDir)
	}
	return filepath.Join(w.outputDir, rel), nil
}

type staged struct {
	tmp    string
	target string
	class  string
}

// Write stages every file that must change into a temp file next to its
// destination, then renames them all into place. Unchanged classes are
// skipped in place and copied when mirroring. If staging fails nothing is
// renamed. It returns the destinations written.
func (w *Writer) Write(results []*weave.Result) ([]string, error) {
	var pending []staged
	cleanup := func() {
		for _, s := range pending {
			os.Remove(s.tmp)
		}
	}

	for _, res := range results {
		if !res.Woven && w.outputDir == "" {
			continue
		}
		target, err := w.Target(res.Path)
		if err != nil {
			cleanup()
			return nil, werrors.NewWriteFailed(res.Class, res.Path, err)
		}
		if existing, err := os.ReadFile(target); err == nil && bytes.Equal(existing, res.Data) {
			continue
		}
		tmp, err := stage(target, res.Data, modeOf(res.Path))
		if err != nil {
			cleanup()
			return nil, werrors.NewWriteFailed(res.Class, target, err)
		}
		pending = append(pending, staged{tmp: tmp, target: target, class: res.Class})
	}

	written := make([]string, 0, len(pending))
	for i, s := range pending {
		if err := os.Rename(s.tmp, s.target); err != nil {
			for _, rest := range pending[i:] {
				os.Remove(rest.tmp)
			}
			return written, werrors.NewWriteFailed(s.class, s.target, err)
		}
		written = append(written, s.target)
		w.logger.Debug("wrote class", zap.String("class", s.class), zap.String("path", s.target))
	}
	return written, nil
}

func stage(target string, data []byte, mode os.FileMode) (string, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	f, err := os.CreateTemp(filepath.Dir(target), tempPattern)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(f.Name(), mode); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to set file mode: %w", err)
	}
	return f.Name(), nil
}

func modeOf(path string) os.FileMode {
	if info, err := os.Stat(path); err == nil {
		return info.Mode().Perm()
	}
	return 0644
}
