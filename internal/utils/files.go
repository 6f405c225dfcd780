package utils

import (
	"io/fs"
	"path/filepath"
	"strings"
)

// StateDirName is the per-project directory holding weaver run state
const StateDirName = ".weaver"

// IsClassFile reports whether path names a compiled class file. Staging
// files written by the weaver are excluded.
func IsClassFile(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".weaver-") {
		return false
	}
	return filepath.Ext(base) == ".class"
}

// FindClassFiles recursively finds all .class files in the specified
// directory in lexical order, skipping the weaver state directory.
func FindClassFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if d.Name() == StateDirName && path != dir {
				return filepath.SkipDir
			}
			return nil
		}

		if IsClassFile(path) {
			files = append(files, path)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return files, nil
}
