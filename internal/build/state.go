package build

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/ecspool/weaver/internal/metadata"
	"github.com/ecspool/weaver/internal/utils"
)

// StateFileName is the run state file inside the state directory
const StateFileName = "state.cbor"

var stateEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("build: failed to create CBOR enc mode: %v", err))
	}
	stateEncMode = em
}

// State records the outcome of the last successful run
type State struct {
	// Version is the weaver version that produced the state
	Version string `cbor:"1,keyasint"`
	RunID   string `cbor:"2,keyasint"`
	// ConfigHash fingerprints the convention the outputs were woven with
	ConfigHash string `cbor:"3,keyasint"`
	// FileHashes maps output paths to the SHA-256 of their bytes
	FileHashes map[string]string `cbor:"4,keyasint"`
	Timestamp  time.Time         `cbor:"5,keyasint"`
}

// StatePath returns the state file location for a project directory
func StatePath(dir string) string {
	return filepath.Join(dir, utils.StateDirName, StateFileName)
}

// LoadState loads run state from .weaver/state.cbor. A missing file yields
// an empty state.
func LoadState(dir string) (*State, error) {
	data, err := os.ReadFile(StatePath(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return &State{FileHashes: make(map[string]string)}, nil
		}
		return nil, fmt.Errorf("failed to read run state: %w", err)
	}

	var state State
	if err := cbor.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to decode run state: %w", err)
	}
	if state.FileHashes == nil {
		state.FileHashes = make(map[string]string)
	}
	return &state, nil
}

// Save persists the state atomically
func (s *State) Save(dir string) error {
	stateDir := filepath.Join(dir, utils.StateDirName)
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", utils.StateDirName, err)
	}

	data, err := stateEncMode.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode run state: %w", err)
	}

	statePath := StatePath(dir)
	tmpPath := statePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp state file: %w", err)
	}
	if err := os.Rename(tmpPath, statePath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save run state: %w", err)
	}
	return nil
}

// Changed returns the paths whose current hash differs from the recorded
// one, including paths the state has never seen, in lexical order.
func (s *State) Changed(hashes map[string]string) []string {
	var changed []string
	for path, hash := range hashes {
		if s.FileHashes[path] != hash {
			changed = append(changed, path)
		}
	}
	sort.Strings(changed)
	return changed
}

// ConfigHash fingerprints a convention so a state written under different
// names is recognized as stale.
func ConfigHash(conv metadata.Convention) string {
	data, err := stateEncMode.Marshal(conv)
	if err != nil {
		return ""
	}
	return metadata.HashData(data)
}
