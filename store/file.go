package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// File is a filesystem-backed Store. Each (pipeline, stage) key maps to one
// JSON document under the base directory; writes go through a temp file and
// an atomic rename so readers never observe a partial snapshot.
type File struct {
	basePath string
	mu       sync.Mutex
}

type fileState struct {
	Value     json.RawMessage `json:"value"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewFile creates a file store rooted at basePath, creating it if needed.
func NewFile(basePath string) (*File, error) {
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("store: resolve base path: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("store: create base directory: %w", err)
	}
	return &File{basePath: abs}, nil
}

// Get reads the stored state for a (pipeline, stage) key. The returned value
// is json.RawMessage; use Decode to unmarshal it.
func (f *File) Get(_ context.Context, pipelineID, stageID string) (StoredState, bool, error) {
	data, err := os.ReadFile(f.path(pipelineID, stageID))
	if err != nil {
		if os.IsNotExist(err) {
			return StoredState{}, false, nil
		}
		return StoredState{}, false, fmt.Errorf("store: read state file: %w", err)
	}

	var fs fileState
	if err := json.Unmarshal(data, &fs); err != nil {
		return StoredState{}, false, fmt.Errorf("store: parse state file: %w", err)
	}
	return StoredState{Value: fs.Value, Timestamp: fs.Timestamp}, true, nil
}

// Put serializes the value to JSON and writes it atomically.
func (f *File) Put(_ context.Context, pipelineID, stageID string, value any, ts time.Time) error {
	raw, err := marshalValue(value)
	if err != nil {
		return err
	}
	data, err := json.Marshal(fileState{Value: raw, Timestamp: ts})
	if err != nil {
		return fmt.Errorf("store: marshal state: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	path := f.path(pipelineID, stageID)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("store: create state directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		return fmt.Errorf("store: write state file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("store: commit state file: %w", err)
	}
	return nil
}

func (f *File) path(pipelineID, stageID string) string {
	return filepath.Join(f.basePath, safeComponent(pipelineID), safeComponent(stageID)+".json")
}

// safeComponent maps a key component to a single, portable file name.
// Separators, colons, and other unsafe runes become underscores, so no id
// can traverse outside basePath; ids that differ only in unsafe runes share
// a file.
func safeComponent(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := b.String()
	if strings.Trim(out, ".") == "" {
		return "_"
	}
	return out
}
