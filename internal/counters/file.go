// Package counters persists the local counters structure: the stat sets,
// admin sessions and the accommodation-initiated set. Two backends exist,
// a JSON file and Redis sets.
package counters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Shivanand-hulikatti/gathering-registration/internal/model"
)

// FileStore keeps the counters in one JSON document.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the document. A missing file yields empty counters.
func (s *FileStore) Load(_ context.Context) (model.Counters, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return model.Counters{}, nil
	}
	if err != nil {
		return model.Counters{}, fmt.Errorf("read counters: %w", err)
	}

	var c model.Counters
	if err := json.Unmarshal(data, &c); err != nil {
		return model.Counters{}, fmt.Errorf("decode counters %s: %w", s.path, err)
	}
	return c, nil
}

// Save replaces the document. The new content is written to a temporary
// file in the same directory and renamed over the old one.
func (s *FileStore) Save(_ context.Context, c model.Counters) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encode counters: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp counters file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write counters: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync counters: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close counters: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace counters: %w", err)
	}
	return nil
}
