package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/mwarner/jobscout/internal/model"
)

// Store persists the index as one JSON value. Save is a full overwrite —
// there is no partial/field-level persistence API. When the backing store is
// externally shared the contract is last-writer-wins.
type Store interface {
	// Load returns the persisted index, or a fresh empty index when none
	// has been written yet.
	Load(ctx context.Context) (*Index, error)
	// Save overwrites the whole persisted index.
	Save(ctx context.Context, ix *Index) error
}

// FileStore persists the index as a single JSON file. The default backend.
type FileStore struct {
	path string
}

// NewFileStore returns a store writing to path. Parent directories are
// created on first save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load(_ context.Context) (*Index, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading index file: %w", err)
	}
	return decode(data)
}

// Save writes to a temp file and renames, so readers never observe a
// half-written index.
func (s *FileStore) Save(_ context.Context, ix *Index) error {
	data, err := encode(ix)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating index dir: %w", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing index file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing index file: %w", err)
	}
	return nil
}

// MemoryStore keeps the index in memory. Used in dry-run mode and tests.
type MemoryStore struct {
	mu   sync.Mutex
	data []byte
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Load(_ context.Context) (*Index, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return New(), nil
	}
	return decode(s.data)
}

func (s *MemoryStore) Save(_ context.Context, ix *Index) error {
	data, err := encode(ix)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.data = data
	s.mu.Unlock()
	return nil
}

func encode(ix *Index) ([]byte, error) {
	data, err := json.MarshalIndent(ix, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding index: %w", err)
	}
	return data, nil
}

func decode(data []byte) (*Index, error) {
	var ix Index
	if err := json.Unmarshal(data, &ix); err != nil {
		return nil, fmt.Errorf("decoding index: %w", err)
	}
	if ix.Postings == nil {
		ix.Postings = make(map[string]*model.Posting)
	}
	return &ix, nil
}
