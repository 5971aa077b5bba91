package output

import (
	"context"
	"sync"

	"github.com/pesio-ai/be-ap-reconciler/internal/errors"
)

// FileStore keeps records as JSON files and remembers where each run went
type FileStore struct {
	writer *FileWriter
	mu     sync.RWMutex
	paths  map[string]string
}

// NewFileStore creates a store writing through writer
func NewFileStore(writer *FileWriter) *FileStore {
	return &FileStore{writer: writer, paths: make(map[string]string)}
}

// Create writes rec to disk
func (s *FileStore) Create(ctx context.Context, rec *Record) error {
	path, err := s.writer.Write(rec)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.paths[rec.RunID] = path
	s.mu.Unlock()
	return nil
}

// GetByID reads back the record of a run written by this store
func (s *FileStore) GetByID(ctx context.Context, runID string) (*Record, error) {
	path, ok := s.PathOf(runID)
	if !ok {
		return nil, errors.NotFound("reconciliation", runID)
	}
	rec, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	if rec.RunID != runID {
		return nil, errors.NotFound("reconciliation", runID)
	}
	return rec, nil
}

// PathOf returns the file written for runID
func (s *FileStore) PathOf(runID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	path, ok := s.paths[runID]
	return path, ok
}
