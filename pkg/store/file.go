package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/laptime/pkg/predictor"
)

// FileStore keeps each bundle in its own JSON file
type FileStore struct {
	log logrus.FieldLogger
	dir string
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a file store rooted at dir. An empty dir resolves
// keys against the working directory.
func NewFileStore(log logrus.FieldLogger, dir string) *FileStore {
	return &FileStore{
		log: log.WithField("component", "file_store"),
		dir: dir,
	}
}

// Path returns the file a key is stored in
func (s *FileStore) Path(key string) string {
	if s.dir == "" || filepath.IsAbs(key) {
		return key
	}

	return filepath.Join(s.dir, key)
}

// Save writes the bundle, replacing any previous file atomically
func (s *FileStore) Save(_ context.Context, key string, b *predictor.Bundle) (err error) {
	defer func() { record(BackendFile, "save", err) }()

	if err := checkKey(key); err != nil {
		return err
	}

	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to encode bundle: %w", err)
	}

	path := s.Path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write bundle: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write bundle: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move bundle into place: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"path":     path,
		"model_id": b.ID,
	}).Info("Saved model bundle")

	return nil
}

// Load reads the bundle stored under key
func (s *FileStore) Load(_ context.Context, key string) (b *predictor.Bundle, err error) {
	defer func() { record(BackendFile, "load", err) }()

	if err := checkKey(key); err != nil {
		return nil, err
	}

	path := s.Path(key)

	data, err := os.ReadFile(path) //nolint:gosec // User-provided model path
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}

		return nil, fmt.Errorf("failed to read bundle: %w", err)
	}

	var bundle predictor.Bundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return nil, fmt.Errorf("failed to decode bundle %s: %w", path, err)
	}

	return &bundle, nil
}

// Delete removes the bundle stored under key
func (s *FileStore) Delete(_ context.Context, key string) (err error) {
	defer func() { record(BackendFile, "delete", err) }()

	if err := checkKey(key); err != nil {
		return err
	}

	path := s.Path(key)

	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		}

		return fmt.Errorf("failed to delete bundle: %w", err)
	}

	return nil
}
