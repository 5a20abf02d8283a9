package filesystem

import (
	"context"
	"designlink/core"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

type fsStore struct {
	basePath string
}

// NewStore creates a filesystem-backed store, one file per key.
func NewStore(basePath string) (*fsStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &fsStore{basePath: basePath}, nil
}

// keyPath maps a storage key to a file inside basePath. Keys are escaped so
// separators and colons never reach the filesystem.
func (s *fsStore) keyPath(key string) (string, error) {
	name := url.QueryEscape(key)
	if name == "" || name == "." || name == ".." {
		return "", fmt.Errorf("invalid storage key %q", key)
	}

	absBase, err := filepath.Abs(s.basePath)
	if err != nil {
		return "", err
	}
	absPath, err := filepath.Abs(filepath.Join(s.basePath, name))
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(absPath, absBase+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid path: access denied")
	}
	return absPath, nil
}

func (s *fsStore) Get(ctx context.Context, key string) ([]byte, error) {
	path, err := s.keyPath(key)
	if err != nil {
		return nil, err
	}
	log := logrus.WithFields(logrus.Fields{"key": key, "file_path": path})

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Debug("Key not found")
			return nil, core.ErrNotFound
		}
		log.WithError(err).Error("Failed to read value")
		return nil, err
	}
	return data, nil
}

// Put writes to a uniquely named temp file and renames it over the target,
// so readers never observe a half-written collection.
func (s *fsStore) Put(ctx context.Context, key string, data []byte) error {
	path, err := s.keyPath(key)
	if err != nil {
		return err
	}
	log := logrus.WithFields(logrus.Fields{"key": key, "file_path": path})

	tmp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+"."+ulid.Make().String()+".tmp")
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		log.WithError(err).Error("Failed to write temp file")
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		log.WithError(err).Error("Failed to replace value")
		return err
	}

	log.WithField("data_length", len(data)).Debug("Value stored")
	return nil
}

func (s *fsStore) Delete(ctx context.Context, key string) error {
	path, err := s.keyPath(key)
	if err != nil {
		return err
	}
	log := logrus.WithFields(logrus.Fields{"key": key, "file_path": path})

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			log.Debug("Key not found for deletion, considered successful.")
			return nil
		}
		log.WithError(err).Error("Failed to delete value")
		return err
	}

	log.Debug("Value deleted")
	return nil
}
