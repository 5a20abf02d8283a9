package memory

import (
	"context"
	"designlink/core"
	"sync"

	"github.com/sirupsen/logrus"
)

// memStore keeps values in a process-local map. Nothing survives a restart.
type memStore struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewStore creates a new in-memory store.
func NewStore() *memStore {
	return &memStore{values: make(map[string][]byte)}
}

func (s *memStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	val, ok := s.values[key]
	if !ok {
		logrus.WithField("key", key).Debug("Key not found")
		return nil, core.ErrNotFound
	}
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (s *memStore) Put(ctx context.Context, key string, data []byte) error {
	val := make([]byte, len(data))
	copy(val, data)

	s.mu.Lock()
	s.values[key] = val
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"key":         key,
		"data_length": len(data),
	}).Debug("Value stored")
	return nil
}

func (s *memStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.values, key)
	s.mu.Unlock()

	logrus.WithField("key", key).Debug("Value deleted")
	return nil
}
