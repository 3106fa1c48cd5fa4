package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryStorage is a concurrency-safe in-memory object store. Objects are
// kept as JSON so that Get always returns an independent copy, matching the
// read-modify-write pattern the revision guard assumes.
type MemoryStorage struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{objects: make(map[string][]byte)}
}

func memKey(obj Object) string {
	return obj.Kind() + "/" + obj.ObjectID()
}

func (s *MemoryStorage) Get(ctx context.Context, obj Object) error {
	s.mu.RLock()
	data, ok := s.objects[memKey(obj)]
	s.mu.RUnlock()

	if !ok {
		return ErrNotFound
	}
	if err := json.Unmarshal(data, obj); err != nil {
		return fmt.Errorf("storage: decoding %s: %w", memKey(obj), err)
	}
	return nil
}

func (s *MemoryStorage) Save(ctx context.Context, obj Object) error {
	data, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("storage: encoding %s: %w", memKey(obj), err)
	}

	s.mu.Lock()
	s.objects[memKey(obj)] = data
	s.mu.Unlock()
	return nil
}

// SaveAll applies the writes under a single lock. Marshalling happens before
// the lock is taken, so an encoding failure leaves the store untouched.
func (s *MemoryStorage) SaveAll(ctx context.Context, objs ...Object) error {
	encoded := make(map[string][]byte, len(objs))
	for _, obj := range objs {
		data, err := json.Marshal(obj)
		if err != nil {
			return fmt.Errorf("storage: encoding %s: %w", memKey(obj), err)
		}
		encoded[memKey(obj)] = data
	}

	s.mu.Lock()
	for k, v := range encoded {
		s.objects[k] = v
	}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStorage) Delete(ctx context.Context, obj Object) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memKey(obj)
	if _, ok := s.objects[key]; !ok {
		return ErrNotFound
	}
	delete(s.objects, key)
	return nil
}
