package blob

import (
	"context"
	"sync"
)

// MemoryStore keeps blobs in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	vaults map[string]map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{vaults: make(map[string]map[string][]byte)}
}

func (s *MemoryStore) Put(ctx context.Context, vaultID, id string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.vaults[vaultID]
	if !ok {
		v = make(map[string][]byte)
		s.vaults[vaultID] = v
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	v[id] = buf
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, vaultID, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.vaults[vaultID][id]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (s *MemoryStore) Delete(ctx context.Context, vaultID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.vaults[vaultID][id]; !ok {
		return ErrNotFound
	}
	delete(s.vaults[vaultID], id)
	return nil
}

func (s *MemoryStore) Usage(ctx context.Context, vaultID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for _, data := range s.vaults[vaultID] {
		total += int64(len(data))
	}
	return total, nil
}

func (s *MemoryStore) DeleteAll(ctx context.Context, vaultID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.vaults, vaultID)
	return nil
}
