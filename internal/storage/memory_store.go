package storage

import (
	"context"
	"sync"

	"quest-server/internal/models"
)

var _ SessionStore = (*MemoryStore)(nil)

// MemoryStore хранит закодированные записи в памяти процесса.
type MemoryStore struct {
	mu      sync.RWMutex
	codec   *Codec
	records map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{codec: MustCodec(), records: make(map[string][]byte)}
}

func (s *MemoryStore) Load(_ context.Context, wallet string) (*models.SessionRecord, error) {
	s.mu.RLock()
	payload, ok := s.records[models.StorageKey(wallet)]
	s.mu.RUnlock()
	if !ok {
		return nil, models.ErrNotFound
	}
	return s.codec.Decode(payload)
}

func (s *MemoryStore) Save(_ context.Context, wallet string, rec *models.SessionRecord) error {
	payload, err := s.codec.Encode(rec)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.records[models.StorageKey(wallet)] = payload
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, wallet string) error {
	s.mu.Lock()
	delete(s.records, models.StorageKey(wallet))
	s.mu.Unlock()
	return nil
}

// Keys возвращает ключи сохраненных записей.
func (s *MemoryStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.records))
	for k := range s.records {
		keys = append(keys, k)
	}
	return keys
}

// PutRaw кладет сырые байты под ключом кошелька.
func (s *MemoryStore) PutRaw(wallet string, payload []byte) {
	s.mu.Lock()
	s.records[models.StorageKey(wallet)] = payload
	s.mu.Unlock()
}
