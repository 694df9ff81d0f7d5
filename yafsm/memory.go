package yafsm

import (
	"context"
	"maps"
	"sync"

	"github.com/YaCodeDev/GoVKTeamsBot/yaerrors"
)

type memoryRecord struct {
	state string
	data  map[string]any
}

func (r *memoryRecord) empty() bool {
	return r.state == NoState && len(r.data) == 0
}

// MemoryStorage is the volatile reference Storage. Records are created
// lazily on first write and dropped again as soon as they are cleared, so a
// cleared record is literally indistinguishable from one that never existed.
//
// Safe for concurrent use; suitable for development, tests, and
// single-process bots.
type MemoryStorage struct {
	mutex   sync.RWMutex
	records map[StorageKey]*memoryRecord
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{records: make(map[StorageKey]*memoryRecord)}
}

func (m *MemoryStorage) record(key StorageKey) *memoryRecord {
	rec, ok := m.records[key]
	if !ok {
		rec = &memoryRecord{}
		m.records[key] = rec
	}

	return rec
}

func (m *MemoryStorage) SetState(
	_ context.Context,
	key StorageKey,
	state string,
) yaerrors.Error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	rec := m.record(key)
	rec.state = state

	if rec.empty() {
		delete(m.records, key)
	}

	return nil
}

func (m *MemoryStorage) GetState(
	_ context.Context,
	key StorageKey,
) (string, yaerrors.Error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	rec, ok := m.records[key]
	if !ok {
		return NoState, nil
	}

	return rec.state, nil
}

func (m *MemoryStorage) SetData(
	_ context.Context,
	key StorageKey,
	data map[string]any,
) yaerrors.Error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	rec := m.record(key)
	rec.data = maps.Clone(data)

	if rec.empty() {
		delete(m.records, key)
	}

	return nil
}

func (m *MemoryStorage) GetData(
	_ context.Context,
	key StorageKey,
) (map[string]any, yaerrors.Error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	rec, ok := m.records[key]
	if !ok || rec.data == nil {
		return map[string]any{}, nil
	}

	return maps.Clone(rec.data), nil
}

// Close drops every record.
func (m *MemoryStorage) Close() yaerrors.Error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	clear(m.records)

	return nil
}
