package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryBackend is an in-process Backend used for local runs and tests.
type MemoryBackend struct {
	mu          sync.Mutex
	seq         int64
	collections map[string]map[string]*memoryEntry
	now         func() time.Time
}

type memoryEntry struct {
	doc       Record
	seq       int64
	createdAt time.Time
	updatedAt time.Time
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		collections: make(map[string]map[string]*memoryEntry),
		now:         time.Now,
	}
}

func (b *MemoryBackend) collection(name string) (map[string]*memoryEntry, error) {
	if !knownCollection(name) {
		return nil, ErrUnknownCollection
	}
	entries, ok := b.collections[name]
	if !ok {
		entries = make(map[string]*memoryEntry)
		b.collections[name] = entries
	}
	return entries, nil
}

func (e *memoryEntry) record(id string) Record {
	return withColumns(copyRecord(e.doc), id, e.createdAt, e.updatedAt)
}

func (b *MemoryBackend) Get(ctx context.Context, collection, id string) (Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries, err := b.collection(collection)
	if err != nil {
		return nil, err
	}
	entry, ok := entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	return entry.record(id), nil
}

func (b *MemoryBackend) List(ctx context.Context, collection string, filter Filter) ([]Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries, err := b.collection(collection)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(entries))
	for id, entry := range entries {
		if matchesFilter(entry.doc, filter) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		return entries[ids[i]].seq < entries[ids[j]].seq
	})

	records := make([]Record, 0, len(ids))
	for _, id := range ids {
		records = append(records, entries[id].record(id))
	}
	return records, nil
}

func (b *MemoryBackend) Create(ctx context.Context, collection string, record Record) (Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries, err := b.collection(collection)
	if err != nil {
		return nil, err
	}

	id, _ := record[KeyID].(string)
	if strings.TrimSpace(id) == "" {
		id = uuid.NewString()
	}
	if _, exists := entries[id]; exists {
		return nil, fmt.Errorf("duplicate id %q in %s", id, collection)
	}

	b.seq++
	now := b.now().UTC()
	entry := &memoryEntry{doc: copyRecord(documentFields(record)), seq: b.seq, createdAt: now, updatedAt: now}
	entries[id] = entry
	return entry.record(id), nil
}

func (b *MemoryBackend) Update(ctx context.Context, collection, id string, fields Record) (Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries, err := b.collection(collection)
	if err != nil {
		return nil, err
	}
	entry, ok := entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	for key, value := range copyRecord(documentFields(fields)) {
		entry.doc[key] = value
	}
	entry.updatedAt = b.now().UTC()
	return entry.record(id), nil
}

func (b *MemoryBackend) Delete(ctx context.Context, collection, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries, err := b.collection(collection)
	if err != nil {
		return err
	}
	if _, ok := entries[id]; !ok {
		return ErrNotFound
	}
	delete(entries, id)
	return nil
}

func (b *MemoryBackend) Increment(ctx context.Context, collection, id, field string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries, err := b.collection(collection)
	if err != nil {
		return 0, err
	}
	entry, ok := entries[id]
	if !ok {
		return 0, ErrNotFound
	}
	value := counterValue(entry.doc[field]) + 1
	entry.doc[field] = float64(value)
	entry.updatedAt = b.now().UTC()
	return value, nil
}

func (b *MemoryBackend) Close() error {
	return nil
}

func matchesFilter(doc Record, filter Filter) bool {
	for key, want := range filter {
		value, ok := doc[key]
		if !ok || value == nil {
			return false
		}
		if fmt.Sprint(value) != want {
			return false
		}
	}
	return true
}

// copyRecord round-trips through RecordOf so stored documents never alias
// caller-owned maps or slices.
func copyRecord(record Record) Record {
	copied, err := RecordOf(record)
	if err != nil || copied == nil {
		return Record{}
	}
	return copied
}
