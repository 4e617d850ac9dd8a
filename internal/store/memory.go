package store

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryTable keeps documents in a map guarded by a RWMutex.
type MemoryTable struct {
	spec TableSpec
	now  func() time.Time

	mu   sync.RWMutex
	docs map[string]Document
}

func NewMemoryTable(spec TableSpec) *MemoryTable {
	return &MemoryTable{
		spec: spec,
		now:  time.Now,
		docs: make(map[string]Document),
	}
}

// WithClock replaces the timestamp source.
func (t *MemoryTable) WithClock(now func() time.Time) *MemoryTable {
	t.now = now
	return t
}

func (t *MemoryTable) Name() string {
	return t.spec.Name
}

func (t *MemoryTable) Get(_ context.Context, key string) (Document, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	doc, ok := t.docs[key]
	if !ok {
		return nil, nil
	}
	return Clone(doc), nil
}

func (t *MemoryTable) Create(_ context.Context, doc Document) (Document, error) {
	record, err := PrepareCreate(doc, t.now())
	if err != nil {
		return nil, err
	}
	key := record.String(FieldID)

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.docs[key]; exists {
		return nil, ErrAlreadyExists
	}
	t.docs[key] = record
	return Clone(record), nil
}

func (t *MemoryTable) Update(_ context.Context, key string, fields Document) (Document, error) {
	changes := PrepareUpdate(fields, t.now())

	t.mu.Lock()
	defer t.mu.Unlock()

	current, ok := t.docs[key]
	if !ok {
		return nil, ErrNotFound
	}
	merged := Clone(current)
	for k, v := range changes {
		merged[k] = v
	}
	t.docs[key] = merged
	return Clone(merged), nil
}

func (t *MemoryTable) Delete(_ context.Context, key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.docs[key]; !ok {
		return ErrNotFound
	}
	delete(t.docs, key)
	return nil
}

func (t *MemoryTable) QueryByIndex(ctx context.Context, index, value string) ([]Document, error) {
	field, ok := t.spec.Field(index)
	if !ok {
		return nil, fmt.Errorf("%w %q on %s", ErrUnknownIndex, index, t.spec.Name)
	}
	return t.Scan(ctx, func(doc Document) bool {
		return doc.String(field) == value
	})
}

func (t *MemoryTable) Scan(_ context.Context, filter Filter) ([]Document, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Document, 0)
	for _, doc := range t.docs {
		if filter == nil || filter(doc) {
			out = append(out, Clone(doc))
		}
	}
	return out, nil
}

func (t *MemoryTable) Increment(_ context.Context, key, field string, delta int) (Document, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	current, ok := t.docs[key]
	if !ok {
		return nil, ErrNotFound
	}
	updated := Clone(current)
	updated[field] = float64(current.Int(field) + delta)
	updated[FieldUpdatedAt] = Stamp(t.now())
	t.docs[key] = updated
	return Clone(updated), nil
}
