// Package store is the record store gateway: a small document-table
// contract shared by every resource, plus the in-memory backend.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrAlreadyExists = errors.New("record already exists")
	ErrUnknownIndex  = errors.New("unknown index")
)

// Document is a flat record addressed by its "id" field.
type Document map[string]any

func (d Document) String(field string) string {
	s, _ := d[field].(string)
	return s
}

func (d Document) Int(field string) int {
	switch v := d[field].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	case json.Number:
		n, _ := v.Int64()
		return int(n)
	}
	return 0
}

// Filter selects documents during a scan.
type Filter func(Document) bool

// Table is a single document table keyed by "id".
type Table interface {
	Name() string
	// Get returns (nil, nil) when key is absent.
	Get(ctx context.Context, key string) (Document, error)
	// Create fails with ErrAlreadyExists when the id is taken.
	Create(ctx context.Context, doc Document) (Document, error)
	// Update merges fields into the record and fails with ErrNotFound when absent.
	Update(ctx context.Context, key string, fields Document) (Document, error)
	Delete(ctx context.Context, key string) error
	QueryByIndex(ctx context.Context, index, value string) ([]Document, error)
	// Scan walks the whole table. It is O(n) and not meant for hot paths.
	Scan(ctx context.Context, filter Filter) ([]Document, error)
	// Increment atomically adds delta to a numeric field.
	Increment(ctx context.Context, key, field string, delta int) (Document, error)
}

const (
	FieldID        = "id"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

// Stamp formats t the way every record timestamp is stored.
func Stamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// PrepareCreate copies doc, checks the id and assigns both timestamps,
// discarding whatever the caller supplied.
func PrepareCreate(doc Document, now time.Time) (Document, error) {
	out := normalize(doc)
	id, _ := out[FieldID].(string)
	if id == "" {
		return nil, fmt.Errorf("record has no %q", FieldID)
	}
	ts := Stamp(now)
	out[FieldCreatedAt] = ts
	out[FieldUpdatedAt] = ts
	return out, nil
}

// PrepareUpdate copies fields, strips the immutable ones and stamps updatedAt.
func PrepareUpdate(fields Document, now time.Time) Document {
	out := normalize(fields)
	delete(out, FieldID)
	delete(out, FieldCreatedAt)
	out[FieldUpdatedAt] = Stamp(now)
	return out
}

// Encode converts a typed record into a Document.
func Encode(v any) (Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	return doc, nil
}

// Decode fills v from a Document.
func Decode(doc Document, v any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to decode record: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode record: %w", err)
	}
	return nil
}

// DecodeAll decodes a list of documents into a slice of T.
func DecodeAll[T any](docs []Document) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		var v T
		if err := Decode(doc, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// normalize deep-copies a document through JSON so every backend hands
// back the same value types (float64 numbers, map[string]any objects).
func normalize(doc Document) Document {
	if doc == nil {
		return Document{}
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		out := make(Document, len(doc))
		for k, v := range doc {
			out[k] = v
		}
		return out
	}
	var out Document
	_ = json.Unmarshal(raw, &out)
	return out
}

// Clone returns a deep copy of doc.
func Clone(doc Document) Document {
	if doc == nil {
		return nil
	}
	return normalize(doc)
}
