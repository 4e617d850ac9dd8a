package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"lora-studio-backend/internal/store"
)

const uniqueViolation = "23505"

// PostgresTable stores one logical table as rows of the shared documents
// table, keyed by (table_name, id) with the record body in JSONB.
type PostgresTable struct {
	db   *sql.DB
	spec store.TableSpec
	now  func() time.Time
}

func NewPostgresTable(db *sql.DB, spec store.TableSpec) *PostgresTable {
	return &PostgresTable{db: db, spec: spec, now: time.Now}
}

func (t *PostgresTable) Name() string {
	return t.spec.Name
}

func (t *PostgresTable) Get(ctx context.Context, key string) (store.Document, error) {
	var raw []byte
	err := t.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE table_name = $1 AND id = $2`,
		t.spec.Name, key,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s/%s: %w", t.spec.Name, key, err)
	}
	return decodeDocument(raw)
}

func (t *PostgresTable) Create(ctx context.Context, doc store.Document) (store.Document, error) {
	now := t.now()
	record, err := store.PrepareCreate(doc, now)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}

	res, err := t.db.ExecContext(ctx, `
		INSERT INTO documents (table_name, id, data, created_at, updated_at)
		VALUES ($1, $2, $3::jsonb, $4, $4)
		ON CONFLICT (table_name, id) DO NOTHING
	`, t.spec.Name, record.String(store.FieldID), string(raw), now.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrAlreadyExists
		}
		return nil, fmt.Errorf("failed to create %s record: %w", t.spec.Name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, store.ErrAlreadyExists
	}
	return record, nil
}

func (t *PostgresTable) Update(ctx context.Context, key string, fields store.Document) (store.Document, error) {
	now := t.now()
	changes := store.PrepareUpdate(fields, now)
	raw, err := json.Marshal(changes)
	if err != nil {
		return nil, fmt.Errorf("failed to encode update: %w", err)
	}

	var out []byte
	err = t.db.QueryRowContext(ctx, `
		UPDATE documents
		SET data = data || $3::jsonb, updated_at = $4
		WHERE table_name = $1 AND id = $2
		RETURNING data
	`, t.spec.Name, key, string(raw), now.UTC()).Scan(&out)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrAlreadyExists
		}
		return nil, fmt.Errorf("failed to update %s/%s: %w", t.spec.Name, key, err)
	}
	return decodeDocument(out)
}

func (t *PostgresTable) Delete(ctx context.Context, key string) error {
	res, err := t.db.ExecContext(ctx,
		`DELETE FROM documents WHERE table_name = $1 AND id = $2`,
		t.spec.Name, key,
	)
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", t.spec.Name, key, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (t *PostgresTable) QueryByIndex(ctx context.Context, index, value string) ([]store.Document, error) {
	field, ok := t.spec.Field(index)
	if !ok {
		return nil, fmt.Errorf("%w %q on %s", store.ErrUnknownIndex, index, t.spec.Name)
	}
	rows, err := t.db.QueryContext(ctx,
		`SELECT data FROM documents WHERE table_name = $1 AND data->>$2 = $3`,
		t.spec.Name, field, value,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s by %s: %w", t.spec.Name, index, err)
	}
	return collect(rows, nil)
}

func (t *PostgresTable) Scan(ctx context.Context, filter store.Filter) ([]store.Document, error) {
	rows, err := t.db.QueryContext(ctx,
		`SELECT data FROM documents WHERE table_name = $1`,
		t.spec.Name,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", t.spec.Name, err)
	}
	return collect(rows, filter)
}

func (t *PostgresTable) Increment(ctx context.Context, key, field string, delta int) (store.Document, error) {
	now := t.now()
	var out []byte
	err := t.db.QueryRowContext(ctx, `
		UPDATE documents
		SET data = jsonb_set(
				data || jsonb_build_object('updatedAt', $5::text),
				ARRAY[$3::text],
				to_jsonb(COALESCE((data->>$3)::numeric, 0) + $4)
			),
			updated_at = $6
		WHERE table_name = $1 AND id = $2
		RETURNING data
	`, t.spec.Name, key, field, delta, store.Stamp(now), now.UTC()).Scan(&out)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to increment %s/%s.%s: %w", t.spec.Name, key, field, err)
	}
	return decodeDocument(out)
}

func collect(rows *sql.Rows, filter store.Filter) ([]store.Document, error) {
	defer rows.Close()

	out := make([]store.Document, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		doc, err := decodeDocument(raw)
		if err != nil {
			return nil, err
		}
		if filter == nil || filter(doc) {
			out = append(out, doc)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}
	return out, nil
}

func decodeDocument(raw []byte) (store.Document, error) {
	var doc store.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return doc, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
