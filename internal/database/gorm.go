package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
	"lora-studio-backend/internal/store"
)

type documentRow struct {
	Collection string         `gorm:"primaryKey;size:128"`
	ID         string         `gorm:"primaryKey;size:64"`
	Data       datatypes.JSON `gorm:"not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (documentRow) TableName() string {
	return "documents"
}

// OpenSQLite opens (and migrates) a pure-Go sqlite database at path.
func OpenSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sqlite handle: %w", err)
	}
	// sqlite allows one writer; a single connection serializes access.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&documentRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate sqlite: %w", err)
	}
	return db, nil
}

// GormTable is the gorm-backed Table used with the embedded sqlite store.
type GormTable struct {
	db   *gorm.DB
	spec store.TableSpec
	now  func() time.Time
}

func NewGormTable(db *gorm.DB, spec store.TableSpec) *GormTable {
	return &GormTable{db: db, spec: spec, now: time.Now}
}

func (t *GormTable) Name() string {
	return t.spec.Name
}

func (t *GormTable) scope(db *gorm.DB, key string) *gorm.DB {
	return db.Model(&documentRow{}).Where("collection = ? AND id = ?", t.spec.Name, key)
}

func (t *GormTable) Get(ctx context.Context, key string) (store.Document, error) {
	var row documentRow
	err := t.scope(t.db.WithContext(ctx), key).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s/%s: %w", t.spec.Name, key, err)
	}
	return decodeDocument(row.Data)
}

func (t *GormTable) Create(ctx context.Context, doc store.Document) (store.Document, error) {
	now := t.now()
	record, err := store.PrepareCreate(doc, now)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}

	row := documentRow{
		Collection: t.spec.Name,
		ID:         record.String(store.FieldID),
		Data:       datatypes.JSON(raw),
		CreatedAt:  now.UTC(),
		UpdatedAt:  now.UTC(),
	}
	res := t.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to create %s record: %w", t.spec.Name, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, store.ErrAlreadyExists
	}
	return record, nil
}

func (t *GormTable) Update(ctx context.Context, key string, fields store.Document) (store.Document, error) {
	now := t.now()
	changes := store.PrepareUpdate(fields, now)

	var merged store.Document
	err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row documentRow
		if err := t.scope(tx, key).Take(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return store.ErrNotFound
			}
			return err
		}
		current, err := decodeDocument(row.Data)
		if err != nil {
			return err
		}
		for k, v := range changes {
			current[k] = v
		}
		raw, err := json.Marshal(current)
		if err != nil {
			return err
		}
		merged = current
		return t.scope(tx, key).Updates(map[string]any{
			"data":       datatypes.JSON(raw),
			"updated_at": now.UTC(),
		}).Error
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update %s/%s: %w", t.spec.Name, key, err)
	}
	return merged, nil
}

func (t *GormTable) Delete(ctx context.Context, key string) error {
	res := t.db.WithContext(ctx).
		Where("collection = ? AND id = ?", t.spec.Name, key).
		Delete(&documentRow{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", t.spec.Name, key, res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (t *GormTable) QueryByIndex(ctx context.Context, index, value string) ([]store.Document, error) {
	field, ok := t.spec.Field(index)
	if !ok {
		return nil, fmt.Errorf("%w %q on %s", store.ErrUnknownIndex, index, t.spec.Name)
	}
	var rows []documentRow
	err := t.db.WithContext(ctx).
		Where("collection = ?", t.spec.Name).
		Where(datatypes.JSONQuery("data").Equals(value, field)).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query %s by %s: %w", t.spec.Name, index, err)
	}
	return decodeRows(rows, nil)
}

func (t *GormTable) Scan(ctx context.Context, filter store.Filter) ([]store.Document, error) {
	var rows []documentRow
	if err := t.db.WithContext(ctx).Where("collection = ?", t.spec.Name).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", t.spec.Name, err)
	}
	return decodeRows(rows, filter)
}

func (t *GormTable) Increment(ctx context.Context, key, field string, delta int) (store.Document, error) {
	now := t.now()
	path := "$." + field

	var out store.Document
	err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := t.scope(tx, key).Updates(map[string]any{
			"data": gorm.Expr(
				"json_set(data, ?, COALESCE(json_extract(data, ?), 0) + ?, '$.updatedAt', ?)",
				path, path, delta, store.Stamp(now),
			),
			"updated_at": now.UTC(),
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return store.ErrNotFound
		}
		var row documentRow
		if err := t.scope(tx, key).Take(&row).Error; err != nil {
			return err
		}
		doc, err := decodeDocument(row.Data)
		out = doc
		return err
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to increment %s/%s.%s: %w", t.spec.Name, key, field, err)
	}
	return out, nil
}

func decodeRows(rows []documentRow, filter store.Filter) ([]store.Document, error) {
	out := make([]store.Document, 0, len(rows))
	for _, row := range rows {
		doc, err := decodeDocument(row.Data)
		if err != nil {
			return nil, err
		}
		if filter == nil || filter(doc) {
			out = append(out, doc)
		}
	}
	return out, nil
}
