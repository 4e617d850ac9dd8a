package store

import "context"

const (
	IndexUserID  = "UserIdIndex"
	IndexModelID = "ModelIdIndex"
)

// TableSpec names a table and maps each secondary index to the field it covers.
type TableSpec struct {
	Name    string
	Indexes map[string]string
}

// Field returns the field behind index.
func (s TableSpec) Field(index string) (string, bool) {
	field, ok := s.Indexes[index]
	return field, ok
}

type Schema struct {
	Accounts        TableSpec
	Models          TableSpec
	TrainingImages  TableSpec
	GeneratedImages TableSpec
}

func NewSchema(prefix string) Schema {
	name := func(suffix string) string {
		if prefix == "" {
			return suffix
		}
		return prefix + "-" + suffix
	}
	return Schema{
		Accounts: TableSpec{
			Name:    name("accounts"),
			Indexes: map[string]string{},
		},
		Models: TableSpec{
			Name:    name("models"),
			Indexes: map[string]string{IndexUserID: "userId"},
		},
		TrainingImages: TableSpec{
			Name:    name("training-images"),
			Indexes: map[string]string{IndexUserID: "userId", IndexModelID: "modelId"},
		},
		GeneratedImages: TableSpec{
			Name:    name("generated-images"),
			Indexes: map[string]string{IndexUserID: "userId", IndexModelID: "modelId"},
		},
	}
}

func (s Schema) All() []TableSpec {
	return []TableSpec{s.Accounts, s.Models, s.TrainingImages, s.GeneratedImages}
}

// Tables groups the open tables of one backend.
type Tables struct {
	Accounts        Table
	Models          Table
	TrainingImages  Table
	GeneratedImages Table

	ping func(ctx context.Context) error
}

func NewTables(accounts, models, trainingImages, generatedImages Table, ping func(ctx context.Context) error) *Tables {
	return &Tables{
		Accounts:        accounts,
		Models:          models,
		TrainingImages:  trainingImages,
		GeneratedImages: generatedImages,
		ping:            ping,
	}
}

// Ping checks the backend is reachable.
func (t *Tables) Ping(ctx context.Context) error {
	if t.ping == nil {
		return nil
	}
	return t.ping(ctx)
}

// NewMemoryTables opens an in-memory backend for schema.
func NewMemoryTables(schema Schema) *Tables {
	return NewTables(
		NewMemoryTable(schema.Accounts),
		NewMemoryTable(schema.Models),
		NewMemoryTable(schema.TrainingImages),
		NewMemoryTable(schema.GeneratedImages),
		nil,
	)
}
