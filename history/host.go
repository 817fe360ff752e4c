package history

import (
	"context"
)

// Tx is a transaction of a host session.
type Tx interface {
	Session() Session
}

// WriteOptions travel with every write through the host's hook chain.
// Hooks may change them; the host reads IndividualHooks after the before-bulk hooks ran.
type WriteOptions struct {
	Transaction     Tx
	IndividualHooks bool
}

// HookFunc is a lifecycle handler. The host awaits it before the surrounding operation completes,
// a returned error fails that operation.
type HookFunc func(ctx context.Context, payload any, opts *WriteOptions) error

// Where is an equality filter on field names. Values may be slices for IN semantics.
type Where map[string]any

// Order sorts query results by one field.
type Order struct {
	Field      string
	Descending bool
}

// Query is the filter object accepted by a model's FindAll.
type Query struct {
	Where       Where
	Scopes      []string
	Order       []Order
	Limit       uint
	Offset      uint
	Transaction Tx
}

// RelationKind names the cardinality of a relation.
type RelationKind string

const RelationBelongsTo RelationKind = "belongsTo"

// Relation links a model to another model through a foreign key field.
type Relation struct {
	Name       string
	Kind       RelationKind
	Target     Model
	ForeignKey string
}

// ModelDefinition is everything a session needs to register a new model.
type ModelDefinition struct {
	Name        string
	Table       string
	Schema      string
	Fields      []FieldDefinition
	Timestamps  bool
	Relations   []Relation
	Description string
}

// Session is the host data-model layer's registry of models.
type Session interface {
	Define(ctx context.Context, def ModelDefinition) (Model, error)
}

// Model is a model of the host data-model layer.
type Model interface {
	Name() string
	TableName() string
	SchemaName() string
	Fields() []FieldDefinition
	PrimaryKeys() []string
	Session() Session
	AddHook(hook Hook, fn HookFunc)
	AddScope(name string, where Where)
	BulkCreate(ctx context.Context, records []Record, opts WriteOptions) ([]Record, error)
	FindAll(ctx context.Context, query Query) ([]Record, error)
}
