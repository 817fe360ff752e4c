package history

import (
	"slices"
)

// FieldType is the semantic type of a model field.
type FieldType string

const (
	FieldTypeString    FieldType = "string"
	FieldTypeText      FieldType = "text"
	FieldTypeInteger   FieldType = "integer"
	FieldTypeBigInt    FieldType = "bigint"
	FieldTypeFloat     FieldType = "float"
	FieldTypeBoolean   FieldType = "boolean"
	FieldTypeTimestamp FieldType = "timestamp"
	FieldTypeJSON      FieldType = "json"
	FieldTypeUUID      FieldType = "uuid"
	FieldTypeBytes     FieldType = "bytes"
)

// Getter transforms a stored value into the value exposed on read.
type Getter func(value any) any

// Setter transforms a value into the value that gets stored.
type Setter func(value any) any

// FieldDefinition describes one field of a model.
//
// Column is the storage name; when empty the field Name is used.
type FieldDefinition struct {
	Name          string
	Type          FieldType
	Column        string
	Get           Getter
	Set           Setter
	PrimaryKey    bool
	AutoIncrement bool
	NotNull       bool
	Unique        bool
	Default       any
	Validate      func(value any) error
	Comment       string
}

// ColumnName returns the storage name of the field.
func (fd FieldDefinition) ColumnName() string {
	if fd.Column != "" {
		return fd.Column
	}

	return fd.Name
}

// Facet names one copyable aspect of a FieldDefinition.
type Facet string

const (
	FacetType   Facet = "type"
	FacetColumn Facet = "field"
	FacetGet    Facet = "get"
	FacetSet    Facet = "set"
)

// DefaultFacets are the facets that history fields inherit from tracked fields.
func DefaultFacets() []Facet {
	return []Facet{FacetType, FacetColumn, FacetGet, FacetSet}
}

// FieldNames returns the names of the given fields in declaration order.
func FieldNames(fields []FieldDefinition) []string {
	names := make([]string, 0, len(fields))
	for _, field := range fields {
		names = append(names, field.Name)
	}

	return names
}

// PrimaryKeyNames returns the names of all primary key fields in declaration order.
func PrimaryKeyNames(fields []FieldDefinition) []string {
	keys := make([]string, 0)
	for _, field := range fields {
		if field.PrimaryKey {
			keys = append(keys, field.Name)
		}
	}

	return keys
}

// FindField looks up a field by name.
func FindField(fields []FieldDefinition, name string) (FieldDefinition, bool) {
	idx := slices.IndexFunc(fields, func(fd FieldDefinition) bool { return fd.Name == name })
	if idx < 0 {
		return FieldDefinition{}, false
	}

	return fields[idx], true
}
