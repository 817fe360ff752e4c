package history

import (
	"fmt"
	"slices"
)

// MirrorFields copies every non-excluded field, reduced to the given facets.
//
// Everything not in facets (primary key and auto-increment flags, defaults, validators, ...) is dropped,
// history rows store the captured values as they are. The result shares no mutable state with fields.
func MirrorFields(fields []FieldDefinition, facets []Facet, exclude []string) []FieldDefinition {
	mirrored := make([]FieldDefinition, 0, len(fields))

	for _, field := range fields {
		if slices.Contains(exclude, field.Name) {
			continue
		}

		clone := FieldDefinition{Name: field.Name}

		for _, facet := range facets {
			switch facet {
			case FacetType:
				clone.Type = field.Type
			case FacetColumn:
				clone.Column = field.Column
			case FacetGet:
				clone.Get = field.Get
			case FacetSet:
				clone.Set = field.Set
			}
		}

		mirrored = append(mirrored, clone)
	}

	return mirrored
}

// ProvenanceFields returns the four fields every history model carries in addition to the mirrored ones.
func ProvenanceFields(names Names, userIDType FieldType) []FieldDefinition {
	return []FieldDefinition{
		{Name: names.ID, Type: FieldTypeBigInt, PrimaryKey: true, AutoIncrement: true},
		{Name: names.Type, Type: FieldTypeInteger, NotNull: true},
		{Name: names.Timestamp, Type: FieldTypeTimestamp, NotNull: true},
		{Name: names.UserID, Type: userIDType},
	}
}

// BuildHistoryFields merges the mirrored fields with the provenance fields.
func BuildHistoryFields(mirrored []FieldDefinition, names Names, userIDType FieldType) ([]FieldDefinition, error) {
	provenance := ProvenanceFields(names, userIDType)

	for _, field := range mirrored {
		if _, found := FindField(provenance, field.Name); found {
			return nil, configurationError(fmt.Errorf("%w: %s", ErrFieldNameCollision, field.Name))
		}
	}

	merged := make([]FieldDefinition, 0, len(mirrored)+len(provenance))
	merged = append(merged, mirrored...)
	merged = append(merged, provenance...)

	return merged, nil
}

// userIDTypeOf derives the type of the acting-user reference from the user model's primary key.
func userIDTypeOf(userModel Model) FieldType {
	keys := userModel.PrimaryKeys()
	if len(keys) == 0 {
		return FieldTypeBigInt
	}

	field, found := FindField(userModel.Fields(), keys[0])
	if !found || field.Type == "" {
		return FieldTypeBigInt
	}

	if field.Type == FieldTypeInteger {
		return FieldTypeBigInt
	}

	return field.Type
}
