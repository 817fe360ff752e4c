package history

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Names are the resolved identifiers of a history model.
type Names struct {
	Table     string
	Model     string
	ID        string
	Type      string
	Timestamp string
	UserID    string
}

// NamingInput is everything the naming rules depend on.
type NamingInput struct {
	ModelName        string
	TableName        string
	Prefix           string
	Suffix           string
	AttributePrefix  string
	TableUnderscored bool
	Underscored      bool
}

// ResolveNames derives the history table name, model name and provenance field names.
//
// At least one of prefix and suffix must be non-empty. The attribute prefix defaults to the prefix.
func ResolveNames(in NamingInput) (Names, error) {
	if in.Prefix == "" && in.Suffix == "" {
		return Names{}, configurationError(ErrPrefixOrSuffixRequired)
	}

	attributePrefix := in.AttributePrefix
	if attributePrefix == "" {
		attributePrefix = in.Prefix
	}

	tableSeparator := ""
	if in.TableUnderscored {
		tableSeparator = "_"
	}

	baseTable := in.TableName
	if baseTable == "" {
		baseTable = in.ModelName
	}

	var table strings.Builder
	if in.Prefix != "" {
		table.WriteString(in.Prefix + tableSeparator)
	}
	table.WriteString(baseTable)
	if in.Suffix != "" {
		table.WriteString(tableSeparator + in.Suffix)
	}

	field := func(word string) string {
		if in.Underscored {
			return attributePrefix + "_" + toSnake(word)
		}
		return attributePrefix + Capitalize(word)
	}

	modelName := Capitalize(in.Prefix) + Capitalize(in.ModelName)
	if in.Prefix == "" {
		modelName = Capitalize(in.ModelName) + Capitalize(in.Suffix)
	}

	return Names{
		Table:     table.String(),
		Model:     modelName,
		ID:        field("id"),
		Type:      field("type"),
		Timestamp: field("timestamp"),
		UserID:    field("userId"),
	}, nil
}

// Capitalize upper-cases the first rune of s.
func Capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}

	return string(unicode.ToUpper(r)) + s[size:]
}

// toSnake turns a lowerCamel word into snake_case.
func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}

	return b.String()
}
