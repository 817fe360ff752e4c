package sqlengine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/AntonStoeckl/model-history-go/history"
)

// Sync creates the schemas, tables and foreign key indexes of all defined models that do not exist yet.
// Models are created in definition order, so relation targets must be defined first.
func (e *Engine) Sync(ctx context.Context) error {
	q, err := e.querier(ctx, nil)
	if err != nil {
		return err
	}

	schemas := make(map[string]bool)

	for _, m := range e.Models() {
		statements := make([]string, 0, 4)

		if m.schema != "" && !schemas[m.schema] {
			statements = append(statements, "CREATE SCHEMA IF NOT EXISTS "+quoteIdent(m.schema))
			schemas[m.schema] = true
		}

		statements = append(statements, e.createTableStatement(m))
		statements = append(statements, e.indexStatements(m)...)
		statements = append(statements, e.commentStatements(m)...)

		for _, statement := range statements {
			if _, err := m.exec(ctx, q, statement, nil, logActionDDL); err != nil {
				e.logError(ctx, logMsgSyncFailed, err, logAttrModel, m.name, logAttrTable, m.table)
				return errors.Join(ErrSyncFailed, err)
			}
		}

		e.logOperation(ctx, logMsgTableSynced, logAttrModel, m.name, logAttrTable, m.table)
	}

	return nil
}

// Drop drops the tables of all defined models in reverse definition order. Schemas are kept.
func (e *Engine) Drop(ctx context.Context) error {
	q, err := e.querier(ctx, nil)
	if err != nil {
		return err
	}

	models := e.Models()
	slices.Reverse(models)

	for _, m := range models {
		if _, err := m.exec(ctx, q, "DROP TABLE IF EXISTS "+m.qualifiedTable(), nil, logActionDDL); err != nil {
			e.logError(ctx, logMsgSyncFailed, err, logAttrModel, m.name, logAttrTable, m.table)
			return errors.Join(ErrSyncFailed, err)
		}

		e.logOperation(ctx, logMsgTableDropped, logAttrModel, m.name, logAttrTable, m.table)
	}

	return nil
}

func (e *Engine) createTableStatement(m *Model) string {
	definitions := make([]string, 0, len(m.fields)+len(m.relations)+1)

	for _, field := range m.fields {
		definitions = append(definitions, e.columnDefinition(m, field))
	}

	if m.autoKey == "" && len(m.primaryKeys) > 0 {
		columns := make([]string, 0, len(m.primaryKeys))
		for _, key := range m.primaryKeys {
			columns = append(columns, quoteIdent(m.byName[key].ColumnName()))
		}
		definitions = append(definitions, "PRIMARY KEY ("+strings.Join(columns, ", ")+")")
	}

	for _, relation := range m.relations {
		if constraint, ok := e.foreignKeyConstraint(m, relation); ok {
			definitions = append(definitions, constraint)
		}
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", m.qualifiedTable(), strings.Join(definitions, ",\n\t"))
}

func (e *Engine) columnDefinition(m *Model, field history.FieldDefinition) string {
	column := quoteIdent(field.ColumnName())

	if field.Name == m.autoKey {
		if e.dialect == DialectSQLite {
			return column + " INTEGER PRIMARY KEY AUTOINCREMENT"
		}

		return column + " " + e.columnType(field.Type) + " GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY"
	}

	definition := column + " " + e.columnType(field.Type)

	if field.NotNull || field.PrimaryKey {
		definition += " NOT NULL"
	}

	if field.Unique {
		definition += " UNIQUE"
	}

	return definition
}

func (e *Engine) columnType(fieldType history.FieldType) string {
	if e.dialect == DialectSQLite {
		switch fieldType {
		case history.FieldTypeInteger, history.FieldTypeBigInt, history.FieldTypeBoolean:
			return "INTEGER"
		case history.FieldTypeFloat:
			return "REAL"
		case history.FieldTypeTimestamp:
			return "DATETIME"
		case history.FieldTypeBytes:
			return "BLOB"
		default:
			return "TEXT"
		}
	}

	switch fieldType {
	case history.FieldTypeString:
		return "varchar(255)"
	case history.FieldTypeInteger:
		return "integer"
	case history.FieldTypeBigInt:
		return "bigint"
	case history.FieldTypeFloat:
		return "double precision"
	case history.FieldTypeBoolean:
		return "boolean"
	case history.FieldTypeTimestamp:
		return "timestamptz"
	case history.FieldTypeJSON:
		return "jsonb"
	case history.FieldTypeUUID:
		return "uuid"
	case history.FieldTypeBytes:
		return "bytea"
	default:
		return "text"
	}
}

// relationTarget returns the target of a belongsTo relation when it lives on this engine with a single key.
func (e *Engine) relationTarget(relation history.Relation) (*Model, bool) {
	if relation.Kind != history.RelationBelongsTo {
		return nil, false
	}

	target, ok := relation.Target.(*Model)
	if !ok || target.engine != e || len(target.primaryKeys) != 1 {
		return nil, false
	}

	return target, true
}

func (e *Engine) foreignKeyConstraint(m *Model, relation history.Relation) (string, bool) {
	target, ok := e.relationTarget(relation)
	if !ok {
		return "", false
	}

	field, ok := m.byName[relation.ForeignKey]
	if !ok {
		return "", false
	}

	return fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s) ON DELETE SET NULL ON UPDATE CASCADE",
		quoteIdent(field.ColumnName()),
		target.qualifiedTable(),
		quoteIdent(target.byName[target.primaryKeys[0]].ColumnName()),
	), true
}

func (*Engine) indexStatements(m *Model) []string {
	statements := make([]string, 0, len(m.relations))

	for _, relation := range m.relations {
		field, ok := m.byName[relation.ForeignKey]
		if !ok {
			continue
		}

		// index names stay unqualified, postgres puts them into the table's schema
		name := quoteIdent(m.table + "_" + field.ColumnName() + "_idx")
		statements = append(statements,
			fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)", name, m.qualifiedTable(), quoteIdent(field.ColumnName())))
	}

	return statements
}

// commentStatements attaches descriptions and field comments, only postgres stores them.
func (e *Engine) commentStatements(m *Model) []string {
	if e.dialect != DialectPostgres {
		return nil
	}

	statements := make([]string, 0)

	if m.description != "" {
		statements = append(statements, fmt.Sprintf("COMMENT ON TABLE %s IS %s", m.qualifiedTable(), quoteLiteral(m.description)))
	}

	for _, field := range m.fields {
		if field.Comment == "" {
			continue
		}

		statements = append(statements, fmt.Sprintf("COMMENT ON COLUMN %s.%s IS %s",
			m.qualifiedTable(), quoteIdent(field.ColumnName()), quoteLiteral(field.Comment)))
	}

	return statements
}

func (m *Model) qualifiedTable() string {
	if m.schema != "" {
		return quoteIdent(m.schema) + "." + quoteIdent(m.table)
	}

	return quoteIdent(m.table)
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteLiteral(text string) string {
	return "'" + strings.ReplaceAll(text, "'", "''") + "'"
}
