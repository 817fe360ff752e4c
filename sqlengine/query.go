package sqlengine

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/AntonStoeckl/model-history-go/history"
	"github.com/AntonStoeckl/model-history-go/sqlengine/internal/adapters"
)

// tableExpr returns the (schema qualified) table identifier of the model.
func (m *Model) tableExpr() exp.IdentifierExpression {
	if m.schema != "" {
		return goqu.S(m.schema).Table(m.table)
	}

	return goqu.T(m.table)
}

// columnExprs returns all columns of the model in field order.
func (m *Model) columnExprs() []any {
	columns := make([]any, 0, len(m.fields))
	for _, field := range m.fields {
		columns = append(columns, goqu.C(field.ColumnName()))
	}

	return columns
}

// filterExpression turns a where clause and named scopes into one goqu expression.
// It returns nil when nothing filters.
func (m *Model) filterExpression(where history.Where, scopes []string) (exp.Expression, error) {
	parts := make([]exp.Expression, 0, len(scopes)+1)

	ex, err := m.whereEx(where)
	if err != nil {
		return nil, err
	}
	if len(ex) > 0 {
		parts = append(parts, ex)
	}

	for _, name := range scopes {
		scope, ok := m.scope(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnknownScope, m.name, name)
		}

		scopeEx, err := m.whereEx(scope)
		if err != nil {
			return nil, err
		}
		parts = append(parts, scopeEx)
	}

	switch len(parts) {
	case 0:
		return nil, nil
	case 1:
		return parts[0], nil
	default:
		return goqu.And(parts...), nil
	}
}

// whereEx maps field names to columns and encodes the values. Slices turn into IN, nil into IS NULL.
func (m *Model) whereEx(where history.Where) (goqu.Ex, error) {
	ex := make(goqu.Ex, len(where))

	for name, value := range where {
		field, ok := m.byName[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnknownField, m.name, name)
		}

		encoded, err := encodeFilterValue(field, value)
		if err != nil {
			return nil, err
		}

		ex[field.ColumnName()] = encoded
	}

	return ex, nil
}

func encodeFilterValue(field history.FieldDefinition, value any) (any, error) {
	if value == nil {
		return nil, nil
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() != reflect.Uint8 {
		encoded := make([]any, 0, rv.Len())
		for i := range rv.Len() {
			item, err := encodeTyped(field.Type, rv.Index(i).Interface())
			if err != nil {
				return nil, fmt.Errorf("%w: field %s: %w", ErrEncodingValueFailed, field.Name, err)
			}
			encoded = append(encoded, item)
		}

		return encoded, nil
	}

	encoded, err := encodeTyped(field.Type, value)
	if err != nil {
		return nil, fmt.Errorf("%w: field %s: %w", ErrEncodingValueFailed, field.Name, err)
	}

	return encoded, nil
}

// keyEx builds the primary key filter of one record.
func (m *Model) keyEx(record history.Record) (goqu.Ex, error) {
	if len(m.primaryKeys) == 0 {
		return nil, fmt.Errorf("%w: %s has no primary key", ErrMissingPrimaryKey, m.name)
	}

	where := make(history.Where, len(m.primaryKeys))
	for _, key := range m.primaryKeys {
		value, ok := record[key]
		if !ok || value == nil {
			return nil, fmt.Errorf("%w: %s.%s", ErrMissingPrimaryKey, m.name, key)
		}
		where[key] = value
	}

	return m.whereEx(where)
}

// keysExpression builds a filter matching exactly the given records by primary key.
func (m *Model) keysExpression(records []history.Record) (exp.Expression, error) {
	if len(m.primaryKeys) == 1 {
		values := make([]any, 0, len(records))
		for _, record := range records {
			values = append(values, record[m.primaryKeys[0]])
		}

		return m.whereEx(history.Where{m.primaryKeys[0]: values})
	}

	alternatives := make([]exp.Expression, 0, len(records))
	for _, record := range records {
		ex, err := m.keyEx(record)
		if err != nil {
			return nil, err
		}
		alternatives = append(alternatives, ex)
	}

	return goqu.Or(alternatives...), nil
}

// keyString identifies a record by its primary key values.
func (m *Model) keyString(record history.Record) string {
	parts := make([]string, 0, len(m.primaryKeys))
	for _, key := range m.primaryKeys {
		parts = append(parts, fmt.Sprint(record[key]))
	}

	return strings.Join(parts, "\x00")
}

// selectRows runs a select for the query on q.
func (m *Model) selectRows(ctx context.Context, q adapters.Querier, query history.Query) ([]history.Record, error) {
	filter, err := m.filterExpression(query.Where, query.Scopes)
	if err != nil {
		return nil, err
	}

	return m.selectByExpression(ctx, q, filter, query.Order, query.Limit, query.Offset)
}

func (m *Model) selectByExpression(
	ctx context.Context,
	q adapters.Querier,
	filter exp.Expression,
	order []history.Order,
	limit uint,
	offset uint,
) ([]history.Record, error) {

	ds := m.engine.builder.From(m.tableExpr()).Select(m.columnExprs()...).Prepared(true)

	if filter != nil {
		ds = ds.Where(filter)
	}

	orderExprs := make([]exp.OrderedExpression, 0, len(order))
	for _, o := range order {
		field, ok := m.byName[o.Field]
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnknownField, m.name, o.Field)
		}

		if o.Descending {
			orderExprs = append(orderExprs, goqu.C(field.ColumnName()).Desc())
		} else {
			orderExprs = append(orderExprs, goqu.C(field.ColumnName()).Asc())
		}
	}

	if len(orderExprs) == 0 {
		for _, key := range m.primaryKeys {
			orderExprs = append(orderExprs, goqu.C(m.byName[key].ColumnName()).Asc())
		}
	}

	if len(orderExprs) > 0 {
		ds = ds.Order(orderExprs...)
	}

	if limit > 0 {
		ds = ds.Limit(limit)
	}

	if offset > 0 {
		ds = ds.Offset(offset)
	}

	sqlQuery, args, err := ds.ToSQL()
	if err != nil {
		m.engine.logError(ctx, logMsgBuildSelectFailed, err, logAttrModel, m.name)
		return nil, errors.Join(ErrBuildingQueryFailed, err)
	}

	return m.query(ctx, q, sqlQuery, args, logActionSelect)
}

// query runs a statement that returns rows of this model.
func (m *Model) query(ctx context.Context, q adapters.Querier, sqlQuery string, args []any, action string) ([]history.Record, error) {
	start := time.Now()
	rows, err := q.Query(ctx, sqlQuery, args...)
	m.engine.logQueryWithDuration(ctx, sqlQuery, action, time.Since(start))

	if err != nil {
		m.engine.logError(ctx, logMsgDBQueryFailed, err, logAttrModel, m.name, logAttrQuery, sqlQuery)
		return nil, errors.Join(ErrQueryingFailed, err)
	}
	defer m.engine.closeRows(ctx, rows)

	return m.decodeRows(rows)
}

// exec runs a statement that returns no rows.
func (m *Model) exec(ctx context.Context, q adapters.Querier, sqlQuery string, args []any, action string) (adapters.DBResult, error) {
	start := time.Now()
	result, err := q.Exec(ctx, sqlQuery, args...)
	m.engine.logQueryWithDuration(ctx, sqlQuery, action, time.Since(start))

	if err != nil {
		m.engine.logError(ctx, logMsgDBExecFailed, err, logAttrModel, m.name, logAttrQuery, sqlQuery)
		return nil, errors.Join(ErrWritingFailed, err)
	}

	return result, nil
}

// decodeRows converts all result rows into records keyed by field name.
func (m *Model) decodeRows(rows adapters.DBRows) ([]history.Record, error) {
	columns := rows.Columns()
	records := make([]history.Record, 0)

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, errors.Join(ErrScanningRowFailed, err)
		}

		record := make(history.Record, len(m.fields))
		for i, column := range columns {
			field, ok := m.byColumn[column]
			if !ok {
				continue
			}

			decoded, err := decodeValue(field, values[i])
			if err != nil {
				return nil, err
			}

			record[field.Name] = decoded
		}

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Join(ErrScanningRowFailed, err)
	}

	return records, nil
}
