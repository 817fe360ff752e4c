package sqlengine

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/AntonStoeckl/model-history-go/history"
	"github.com/AntonStoeckl/model-history-go/sqlengine/internal/adapters"
)

// Model is a table of an Engine. It implements history.Model and runs the lifecycle hooks around every
// write and read: before hooks, statement, after hooks.
type Model struct {
	engine      *Engine
	name        string
	table       string
	schema      string
	description string
	fields      []history.FieldDefinition
	byName      map[string]history.FieldDefinition
	byColumn    map[string]history.FieldDefinition
	primaryKeys []string
	autoKey     string
	timestamps  bool
	relations   []history.Relation
	hooks       map[history.Hook][]history.HookFunc
	scopes      map[string]history.Where
	mu          sync.RWMutex
}

func newModel(e *Engine, def history.ModelDefinition) (*Model, error) {
	fields := slices.Clone(def.Fields)

	if def.Timestamps {
		for _, name := range []string{FieldCreatedAt, FieldUpdatedAt} {
			if _, found := history.FindField(fields, name); !found {
				fields = append(fields, history.FieldDefinition{Name: name, Type: history.FieldTypeTimestamp, NotNull: true})
			}
		}
	}

	m := &Model{
		engine:      e,
		name:        def.Name,
		table:       def.Table,
		schema:      def.Schema,
		description: def.Description,
		fields:      fields,
		byName:      make(map[string]history.FieldDefinition, len(fields)),
		byColumn:    make(map[string]history.FieldDefinition, len(fields)),
		primaryKeys: history.PrimaryKeyNames(fields),
		timestamps:  def.Timestamps,
		relations:   slices.Clone(def.Relations),
		hooks:       make(map[history.Hook][]history.HookFunc),
		scopes:      make(map[string]history.Where),
	}

	if m.table == "" {
		m.table = def.Name
	}

	for _, field := range fields {
		if field.Name == "" {
			return nil, fmt.Errorf("%w: %s has a field without name", ErrInvalidModelDefinition, def.Name)
		}

		if _, exists := m.byName[field.Name]; exists {
			return nil, fmt.Errorf("%w: %s.%s defined twice", ErrInvalidModelDefinition, def.Name, field.Name)
		}

		if _, exists := m.byColumn[field.ColumnName()]; exists {
			return nil, fmt.Errorf("%w: column %s.%s used twice", ErrInvalidModelDefinition, def.Name, field.ColumnName())
		}

		m.byName[field.Name] = field
		m.byColumn[field.ColumnName()] = field
	}

	for _, field := range fields {
		if !field.AutoIncrement {
			continue
		}

		if len(m.primaryKeys) != 1 || m.primaryKeys[0] != field.Name {
			return nil, fmt.Errorf("%w: %s.%s auto increments but is not the only primary key",
				ErrInvalidModelDefinition, def.Name, field.Name)
		}

		if field.Type != history.FieldTypeInteger && field.Type != history.FieldTypeBigInt {
			return nil, fmt.Errorf("%w: %s.%s auto increments but is no integer",
				ErrInvalidModelDefinition, def.Name, field.Name)
		}

		m.autoKey = field.Name
	}

	return m, nil
}

// Name implements history.Model.
func (m *Model) Name() string { return m.name }

// TableName implements history.Model.
func (m *Model) TableName() string { return m.table }

// SchemaName implements history.Model.
func (m *Model) SchemaName() string { return m.schema }

// Description returns the free text given at definition time.
func (m *Model) Description() string { return m.description }

// Fields implements history.Model.
func (m *Model) Fields() []history.FieldDefinition { return slices.Clone(m.fields) }

// PrimaryKeys implements history.Model.
func (m *Model) PrimaryKeys() []string { return slices.Clone(m.primaryKeys) }

// Relations returns the relations given at definition time.
func (m *Model) Relations() []history.Relation { return slices.Clone(m.relations) }

// Session implements history.Model.
func (m *Model) Session() history.Session { return m.engine }

// Engine returns the engine the model is defined on.
func (m *Model) Engine() *Engine { return m.engine }

// AddHook implements history.Model. Hooks of one lifecycle point run in registration order.
func (m *Model) AddHook(hook history.Hook, fn history.HookFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.hooks[hook] = append(m.hooks[hook], fn)
}

// AddScope implements history.Model.
func (m *Model) AddScope(name string, where history.Where) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.scopes[name] = maps.Clone(where)
}

func (m *Model) scope(name string) (history.Where, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	where, ok := m.scopes[name]

	return where, ok
}

// runHooks runs the hooks of one lifecycle point. The first error stops the chain and is returned unchanged.
func (m *Model) runHooks(ctx context.Context, hook history.Hook, payload any, opts *history.WriteOptions) error {
	m.mu.RLock()
	hooks := slices.Clone(m.hooks[hook])
	m.mu.RUnlock()

	for _, fn := range hooks {
		if err := fn(ctx, payload, opts); err != nil {
			return err
		}
	}

	return nil
}

// Create inserts one record and returns it as stored, generated keys and defaults included.
func (m *Model) Create(ctx context.Context, record history.Record, opts history.WriteOptions) (history.Record, error) {
	instance := record.Clone()

	if err := m.runHooks(ctx, history.HookBeforeCreate, instance, &opts); err != nil {
		return nil, err
	}

	created, err := m.insert(ctx, []history.Record{instance}, opts.Transaction, logActionCreate)
	if err != nil {
		return nil, err
	}

	if err := m.runHooks(ctx, history.HookAfterCreate, created[0], &opts); err != nil {
		return nil, err
	}

	return created[0], nil
}

// BulkCreate implements history.Model. All records are inserted with one statement.
// Per-instance hooks run only when opts.IndividualHooks is set, either by the caller or by a before-bulk hook.
func (m *Model) BulkCreate(ctx context.Context, records []history.Record, opts history.WriteOptions) ([]history.Record, error) {
	if len(records) == 0 {
		return []history.Record{}, nil
	}

	instances := make([]history.Record, 0, len(records))
	for _, record := range records {
		instances = append(instances, record.Clone())
	}

	if err := m.runHooks(ctx, history.HookBeforeBulkCreate, instances, &opts); err != nil {
		return nil, err
	}

	if opts.IndividualHooks {
		for _, instance := range instances {
			if err := m.runHooks(ctx, history.HookBeforeCreate, instance, &opts); err != nil {
				return nil, err
			}
		}
	}

	created, err := m.insert(ctx, instances, opts.Transaction, logActionBulkCreate)
	if err != nil {
		return nil, err
	}

	if opts.IndividualHooks {
		for _, instance := range created {
			if err := m.runHooks(ctx, history.HookAfterCreate, instance, &opts); err != nil {
				return nil, err
			}
		}
	}

	if err := m.runHooks(ctx, history.HookAfterBulkCreate, created, &opts); err != nil {
		return nil, err
	}

	return created, nil
}

// Update writes the non-key fields of record to the row with the record's primary key and returns the
// stored post-image.
func (m *Model) Update(ctx context.Context, record history.Record, opts history.WriteOptions) (history.Record, error) {
	instance := record.Clone()

	keys, err := m.keyEx(instance)
	if err != nil {
		return nil, err
	}

	if err := m.runHooks(ctx, history.HookBeforeUpdate, instance, &opts); err != nil {
		return nil, err
	}

	q, err := m.engine.querier(ctx, opts.Transaction)
	if err != nil {
		return nil, err
	}

	updated, err := m.update(ctx, q, m.withoutKeys(instance), keys, logActionUpdate)
	if err != nil {
		return nil, err
	}

	if len(updated) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, m.name)
	}

	if err := m.runHooks(ctx, history.HookAfterUpdate, updated[0], &opts); err != nil {
		return nil, err
	}

	return updated[0], nil
}

// BulkUpdate applies values to every row matching where and returns the post-images.
//
// Bulk hooks receive the matched instances, per-instance hooks run when opts.IndividualHooks is set.
// In that case every row is written on its own, so hooks may adjust single instances.
func (m *Model) BulkUpdate(ctx context.Context, values history.Record, where history.Where, opts history.WriteOptions) ([]history.Record, error) {
	q, err := m.engine.querier(ctx, opts.Transaction)
	if err != nil {
		return nil, err
	}

	matched, err := m.selectRows(ctx, q, history.Query{Where: where})
	if err != nil {
		return nil, err
	}

	if err := m.runHooks(ctx, history.HookBeforeBulkUpdate, matched, &opts); err != nil {
		return nil, err
	}

	updated := make([]history.Record, 0, len(matched))

	switch {
	case len(matched) == 0:

	case opts.IndividualHooks:
		for _, instance := range matched {
			candidate := instance.Merge(values)

			if err := m.runHooks(ctx, history.HookBeforeUpdate, candidate, &opts); err != nil {
				return nil, err
			}

			keys, err := m.keyEx(instance)
			if err != nil {
				return nil, err
			}

			rows, err := m.update(ctx, q, m.withoutKeys(candidate), keys, logActionBulkUpdate)
			if err != nil {
				return nil, err
			}

			updated = append(updated, rows...)
		}

		for _, instance := range updated {
			if err := m.runHooks(ctx, history.HookAfterUpdate, instance, &opts); err != nil {
				return nil, err
			}
		}

	default:
		keys, err := m.keysExpression(matched)
		if err != nil {
			return nil, err
		}

		updated, err = m.update(ctx, q, values.Clone(), keys, logActionBulkUpdate)
		if err != nil {
			return nil, err
		}
	}

	if err := m.runHooks(ctx, history.HookAfterBulkUpdate, updated, &opts); err != nil {
		return nil, err
	}

	return updated, nil
}

// Destroy deletes the row with the record's primary key. Hooks receive the pre-deletion image.
func (m *Model) Destroy(ctx context.Context, record history.Record, opts history.WriteOptions) error {
	keys, err := m.keyEx(record)
	if err != nil {
		return err
	}

	q, err := m.engine.querier(ctx, opts.Transaction)
	if err != nil {
		return err
	}

	found, err := m.selectByExpression(ctx, q, keys, nil, 1, 0)
	if err != nil {
		return err
	}

	if len(found) == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, m.name)
	}

	preImage := found[0]

	if err := m.runHooks(ctx, history.HookBeforeDestroy, preImage, &opts); err != nil {
		return err
	}

	sqlQuery, args, err := m.engine.builder.Delete(m.tableExpr()).Where(keys).Prepared(true).ToSQL()
	if err != nil {
		m.engine.logError(ctx, logMsgBuildDeleteFailed, err, logAttrModel, m.name)
		return errors.Join(ErrBuildingQueryFailed, err)
	}

	start := time.Now()
	if _, err := m.exec(ctx, q, sqlQuery, args, logActionDestroy); err != nil {
		return err
	}
	m.engine.logOperation(ctx, logMsgRowsWritten+logActionDestroy,
		logAttrModel, m.name, logAttrRowCount, 1, logAttrDurationMS, toMilliseconds(time.Since(start)))

	return m.runHooks(ctx, history.HookAfterDestroy, preImage, &opts)
}

// FindAll implements history.Model. It runs the find hooks around the select.
func (m *Model) FindAll(ctx context.Context, query history.Query) ([]history.Record, error) {
	opts := history.WriteOptions{Transaction: query.Transaction}

	if err := m.runHooks(ctx, history.HookBeforeFind, nil, &opts); err != nil {
		return nil, err
	}

	q, err := m.engine.querier(ctx, query.Transaction)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	found, err := m.selectRows(ctx, q, query)
	if err != nil {
		return nil, err
	}
	m.engine.logOperation(ctx, logMsgQueryCompleted,
		logAttrModel, m.name, logAttrRowCount, len(found), logAttrDurationMS, toMilliseconds(time.Since(start)))

	if err := m.runHooks(ctx, history.HookAfterFind, found, &opts); err != nil {
		return nil, err
	}

	return found, nil
}

// FindByPK returns the row with the given primary key value. The model must have a single key field.
func (m *Model) FindByPK(ctx context.Context, id any, query history.Query) (history.Record, error) {
	if len(m.primaryKeys) != 1 {
		return nil, fmt.Errorf("%w: %s", ErrCompositePrimaryKey, m.name)
	}

	where := maps.Clone(query.Where)
	if where == nil {
		where = history.Where{}
	}
	where[m.primaryKeys[0]] = id
	query.Where = where

	found, err := m.FindAll(ctx, query)
	if err != nil {
		return nil, err
	}

	if len(found) == 0 {
		return nil, fmt.Errorf("%w: %s %v", ErrNotFound, m.name, id)
	}

	return found[0], nil
}

// withoutKeys returns the record without its primary key fields.
func (m *Model) withoutKeys(record history.Record) history.Record {
	values := record.Clone()
	for _, key := range m.primaryKeys {
		delete(values, key)
	}

	return values
}

// encodeRecord validates and encodes the present fields of a record into a goqu record keyed by column.
func (m *Model) encodeRecord(record history.Record) (goqu.Record, error) {
	encoded := make(goqu.Record, len(record))

	for name, value := range record {
		field, ok := m.byName[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnknownField, m.name, name)
		}

		if field.Validate != nil {
			if err := field.Validate(value); err != nil {
				return nil, fmt.Errorf("%w: %s.%s: %w", ErrValidationFailed, m.name, name, err)
			}
		}

		column, err := encodeValue(field, value)
		if err != nil {
			return nil, err
		}

		encoded[field.ColumnName()] = column
	}

	return encoded, nil
}

// applyDefaults fills in field defaults and timestamps of a record about to be inserted.
func (m *Model) applyDefaults(record history.Record, now time.Time) {
	for _, field := range m.fields {
		if _, present := record[field.Name]; present || field.Default == nil {
			continue
		}

		record[field.Name] = field.Default
	}

	if m.timestamps {
		if record[FieldCreatedAt] == nil {
			record[FieldCreatedAt] = now
		}
		if record[FieldUpdatedAt] == nil {
			record[FieldUpdatedAt] = now
		}
	}
}

// insert writes copies of the instances and returns them as stored.
func (m *Model) insert(ctx context.Context, instances []history.Record, tx history.Tx, action string) ([]history.Record, error) {
	q, err := m.engine.querier(ctx, tx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	pending := make([]history.Record, 0, len(instances))
	for _, instance := range instances {
		row := instance.Clone()
		m.applyDefaults(row, now)
		pending = append(pending, row)
	}

	start := time.Now()

	var stored []history.Record
	if m.engine.dialect == DialectPostgres {
		stored, err = m.insertReturning(ctx, q, pending, action)
	} else {
		stored, err = m.insertWithRowIDs(ctx, q, pending, action)
	}

	if err != nil {
		return nil, err
	}

	m.engine.logOperation(ctx, logMsgRowsWritten+action,
		logAttrModel, m.name, logAttrRowCount, len(stored), logAttrDurationMS, toMilliseconds(time.Since(start)))

	return stored, nil
}

// insertRows builds one multi-row INSERT. Columns missing in a record are filled with missing.
func (m *Model) insertRows(instances []history.Record, missing any) (*goqu.InsertDataset, error) {
	columns := make([]string, 0, len(m.fields))
	for _, field := range m.fields {
		for _, instance := range instances {
			if value, present := instance[field.Name]; present && (value != nil || field.Name != m.autoKey) {
				columns = append(columns, field.ColumnName())
				break
			}
		}
	}

	if len(columns) == 0 && m.autoKey != "" {
		columns = append(columns, m.byName[m.autoKey].ColumnName())
	}

	rows := make([]any, 0, len(instances))
	for _, instance := range instances {
		present := instance.Clone()
		if present[m.autoKey] == nil {
			delete(present, m.autoKey)
		}

		encoded, err := m.encodeRecord(present)
		if err != nil {
			return nil, err
		}

		row := make(goqu.Record, len(columns))
		for _, column := range columns {
			if value, ok := encoded[column]; ok {
				row[column] = value
			} else {
				row[column] = missing
			}
		}

		rows = append(rows, row)
	}

	return m.engine.builder.Insert(m.tableExpr()).Rows(rows...).Prepared(true), nil
}

// insertReturning inserts all instances with one statement and reads them back through RETURNING.
func (m *Model) insertReturning(ctx context.Context, q adapters.Querier, instances []history.Record, action string) ([]history.Record, error) {
	ds, err := m.insertRows(instances, goqu.Default())
	if err != nil {
		return nil, err
	}

	sqlQuery, args, err := ds.Returning(m.columnExprs()...).ToSQL()
	if err != nil {
		m.engine.logError(ctx, logMsgBuildInsertFailed, err, logAttrModel, m.name)
		return nil, errors.Join(ErrBuildingQueryFailed, err)
	}

	stored, err := m.query(ctx, q, sqlQuery, args, action)
	if err != nil {
		return nil, errors.Join(ErrWritingFailed, err)
	}

	return stored, nil
}

// insertWithRowIDs inserts for dialects without RETURNING support.
//
// Generated keys come from the last inserted rowid; a single statement assigns consecutive rowids.
// When only some instances lack the generated key, every instance is inserted on its own.
func (m *Model) insertWithRowIDs(ctx context.Context, q adapters.Querier, instances []history.Record, action string) ([]history.Record, error) {
	lacking := 0
	if m.autoKey != "" {
		for _, instance := range instances {
			if instance[m.autoKey] == nil {
				lacking++
			}
		}
	}

	batches := [][]history.Record{instances}
	if lacking > 0 && lacking < len(instances) {
		batches = make([][]history.Record, 0, len(instances))
		for _, instance := range instances {
			batches = append(batches, []history.Record{instance})
		}
	}

	for _, batch := range batches {
		if err := m.execInsert(ctx, q, batch, action); err != nil {
			return nil, err
		}
	}

	if len(m.primaryKeys) == 0 {
		return instances, nil
	}

	return m.reload(ctx, q, instances)
}

func (m *Model) execInsert(ctx context.Context, q adapters.Querier, batch []history.Record, action string) error {
	ds, err := m.insertRows(batch, nil)
	if err != nil {
		return err
	}

	sqlQuery, args, err := ds.ToSQL()
	if err != nil {
		m.engine.logError(ctx, logMsgBuildInsertFailed, err, logAttrModel, m.name)
		return errors.Join(ErrBuildingQueryFailed, err)
	}

	result, err := m.exec(ctx, q, sqlQuery, args, action)
	if err != nil {
		return err
	}

	if m.autoKey == "" || batch[0][m.autoKey] != nil {
		return nil
	}

	lastID, err := result.LastInsertId()
	if err != nil {
		return errors.Join(ErrWritingFailed, err)
	}

	first := lastID - int64(len(batch)) + 1
	for i, instance := range batch {
		instance[m.autoKey] = first + int64(i)
	}

	return nil
}

// reload reads inserted instances back by primary key, keeping the instances' order.
func (m *Model) reload(ctx context.Context, q adapters.Querier, instances []history.Record) ([]history.Record, error) {
	keys, err := m.keysExpression(instances)
	if err != nil {
		return nil, err
	}

	rows, err := m.selectByExpression(ctx, q, keys, nil, 0, 0)
	if err != nil {
		return nil, err
	}

	byKey := make(map[string]history.Record, len(rows))
	for _, row := range rows {
		byKey[m.keyString(row)] = row
	}

	stored := make([]history.Record, 0, len(instances))
	for _, instance := range instances {
		row, ok := byKey[m.keyString(instance)]
		if !ok {
			return nil, fmt.Errorf("%w: inserted %s row vanished", ErrNotFound, m.name)
		}
		stored = append(stored, row)
	}

	return stored, nil
}

// update writes values to the rows matching filter and returns their post-images.
func (m *Model) update(ctx context.Context, q adapters.Querier, values history.Record, filter exp.Expression, action string) ([]history.Record, error) {
	if m.timestamps {
		values[FieldUpdatedAt] = time.Now().UTC()
	}
	delete(values, FieldCreatedAt)

	encoded, err := m.encodeRecord(values)
	if err != nil {
		return nil, err
	}

	if len(encoded) == 0 {
		return m.selectByExpression(ctx, q, filter, nil, 0, 0)
	}

	ds := m.engine.builder.Update(m.tableExpr()).Set(encoded).Where(filter).Prepared(true)

	start := time.Now()
	defer func() {
		m.engine.logOperation(ctx, logMsgRowsWritten+action,
			logAttrModel, m.name, logAttrDurationMS, toMilliseconds(time.Since(start)))
	}()

	if m.engine.dialect == DialectPostgres {
		sqlQuery, args, err := ds.Returning(m.columnExprs()...).ToSQL()
		if err != nil {
			m.engine.logError(ctx, logMsgBuildUpdateFailed, err, logAttrModel, m.name)
			return nil, errors.Join(ErrBuildingQueryFailed, err)
		}

		rows, err := m.query(ctx, q, sqlQuery, args, action)
		if err != nil {
			return nil, errors.Join(ErrWritingFailed, err)
		}

		return rows, nil
	}

	sqlQuery, args, err := ds.ToSQL()
	if err != nil {
		m.engine.logError(ctx, logMsgBuildUpdateFailed, err, logAttrModel, m.name)
		return nil, errors.Join(ErrBuildingQueryFailed, err)
	}

	if _, err := m.exec(ctx, q, sqlQuery, args, action); err != nil {
		return nil, err
	}

	return m.selectByExpression(ctx, q, filter, nil, 0, 0)
}
