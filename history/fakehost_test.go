package history_test

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/AntonStoeckl/model-history-go/history"
)

var errFakeDuplicate = errors.New("fake: model already defined")

// fakeSession is an in-memory history.Session.
type fakeSession struct {
	name   string
	models map[string]*fakeModel
	mu     sync.Mutex
}

func newFakeSession(name string) *fakeSession {
	return &fakeSession{name: name, models: make(map[string]*fakeModel)}
}

func (s *fakeSession) Define(_ context.Context, def history.ModelDefinition) (history.Model, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.models[def.Name]; exists {
		return nil, fmt.Errorf("%w: %s", errFakeDuplicate, def.Name)
	}

	m := newFakeModel(s, def.Name, def.Fields...)
	m.table = def.Table
	m.schema = def.Schema
	m.definition = def
	s.models[def.Name] = m

	return m, nil
}

func (s *fakeSession) Begin() *fakeTx {
	return &fakeTx{session: s}
}

// fakeTx is a history.Tx of a fakeSession.
type fakeTx struct {
	session *fakeSession
}

func (tx *fakeTx) Session() history.Session {
	return tx.session
}

type bulkCall struct {
	rows []history.Record
	tx   history.Tx
}

// fakeModel is an in-memory history.Model that runs hooks like a host would.
type fakeModel struct {
	session    *fakeSession
	name       string
	table      string
	schema     string
	fields     []history.FieldDefinition
	definition history.ModelDefinition
	hooks      map[history.Hook][]history.HookFunc
	scopes     map[string]history.Where
	rows       []history.Record
	bulkCalls  []bulkCall
	bulkErr    error
	findCalls  []history.Query
	mu         sync.Mutex
}

func newFakeModel(session *fakeSession, name string, fields ...history.FieldDefinition) *fakeModel {
	return &fakeModel{
		session: session,
		name:    name,
		table:   name,
		fields:  fields,
		hooks:   make(map[history.Hook][]history.HookFunc),
		scopes:  make(map[string]history.Where),
	}
}

func (m *fakeModel) Name() string                      { return m.name }
func (m *fakeModel) TableName() string                 { return m.table }
func (m *fakeModel) SchemaName() string                { return m.schema }
func (m *fakeModel) Fields() []history.FieldDefinition { return m.fields }
func (m *fakeModel) PrimaryKeys() []string             { return history.PrimaryKeyNames(m.fields) }

func (m *fakeModel) Session() history.Session {
	if m.session == nil {
		return nil
	}

	return m.session
}

func (m *fakeModel) AddHook(hook history.Hook, fn history.HookFunc) {
	m.hooks[hook] = append(m.hooks[hook], fn)
}

func (m *fakeModel) AddScope(name string, where history.Where) {
	m.scopes[name] = where
}

func (m *fakeModel) BulkCreate(_ context.Context, records []history.Record, opts history.WriteOptions) ([]history.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.bulkErr != nil {
		return nil, m.bulkErr
	}

	m.bulkCalls = append(m.bulkCalls, bulkCall{rows: records, tx: opts.Transaction})
	m.rows = append(m.rows, records...)

	return records, nil
}

func (m *fakeModel) FindAll(_ context.Context, query history.Query) ([]history.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.findCalls = append(m.findCalls, query)

	filters := []history.Where{query.Where}
	for _, scope := range query.Scopes {
		filters = append(filters, m.scopes[scope])
	}

	found := make([]history.Record, 0)

rows:
	for _, row := range m.rows {
		for _, where := range filters {
			for key, value := range where {
				if row[key] != value {
					continue rows
				}
			}
		}
		found = append(found, row)
	}

	return found, nil
}

// fire runs all hooks registered for hook, like a host does around a write.
func (m *fakeModel) fire(ctx context.Context, hook history.Hook, payload any, opts *history.WriteOptions) error {
	for _, fn := range m.hooks[hook] {
		if err := fn(ctx, payload, opts); err != nil {
			return err
		}
	}

	return nil
}

// bulkCreate simulates the hook sequence of a host bulk create.
func (m *fakeModel) bulkCreate(ctx context.Context, records []history.Record, opts *history.WriteOptions) error {
	if err := m.fire(ctx, history.HookBeforeBulkCreate, records, opts); err != nil {
		return err
	}

	if opts.IndividualHooks {
		for _, record := range records {
			if err := m.fire(ctx, history.HookBeforeCreate, record, opts); err != nil {
				return err
			}
		}
	}

	if opts.IndividualHooks {
		for _, record := range records {
			if err := m.fire(ctx, history.HookAfterCreate, record, opts); err != nil {
				return err
			}
		}
	}

	return m.fire(ctx, history.HookAfterBulkCreate, records, opts)
}

func (m *fakeModel) hookCount(hook history.Hook) int {
	return len(m.hooks[hook])
}

func (m *fakeModel) storedRows() []history.Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	return slices.Clone(m.rows)
}

func givenUsersAndAccounts() (*fakeSession, *fakeModel, *fakeModel) {
	session := newFakeSession("main")

	accounts := newFakeModel(session, "accounts",
		history.FieldDefinition{Name: "id", Type: history.FieldTypeInteger, PrimaryKey: true, AutoIncrement: true},
		history.FieldDefinition{Name: "name", Type: history.FieldTypeString},
	)

	users := newFakeModel(session, "users",
		history.FieldDefinition{Name: "id", Type: history.FieldTypeInteger, PrimaryKey: true, AutoIncrement: true},
		history.FieldDefinition{Name: "name", Type: history.FieldTypeString},
		history.FieldDefinition{Name: "email", Type: history.FieldTypeString, Column: "email_address"},
		history.FieldDefinition{Name: "password", Type: history.FieldTypeString},
	)

	return session, users, accounts
}

func actingAccount(account history.Record) history.UserFunc {
	return func(context.Context) (history.Record, error) {
		return account, nil
	}
}
