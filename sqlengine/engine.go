package sqlengine

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"sync"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect import
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"  // dialect import
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/AntonStoeckl/model-history-go/history"
	"github.com/AntonStoeckl/model-history-go/sqlengine/internal/adapters"
)

// Field names added to models defined with timestamps.
const (
	FieldCreatedAt = "created_at"
	FieldUpdatedAt = "updated_at"
)

// Engine is a history.Session over a SQL database.
// It keeps the registry of defined models and builds all statements with goqu.
type Engine struct {
	db               adapters.DBAdapter
	dialect          Dialect
	builder          goqu.DialectWrapper
	logger           history.Logger
	contextualLogger history.ContextualLogger
	models           map[string]*Model
	order            []*Model
	mu               sync.RWMutex
}

// NewEngineFromPGXPool creates a new Engine using a pgx Pool with optional configuration.
func NewEngineFromPGXPool(db *pgxpool.Pool, options ...Option) (*Engine, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	return newEngine(adapters.NewPGXAdapter(db), options...)
}

// NewEngineFromSQLDB creates a new Engine using a sql.DB with optional configuration.
// Use WithDialect(DialectSQLite) for sqlite connections.
func NewEngineFromSQLDB(db *sql.DB, options ...Option) (*Engine, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	return newEngine(adapters.NewSQLAdapter(db), options...)
}

// NewEngineFromSQLX creates a new Engine using a sqlx.DB with optional configuration.
func NewEngineFromSQLX(db *sqlx.DB, options ...Option) (*Engine, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	return newEngine(adapters.NewSQLXAdapter(db), options...)
}

func newEngine(db adapters.DBAdapter, options ...Option) (*Engine, error) {
	e := &Engine{
		db:      db,
		dialect: DialectPostgres,
		models:  make(map[string]*Model),
	}

	for _, option := range options {
		if err := option(e); err != nil {
			return nil, err
		}
	}

	e.builder = goqu.Dialect(string(e.dialect))

	return e, nil
}

// Dialect returns the configured SQL dialect.
func (e *Engine) Dialect() Dialect {
	return e.dialect
}

// Define implements history.Session.
func (e *Engine) Define(ctx context.Context, def history.ModelDefinition) (history.Model, error) {
	m, err := e.DefineModel(ctx, def)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// DefineModel registers a model and returns it with its full API.
// Tables are not created before Sync is called.
func (e *Engine) DefineModel(ctx context.Context, def history.ModelDefinition) (*Model, error) {
	if def.Name == "" || len(def.Fields) == 0 {
		return nil, fmt.Errorf("%w: model %q needs a name and at least one field", ErrInvalidModelDefinition, def.Name)
	}

	if def.Schema != "" && e.dialect == DialectSQLite {
		return nil, fmt.Errorf("%w: %s", ErrSchemaUnsupported, def.Schema)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.models[def.Name]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateModel, def.Name)
	}

	m, err := newModel(e, def)
	if err != nil {
		return nil, err
	}

	e.models[def.Name] = m
	e.order = append(e.order, m)

	e.logOperation(ctx, logMsgModelDefined, logAttrModel, m.name, logAttrTable, m.table)

	return m, nil
}

// Model looks up a defined model by name.
func (e *Engine) Model(name string) (*Model, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	m, ok := e.models[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, name)
	}

	return m, nil
}

// Models returns all defined models in definition order.
func (e *Engine) Models() []*Model {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return slices.Clone(e.order)
}

// querier resolves where a statement runs: the explicit transaction, else the ambient one of this engine,
// else the connection pool.
func (e *Engine) querier(ctx context.Context, tx history.Tx) (adapters.Querier, error) {
	if tx != nil {
		own, ok := tx.(*Tx)
		if !ok || own.engine != e {
			return nil, ErrForeignTransaction
		}

		if own.isDone() {
			return nil, ErrTransactionDone
		}

		return own.db, nil
	}

	if ambient, ok := history.TransactionFromContext(ctx, e); ok {
		if own, ok := ambient.(*Tx); ok && !own.isDone() {
			return own.db, nil
		}
	}

	return e.db, nil
}
