package sqlengine_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/model-history-go/history"
	"github.com/AntonStoeckl/model-history-go/sqlengine"
	. "github.com/AntonStoeckl/model-history-go/testutil/helper" //nolint:revive
)

func Test_NewEngine_WhenDatabaseIsNil_Fails(t *testing.T) {
	testCases := []struct {
		name        string
		factoryFunc func() (*sqlengine.Engine, error)
	}{
		{
			name: "NewEngineFromPGXPool with nil",
			factoryFunc: func() (*sqlengine.Engine, error) {
				var pool *pgxpool.Pool
				return sqlengine.NewEngineFromPGXPool(pool)
			},
		},
		{
			name: "NewEngineFromSQLDB with nil",
			factoryFunc: func() (*sqlengine.Engine, error) {
				return sqlengine.NewEngineFromSQLDB(nil)
			},
		},
		{
			name: "NewEngineFromSQLX with nil",
			factoryFunc: func() (*sqlengine.Engine, error) {
				var db *sqlx.DB
				return sqlengine.NewEngineFromSQLX(db)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			engine, err := tc.factoryFunc()

			assert.Nil(t, engine)
			assert.ErrorIs(t, err, sqlengine.ErrNilDatabaseConnection)
		})
	}
}

func Test_WithDialect_WhenUnsupported_Fails(t *testing.T) {
	// act
	_, err := sqlengine.NewEngineFromSQLDB(CreateSQLiteDB(t, "dialect"), sqlengine.WithDialect("oracle"))

	// assert
	assert.ErrorIs(t, err, sqlengine.ErrUnsupportedDialect)
}

func Test_NewEngine_WhenNoDialectGiven_DefaultsToPostgres(t *testing.T) {
	// act
	engine, err := sqlengine.NewEngineFromSQLDB(CreateSQLiteDB(t, "default"))

	// assert
	require.NoError(t, err)
	assert.Equal(t, sqlengine.DialectPostgres, engine.Dialect())
}

func Test_DefineModel_WhenDefinitionIsInvalid_Fails(t *testing.T) {
	testCases := []struct {
		name       string
		definition history.ModelDefinition
		expected   error
	}{
		{
			name:       "no name",
			definition: history.ModelDefinition{Fields: userFields()},
			expected:   sqlengine.ErrInvalidModelDefinition,
		},
		{
			name:       "no fields",
			definition: history.ModelDefinition{Name: "Empty"},
			expected:   sqlengine.ErrInvalidModelDefinition,
		},
		{
			name: "duplicate field",
			definition: history.ModelDefinition{Name: "Twice", Fields: []history.FieldDefinition{
				{Name: "a", Type: history.FieldTypeString},
				{Name: "a", Type: history.FieldTypeString},
			}},
			expected: sqlengine.ErrInvalidModelDefinition,
		},
		{
			name: "duplicate column",
			definition: history.ModelDefinition{Name: "Columns", Fields: []history.FieldDefinition{
				{Name: "a", Type: history.FieldTypeString, Column: "c"},
				{Name: "b", Type: history.FieldTypeString, Column: "c"},
			}},
			expected: sqlengine.ErrInvalidModelDefinition,
		},
		{
			name: "auto increment on text",
			definition: history.ModelDefinition{Name: "Text", Fields: []history.FieldDefinition{
				{Name: "id", Type: history.FieldTypeText, PrimaryKey: true, AutoIncrement: true},
			}},
			expected: sqlengine.ErrInvalidModelDefinition,
		},
		{
			name: "auto increment outside the key",
			definition: history.ModelDefinition{Name: "Counter", Fields: []history.FieldDefinition{
				{Name: "id", Type: history.FieldTypeUUID, PrimaryKey: true},
				{Name: "n", Type: history.FieldTypeInteger, AutoIncrement: true},
			}},
			expected: sqlengine.ErrInvalidModelDefinition,
		},
		{
			name:       "schema on sqlite",
			definition: history.ModelDefinition{Name: "Audited", Schema: "audit", Fields: userFields()},
			expected:   sqlengine.ErrSchemaUnsupported,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			engine := CreateSQLiteEngine(t)

			_, err := engine.DefineModel(context.Background(), tc.definition)

			assert.ErrorIs(t, err, tc.expected)
		})
	}
}

func Test_DefineModel_WhenNameIsTaken_Fails(t *testing.T) {
	// setup
	ctx := context.Background()
	engine := CreateSQLiteEngine(t)
	givenUsers(t, engine)

	// act
	_, err := engine.Define(ctx, history.ModelDefinition{Name: "User", Fields: userFields()})

	// assert
	assert.ErrorIs(t, err, sqlengine.ErrDuplicateModel)
}

func Test_Model_WhenLookedUp(t *testing.T) {
	// setup
	engine := CreateSQLiteEngine(t)
	users := givenUsers(t, engine)

	// act
	found, err := engine.Model("User")
	_, missingErr := engine.Model("Account")

	// assert
	require.NoError(t, err)
	assert.Same(t, users, found)
	assert.ErrorIs(t, missingErr, sqlengine.ErrUnknownModel)
	assert.Equal(t, []*sqlengine.Model{users}, engine.Models())
}

func Test_Sync_WhenRunTwice_KeepsData(t *testing.T) {
	// setup
	ctx := context.Background()
	engine := CreateSQLiteEngine(t)
	users := givenUsers(t, engine)
	givenStoredUsers(t, users, "Ada")

	// act
	err := engine.Sync(ctx)

	// assert
	require.NoError(t, err)
	found, err := users.FindAll(ctx, history.Query{})
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

func Test_Drop_RemovesTables(t *testing.T) {
	// setup
	ctx := context.Background()
	engine := CreateSQLiteEngine(t)
	users := givenUsers(t, engine)

	// act
	err := engine.Drop(ctx)

	// assert
	require.NoError(t, err)
	_, err = users.FindAll(ctx, history.Query{})
	assert.ErrorIs(t, err, sqlengine.ErrQueryingFailed)
}

func Test_Engine_WhenLoggerConfigured_LogsStatementsAndOperations(t *testing.T) {
	// setup
	logHandler := NewLogHandlerSpy(false)
	engine := CreateSQLiteEngine(t, sqlengine.WithLogger(slog.New(logHandler)))
	users := givenUsers(t, engine)

	// act
	givenStoredUsers(t, users, "Ada", "Grace")

	// assert
	assert.True(t, logHandler.HasInfoLogWithMessage("sqlengine operation: model defined").
		WithAttribute("table", "users").Assert())
	assert.True(t, logHandler.HasDebugLogWithMessage("executed sql for: ddl").WithDurationMS().Assert())
	assert.True(t, logHandler.HasDebugLogWithMessage("executed sql for: bulk_create").WithDurationMS().Assert())
	assert.True(t, logHandler.HasInfoLogWithMessage("sqlengine operation: rows written for: bulk_create").
		WithRowCount(2).WithDurationMS().Assert())
}

func Test_Engine_WhenContextualLoggerConfigured_LogsErrors(t *testing.T) {
	// setup
	ctx := context.Background()
	logHandler := NewLogHandlerSpy(false)
	engine := CreateSQLiteEngine(t, sqlengine.WithContextualLogger(slog.New(logHandler)))
	users, err := engine.DefineModel(ctx, history.ModelDefinition{Name: "User", Table: "users", Fields: userFields()})
	require.NoError(t, err, "error in arranging test data")

	// act
	_, err = users.FindAll(ctx, history.Query{})

	// assert
	assert.ErrorIs(t, err, sqlengine.ErrQueryingFailed)
	assert.True(t, logHandler.HasErrorLogWithMessage("database query execution failed").
		WithAttribute("model", "User").Assert())
}
