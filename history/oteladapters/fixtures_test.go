package oteladapters_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/model-history-go/history"
	"github.com/AntonStoeckl/model-history-go/sqlengine"
)

// givenSQLiteUsers defines a tracked users model on engine and syncs both tables.
func givenSQLiteUsers(t *testing.T, engine *sqlengine.Engine, options ...history.Option) *sqlengine.Model {
	t.Helper()

	ctx := context.Background()

	users, err := engine.DefineModel(ctx, history.ModelDefinition{
		Name:  "User",
		Table: "users",
		Fields: []history.FieldDefinition{
			{Name: "id", Type: history.FieldTypeBigInt, PrimaryKey: true, AutoIncrement: true},
			{Name: "name", Type: history.FieldTypeString},
		},
	})
	require.NoError(t, err, "error in arranging test data")

	options = append([]history.Option{
		history.WithUserModel(users),
		history.WithUserFunc(func(context.Context) (history.Record, error) { return nil, nil }),
	}, options...)

	_, err = history.Track(ctx, users, options...)
	require.NoError(t, err, "error in arranging test data")
	require.NoError(t, engine.Sync(ctx), "error in arranging test data")

	return users
}
