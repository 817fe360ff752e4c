package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AntonStoeckl/model-history-go/history"
	"github.com/AntonStoeckl/model-history-go/sqlengine"
)

type actorKey struct{}

func withActor(ctx context.Context, actor history.Record) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func actingUser(ctx context.Context) (history.Record, error) {
	actor, _ := ctx.Value(actorKey{}).(history.Record)
	return actor, nil
}

// run defines accounts and users, tracks users and walks one user through its whole lifecycle.
func run(ctx context.Context, engine *sqlengine.Engine, logger *slog.Logger, trackingOptions []history.Option) error {
	accounts, err := engine.DefineModel(ctx, history.ModelDefinition{
		Name:  "Account",
		Table: "accounts",
		Fields: []history.FieldDefinition{
			{Name: "id", Type: history.FieldTypeBigInt, PrimaryKey: true, AutoIncrement: true},
			{Name: "login", Type: history.FieldTypeString, NotNull: true, Unique: true},
		},
	})
	if err != nil {
		return err
	}

	users, err := engine.DefineModel(ctx, history.ModelDefinition{
		Name:       "User",
		Table:      "users",
		Timestamps: true,
		Fields: []history.FieldDefinition{
			{Name: "id", Type: history.FieldTypeBigInt, PrimaryKey: true, AutoIncrement: true},
			{Name: "name", Type: history.FieldTypeString, NotNull: true},
			{Name: "team", Type: history.FieldTypeInteger},
			{Name: "active", Type: history.FieldTypeBoolean, Default: true},
			{Name: "settings", Type: history.FieldTypeJSON},
		},
	})
	if err != nil {
		return err
	}

	trackingOptions = append(trackingOptions,
		history.WithUserModel(accounts),
		history.WithUserFunc(actingUser),
	)

	tracker, err := history.Track(ctx, users, trackingOptions...)
	if err != nil {
		return err
	}

	if err := engine.Sync(ctx); err != nil {
		return err
	}

	admin, err := accounts.Create(ctx, history.Record{"login": fmt.Sprintf("admin-%d", time.Now().UnixNano())}, history.WriteOptions{})
	if err != nil {
		return err
	}

	ctx = withActor(ctx, admin)

	created, err := users.BulkCreate(ctx, []history.Record{
		{"name": "Ada", "team": 1, "settings": map[string]any{"theme": "dark"}},
		{"name": "Grace", "team": 1},
		{"name": "Linus", "team": 2},
	}, history.WriteOptions{})
	if err != nil {
		return err
	}

	err = engine.Transaction(ctx, func(ctx context.Context, _ *sqlengine.Tx) error {
		if _, err := users.BulkUpdate(ctx, history.Record{"active": false}, history.Where{"team": 1}, history.WriteOptions{}); err != nil {
			return err
		}

		return users.Destroy(ctx, created[2], history.WriteOptions{})
	})
	if err != nil {
		return err
	}

	for _, user := range created {
		versions, err := tracker.Versions(ctx, user, history.Query{Order: []history.Order{{Field: tracker.Names().ID}}})
		if err != nil {
			return err
		}

		for _, version := range versions {
			kind := history.EventKind(version[tracker.Names().Type].(int64))
			logger.Info("history row",
				"user", user["name"],
				"event_kind", kind.String(),
				"active", version["active"],
				"acting_user", version[tracker.Names().UserID],
				"at", version[tracker.Names().Timestamp],
			)
		}
	}

	return nil
}
