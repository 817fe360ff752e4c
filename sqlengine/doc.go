// Package sqlengine provides a SQL implementation of the history host data-model layer.
//
// An Engine is a history.Session: it registers models, creates their tables and runs every write through
// the lifecycle hooks the history package installs. Statements are built with goqu for PostgreSQL and SQLite,
// connections come from pgx, database/sql or sqlx.
//
// Key features:
//   - Multiple database adapter support (PGX, SQL, SQLX)
//   - Single and bulk writes with before and after hooks, bulk hooks may switch on per-instance hooks
//   - Explicit and ambient (context carried) transactions
//   - Field setters, getters, defaults and validators
//   - Table creation with foreign keys for belongsTo relations
//
// Usage examples:
//
//	db, _ := pgxpool.New(context.Background(), dsn)
//	engine, _ := sqlengine.NewEngineFromPGXPool(db, sqlengine.WithLogger(logger))
//
//	users, _ := engine.DefineModel(ctx, history.ModelDefinition{Name: "User", Table: "users", Fields: fields})
//	tracker, _ := history.Track(ctx, users, history.WithUserModel(users), history.WithUserFunc(currentUser))
//	_ = engine.Sync(ctx)
//
//	err := engine.Transaction(ctx, func(ctx context.Context, tx *sqlengine.Tx) error {
//		_, err := users.Create(ctx, history.Record{"name": "Ada"}, history.WriteOptions{})
//		return err
//	})
package sqlengine
