// Package history adds automatic audit history to models of a host data-model layer.
//
// For every tracked model, a parallel history model is derived from the model's field
// definitions. Lifecycle hooks are installed on the tracked model so that each create,
// update, destroy (and optionally find) event writes one immutable snapshot row per
// affected instance into the history model, inside the transaction of the triggering
// write whenever one is available.
//
// The host data-model layer is described by the Session, Model and Tx interfaces.
// The sqlengine package provides a SQL implementation of them.
//
// Key types:
//   - FieldDefinition: explicit description of one model field
//   - Names: resolved history table, model and provenance field names
//   - EventKind: CREATED, UPDATED, DELETED, READ
//   - Tracker: the registration result, holding the history model and the query accessors
//
// Common usage pattern:
//
//	tracker, err := history.Track(
//		ctx,
//		users,
//		history.WithUserModel(accounts),
//		history.WithUserFunc(func(ctx context.Context) (history.Record, error) {
//			return auth.AccountFromContext(ctx), nil
//		}),
//	)
//	if err != nil {
//		// handle error
//	}
//
//	versions, err := tracker.Versions(ctx, user, history.Query{})
package history
