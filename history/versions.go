package history

import (
	"context"
	"maps"
)

// Versions returns the history rows of one tracked instance.
//
// The caller's where clause is applied first and the instance's primary key values are layered on top,
// so a query can never escape the instance. Models tracked with WithUnscopedVersions are not restricted.
func (t *Tracker) Versions(ctx context.Context, instance Record, query Query) ([]Record, error) {
	if instance == nil {
		return nil, ErrInstanceRequired
	}

	where := make(Where, len(query.Where)+len(t.primaryKeys))
	maps.Copy(where, query.Where)

	for _, key := range t.primaryKeys {
		where[key] = instance[key]
	}

	query.Where = where

	return t.historyModel.FindAll(ctx, query)
}

// AllVersions returns the history rows of the whole tracked model.
func (t *Tracker) AllVersions(ctx context.Context, query Query) ([]Record, error) {
	return t.historyModel.FindAll(ctx, query)
}
