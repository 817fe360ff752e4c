package history

import (
	"context"
	"fmt"
)

// Named scopes added to every history model.
const (
	ScopeCreated = "created"
	ScopeUpdated = "updated"
	ScopeDeleted = "deleted"
)

// UserRelation is the name of the relation from a history model to the acting-user model.
const UserRelation = "user"

// defineHistoryModel registers the history model on the history session and attaches its scopes.
func (t *Tracker) defineHistoryModel(ctx context.Context) (Model, error) {
	schema := t.config.schema
	if schema == "" {
		schema = t.model.SchemaName()
	}

	def := ModelDefinition{
		Name:       t.names.Model,
		Table:      t.names.Table,
		Schema:     schema,
		Fields:     t.fields,
		Timestamps: false,
		Relations: []Relation{
			{
				Name:       UserRelation,
				Kind:       RelationBelongsTo,
				Target:     t.config.userModel,
				ForeignKey: t.names.UserID,
			},
		},
		Description: fmt.Sprintf("history of %s", t.model.Name()),
	}

	historyModel, err := t.historySession.Define(ctx, def)
	if err != nil {
		return nil, configurationError(ErrDefiningHistoryModelFailed, err)
	}

	historyModel.AddScope(ScopeCreated, Where{t.names.Type: int64(Created)})
	historyModel.AddScope(ScopeUpdated, Where{t.names.Type: int64(Updated)})
	historyModel.AddScope(ScopeDeleted, Where{t.names.Type: int64(Deleted)})

	return historyModel, nil
}
