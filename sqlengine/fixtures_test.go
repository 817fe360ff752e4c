package sqlengine_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/model-history-go/history"
	"github.com/AntonStoeckl/model-history-go/sqlengine"
)

var errTooShort = errors.New("name too short")

func userFields() []history.FieldDefinition {
	return []history.FieldDefinition{
		{Name: "id", Type: history.FieldTypeBigInt, PrimaryKey: true, AutoIncrement: true},
		{
			Name:    "name",
			Type:    history.FieldTypeString,
			NotNull: true,
			Validate: func(value any) error {
				if name, _ := value.(string); len(name) < 2 {
					return errTooShort
				}
				return nil
			},
		},
		{
			Name:   "email",
			Type:   history.FieldTypeString,
			Column: "email_address",
			Set: func(value any) any {
				if email, ok := value.(string); ok {
					return strings.ToLower(email)
				}
				return value
			},
		},
		{Name: "active", Type: history.FieldTypeBoolean, Default: true},
		{Name: "profile", Type: history.FieldTypeJSON},
		{Name: "team", Type: history.FieldTypeInteger},
	}
}

// givenUsers defines and syncs a users model with timestamps.
func givenUsers(t *testing.T, engine *sqlengine.Engine) *sqlengine.Model {
	t.Helper()

	users, err := engine.DefineModel(context.Background(), history.ModelDefinition{
		Name:       "User",
		Table:      "users",
		Fields:     userFields(),
		Timestamps: true,
	})
	require.NoError(t, err, "error in arranging test data")
	require.NoError(t, engine.Sync(context.Background()), "error in arranging test data")

	return users
}

func givenStoredUsers(t *testing.T, users *sqlengine.Model, names ...string) []history.Record {
	t.Helper()

	records := make([]history.Record, 0, len(names))
	for i, name := range names {
		records = append(records, history.Record{"name": name, "email": name + "@example.com", "team": i % 2})
	}

	created, err := users.BulkCreate(context.Background(), records, history.WriteOptions{})
	require.NoError(t, err, "error in arranging test data")

	return created
}

// hookRecorder records which hooks fired with which payloads.
type hookRecorder struct {
	mu       sync.Mutex
	fired    []history.Hook
	payloads map[history.Hook][]any
}

func newHookRecorder() *hookRecorder {
	return &hookRecorder{
		payloads: make(map[history.Hook][]any),
	}
}

func (r *hookRecorder) observe(model *sqlengine.Model, hooks ...history.Hook) {
	for _, hook := range hooks {
		model.AddHook(hook, func(_ context.Context, payload any, _ *history.WriteOptions) error {
			r.mu.Lock()
			defer r.mu.Unlock()

			r.fired = append(r.fired, hook)
			r.payloads[hook] = append(r.payloads[hook], payload)

			return nil
		})
	}
}

func (r *hookRecorder) firedHooks() []history.Hook {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]history.Hook(nil), r.fired...)
}

func (r *hookRecorder) payloadsOf(hook history.Hook) []any {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.payloads[hook]
}

func allHooks() []history.Hook {
	return []history.Hook{
		history.HookBeforeCreate,
		history.HookAfterCreate,
		history.HookBeforeBulkCreate,
		history.HookAfterBulkCreate,
		history.HookBeforeUpdate,
		history.HookAfterUpdate,
		history.HookBeforeBulkUpdate,
		history.HookAfterBulkUpdate,
		history.HookBeforeDestroy,
		history.HookAfterDestroy,
		history.HookBeforeFind,
		history.HookAfterFind,
	}
}
