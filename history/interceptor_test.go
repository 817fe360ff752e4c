package history_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/model-history-go/history"
	. "github.com/AntonStoeckl/model-history-go/testutil/helper" //nolint:revive
)

func givenTrackedUsers(t *testing.T, options ...history.Option) (*fakeModel, *fakeModel, *history.Tracker) {
	t.Helper()

	_, users, accounts := givenUsersAndAccounts()
	defaults := []history.Option{
		history.WithUserModel(accounts),
		history.WithUserFunc(actingAccount(history.Record{"id": int64(7), "name": "admin"})),
	}

	tracker, err := history.Track(context.Background(), users, append(defaults, options...)...)
	require.NoError(t, err)

	historyModel, ok := tracker.HistoryModel().(*fakeModel)
	require.True(t, ok)

	return users, historyModel, tracker
}

func Test_Interceptor_AfterCreate_WritesOneCreatedRow(t *testing.T) {
	// setup
	ctx := context.Background()
	users, historyModel, _ := givenTrackedUsers(t)
	start := time.Now()

	// arrange
	user := history.Record{"id": 1, "name": "Ada", "email": "ada@example.com", "password": "secret"}

	// act
	err := users.fire(ctx, history.HookAfterCreate, user, &history.WriteOptions{})

	// assert
	require.NoError(t, err)
	rows := historyModel.storedRows()
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0]["id"])
	assert.Equal(t, "Ada", rows[0]["name"])
	assert.Equal(t, "ada@example.com", rows[0]["email"])
	assert.Equal(t, int64(history.Created), rows[0]["version_type"])
	assert.Equal(t, int64(7), rows[0]["version_user_id"])
	assert.NotContains(t, rows[0], "version_id")

	timestamp, ok := rows[0]["version_timestamp"].(time.Time)
	require.True(t, ok)
	assert.False(t, timestamp.Before(start))
}

func Test_Interceptor_Snapshot_IsDeepCopy(t *testing.T) {
	// setup
	ctx := context.Background()
	_, users, accounts := givenUsersAndAccounts()
	users.fields = append(users.fields, history.FieldDefinition{Name: "tags", Type: history.FieldTypeJSON})

	tracker, err := history.Track(ctx, users, history.WithUserModel(accounts), history.WithUserFunc(actingAccount(nil)))
	require.NoError(t, err)

	// arrange
	tags := []string{"a", "b"}
	user := history.Record{"id": 1, "name": "Ada", "tags": tags}

	// act
	err = users.fire(ctx, history.HookAfterUpdate, user, &history.WriteOptions{})
	user["name"] = "Grace"
	tags[0] = "changed"

	// assert
	require.NoError(t, err)
	rows := tracker.HistoryModel().(*fakeModel).storedRows()
	require.Len(t, rows, 1)
	assert.Equal(t, "Ada", rows[0]["name"])
	assert.Equal(t, []string{"a", "b"}, rows[0]["tags"])
	assert.Nil(t, rows[0]["version_user_id"])
}

func Test_Interceptor_WithExclude_OmitsExcludedFields(t *testing.T) {
	// setup
	ctx := context.Background()
	users, historyModel, _ := givenTrackedUsers(t, history.WithExclude("password"))

	// act
	err := users.fire(ctx, history.HookAfterCreate, history.Record{"id": 1, "password": "secret"}, &history.WriteOptions{})

	// assert
	require.NoError(t, err)
	rows := historyModel.storedRows()
	require.Len(t, rows, 1)
	assert.NotContains(t, rows[0], "password")
}

func Test_Interceptor_BulkCreate_WritesExactlyOneRowPerInstance(t *testing.T) {
	// setup
	ctx := context.Background()
	users, historyModel, _ := givenTrackedUsers(t)

	// arrange
	records := []history.Record{{"id": 1, "name": "a"}, {"id": 2, "name": "b"}, {"id": 3, "name": "c"}}
	opts := &history.WriteOptions{}

	// act
	err := users.bulkCreate(ctx, records, opts)

	// assert
	require.NoError(t, err)
	assert.True(t, opts.IndividualHooks, "bulk writes must be forced into per-instance hooks")
	rows := historyModel.storedRows()
	require.Len(t, rows, 3)
	for i, row := range rows {
		assert.Equal(t, records[i]["id"], row["id"])
		assert.Equal(t, int64(history.Created), row["version_type"])
	}
}

func Test_Interceptor_BulkCreate_WithOnlyBulkHookObserved_WritesOneBulkInsert(t *testing.T) {
	// setup
	ctx := context.Background()
	users, historyModel, _ := givenTrackedUsers(t, history.WithHooks(history.HookAfterBulkCreate))

	// arrange
	records := []history.Record{{"id": 1}, {"id": 2}}

	// act
	err := users.bulkCreate(ctx, records, &history.WriteOptions{})

	// assert
	require.NoError(t, err)
	require.Len(t, historyModel.bulkCalls, 1)
	assert.Len(t, historyModel.bulkCalls[0].rows, 2)
}

func Test_Interceptor_WhenSameSession_PrefersAmbientOverEventTransaction(t *testing.T) {
	// setup
	users, historyModel, _ := givenTrackedUsers(t, history.WithNamespace(history.ContextNamespace{}))
	session := users.session
	eventTx := session.Begin()
	ambientTx := session.Begin()

	// act
	errEventOnly := users.fire(context.Background(), history.HookAfterCreate, history.Record{"id": 1}, &history.WriteOptions{Transaction: eventTx})
	ctx := history.ContextWithTransaction(context.Background(), ambientTx)
	errAmbient := users.fire(ctx, history.HookAfterCreate, history.Record{"id": 2}, &history.WriteOptions{Transaction: eventTx})

	// assert
	require.NoError(t, errEventOnly)
	require.NoError(t, errAmbient)
	require.Len(t, historyModel.bulkCalls, 2)
	assert.Same(t, eventTx, historyModel.bulkCalls[0].tx)
	assert.Same(t, ambientTx, historyModel.bulkCalls[1].tx)
}

func Test_Interceptor_WhenSeparateSessions_NeverUsesEventTransaction(t *testing.T) {
	// setup
	_, users, accounts := givenUsersAndAccounts()
	audit := newFakeSession("audit")
	eventTx := users.session.Begin()
	auditTx := audit.Begin()

	withoutNamespace, err := history.Track(context.Background(), users,
		history.WithSession(audit),
		history.WithUserModel(accounts),
		history.WithUserFunc(actingAccount(nil)),
	)
	require.NoError(t, err)

	// act
	err = users.fire(history.ContextWithTransaction(context.Background(), auditTx),
		history.HookAfterCreate, history.Record{"id": 1}, &history.WriteOptions{Transaction: eventTx})

	// assert
	require.NoError(t, err)
	calls := withoutNamespace.HistoryModel().(*fakeModel).bulkCalls
	require.Len(t, calls, 1)
	assert.Nil(t, calls[0].tx, "without a namespace there is no ambient transaction")
}

func Test_Interceptor_WhenSeparateSessions_UsesAmbientTransactionOfHistorySession(t *testing.T) {
	// setup
	_, users, accounts := givenUsersAndAccounts()
	audit := newFakeSession("audit")
	eventTx := users.session.Begin()
	auditTx := audit.Begin()

	tracker, err := history.Track(context.Background(), users,
		history.WithSession(audit),
		history.WithNamespace(history.ContextNamespace{}),
		history.WithUserModel(accounts),
		history.WithUserFunc(actingAccount(nil)),
	)
	require.NoError(t, err)

	// arrange
	ctx := history.ContextWithTransaction(context.Background(), auditTx)
	ctx = history.ContextWithTransaction(ctx, eventTx)

	// act
	err = users.fire(ctx, history.HookAfterCreate, history.Record{"id": 1}, &history.WriteOptions{Transaction: eventTx})

	// assert
	require.NoError(t, err)
	calls := tracker.HistoryModel().(*fakeModel).bulkCalls
	require.Len(t, calls, 1)
	assert.Same(t, auditTx, calls[0].tx)
}

func Test_Interceptor_WhenUserFuncFails_ReturnsItsErrorUnchanged(t *testing.T) {
	// setup
	errNoUser := errors.New("no user in request")
	_, users, accounts := givenUsersAndAccounts()
	tracker, err := history.Track(context.Background(), users,
		history.WithUserModel(accounts),
		history.WithUserFunc(func(context.Context) (history.Record, error) { return nil, errNoUser }),
	)
	require.NoError(t, err)

	// act
	err = users.fire(context.Background(), history.HookAfterCreate, history.Record{"id": 1}, &history.WriteOptions{})

	// assert
	assert.Same(t, errNoUser, err)
	assert.Empty(t, tracker.HistoryModel().(*fakeModel).storedRows())
}

func Test_Interceptor_WhenAuditConditionRejects_WritesNothing(t *testing.T) {
	// setup
	metrics := NewMetricsCollectorSpy()
	var seenKind history.EventKind
	users, historyModel, _ := givenTrackedUsers(t,
		history.WithMetrics(metrics),
		history.WithAuditCondition(func(_ history.Model, instances []history.Record, kind history.EventKind, user history.Record) bool {
			seenKind = kind
			return instances[0]["name"] != "ignored" && user != nil
		}),
	)

	// act
	errRejected := users.fire(context.Background(), history.HookAfterUpdate, history.Record{"id": 1, "name": "ignored"}, &history.WriteOptions{})
	errAccepted := users.fire(context.Background(), history.HookAfterUpdate, history.Record{"id": 1, "name": "kept"}, &history.WriteOptions{})

	// assert
	require.NoError(t, errRejected)
	require.NoError(t, errAccepted)
	assert.Equal(t, history.Updated, seenKind)
	rows := historyModel.storedRows()
	require.Len(t, rows, 1)
	assert.Equal(t, "kept", rows[0]["name"])
	assert.True(t, metrics.HasCounterRecordForMetric("history_events_suppressed_total").WithLabel("event_kind", "UPDATED").Assert())
}

func Test_Interceptor_WhenAuditConditionMutatesArguments_SnapshotKeepsOriginalValues(t *testing.T) {
	// setup
	users, historyModel, _ := givenTrackedUsers(t,
		history.WithAuditCondition(func(_ history.Model, instances []history.Record, _ history.EventKind, user history.Record) bool {
			instances[0]["name"] = "rewritten"
			user["id"] = int64(99)
			return true
		}),
	)

	// arrange
	user := history.Record{"id": 1, "name": "Ada"}

	// act
	err := users.fire(context.Background(), history.HookAfterUpdate, user, &history.WriteOptions{})

	// assert
	require.NoError(t, err)
	assert.Equal(t, "Ada", user["name"])
	rows := historyModel.storedRows()
	require.Len(t, rows, 1)
	assert.Equal(t, "Ada", rows[0]["name"])
	assert.Equal(t, int64(7), rows[0]["version_user_id"])
}

func Test_Interceptor_WithRepeatedHook_WritesOneRowPerEvent(t *testing.T) {
	// setup
	withRepeatedHook := history.WithHooks(history.HookAfterCreate, history.HookAfterCreate, history.HookAfterDestroy)
	users, historyModel, _ := givenTrackedUsers(t, withRepeatedHook)

	// arrange
	config := history.DefaultConfig()
	require.NoError(t, withRepeatedHook(&config))

	// act
	err := users.fire(context.Background(), history.HookAfterCreate, history.Record{"id": 1, "name": "Ada"}, &history.WriteOptions{})

	// assert
	require.NoError(t, err)
	assert.Len(t, historyModel.storedRows(), 1)
	assert.Equal(t, []history.Hook{history.HookAfterCreate, history.HookAfterDestroy}, config.Hooks())
}

func Test_Interceptor_WhenBulkInsertFails_ReturnsPersistenceError(t *testing.T) {
	// setup
	errDisk := errors.New("disk full")
	logHandler := NewLogHandlerSpy(false)
	metrics := NewMetricsCollectorSpy()
	tracing := NewTracingCollectorSpy()
	users, historyModel, _ := givenTrackedUsers(t,
		history.WithContextualLogger(slog.New(logHandler)),
		history.WithMetrics(metrics),
		history.WithTracing(tracing),
	)
	historyModel.bulkErr = errDisk

	// act
	err := users.fire(context.Background(), history.HookAfterDestroy, history.Record{"id": 1}, &history.WriteOptions{})

	// assert
	assert.ErrorIs(t, err, history.ErrPersistence)
	assert.ErrorIs(t, err, history.ErrPersistingHistoryFailed)
	assert.ErrorIs(t, err, errDisk)
	assert.True(t, logHandler.HasErrorLogWithMessage("persisting history rows failed").WithAttribute("model", "users").Assert())
	assert.True(t, metrics.HasCounterRecordForMetric("history_write_errors_total").WithLabel("error_type", "persist").Assert())
	assert.True(t, tracing.HasSpanRecordForName("history.write").WithStatus("error").Assert())
}

func Test_Interceptor_WhenPayloadIsUnsupported_ReturnsError(t *testing.T) {
	// setup
	users, historyModel, _ := givenTrackedUsers(t)

	// act
	err := users.fire(context.Background(), history.HookAfterCreate, 42, &history.WriteOptions{})

	// assert
	assert.ErrorIs(t, err, history.ErrUnsupportedPayload)
	assert.Empty(t, historyModel.storedRows())
}

func Test_Interceptor_WithReadHooks_WritesReadRows(t *testing.T) {
	// setup
	users, historyModel, _ := givenTrackedUsers(t, history.WithHooks(history.HookAfterFind))

	// act
	err := users.fire(context.Background(), history.HookAfterFind, []history.Record{{"id": 1}, {"id": 2}}, &history.WriteOptions{})

	// assert
	require.NoError(t, err)
	rows := historyModel.storedRows()
	require.Len(t, rows, 2)
	assert.Equal(t, int64(history.Read), rows[1]["version_type"])
}

func Test_Interceptor_WhenPayloadIsEmpty_WritesNothing(t *testing.T) {
	// setup
	users, historyModel, _ := givenTrackedUsers(t)

	// act
	err := users.fire(context.Background(), history.HookAfterBulkUpdate, []history.Record{}, &history.WriteOptions{})

	// assert
	require.NoError(t, err)
	assert.Empty(t, historyModel.bulkCalls)
}

func Test_Interceptor_WithObservability_RecordsSuccessfulWrite(t *testing.T) {
	// setup
	logHandler := NewLogHandlerSpy(false)
	metrics := NewContextualMetricsCollectorSpy()
	tracing := NewTracingCollectorSpy()
	users, _, _ := givenTrackedUsers(t,
		history.WithContextualLogger(slog.New(logHandler)),
		history.WithMetrics(metrics),
		history.WithTracing(tracing),
	)

	// act
	err := users.fire(context.Background(), history.HookAfterCreate, []history.Record{{"id": 1}, {"id": 2}}, &history.WriteOptions{})

	// assert
	require.NoError(t, err)
	assert.True(t,
		logHandler.HasInfoLogWithMessage("history operation: rows written").
			WithDurationMS().
			WithRowCount(2).
			Assert(),
	)
	assert.True(t, metrics.HasValueRecordForMetric("history_write_rows").WithValue(2).WithStatus("success").Assert())
	assert.True(t, metrics.HasDurationRecordForMetric("history_write_duration_seconds").WithLabel("model", "users").Assert())
	assert.Positive(t, metrics.ContextCalls(), "context-aware methods should be preferred")
	assert.True(t,
		tracing.HasSpanRecordForName("history.write").
			WithStartAttribute("history.hook", "afterCreate").
			WithStatus("success").
			WithEndAttribute("history.row_count", "2").
			Assert(),
	)
}
