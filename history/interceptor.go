package history

import (
	"context"
	"slices"
	"time"
)

// forcedIndividualHooks are always installed so that bulk writes fan out into per-instance events.
var forcedIndividualHooks = []Hook{
	HookBeforeBulkCreate,
	HookBeforeBulkUpdate,
	HookAfterBulkCreate,
	HookAfterBulkUpdate,
}

// forceIndividualHooks is the handler behind forcedIndividualHooks.
func forceIndividualHooks(_ context.Context, _ any, opts *WriteOptions) error {
	if opts != nil {
		opts.IndividualHooks = true
	}

	return nil
}

// installHooks attaches the forcing hooks and one history handler per observed hook to the tracked model.
func (t *Tracker) installHooks(ctx context.Context) error {
	for _, hook := range forcedIndividualHooks {
		t.model.AddHook(hook, forceIndividualHooks)
	}

	for _, hook := range t.config.hooks {
		kind, err := EventKindForHook(hook)
		if err != nil {
			return configurationError(err)
		}

		t.model.AddHook(hook, t.handler(hook, kind))
		t.logDebug(ctx, logMsgHookInstalled, logAttrModel, t.model.Name(), logAttrHook, string(hook), logAttrEventKind, kind.String())
	}

	return nil
}

// handler builds the history handler of one observed hook.
func (t *Tracker) handler(hook Hook, kind EventKind) HookFunc {
	return func(ctx context.Context, payload any, opts *WriteOptions) error {
		if t.coveredByIndividualHooks(hook, opts) {
			t.logDebug(ctx, logMsgCoveredByInstance, logAttrModel, t.model.Name(), logAttrHook, string(hook))
			return nil
		}

		instances, err := ToRecords(payload)
		if err != nil {
			t.logError(ctx, logMsgPayloadFailed, err, logAttrModel, t.model.Name(), logAttrHook, string(hook))
			t.recordWriteError(ctx, kind, errorTypePayload, 0)
			return err
		}

		tx := t.resolveTransaction(ctx, opts)

		user, err := t.config.userFunc(ctx)
		if err != nil {
			t.logError(ctx, logMsgUserFuncFailed, err, logAttrModel, t.model.Name(), logAttrHook, string(hook))
			t.recordWriteError(ctx, kind, errorTypeUserFunc, 0)
			return err
		}

		if t.config.auditCondition != nil && !t.config.auditCondition(t.model, cloneRecords(instances), kind, user.Clone()) {
			t.logDebug(ctx, logMsgEventSuppressed, logAttrModel, t.model.Name(), logAttrEventKind, kind.String())
			t.recordSuppressed(ctx, kind)
			return nil
		}

		if len(instances) == 0 {
			return nil
		}

		return t.persist(ctx, hook, kind, t.snapshots(instances, kind, user), tx)
	}
}

// coveredByIndividualHooks reports whether a bulk event's instances are already recorded by an observed
// per-instance hook of the same write.
func (t *Tracker) coveredByIndividualHooks(hook Hook, opts *WriteOptions) bool {
	if opts == nil || !opts.IndividualHooks {
		return false
	}

	counterpart, ok := hook.individualCounterpart()
	if !ok {
		return false
	}

	return slices.Contains(t.config.hooks, counterpart)
}

// resolveTransaction picks the transaction the history rows are written with.
//
// With a shared session the ambient transaction wins over the event's one. With separate sessions only
// an ambient transaction of the history session qualifies, the event's transaction belongs to another session.
func (t *Tracker) resolveTransaction(ctx context.Context, opts *WriteOptions) Tx {
	var ambient Tx
	if t.config.namespace != nil {
		if tx, ok := t.config.namespace.Transaction(ctx, t.historySession); ok {
			ambient = tx
		}
	}

	if !t.sameSession {
		return ambient
	}

	if ambient != nil {
		return ambient
	}

	if opts != nil {
		return opts.Transaction
	}

	return nil
}

// snapshots captures one history row per instance.
func (t *Tracker) snapshots(instances []Record, kind EventKind, user Record) []Record {
	now := t.now()

	var userID any
	if user != nil {
		userID = user[t.userKey]
	}

	rows := make([]Record, 0, len(instances))
	for _, instance := range instances {
		row := instance.Pick(t.snapshotFields)
		row[t.names.Type] = int64(kind)
		row[t.names.Timestamp] = now
		row[t.names.UserID] = userID
		rows = append(rows, row)
	}

	return rows
}

// persist writes all rows of one event with a single bulk insert.
func (t *Tracker) persist(ctx context.Context, hook Hook, kind EventKind, rows []Record, tx Tx) error {
	tracing, ctx := t.startWriteTracing(ctx, hook, kind)

	start := time.Now()
	_, err := t.historyModel.BulkCreate(ctx, rows, WriteOptions{Transaction: tx})
	duration := time.Since(start)

	if err != nil {
		t.logError(ctx, logMsgPersistFailed, err,
			logAttrModel, t.model.Name(),
			logAttrHook, string(hook),
			logAttrRowCount, len(rows),
		)
		t.recordWriteError(ctx, kind, errorTypePersist, duration)
		tracing.finishError(errorTypePersist)

		return persistenceError(err)
	}

	t.logOperation(ctx, logMsgRowsWritten,
		logAttrModel, t.model.Name(),
		logAttrHistoryModel, t.names.Model,
		logAttrEventKind, kind.String(),
		logAttrRowCount, len(rows),
		logAttrTransaction, tx != nil,
		logAttrDurationMS, toMilliseconds(duration),
	)
	t.recordWriteSuccess(ctx, kind, len(rows), duration)
	tracing.finishSuccess(len(rows), duration)

	return nil
}
