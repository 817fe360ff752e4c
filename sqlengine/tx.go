package sqlengine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/AntonStoeckl/model-history-go/history"
	"github.com/AntonStoeckl/model-history-go/sqlengine/internal/adapters"
)

// Tx is a database transaction of an Engine. It implements history.Tx.
type Tx struct {
	engine *Engine
	db     adapters.DBTx
	done   atomic.Bool
}

// Begin starts a transaction. The caller must Commit or Rollback it.
func (e *Engine) Begin(ctx context.Context) (*Tx, error) {
	dbTx, err := e.db.Begin(ctx)
	if err != nil {
		e.logError(ctx, logMsgBeginFailed, err)
		return nil, fmt.Errorf("begin transaction: %w", err)
	}

	return &Tx{engine: e, db: dbTx}, nil
}

// Session implements history.Tx.
func (tx *Tx) Session() history.Session {
	return tx.engine
}

// Commit commits the transaction.
func (tx *Tx) Commit(ctx context.Context) error {
	if !tx.done.CompareAndSwap(false, true) {
		return ErrTransactionDone
	}

	return tx.db.Commit(ctx)
}

// Rollback aborts the transaction.
func (tx *Tx) Rollback(ctx context.Context) error {
	if !tx.done.CompareAndSwap(false, true) {
		return ErrTransactionDone
	}

	return tx.db.Rollback(ctx)
}

func (tx *Tx) isDone() bool {
	return tx.done.Load()
}

// Transaction runs fn inside a new transaction.
//
// The context passed to fn carries the transaction, so every write of this engine made with it joins the
// transaction without passing it explicitly. The transaction commits when fn returns nil and rolls back when
// fn returns an error or panics.
//
// Example usage:
//
//	err := engine.Transaction(ctx, func(ctx context.Context, tx *sqlengine.Tx) error {
//		_, err := users.BulkUpdate(ctx, history.Record{"active": false}, history.Where{"team": 7}, history.WriteOptions{})
//		return err
//	})
func (e *Engine) Transaction(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) (err error) {
	tx, err := e.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if fnErr := fn(history.ContextWithTransaction(ctx, tx), tx); fnErr != nil {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, ErrTransactionDone) {
			e.logWarn(ctx, logMsgRollbackFailed, logAttrError, rollbackErr.Error())
			return errors.Join(fnErr, rollbackErr)
		}

		return fnErr
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		e.logError(ctx, logMsgCommitFailed, commitErr)
		return fmt.Errorf("commit transaction: %w", commitErr)
	}

	return nil
}
