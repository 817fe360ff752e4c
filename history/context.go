package history

import "context"

// contextKey is a private type to prevent context key collisions.
type contextKey string

// TransactionsKey is the context key used to store ambient transactions.
const TransactionsKey contextKey = "history.transactions"

// transactions is an immutable stack of ambient transactions, innermost first.
type transactions struct {
	tx    Tx
	outer *transactions
}

// ContextWithTransaction returns a context that carries tx as the ambient transaction of its session.
//
// Transactions of different sessions can be carried at the same time, the innermost one per session wins.
//
// Example usage:
//
//	ctx = history.ContextWithTransaction(ctx, tx)
//	_, err := users.Create(ctx, user, history.WriteOptions{})
func ContextWithTransaction(ctx context.Context, tx Tx) context.Context {
	if tx == nil {
		return ctx
	}

	outer, _ := ctx.Value(TransactionsKey).(*transactions)

	return context.WithValue(ctx, TransactionsKey, &transactions{tx: tx, outer: outer})
}

// TransactionFromContext returns the innermost ambient transaction belonging to session.
func TransactionFromContext(ctx context.Context, session Session) (Tx, bool) {
	stack, _ := ctx.Value(TransactionsKey).(*transactions)
	for ; stack != nil; stack = stack.outer {
		if stack.tx.Session() == session {
			return stack.tx, true
		}
	}

	return nil, false
}

// Namespace gives access to ambient, request scoped transactions.
type Namespace interface {
	Transaction(ctx context.Context, session Session) (Tx, bool)
}

// ContextNamespace is the Namespace backed by ContextWithTransaction.
type ContextNamespace struct{}

// Transaction implements Namespace.
func (ContextNamespace) Transaction(ctx context.Context, session Session) (Tx, bool) {
	return TransactionFromContext(ctx, session)
}
