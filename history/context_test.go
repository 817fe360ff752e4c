package history_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AntonStoeckl/model-history-go/history"
)

func Test_TransactionFromContext_ReturnsInnermostTransactionOfSession(t *testing.T) {
	// arrange
	mainSession := newFakeSession("main")
	audit := newFakeSession("audit")
	outer := mainSession.Begin()
	inner := mainSession.Begin()
	auditTx := audit.Begin()

	ctx := history.ContextWithTransaction(context.Background(), outer)
	ctx = history.ContextWithTransaction(ctx, auditTx)
	ctx = history.ContextWithTransaction(ctx, inner)

	// act
	mainTx, mainFound := history.TransactionFromContext(ctx, mainSession)
	foundAuditTx, auditFound := history.ContextNamespace{}.Transaction(ctx, audit)
	_, otherFound := history.TransactionFromContext(ctx, newFakeSession("other"))

	// assert
	assert.True(t, mainFound)
	assert.Same(t, inner, mainTx)
	assert.True(t, auditFound)
	assert.Same(t, auditTx, foundAuditTx)
	assert.False(t, otherFound)
}

func Test_ContextWithTransaction_WithNilTransaction_ReturnsSameContext(t *testing.T) {
	ctx := context.Background()

	assert.Equal(t, ctx, history.ContextWithTransaction(ctx, nil))
}
