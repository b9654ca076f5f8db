package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artisan-apps/genmeter/internal/domain/entitlement"
	"github.com/artisan-apps/genmeter/internal/shared/errors"
)

const (
	testDeviceID  = "dev_repo00000001"
	testProductID = "com.artisanapps.genmeter.pro.monthly"
)

func newTransaction(t *testing.T, transactionID string, at time.Time) *entitlement.Transaction {
	t.Helper()
	tx, err := entitlement.NewTransaction(transactionID, testDeviceID, testProductID, at, entitlement.ReasonPurchase, at)
	require.NoError(t, err)
	return tx
}

func TestMemoryRepository_InitializeAccountIdempotent(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	first, err := repo.InitializeAccount(ctx, testDeviceID, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, first.GenerationsLeft())

	// Drain a credit, then re-initialize: existing state must survive.
	require.NoError(t, repo.SetGenerationCount(ctx, testDeviceID, 2))

	second, err := repo.InitializeAccount(ctx, testDeviceID, 5)
	require.NoError(t, err)
	assert.Equal(t, 2, second.GenerationsLeft())
}

func TestMemoryRepository_GetAccountNotFound(t *testing.T) {
	repo := NewMemoryRepository()

	_, err := repo.GetAccount(context.Background(), "dev_missing")
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestMemoryRepository_AccountWritesBumpVersion(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	_, err := repo.InitializeAccount(ctx, testDeviceID, 5)
	require.NoError(t, err)

	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.ActivatePlan(ctx, testDeviceID, entitlement.Plan(testProductID), 100, now))
	require.NoError(t, repo.ResetForRenewal(ctx, testDeviceID, 100, now.AddDate(0, 1, 0)))
	require.NoError(t, repo.SetLastRenewal(ctx, testDeviceID, now.AddDate(0, 2, 0)))

	account, err := repo.GetAccount(ctx, testDeviceID)
	require.NoError(t, err)
	assert.Equal(t, 4, account.Version())
	require.NotNil(t, account.LastRenewalAt())
	assert.True(t, account.LastRenewalAt().Equal(now.AddDate(0, 2, 0)))
}

func TestMemoryRepository_SetGenerationCountRejectsNegative(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	_, err := repo.InitializeAccount(ctx, testDeviceID, 5)
	require.NoError(t, err)

	err = repo.SetGenerationCount(ctx, testDeviceID, -1)
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))
}

func TestMemoryRepository_ClearPlan(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	_, err := repo.InitializeAccount(ctx, testDeviceID, 5)
	require.NoError(t, err)
	require.NoError(t, repo.ActivatePlan(ctx, testDeviceID, entitlement.Plan(testProductID), 100, now))
	require.NoError(t, repo.ClearPlan(ctx, testDeviceID))

	account, err := repo.GetAccount(ctx, testDeviceID)
	require.NoError(t, err)
	assert.False(t, account.IsSubscribed())
	// Clearing the plan never touches the balance.
	assert.Equal(t, 100, account.GenerationsLeft())
}

func TestMemoryRepository_UpsertTransactionReplaces(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	tx := newTransaction(t, "tx_1", now)
	require.NoError(t, repo.UpsertTransaction(ctx, tx))

	// Reprocessing the same transaction updates in place.
	updated := newTransaction(t, "tx_1", now)
	updated.SetAutoRenewing(true)
	require.NoError(t, repo.UpsertTransaction(ctx, updated))

	txs, err := repo.GetAllTransactions(ctx, testDeviceID)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.True(t, txs[0].IsAutoRenewing())
}

func TestMemoryRepository_GetActiveTransactionNewestWins(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.UpsertTransaction(ctx, newTransaction(t, "tx_1", now)))
	require.NoError(t, repo.UpsertTransaction(ctx, newTransaction(t, "tx_2", now.AddDate(0, 1, 0))))

	active, err := repo.GetActiveTransaction(ctx, testDeviceID)
	require.NoError(t, err)
	assert.Equal(t, "tx_2", active.TransactionID())
}

func TestMemoryRepository_MarkTransactionCancelled(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.UpsertTransaction(ctx, newTransaction(t, "tx_1", now)))
	require.NoError(t, repo.MarkTransactionCancelled(ctx, "tx_1"))

	_, err := repo.GetActiveTransaction(ctx, testDeviceID)
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))

	txs, err := repo.GetAllTransactions(ctx, testDeviceID)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.True(t, txs[0].IsCancelled())

	err = repo.MarkTransactionCancelled(ctx, "tx_missing")
	assert.True(t, errors.IsNotFoundError(err))
}

func TestMemoryRepository_TransactionsSortedNewestFirst(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.UpsertTransaction(ctx, newTransaction(t, "tx_2", now.AddDate(0, 1, 0))))
	require.NoError(t, repo.UpsertTransaction(ctx, newTransaction(t, "tx_1", now)))
	require.NoError(t, repo.UpsertTransaction(ctx, newTransaction(t, "tx_3", now.AddDate(0, 2, 0))))

	txs, err := repo.GetAllTransactions(ctx, testDeviceID)
	require.NoError(t, err)
	require.Len(t, txs, 3)
	assert.Equal(t, "tx_3", txs[0].TransactionID())
	assert.Equal(t, "tx_2", txs[1].TransactionID())
	assert.Equal(t, "tx_1", txs[2].TransactionID())
}
