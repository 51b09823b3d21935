package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	store, err := NewStore(db)
	require.NoError(t, err)
	return store
}

var (
	alice    = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	dai      = common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")
	someHash = common.HexToHash("0x3ac225168df54212a25c1c01fd35bebfea408fdac2e31ddd6f80a4bbf9a5f1cb")
)

func TestTokenRegistry(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	supported, err := store.IsTokenSupported(ctx, dai)
	require.NoError(t, err)
	assert.False(t, supported)

	require.NoError(t, store.AddSupportedToken(ctx, dai))
	require.NoError(t, store.AddSupportedToken(ctx, dai)) // idempotent

	supported, err = store.IsTokenSupported(ctx, dai)
	require.NoError(t, err)
	assert.True(t, supported)
}

func TestBalanceDefaultsToZero(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	bal, err := store.GetBalance(ctx, alice, dai)
	require.NoError(t, err)
	assert.True(t, bal.IsZero())
}

func TestBalanceSetAndUpdate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetBalance(ctx, alice, dai, decimal.NewFromInt(1500)))
	bal, err := store.GetBalance(ctx, alice, dai)
	require.NoError(t, err)
	assert.Equal(t, "1500", bal.String())

	require.NoError(t, store.SetBalance(ctx, alice, dai, decimal.NewFromInt(700)))
	bal, err = store.GetBalance(ctx, alice, dai)
	require.NoError(t, err)
	assert.Equal(t, "700", bal.String())
}

func TestNonceTracking(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	used, err := store.IsNonceUsed(ctx, alice, 1)
	require.NoError(t, err)
	assert.False(t, used)

	require.NoError(t, store.MarkNonceUsed(ctx, alice, 1))

	used, err = store.IsNonceUsed(ctx, alice, 1)
	require.NoError(t, err)
	assert.True(t, used)

	// other nonces of the same sender stay free
	used, err = store.IsNonceUsed(ctx, alice, 2)
	require.NoError(t, err)
	assert.False(t, used)
}

func TestDigestTracking(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	used, err := store.IsDigestUsed(ctx, someHash)
	require.NoError(t, err)
	assert.False(t, used)

	require.NoError(t, store.MarkDigestUsed(ctx, someHash))

	used, err = store.IsDigestUsed(ctx, someHash)
	require.NoError(t, err)
	assert.True(t, used)
}

func TestTransactionRollback(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := store.Transaction(ctx, func(tx *Store) error {
		if err := tx.SetBalance(ctx, alice, dai, decimal.NewFromInt(42)); err != nil {
			return err
		}
		if err := tx.MarkNonceUsed(ctx, alice, 9); err != nil {
			return err
		}
		if err := tx.MarkDigestUsed(ctx, someHash); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	bal, err := store.GetBalance(ctx, alice, dai)
	require.NoError(t, err)
	assert.True(t, bal.IsZero())

	used, err := store.IsNonceUsed(ctx, alice, 9)
	require.NoError(t, err)
	assert.False(t, used)

	used, err = store.IsDigestUsed(ctx, someHash)
	require.NoError(t, err)
	assert.False(t, used)
}

func TestEventJournal(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AppendEvent(ctx, &Event{
		Type:   EventDeposited,
		User:   alice.Hex(),
		Token:  dai.Hex(),
		Amount: "1000",
	}))
	require.NoError(t, store.AppendEvent(ctx, &Event{
		Type:  EventAddSupportedToken,
		Token: dai.Hex(),
	}))

	events, err := store.Events(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	for _, ev := range events {
		assert.NotEqual(t, "", ev.ID.String())
		assert.False(t, ev.CreatedAt.IsZero())
	}
}
