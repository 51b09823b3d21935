package exchange

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedReceiptReader replays a fixed error sequence, then yields the receipt
type scriptedReceiptReader struct {
	errs    []error
	receipt *types.Receipt
	calls   int
}

func (r *scriptedReceiptReader) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	r.calls++
	if len(r.errs) > 0 {
		err := r.errs[0]
		r.errs = r.errs[1:]
		return nil, err
	}
	return r.receipt, nil
}

func TestWaitMinedRetriesUntilMined(t *testing.T) {
	old := receiptPollInterval
	receiptPollInterval = time.Millisecond
	defer func() { receiptPollInterval = old }()

	want := &types.Receipt{Status: types.ReceiptStatusSuccessful}
	reader := &scriptedReceiptReader{
		errs:    []error{ethereum.NotFound, ethereum.NotFound},
		receipt: want,
	}

	receipt, err := waitMined(context.Background(), reader, common.Hash{})
	require.NoError(t, err)
	assert.Equal(t, want, receipt)
	assert.Equal(t, 3, reader.calls)
}

func TestWaitMinedSurfacesRPCFailure(t *testing.T) {
	rpcDown := errors.New("connection refused")
	reader := &scriptedReceiptReader{errs: []error{rpcDown}}

	_, err := waitMined(context.Background(), reader, common.Hash{})
	assert.ErrorIs(t, err, rpcDown)
	assert.Equal(t, 1, reader.calls, "a dead endpoint must not be retried")
}

func TestWaitMinedHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reader := &scriptedReceiptReader{errs: []error{ethereum.NotFound}}
	_, err := waitMined(ctx, reader, common.Hash{})
	assert.ErrorIs(t, err, context.Canceled)
}
