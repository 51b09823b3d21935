package exchange

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// TokenAdapter is the external token-transfer dependency. Implementations are
// fallible and, for DecimalsOf, untrusted: the engine validates the returned
// precision instead of assuming it is sane.
type TokenAdapter interface {
	// TransferIn pulls amount of token from the user into custody
	TransferIn(ctx context.Context, token, from common.Address, amount *big.Int) error
	// TransferOut sends amount of token from custody to the user
	TransferOut(ctx context.Context, token, to common.Address, amount *big.Int) error
	// DecimalsOf queries the token's decimal precision
	DecimalsOf(ctx context.Context, token common.Address) (uint8, error)
}

const erc20ABI = `[
	{"name":"transfer","type":"function","inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"name":"transferFrom","type":"function","inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"name":"decimals","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]}
]`

// EVMTokenAdapter moves ERC20 value on an EVM chain via JSON-RPC. Custody is
// a single externally-owned account whose key signs the transfer transactions.
type EVMTokenAdapter struct {
	client     *ethclient.Client
	chainID    *big.Int
	custody    common.Address
	custodyKey *ecdsa.PrivateKey
	abi        abi.ABI
}

// NewEVMTokenAdapter dials the RPC endpoint and prepares the ERC20 ABI
func NewEVMTokenAdapter(rpcURL string, chainID uint64, custodyKey *ecdsa.PrivateKey) (*EVMTokenAdapter, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial eth rpc: %w", err)
	}
	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse erc20 abi: %w", err)
	}
	return &EVMTokenAdapter{
		client:     client,
		chainID:    new(big.Int).SetUint64(chainID),
		custody:    crypto.PubkeyToAddress(custodyKey.PublicKey),
		custodyKey: custodyKey,
		abi:        parsed,
	}, nil
}

// TransferIn pulls tokens from the user via transferFrom; the user must have
// approved the custody account beforehand
func (a *EVMTokenAdapter) TransferIn(ctx context.Context, token, from common.Address, amount *big.Int) error {
	data, err := a.abi.Pack("transferFrom", from, a.custody, amount)
	if err != nil {
		return fmt.Errorf("failed to pack transferFrom: %w", err)
	}
	return a.send(ctx, token, data)
}

// TransferOut sends tokens from custody to the user
func (a *EVMTokenAdapter) TransferOut(ctx context.Context, token, to common.Address, amount *big.Int) error {
	data, err := a.abi.Pack("transfer", to, amount)
	if err != nil {
		return fmt.Errorf("failed to pack transfer: %w", err)
	}
	return a.send(ctx, token, data)
}

// DecimalsOf queries the token's decimals() view
func (a *EVMTokenAdapter) DecimalsOf(ctx context.Context, token common.Address) (uint8, error) {
	data, err := a.abi.Pack("decimals")
	if err != nil {
		return 0, fmt.Errorf("failed to pack decimals: %w", err)
	}
	out, err := a.client.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return 0, fmt.Errorf("decimals call failed: %w", err)
	}
	vals, err := a.abi.Unpack("decimals", out)
	if err != nil {
		return 0, fmt.Errorf("failed to unpack decimals: %w", err)
	}
	dec, ok := vals[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("unexpected decimals return type %T", vals[0])
	}
	return dec, nil
}

func (a *EVMTokenAdapter) send(ctx context.Context, token common.Address, data []byte) error {
	nonce, err := a.client.PendingNonceAt(ctx, a.custody)
	if err != nil {
		return fmt.Errorf("failed to fetch account nonce: %w", err)
	}
	gasPrice, err := a.client.SuggestGasPrice(ctx)
	if err != nil {
		return fmt.Errorf("failed to suggest gas price: %w", err)
	}
	gas, err := a.client.EstimateGas(ctx, ethereum.CallMsg{From: a.custody, To: &token, Data: data})
	if err != nil {
		return fmt.Errorf("failed to estimate gas: %w", err)
	}

	tx := types.NewTransaction(nonce, token, new(big.Int), gas, gasPrice, data)
	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(a.chainID), a.custodyKey)
	if err != nil {
		return fmt.Errorf("failed to sign transfer: %w", err)
	}
	if err := a.client.SendTransaction(ctx, signedTx); err != nil {
		return fmt.Errorf("failed to send transfer: %w", err)
	}

	receipt, err := waitMined(ctx, a.client, signedTx.Hash())
	if err != nil {
		return err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("transfer reverted: tx %s", signedTx.Hash().Hex())
	}
	return nil
}

// receiptReader is the slice of the RPC client waitMined needs
type receiptReader interface {
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

var receiptPollInterval = time.Second

// waitMined polls for the transaction receipt. Only a not-yet-mined result is
// retried; any other RPC failure is surfaced immediately so a dead endpoint
// cannot stall the caller indefinitely.
func waitMined(ctx context.Context, client receiptReader, hash common.Hash) (*types.Receipt, error) {
	for {
		receipt, err := client.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("failed to fetch transfer receipt: %w", err)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("transfer confirmation timed out: %w", ctx.Err())
		case <-time.After(receiptPollInterval):
		}
	}
}
