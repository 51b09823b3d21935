package exchange

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testExchangeAddr = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")

func testOrder() *Order {
	return &Order{
		Nonce:      1,
		Sender:     common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8"),
		Direction:  DirectionBuy,
		Price:      big.NewInt(100),
		Amount:     new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil),
		Expired:    1_800_000_000,
		BaseToken:  common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"),
		QuoteToken: common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"),
	}
}

func TestHashOrderDeterministic(t *testing.T) {
	h := NewOrderHasher(1337, testExchangeAddr)
	order := testOrder()

	first := h.HashOrder(order)
	second := h.HashOrder(order)
	assert.Equal(t, first, second)
	assert.NotEqual(t, common.Hash{}, first)
}

func TestHashOrderFieldSensitivity(t *testing.T) {
	h := NewOrderHasher(1337, testExchangeAddr)
	base := h.HashOrder(testOrder())

	mutations := map[string]func(*Order){
		"nonce":      func(o *Order) { o.Nonce = 2 },
		"sender":     func(o *Order) { o.Sender = common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC") },
		"direction":  func(o *Order) { o.Direction = DirectionSell },
		"price":      func(o *Order) { o.Price = big.NewInt(101) },
		"amount":     func(o *Order) { o.Amount = big.NewInt(1) },
		"expired":    func(o *Order) { o.Expired = 1_800_000_001 },
		"baseToken":  func(o *Order) { o.BaseToken = common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F") },
		"quoteToken": func(o *Order) { o.QuoteToken = common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F") },
	}
	for field, mutate := range mutations {
		order := testOrder()
		mutate(order)
		assert.NotEqual(t, base, h.HashOrder(order), "changing %s must change the digest", field)
	}
}

func TestHashOrderDomainSeparation(t *testing.T) {
	order := testOrder()

	sameChain := NewOrderHasher(1337, testExchangeAddr)
	otherChain := NewOrderHasher(1, testExchangeAddr)
	otherExchange := NewOrderHasher(1337, common.HexToAddress("0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0"))

	require.NotEqual(t, sameChain.DomainSeparator(), otherChain.DomainSeparator())
	require.NotEqual(t, sameChain.DomainSeparator(), otherExchange.DomainSeparator())

	assert.NotEqual(t, sameChain.HashOrder(order), otherChain.HashOrder(order))
	assert.NotEqual(t, sameChain.HashOrder(order), otherExchange.HashOrder(order))
}

func TestSignedMessageHashDiffersFromDigest(t *testing.T) {
	h := NewOrderHasher(1337, testExchangeAddr)
	digest := h.HashOrder(testOrder())
	assert.NotEqual(t, digest, SignedMessageHash(digest))
}
