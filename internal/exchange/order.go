// Package exchange implements the order validation and settlement engine:
// EIP-712 order hashing, signature verification, replay protection and the
// atomic balance mutation that settles a matched maker/taker pair.
package exchange

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Direction is the semantic polarity of a trade from the sender's perspective
type Direction uint8

const (
	DirectionSell Direction = iota
	DirectionBuy
)

func (d Direction) String() string {
	switch d {
	case DirectionSell:
		return "SELL"
	case DirectionBuy:
		return "BUY"
	default:
		return "UNKNOWN"
	}
}

// Order is an off-chain-authored trade intent. It is immutable once signed;
// its digest is a pure function of the eight fields plus the verifying
// exchange identity and chain id.
type Order struct {
	Nonce      uint64         `json:"nonce"`
	Sender     common.Address `json:"sender"`
	Direction  Direction      `json:"direction"`
	Price      *big.Int       `json:"price"`   // whole quote units per base unit, unscaled
	Amount     *big.Int       `json:"amount"`  // base token smallest units
	Expired    uint64         `json:"expired"` // unix seconds; invalid strictly after
	BaseToken  common.Address `json:"baseToken"`
	QuoteToken common.Address `json:"quoteToken"`
}

// Validate rejects structurally unusable orders before any state is touched.
// Price and Amount must fit in 256 bits: wider values would be truncated by
// the digest encoding, letting two distinct orders share one digest.
func (o *Order) Validate() error {
	if o.Price == nil || o.Price.Sign() < 0 || o.Price.BitLen() > 256 {
		return ErrInvalidAmount
	}
	if o.Amount == nil || o.Amount.Sign() < 0 || o.Amount.BitLen() > 256 {
		return ErrInvalidAmount
	}
	return nil
}

// SamePair reports whether both orders trade the same base/quote pair,
// in the same orientation
func (o *Order) SamePair(other *Order) bool {
	return o.BaseToken == other.BaseToken && o.QuoteToken == other.QuoteToken
}
