package exchange

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// MatchResult describes one executed settlement
type MatchResult struct {
	BaseToken   common.Address `json:"base_token"`
	QuoteToken  common.Address `json:"quote_token"`
	Maker       common.Address `json:"maker"`
	Taker       common.Address `json:"taker"`
	TradePrice  *big.Int       `json:"trade_price"`  // quote smallest units
	TradeAmount *big.Int       `json:"trade_amount"` // base smallest units
	MakerDigest common.Hash    `json:"maker_digest"`
	TakerDigest common.Hash    `json:"taker_digest"`
}

// RejectReason maps an engine error to a stable label for metrics and API
// error codes. Unknown errors collapse to "internal".
func RejectReason(err error) string {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrTokenNotSupported):
		return "token_not_supported"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrOrderExpired):
		return "order_expired"
	case errors.Is(err, ErrTokenPairMismatch):
		return "token_pair_mismatch"
	case errors.Is(err, ErrDirectionsNotOpposite):
		return "directions_not_opposite"
	case errors.Is(err, ErrNonceAlreadyUsed):
		return "nonce_already_used"
	case errors.Is(err, ErrHashAlreadyUsed):
		return "hash_already_used"
	case errors.Is(err, ErrInvalidSignatureVersion):
		return "invalid_signature_version"
	case errors.Is(err, ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	default:
		return "internal"
	}
}
