package exchange

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// EIP-712 domain constants. Digests are bound to the protocol name, version,
// chain id and exchange address, so an order signed for one deployment can
// never be replayed against another.
const (
	EIP712DomainName    = "SimpleERC20Exchange"
	EIP712DomainVersion = "1"
)

var (
	// eip712DomainTypeHash is the keccak256 hash of the EIP712Domain type definition
	eip712DomainTypeHash = crypto.Keccak256Hash([]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"))

	// orderTypeHash is the keccak256 hash of the Order type definition.
	// Field names, order and types are part of the digest space; changing the
	// schema changes every digest.
	orderTypeHash = crypto.Keccak256Hash([]byte("Order(uint256 nonce,address sender,uint8 direction,uint256 price,uint256 amount,uint256 expired,address baseToken,address quoteToken)"))
)

// OrderHasher computes deployment-bound order digests
type OrderHasher struct {
	chainID         *big.Int
	exchangeAddress common.Address
	domainSeparator common.Hash
}

// NewOrderHasher precomputes the domain separator for one deployment
func NewOrderHasher(chainID uint64, exchangeAddress common.Address) *OrderHasher {
	h := &OrderHasher{
		chainID:         new(big.Int).SetUint64(chainID),
		exchangeAddress: exchangeAddress,
	}
	h.domainSeparator = crypto.Keccak256Hash(
		eip712DomainTypeHash.Bytes(),
		crypto.Keccak256([]byte(EIP712DomainName)),
		crypto.Keccak256([]byte(EIP712DomainVersion)),
		uint256Word(h.chainID),
		addressWord(exchangeAddress),
	)
	return h
}

// DomainSeparator returns the precomputed EIP-712 domain separator
func (h *OrderHasher) DomainSeparator() common.Hash {
	return h.domainSeparator
}

// HashOrder returns the EIP-712 digest of an order:
// keccak256(0x19 0x01 || domainSeparator || structHash)
func (h *OrderHasher) HashOrder(order *Order) common.Hash {
	structHash := crypto.Keccak256Hash(
		orderTypeHash.Bytes(),
		uint64Word(order.Nonce),
		addressWord(order.Sender),
		uint64Word(uint64(order.Direction)),
		uint256Word(order.Price),
		uint256Word(order.Amount),
		uint64Word(order.Expired),
		addressWord(order.BaseToken),
		addressWord(order.QuoteToken),
	)
	return crypto.Keccak256Hash(
		[]byte{0x19, 0x01},
		h.domainSeparator.Bytes(),
		structHash.Bytes(),
	)
}

// SignedMessageHash applies the "\x19Ethereum Signed Message:\n32" prefix
// convention over a raw digest. Signatures are recovered against this value.
func SignedMessageHash(digest common.Hash) common.Hash {
	return crypto.Keccak256Hash(
		[]byte("\x19Ethereum Signed Message:\n32"),
		digest.Bytes(),
	)
}

// uint256Word encodes a non-negative big integer as a 32-byte big-endian word
func uint256Word(v *big.Int) []byte {
	if v == nil {
		v = new(big.Int)
	}
	return common.BigToHash(v).Bytes()
}

// uint64Word encodes an unsigned integer as a 32-byte big-endian word
func uint64Word(v uint64) []byte {
	return common.BigToHash(new(big.Int).SetUint64(v)).Bytes()
}

// addressWord encodes an address as a 20-byte value right-aligned to 32
func addressWord(a common.Address) []byte {
	return common.LeftPadBytes(a.Bytes(), 32)
}
