package exchange

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignatureLength is the compact recoverable signature size: r(32) s(32) v(1)
const SignatureLength = 65

// RecoverSigner recovers the address that produced sig over the order digest
// under the personal-message convention. v is accepted as {0,1} or {27,28};
// anything else is ErrInvalidSignatureVersion.
func RecoverSigner(digest common.Hash, sig []byte) (common.Address, error) {
	if len(sig) != SignatureLength {
		return common.Address{}, fmt.Errorf("%w: signature is %d bytes, want %d", ErrInvalidSignature, len(sig), SignatureLength)
	}

	v := sig[64]
	if v == 27 || v == 28 {
		v -= 27
	}
	if v != 0 && v != 1 {
		return common.Address{}, fmt.Errorf("%w: v=%d", ErrInvalidSignatureVersion, sig[64])
	}

	// crypto.SigToPub wants the recovery id in the last byte as 0/1
	normalized := make([]byte, SignatureLength)
	copy(normalized, sig[:64])
	normalized[64] = v

	pub, err := crypto.SigToPub(SignedMessageHash(digest).Bytes(), normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
