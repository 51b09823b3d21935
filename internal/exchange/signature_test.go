package exchange

import (
	"crypto/ecdsa"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signDigest(t *testing.T, h *OrderHasher, order *Order, key *ecdsa.PrivateKey) []byte {
	t.Helper()
	sig, err := crypto.Sign(SignedMessageHash(h.HashOrder(order)).Bytes(), key)
	require.NoError(t, err)
	return sig
}

func TestRecoverSignerRoundTrip(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	h := NewOrderHasher(1337, testExchangeAddr)
	order := testOrder()
	order.Sender = crypto.PubkeyToAddress(key.PublicKey)

	sig := signDigest(t, h, order, key)

	recovered, err := RecoverSigner(h.HashOrder(order), sig)
	require.NoError(t, err)
	assert.Equal(t, order.Sender, recovered)
}

func TestRecoverSignerAcceptsLegacyV(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	h := NewOrderHasher(1337, testExchangeAddr)
	order := testOrder()
	order.Sender = crypto.PubkeyToAddress(key.PublicKey)

	sig := signDigest(t, h, order, key)
	sig[64] += 27 // the {27, 28} wallet convention

	recovered, err := RecoverSigner(h.HashOrder(order), sig)
	require.NoError(t, err)
	assert.Equal(t, order.Sender, recovered)
}

func TestRecoverSignerWrongKey(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	other, err := crypto.GenerateKey()
	require.NoError(t, err)

	h := NewOrderHasher(1337, testExchangeAddr)
	order := testOrder()
	order.Sender = crypto.PubkeyToAddress(key.PublicKey)

	sig := signDigest(t, h, order, other)

	recovered, err := RecoverSigner(h.HashOrder(order), sig)
	require.NoError(t, err)
	assert.NotEqual(t, order.Sender, recovered)
}

func TestRecoverSignerMalformedVersion(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	h := NewOrderHasher(1337, testExchangeAddr)
	order := testOrder()

	sig := signDigest(t, h, order, key)
	sig[64] = 29

	_, err = RecoverSigner(h.HashOrder(order), sig)
	assert.ErrorIs(t, err, ErrInvalidSignatureVersion)
}

func TestRecoverSignerBadLength(t *testing.T) {
	h := NewOrderHasher(1337, testExchangeAddr)
	_, err := RecoverSigner(h.HashOrder(testOrder()), make([]byte, 64))
	assert.ErrorIs(t, err, ErrInvalidSignature)
}
