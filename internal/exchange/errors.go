package exchange

import "errors"

// Every failure aborts the whole call; the storage transaction wrapping each
// operation rolls back all state touched before the error. Callers are
// expected to branch on these sentinels with errors.Is.
var (
	// ErrUnauthorized is returned when the caller lacks the required privilege
	ErrUnauthorized = errors.New("caller is not authorized")

	// ErrTokenNotSupported is returned for operations on unregistered tokens
	ErrTokenNotSupported = errors.New("token not supported")

	// ErrInsufficientBalance is returned when a debit exceeds available funds
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrOrderExpired is returned when the current time is past an order's expiry
	ErrOrderExpired = errors.New("order expired")

	// ErrTokenPairMismatch is returned when the two orders trade different pairs
	ErrTokenPairMismatch = errors.New("token pair mismatch")

	// ErrDirectionsNotOpposite is returned when both orders share a direction
	ErrDirectionsNotOpposite = errors.New("trade directions must be opposite")

	// ErrNonceAlreadyUsed is returned when a (sender, nonce) pair was already consumed
	ErrNonceAlreadyUsed = errors.New("nonce already used")

	// ErrHashAlreadyUsed is returned when an order digest was already consumed
	ErrHashAlreadyUsed = errors.New("hash already used")

	// ErrInvalidSignature is returned when the recovered signer does not match the sender
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrInvalidSignatureVersion is returned for a malformed recovery id
	ErrInvalidSignatureVersion = errors.New("invalid signature version")

	// ErrInvalidAmount is returned for nil or negative integer inputs
	ErrInvalidAmount = errors.New("invalid amount")
)
