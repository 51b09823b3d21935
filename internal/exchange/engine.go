package exchange

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/openclear/settled/internal/storage"
	"github.com/openclear/settled/pkg/metrics"
)

// maxTokenDecimals bounds the precision accepted from the untrusted
// decimals() query; 10^77 is the largest power of ten below 2^256.
const maxTokenDecimals = 77

// Service is the settlement engine. All mutating calls are serialized by a
// single mutex and executed inside one storage transaction, so every call
// either commits completely or leaves no trace.
type Service struct {
	logger   *zap.Logger
	store    *storage.Store
	tokens   TokenAdapter
	hasher   *OrderHasher
	owner    common.Address
	operator common.Address

	mu  sync.Mutex
	now func() time.Time
}

// NewService creates a settlement engine bound to one deployment identity
func NewService(logger *zap.Logger, store *storage.Store, tokens TokenAdapter, hasher *OrderHasher, owner, operator common.Address) *Service {
	return &Service{
		logger:   logger,
		store:    store,
		tokens:   tokens,
		hasher:   hasher,
		owner:    owner,
		operator: operator,
		now:      time.Now,
	}
}

// DomainSeparator returns the deployment's EIP-712 domain separator
func (s *Service) DomainSeparator() common.Hash {
	return s.hasher.DomainSeparator()
}

// GetOrderHash returns the digest an order must be signed over
func (s *Service) GetOrderHash(order *Order) common.Hash {
	return s.hasher.HashOrder(order)
}

// UserBalance returns the ledger credit of user in token, in smallest units
func (s *Service) UserBalance(ctx context.Context, user, token common.Address) (*big.Int, error) {
	bal, err := s.store.GetBalance(ctx, user, token)
	if err != nil {
		return nil, err
	}
	return bal.BigInt(), nil
}

// IsTokenSupported reports whether token is registered for custody
func (s *Service) IsTokenSupported(ctx context.Context, token common.Address) (bool, error) {
	return s.store.IsTokenSupported(ctx, token)
}

// Events returns journal entries newest first
func (s *Service) Events(ctx context.Context, limit, offset int) ([]*storage.Event, error) {
	return s.store.Events(ctx, limit, offset)
}

// AddSupportedToken flags a token for deposit/withdraw/settlement. Owner only.
func (s *Service) AddSupportedToken(ctx context.Context, caller, token common.Address) error {
	if caller != s.owner {
		return fmt.Errorf("%w: caller %s is not the owner", ErrUnauthorized, caller.Hex())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.store.Transaction(ctx, func(tx *storage.Store) error {
		if err := tx.AddSupportedToken(ctx, token); err != nil {
			return err
		}
		return tx.AppendEvent(ctx, &storage.Event{
			Type:  storage.EventAddSupportedToken,
			Token: token.Hex(),
		})
	})
	if err != nil {
		return err
	}

	s.logger.Info("token registered", zap.String("token", token.Hex()))
	return nil
}

// Deposit pulls amount of token from the caller into custody and credits the
// ledger. The credit happens only after the external transfer succeeds.
func (s *Service) Deposit(ctx context.Context, caller, token common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.store.Transaction(ctx, func(tx *storage.Store) error {
		supported, err := tx.IsTokenSupported(ctx, token)
		if err != nil {
			return err
		}
		if !supported {
			return fmt.Errorf("%w: %s", ErrTokenNotSupported, token.Hex())
		}

		if err := s.tokens.TransferIn(ctx, token, caller, amount); err != nil {
			return fmt.Errorf("deposit transfer failed: %w", err)
		}

		if err := credit(ctx, tx, caller, token, amount); err != nil {
			return err
		}
		return tx.AppendEvent(ctx, &storage.Event{
			Type:   storage.EventDeposited,
			User:   caller.Hex(),
			Token:  token.Hex(),
			Amount: amount.String(),
		})
	})
	if err != nil {
		return err
	}

	metrics.Deposits.WithLabelValues(token.Hex()).Inc()
	s.logger.Info("deposit credited",
		zap.String("user", caller.Hex()),
		zap.String("token", token.Hex()),
		zap.String("amount", amount.String()))
	return nil
}

// Withdraw debits the caller's ledger credit and sends tokens out of custody.
// The debit is recorded before the external transfer is attempted; a failed
// transfer rolls the debit back with the rest of the call.
func (s *Service) Withdraw(ctx context.Context, caller, token common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.store.Transaction(ctx, func(tx *storage.Store) error {
		supported, err := tx.IsTokenSupported(ctx, token)
		if err != nil {
			return err
		}
		if !supported {
			return fmt.Errorf("%w: %s", ErrTokenNotSupported, token.Hex())
		}

		if err := debit(ctx, tx, caller, token, amount); err != nil {
			return err
		}

		if err := s.tokens.TransferOut(ctx, token, caller, amount); err != nil {
			return fmt.Errorf("withdrawal transfer failed: %w", err)
		}
		return tx.AppendEvent(ctx, &storage.Event{
			Type:   storage.EventWithdrawn,
			User:   caller.Hex(),
			Token:  token.Hex(),
			Amount: amount.String(),
		})
	})
	if err != nil {
		return err
	}

	metrics.Withdrawals.WithLabelValues(token.Hex()).Inc()
	s.logger.Info("withdrawal settled",
		zap.String("user", caller.Hex()),
		zap.String("token", token.Hex()),
		zap.String("amount", amount.String()))
	return nil
}

// MatchOrders validates a signed maker/taker pair and settles it atomically.
// Operator only. Precondition order matters and is observable through the
// returned error: expiry, pair shape, directions, nonce pre-checks, then the
// digest-consuming signature verifications, then balances, then nonce marks.
func (s *Service) MatchOrders(ctx context.Context, caller common.Address, maker *Order, makerSig []byte, taker *Order, takerSig []byte) (*MatchResult, error) {
	start := time.Now()
	result, err := s.matchOrders(ctx, caller, maker, makerSig, taker, takerSig)
	if err != nil {
		metrics.MatchesRejected.WithLabelValues(RejectReason(err)).Inc()
		return nil, err
	}
	metrics.MatchesSettled.Inc()
	metrics.MatchLatency.Observe(time.Since(start).Seconds())

	s.logger.Info("orders matched",
		zap.String("maker", result.Maker.Hex()),
		zap.String("taker", result.Taker.Hex()),
		zap.String("base_token", result.BaseToken.Hex()),
		zap.String("quote_token", result.QuoteToken.Hex()),
		zap.String("trade_price", result.TradePrice.String()),
		zap.String("trade_amount", result.TradeAmount.String()))
	return result, nil
}

func (s *Service) matchOrders(ctx context.Context, caller common.Address, maker *Order, makerSig []byte, taker *Order, takerSig []byte) (*MatchResult, error) {
	if caller != s.operator {
		return nil, fmt.Errorf("%w: caller %s is not the operator", ErrUnauthorized, caller.Hex())
	}
	if err := maker.Validate(); err != nil {
		return nil, fmt.Errorf("maker order: %w", err)
	}
	if err := taker.Validate(); err != nil {
		return nil, fmt.Errorf("taker order: %w", err)
	}

	now := uint64(s.now().Unix())
	if now > maker.Expired {
		return nil, fmt.Errorf("%w: maker order expired at %d", ErrOrderExpired, maker.Expired)
	}
	if now > taker.Expired {
		return nil, fmt.Errorf("%w: taker order expired at %d", ErrOrderExpired, taker.Expired)
	}
	if !maker.SamePair(taker) {
		return nil, ErrTokenPairMismatch
	}
	if maker.Direction == taker.Direction {
		return nil, ErrDirectionsNotOpposite
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var result *MatchResult
	err := s.store.Transaction(ctx, func(tx *storage.Store) error {
		// Read-only nonce pre-checks. The marks are written last, after the
		// balance mutation, so a failed match burns no nonces.
		for _, o := range []*Order{maker, taker} {
			used, err := tx.IsNonceUsed(ctx, o.Sender, o.Nonce)
			if err != nil {
				return err
			}
			if used {
				return fmt.Errorf("%w: sender %s nonce %d", ErrNonceAlreadyUsed, o.Sender.Hex(), o.Nonce)
			}
		}

		// One-shot signature verification: consumes each digest as a side
		// effect. Maker first, then taker.
		makerDigest, err := s.verifyAndConsume(ctx, tx, maker, makerSig)
		if err != nil {
			return fmt.Errorf("maker order: %w", err)
		}
		takerDigest, err := s.verifyAndConsume(ctx, tx, taker, takerSig)
		if err != nil {
			return fmt.Errorf("taker order: %w", err)
		}

		tradePrice, tradeAmount, err := s.computeTrade(ctx, maker, taker)
		if err != nil {
			return err
		}

		// Four-cell balance update: maker receives base and pays quote, taker
		// the reverse. Any underflow aborts the whole call.
		if err := credit(ctx, tx, maker.Sender, maker.BaseToken, tradeAmount); err != nil {
			return err
		}
		if err := debit(ctx, tx, taker.Sender, maker.BaseToken, tradeAmount); err != nil {
			return err
		}
		if err := debit(ctx, tx, maker.Sender, maker.QuoteToken, tradePrice); err != nil {
			return err
		}
		if err := credit(ctx, tx, taker.Sender, maker.QuoteToken, tradePrice); err != nil {
			return err
		}

		if err := tx.MarkNonceUsed(ctx, maker.Sender, maker.Nonce); err != nil {
			return err
		}
		if err := tx.MarkNonceUsed(ctx, taker.Sender, taker.Nonce); err != nil {
			return err
		}

		result = &MatchResult{
			BaseToken:   maker.BaseToken,
			QuoteToken:  maker.QuoteToken,
			Maker:       maker.Sender,
			Taker:       taker.Sender,
			TradePrice:  tradePrice,
			TradeAmount: tradeAmount,
			MakerDigest: makerDigest,
			TakerDigest: takerDigest,
		}
		return tx.AppendEvent(ctx, &storage.Event{
			Type:        storage.EventOrderMatched,
			BaseToken:   result.BaseToken.Hex(),
			QuoteToken:  result.QuoteToken.Hex(),
			Maker:       result.Maker.Hex(),
			Taker:       result.Taker.Hex(),
			TradePrice:  tradePrice.String(),
			TradeAmount: tradeAmount.String(),
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// verifyAndConsume checks the signature over the order's digest and consumes
// the digest. This is deliberately not a pure predicate: a digest can pass
// verification at most once, ever, regardless of the order's nonce.
func (s *Service) verifyAndConsume(ctx context.Context, tx *storage.Store, order *Order, sig []byte) (common.Hash, error) {
	digest := s.hasher.HashOrder(order)

	used, err := tx.IsDigestUsed(ctx, digest)
	if err != nil {
		return common.Hash{}, err
	}
	if used {
		return common.Hash{}, fmt.Errorf("%w: %s", ErrHashAlreadyUsed, digest.Hex())
	}
	if err := tx.MarkDigestUsed(ctx, digest); err != nil {
		return common.Hash{}, err
	}

	signer, err := RecoverSigner(digest, sig)
	if err != nil {
		return common.Hash{}, err
	}
	if signer != order.Sender {
		return common.Hash{}, fmt.Errorf("%w: recovered %s, want %s", ErrInvalidSignature, signer.Hex(), order.Sender.Hex())
	}
	return digest, nil
}

// computeTrade derives the clearing terms. The trade executes at the lower of
// the two declared prices, scaled once by the quote token's decimals; the
// traded amount is the smaller of the two order amounts. The larger order's
// excess is abandoned, not tracked.
func (s *Service) computeTrade(ctx context.Context, maker, taker *Order) (tradePrice, tradeAmount *big.Int, err error) {
	quoteDecimals, err := s.tokens.DecimalsOf(ctx, maker.QuoteToken)
	if err != nil {
		return nil, nil, fmt.Errorf("quote decimals query failed: %w", err)
	}
	if quoteDecimals > maxTokenDecimals {
		return nil, nil, fmt.Errorf("quote token reports unusable decimals %d", quoteDecimals)
	}

	price := maker.Price
	if taker.Price.Cmp(price) < 0 {
		price = taker.Price
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(quoteDecimals)), nil)
	tradePrice = new(big.Int).Mul(price, scale)

	tradeAmount = maker.Amount
	if taker.Amount.Cmp(tradeAmount) < 0 {
		tradeAmount = taker.Amount
	}
	return tradePrice, new(big.Int).Set(tradeAmount), nil
}

// credit adds delta smallest units to the (user, token) ledger cell
func credit(ctx context.Context, tx *storage.Store, user, token common.Address, delta *big.Int) error {
	bal, err := tx.GetBalance(ctx, user, token)
	if err != nil {
		return err
	}
	return tx.SetBalance(ctx, user, token, bal.Add(decimal.NewFromBigInt(delta, 0)))
}

// debit subtracts delta smallest units, failing instead of going negative
func debit(ctx context.Context, tx *storage.Store, user, token common.Address, delta *big.Int) error {
	bal, err := tx.GetBalance(ctx, user, token)
	if err != nil {
		return err
	}
	d := decimal.NewFromBigInt(delta, 0)
	if bal.LessThan(d) {
		return fmt.Errorf("%w: user %s token %s has %s, needs %s",
			ErrInsufficientBalance, user.Hex(), token.Hex(), bal.String(), d.String())
	}
	return tx.SetBalance(ctx, user, token, bal.Sub(d))
}
