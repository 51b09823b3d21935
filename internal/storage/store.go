package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store wraps the database handle for exchange state. All mutating engine
// operations run inside Transaction so that a failed call leaves no marks.
type Store struct {
	db *gorm.DB
}

// Open connects to the configured database and migrates the state tables
func Open(driver, dsn string) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return NewStore(db)
}

// NewStore migrates the state tables over an existing database handle
func NewStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&SupportedToken{}, &Balance{}, &UsedNonce{}, &UsedHash{}, &Event{}); err != nil {
		return nil, fmt.Errorf("failed to migrate state tables: %w", err)
	}
	return &Store{db: db}, nil
}

// Transaction runs fn against a transactional view of the store. Any error
// rolls back every write fn performed.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

// IsTokenSupported reports whether token is flagged in the registry
func (s *Store) IsTokenSupported(ctx context.Context, token common.Address) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&SupportedToken{}).Where("token = ?", addrKey(token)).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to query token registry: %w", err)
	}
	return count > 0, nil
}

// AddSupportedToken flags token as supported. Idempotent.
func (s *Store) AddSupportedToken(ctx context.Context, token common.Address) error {
	row := SupportedToken{Token: addrKey(token), CreatedAt: time.Now()}
	if err := s.db.WithContext(ctx).Where("token = ?", row.Token).FirstOrCreate(&row).Error; err != nil {
		return fmt.Errorf("failed to add supported token: %w", err)
	}
	return nil
}

// GetBalance returns the ledger credit for (user, token), zero when absent
func (s *Store) GetBalance(ctx context.Context, user, token common.Address) (decimal.Decimal, error) {
	var row Balance
	err := s.db.WithContext(ctx).Where("\"user\" = ? AND token = ?", addrKey(user), addrKey(token)).First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("failed to query balance: %w", err)
	}
	return row.Amount, nil
}

// SetBalance overwrites the ledger cell for (user, token)
func (s *Store) SetBalance(ctx context.Context, user, token common.Address, amount decimal.Decimal) error {
	row := Balance{User: addrKey(user), Token: addrKey(token), Amount: amount, UpdatedAt: time.Now()}
	var existing Balance
	err := s.db.WithContext(ctx).Where("\"user\" = ? AND token = ?", row.User, row.Token).First(&existing).Error
	switch {
	case err == gorm.ErrRecordNotFound:
		if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
			return fmt.Errorf("failed to create balance row: %w", err)
		}
	case err != nil:
		return fmt.Errorf("failed to query balance row: %w", err)
	default:
		if err := s.db.WithContext(ctx).Model(&Balance{}).
			Where("\"user\" = ? AND token = ?", row.User, row.Token).
			Updates(map[string]interface{}{"amount": amount, "updated_at": row.UpdatedAt}).Error; err != nil {
			return fmt.Errorf("failed to update balance row: %w", err)
		}
	}
	return nil
}

// IsNonceUsed reports whether (sender, nonce) has been consumed
func (s *Store) IsNonceUsed(ctx context.Context, sender common.Address, nonce uint64) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&UsedNonce{}).Where("sender = ? AND nonce = ?", addrKey(sender), nonce).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to query used nonces: %w", err)
	}
	return count > 0, nil
}

// MarkNonceUsed permanently consumes (sender, nonce)
func (s *Store) MarkNonceUsed(ctx context.Context, sender common.Address, nonce uint64) error {
	row := UsedNonce{Sender: addrKey(sender), Nonce: nonce, CreatedAt: time.Now()}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to mark nonce used: %w", err)
	}
	return nil
}

// IsDigestUsed reports whether an order digest has been consumed
func (s *Store) IsDigestUsed(ctx context.Context, digest common.Hash) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&UsedHash{}).Where("digest = ?", digest.Hex()).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to query used hashes: %w", err)
	}
	return count > 0, nil
}

// MarkDigestUsed permanently consumes an order digest
func (s *Store) MarkDigestUsed(ctx context.Context, digest common.Hash) error {
	row := UsedHash{Digest: digest.Hex(), CreatedAt: time.Now()}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to mark digest used: %w", err)
	}
	return nil
}

// AppendEvent writes a journal entry in the current transaction
func (s *Store) AppendEvent(ctx context.Context, ev *Event) error {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	if err := s.db.WithContext(ctx).Create(ev).Error; err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// Events returns journal entries newest first
func (s *Store) Events(ctx context.Context, limit, offset int) ([]*Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var events []*Event
	if err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Offset(offset).Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	return events, nil
}

// addrKey normalizes an address into its checksummed hex storage key
func addrKey(a common.Address) string {
	return a.Hex()
}
