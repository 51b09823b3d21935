// Package storage persists the four logical state tables of the exchange:
// the token registry, the balance ledger, and the two replay-tracking sets,
// plus an append-only event journal written in the same transaction as the
// state change it records.
package storage

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SupportedToken flags a token as eligible for deposit, withdrawal and settlement
type SupportedToken struct {
	Token     string    `gorm:"primaryKey;size:42" json:"token"`
	CreatedAt time.Time `json:"created_at"`
}

// Balance is one ledger cell: the custodial credit of a user in one token,
// in the token's smallest units
type Balance struct {
	User      string          `gorm:"primaryKey;size:42" json:"user"`
	Token     string          `gorm:"primaryKey;size:42" json:"token"`
	Amount    decimal.Decimal `gorm:"type:numeric(78,0)" json:"amount"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// UsedNonce marks a consumed (sender, nonce) pair. Rows are written exactly
// once, on the first successful settlement consuming that pair.
type UsedNonce struct {
	Sender    string    `gorm:"primaryKey;size:42" json:"sender"`
	Nonce     uint64    `gorm:"primaryKey" json:"nonce"`
	CreatedAt time.Time `json:"created_at"`
}

// UsedHash marks a consumed order digest. Written on first signature
// verification of the digest, independent of nonce tracking.
type UsedHash struct {
	Digest    string    `gorm:"primaryKey;size:66" json:"digest"`
	CreatedAt time.Time `json:"created_at"`
}

// Event journal entry types
const (
	EventDeposited         = "Deposited"
	EventWithdrawn         = "Withdrawn"
	EventAddSupportedToken = "AddSupportedToken"
	EventOrderMatched      = "OrderMatched"
)

// Event is one journal entry. Only the fields relevant to the entry's type
// are populated; amounts are decimal strings in smallest units.
type Event struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Type        string    `gorm:"size:32;index" json:"type"`
	User        string    `gorm:"size:42" json:"user,omitempty"`
	Token       string    `gorm:"size:42" json:"token,omitempty"`
	Amount      string    `json:"amount,omitempty"`
	BaseToken   string    `gorm:"size:42" json:"base_token,omitempty"`
	QuoteToken  string    `gorm:"size:42" json:"quote_token,omitempty"`
	Maker       string    `gorm:"size:42" json:"maker,omitempty"`
	Taker       string    `gorm:"size:42" json:"taker,omitempty"`
	TradePrice  string    `json:"trade_price,omitempty"`
	TradeAmount string    `json:"trade_amount,omitempty"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}
