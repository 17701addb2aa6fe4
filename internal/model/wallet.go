package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet holds the single balance of an account (`wallets` table, unique
// on account_id).
type Wallet struct {
	AccountID uint64          `json:"-"`
	Balance   decimal.Decimal `json:"balance"`
	UpdatedAt time.Time       `json:"updated_at"`
}
