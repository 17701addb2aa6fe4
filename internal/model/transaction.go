package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Transaction types.  Only withdrawals are created here; deposit rows are
// written by the funding flow and only read back in listings.
const (
	TxTypeDeposit    = "deposit"
	TxTypeWithdrawal = "withdrawal"
)

// Transaction statuses.
const (
	TxStatusPending  = "PENDING"
	TxStatusSuccess  = "SUCCESS"
	TxStatusFailed   = "FAILED"
	TxStatusReversed = "REVERSED"
)

var statusRank = map[string]int{
	TxStatusPending:  0,
	TxStatusSuccess:  1,
	TxStatusFailed:   1,
	TxStatusReversed: 2,
}

// NormalizeTxStatus upper-cases a provider status and reports whether it
// is one of the known ledger statuses.
func NormalizeTxStatus(s string) (string, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	_, ok := statusRank[s]
	return s, ok
}

// StatusRank orders statuses so that stale provider events can be
// recognised: PENDING < SUCCESS = FAILED < REVERSED.
func StatusRank(status string) int {
	if r, ok := statusRank[status]; ok {
		return r
	}
	return -1
}

// IsStaleTransition reports whether moving from prior to next should be
// ignored: next ranks lower, or a FAILED transfer is reported as SUCCESS
// after its funds were already returned.
func IsStaleTransition(prior, next string) bool {
	if StatusRank(next) < StatusRank(prior) {
		return true
	}
	return prior == TxStatusFailed && next == TxStatusSuccess
}

// TransactionHistory mirrors the `transaction_histories` table.  Each row
// is one funds movement identified by the payment provider's reference.
//
// Fields:
//  ID               – primary key identifier.
//  Reference        – provider reference, globally unique.
//  AccountID        – owning account.
//  Type             – deposit or withdrawal.
//  Status           – PENDING, SUCCESS, FAILED or REVERSED.
//  Amount           – raw amount requested.
//  SettlementAmount – amount the provider settles.
//  ProcessingFee    – provider processing fee.
//  TotalFee         – all fees deducted at initiation.
//  CreatedAt        – creation timestamp.
//  UpdatedAt        – last update timestamp.
type TransactionHistory struct {
	ID               uint64          `json:"id"`
	Reference        string          `json:"reference"`
	AccountID        uint64          `json:"-"`
	Type             string          `json:"type"`
	Status           string          `json:"status"`
	Amount           decimal.Decimal `json:"amount"`
	SettlementAmount decimal.Decimal `json:"settlement_amount"`
	ProcessingFee    decimal.Decimal `json:"processing_fee"`
	TotalFee         decimal.Decimal `json:"total_fee"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}
