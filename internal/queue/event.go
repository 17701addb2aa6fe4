// Package queue defines message payloads exchanged over the message broker
// together with the publisher and the outbound email consumer.
package queue

// Queue names.  Both are durable.
const (
	EmailQueue      = "email.outbound"
	WithdrawalQueue = "withdrawal.requested"
)

// EmailMessage is one rendered email waiting to be delivered by the
// consumer.  The body may carry a credential link, so it is never logged.
type EmailMessage struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// WithdrawalRequestedEvent is published after a withdrawal has been
// debited and recorded as PENDING.  Amounts are decimal strings in major
// currency units.
type WithdrawalRequestedEvent struct {
	Reference   string `json:"reference"`
	AccountID   uint64 `json:"account_id"`
	Amount      string `json:"amount"`
	TotalFee    string `json:"total_fee"`
	RequestedAt string `json:"requested_at"`
}
