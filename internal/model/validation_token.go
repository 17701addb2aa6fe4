package model

import "time"

// ValidationToken is the single outstanding email-verification or
// password-reset credential of an account.  The table carries a unique
// key on account_id so that issuing a new token replaces the old one.
//
// Fields:
//  AccountID   – owning account; unique.
//  Token       – hex HMAC digest of "<account id>-<random code>".
//  RandomCode  – per-issue nonce mixed into the digest.
//  TokenExpiry – the token is expired once now is strictly after this.
//  CreatedAt   – timestamp of the last issue.
type ValidationToken struct {
	AccountID   uint64    // validation_tokens.account_id
	Token       string    // validation_tokens.token
	RandomCode  string    // validation_tokens.random_code
	TokenExpiry time.Time // validation_tokens.token_expiry
	CreatedAt   time.Time // validation_tokens.created_at
}

// Expired reports whether the token is past its expiry at now.  A token
// checked at exactly its expiry instant is still valid.
func (t ValidationToken) Expired(now time.Time) bool {
	return now.After(t.TokenExpiry)
}
