package model

import "time"

// Verification channels recorded on an account.
const (
	VerifiedViaPromo = "promo"
	VerifiedViaTweet = "tweet"
)

type Account struct {
	ID          int64
	Email       string
	KeyPrefix   string
	KeyHash     string
	KeyIssuedAt *time.Time
	VerifiedVia string
	Handle      string
	VerifiedAt  *time.Time
	CreatedAt   time.Time
}

// HasKey reports whether the account currently holds an issued credential.
func (a Account) HasKey() bool {
	return a.KeyPrefix != "" && a.KeyHash != ""
}

func (a Account) Verified() bool {
	return a.VerifiedVia != ""
}

type Verification struct {
	Via        string
	Handle     string
	VerifiedAt time.Time
}

type Nonce struct {
	AccountID int64
	Value     string
	ExpiresAt time.Time
}

type Stats struct {
	Accounts         int64
	VerifiedAccounts int64
	IssuedKeys       int64
}
