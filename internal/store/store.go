package store

import (
	"context"
	"errors"
	"time"

	"github.com/alphabot-ai/keygate/internal/model"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEmail = errors.New("duplicate email")
	ErrDuplicateKey   = errors.New("duplicate key prefix")
)

type Store interface {
	AccountStore
	NonceStore
	GetStats(ctx context.Context) (model.Stats, error)
	Close() error
}

type AccountStore interface {
	CreateAccount(ctx context.Context, account *model.Account) (int64, error)
	GetAccount(ctx context.Context, id int64) (model.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (model.Account, error)
	FindAccountByKeyPrefix(ctx context.Context, prefix string) (model.Account, error)
	// ReplaceCredential swaps the account's stored key for the given one in a
	// single statement. The previous key stops matching once it returns.
	ReplaceCredential(ctx context.Context, accountID int64, prefix, hash string, issuedAt time.Time) error
	MarkVerified(ctx context.Context, accountID int64, v model.Verification) error
	ListAccounts(ctx context.Context, limit, offset int) ([]model.Account, int, error)
	DeleteAccount(ctx context.Context, accountID int64) error
}

// NonceStore keeps at most one outstanding verification nonce per account.
type NonceStore interface {
	PutNonce(ctx context.Context, n model.Nonce) error
	GetNonce(ctx context.Context, accountID int64) (model.Nonce, error)
	DeleteNonce(ctx context.Context, accountID int64) error
}
