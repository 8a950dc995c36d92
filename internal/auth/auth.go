package auth

import (
	"context"
	"errors"
	"time"

	"github.com/alphabot-ai/keygate/internal/apikey"
	"github.com/alphabot-ai/keygate/internal/model"
	"github.com/alphabot-ai/keygate/internal/store"
	"github.com/alphabot-ai/keygate/internal/verify"
)

var (
	ErrInvalidKey   = errors.New("invalid api key")
	ErrNoNonce      = errors.New("no verification nonce issued")
	ErrNonceExpired = errors.New("verification nonce expired")
)

type Service struct {
	store    store.Store
	keys     *apikey.Generator
	nonceTTL time.Duration
	now      func() time.Time
}

type Verified struct {
	AccountID int64
	Email     string
	KeyPrefix string
}

func NewService(store store.Store, keys *apikey.Generator, nonceTTL time.Duration) *Service {
	return &Service{
		store:    store,
		keys:     keys,
		nonceTTL: nonceTTL,
		now:      time.Now,
	}
}

// IssueNonce creates a fresh verification nonce for the account, replacing
// any outstanding one.
func (s *Service) IssueNonce(ctx context.Context, accountID int64) (model.Nonce, error) {
	value, err := verify.NewNonce()
	if err != nil {
		return model.Nonce{}, err
	}
	n := model.Nonce{
		AccountID: accountID,
		Value:     value,
		ExpiresAt: s.now().Add(s.nonceTTL),
	}
	if err := s.store.PutNonce(ctx, n); err != nil {
		return model.Nonce{}, err
	}
	return n, nil
}

// ActiveNonce returns the account's outstanding nonce if it has not expired.
func (s *Service) ActiveNonce(ctx context.Context, accountID int64) (model.Nonce, error) {
	n, err := s.store.GetNonce(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.Nonce{}, ErrNoNonce
		}
		return model.Nonce{}, err
	}
	if s.now().After(n.ExpiresAt) {
		_ = s.store.DeleteNonce(ctx, accountID)
		return model.Nonce{}, ErrNonceExpired
	}
	return n, nil
}

func (s *Service) ClearNonce(ctx context.Context, accountID int64) error {
	return s.store.DeleteNonce(ctx, accountID)
}

// Authenticate resolves a bearer API key to its account. Lookup goes through
// the key prefix; the full key is then checked against the stored digest.
func (s *Service) Authenticate(ctx context.Context, bearer string) (Verified, error) {
	prefix, ok := apikey.LookupPrefix(bearer)
	if !ok {
		return Verified{}, ErrInvalidKey
	}
	account, err := s.store.FindAccountByKeyPrefix(ctx, prefix)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Verified{}, ErrInvalidKey
		}
		return Verified{}, err
	}
	if !s.keys.Matches(bearer, account.KeyHash) {
		return Verified{}, ErrInvalidKey
	}
	return Verified{AccountID: account.ID, Email: account.Email, KeyPrefix: account.KeyPrefix}, nil
}
