// Package issuance implements API key reissue: the rate gate is consulted
// first, then the request is validated, the account resolved, and a fresh
// credential generated and persisted in place of the old one.
package issuance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alphabot-ai/keygate/internal/apikey"
	"github.com/alphabot-ai/keygate/internal/logging"
	"github.com/alphabot-ai/keygate/internal/model"
	"github.com/alphabot-ai/keygate/internal/rate"
	"github.com/alphabot-ai/keygate/internal/store"
)

var (
	ErrRateLimited     = errors.New("rate limited")
	ErrInvalidEmail    = errors.New("a valid email is required")
	ErrAccountNotFound = errors.New("account not found")
	ErrGateUnavailable = errors.New("rate gate unavailable")
	ErrGenerate        = errors.New("credential generation failed")
	ErrPersistence     = errors.New("credential persistence failed")
)

// DeniedError is returned when the gate refuses the request. It matches
// ErrRateLimited under errors.Is.
type DeniedError struct {
	Notification string
	RetryAfter   time.Duration
}

func (e *DeniedError) Error() string {
	if e.Notification == "" {
		return ErrRateLimited.Error()
	}
	return e.Notification
}

func (e *DeniedError) Unwrap() error { return ErrRateLimited }

const maxCredentialAttempts = 3

type Directory interface {
	GetAccountByEmail(ctx context.Context, email string) (model.Account, error)
	ReplaceCredential(ctx context.Context, accountID int64, prefix, hash string, issuedAt time.Time) error
}

type KeyGenerator interface {
	Generate() (apikey.Credential, error)
}

type RateGate interface {
	Check(ctx context.Context, action, clientID string) (rate.Decision, error)
}

// Issued is a successful reissue. APIKey is the only copy of the plaintext
// secret; it is not stored anywhere.
type Issued struct {
	AccountID int64
	Email     string
	APIKey    string
	Prefix    string
	IssuedAt  time.Time
}

type Service struct {
	gate RateGate
	dir  Directory
	keys KeyGenerator
	log  logging.Logger
	now  func() time.Time
}

func NewService(gate RateGate, dir Directory, keys KeyGenerator, log logging.Logger) *Service {
	if log == nil {
		log = logging.Nop()
	}
	return &Service{
		gate: gate,
		dir:  dir,
		keys: keys,
		log:  log.With("component", "issuance"),
		now:  time.Now,
	}
}

// Reissue runs the full workflow for one request. body is the raw request
// payload; an absent or malformed body is treated as an empty object.
func (s *Service) Reissue(ctx context.Context, clientID string, body []byte) (Issued, error) {
	decision, err := s.gate.Check(ctx, rate.ActionReissue, clientID)
	if err != nil {
		return Issued{}, fmt.Errorf("%w: %v", ErrGateUnavailable, err)
	}
	if !decision.OK {
		return Issued{}, &DeniedError{Notification: decision.Notification, RetryAfter: decision.RetryAfter}
	}

	email, ok := EmailFromBody(body)
	if !ok {
		return Issued{}, ErrInvalidEmail
	}

	account, err := s.dir.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Issued{}, ErrAccountNotFound
		}
		s.log.Error(ctx, "account lookup failed", "error", err)
		return Issued{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	issuedAt := s.now().UTC()
	var cred apikey.Credential
	for attempt := 1; ; attempt++ {
		cred, err = s.keys.Generate()
		if err != nil {
			s.log.Error(ctx, "generate credential", "account_id", account.ID, "error", err)
			return Issued{}, fmt.Errorf("%w: %v", ErrGenerate, err)
		}
		err = s.dir.ReplaceCredential(ctx, account.ID, cred.Prefix, cred.Hash, issuedAt)
		if err == nil {
			break
		}
		// Another account already holds this lookup prefix; draw again.
		if errors.Is(err, store.ErrDuplicateKey) && attempt < maxCredentialAttempts {
			s.log.Warn(ctx, "key prefix collision", "account_id", account.ID, "attempt", attempt)
			continue
		}
		s.log.Error(ctx, "persist credential", "account_id", account.ID, "error", err)
		return Issued{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	s.log.Info(ctx, "api key reissued", "account_id", account.ID, "key_prefix", cred.Prefix)
	return Issued{
		AccountID: account.ID,
		Email:     account.Email,
		APIKey:    cred.Secret,
		Prefix:    cred.Prefix,
		IssuedAt:  issuedAt,
	}, nil
}

// EmailFromBody extracts and normalises the "email" field of a JSON object.
// Anything other than a JSON object with a string email yields false.
func EmailFromBody(body []byte) (string, bool) {
	var payload map[string]any
	if len(body) > 0 {
		if err := json.Unmarshal(body, &payload); err != nil {
			payload = nil
		}
	}
	raw, _ := payload["email"].(string)
	return NormalizeEmail(raw)
}

func NormalizeEmail(raw string) (string, bool) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" || !strings.Contains(email, "@") {
		return "", false
	}
	return email, true
}
