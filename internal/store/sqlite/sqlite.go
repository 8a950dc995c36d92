package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alphabot-ai/keygate/internal/model"
	"github.com/alphabot-ai/keygate/internal/store"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single connection serialises writers; credential replacement relies
	// on one UPDATE being the unit of atomicity.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := applySchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// migrations is an ordered list of SQL migrations.
// Each migration runs exactly once, tracked by schema_version table.
var migrations = []string{
	// Migration 1: accounts and their current credential
	`
CREATE TABLE IF NOT EXISTS accounts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	email TEXT NOT NULL COLLATE NOCASE,
	key_prefix TEXT,
	key_hash TEXT,
	key_issued_at INTEGER,
	created_at INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_accounts_email ON accounts(email);
CREATE UNIQUE INDEX IF NOT EXISTS idx_accounts_key_prefix ON accounts(key_prefix);
`,
	// Migration 2: verification outcome and outstanding nonces
	`
ALTER TABLE accounts ADD COLUMN verified_via TEXT;
ALTER TABLE accounts ADD COLUMN handle TEXT;
ALTER TABLE accounts ADD COLUMN verified_at INTEGER;

CREATE TABLE IF NOT EXISTS verification_nonces (
	account_id INTEGER PRIMARY KEY,
	nonce TEXT NOT NULL,
	expires_at INTEGER NOT NULL,
	created_at INTEGER NOT NULL,
	FOREIGN KEY(account_id) REFERENCES accounts(id) ON DELETE CASCADE
);
`,
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		)
	`); err != nil {
		return err
	}

	var currentVersion int
	row := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`)
	if err := row.Scan(&currentVersion); err != nil {
		return err
	}

	for i := currentVersion; i < len(migrations); i++ {
		if _, err := db.Exec(migrations[i]); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
		if _, err := db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, i+1); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", i+1, err)
		}
	}

	return nil
}

const accountColumns = `id, email, key_prefix, key_hash, key_issued_at, verified_via, handle, verified_at, created_at`

func (s *Store) CreateAccount(ctx context.Context, account *model.Account) (int64, error) {
	email := strings.ToLower(strings.TrimSpace(account.Email))
	if email == "" {
		return 0, errors.New("email required")
	}
	created := account.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	res, err := s.db.ExecContext(ctx, `
INSERT INTO accounts (email, created_at)
VALUES (?, ?)
`, email, created.Unix())
	if err != nil {
		if isUniqueViolation(err) {
			return 0, store.ErrDuplicateEmail
		}
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) GetAccount(ctx context.Context, id int64) (model.Account, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	return scanAccount(row)
}

func (s *Store) GetAccountByEmail(ctx context.Context, email string) (model.Account, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = ?`, strings.TrimSpace(email))
	return scanAccount(row)
}

func (s *Store) FindAccountByKeyPrefix(ctx context.Context, prefix string) (model.Account, error) {
	if prefix == "" {
		return model.Account{}, store.ErrNotFound
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE key_prefix = ?`, prefix)
	return scanAccount(row)
}

func (s *Store) ReplaceCredential(ctx context.Context, accountID int64, prefix, hash string, issuedAt time.Time) error {
	if prefix == "" || hash == "" {
		return errors.New("prefix and hash required")
	}
	res, err := s.db.ExecContext(ctx, `
UPDATE accounts SET key_prefix = ?, key_hash = ?, key_issued_at = ? WHERE id = ?
`, prefix, hash, issuedAt.Unix(), accountID)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicateKey
		}
		return err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) MarkVerified(ctx context.Context, accountID int64, v model.Verification) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE accounts SET verified_via = ?, handle = ?, verified_at = ? WHERE id = ?
`, v.Via, nullIfEmpty(v.Handle), v.VerifiedAt.Unix(), accountID)
	if err != nil {
		return err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListAccounts(ctx context.Context, limit, offset int) ([]model.Account, int, error) {
	limit = clamp(limit, 1, 200)
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT `+accountColumns+`
FROM accounts
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?
`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, 0, err
		}
		accounts = append(accounts, a)
	}
	return accounts, total, rows.Err()
}

func (s *Store) DeleteAccount(ctx context.Context, accountID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM verification_nonces WHERE account_id = ?`, accountID); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, accountID)
	if err != nil {
		return err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		err = store.ErrNotFound
		return err
	}
	return tx.Commit()
}

func (s *Store) PutNonce(ctx context.Context, n model.Nonce) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO verification_nonces (account_id, nonce, expires_at, created_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(account_id) DO UPDATE SET nonce = excluded.nonce, expires_at = excluded.expires_at, created_at = excluded.created_at
`, n.AccountID, n.Value, n.ExpiresAt.Unix(), time.Now().Unix())
	if err != nil && strings.Contains(err.Error(), "FOREIGN KEY") {
		return store.ErrNotFound
	}
	return err
}

func (s *Store) GetNonce(ctx context.Context, accountID int64) (model.Nonce, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT account_id, nonce, expires_at
FROM verification_nonces
WHERE account_id = ?
`, accountID)
	var n model.Nonce
	var expires int64
	if err := row.Scan(&n.AccountID, &n.Value, &expires); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Nonce{}, store.ErrNotFound
		}
		return model.Nonce{}, err
	}
	n.ExpiresAt = time.Unix(expires, 0)
	return n, nil
}

func (s *Store) DeleteNonce(ctx context.Context, accountID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM verification_nonces WHERE account_id = ?`, accountID)
	return err
}

func (s *Store) GetStats(ctx context.Context) (model.Stats, error) {
	var stats model.Stats
	row := s.db.QueryRowContext(ctx, `
SELECT
	COUNT(*),
	COALESCE(SUM(CASE WHEN verified_via IS NOT NULL AND verified_via != '' THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN key_hash IS NOT NULL THEN 1 ELSE 0 END), 0)
FROM accounts
`)
	if err := row.Scan(&stats.Accounts, &stats.VerifiedAccounts, &stats.IssuedKeys); err != nil {
		return stats, err
	}
	return stats, nil
}

func scanAccount(scanner interface{ Scan(dest ...any) error }) (model.Account, error) {
	var a model.Account
	var prefix, hash, via, handle sql.NullString
	var issued, verified sql.NullInt64
	var created int64
	if err := scanner.Scan(&a.ID, &a.Email, &prefix, &hash, &issued, &via, &handle, &verified, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Account{}, store.ErrNotFound
		}
		return model.Account{}, err
	}
	a.KeyPrefix = prefix.String
	a.KeyHash = hash.String
	a.VerifiedVia = via.String
	a.Handle = handle.String
	if issued.Valid {
		t := time.Unix(issued.Int64, 0)
		a.KeyIssuedAt = &t
	}
	if verified.Valid {
		t := time.Unix(verified.Int64, 0)
		a.VerifiedAt = &t
	}
	a.CreatedAt = time.Unix(created, 0)
	return a, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func nullIfEmpty(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "PRIMARY KEY")
}
