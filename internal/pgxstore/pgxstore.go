// Package pgxstore is the PostgreSQL CredentialStore, backed by a pgxpool.
// Cross-process mutual exclusion for composed flows uses advisory locks keyed
// by account id.
package pgxstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrEthical07/goAccounts"
)

const uniqueViolation = "23505"

type Store struct {
	pool *pgxpool.Pool
}

var _ goAccounts.CredentialStore = (*Store)(nil)

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Connect dials the database and verifies the connection before returning.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxstore: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgxstore: ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// EnsureSchema creates every table the store needs if it does not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("pgxstore: ensure schema: %w", err)
	}
	return nil
}

func queryErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", goAccounts.ErrQueryFailed, op, err)
}

func (s *Store) InsertAccount(ctx context.Context, username, passwordHash, email string) (uint64, error) {
	var id uint64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO accounts (username, password_hash, email) VALUES ($1, $2, $3) RETURNING id`,
		username, passwordHash, email,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return 0, goAccounts.ErrAccountExists
		}
		return 0, queryErr("insert account", err)
	}
	return id, nil
}

func (s *Store) FindAccountByUsername(ctx context.Context, username string) (*goAccounts.Account, error) {
	return s.scanAccount(s.pool.QueryRow(ctx,
		`SELECT id, username, password_hash, email, verified FROM accounts WHERE username = $1`,
		username,
	))
}

func (s *Store) FindAccountByID(ctx context.Context, id uint64) (*goAccounts.Account, error) {
	return s.scanAccount(s.pool.QueryRow(ctx,
		`SELECT id, username, password_hash, email, verified FROM accounts WHERE id = $1`,
		id,
	))
}

func (s *Store) scanAccount(row pgx.Row) (*goAccounts.Account, error) {
	var account goAccounts.Account
	err := row.Scan(&account.ID, &account.Username, &account.PasswordHash, &account.Email, &account.Verified)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, goAccounts.ErrNotFound
	}
	if err != nil {
		return nil, queryErr("scan account", err)
	}
	return &account, nil
}

func (s *Store) UpdateUsername(ctx context.Context, id uint64, username string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE accounts SET username = $2 WHERE id = $1`, id, username)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return goAccounts.ErrAccountExists
		}
		return queryErr("update username", err)
	}
	if tag.RowsAffected() == 0 {
		return goAccounts.ErrNotFound
	}
	return nil
}

func (s *Store) UpdateEmail(ctx context.Context, id uint64, email string, verified bool) error {
	return s.updateAccount(ctx, "update email",
		`UPDATE accounts SET email = $2, verified = $3 WHERE id = $1`, id, email, verified)
}

func (s *Store) UpdatePassword(ctx context.Context, id uint64, passwordHash string) error {
	return s.updateAccount(ctx, "update password",
		`UPDATE accounts SET password_hash = $2 WHERE id = $1`, id, passwordHash)
}

func (s *Store) SetVerified(ctx context.Context, id uint64, verified bool) error {
	return s.updateAccount(ctx, "set verified",
		`UPDATE accounts SET verified = $2 WHERE id = $1`, id, verified)
}

func (s *Store) updateAccount(ctx context.Context, op, sql string, args ...any) error {
	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return queryErr(op, err)
	}
	if tag.RowsAffected() == 0 {
		return goAccounts.ErrNotFound
	}
	return nil
}

func (s *Store) InsertToken(ctx context.Context, token *goAccounts.Token) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tokens (value, account_id, application) VALUES ($1, $2, $3)`,
		token.Value, token.AccountID, token.Application)
	if err != nil {
		return queryErr("insert token", err)
	}
	return nil
}

func (s *Store) FindToken(ctx context.Context, value string) (*goAccounts.Token, error) {
	var token goAccounts.Token
	err := s.pool.QueryRow(ctx,
		`SELECT value, account_id, application FROM tokens WHERE value = $1`, value,
	).Scan(&token.Value, &token.AccountID, &token.Application)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, goAccounts.ErrNotFound
	}
	if err != nil {
		return nil, queryErr("find token", err)
	}
	return &token, nil
}

func (s *Store) DeleteToken(ctx context.Context, value string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM tokens WHERE value = $1`, value); err != nil {
		return queryErr("delete token", err)
	}
	return nil
}

func (s *Store) DeleteAccountTokens(ctx context.Context, accountID uint64) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM tokens WHERE account_id = $1`, accountID); err != nil {
		return queryErr("delete account tokens", err)
	}
	return nil
}

func (s *Store) InsertResetRequest(ctx context.Context, request *goAccounts.PasswordResetRequest) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO reset_requests (account_id, temporary_password, expiry) VALUES ($1, $2, $3)
		 ON CONFLICT (account_id) DO UPDATE SET temporary_password = $2, expiry = $3`,
		request.AccountID, request.TemporaryPassword, request.Expiry)
	if err != nil {
		return queryErr("insert reset request", err)
	}
	return nil
}

func (s *Store) FindResetRequest(ctx context.Context, accountID uint64) (*goAccounts.PasswordResetRequest, error) {
	var request goAccounts.PasswordResetRequest
	err := s.pool.QueryRow(ctx,
		`SELECT account_id, temporary_password, expiry FROM reset_requests WHERE account_id = $1`,
		accountID,
	).Scan(&request.AccountID, &request.TemporaryPassword, &request.Expiry)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, goAccounts.ErrNotFound
	}
	if err != nil {
		return nil, queryErr("find reset request", err)
	}
	return &request, nil
}

func (s *Store) DeleteResetRequest(ctx context.Context, accountID uint64) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM reset_requests WHERE account_id = $1`, accountID); err != nil {
		return queryErr("delete reset request", err)
	}
	return nil
}

func (s *Store) GetOtpSecret(ctx context.Context, accountID uint64) (*goAccounts.OtpSecret, error) {
	var secret goAccounts.OtpSecret
	err := s.pool.QueryRow(ctx,
		`SELECT account_id, secret, enabled FROM otp_secrets WHERE account_id = $1`, accountID,
	).Scan(&secret.AccountID, &secret.Secret, &secret.Enabled)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, goAccounts.ErrNotFound
	}
	if err != nil {
		return nil, queryErr("get otp secret", err)
	}
	return &secret, nil
}

func (s *Store) SetOtpSecret(ctx context.Context, accountID uint64, secret string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO otp_secrets (account_id, secret, enabled) VALUES ($1, $2, FALSE)
		 ON CONFLICT (account_id) DO UPDATE SET secret = $2, enabled = FALSE`,
		accountID, secret)
	if err != nil {
		return queryErr("set otp secret", err)
	}
	return nil
}

func (s *Store) SetOtpEnabled(ctx context.Context, accountID uint64, enabled bool) error {
	return s.updateAccount(ctx, "set otp enabled",
		`UPDATE otp_secrets SET enabled = $2 WHERE account_id = $1`, accountID, enabled)
}

func (s *Store) ReplaceBackupCodes(ctx context.Context, accountID uint64, codes []string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return queryErr("replace backup codes", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM backup_codes WHERE account_id = $1`, accountID); err != nil {
		return queryErr("replace backup codes", err)
	}
	for _, code := range codes {
		if _, err := tx.Exec(ctx,
			`INSERT INTO backup_codes (account_id, code) VALUES ($1, $2)`, accountID, code); err != nil {
			return queryErr("replace backup codes", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return queryErr("replace backup codes", err)
	}
	return nil
}

func (s *Store) ListBackupCodes(ctx context.Context, accountID uint64) ([]goAccounts.BackupCode, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT account_id, code, used FROM backup_codes WHERE account_id = $1 ORDER BY id`, accountID)
	if err != nil {
		return nil, queryErr("list backup codes", err)
	}
	defer rows.Close()

	var codes []goAccounts.BackupCode
	for rows.Next() {
		var code goAccounts.BackupCode
		if err := rows.Scan(&code.AccountID, &code.Code, &code.Used); err != nil {
			return nil, queryErr("list backup codes", err)
		}
		codes = append(codes, code)
	}
	if err := rows.Err(); err != nil {
		return nil, queryErr("list backup codes", err)
	}
	return codes, nil
}

// MarkBackupCodeUsed consumes at most one matching unused code. The inner
// SELECT with FOR UPDATE SKIP LOCKED makes concurrent attempts race safely:
// only one caller sees true.
func (s *Store) MarkBackupCodeUsed(ctx context.Context, accountID uint64, code string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE backup_codes SET used = TRUE WHERE id = (
		     SELECT id FROM backup_codes
		     WHERE account_id = $1 AND code = $2 AND NOT used
		     ORDER BY id LIMIT 1
		     FOR UPDATE SKIP LOCKED
		 )`, accountID, code)
	if err != nil {
		return false, queryErr("mark backup code used", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) FindSecurityKeyCredentials(ctx context.Context, accountID uint64, application string) ([]goAccounts.SecurityKeyCredential, error) {
	return s.querySecurityKeys(ctx,
		`SELECT id, account_id, application, name, data FROM security_keys
		 WHERE account_id = $1 AND application = $2 ORDER BY id`, accountID, application)
}

func (s *Store) ListSecurityKeys(ctx context.Context, accountID uint64) ([]goAccounts.SecurityKeyCredential, error) {
	return s.querySecurityKeys(ctx,
		`SELECT id, account_id, application, name, data FROM security_keys
		 WHERE account_id = $1 ORDER BY id`, accountID)
}

func (s *Store) querySecurityKeys(ctx context.Context, sql string, args ...any) ([]goAccounts.SecurityKeyCredential, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, queryErr("query security keys", err)
	}
	defer rows.Close()

	var keys []goAccounts.SecurityKeyCredential
	for rows.Next() {
		var key goAccounts.SecurityKeyCredential
		if err := rows.Scan(&key.ID, &key.AccountID, &key.Application, &key.Name, &key.Data); err != nil {
			return nil, queryErr("query security keys", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, queryErr("query security keys", err)
	}
	return keys, nil
}

func (s *Store) InsertSecurityKeyCredential(ctx context.Context, credential *goAccounts.SecurityKeyCredential) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO security_keys (account_id, application, name, data) VALUES ($1, $2, $3, $4) RETURNING id`,
		credential.AccountID, credential.Application, credential.Name, credential.Data,
	).Scan(&credential.ID)
	if err != nil {
		return queryErr("insert security key", err)
	}
	return nil
}

func (s *Store) ReplaceSecurityKeyCredential(ctx context.Context, accountID uint64, oldData, newData []byte) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE security_keys SET data = $3 WHERE account_id = $1 AND data = $2`,
		accountID, oldData, newData)
	if err != nil {
		return queryErr("replace security key", err)
	}
	if tag.RowsAffected() == 0 {
		return goAccounts.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteSecurityKeyCredential(ctx context.Context, accountID, keyID uint64) (*goAccounts.SecurityKeyCredential, error) {
	var key goAccounts.SecurityKeyCredential
	err := s.pool.QueryRow(ctx,
		`DELETE FROM security_keys WHERE account_id = $1 AND id = $2
		 RETURNING id, account_id, application, name, data`,
		accountID, keyID,
	).Scan(&key.ID, &key.AccountID, &key.Application, &key.Name, &key.Data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, goAccounts.ErrNotFound
	}
	if err != nil {
		return nil, queryErr("delete security key", err)
	}
	return &key, nil
}

func (s *Store) InsertVerificationCode(ctx context.Context, accountID uint64, code string, expiry time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO verification_codes (account_id, code, expiry) VALUES ($1, $2, $3)`,
		accountID, code, expiry)
	if err != nil {
		return queryErr("insert verification code", err)
	}
	return nil
}

func (s *Store) ConsumeVerificationCode(ctx context.Context, accountID uint64, code string, now time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM verification_codes WHERE ctid = (
		     SELECT ctid FROM verification_codes
		     WHERE account_id = $1 AND code = $2 AND expiry > $3
		     LIMIT 1
		 )`, accountID, code, now)
	if err != nil {
		return false, queryErr("consume verification code", err)
	}
	return tag.RowsAffected() == 1, nil
}

// advisoryLockKey maps an account id to the 64-bit advisory lock key space
// without losing bits, so two distinct accounts never contend for the same
// lock.
func advisoryLockKey(accountID uint64) int64 {
	return int64(accountID)
}

// WithAccountLock holds a session-level advisory lock on a dedicated
// connection for the duration of fn.
func (s *Store) WithAccountLock(ctx context.Context, accountID uint64, fn func(ctx context.Context) error) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return queryErr("acquire lock connection", err)
	}
	defer conn.Release()

	key := advisoryLockKey(accountID)
	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock($1)`, key); err != nil {
		return queryErr("acquire advisory lock", err)
	}
	defer conn.Exec(ctx, `SELECT pg_advisory_unlock($1)`, key)

	return fn(ctx)
}
