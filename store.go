package goAccounts

import (
	"context"
	"time"
)

// CredentialStore is the system of record for accounts and credential
// material. Every method is atomic for its single logical operation; misses
// are reported as ErrNotFound and backend failures are wrapped in
// ErrQueryFailed by the implementation.
//
// Multi-step flows (reset consumption, backup code regeneration) compose
// operations inside WithAccountLock, which serializes conflicting mutations
// for one account. Implementations back this with per-account mutual
// exclusion or a database transaction; either way, two concurrent calls for
// the same account must not interleave a read-modify-write cycle.
type CredentialStore interface {
	InsertAccount(ctx context.Context, username, passwordHash, email string) (uint64, error)
	FindAccountByUsername(ctx context.Context, username string) (*Account, error)
	FindAccountByID(ctx context.Context, id uint64) (*Account, error)
	UpdateUsername(ctx context.Context, id uint64, username string) error
	UpdateEmail(ctx context.Context, id uint64, email string, verified bool) error
	UpdatePassword(ctx context.Context, id uint64, passwordHash string) error
	SetVerified(ctx context.Context, id uint64, verified bool) error

	InsertToken(ctx context.Context, token *Token) error
	FindToken(ctx context.Context, value string) (*Token, error)
	DeleteToken(ctx context.Context, value string) error
	DeleteAccountTokens(ctx context.Context, accountID uint64) error

	InsertResetRequest(ctx context.Context, request *PasswordResetRequest) error
	FindResetRequest(ctx context.Context, accountID uint64) (*PasswordResetRequest, error)
	DeleteResetRequest(ctx context.Context, accountID uint64) error

	GetOtpSecret(ctx context.Context, accountID uint64) (*OtpSecret, error)
	SetOtpSecret(ctx context.Context, accountID uint64, secret string) error
	SetOtpEnabled(ctx context.Context, accountID uint64, enabled bool) error

	ReplaceBackupCodes(ctx context.Context, accountID uint64, codes []string) error
	ListBackupCodes(ctx context.Context, accountID uint64) ([]BackupCode, error)
	MarkBackupCodeUsed(ctx context.Context, accountID uint64, code string) (bool, error)

	FindSecurityKeyCredentials(ctx context.Context, accountID uint64, application string) ([]SecurityKeyCredential, error)
	ListSecurityKeys(ctx context.Context, accountID uint64) ([]SecurityKeyCredential, error)
	InsertSecurityKeyCredential(ctx context.Context, credential *SecurityKeyCredential) error
	ReplaceSecurityKeyCredential(ctx context.Context, accountID uint64, oldData, newData []byte) error
	DeleteSecurityKeyCredential(ctx context.Context, accountID, keyID uint64) (*SecurityKeyCredential, error)

	InsertVerificationCode(ctx context.Context, accountID uint64, code string, expiry time.Time) error
	ConsumeVerificationCode(ctx context.Context, accountID uint64, code string, now time.Time) (bool, error)

	// WithAccountLock runs fn with mutations for accountID serialized against
	// every other WithAccountLock call for the same account.
	WithAccountLock(ctx context.Context, accountID uint64, fn func(ctx context.Context) error) error
}
