package goAccounts

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"
	"unicode"

	"github.com/MrEthical07/goAccounts/password"
)

const (
	maxUsernameLength      = 64
	verificationCodeDigits = 6
)

// CreateAccount registers a new account and queues a verification
// notification carrying the emailed code. The password is hashed before it
// ever reaches the store.
func (e *Engine) CreateAccount(ctx context.Context, username, plainPassword, email string) (*Account, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if !validUsername(username) || !validEmail(email) {
		return nil, ErrInvalidInput
	}
	if len(plainPassword) < e.config.Password.MinLength {
		return nil, ErrInvalidInput
	}

	hash, err := password.Hash(plainPassword, e.config.Password.Iterations)
	if err != nil {
		return nil, ErrInternal
	}

	id, err := e.store.InsertAccount(ctx, username, hash, email)
	if err != nil {
		return nil, err
	}

	account := &Account{ID: id, Username: username, Email: email, PasswordHash: hash}
	e.cache.Put(*account)

	// Delivery failure is the mailer's problem; the account exists either
	// way and the code can be reissued later.
	e.issueVerificationCode(ctx, account)

	return account, nil
}

// AccountByUsername resolves a username to an account snapshot.
func (e *Engine) AccountByUsername(ctx context.Context, username string) (*Account, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if username == "" {
		return nil, ErrInvalidInput
	}
	return e.accountByUsername(ctx, username)
}

// AccountByID resolves an account id to an account snapshot.
func (e *Engine) AccountByID(ctx context.Context, id uint64) (*Account, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	return e.accountByID(ctx, id)
}

// SetUsername renames an account.
func (e *Engine) SetUsername(ctx context.Context, accountID uint64, username string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if !validUsername(username) {
		return ErrInvalidInput
	}
	if _, err := e.accountByID(ctx, accountID); err != nil {
		return err
	}
	if err := e.store.UpdateUsername(ctx, accountID, username); err != nil {
		return err
	}
	e.invalidate(accountID)
	return nil
}

// SetEmail changes the address, clears the verified flag, and issues a fresh
// verification code.
func (e *Engine) SetEmail(ctx context.Context, accountID uint64, email string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if !validEmail(email) {
		return ErrInvalidInput
	}
	account, err := e.accountByID(ctx, accountID)
	if err != nil {
		return err
	}
	if err := e.store.UpdateEmail(ctx, accountID, email, false); err != nil {
		return err
	}
	e.invalidate(accountID)

	updated := *account
	updated.Email = email
	updated.Verified = false
	e.issueVerificationCode(ctx, &updated)
	return nil
}

// SetPassword replaces the account password with a fresh digest.
func (e *Engine) SetPassword(ctx context.Context, accountID uint64, plainPassword string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	account, err := e.accountByID(ctx, accountID)
	if err != nil {
		return err
	}
	if err := e.setPassword(ctx, account, plainPassword); err != nil {
		return err
	}
	e.emit(NotifyPasswordChanged, account, nil)
	return nil
}

// setPassword enforces policy, hashes, stores, and invalidates. Callers own
// notification.
func (e *Engine) setPassword(ctx context.Context, account *Account, plainPassword string) error {
	if len(plainPassword) < e.config.Password.MinLength {
		return ErrInvalidInput
	}
	hash, err := password.Hash(plainPassword, e.config.Password.Iterations)
	if err != nil {
		return ErrInternal
	}
	if err := e.store.UpdatePassword(ctx, account.ID, hash); err != nil {
		return err
	}
	e.invalidate(account.ID)
	return nil
}

// ErasePassword invalidates the password entirely: the account must complete
// a reset before it can authenticate again.
func (e *Engine) ErasePassword(ctx context.Context, accountID uint64) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if _, err := e.accountByID(ctx, accountID); err != nil {
		return err
	}
	if err := e.store.UpdatePassword(ctx, accountID, erasedPasswordSentinel); err != nil {
		return err
	}
	e.invalidate(accountID)
	return nil
}

// SetAccountDisabled toggles the disabled marker on the stored password.
// Disabling also revokes every outstanding login token.
func (e *Engine) SetAccountDisabled(ctx context.Context, accountID uint64, disabled bool) error {
	if e == nil {
		return ErrEngineNotReady
	}
	account, err := e.accountByID(ctx, accountID)
	if err != nil {
		return err
	}

	switch {
	case disabled && !account.Disabled():
		if err := e.store.UpdatePassword(ctx, accountID, disabledPasswordPrefix+account.PasswordHash); err != nil {
			return err
		}
		if err := e.store.DeleteAccountTokens(ctx, accountID); err != nil {
			return err
		}
	case !disabled && account.Disabled():
		restored := strings.TrimPrefix(account.PasswordHash, disabledPasswordPrefix)
		if err := e.store.UpdatePassword(ctx, accountID, restored); err != nil {
			return err
		}
	default:
		return nil
	}

	e.invalidate(accountID)
	return nil
}

// VerifyPassword checks a password against the account without issuing any
// token.
func (e *Engine) VerifyPassword(ctx context.Context, accountID uint64, plainPassword string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if plainPassword == "" {
		return ErrInvalidInput
	}
	account, err := e.accountByID(ctx, accountID)
	if err != nil {
		return err
	}
	if account.Disabled() {
		return ErrDisabledAccount
	}
	if account.PasswordErased() {
		return ErrPasswordResetRequired
	}
	if !password.Verify(plainPassword, account.PasswordHash) {
		return ErrIncorrectPassword
	}
	return nil
}

// VerifyEmail consumes a live verification code and marks the account
// verified. The consume and flag flip happen under the account lock.
func (e *Engine) VerifyEmail(ctx context.Context, accountID uint64, code string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if code == "" {
		return ErrInvalidInput
	}
	if _, err := e.accountByID(ctx, accountID); err != nil {
		return err
	}

	err := e.store.WithAccountLock(ctx, accountID, func(ctx context.Context) error {
		ok, err := e.store.ConsumeVerificationCode(ctx, accountID, code, e.now())
		if err != nil {
			return err
		}
		if !ok {
			return ErrVerificationCodeIncorrect
		}
		return e.store.SetVerified(ctx, accountID, true)
	})
	if err != nil {
		return err
	}

	e.invalidate(accountID)
	return nil
}

// ResendVerification rotates the verification code and queues a fresh
// notification.
func (e *Engine) ResendVerification(ctx context.Context, accountID uint64) error {
	if e == nil {
		return ErrEngineNotReady
	}
	account, err := e.accountByID(ctx, accountID)
	if err != nil {
		return err
	}
	e.issueVerificationCode(ctx, account)
	return nil
}

func (e *Engine) issueVerificationCode(ctx context.Context, account *Account) {
	code, err := randomDigits(verificationCodeDigits)
	if err != nil {
		return
	}
	if err := e.store.InsertVerificationCode(ctx, account.ID, code, e.now().Add(24*time.Hour)); err != nil {
		return
	}
	e.emit(NotifyVerificationNeeded, account, map[string]string{"code": code})
}

func randomDigits(n int) (string, error) {
	limit := big.NewInt(1)
	for i := 0; i < n; i++ {
		limit.Mul(limit, big.NewInt(10))
	}
	v, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", n, v), nil
}

func validUsername(username string) bool {
	if username == "" || len(username) > maxUsernameLength {
		return false
	}
	for _, r := range username {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return false
		}
	}
	return true
}

func validEmail(email string) bool {
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}
	domain := email[at+1:]
	return !strings.ContainsAny(email, " \t\r\n") && strings.Count(email, "@") == 1 && domain != ""
}
