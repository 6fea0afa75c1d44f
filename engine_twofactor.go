package goAccounts

import (
	"context"
	"errors"
)

// TwoFactorStatus reports the second factor configuration of an account. The
// shared secret is included so the owner can re-derive the provisioning QR
// code; it is never exposed over any unauthenticated path.
type TwoFactorStatus struct {
	Enabled   bool
	SecretKey string
}

// TwoFactorStatus returns the current second factor state for an account.
func (e *Engine) TwoFactorStatus(ctx context.Context, accountID uint64) (*TwoFactorStatus, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if _, err := e.accountByID(ctx, accountID); err != nil {
		return nil, err
	}

	secret, err := e.store.GetOtpSecret(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return &TwoFactorStatus{}, nil
		}
		return nil, err
	}
	return &TwoFactorStatus{Enabled: secret.Enabled, SecretKey: secret.Secret}, nil
}

// GenerateTwoFactorKey creates (or replaces) the shared secret in a disabled
// state. The secret starts gating logins only once the owner proves
// possession of a valid code through EnableTwoFactor.
func (e *Engine) GenerateTwoFactorKey(ctx context.Context, accountID uint64) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}
	if _, err := e.accountByID(ctx, accountID); err != nil {
		return "", err
	}

	current, err := e.store.GetOtpSecret(ctx, accountID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return "", err
	}
	if current != nil && current.Enabled {
		return "", ErrTwoFactorEnabled
	}

	secret, err := generateSharedOtpSecret()
	if err != nil {
		return "", ErrInternal
	}
	if err := e.store.SetOtpSecret(ctx, accountID, secret); err != nil {
		return "", err
	}
	return secret, nil
}

// EnableTwoFactor activates the generated secret after the caller proves
// possession of a valid code, and hands back the first batch of backup codes.
func (e *Engine) EnableTwoFactor(ctx context.Context, accountID uint64, otpCode string) ([]string, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	account, err := e.accountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	secret, err := e.store.GetOtpSecret(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrTwoFactorDisabled
		}
		return nil, err
	}
	if secret.Enabled {
		return nil, ErrTwoFactorEnabled
	}
	if !isValidOtpCode(otpCode, secret.Secret, e.now()) {
		return nil, ErrTwoFactorRequired
	}

	var codes []string
	err = e.store.WithAccountLock(ctx, accountID, func(ctx context.Context) error {
		if err := e.store.SetOtpEnabled(ctx, accountID, true); err != nil {
			return err
		}
		codes, err = e.replaceBackupCodes(ctx, accountID)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.emit(NotifyTwoFactorEnabled, account, nil)
	return codes, nil
}

// DisableTwoFactor deactivates the second factor. The secret row remains so
// state can be inspected, but it no longer gates logins.
func (e *Engine) DisableTwoFactor(ctx context.Context, accountID uint64) error {
	if e == nil {
		return ErrEngineNotReady
	}
	account, err := e.accountByID(ctx, accountID)
	if err != nil {
		return err
	}

	secret, err := e.store.GetOtpSecret(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrTwoFactorDisabled
		}
		return err
	}
	if !secret.Enabled {
		return ErrTwoFactorDisabled
	}

	if err := e.store.SetOtpEnabled(ctx, accountID, false); err != nil {
		return err
	}
	e.emit(NotifyTwoFactorDisabled, account, nil)
	return nil
}

// RegenerateBackupCodes atomically replaces the whole backup batch. Old
// codes stop validating the moment the swap commits, used or not.
func (e *Engine) RegenerateBackupCodes(ctx context.Context, accountID uint64) ([]string, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if _, err := e.accountByID(ctx, accountID); err != nil {
		return nil, err
	}

	secret, err := e.store.GetOtpSecret(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrTwoFactorDisabled
		}
		return nil, err
	}
	if !secret.Enabled {
		return nil, ErrTwoFactorDisabled
	}

	var codes []string
	err = e.store.WithAccountLock(ctx, accountID, func(ctx context.Context) error {
		codes, err = e.replaceBackupCodes(ctx, accountID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return codes, nil
}

// BackupCodes lists the account's backup codes with their used flags.
func (e *Engine) BackupCodes(ctx context.Context, accountID uint64) ([]BackupCode, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if _, err := e.accountByID(ctx, accountID); err != nil {
		return nil, err
	}
	return e.store.ListBackupCodes(ctx, accountID)
}

func (e *Engine) replaceBackupCodes(ctx context.Context, accountID uint64) ([]string, error) {
	codes, err := generateBackupCodes()
	if err != nil {
		return nil, ErrInternal
	}
	if err := e.store.ReplaceBackupCodes(ctx, accountID, codes); err != nil {
		return nil, err
	}
	return codes, nil
}
