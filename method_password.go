package goAccounts

import (
	"context"
	"errors"

	"github.com/MrEthical07/goAccounts/password"
)

// passwordProvisioningMethod proves identity with username and password,
// handles reset-completion inline, and enforces the second factor for login
// tokens.
type passwordProvisioningMethod struct {
	engine *Engine
}

func (m *passwordProvisioningMethod) name() string { return "password" }

func (m *passwordProvisioningMethod) provision(ctx context.Context, opts ProvisionOptions, purpose Purpose) (uint64, map[string]string, error) {
	e := m.engine

	if opts.Username == "" || opts.Password == "" {
		return 0, nil, ErrInvalidInput
	}

	account, err := e.accountByUsername(ctx, opts.Username)
	if err != nil {
		return 0, nil, err
	}
	if account.Disabled() {
		return 0, nil, ErrDisabledAccount
	}

	suppliedPassword := opts.Password

	// A live reset request whose temporary password matches turns this call
	// into a reset completion: the caller must bring a new password in the
	// same call, and authentication continues with it.
	haveLiveReset := false
	reset, err := e.store.FindResetRequest(ctx, account.ID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return 0, nil, err
	}
	if reset != nil && !reset.Expired(e.now()) {
		haveLiveReset = true
		if password.Verify(suppliedPassword, reset.TemporaryPassword) {
			if opts.NewPassword == "" {
				return 0, nil, ErrPasswordResetRequired
			}

			if err := e.completePasswordReset(ctx, account, opts.NewPassword); err != nil {
				return 0, nil, err
			}

			// Re-read the rotated hash; the rest of this call verifies the
			// new credential.
			account, err = e.accountByID(ctx, account.ID)
			if err != nil {
				return 0, nil, err
			}
			suppliedPassword = opts.NewPassword
			haveLiveReset = false
		}
	}

	if account.PasswordErased() {
		// A pending reset is deliberately not revealed here: claiming the
		// password is incorrect leaks nothing about reset state.
		if haveLiveReset {
			return 0, nil, ErrIncorrectPassword
		}
		return 0, nil, ErrPasswordResetRequired
	}

	if !password.Verify(suppliedPassword, account.PasswordHash) {
		return 0, nil, ErrIncorrectPassword
	}

	// The second factor gates login tokens only; modification tokens are
	// requested by already-authenticated sessions.
	if purpose == PurposeLogin {
		if err := m.checkSecondFactor(ctx, account.ID, opts.OTPToken); err != nil {
			return 0, nil, err
		}
	}

	return account.ID, nil, nil
}

func (m *passwordProvisioningMethod) checkSecondFactor(ctx context.Context, accountID uint64, otpToken string) error {
	e := m.engine

	secret, err := e.store.GetOtpSecret(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	if !secret.Enabled {
		return nil
	}

	if otpToken == "" {
		return ErrTwoFactorRequired
	}

	if isValidOtpCode(otpToken, secret.Secret, e.now()) {
		return nil
	}

	// OTP mismatch falls back to the single-use backup codes.
	consumed, err := e.store.MarkBackupCodeUsed(ctx, accountID, otpToken)
	if err != nil {
		return err
	}
	if !consumed {
		return ErrTwoFactorRequired
	}
	return nil
}

// available always holds for the password method.
// TODO: accountModification provisioning should eventually require a
// stronger method when the account has a security key registered.
func (m *passwordProvisioningMethod) available(context.Context, uint64, string, Purpose) bool {
	return true
}
