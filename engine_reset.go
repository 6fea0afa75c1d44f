package goAccounts

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"io"
	"strings"

	"github.com/MrEthical07/goAccounts/password"
)

// ResetMethod describes one way an account owner can prove they should
// receive a password reset. The challenge carries masked hints only.
type ResetMethod struct {
	Type      string            `json:"type"`
	Challenge map[string]string `json:"challenge"`
}

// ResetMethods lists the reset paths open to an account. The email hint is
// truncated hard so it confirms nothing to someone who does not already know
// the address.
func (e *Engine) ResetMethods(ctx context.Context, accountID uint64) ([]ResetMethod, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	account, err := e.accountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	var methods []ResetMethod
	if user, domain, ok := maskEmail(account.Email); ok {
		methods = append(methods, ResetMethod{
			Type:      "email",
			Challenge: map[string]string{"user": user, "domain": domain},
		})
	}
	return methods, nil
}

// ResetPassword answers a reset challenge. On a correct answer a temporary
// password is issued; a wrong answer returns success without issuing
// anything, so the endpoint cannot be used to probe account details.
func (e *Engine) ResetPassword(ctx context.Context, accountID uint64, method string, challenge map[string]string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	account, err := e.accountByID(ctx, accountID)
	if err != nil {
		return err
	}

	switch method {
	case "email":
		if challenge["email"] == account.Email {
			return e.issuePasswordReset(ctx, account)
		}
		return nil
	default:
		return ErrInvalidInput
	}
}

// issuePasswordReset creates (or overwrites) the single pending reset for the
// account and queues the notification carrying the cleartext temporary
// password for delivery. Only the digest is persisted.
func (e *Engine) issuePasswordReset(ctx context.Context, account *Account) error {
	raw := make([]byte, e.config.Reset.TemporaryPasswordBytes)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return ErrInternal
	}
	temporary := base64.StdEncoding.EncodeToString(raw)

	digest, err := password.Hash(temporary, e.config.Password.Iterations)
	if err != nil {
		return ErrInternal
	}

	if err := e.store.InsertResetRequest(ctx, &PasswordResetRequest{
		AccountID:         account.ID,
		TemporaryPassword: digest,
		Expiry:            e.now().Add(e.config.Reset.TTL),
	}); err != nil {
		return err
	}

	e.emit(NotifyPasswordResetIssued, account, map[string]string{"password": temporary})
	return nil
}

// completePasswordReset rotates the password and consumes the reset request
// in one serialized step, then notifies. Used by the password provisioning
// method when the caller presents the temporary password plus a new one.
func (e *Engine) completePasswordReset(ctx context.Context, account *Account, newPassword string) error {
	err := e.store.WithAccountLock(ctx, account.ID, func(ctx context.Context) error {
		if err := e.setPassword(ctx, account, newPassword); err != nil {
			return err
		}
		return e.store.DeleteResetRequest(ctx, account.ID)
	})
	if err != nil {
		return err
	}

	e.emit(NotifyPasswordChanged, account, nil)
	return nil
}

func maskEmail(email string) (user, domain string, ok bool) {
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return "", "", false
	}

	user = email[:at]
	if len(user) > 2 {
		user = user[:2]
	}
	domain = email[at+1:]
	if len(domain) > 1 {
		domain = domain[:1]
	}
	return user, domain, true
}
