package goAccounts

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
)

// provisioningMethod is one way of proving identity. The set is closed:
// methods are registered at Build and dispatched by name.
type provisioningMethod interface {
	name() string
	// provision authenticates the caller described by opts. On full success
	// the resolved account id is returned. A multi-step method may instead
	// return intermediate data the caller needs for its next call; no token
	// is minted for an intermediate result.
	provision(ctx context.Context, opts ProvisionOptions, purpose Purpose) (uint64, map[string]string, error)
	// available reports whether this method can currently authenticate the
	// given account for the given application and purpose.
	available(ctx context.Context, accountID uint64, application string, purpose Purpose) bool
}

// ProvisionToken authenticates the caller with the named method and mints a
// token scoped to purpose. Method errors propagate unchanged; no token is
// ever issued unless every check passed.
func (e *Engine) ProvisionToken(ctx context.Context, method string, purpose Purpose, application string, opts ProvisionOptions) (*ProvisionResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	// Unknown purposes fail fast, before any method dispatch.
	if purpose != PurposeLogin && purpose != PurposeAccountModification {
		return nil, ErrInvalidInput
	}

	opts.Application = application

	for _, m := range e.methods {
		if m.name() != method {
			continue
		}

		accountID, intermediate, err := m.provision(ctx, opts, purpose)
		if err != nil {
			return nil, err
		}
		if len(intermediate) > 0 {
			return &ProvisionResult{Intermediate: intermediate}, nil
		}

		switch purpose {
		case PurposeLogin:
			token, err := e.mintLoginToken(ctx, accountID, application)
			if err != nil {
				return nil, err
			}
			return &ProvisionResult{Token: token}, nil
		case PurposeAccountModification:
			token, err := e.jwtManager.Issue(accountID, int(purpose))
			if err != nil {
				return nil, ErrInternal
			}
			return &ProvisionResult{Token: token}, nil
		}
	}

	return nil, ErrInternal
}

// ForceProvisionToken mints and persists a login token with no credential
// check. Callers of this operation must already be trusted.
func (e *Engine) ForceProvisionToken(ctx context.Context, accountID uint64, application string) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}
	if application == "" {
		return "", ErrInvalidInput
	}
	if _, err := e.accountByID(ctx, accountID); err != nil {
		return "", err
	}
	return e.mintLoginToken(ctx, accountID, application)
}

// VerifyToken resolves a presented token to an account id and purpose. A
// signed modification token is tried first; anything that fails signature or
// expiry checks falls back to the persisted login token lookup. Both total
// failures report the same ErrNoAccount, so callers cannot tell which path
// rejected the token.
func (e *Engine) VerifyToken(ctx context.Context, token string) (uint64, Purpose, error) {
	if e == nil {
		return 0, PurposeUnknown, ErrEngineNotReady
	}
	if token == "" {
		return 0, PurposeUnknown, ErrNoAccount
	}

	if accountID, purposeCode, err := e.jwtManager.Verify(token); err == nil {
		purpose := Purpose(purposeCode)
		if purpose != PurposeLogin && purpose != PurposeAccountModification {
			return 0, PurposeUnknown, ErrNoAccount
		}
		return accountID, purpose, nil
	}

	stored, err := e.store.FindToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, PurposeUnknown, ErrNoAccount
		}
		return 0, PurposeUnknown, err
	}
	return stored.AccountID, PurposeLogin, nil
}

// AvailableMethods reports the name of every registered method whose
// availability predicate holds, in registration order.
func (e *Engine) AvailableMethods(ctx context.Context, accountID uint64, application string, purpose Purpose) []string {
	if e == nil {
		return nil
	}
	var names []string
	for _, m := range e.methods {
		if m.available(ctx, accountID, application, purpose) {
			names = append(names, m.name())
		}
	}
	return names
}

// AvailableMethodsForUsername resolves the account first and refuses to
// enumerate methods for a disabled account.
func (e *Engine) AvailableMethodsForUsername(ctx context.Context, username, application string, purpose Purpose) ([]string, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	account, err := e.accountByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if account.Disabled() {
		return nil, ErrDisabledAccount
	}
	return e.AvailableMethods(ctx, account.ID, application, purpose), nil
}

// RevokeToken deletes one persisted login token. Revocation is the only way
// a login token stops working; they carry no expiry.
func (e *Engine) RevokeToken(ctx context.Context, token string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if token == "" {
		return ErrInvalidInput
	}
	return e.store.DeleteToken(ctx, token)
}

// RevokeAccountTokens deletes every persisted login token for an account.
func (e *Engine) RevokeAccountTokens(ctx context.Context, accountID uint64) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return e.store.DeleteAccountTokens(ctx, accountID)
}

func (e *Engine) mintLoginToken(ctx context.Context, accountID uint64, application string) (string, error) {
	raw := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return "", ErrInternal
	}
	token := base64.StdEncoding.EncodeToString(raw)

	if err := e.store.InsertToken(ctx, &Token{
		AccountID:   accountID,
		Value:       token,
		Application: application,
	}); err != nil {
		return "", err
	}
	return token, nil
}
