package goAccounts

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// securityKeyProvisioningMethod proves identity with a hardware security key.
// The ceremony spans two calls: without a response it prepares a challenge
// and parks it in the transient challenge store; with a response it completes
// the ceremony, rotates the stored credential, and authenticates.
type securityKeyProvisioningMethod struct {
	engine *Engine
}

func (m *securityKeyProvisioningMethod) name() string { return "fido" }

func (m *securityKeyProvisioningMethod) provision(ctx context.Context, opts ProvisionOptions, purpose Purpose) (uint64, map[string]string, error) {
	e := m.engine

	if opts.Username == "" || opts.Application == "" {
		return 0, nil, ErrInvalidInput
	}

	account, err := e.accountByUsername(ctx, opts.Username)
	if err != nil {
		return 0, nil, err
	}
	if account.Disabled() {
		return 0, nil, ErrDisabledAccount
	}

	if opts.Response == "" {
		return m.prepare(ctx, account, opts)
	}
	return m.complete(ctx, account, opts)
}

func (m *securityKeyProvisioningMethod) prepare(ctx context.Context, account *Account, opts ProvisionOptions) (uint64, map[string]string, error) {
	e := m.engine

	if opts.RelyingPartyName == "" || opts.RelyingPartyID == "" {
		return 0, nil, ErrInvalidInput
	}

	existing, err := m.existingCredentials(ctx, account.ID, opts.Application)
	if err != nil {
		return 0, nil, err
	}

	blob, err := e.ceremony.PrepareChallenge(ctx, AccountContext{
		AccountID:        account.ID,
		Username:         account.Username,
		Application:      opts.Application,
		RelyingPartyName: opts.RelyingPartyName,
		RelyingPartyID:   opts.RelyingPartyID,
	}, existing)
	if err != nil {
		return 0, nil, mapCeremonyError(err)
	}

	challengeID := uuid.NewString()
	if err := e.challenges.Save(ctx, challengeID, &securityKeyChallenge{
		Kind:        challengeKindLogin,
		AccountID:   account.ID,
		Application: opts.Application,
		Blob:        blob,
	}); err != nil {
		return 0, nil, ErrInternal
	}

	// Intermediate step: the caller is not authenticated yet.
	return 0, map[string]string{
		"challenge": challengeID,
		"options":   string(blob),
	}, nil
}

func (m *securityKeyProvisioningMethod) complete(ctx context.Context, account *Account, opts ProvisionOptions) (uint64, map[string]string, error) {
	e := m.engine

	if opts.Challenge == "" {
		return 0, nil, ErrInvalidInput
	}

	record, err := e.challenges.Take(ctx, opts.Challenge)
	if err != nil {
		if errors.Is(err, errChallengeNotFound) {
			return 0, nil, ErrChallengeInvalid
		}
		return 0, nil, ErrInternal
	}
	if record.Kind != challengeKindLogin || record.AccountID != account.ID || record.Application != opts.Application {
		return 0, nil, ErrChallengeInvalid
	}

	result, err := e.ceremony.CompleteChallenge(ctx, record.Blob, opts.Response, opts.ExpectOrigins)
	if err != nil {
		return 0, nil, mapCeremonyError(err)
	}

	// The authenticator bumped its signature counter; swap the stored blob
	// for the rotated one before handing out a token.
	if err := e.store.ReplaceSecurityKeyCredential(ctx, account.ID, result.RotatedFrom, result.Credential); err != nil {
		return 0, nil, err
	}

	return account.ID, nil, nil
}

// available requires at least one registered credential for the application.
func (m *securityKeyProvisioningMethod) available(ctx context.Context, accountID uint64, application string, _ Purpose) bool {
	credentials, err := m.engine.store.FindSecurityKeyCredentials(ctx, accountID, application)
	if err != nil {
		return false
	}
	return len(credentials) > 0
}

func (m *securityKeyProvisioningMethod) existingCredentials(ctx context.Context, accountID uint64, application string) ([][]byte, error) {
	credentials, err := m.engine.store.FindSecurityKeyCredentials(ctx, accountID, application)
	if err != nil {
		return nil, err
	}
	blobs := make([][]byte, 0, len(credentials))
	for _, credential := range credentials {
		blobs = append(blobs, credential.Data)
	}
	return blobs, nil
}

// mapCeremonyError keeps the unavailable/rejected distinction: an unreachable
// ceremony backend must never masquerade as an incorrect credential.
func mapCeremonyError(err error) error {
	if errors.Is(err, ErrCeremonyUnavailable) {
		return ErrSecondFactorUnavailable
	}
	return ErrInternal
}
