package goAccounts

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// PreparedRegistration is the intermediate result of the first registration
// phase: an opaque options blob for the authenticator and the challenge
// token that resumes the ceremony.
type PreparedRegistration struct {
	Challenge string
	Options   []byte
}

// PrepareRegisterSecurityKey starts a security key enrollment ceremony. The
// prepared state parks in the transient challenge store; if the caller walks
// away it expires and the half-done ceremony is discarded.
func (e *Engine) PrepareRegisterSecurityKey(ctx context.Context, accountID uint64, application, relyingPartyName, relyingPartyID string) (*PreparedRegistration, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if e.ceremony == nil {
		return nil, ErrSecondFactorUnavailable
	}
	if application == "" || relyingPartyName == "" || relyingPartyID == "" {
		return nil, ErrInvalidInput
	}

	account, err := e.accountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	existing, err := e.store.FindSecurityKeyCredentials(ctx, accountID, application)
	if err != nil {
		return nil, err
	}
	blobs := make([][]byte, 0, len(existing))
	for _, credential := range existing {
		blobs = append(blobs, credential.Data)
	}

	options, err := e.ceremony.PrepareRegistration(ctx, AccountContext{
		AccountID:        accountID,
		Username:         account.Username,
		Application:      application,
		RelyingPartyName: relyingPartyName,
		RelyingPartyID:   relyingPartyID,
	}, blobs)
	if err != nil {
		return nil, mapCeremonyError(err)
	}

	challengeID := uuid.NewString()
	if err := e.challenges.Save(ctx, challengeID, &securityKeyChallenge{
		Kind:        challengeKindRegister,
		AccountID:   accountID,
		Application: application,
		Blob:        options,
	}); err != nil {
		return nil, ErrInternal
	}

	return &PreparedRegistration{Challenge: challengeID, Options: options}, nil
}

// CompleteRegisterSecurityKey finishes an enrollment ceremony and stores the
// new credential under the given display name.
func (e *Engine) CompleteRegisterSecurityKey(ctx context.Context, accountID uint64, challengeID, response, keyName string, expectOrigins []string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if e.ceremony == nil {
		return ErrSecondFactorUnavailable
	}
	if challengeID == "" || response == "" || keyName == "" {
		return ErrInvalidInput
	}

	account, err := e.accountByID(ctx, accountID)
	if err != nil {
		return err
	}

	record, err := e.challenges.Take(ctx, challengeID)
	if err != nil {
		if errors.Is(err, errChallengeNotFound) {
			return ErrChallengeInvalid
		}
		return ErrInternal
	}
	if record.Kind != challengeKindRegister || record.AccountID != accountID {
		return ErrChallengeInvalid
	}

	data, err := e.ceremony.CompleteRegistration(ctx, record.Blob, response, expectOrigins)
	if err != nil {
		return mapCeremonyError(err)
	}

	if err := e.store.InsertSecurityKeyCredential(ctx, &SecurityKeyCredential{
		AccountID:   accountID,
		Application: record.Application,
		Name:        keyName,
		Data:        data,
	}); err != nil {
		return err
	}

	e.emit(NotifySecurityKeyAdded, account, map[string]string{
		"key":         keyName,
		"application": record.Application,
	})
	return nil
}

// SecurityKeys lists the account's registered keys. Credential blobs are
// omitted from the snapshots; callers get id, application, and display name.
func (e *Engine) SecurityKeys(ctx context.Context, accountID uint64) ([]SecurityKeyCredential, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if _, err := e.accountByID(ctx, accountID); err != nil {
		return nil, err
	}

	keys, err := e.store.ListSecurityKeys(ctx, accountID)
	if err != nil {
		return nil, err
	}
	for i := range keys {
		keys[i].Data = nil
	}
	return keys, nil
}

// DeleteSecurityKey revokes a registered key and notifies the owner.
func (e *Engine) DeleteSecurityKey(ctx context.Context, accountID, keyID uint64) error {
	if e == nil {
		return ErrEngineNotReady
	}
	account, err := e.accountByID(ctx, accountID)
	if err != nil {
		return err
	}

	removed, err := e.store.DeleteSecurityKeyCredential(ctx, accountID, keyID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrInvalidInput
		}
		return err
	}

	e.emit(NotifySecurityKeyRemoved, account, map[string]string{
		"key":         removed.Name,
		"application": removed.Application,
	})
	return nil
}
