package goAccounts

import (
	"context"
	"errors"
)

// AccountContext identifies the account and relying party a ceremony runs for.
type AccountContext struct {
	AccountID        uint64
	Username         string
	Application      string
	RelyingPartyName string
	RelyingPartyID   string
}

// CeremonyResult is the outcome of a completed authentication ceremony. The
// service returns the rotated credential blob together with the blob it
// replaces, so the store can swap them in place.
type CeremonyResult struct {
	Credential  []byte
	RotatedFrom []byte
}

// CeremonyService performs the hardware security key exchanges. The engine
// treats it as an opaque asynchronous request/response collaborator: calls
// may suspend on the network, so every method takes a context.
//
// An unreachable service must be reported with ErrCeremonyUnavailable; the
// engine surfaces that as ErrSecondFactorUnavailable and never downgrades it
// to an incorrect-credential error.
type CeremonyService interface {
	// PrepareChallenge builds an authentication challenge over the account's
	// existing credentials. The returned blob is opaque to the engine; it is
	// cached server-side and echoed to the caller.
	PrepareChallenge(ctx context.Context, account AccountContext, existingCredentials [][]byte) ([]byte, error)
	// CompleteChallenge verifies an authenticator response against a prepared
	// challenge and the origins the caller expects.
	CompleteChallenge(ctx context.Context, challenge []byte, response string, expectOrigins []string) (*CeremonyResult, error)

	// PrepareRegistration and CompleteRegistration run the credential
	// enrollment ceremony; CompleteRegistration returns the new credential
	// blob to store.
	PrepareRegistration(ctx context.Context, account AccountContext, existingCredentials [][]byte) ([]byte, error)
	CompleteRegistration(ctx context.Context, registration []byte, response string, expectOrigins []string) ([]byte, error)
}

// ErrCeremonyUnavailable is returned by CeremonyService implementations when
// the ceremony backend cannot be reached at all.
var ErrCeremonyUnavailable = errors.New("ceremony service unavailable")
