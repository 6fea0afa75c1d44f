package goAccounts

import "errors"

var (
	// ErrEngineNotReady is returned when an Engine method is called before Build.
	ErrEngineNotReady = errors.New("engine not ready")
	// ErrInvalidInput indicates missing or malformed caller input, rejected before any storage access.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNoAccount indicates that the account does not exist or a token resolved to nothing.
	ErrNoAccount = errors.New("no such account")
	// ErrAccountExists indicates a username collision on account creation.
	ErrAccountExists = errors.New("account already exists")
	// ErrDisabledAccount indicates the stored password carries the disabled prefix.
	ErrDisabledAccount = errors.New("account disabled")
	// ErrIncorrectPassword indicates a password verification failure.
	ErrIncorrectPassword = errors.New("incorrect password")
	// ErrPasswordResetRequired indicates the account cannot authenticate with a
	// password right now: either a matched temporary password needs a new
	// password supplied in the same call, or the password was erased.
	ErrPasswordResetRequired = errors.New("password reset required")
	// ErrPasswordResetRequestRequired is reserved for integrators that demand an
	// explicit reset request step; the engine itself never returns it.
	ErrPasswordResetRequestRequired = errors.New("password reset request required")
	// ErrTwoFactorRequired indicates a second factor is missing or incorrect for a login.
	ErrTwoFactorRequired = errors.New("two factor authentication required")
	// ErrTwoFactorEnabled indicates two factor authentication is already enabled.
	ErrTwoFactorEnabled = errors.New("two factor authentication already enabled")
	// ErrTwoFactorDisabled indicates two factor authentication is already disabled.
	ErrTwoFactorDisabled = errors.New("two factor authentication already disabled")
	// ErrVerificationCodeIncorrect indicates an email verification code mismatch or expiry.
	ErrVerificationCodeIncorrect = errors.New("verification code incorrect")
	// ErrSecondFactorUnavailable indicates the security key ceremony service could not be reached.
	ErrSecondFactorUnavailable = errors.New("second factor support unavailable")
	// ErrChallengeInvalid indicates a security key challenge token that is unknown or expired.
	ErrChallengeInvalid = errors.New("challenge invalid or expired")
	// ErrQueryFailed wraps credential store failures without exposing backend detail.
	ErrQueryFailed = errors.New("credential store query failed")
	// ErrInternal covers unexpected and unmapped failures.
	ErrInternal = errors.New("internal error")
)

// ErrNotFound is the store-level sentinel for a missing record. Engine methods
// translate it into the caller-facing error appropriate for the operation.
var ErrNotFound = errors.New("record not found")
