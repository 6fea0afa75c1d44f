package goAccounts

import (
	"strings"
	"time"
)

// Password sentinels. An account password column holds exactly one of: a digest
// record produced by the password package, the erased sentinel, or a digest
// prefixed with the disabled marker.
const (
	erasedPasswordSentinel = "x"
	disabledPasswordPrefix = "!"
)

// Account is a snapshot of a stored user account. Snapshots handed out by the
// engine are copies; mutations go through Engine methods, never through the
// snapshot.
type Account struct {
	ID           uint64
	Username     string
	Email        string
	PasswordHash string
	Verified     bool
}

// Disabled reports whether the stored password carries the disabled prefix.
func (a *Account) Disabled() bool {
	return strings.HasPrefix(a.PasswordHash, disabledPasswordPrefix)
}

// PasswordErased reports whether the account has no usable password and must
// complete a reset before authenticating.
func (a *Account) PasswordErased() bool {
	return a.PasswordHash == erasedPasswordSentinel
}

// Token is a persisted opaque login token bound to an account and application.
type Token struct {
	AccountID   uint64
	Value       string
	Application string
}

// PasswordResetRequest is the single pending reset for an account. A new
// request overwrites the old one; the row is deleted on successful use.
type PasswordResetRequest struct {
	AccountID         uint64
	TemporaryPassword string // digest record, never cleartext
	Expiry            time.Time
}

// Expired reports whether the request is inert at the given instant.
func (r *PasswordResetRequest) Expired(now time.Time) bool {
	return !r.Expiry.After(now)
}

// OtpSecret is the per-account shared secret for time-based one-time codes.
// The secret exists from key generation onward but only gates logins once
// Enabled is set.
type OtpSecret struct {
	AccountID uint64
	Secret    string // base32 (A-Z, 2-7), no padding
	Enabled   bool
}

// BackupCode is a single-use fallback credential for an account with two
// factor authentication enabled.
type BackupCode struct {
	AccountID uint64
	Code      string
	Used      bool
}

// SecurityKeyCredential is an opaque hardware security key credential blob,
// scoped to one account and one application.
type SecurityKeyCredential struct {
	ID          uint64
	AccountID   uint64
	Application string
	Name        string
	Data        []byte
}

// Purpose is the privilege class a token is valid for.
type Purpose int

const (
	// PurposeUnknown is the sentinel for unrecognized purpose strings.
	PurposeUnknown Purpose = iota
	// PurposeLogin scopes a token to ordinary API access.
	PurposeLogin
	// PurposeAccountModification scopes a token to privileged account changes.
	PurposeAccountModification
)

// PurposeFromString maps the wire-level purpose name to its Purpose value.
func PurposeFromString(s string) Purpose {
	switch s {
	case "login":
		return PurposeLogin
	case "accountModification":
		return PurposeAccountModification
	default:
		return PurposeUnknown
	}
}

func (p Purpose) String() string {
	switch p {
	case PurposeLogin:
		return "login"
	case PurposeAccountModification:
		return "accountModification"
	default:
		return "unknown"
	}
}

// ProvisionOptions carries the per-method inputs of a provisioning call.
// Which fields matter depends on the method; unused fields are ignored.
type ProvisionOptions struct {
	Username    string
	Password    string
	NewPassword string
	OTPToken    string

	// Application is filled in by the engine from the provisioning call.
	Application string

	// Security key ceremony fields.
	Challenge        string
	Response         string
	ExpectOrigins    []string
	RelyingPartyName string
	RelyingPartyID   string
}

// ProvisionResult is the outcome of a successful provisioning call. Either
// Token is set, or Intermediate holds method-specific data the caller needs to
// complete a multi-step ceremony.
type ProvisionResult struct {
	Token        string
	Intermediate map[string]string
}
