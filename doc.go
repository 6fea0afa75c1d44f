// Package goAccounts is an account management engine: registration,
// credential verification, second factors, and purpose-scoped token
// provisioning.
//
// The engine decides one question — is this caller who they claim to be —
// and, when the answer is yes, mints a token bound to the requested purpose:
// a persisted opaque token for login sessions, or a signed short-lived token
// for privileged account modification. Identity can be proven by password
// (with TOTP or single-use backup codes as second factor, and an inline
// password reset completion path) or by a hardware security key ceremony
// delegated to an external service.
//
// # Architecture boundaries
//
// goAccounts is the public surface. It exposes [Engine], [Builder], the
// [CredentialStore] and [CeremonyService] collaborator interfaces, value
// types, and typed error variables. Store implementations live under
// internal/ and the daemon wiring under cmd/accountsd.
//
// # What this package must NOT do
//
//   - Speak any transport. The daemon's HTTP surface and the historical
//     message-bus surface are callers of the Engine, never part of it.
//   - Send email. Delivery-worthy events go through [NotificationSink].
//   - Persist the modification token signing secret. A restart invalidates
//     outstanding modification tokens on purpose.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
package goAccounts
