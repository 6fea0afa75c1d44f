// Package jwt issues and verifies the signed account-modification tokens used
// by the engine.
//
// Tokens are HS512-signed and self-contained: subject account id, numeric
// purpose code, and expiry. Verification needs no storage lookup. The signing
// secret is generated by the engine at build time and never persisted, so a
// process restart invalidates every outstanding token by construction.
//
// # What this package must NOT do
//
//   - Persist tokens or secrets.
//   - Distinguish expiry from signature failure in its public API.
//   - Import any other goAccounts package.
package jwt
