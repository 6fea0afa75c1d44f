// Package password implements password hashing and verification with PBKDF2
// over SHA3-512.
//
// # Output format
//
// Digests are self-describing dot-separated records:
//
//	PBKDF2.SHA3_512.<iterations>.<salt-b64>.<hash-b64>
//
// The iteration count travels inside the record, so records hashed under an
// older default keep verifying after the default is raised.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. The erased and disabled
// password sentinels, password policy, and reset flows are enforced by the
// Engine.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords — callers supply plaintext and receive digests.
//   - Import any other goAccounts package.
//   - Return an error from Verify: malformed records fail closed.
package password
