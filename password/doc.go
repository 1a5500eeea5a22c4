// Package password implements password hashing, verification and the
// password strength policy.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Legacy bcrypt hashes ($2a$, $2b$, $2y$) still verify. [Hasher.NeedsUpgrade]
// reports true for them and for Argon2id hashes produced with weaker
// parameters, so the caller can re-hash on the next successful login.
//
// # Architecture boundaries
//
// This package owns hashing, verification and [ValidatePolicy]. Reuse checks
// are enforced by the engine.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Import any other ledgerAuth package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
