// Package ledgerAuth is the credential issuance and step-up verification
// engine of the ledger backend. It covers password login, stateless HS256
// session tokens, a TOTP second factor with single-use recovery codes, and a
// role and permission gate scoped to one organization per account.
//
// Engine methods are safe to call from multiple goroutines after
// [Builder.Build].
//
// # Architecture boundaries
//
// ledgerAuth is the public surface. It exposes [Engine], [Builder], [Config]
// and value types. Flow orchestration, limiters, challenge storage and audit
// dispatch live under internal/ and are never exported. Persistence is
// reached only through [CredentialStore]; mail delivery only through
// mail.Mailer; secret material at rest only through seal.Sealer.
//
// # What this package must NOT do
//
//   - Log or return password hashes, TOTP secrets or recovery codes outside
//     the one response that reveals them.
//   - Require Redis unless a Security feature is enabled.
//   - Import any sub-package that re-imports ledgerAuth.
package ledgerAuth
