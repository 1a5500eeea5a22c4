// Package middleware exposes net/http adapters that put ledgerAuth session
// checks in front of handlers.
//
// # Guards
//
//   - [Authenticate]: verifies the bearer token and stores the claims in the
//     request context.
//   - [RequireVerified]: rejects sessions that still owe a second factor.
//   - [RequireRole] and [RequirePermission]: check the account's current role
//     through the engine, so role changes apply without reissuing tokens.
//   - [RequireOrganization]: pins a route's organization ID to the token's.
//
// Every guard after Authenticate expects claims in the context and answers
// 401 when they are missing. Rejections are JSON bodies of the form
// {"message": "..."}.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Access Redis or the credential store (Engine handles I/O).
package middleware
