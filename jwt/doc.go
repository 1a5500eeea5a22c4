// Package jwt issues and verifies the HS256 session tokens that carry
// identity and second-factor state.
//
// # Architecture boundaries
//
// The manager is stateless. Revocation, when enabled, lives in the engine's
// deny-list and is checked after Verify succeeds.
//
// # What this package must NOT do
//
//   - Accept any algorithm other than HS256.
//   - Tell callers why a token was rejected beyond ErrInvalidToken.
package jwt
