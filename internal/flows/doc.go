// Package flows contains the orchestration behind every Engine operation.
//
// Each Run* function accepts a typed dependency struct built by the root
// engine and touches the outside world only through it. The engine owns the
// store, limiters, token manager, audit dispatcher and metrics; flows only
// sequence calls to them and decide which sentinel error to return.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import the root ledgerAuth package.
//   - Perform I/O directly. All I/O goes through dependency funcs.
package flows
