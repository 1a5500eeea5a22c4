// Package internal holds the engine's private building blocks.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - flows: flow orchestrators for every Engine operation
//   - limiters: verification and send-code rate limiters
//   - logging: zap logger construction and redaction helpers
//   - rate: Redis fixed-window login limiter
//   - stores: login challenge store and token deny-list
//   - envconfig: process configuration for the HTTP server
package internal
